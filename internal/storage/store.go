package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zhangyunhao116/skipmap"
	"github.com/zhangyunhao116/skipset"

	"shardring/internal/item"
	"shardring/internal/ring"
)

var (
	// ErrMissingShard means a shard on the ring has no item set, i.e. the
	// ring and the store drifted apart.
	ErrMissingShard = errors.New("storage: missing shard")
	// ErrItemNotFound is returned when removing an item the shard does not hold.
	ErrItemNotFound = errors.New("storage: item not found")
	// ErrShardNotEmpty is returned when dropping a shard that still owns items.
	ErrShardNotEmpty = errors.New("storage: shard not empty")
)

// shard is one shard's item set.
type shard struct {
	mu    sync.RWMutex
	items *skipset.FuncSet[item.Item]
}

func newShard() *shard {
	return &shard{items: skipset.NewFunc[item.Item](item.Less)}
}

// ShardStore maps shard identities to the items they own.
// It is safe for concurrent use.
type ShardStore struct {
	shards *skipmap.FuncMap[ring.ShardID, *shard]
}

// NewShardStore creates a store with an empty set for every given shard.
func NewShardStore(ids ...ring.ShardID) *ShardStore {
	s := &ShardStore{
		shards: skipmap.NewFunc[ring.ShardID, *shard](func(a, b ring.ShardID) bool {
			return a < b
		}),
	}
	for _, id := range ids {
		s.AddShard(id)
	}
	return s
}

// AddShard registers an empty set for id. It reports false if id already exists.
func (s *ShardStore) AddShard(id ring.ShardID) bool {
	_, loaded := s.shards.LoadOrStore(id, newShard())
	return !loaded
}

// DropShard unregisters an empty shard.
func (s *ShardStore) DropShard(id ring.ShardID) error {
	sh, err := s.get(id)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if n := sh.items.Len(); n > 0 {
		return fmt.Errorf("%w: %s holds %d items", ErrShardNotEmpty, id, n)
	}
	s.shards.Delete(id)
	return nil
}

// HasShard reports whether id is registered.
func (s *ShardStore) HasShard(id ring.ShardID) bool {
	_, ok := s.shards.Load(id)
	return ok
}

// Shards returns the registered shard identities, sorted.
func (s *ShardStore) Shards() []ring.ShardID {
	ids := make([]ring.ShardID, 0, s.shards.Len())
	s.shards.Range(func(id ring.ShardID, _ *shard) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Add inserts it into the shard's set. Re-adding the same item is a no-op
// and reports false.
func (s *ShardStore) Add(id ring.ShardID, it item.Item) (bool, error) {
	sh, err := s.get(id)
	if err != nil {
		return false, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.items.Add(it), nil
}

// Remove deletes the item with its identity from the shard's set.
func (s *ShardStore) Remove(id ring.ShardID, it item.Item) error {
	sh, err := s.get(id)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if !sh.items.Remove(it) {
		return fmt.Errorf("%w: %s in %s", ErrItemNotFound, it.ID, id)
	}
	return nil
}

// Contains reports whether the shard holds it.
func (s *ShardStore) Contains(id ring.ShardID, it item.Item) (bool, error) {
	sh, err := s.get(id)
	if err != nil {
		return false, err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.items.Contains(it), nil
}

// ItemsOf returns the shard's items ordered by position.
func (s *ShardStore) ItemsOf(id ring.ShardID) ([]item.Item, error) {
	sh, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	items := make([]item.Item, 0, sh.items.Len())
	sh.items.Range(func(it item.Item) bool {
		items = append(items, it)
		return true
	})
	return items, nil
}

// Count returns the number of items in the shard.
func (s *ShardStore) Count(id ring.ShardID) (int, error) {
	sh, err := s.get(id)
	if err != nil {
		return 0, err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.items.Len(), nil
}

// Counts returns the item count of every shard.
func (s *ShardStore) Counts() map[ring.ShardID]int {
	counts := make(map[ring.ShardID]int, s.shards.Len())
	s.shards.Range(func(id ring.ShardID, sh *shard) bool {
		sh.mu.RLock()
		counts[id] = sh.items.Len()
		sh.mu.RUnlock()
		return true
	})
	return counts
}

// Total returns the number of item memberships across all shards. Items
// caught mid-move are counted twice.
func (s *ShardStore) Total() int {
	total := 0
	for _, n := range s.Counts() {
		total += n
	}
	return total
}

// Owners returns every shard holding it. Outside a move this has exactly
// one element. All shard read locks are held together, in key order, so a
// concurrent add-then-remove move is seen in one or both shards, never in
// neither.
func (s *ShardStore) Owners(it item.Item) []ring.ShardID {
	var (
		ids    []ring.ShardID
		locked []*shard
	)
	s.shards.Range(func(id ring.ShardID, sh *shard) bool {
		sh.mu.RLock()
		ids = append(ids, id)
		locked = append(locked, sh)
		return true
	})
	defer func() {
		for _, sh := range locked {
			sh.mu.RUnlock()
		}
	}()

	var owners []ring.ShardID
	for i, sh := range locked {
		if sh.items.Contains(it) {
			owners = append(owners, ids[i])
		}
	}
	return owners
}

func (s *ShardStore) get(id ring.ShardID) (*shard, error) {
	sh, ok := s.shards.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingShard, id)
	}
	return sh, nil
}
