package ring

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zhangyunhao116/skipset"

	"shardring/internal/position"
)

var (
	// ErrEmptyRing is returned when an operation would leave the ring without labels.
	ErrEmptyRing = errors.New("ring: no labels")
	// ErrPositionOutOfRange is returned for label positions outside [0, 360).
	ErrPositionOutOfRange = errors.New("ring: position out of range")
	// ErrUnknownShard is returned when a shard has no labels on the ring.
	ErrUnknownShard = errors.New("ring: unknown shard")
)

// ShardID identifies a shard.
type ShardID string

// Label is one position on the ring owned by a shard (a virtual node).
// Ordinal distinguishes labels of the same shard.
type Label struct {
	Shard    ShardID
	Position position.Position
	Ordinal  int
}

func (l Label) String() string {
	return fmt.Sprintf("%s#%d@%s", l.Shard, l.Ordinal, l.Position)
}

// labelLess is the ring's total order: position, then shard, then ordinal.
// Labels sharing a position are therefore ordered by shard identity, which
// makes tie resolution independent of insertion order.
func labelLess(a, b Label) bool {
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	if a.Shard != b.Shard {
		return a.Shard < b.Shard
	}
	return a.Ordinal < b.Ordinal
}

type shardInfo struct {
	labels int
	next   int // next free ordinal
}

// Ring is the live, mutable set of labels.
type Ring struct {
	mu     sync.RWMutex
	labels *skipset.FuncSet[Label]
	shards map[ShardID]*shardInfo
}

// New creates a ring holding the given labels. At least one label is
// required so that lookups against the ring can never fail.
func New(labels ...Label) (*Ring, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyRing
	}
	r := &Ring{
		labels: skipset.NewFunc[Label](labelLess),
		shards: make(map[ShardID]*shardInfo),
	}
	if err := r.InsertAll(labels); err != nil {
		return nil, err
	}
	return r, nil
}

// Insert adds a single label. Inserting an identical label twice is a no-op.
func (r *Ring) Insert(l Label) error {
	return r.InsertAll([]Label{l})
}

// InsertAll adds a batch of labels. The batch is validated up front and
// becomes visible to Snapshot atomically.
func (r *Ring) InsertAll(labels []Label) error {
	for _, l := range labels {
		if !l.Position.Valid() {
			return fmt.Errorf("%w: label %s", ErrPositionOutOfRange, l)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range labels {
		r.insertLocked(l)
	}
	return nil
}

func (r *Ring) insertLocked(l Label) {
	if !r.labels.Add(l) {
		return // already present
	}
	info, ok := r.shards[l.Shard]
	if !ok {
		info = &shardInfo{}
		r.shards[l.Shard] = info
	}
	info.labels++
	if l.Ordinal >= info.next {
		info.next = l.Ordinal + 1
	}
}

// AddShard places a label for every given position, numbering them after
// any labels the shard already owns. It returns the inserted labels.
func (r *Ring) AddShard(shard ShardID, positions []position.Position) ([]Label, error) {
	for _, p := range positions {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: shard %s at %v", ErrPositionOutOfRange, shard, float64(p))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	first := 0
	if info, ok := r.shards[shard]; ok {
		first = info.next
	}
	added := make([]Label, 0, len(positions))
	for i, p := range positions {
		l := Label{Shard: shard, Position: p, Ordinal: first + i}
		r.insertLocked(l)
		added = append(added, l)
	}
	return added, nil
}

// RemoveShard deletes every label owned by shard and returns how many were
// removed. Removing the last shard is refused.
func (r *Ring) RemoveShard(shard ShardID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.shards[shard]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownShard, shard)
	}
	if len(r.shards) == 1 {
		return 0, fmt.Errorf("%w: cannot remove last shard %s", ErrEmptyRing, shard)
	}

	var owned []Label
	r.labels.Range(func(l Label) bool {
		if l.Shard == shard {
			owned = append(owned, l)
		}
		return true
	})
	for _, l := range owned {
		r.labels.Remove(l)
	}
	delete(r.shards, shard)
	return len(owned), nil
}

// NextOrdinal returns the ordinal AddShard would give the shard's next label.
func (r *Ring) NextOrdinal(shard ShardID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.shards[shard]; ok {
		return info.next
	}
	return 0
}

// Snapshot returns an immutable, position-ordered copy of the ring.
func (r *Ring) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	labels := make([]Label, 0, r.labels.Len())
	r.labels.Range(func(l Label) bool {
		labels = append(labels, l)
		return true
	})
	return &Snapshot{labels: labels}
}

// Len returns the number of labels on the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.labels.Len()
}

// HasShard reports whether shard owns at least one label.
func (r *Ring) HasShard(shard ShardID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shards[shard]
	return ok
}

// Shards returns the shard identities on the ring, sorted.
func (r *Ring) Shards() []ShardID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ShardID, 0, len(r.shards))
	for id := range r.shards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
