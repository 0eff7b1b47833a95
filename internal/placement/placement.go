package placement

import (
	"fmt"

	"shardring/internal/item"
	"shardring/internal/ring"
	"shardring/internal/storage"
)

// Assign returns the shard owning it under snap. It depends only on the
// snapshot and the item's position, never on current shard contents.
func Assign(snap *ring.Snapshot, it item.Item) ring.ShardID {
	return snap.Owner(it.Position)
}

// DefaultReplicas is used by Replicas when n is not positive.
const DefaultReplicas = 3

// Replicas returns the n shards responsible for it: its owner first, then
// the next distinct shards on the ring's preference list.
func Replicas(snap *ring.Snapshot, it item.Item, n int) []ring.ShardID {
	if n <= 0 {
		n = DefaultReplicas
	}
	return snap.PreferenceList(it.Position, n)
}

// Place performs first-time placement of items into store and returns how
// many items each shard received. Every shard in snap must already be
// registered in store.
func Place(snap *ring.Snapshot, store *storage.ShardStore, items []item.Item) (map[ring.ShardID]int, error) {
	placed := make(map[ring.ShardID]int)
	for _, it := range items {
		owner := Assign(snap, it)
		added, err := store.Add(owner, it)
		if err != nil {
			return placed, fmt.Errorf("place %s: %w", it.ID, err)
		}
		if added {
			placed[owner]++
		}
	}
	return placed, nil
}
