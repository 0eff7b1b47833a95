package rebalance

import (
	"errors"
	"fmt"

	"shardring/internal/item"
	"shardring/internal/placement"
	"shardring/internal/ring"
	"shardring/internal/storage"
)

// ErrOwnership reports items held by zero, several, or the wrong shards.
var ErrOwnership = errors.New("rebalance: ownership violated")

// VerifyOwnership checks that every item is held by exactly one shard and
// that the shard is the one snap assigns it to.
func VerifyOwnership(snap *ring.Snapshot, store *storage.ShardStore, items []item.Item) error {
	var errs []error
	for _, it := range items {
		owners := store.Owners(it)
		want := placement.Assign(snap, it)
		switch {
		case len(owners) == 0:
			errs = append(errs, fmt.Errorf("%s: no owner", it.ID))
		case len(owners) > 1:
			errs = append(errs, fmt.Errorf("%s: owned by %v", it.ID, owners))
		case owners[0] != want:
			errs = append(errs, fmt.Errorf("%s: in %s, assigned to %s", it.ID, owners[0], want))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %d items: %w", ErrOwnership, len(errs), errors.Join(errs...))
	}
	return nil
}
