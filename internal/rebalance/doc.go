// Package rebalance grows and shrinks the ring and relocates exactly the
// items whose owning shard changes.
//
// A pass snapshots the ring before and after the label change, computes a
// Plan keyed by item identity, and applies each move by adding the item to
// its destination before removing it from its origin. An interrupted pass
// can therefore leave an item in two shards, but never in none. Readers that
// run during a pass must treat membership as at-least-once until it ends.
package rebalance
