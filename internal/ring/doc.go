// Package ring implements a consistent hashing ring with virtual nodes
// ("labels"). Every shard owns one or more labels on a circle of degrees
// [0, 360); a position belongs to the label with the greatest position not
// exceeding it, wrapping to the smallest label when none qualifies.
//
// The live Ring is mutable and safe for concurrent use. Rebalancing works on
// an immutable Snapshot so that labels inserted after a pass starts are never
// observed by that pass.
package ring
