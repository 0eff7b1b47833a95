package ring

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"shardring/internal/position"
)

// PositionPolicy decides where a shard's labels go. The ring never generates
// positions itself; the caller injects a policy. first is the ordinal the
// first returned label will get, so a shard that already owns labels can be
// extended without repeating positions.
type PositionPolicy interface {
	Positions(shard ShardID, first, n int) []position.Position
}

// RandomPolicy draws label positions uniformly from [0, 360).
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy returns a RandomPolicy seeded for reproducible runs.
func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Positions implements PositionPolicy.
func (p *RandomPolicy) Positions(_ ShardID, _, n int) []position.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]position.Position, n)
	for i := range out {
		pos := position.Position(p.rng.Float64() * position.Circumference)
		if !pos.Valid() {
			pos = 0
		}
		out[i] = pos
	}
	return out
}

// HashPolicy derives label positions by hashing "<shard>-vnode-<ordinal>".
// A label's position depends only on its shard and ordinal.
type HashPolicy struct{}

// Positions implements PositionPolicy.
func (HashPolicy) Positions(shard ShardID, first, n int) []position.Position {
	out := make([]position.Position, n)
	for i := range out {
		out[i] = position.HashString(fmt.Sprintf("%s-vnode-%d", shard, first+i))
	}
	return out
}

// FixedPolicy hands out explicit positions per shard, ignoring first and n.
type FixedPolicy map[ShardID][]position.Position

// Positions implements PositionPolicy.
func (f FixedPolicy) Positions(shard ShardID, _, _ int) []position.Position {
	return append([]position.Position(nil), f[shard]...)
}
