package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shardring/internal/item"
	"shardring/internal/placement"
	"shardring/internal/ring"
	"shardring/internal/storage"
)

var (
	// ErrDuplicateMove means one item was found in more than one origin shard.
	ErrDuplicateMove = errors.New("rebalance: item found in more than one shard")
	// ErrNoLabels is returned when a shard being added would get no labels.
	ErrNoLabels = errors.New("rebalance: shard needs at least one label")
)

// Move relocates one item between shards.
type Move struct {
	Item item.Item
	From ring.ShardID
	To   ring.ShardID
}

// Route is an origin/destination pair.
type Route struct {
	From ring.ShardID
	To   ring.ShardID
}

// Plan is the set of moves for one resharding pass, keyed by item identity.
type Plan struct {
	moves map[uuid.UUID]Move
}

func newPlan() *Plan {
	return &Plan{moves: make(map[uuid.UUID]Move)}
}

func (p *Plan) record(m Move) error {
	if prev, ok := p.moves[m.Item.ID]; ok {
		return fmt.Errorf("%w: %s in %s and %s", ErrDuplicateMove, m.Item.ID, prev.From, m.From)
	}
	p.moves[m.Item.ID] = m
	return nil
}

// Len returns the number of moves.
func (p *Plan) Len() int {
	return len(p.moves)
}

// Get returns the move for an item, if any.
func (p *Plan) Get(id uuid.UUID) (Move, bool) {
	m, ok := p.moves[id]
	return m, ok
}

// Moves returns the moves ordered by item position.
func (p *Plan) Moves() []Move {
	moves := make([]Move, 0, len(p.moves))
	for _, m := range p.moves {
		moves = append(moves, m)
	}
	sort.Slice(moves, func(i, j int) bool { return item.Less(moves[i].Item, moves[j].Item) })
	return moves
}

// Counts returns the number of moves per route.
func (p *Plan) Counts() map[Route]int {
	counts := make(map[Route]int)
	for _, m := range p.moves {
		counts[Route{From: m.From, To: m.To}]++
	}
	return counts
}

// ComputePlan finds every item, in any shard of oldSnap, whose owner under
// newSnap differs from the shard currently holding it. With workers > 1 the
// origin shards are scanned concurrently; the result is the same.
func ComputePlan(ctx context.Context, oldSnap, newSnap *ring.Snapshot, store *storage.ShardStore, workers int) (*Plan, error) {
	origins := oldSnap.Shards()
	found := make([][]Move, len(origins))

	g, gCtx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, origin := range origins {
		g.Go(func() error {
			moves, err := scanShard(gCtx, origin, newSnap, store)
			if err != nil {
				return err
			}
			found[i] = moves
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan := newPlan()
	for _, moves := range found {
		for _, m := range moves {
			if err := plan.record(m); err != nil {
				return nil, err
			}
		}
	}
	return plan, nil
}

func scanShard(ctx context.Context, origin ring.ShardID, newSnap *ring.Snapshot, store *storage.ShardStore) ([]Move, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := store.ItemsOf(origin)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", origin, err)
	}
	var moves []Move
	for _, it := range items {
		dest := placement.Assign(newSnap, it)
		if dest == origin {
			continue
		}
		moves = append(moves, Move{Item: it, From: origin, To: dest})
	}
	return moves, nil
}

// Apply executes the plan against store, adding each item to its
// destination before removing it from its origin. It returns the number of
// completed moves.
func (p *Plan) Apply(store *storage.ShardStore) (int, error) {
	return p.apply(store, nil)
}

// apply runs afterAdd between the two halves of each move; an error from it
// stops the pass with the item present in both shards.
func (p *Plan) apply(store *storage.ShardStore, afterAdd func(Move) error) (int, error) {
	done := 0
	for _, m := range p.Moves() {
		if _, err := store.Add(m.To, m.Item); err != nil {
			return done, fmt.Errorf("move %s %s->%s: %w", m.Item.ID, m.From, m.To, err)
		}
		if afterAdd != nil {
			if err := afterAdd(m); err != nil {
				return done, err
			}
		}
		if err := store.Remove(m.From, m.Item); err != nil {
			return done, fmt.Errorf("move %s %s->%s: %w", m.Item.ID, m.From, m.To, err)
		}
		done++
	}
	return done, nil
}

// ExpectedMoves is the number of items a uniform distribution would move
// when the shard count changes from oldShards to newShards.
func ExpectedMoves(totalItems, oldShards, newShards int) float64 {
	if oldShards <= 0 || newShards <= 0 || oldShards == newShards {
		return 0
	}
	lo, hi := oldShards, newShards
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(totalItems) * (1 - float64(lo)/float64(hi))
}
