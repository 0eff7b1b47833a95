package rebalance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shardring/internal/item"
	"shardring/internal/placement"
	"shardring/internal/position"
	"shardring/internal/ring"
	"shardring/internal/storage"
)

// Phase names a timed step of placement or resharding.
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhasePlacement Phase = "placement"
	PhaseCompute   Phase = "compute"
	PhaseApply     Phase = "apply"
)

// Observer receives timings and pass results.
type Observer interface {
	ObservePhase(phase Phase, elapsed time.Duration)
	ObservePass(report *Report)
}

type nopObserver struct{}

func (nopObserver) ObservePhase(Phase, time.Duration) {}

func (nopObserver) ObservePass(*Report) {}

// Report describes one resharding pass.
type Report struct {
	Plan       *Plan
	Moved      int
	Expected   float64
	TotalItems int
	OldShards  []ring.ShardID
	NewShards  []ring.ShardID
	Before     map[ring.ShardID]int
	After      map[ring.ShardID]int
	Ring       *ring.Snapshot
	Durations  map[Phase]time.Duration
}

// Option configures a Rebalancer.
type Option func(*Rebalancer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(rb *Rebalancer) { rb.logger = l }
}

// WithObserver sets the phase observer.
func WithObserver(o Observer) Option {
	return func(rb *Rebalancer) { rb.observer = o }
}

// WithWorkers sets how many origin shards are scanned concurrently.
func WithWorkers(n int) Option {
	return func(rb *Rebalancer) {
		if n > 0 {
			rb.workers = n
		}
	}
}

// Rebalancer owns the live ring and store and runs passes one at a time.
type Rebalancer struct {
	mu       sync.Mutex // serializes passes
	ring     *ring.Ring
	store    *storage.ShardStore
	policy   ring.PositionPolicy
	logger   zerolog.Logger
	observer Observer
	workers  int
}

// New creates a Rebalancer and registers every shard already on r in store.
func New(r *ring.Ring, store *storage.ShardStore, policy ring.PositionPolicy, opts ...Option) *Rebalancer {
	rb := &Rebalancer{
		ring:     r,
		store:    store,
		policy:   policy,
		logger:   zerolog.Nop(),
		observer: nopObserver{},
		workers:  1,
	}
	for _, opt := range opts {
		opt(rb)
	}
	for _, id := range r.Shards() {
		store.AddShard(id)
	}
	return rb
}

// Ring returns a snapshot of the live ring.
func (rb *Rebalancer) Ring() *ring.Snapshot {
	return rb.ring.Snapshot()
}

// Store returns the shard store.
func (rb *Rebalancer) Store() *storage.ShardStore {
	return rb.store
}

// Place assigns items to their owners under the current ring.
func (rb *Rebalancer) Place(ctx context.Context, items []item.Item) (map[ring.ShardID]int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	snap := rb.ring.Snapshot()
	placed, err := placement.Place(snap, rb.store, items)
	rb.observer.ObservePhase(PhasePlacement, time.Since(start))
	if err != nil {
		rb.logger.Error().Err(err).Msg("placement failed")
		return placed, err
	}
	rb.logger.Info().
		Int("items", len(items)).
		Int("labels", snap.Len()).
		Int("shards", len(snap.Shards())).
		Dur("elapsed", time.Since(start)).
		Msg("items placed")
	return placed, nil
}

// AddShards puts labelsPerShard labels on the ring for each new shard, as
// positioned by the policy, and moves the items whose owner changed.
// Adding no shards is a no-op with an empty plan. A shard is registered in
// the store only together with its labels.
func (rb *Rebalancer) AddShards(ctx context.Context, ids []ring.ShardID, labelsPerShard int) (*Report, error) {
	unique := dedupe(ids)
	if len(unique) > 0 && labelsPerShard <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoLabels, labelsPerShard)
	}
	return rb.pass(ctx, func() error {
		positions := make([][]position.Position, len(unique))
		for i, id := range unique {
			positions[i] = rb.policy.Positions(id, rb.ring.NextOrdinal(id), labelsPerShard)
			if len(positions[i]) == 0 {
				return fmt.Errorf("%w: policy placed none for shard %s", ErrNoLabels, id)
			}
			for _, p := range positions[i] {
				if !p.Valid() {
					return fmt.Errorf("%w: shard %s at %v", ring.ErrPositionOutOfRange, id, float64(p))
				}
			}
		}
		for i, id := range unique {
			labels, err := rb.ring.AddShard(id, positions[i])
			if err != nil {
				return err
			}
			rb.store.AddShard(id)
			rb.logger.Debug().Str("shard", string(id)).Interface("labels", labels).Msg("shard labels added")
		}
		return nil
	}, nil)
}

// RemoveShards takes every label of the given shards off the ring, moves
// their items to the new owners, and drops the emptied shards.
func (rb *Rebalancer) RemoveShards(ctx context.Context, ids []ring.ShardID) (*Report, error) {
	unique := dedupe(ids)
	return rb.pass(ctx, func() error {
		for _, id := range unique {
			if !rb.ring.HasShard(id) {
				return fmt.Errorf("%w: %s", ring.ErrUnknownShard, id)
			}
		}
		if len(unique) > 0 && len(unique) == len(rb.ring.Shards()) {
			return fmt.Errorf("%w: cannot remove every shard", ring.ErrEmptyRing)
		}
		for _, id := range unique {
			n, err := rb.ring.RemoveShard(id)
			if err != nil {
				return err
			}
			rb.logger.Debug().Str("shard", string(id)).Int("labels", n).Msg("shard labels removed")
		}
		return nil
	}, func() error {
		for _, id := range unique {
			if err := rb.store.DropShard(id); err != nil {
				return err
			}
		}
		return nil
	})
}

// pass runs mutate between two snapshots, then computes and applies the plan.
func (rb *Rebalancer) pass(ctx context.Context, mutate, finish func() error) (*Report, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Durations: make(map[Phase]time.Duration)}
	timed := func(phase Phase, fn func() error) error {
		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		report.Durations[phase] = elapsed
		rb.observer.ObservePhase(phase, elapsed)
		return err
	}

	var oldSnap, newSnap *ring.Snapshot
	err := timed(PhaseSetup, func() error {
		oldSnap = rb.ring.Snapshot()
		report.Before = rb.store.Counts()
		if err := mutate(); err != nil {
			return err
		}
		newSnap = rb.ring.Snapshot()
		return nil
	})
	if err != nil {
		rb.logger.Error().Err(err).Msg("ring change failed")
		return nil, fmt.Errorf("reshard setup: %w", err)
	}
	report.OldShards = oldSnap.Shards()
	report.NewShards = newSnap.Shards()
	report.Ring = newSnap
	for _, n := range report.Before {
		report.TotalItems += n
	}
	report.Expected = ExpectedMoves(report.TotalItems, len(report.OldShards), len(report.NewShards))

	err = timed(PhaseCompute, func() error {
		plan, err := ComputePlan(ctx, oldSnap, newSnap, rb.store, rb.workers)
		report.Plan = plan
		return err
	})
	if err != nil {
		rb.logger.Error().Err(err).Msg("computing relocation plan failed")
		return nil, fmt.Errorf("reshard compute: %w", err)
	}
	if rb.logger.GetLevel() <= zerolog.DebugLevel {
		for _, m := range report.Plan.Moves() {
			rb.logger.Debug().
				Stringer("item", m.Item.ID).
				Float64("position", float64(m.Item.Position)).
				Str("from", string(m.From)).
				Str("to", string(m.To)).
				Msg("moving item")
		}
	}

	err = timed(PhaseApply, func() error {
		n, err := report.Plan.Apply(rb.store)
		report.Moved = n
		if err != nil {
			return err
		}
		if finish != nil {
			return finish()
		}
		return nil
	})
	if err != nil {
		// the ring already changed; items may be duplicated but none are lost
		rb.logger.Error().Err(err).Int("moved", report.Moved).Int("planned", report.Plan.Len()).
			Msg("applying relocation plan failed")
		return report, fmt.Errorf("reshard apply: %w", err)
	}
	report.After = rb.store.Counts()

	rb.logger.Info().
		Int("old_shards", len(report.OldShards)).
		Int("new_shards", len(report.NewShards)).
		Int("items", report.TotalItems).
		Int("moved", report.Moved).
		Float64("expected", report.Expected).
		Msg("resharding finished")
	rb.observer.ObservePass(report)
	return report, nil
}

func dedupe(ids []ring.ShardID) []ring.ShardID {
	seen := make(map[ring.ShardID]bool, len(ids))
	out := make([]ring.ShardID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
