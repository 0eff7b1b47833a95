package it

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"shardring/internal/config"
	"shardring/internal/datagen"
	"shardring/internal/item"
	"shardring/internal/metrics"
	"shardring/internal/rebalance"
	"shardring/internal/ring"
	"shardring/internal/storage"
)

// Cluster is an in-process ring plus shard store built from a Config.
type Cluster struct {
	cfg      config.Config
	rb       *rebalance.Rebalancer
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	items    []item.Item
	next     int
	mu       sync.Mutex
}

// NewCluster builds the initial ring from cfg. Label positions come from a
// RandomPolicy seeded with cfg.Seed.
func NewCluster(cfg config.Config, logger zerolog.Logger) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	specs, err := cfg.InitialSpecs()
	if err != nil {
		return nil, err
	}

	policy := ring.NewRandomPolicy(cfg.Seed)
	r, err := buildRing(specs, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to build ring: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	rb := rebalance.New(r, storage.NewShardStore(), policy,
		rebalance.WithLogger(logger),
		rebalance.WithObserver(m),
		rebalance.WithWorkers(cfg.Workers),
	)

	return &Cluster{
		cfg:      cfg,
		rb:       rb,
		metrics:  m,
		registry: reg,
		next:     len(specs),
	}, nil
}

func buildRing(specs []config.ShardSpec, policy ring.PositionPolicy) (*ring.Ring, error) {
	var labels []ring.Label
	for _, spec := range specs {
		for i, p := range policy.Positions(spec.ID, 0, spec.Labels) {
			labels = append(labels, ring.Label{Shard: spec.ID, Position: p, Ordinal: i})
		}
	}
	return ring.New(labels...)
}

// Load generates cfg.Keys names and places them.
func (c *Cluster) Load(ctx context.Context) error {
	items := datagen.Items(datagen.New(c.cfg.Seed).Names(c.cfg.Keys))
	if _, err := c.rb.Place(ctx, items); err != nil {
		return err
	}

	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
	return nil
}

// Grow adds n shards named after the configured prefix, continuing the
// numbering from the shards already created.
func (c *Cluster) Grow(ctx context.Context, n int) (*rebalance.Report, error) {
	c.mu.Lock()
	ids := c.cfg.ShardNames(c.next, c.next+n)
	c.next += n
	c.mu.Unlock()

	return c.rb.AddShards(ctx, ids, c.cfg.LabelsPerShard)
}

// Shrink removes the given shards.
func (c *Cluster) Shrink(ctx context.Context, ids ...ring.ShardID) (*rebalance.Report, error) {
	return c.rb.RemoveShards(ctx, ids)
}

// Verify checks that every loaded item lives in exactly its assigned shard.
func (c *Cluster) Verify() error {
	c.mu.Lock()
	items := append([]item.Item(nil), c.items...)
	c.mu.Unlock()

	return rebalance.VerifyOwnership(c.rb.Ring(), c.rb.Store(), items)
}

// Items returns the loaded items.
func (c *Cluster) Items() []item.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]item.Item(nil), c.items...)
}

// Ring returns the current ring snapshot.
func (c *Cluster) Ring() *ring.Snapshot {
	return c.rb.Ring()
}

// Store returns the shard store.
func (c *Cluster) Store() *storage.ShardStore {
	return c.rb.Store()
}

// Metrics returns the collectors fed by every pass.
func (c *Cluster) Metrics() *metrics.Metrics {
	return c.metrics
}

// Registry returns the registry the collectors are registered with.
func (c *Cluster) Registry() *prometheus.Registry {
	return c.registry
}
