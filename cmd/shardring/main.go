// Command shardring builds a ring, places synthetic items on it, grows it
// and reports how many items moved.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"shardring/internal/config"
	"shardring/internal/datagen"
	"shardring/internal/logging"
	"shardring/internal/metrics"
	"shardring/internal/rebalance"
	"shardring/internal/ring"
	"shardring/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

// run returns the process exit code: 0 on success, 1 on a failed run,
// 2 on bad usage.
func run(ctx context.Context, args []string, out io.Writer) int {
	cfg, dump, err := parseFlags(args, out)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(out, "shardring: %v\n", err)
		return 2
	}

	logger := logging.New(cfg.Log, out)
	if err := execute(ctx, cfg, dump, logger); err != nil {
		logger.Error().Err(err).Msg("run failed")
		return 1
	}
	return 0
}

// parseFlags loads the config file named by -config and applies the flags
// that were set explicitly on top of it.
func parseFlags(args []string, out io.Writer) (config.Config, bool, error) {
	fs := flag.NewFlagSet("shardring", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		path     = fs.String("config", "", "path to a YAML config file")
		shards   = fs.Int("shards", 0, "initial number of shards")
		add      = fs.Int("add", 0, "number of shards to add")
		labels   = fs.Int("labels", 0, "labels per shard")
		keys     = fs.Int("keys", 0, "number of items to generate")
		seed     = fs.Uint64("seed", 0, "random seed (0 = time based)")
		workers  = fs.Int("workers", 0, "parallel workers for plan computation")
		level    = fs.String("log-level", "", "log level: debug, info, warn, error")
		jsonLogs = fs.Bool("log-json", false, "emit JSON logs")
		dump     = fs.Bool("dump", false, "log the full ring and shard contents at debug level")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, false, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, false, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "shards":
			cfg.InitialShards = *shards
			cfg.Shards = ""
		case "add":
			cfg.AddedShards = *add
		case "labels":
			cfg.LabelsPerShard = *labels
		case "keys":
			cfg.Keys = *keys
		case "seed":
			cfg.Seed = *seed
		case "workers":
			cfg.Workers = *workers
		case "log-level":
			cfg.Log.Level = *level
		case "log-json":
			cfg.Log.JSON = *jsonLogs
		}
	})

	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, *dump, nil
}

func execute(ctx context.Context, cfg config.Config, dump bool, logger zerolog.Logger) error {
	setupStart := time.Now()

	specs, err := cfg.InitialSpecs()
	if err != nil {
		return err
	}

	policy := ring.NewRandomPolicy(cfg.Seed)
	var labels []ring.Label
	for _, spec := range specs {
		positions := policy.Positions(spec.ID, 0, spec.Labels)
		for i, p := range positions {
			labels = append(labels, ring.Label{Shard: spec.ID, Position: p, Ordinal: i})
		}
		logger.Debug().Str("shard", string(spec.ID)).Interface("positions", positions).Msg("shard labels")
	}
	r, err := ring.New(labels...)
	if err != nil {
		return fmt.Errorf("build ring: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	rb := rebalance.New(r, storage.NewShardStore(), policy,
		rebalance.WithLogger(logger),
		rebalance.WithObserver(m),
		rebalance.WithWorkers(cfg.Workers),
	)
	m.ObservePhase(rebalance.PhaseSetup, time.Since(setupStart))

	logger.Info().
		Uint64("seed", cfg.Seed).
		Int("shards", len(specs)).
		Int("labels", r.Len()).
		Msg("ring built")

	items := datagen.Items(datagen.New(cfg.Seed).Names(cfg.Keys))
	if _, err := rb.Place(ctx, items); err != nil {
		return err
	}
	if err := rebalance.VerifyOwnership(rb.Ring(), rb.Store(), items); err != nil {
		return err
	}
	if dump {
		dumpState(logger, rb)
	}

	newIDs := cfg.ShardNames(len(specs), len(specs)+cfg.AddedShards)
	report, err := rb.AddShards(ctx, newIDs, cfg.LabelsPerShard)
	if err != nil {
		return err
	}
	if err := rebalance.VerifyOwnership(report.Ring, rb.Store(), items); err != nil {
		return err
	}
	if dump {
		dumpState(logger, rb)
	}

	logReport(logger, report)
	return logMetrics(logger, reg)
}

func logReport(logger zerolog.Logger, report *rebalance.Report) {
	for route, n := range report.Plan.Counts() {
		logger.Info().
			Str("from", string(route.From)).
			Str("to", string(route.To)).
			Int("items", n).
			Msg("route")
	}
	arcs := report.Ring.Arcs()
	for _, id := range report.NewShards {
		logger.Info().
			Str("shard", string(id)).
			Int("before", report.Before[id]).
			Int("after", report.After[id]).
			Float64("arc", arcs[id]).
			Msg("shard")
	}

	event := logger.Info()
	for phase, d := range report.Durations {
		event = event.Dur(string(phase), d)
	}
	event.
		Int("moved", report.Moved).
		Float64("expected", report.Expected).
		Int("items", report.TotalItems).
		Msg("summary")
}

func logMetrics(logger zerolog.Logger, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			event := logger.Info().Str("metric", f.GetName())
			for _, lp := range metric.GetLabel() {
				event = event.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				event = event.Float64("value", metric.GetCounter().GetValue())
			case metric.GetGauge() != nil:
				event = event.Float64("value", metric.GetGauge().GetValue())
			case metric.GetHistogram() != nil:
				event = event.
					Uint64("count", metric.GetHistogram().GetSampleCount()).
					Float64("sum", metric.GetHistogram().GetSampleSum())
			}
			event.Msg("metric")
		}
	}
	return nil
}

func dumpState(logger zerolog.Logger, rb *rebalance.Rebalancer) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	snap := rb.Ring()
	for _, l := range snap.Labels() {
		logger.Debug().
			Str("shard", string(l.Shard)).
			Int("ordinal", l.Ordinal).
			Float64("position", float64(l.Position)).
			Msg("label")
	}
	for _, id := range rb.Store().Shards() {
		dumpShard(logger, rb.Store(), id)
	}
}

func dumpShard(logger zerolog.Logger, store *storage.ShardStore, id ring.ShardID) {
	items, err := store.ItemsOf(id)
	if err != nil {
		logger.Error().Err(err).Str("shard", string(id)).Msg("dump shard failed")
		return
	}
	for _, it := range items {
		logger.Debug().
			Str("shard", string(id)).
			Stringer("id", it.ID).
			Float64("position", float64(it.Position)).
			Bytes("content", it.Content).
			Msg("item")
	}
}
