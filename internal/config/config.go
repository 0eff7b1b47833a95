package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"shardring/internal/ring"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ShardSpec is one entry of an explicit shard list.
type ShardSpec struct {
	ID     ring.ShardID
	Labels int
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config holds the run configuration.
type Config struct {
	InitialShards  int    `yaml:"initial_shards"`
	AddedShards    int    `yaml:"added_shards"`
	LabelsPerShard int    `yaml:"labels_per_shard"`
	Keys           int    `yaml:"keys"`
	Seed           uint64 `yaml:"seed"`
	Workers        int    `yaml:"workers"`
	ShardPrefix    string `yaml:"shard_prefix"`

	// Shards, when set, replaces InitialShards/LabelsPerShard for the
	// starting ring. Format: "id1=labels1,id2=labels2".
	Shards string `yaml:"shards"`

	Log LogConfig `yaml:"log"`
}

// Default returns the demonstration configuration: four shards grown to
// five, ten labels each, 1777 items.
func Default() Config {
	return Config{
		InitialShards:  4,
		AddedShards:    1,
		LabelsPerShard: 10,
		Keys:           1777,
		Workers:        1,
		ShardPrefix:    "shard_",
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config from path on top of Default(). A missing file
// yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects non-positive counts and a malformed shard list.
func (c *Config) Validate() error {
	if c.Shards == "" && c.InitialShards <= 0 {
		return fmt.Errorf("%w: initial_shards must be positive, got %d", ErrInvalidConfig, c.InitialShards)
	}
	if c.AddedShards < 0 {
		return fmt.Errorf("%w: added_shards must not be negative, got %d", ErrInvalidConfig, c.AddedShards)
	}
	if c.LabelsPerShard <= 0 {
		return fmt.Errorf("%w: labels_per_shard must be positive, got %d", ErrInvalidConfig, c.LabelsPerShard)
	}
	if c.Keys < 0 {
		return fmt.Errorf("%w: keys must not be negative, got %d", ErrInvalidConfig, c.Keys)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.Shards != "" {
		if _, err := ParseShards(c.Shards); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// InitialSpecs returns the starting shards: the explicit list if one is
// configured, otherwise InitialShards generated names with LabelsPerShard
// labels each.
func (c *Config) InitialSpecs() ([]ShardSpec, error) {
	if c.Shards != "" {
		return ParseShards(c.Shards)
	}
	names := c.ShardNames(0, c.InitialShards)
	specs := make([]ShardSpec, 0, len(names))
	for _, id := range names {
		specs = append(specs, ShardSpec{ID: id, Labels: c.LabelsPerShard})
	}
	return specs, nil
}

// ShardNames returns the shard identities prefix<from> .. prefix<to-1>.
func (c *Config) ShardNames(from, to int) []ring.ShardID {
	if to <= from {
		return nil
	}
	names := make([]ring.ShardID, 0, to-from)
	for i := from; i < to; i++ {
		names = append(names, ring.ShardID(c.ShardPrefix+strconv.Itoa(i)))
	}
	return names
}

// ParseShards parses a comma-separated list of shards in the format:
// "id1=labels1,id2=labels2,id3=labels3"
func ParseShards(shardsStr string) ([]ShardSpec, error) {
	if shardsStr == "" {
		return []ShardSpec{}, nil
	}

	parts := strings.Split(shardsStr, ",")
	specs := make([]ShardSpec, 0, len(parts))
	seen := make(map[ring.ShardID]bool, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected id=labels)", part)
		}

		id := strings.TrimSpace(kv[0])
		count := strings.TrimSpace(kv[1])

		if id == "" || count == "" {
			return nil, fmt.Errorf("shard ID and label count cannot be empty: %s", part)
		}

		n, err := strconv.Atoi(count)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("label count must be a positive integer: %s", part)
		}

		if seen[ring.ShardID(id)] {
			return nil, fmt.Errorf("duplicate shard: %s", id)
		}
		seen[ring.ShardID(id)] = true

		specs = append(specs, ShardSpec{
			ID:     ring.ShardID(id),
			Labels: n,
		})
	}

	return specs, nil
}
