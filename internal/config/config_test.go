package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shardring/internal/ring"
)

func TestParseShards(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []ShardSpec
		wantErr bool
	}{
		{
			name:  "empty string",
			input: "",
			want:  []ShardSpec{},
		},
		{
			name:  "single shard",
			input: "alpha=10",
			want: []ShardSpec{
				{ID: "alpha", Labels: 10},
			},
		},
		{
			name:  "multiple shards",
			input: "a=1,b=2,c=3",
			want: []ShardSpec{
				{ID: "a", Labels: 1},
				{ID: "b", Labels: 2},
				{ID: "c", Labels: 3},
			},
		},
		{
			name:  "with spaces",
			input: "a = 5 , b = 7",
			want: []ShardSpec{
				{ID: "a", Labels: 5},
				{ID: "b", Labels: 7},
			},
		},
		{
			name:    "invalid format - no equals",
			input:   "a:5",
			wantErr: true,
		},
		{
			name:    "invalid format - empty ID",
			input:   "=5",
			wantErr: true,
		},
		{
			name:    "invalid format - empty count",
			input:   "a=",
			wantErr: true,
		},
		{
			name:    "invalid format - non-numeric count",
			input:   "a=ten",
			wantErr: true,
		},
		{
			name:    "invalid format - zero labels",
			input:   "a=0",
			wantErr: true,
		},
		{
			name:    "duplicate shard",
			input:   "a=1,a=2",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShards(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseShards() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if len(got) != len(tt.want) {
					t.Errorf("ParseShards() length = %d, want %d", len(got), len(tt.want))
					return
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Errorf("ParseShards()[%d] = %v, want %v", i, got[i], tt.want[i])
					}
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "zero initial shards", mutate: func(c *Config) { c.InitialShards = 0 }, wantErr: true},
		{name: "zero initial shards with explicit list", mutate: func(c *Config) { c.InitialShards = 0; c.Shards = "a=3" }},
		{name: "negative added shards", mutate: func(c *Config) { c.AddedShards = -1 }, wantErr: true},
		{name: "zero added shards", mutate: func(c *Config) { c.AddedShards = 0 }},
		{name: "zero labels", mutate: func(c *Config) { c.LabelsPerShard = 0 }, wantErr: true},
		{name: "negative keys", mutate: func(c *Config) { c.Keys = -5 }, wantErr: true},
		{name: "zero keys", mutate: func(c *Config) { c.Keys = 0 }},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "bad shard list", mutate: func(c *Config) { c.Shards = "a=x" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestShardNames(t *testing.T) {
	cfg := Default()

	got := cfg.ShardNames(4, 6)
	want := []ring.ShardID{"shard_4", "shard_5"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d names, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ShardNames()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if names := cfg.ShardNames(3, 3); len(names) != 0 {
		t.Errorf("Expected no names for an empty range, got %v", names)
	}
}

func TestInitialSpecs(t *testing.T) {
	cfg := Default()
	specs, err := cfg.InitialSpecs()
	if err != nil {
		t.Fatalf("InitialSpecs() failed: %v", err)
	}
	if len(specs) != 4 {
		t.Fatalf("Expected 4 specs, got %d", len(specs))
	}
	if specs[0] != (ShardSpec{ID: "shard_0", Labels: 10}) {
		t.Errorf("Unexpected first spec: %v", specs[0])
	}

	cfg.Shards = "x=2,y=3"
	specs, err = cfg.InitialSpecs()
	if err != nil {
		t.Fatalf("InitialSpecs() failed: %v", err)
	}
	if len(specs) != 2 || specs[1] != (ShardSpec{ID: "y", Labels: 3}) {
		t.Errorf("Unexpected explicit specs: %v", specs)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields default", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, "absent.yaml"))
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if cfg != Default() {
			t.Errorf("Expected default config, got %+v", cfg)
		}
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		data := "keys: 500\nworkers: 4\nlog:\n  level: debug\n  json: true\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if cfg.Keys != 500 || cfg.Workers != 4 {
			t.Errorf("Expected keys=500 workers=4, got keys=%d workers=%d", cfg.Keys, cfg.Workers)
		}
		if cfg.InitialShards != 4 || cfg.LabelsPerShard != 10 {
			t.Errorf("Expected defaults to survive, got %+v", cfg)
		}
		if cfg.Log.Level != "debug" || !cfg.Log.JSON {
			t.Errorf("Expected debug json logging, got %+v", cfg.Log)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("keys: [1, 2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected error for malformed YAML")
		}
	})
}
