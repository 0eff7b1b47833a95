package position

import (
	"fmt"
	"math"
	"testing"
)

func TestFromUint64_Bounds(t *testing.T) {
	tests := []struct {
		name string
		h    uint64
		want Position
	}{
		{"zero", 0, 0},
		{"half", 1 << 63, 180},
		{"quarter", 1 << 62, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromUint64(tt.h); got != tt.want {
				t.Errorf("FromUint64(%d) = %v, want %v", tt.h, got, tt.want)
			}
		})
	}

	top := FromUint64(math.MaxUint64)
	if !top.Valid() {
		t.Errorf("Expected max hash to map inside the ring, got %v", top)
	}
	if top >= Circumference {
		t.Errorf("Expected position < %v, got %v", Circumference, top)
	}
}

func TestHash_Deterministic(t *testing.T) {
	inputs := []string{"", "a", "Jane Doe", "shard_0#3", "user:123"}
	for _, in := range inputs {
		p1 := Hash([]byte(in))
		p2 := Hash([]byte(in))
		p3 := HashString(in)
		if p1 != p2 || p1 != p3 {
			t.Errorf("Hash not deterministic for %q: %v %v %v", in, p1, p2, p3)
		}
	}
}

func TestHash_AlwaysValid(t *testing.T) {
	for i := 0; i < 10000; i++ {
		p := HashString(fmt.Sprintf("key-%d", i))
		if !p.Valid() {
			t.Fatalf("HashString(key-%d) = %v, outside [0, 360)", i, p)
		}
	}
}

func TestHash_Spread(t *testing.T) {
	// Four quadrants should each get a fair share of hashed keys.
	var quadrants [4]int
	n := 20000
	for i := 0; i < n; i++ {
		p := HashString(fmt.Sprintf("spread-%d", i))
		quadrants[int(p/90)]++
	}
	for q, c := range quadrants {
		frac := float64(c) / float64(n)
		if frac < 0.2 || frac > 0.3 {
			t.Errorf("Quadrant %d got %.3f of keys, expected ~0.25", q, frac)
		}
	}
}

func TestPosition_Valid(t *testing.T) {
	tests := []struct {
		p    Position
		want bool
	}{
		{0, true},
		{359.999, true},
		{360, false},
		{-0.1, false},
		{Position(math.NaN()), false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("Position(%v).Valid() = %v, want %v", float64(tt.p), got, tt.want)
		}
	}
}
