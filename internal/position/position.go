package position

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Circumference is the exclusive upper bound of the position space.
const Circumference = 360.0

// maxBelow is the largest representable position.
var maxBelow = math.Nextafter(Circumference, 0)

// Position is a coordinate on the ring, in degrees.
type Position float64

// Hash maps arbitrary bytes to a position.
func Hash(b []byte) Position {
	return FromUint64(xxhash.Sum64(b))
}

// HashString maps a string to a position without copying it.
func HashString(s string) Position {
	return FromUint64(xxhash.Sum64String(s))
}

// FromUint64 scales a 64-bit hash onto the ring: (h / 2^64) * 360.
// Only the top 53 bits are used so the division is exact in float64.
func FromUint64(h uint64) Position {
	p := float64(h>>11) / (1 << 53) * Circumference
	if p >= Circumference {
		p = maxBelow
	}
	return Position(p)
}

// Valid reports whether p lies in [0, 360).
func (p Position) Valid() bool {
	return p >= 0 && p < Circumference && !math.IsNaN(float64(p))
}

func (p Position) String() string {
	return strconv.FormatFloat(float64(p), 'f', 6, 64)
}
