// Package position defines the circular coordinate space of the ring.
// Positions are degrees in [0, 360) derived from a 64-bit hash of the
// input bytes; equal inputs always land on the same position.
package position
