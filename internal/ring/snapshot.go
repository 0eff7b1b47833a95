package ring

import (
	"fmt"
	"sort"

	"shardring/internal/position"
)

// Snapshot is a point-in-time, read-only view of the ring ordered by
// position. A Snapshot always holds at least one label, so lookups never
// fail. It is safe for concurrent use.
type Snapshot struct {
	labels []Label
}

// NewSnapshot builds a snapshot directly from labels, without a live ring.
func NewSnapshot(labels ...Label) (*Snapshot, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyRing
	}
	sorted := make([]Label, 0, len(labels))
	for _, l := range labels {
		if !l.Position.Valid() {
			return nil, fmt.Errorf("%w: label %s", ErrPositionOutOfRange, l)
		}
		sorted = append(sorted, l)
	}
	sort.Slice(sorted, func(i, j int) bool { return labelLess(sorted[i], sorted[j]) })

	// drop exact duplicates
	out := sorted[:1]
	for _, l := range sorted[1:] {
		if l != out[len(out)-1] {
			out = append(out, l)
		}
	}
	return &Snapshot{labels: out}, nil
}

// Predecessor returns the label with the greatest position <= p, or the
// label with the smallest position when p precedes every label.
func (s *Snapshot) Predecessor(p position.Position) Label {
	s.mustHaveLabels()
	// first label strictly after p; the one before it is the predecessor
	idx := sort.Search(len(s.labels), func(i int) bool {
		return s.labels[i].Position > p
	})
	if idx == 0 {
		return s.labels[0]
	}
	return s.labels[idx-1]
}

// predecessorLinear is the O(n) scan Predecessor must agree with.
func (s *Snapshot) predecessorLinear(p position.Position) Label {
	s.mustHaveLabels()
	found := s.labels[0]
	for _, l := range s.labels {
		if l.Position > p {
			break
		}
		found = l
	}
	return found
}

// Owner returns the shard owning position p.
func (s *Snapshot) Owner(p position.Position) ShardID {
	return s.Predecessor(p).Shard
}

// PreferenceList returns up to k distinct shards for p: the owner first,
// then the shards met walking toward smaller positions, wrapping around.
func (s *Snapshot) PreferenceList(p position.Position, k int) []ShardID {
	if k <= 0 {
		return []ShardID{}
	}
	s.mustHaveLabels()

	idx := sort.Search(len(s.labels), func(i int) bool {
		return s.labels[i].Position > p
	}) - 1
	if idx < 0 {
		idx = 0
	}

	seen := make(map[ShardID]bool)
	result := make([]ShardID, 0, k)
	n := len(s.labels)
	for i := 0; i < n && len(result) < k; i++ {
		shard := s.labels[(idx-i+n)%n].Shard
		if !seen[shard] {
			seen[shard] = true
			result = append(result, shard)
		}
	}
	return result
}

// Labels returns a copy of the labels in ring order.
func (s *Snapshot) Labels() []Label {
	return append([]Label(nil), s.labels...)
}

// Len returns the number of labels.
func (s *Snapshot) Len() int {
	return len(s.labels)
}

// Shards returns the distinct shard identities, sorted.
func (s *Snapshot) Shards() []ShardID {
	seen := make(map[ShardID]bool)
	ids := make([]ShardID, 0)
	for _, l := range s.labels {
		if !seen[l.Shard] {
			seen[l.Shard] = true
			ids = append(ids, l.Shard)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasShard reports whether shard owns a label in the snapshot.
func (s *Snapshot) HasShard(shard ShardID) bool {
	for _, l := range s.labels {
		if l.Shard == shard {
			return true
		}
	}
	return false
}

// LabelsOf returns the labels owned by shard in ring order.
func (s *Snapshot) LabelsOf(shard ShardID) []Label {
	var out []Label
	for _, l := range s.labels {
		if l.Shard == shard {
			out = append(out, l)
		}
	}
	return out
}

// Arcs returns the fraction of the circle each shard owns. The first label
// owns everything below the second label, including the wrapped span
// [0, first); the last label owns up to 360.
func (s *Snapshot) Arcs() map[ShardID]float64 {
	s.mustHaveLabels()
	arcs := make(map[ShardID]float64)
	n := len(s.labels)
	for i, l := range s.labels {
		start := float64(l.Position)
		if i == 0 {
			start = 0
		}
		end := position.Circumference
		if i+1 < n {
			end = float64(s.labels[i+1].Position)
		}
		arcs[l.Shard] += (end - start) / position.Circumference
	}
	return arcs
}

func (s *Snapshot) mustHaveLabels() {
	if s == nil || len(s.labels) == 0 {
		panic(ErrEmptyRing)
	}
}
