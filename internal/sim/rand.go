package sim

import (
	"math/rand"
	"time"
)

// Source supplies uniform draws in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded generator. A zero seed uses the wall clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// SequenceSource replays a fixed list of draws, cycling when exhausted.
// It is used to replay recorded sessions and to pin exact values in tests.
type SequenceSource struct {
	values []float64
	next   int
}

// NewSequenceSource creates a source over values. An empty list always yields 0.5,
// which is the zero-noise draw for every random walk.
func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

// Float64 returns the next value in the sequence.
func (s *SequenceSource) Float64() float64 {
	if len(s.values) == 0 {
		s.next++
		return 0.5
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Draws returns how many values have been consumed.
func (s *SequenceSource) Draws() int {
	return s.next
}
