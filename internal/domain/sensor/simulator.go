package sensor

import (
	"fmt"
	"sync"
)

// Source draws a uniform integer in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// Sampler is the capability the alarm evaluators and read handlers depend on.
type Sampler interface {
	// Name identifies the sensor.
	Name() string
	// Kind selects the textual representation.
	Kind() Kind
	// Sample advances the sensor and returns the fresh reading.
	Sample() float64
	// Value returns the current reading without advancing the sensor.
	Value() float64
	// Restore replaces the current reading, clamped to the sensor bounds.
	Restore(value float64) float64
}

// drawRange is the exclusive upper bound of a random draw.
const drawRange = 100

// Simulator is a bounded random-walk sensor.
type Simulator struct {
	// params holds the immutable walk configuration.
	params Params
	// source provides the uniform draws; guarded by mu.
	source Source
	// value is the current reading; guarded by mu.
	value float64
	// mu serialises draws and updates.
	mu sync.Mutex
}

var _ Sampler = (*Simulator)(nil)

// NewSimulator validates the parameters and seeds the walk at Initial.
func NewSimulator(params Params, source Source) (*Simulator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if source == nil {
		return nil, fmt.Errorf("sensor %s: source is required", params.Name)
	}

	return &Simulator{
		params: params,
		source: source,
		value:  params.Initial,
	}, nil
}

// Name implements Sampler.
func (s *Simulator) Name() string {
	return s.params.Name
}

// Kind implements Sampler.
func (s *Simulator) Kind() Kind {
	return s.params.Kind
}

// Params returns the walk configuration.
func (s *Simulator) Params() Params {
	return s.params
}

// Sample draws once and applies at most one saturating move.
func (s *Simulator) Sample() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.source.IntN(drawRange)

	switch {
	case r < s.params.DecreasePercent:
		if s.value > s.params.Min {
			s.value = clamp(s.params.Rule.Decrease(s.value), s.params.Min, s.params.Max)
		}
	case r >= drawRange-s.params.IncreasePercent:
		if s.value < s.params.Max {
			s.value = clamp(s.params.Rule.Increase(s.value), s.params.Min, s.params.Max)
		}
	}

	return s.value
}

// Value implements Sampler.
func (s *Simulator) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.value
}

// Restore implements Sampler.
func (s *Simulator) Restore(value float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = clamp(value, s.params.Min, s.params.Max)

	return s.value
}

// clamp saturates v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
