package sensor

import (
	"fmt"
	"sync"
)

// Fixed is a sensor whose value only changes when stored from outside.
// Sampling returns the stored value unchanged.
type Fixed struct {
	params Params
	value  float64
	mu     sync.RWMutex
}

var _ Sampler = (*Fixed)(nil)

// NewFixed validates the bounds and seeds the value at Initial.
func NewFixed(params Params) (*Fixed, error) {
	if params.Min > params.Max {
		return nil, fmt.Errorf("sensor %s: %w", params.Name, ErrInvalidBounds)
	}

	if params.Initial < params.Min || params.Initial > params.Max {
		return nil, fmt.Errorf("sensor %s: %w", params.Name, ErrInitialOutOfBounds)
	}

	return &Fixed{
		params: params,
		value:  params.Initial,
	}, nil
}

// Name implements Sampler.
func (f *Fixed) Name() string {
	return f.params.Name
}

// Kind implements Sampler.
func (f *Fixed) Kind() Kind {
	return f.params.Kind
}

// Sample implements Sampler.
func (f *Fixed) Sample() float64 {
	return f.Value()
}

// Value implements Sampler.
func (f *Fixed) Value() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.value
}

// Store sets the externally measured value, clamped to the bounds.
func (f *Fixed) Store(value float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.value = clamp(value, f.params.Min, f.params.Max)

	return f.value
}

// Restore implements Sampler.
func (f *Fixed) Restore(value float64) float64 {
	return f.Store(value)
}
