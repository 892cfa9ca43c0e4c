package sensor

import "math"

// Rule computes the unclamped next value for a decrease or increase move.
type Rule interface {
	Decrease(value float64) float64
	Increase(value float64) float64
}

// resolution is the number of steps per unit readings are snapped to,
// matching the six decimals of the rendered value.
const resolution = 1e6

// snap rounds v to the nearest multiple of 1/resolution. Negative zero becomes zero.
func snap(v float64) float64 {
	steps := math.Round(v * resolution)
	if steps == 0 {
		return 0
	}

	return steps / resolution
}

// Linear moves the value by fixed, possibly asymmetric, deltas.
// Results are snapped so equal renderings compare equal.
type Linear struct {
	// Down is subtracted on a decrease move.
	Down float64
	// Up is added on an increase move.
	Up float64
}

// Decrease implements Rule.
func (l Linear) Decrease(value float64) float64 {
	return snap(value - l.Down)
}

// Increase implements Rule.
func (l Linear) Increase(value float64) float64 {
	return snap(value + l.Up)
}

// Geometric divides the value on decrease and multiplies it on increase.
// Integral rules truncate toward zero, matching integer sensors.
type Geometric struct {
	// Divisor is applied on a decrease move.
	Divisor float64
	// Multiplier is applied on an increase move.
	Multiplier float64
	// Integral truncates results toward zero.
	Integral bool
}

// Decrease implements Rule.
func (g Geometric) Decrease(value float64) float64 {
	return g.round(value / g.Divisor)
}

// Increase implements Rule.
func (g Geometric) Increase(value float64) float64 {
	return g.round(value * g.Multiplier)
}

// round truncates integral results.
func (g Geometric) round(v float64) float64 {
	if g.Integral {
		return math.Trunc(v)
	}

	return snap(v)
}
