package sensor

import (
	"errors"
	"fmt"
)

// Kind selects the textual representation of a reading.
type Kind int

const (
	// Integer readings render as decimal integers.
	Integer Kind = iota
	// Decimal readings render as fixed-point text with six decimals.
	Decimal
)

// Names of the simulated sensors.
const (
	NameLight        = "light"
	NameTemperature  = "temperature"
	NameRain         = "rain"
	NameTraffic      = "traffic"
	NameAcceleration = "acceleration"
)

// Params describes one random-walk sensor.
type Params struct {
	// Name identifies the sensor.
	Name string
	// Kind selects integer or decimal rendering.
	Kind Kind
	// Initial is the seed value at process start.
	Initial float64
	// Min and Max bound the value.
	Min, Max float64
	// DecreasePercent is the width of the decrease range [0, DecreasePercent).
	DecreasePercent int
	// IncreasePercent is the width of the increase range [100-IncreasePercent, 100).
	IncreasePercent int
	// Rule computes the next value for a move.
	Rule Rule
}

var (
	// ErrInvalidBounds is returned when Min exceeds Max.
	ErrInvalidBounds = errors.New("min must not exceed max")
	// ErrInitialOutOfBounds is returned when the seed value is outside the bounds.
	ErrInitialOutOfBounds = errors.New("initial value out of bounds")
	// ErrInvalidPercent is returned when a probability is outside [0,100].
	ErrInvalidPercent = errors.New("probability must be within [0,100]")
	// ErrNoRule is returned when a random-walk sensor has no step rule.
	ErrNoRule = errors.New("step rule is required")
)

// Validate checks bounds, seed and probabilities.
// Overlapping ranges are accepted: the decrease range is checked first.
func (p Params) Validate() error {
	if p.Min > p.Max {
		return fmt.Errorf("sensor %s: %w", p.Name, ErrInvalidBounds)
	}

	if p.Initial < p.Min || p.Initial > p.Max {
		return fmt.Errorf("sensor %s: %w", p.Name, ErrInitialOutOfBounds)
	}

	if p.DecreasePercent < 0 || p.DecreasePercent > 100 ||
		p.IncreasePercent < 0 || p.IncreasePercent > 100 {
		return fmt.Errorf("sensor %s: %w", p.Name, ErrInvalidPercent)
	}

	if p.Rule == nil {
		return fmt.Errorf("sensor %s: %w", p.Name, ErrNoRule)
	}

	return nil
}

// LightParams halves or doubles an integer luminosity in [1, 65536].
func LightParams() Params {
	return Params{
		Name:            NameLight,
		Kind:            Integer,
		Initial:         256,
		Min:             1,
		Max:             65536,
		DecreasePercent: 25,
		IncreasePercent: 25,
		Rule:            Geometric{Divisor: 2, Multiplier: 2, Integral: true},
	}
}

// RainParams walks rain intensity in [0, 1] by 0.1.
func RainParams() Params {
	return Params{
		Name:            NameRain,
		Kind:            Decimal,
		Initial:         0,
		Min:             0,
		Max:             1,
		DecreasePercent: 30,
		IncreasePercent: 20,
		Rule:            Linear{Down: 0.1, Up: 0.1},
	}
}

// TrafficParams walks traffic density in [1, 2] by 0.1.
func TrafficParams() Params {
	return Params{
		Name:            NameTraffic,
		Kind:            Decimal,
		Initial:         1.4,
		Min:             1,
		Max:             2,
		DecreasePercent: 40,
		IncreasePercent: 40,
		Rule:            Linear{Down: 0.1, Up: 0.1},
	}
}

// AccelerationParams decays acceleration by 0.2 and bumps it by 0.5 in [0, 2].
func AccelerationParams() Params {
	return Params{
		Name:            NameAcceleration,
		Kind:            Decimal,
		Initial:         0,
		Min:             0,
		Max:             2,
		DecreasePercent: 50,
		IncreasePercent: 5,
		Rule:            Linear{Down: 0.2, Up: 0.5},
	}
}

// TemperatureParams describes the externally fed temperature sensor.
// The probabilities and rule are unused by Fixed.
func TemperatureParams() Params {
	return Params{
		Name:    NameTemperature,
		Kind:    Integer,
		Initial: 3,
		Min:     -50,
		Max:     60,
	}
}
