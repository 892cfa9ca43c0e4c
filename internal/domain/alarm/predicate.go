package alarm

// Predicate decides whether a reading puts the alarm into the Active state.
type Predicate interface {
	Holds(reading float64) bool
	Threshold() float64
}

// AtOrBelow holds when the reading is less than or equal to the threshold.
type AtOrBelow float64

// Holds implements Predicate.
func (p AtOrBelow) Holds(reading float64) bool {
	return reading <= float64(p)
}

// Threshold implements Predicate.
func (p AtOrBelow) Threshold() float64 {
	return float64(p)
}

// AtOrAbove holds when the reading is greater than or equal to the threshold.
type AtOrAbove float64

// Holds implements Predicate.
func (p AtOrAbove) Holds(reading float64) bool {
	return reading >= float64(p)
}

// Threshold implements Predicate.
func (p AtOrAbove) Threshold() float64 {
	return float64(p)
}
