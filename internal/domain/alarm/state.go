package alarm

import (
	"strconv"
	"time"
)

// Status is the alarm state: Inactive (0) or Active (1).
type Status int

const (
	// Inactive is the initial state.
	Inactive Status = 0
	// Active means the threshold predicate held on the last effective tick.
	Active Status = 1
)

// StatusOf maps a predicate result to a Status.
func StatusOf(active bool) Status {
	if active {
		return Active
	}

	return Inactive
}

// IsActive reports whether s is Active.
func (s Status) IsActive() bool {
	return s == Active
}

// String renders the status as the decimal integer observers receive.
func (s Status) String() string {
	return strconv.Itoa(int(s))
}

// State is a snapshot of one alarm.
type State struct {
	// Name identifies the alarm resource.
	Name string
	// Status is the last computed status.
	Status Status
	// ChangedAt is when Status last flipped; zero if it never did.
	ChangedAt time.Time
	// Reading is the sensor value seen on the last effective tick.
	Reading float64
	// Evaluations counts effective (gate open) ticks.
	Evaluations uint64
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Outcome describes what a tick did.
type Outcome int

const (
	// Skipped means the gate was closed: no sample, no comparison.
	Skipped Outcome = iota
	// Unchanged means the predicate result matched the stored status.
	Unchanged
	// Changed means the status flipped and the notifier was called.
	Changed
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}
