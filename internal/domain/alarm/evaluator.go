package alarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/sensor-node/internal/domain/sensor"
	"github.com/oshokin/sensor-node/internal/logger"
)

// Gate is the precondition an evaluator checks before each tick.
type Gate interface {
	Open() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

// Open implements Gate.
func (f GateFunc) Open() bool {
	return f()
}

// AlwaysOpen is the gate of ungated alarms.
//
//nolint:gochecknoglobals // Stateless gate shared by every ungated alarm.
var AlwaysOpen Gate = GateFunc(func() bool { return true })

// Notifier is called once per status edge, synchronously, before Tick returns.
type Notifier interface {
	Notify(ctx context.Context, name string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, name string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, name string) {
	f(ctx, name)
}

// Config describes one alarm.
type Config struct {
	// Name identifies the alarm resource and is passed to the notifier.
	Name string
	// Sensor is sampled on every effective tick.
	Sensor sensor.Sampler
	// Predicate decides the status from the reading.
	Predicate Predicate
	// Period is the re-evaluation interval.
	Period time.Duration
	// Gate must be open for a tick to have effect; nil means AlwaysOpen.
	Gate Gate
}

var (
	// ErrNameRequired is returned for an alarm without a name.
	ErrNameRequired = errors.New("alarm name is required")
	// ErrSensorRequired is returned for an alarm without a sensor.
	ErrSensorRequired = errors.New("alarm sensor is required")
	// ErrPredicateRequired is returned for an alarm without a predicate.
	ErrPredicateRequired = errors.New("alarm predicate is required")
	// ErrInvalidPeriod is returned for a non-positive period.
	ErrInvalidPeriod = errors.New("alarm period must be positive")
	// ErrNotifierRequired is returned when no notifier is provided.
	ErrNotifierRequired = errors.New("alarm notifier is required")
)

// Evaluator is the periodic state machine of one alarm.
type Evaluator struct {
	cfg      Config
	notifier Notifier
	now      func() time.Time

	// tickMu serialises ticks so notifications follow evaluation order.
	tickMu sync.Mutex
	// mu guards state; readers never wait for a tick in progress.
	mu    sync.RWMutex
	state State
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the clock used to stamp status changes.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// New validates the configuration and returns an Inactive evaluator.
func New(cfg Config, notifier Notifier, opts ...Option) (*Evaluator, error) {
	switch {
	case cfg.Name == "":
		return nil, ErrNameRequired
	case cfg.Sensor == nil:
		return nil, fmt.Errorf("alarm %s: %w", cfg.Name, ErrSensorRequired)
	case cfg.Predicate == nil:
		return nil, fmt.Errorf("alarm %s: %w", cfg.Name, ErrPredicateRequired)
	case cfg.Period <= 0:
		return nil, fmt.Errorf("alarm %s: %w", cfg.Name, ErrInvalidPeriod)
	case notifier == nil:
		return nil, fmt.Errorf("alarm %s: %w", cfg.Name, ErrNotifierRequired)
	}

	if cfg.Gate == nil {
		cfg.Gate = AlwaysOpen
	}

	e := &Evaluator{
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
		state: State{
			Name:   cfg.Name,
			Status: Inactive,
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Name returns the alarm name.
func (e *Evaluator) Name() string {
	return e.cfg.Name
}

// Period returns the re-evaluation interval.
func (e *Evaluator) Period() time.Duration {
	return e.cfg.Period
}

// Threshold returns the predicate threshold.
func (e *Evaluator) Threshold() float64 {
	return e.cfg.Predicate.Threshold()
}

// SensorName returns the name of the governed sensor.
func (e *Evaluator) SensorName() string {
	return e.cfg.Sensor.Name()
}

// Tick runs one evaluation. A closed gate makes it a no-op; otherwise the
// sensor is sampled and the notifier is called iff the status flipped.
func (e *Evaluator) Tick(ctx context.Context) Outcome {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	if !e.cfg.Gate.Open() {
		return Skipped
	}

	reading := e.cfg.Sensor.Sample()
	next := StatusOf(e.cfg.Predicate.Holds(reading))

	e.mu.Lock()
	prev := e.state.Status
	e.state.Reading = reading
	e.state.Evaluations++

	if next == prev {
		e.mu.Unlock()
		logger.DebugKV(ctx, "Alarm evaluated", "status", prev, "reading", reading)

		return Unchanged
	}

	e.state.Status = next
	e.state.ChangedAt = e.now()
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm status changed, notifying subscribers",
		"from", prev, "to", next, "reading", reading)

	e.notifier.Notify(ctx, e.cfg.Name)

	return Changed
}

// Status returns the last computed status without evaluating.
func (e *Evaluator) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.Status
}

// Open reports whether the alarm is Active, so an evaluator can gate others.
func (e *Evaluator) Open() bool {
	return e.Status().IsActive()
}

// Snapshot returns a copy of the alarm state.
func (e *Evaluator) Snapshot() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.Clone()
}

// Restore sets the status at start-up without notifying anyone.
func (e *Evaluator) Restore(status Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Status = StatusOf(status.IsActive())
}
