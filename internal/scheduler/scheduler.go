// Package scheduler drives periodic alarm evaluation.
//
// Each task gets its own goroutine and ticker; ticks of one task never overlap,
// so its notifications follow evaluation order.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/logger"
)

// Task is a periodic evaluation.
type Task interface {
	Name() string
	Period() time.Duration
	Tick(ctx context.Context) alarm.Outcome
	Status() alarm.Status
}

// Recorder receives the outcome of every tick.
type Recorder interface {
	Evaluated(name string, outcome alarm.Outcome, status alarm.Status)
}

// Scheduler runs tasks until its context is cancelled.
type Scheduler struct {
	tasks    []Task
	recorder Recorder
}

// New creates a scheduler; a nil recorder discards outcomes.
func New(recorder Recorder, tasks ...Task) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		recorder: recorder,
	}
}

// Run blocks until ctx is done and every task loop has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, task := range s.tasks {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.loop(ctx, task)
		}()
	}

	wg.Wait()
}

// loop ticks one task at its period.
func (s *Scheduler) loop(ctx context.Context, task Task) {
	ctx = logger.WithKV(ctx, "alarm", task.Name())

	ticker := time.NewTicker(task.Period())
	defer ticker.Stop()

	logger.DebugKV(ctx, "Periodic evaluation started", "period", task.Period().String())

	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "Periodic evaluation stopped")
			return
		case <-ticker.C:
			outcome := task.Tick(ctx)
			if s.recorder != nil {
				s.recorder.Evaluated(task.Name(), outcome, task.Status())
			}
		}
	}
}
