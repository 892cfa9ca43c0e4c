package scheduler

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
	"github.com/oshokin/sensor-node/internal/logger"
)

// countingTask counts ticks.
type countingTask struct {
	name   string
	period time.Duration

	mu    sync.Mutex
	ticks int
}

func (c *countingTask) Name() string          { return c.name }
func (c *countingTask) Period() time.Duration { return c.period }
func (c *countingTask) Status() alarm.Status  { return alarm.Inactive }
func (c *countingTask) Tick(context.Context) alarm.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++

	return alarm.Unchanged
}

// count returns the number of ticks so far.
func (c *countingTask) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ticks
}

// outcomeRecorder counts recorded outcomes per task.
type outcomeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeRecorder) Evaluated(name string, _ alarm.Outcome, _ alarm.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.counts[name]++
}

// TestScheduler_TicksAtPeriods runs two tasks on a fake clock.
func TestScheduler_TicksAtPeriods(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		lights := &countingTask{name: "alarm_lights", period: 3 * time.Second}
		freezing := &countingTask{name: "alarm_freezing", period: time.Minute}
		recorder := &outcomeRecorder{counts: make(map[string]int)}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			New(recorder, lights, freezing).Run(ctx)
			close(done)
		}()

		time.Sleep(2*time.Minute + time.Second)
		synctest.Wait()

		require.Equal(t, 40, lights.count())
		require.Equal(t, 2, freezing.count())
		require.Equal(t, 40, recorder.counts["alarm_lights"])

		cancel()
		<-done

		time.Sleep(time.Hour)
		require.Equal(t, 40, lights.count())
	})
}

// TestScheduler_NilRecorder ensures a scheduler without recorder still ticks.
func TestScheduler_NilRecorder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		task := &countingTask{name: "alarm_accel", period: time.Second}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second+time.Millisecond)
		defer cancel()

		New(nil, task).Run(ctx)

		require.Equal(t, 5, task.count())
	})
}

// nopNotifier discards notifications.
type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}

// TestScheduler_TickLogsCarryAlarmOnce checks evaluator log lines name the alarm exactly once.
func TestScheduler_TickLogsCarryAlarmOnce(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		temperature, err := sensor.NewFixed(sensor.TemperatureParams())
		require.NoError(t, err)
		temperature.Store(1)

		freezing, err := alarm.New(alarm.Config{
			Name:      "alarm_freezing",
			Sensor:    temperature,
			Predicate: alarm.AtOrBelow(2),
			Period:    time.Minute,
		}, nopNotifier{})
		require.NoError(t, err)

		core, logs := observer.New(zapcore.DebugLevel)
		ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute+time.Second)
		defer cancel()

		New(nil, freezing).Run(ctx)

		changed := logs.FilterMessage("Alarm status changed, notifying subscribers").All()
		require.Len(t, changed, 1)

		evaluated := logs.FilterMessage("Alarm evaluated").All()
		require.Len(t, evaluated, 1)

		for _, entry := range append(changed, evaluated...) {
			keys := 0

			for _, field := range entry.Context {
				if field.Key == "alarm" {
					keys++
				}
			}

			require.Equal(t, 1, keys, entry.Message)
			require.Equal(t, "alarm_freezing", entry.ContextMap()["alarm"])
		}
	})
}
