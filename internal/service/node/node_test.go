package node

import (
	"context"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/domain/alarm"
)

// stepSource always draws the same value.
type stepSource int

// IntN returns the fixed draw.
func (s stepSource) IntN(int) int { return int(s) }

// newNode builds a node from defaults with scripted light, rain, traffic and acceleration draws.
func newNode(t *testing.T, cfg *config.Config, light, rain, traffic, accel int) *Node {
	t.Helper()

	n, err := New(cfg, WithSources(stepSource(light), stepSource(rain), stepSource(traffic), stepSource(accel)))
	require.NoError(t, err)

	return n
}

// evaluator returns the alarm named name.
func evaluator(t *testing.T, n *Node, name string) *alarm.Evaluator {
	t.Helper()

	for _, e := range n.Evaluators() {
		if e.Name() == name {
			return e
		}
	}

	require.FailNow(t, "alarm not found", name)

	return nil
}

// TestNew_RegistersResources checks names, order and discovery output.
func TestNew_RegistersResources(t *testing.T) {
	t.Parallel()

	n := newNode(t, config.Default(), 50, 50, 50, 50)

	var names []string
	for _, res := range n.Registry().Resources() {
		names = append(names, res.Name())
	}

	require.Equal(t, []string{
		SimLight, SimRain, SimTraffic, SimAcceleration, SimTemperature,
		AlarmAccel, AlarmFreezing, AlarmLights, AlarmTraffic,
	}, names)
	require.Equal(t, []string{AlarmAccel, AlarmFreezing, AlarmLights, AlarmTraffic}, n.AlarmNames())

	links := n.Registry().LinkFormat()
	require.Contains(t, links, `</my_res/alarm_accel>;title="ALARM-ACCEL";obs`)
	require.Contains(t, links, `</my_res/sim_light>;title="SIM-LIGHT"`)

	lights := evaluator(t, n, AlarmLights)
	require.Equal(t, 3*time.Second, lights.Period())
	require.InDelta(t, 500, lights.Threshold(), 0)
	require.Equal(t, "light", lights.SensorName())
}

// TestNew_Validation checks that bad settings and source counts are rejected.
func TestNew_Validation(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Alarms.Lights.Period = 0

	_, err := New(cfg)
	require.Error(t, err)

	_, err = New(config.Default(), WithSources(stepSource(0)))
	require.ErrorIs(t, err, errSourceCount)
}

// TestNode_AccelGate checks that gated alarms only evaluate while motion is detected.
func TestNode_AccelGate(t *testing.T) {
	t.Parallel()

	// Acceleration always decreases: it stays at 0 and the gate stays closed.
	still := newNode(t, config.Default(), 0, 50, 50, 0)
	require.Equal(t, alarm.Unchanged, evaluator(t, still, AlarmAccel).Tick(context.Background()))
	require.Equal(t, alarm.Skipped, evaluator(t, still, AlarmLights).Tick(context.Background()))
	require.Equal(t, alarm.Inactive, evaluator(t, still, AlarmLights).Status())

	// Acceleration always increases by 0.5: the accel alarm fires and opens the gate.
	moving := newNode(t, config.Default(), 0, 50, 50, 99)
	require.Equal(t, alarm.Changed, evaluator(t, moving, AlarmAccel).Tick(context.Background()))
	require.Equal(t, alarm.Changed, evaluator(t, moving, AlarmLights).Tick(context.Background()))
	require.Equal(t, alarm.Active, evaluator(t, moving, AlarmLights).Status())
}

// TestNode_GateDisabled checks that without the accel alarm every alarm evaluates.
func TestNode_GateDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.UseAccelAlarm = false

	n := newNode(t, cfg, 0, 50, 50, 0)
	n.Temperature().Store(-3)

	require.Equal(t, alarm.Changed, evaluator(t, n, AlarmFreezing).Tick(context.Background()))
	require.Equal(t, alarm.Changed, evaluator(t, n, AlarmLights).Tick(context.Background()))
	require.Equal(t, alarm.Unchanged, evaluator(t, n, AlarmTraffic).Tick(context.Background()))
}

// TestNode_SnapshotRestore checks that values and statuses survive a restart without notifications.
func TestNode_SnapshotRestore(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.UseAccelAlarm = false
	cfg.StateFile = filepath.Join(t.TempDir(), "snapshot.json")

	before := newNode(t, cfg, 0, 99, 50, 50)
	before.Temperature().Store(-5)
	require.Equal(t, alarm.Changed, evaluator(t, before, AlarmFreezing).Tick(context.Background()))
	require.Equal(t, alarm.Changed, evaluator(t, before, AlarmLights).Tick(context.Background()))
	require.NoError(t, before.SaveSnapshot(context.Background()))

	saved := before.Snapshot()
	require.InDelta(t, 128, saved.Sensors["light"], 0)
	require.InDelta(t, -5, saved.Sensors["temperature"], 0)

	after := newNode(t, cfg, 50, 50, 50, 50)

	sub, current, err := after.Hub().Subscribe(AlarmFreezing)
	require.NoError(t, err)
	require.Equal(t, "0", string(current.Response.Payload))

	require.NoError(t, after.Restore(context.Background()))
	require.Equal(t, saved.Sensors, after.Snapshot().Sensors)
	require.Equal(t, alarm.Active, evaluator(t, after, AlarmFreezing).Status())
	require.Equal(t, alarm.Active, evaluator(t, after, AlarmLights).Status())
	require.Equal(t, alarm.Inactive, evaluator(t, after, AlarmTraffic).Status())
	require.Empty(t, sub.C())
}

// TestNode_RestoreWithoutSnapshot checks that a missing file keeps the seeds.
func TestNode_RestoreWithoutSnapshot(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.StateFile = filepath.Join(t.TempDir(), "absent.json")

	n := newNode(t, cfg, 50, 50, 50, 50)
	require.NoError(t, n.Restore(context.Background()))
	require.InDelta(t, 256, n.Snapshot().Sensors["light"], 0)

	unsaved := newNode(t, config.Default(), 50, 50, 50, 50)
	require.NoError(t, unsaved.Restore(context.Background()))
	require.NoError(t, unsaved.SaveSnapshot(context.Background()))
}

// TestNode_Schedule checks that periodic evaluation notifies observers and closes them on shutdown.
func TestNode_Schedule(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		cfg := config.Default()
		cfg.UseAccelAlarm = false

		n := newNode(t, cfg, 50, 50, 50, 50)
		n.Temperature().Store(-10)

		sub, _, err := n.Hub().Subscribe(AlarmFreezing)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			n.Schedule(ctx)
			close(done)
		}()

		time.Sleep(time.Minute + time.Second)
		synctest.Wait()

		got := <-sub.C()
		require.Equal(t, "1", string(got.Response.Payload))
		require.Equal(t, alarm.Active, evaluator(t, n, AlarmFreezing).Status())

		cancel()
		<-done

		_, ok := <-sub.C()
		require.False(t, ok)
	})
}
