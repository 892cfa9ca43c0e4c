package observe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
	"github.com/oshokin/sensor-node/internal/resource"
)

// countingRecorder records dispatch statistics.
type countingRecorder struct {
	mu        sync.Mutex
	notified  map[string]int
	observers int
}

func (c *countingRecorder) Notified(name string, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notified[name]++
}

func (c *countingRecorder) Observers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.observers = n
}

// fixture wires a freezing alarm, its temperature feed and a hub.
type fixture struct {
	hub         *Hub
	evaluator   *alarm.Evaluator
	temperature *sensor.Fixed
	recorder    *countingRecorder
}

// newFixture builds the registry, hub and freezing alarm.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	temperature, err := sensor.NewFixed(sensor.TemperatureParams())
	require.NoError(t, err)

	registry := resource.NewRegistry("my_res")
	recorder := &countingRecorder{notified: make(map[string]int)}
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	hub := NewHub(registry, WithRecorder(recorder), WithClock(func() time.Time { return at }))

	evaluator, err := alarm.New(alarm.Config{
		Name:      "alarm_freezing",
		Sensor:    temperature,
		Predicate: alarm.AtOrBelow(2),
		Period:    time.Minute,
	}, hub)
	require.NoError(t, err)

	require.NoError(t, registry.Register(resource.NewAlarm("ALARM-FREEZING", evaluator)))
	require.NoError(t, registry.Register(resource.NewSensor("sim_temperature", "SIM-TEMPERATURE", temperature)))

	return &fixture{
		hub:         hub,
		evaluator:   evaluator,
		temperature: temperature,
		recorder:    recorder,
	}
}

// TestHub_SubscribeReturnsCurrent ensures the registration response carries the current status.
func TestHub_SubscribeReturnsCurrent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	sub, current, err := f.hub.Subscribe("/my_res/alarm_freezing")
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, "alarm_freezing", current.Name)
	require.Equal(t, "my_res/alarm_freezing", current.Path)
	require.Equal(t, "0", string(current.Response.Payload))
	require.Equal(t, time.Minute, current.Response.MaxAge)
	require.Equal(t, 1, f.hub.Observers())
	require.Equal(t, 1, f.recorder.observers)
}

// TestHub_NotifyOnEdgeOnly drives the freezing alarm and checks observer deliveries.
func TestHub_NotifyOnEdgeOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	sub, _, err := f.hub.Subscribe("alarm_freezing")
	require.NoError(t, err)

	f.temperature.Store(1)
	require.Equal(t, alarm.Changed, f.evaluator.Tick(context.Background()))

	n := <-sub.C()
	require.Equal(t, "1", string(n.Response.Payload))
	require.EqualValues(t, 1, n.Sequence)

	require.Equal(t, alarm.Unchanged, f.evaluator.Tick(context.Background()))

	select {
	case extra := <-sub.C():
		t.Fatalf("unexpected notification %+v", extra)
	default:
	}

	require.Equal(t, 1, f.recorder.notified["alarm_freezing"])
}

// TestHub_SlowSubscriberKeepsLatest ensures an undrained subscriber sees the newest status.
func TestHub_SlowSubscriberKeepsLatest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	sub, _, err := f.hub.Subscribe("alarm_freezing")
	require.NoError(t, err)

	f.temperature.Store(0)
	f.evaluator.Tick(context.Background())
	f.temperature.Store(20)
	f.evaluator.Tick(context.Background())

	n := <-sub.C()
	require.Equal(t, "0", string(n.Response.Payload))
	require.EqualValues(t, 2, n.Sequence)
}

// TestHub_CancelAndClose covers subscription lifecycle.
func TestHub_CancelAndClose(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	first, _, err := f.hub.Subscribe("alarm_freezing")
	require.NoError(t, err)

	second, _, err := f.hub.Subscribe("alarm_freezing")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	first.Cancel()
	first.Cancel()

	_, open := <-first.C()
	require.False(t, open)
	require.Equal(t, 1, f.hub.Observers())

	f.hub.Close()

	_, open = <-second.C()
	require.False(t, open)
	require.Zero(t, f.hub.Observers())

	_, _, err = f.hub.Subscribe("alarm_freezing")
	require.ErrorIs(t, err, ErrClosed)

	// Notifications after close are dropped silently.
	f.hub.Notify(context.Background(), "alarm_freezing")
}

// TestHub_RejectsUnobservableAndUnknown covers subscription errors.
func TestHub_RejectsUnobservableAndUnknown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, _, err := f.hub.Subscribe("sim_temperature")
	require.ErrorIs(t, err, ErrNotObservable)

	_, _, err = f.hub.Subscribe("alarm_missing")
	require.ErrorIs(t, err, resource.ErrNotFound)

	f.hub.Notify(context.Background(), "alarm_missing")
	require.Zero(t, f.recorder.notified["alarm_missing"])
}

// switchingResource is an observable resource whose first read runs a hook.
type switchingResource struct {
	mu      sync.Mutex
	payload string
	onRead  func()
}

func (r *switchingResource) Name() string     { return "alarm_switching" }
func (r *switchingResource) Title() string    { return "ALARM-SWITCHING" }
func (r *switchingResource) Observable() bool { return true }

func (r *switchingResource) Read(buf []byte) resource.Response {
	r.mu.Lock()
	payload := r.payload
	hook := r.onRead
	r.onRead = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}

	return resource.Response{Payload: append(buf, payload...), ContentType: resource.ContentTypeText}
}

func (r *switchingResource) set(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.payload = payload
}

// singleResolver resolves every name to one resource.
type singleResolver struct {
	res resource.Resource
}

func (s singleResolver) Lookup(string) (resource.Resource, error) { return s.res, nil }
func (s singleResolver) Path(name string) string                  { return "my_res/" + name }

// TestHub_NotifyDuringSubscribe flips the status while the subscriber renders its
// current representation and checks the new status still reaches the subscriber.
func TestHub_NotifyDuringSubscribe(t *testing.T) {
	t.Parallel()

	res := &switchingResource{payload: "0"}
	hub := NewHub(singleResolver{res: res})

	notified := make(chan struct{})
	res.onRead = func() {
		res.set("1")

		go func() {
			defer close(notified)

			hub.Notify(context.Background(), res.Name())
		}()
	}

	sub, current, err := hub.Subscribe(res.Name())
	require.NoError(t, err)
	require.Equal(t, "0", string(current.Response.Payload))
	require.Zero(t, current.Sequence)

	select {
	case n := <-sub.C():
		require.Equal(t, "1", string(n.Response.Payload))
		require.EqualValues(t, 1, n.Sequence)
	case <-time.After(5 * time.Second):
		t.Fatal("notification fired during subscribe was lost")
	}

	<-notified
}
