package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
	"github.com/oshokin/sensor-node/internal/observe"
	domain "github.com/oshokin/sensor-node/internal/resource"
)

// fixture is a registry with a temperature feed, its freezing alarm and a hub.
type fixture struct {
	server      *Server
	hub         *observe.Hub
	evaluator   *alarm.Evaluator
	temperature *sensor.Fixed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	temperature, err := sensor.NewFixed(sensor.TemperatureParams())
	require.NoError(t, err)

	registry := domain.NewRegistry("my_res")
	hub := observe.NewHub(registry)

	evaluator, err := alarm.New(alarm.Config{
		Name:      "alarm_freezing",
		Sensor:    temperature,
		Predicate: alarm.AtOrBelow(2),
		Period:    time.Minute,
	}, hub)
	require.NoError(t, err)

	require.NoError(t, registry.Register(domain.NewAlarm("ALARM-FREEZING", evaluator)))
	require.NoError(t, registry.Register(domain.NewSensor("sim_temperature", "SIM-TEMPERATURE", temperature)))

	return &fixture{
		server:      NewServer(registry, hub),
		hub:         hub,
		evaluator:   evaluator,
		temperature: temperature,
	}
}

// fakeStream captures messages sent by Observe.
type fakeStream struct {
	grpc.ServerStream

	ctx  context.Context //nolint:containedctx // Test double of a stream context.
	sent chan *structpb.Struct
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func (f *fakeStream) Send(msg *structpb.Struct) error {
	f.sent <- msg

	return nil
}

// TestServer_List ensures resources come back in registration order.
func TestServer_List(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	list, err := f.server.List(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)

	links, err := FromListValue(list)
	require.NoError(t, err)
	require.Equal(t, []Link{
		{Name: "alarm_freezing", Path: "my_res/alarm_freezing", Title: "ALARM-FREEZING", Observable: true},
		{Name: "sim_temperature", Path: "my_res/sim_temperature", Title: "SIM-TEMPERATURE"},
	}, links)
}

// TestServer_Get checks representations and error codes.
func TestServer_Get(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	msg, err := f.server.Get(context.Background(), wrapperspb.String("/my_res/sim_temperature"))
	require.NoError(t, err)

	rep, err := FromStruct(msg)
	require.NoError(t, err)
	require.Equal(t, "sim_temperature", rep.Name)
	require.Equal(t, "3", rep.Payload)
	require.Equal(t, domain.ContentTypeText, rep.ContentType)

	msg, err = f.server.Get(context.Background(), wrapperspb.String("alarm_freezing"))
	require.NoError(t, err)

	rep, err = FromStruct(msg)
	require.NoError(t, err)
	require.Equal(t, "0", rep.Payload)
	require.Equal(t, time.Minute, rep.MaxAge)

	_, err = f.server.Get(context.Background(), wrapperspb.String(" "))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.server.Get(context.Background(), wrapperspb.String("sim_missing"))
	require.Equal(t, codes.NotFound, status.Code(err))
}

// TestServer_Observe streams the current status and then each edge.
func TestServer_Observe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{ctx: ctx, sent: make(chan *structpb.Struct, 4)}
	done := make(chan error, 1)

	go func() {
		done <- f.server.Observe(wrapperspb.String("alarm_freezing"), stream)
	}()

	first, err := FromStruct(<-stream.sent)
	require.NoError(t, err)
	require.Equal(t, "0", first.Payload)
	require.Equal(t, uint64(0), first.Sequence)

	f.temperature.Store(-4)
	require.Equal(t, alarm.Changed, f.evaluator.Tick(ctx))

	second, err := FromStruct(<-stream.sent)
	require.NoError(t, err)
	require.Equal(t, "1", second.Payload)
	require.Equal(t, uint64(1), second.Sequence)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 0, f.hub.Observers())
}

// TestServer_ObserveErrors checks the status codes of rejected subscriptions.
func TestServer_ObserveErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	stream := &fakeStream{ctx: context.Background(), sent: make(chan *structpb.Struct, 1)}

	err := f.server.Observe(wrapperspb.String(""), stream)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	err = f.server.Observe(wrapperspb.String("sim_temperature"), stream)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = f.server.Observe(wrapperspb.String("alarm_missing"), stream)
	require.Equal(t, codes.NotFound, status.Code(err))

	f.hub.Close()

	err = f.server.Observe(wrapperspb.String("alarm_freezing"), stream)
	require.Equal(t, codes.Unavailable, status.Code(err))
}

// TestConvert_Roundtrip checks that representations survive the Struct encoding.
func TestConvert_Roundtrip(t *testing.T) {
	t.Parallel()

	want := Representation{
		Name:        "alarm_lights",
		Path:        "my_res/alarm_lights",
		Payload:     "1",
		ContentType: domain.ContentTypeText,
		MaxAge:      3 * time.Second,
		Sequence:    12,
		At:          time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	got, err := FromStruct(ToStruct(want))
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = FromStruct(new(structpb.Struct))
	require.ErrorIs(t, err, errMalformed)
}
