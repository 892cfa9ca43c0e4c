package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/oshokin/sensor-node/internal/api/grpc/resource"
	httpapi "github.com/oshokin/sensor-node/internal/api/http/resource"
	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/metrics"
	"github.com/oshokin/sensor-node/internal/observe"
	"github.com/oshokin/sensor-node/internal/repository/snapshot"
	"github.com/oshokin/sensor-node/internal/resource"
	"github.com/oshokin/sensor-node/internal/scheduler"
)

// Resource names.
const (
	SimLight        = "sim_light"
	SimTemperature  = "sim_temperature"
	SimRain         = "sim_rain"
	SimTraffic      = "sim_traffic"
	SimAcceleration = "sim_accel"

	AlarmAccel    = "alarm_accel"
	AlarmFreezing = "alarm_freezing"
	AlarmLights   = "alarm_lights"
	AlarmTraffic  = "alarm_traffic"
)

// Node owns every component of a running sensor node.
type Node struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	registry  *resource.Registry
	hub       *observe.Hub
	scheduler *scheduler.Scheduler
	repo      snapshot.Repository
	now       func() time.Time
	samplers  []sensor.Sampler

	temperature *sensor.Fixed
}

// Option customises a Node.
type Option func(*options)

type options struct {
	sources []sensor.Source
	now     func() time.Time
	repo    snapshot.Repository
}

// WithSources replaces the random sources of light, rain, traffic and acceleration, in that order.
func WithSources(sources ...sensor.Source) Option {
	return func(o *options) {
		o.sources = sources
	}
}

// WithClock overrides the clock of evaluators, hub and snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRepository overrides the snapshot repository derived from state_file.
func WithRepository(repo snapshot.Repository) Option {
	return func(o *options) {
		o.repo = repo
	}
}

// errSourceCount is returned when WithSources does not cover every simulator.
var errSourceCount = errors.New("one random source per simulated sensor is required")

// simulatedSensors is the number of random-walk sensors.
const simulatedSensors = 4

// New builds a node from validated configuration.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	if o.sources == nil {
		for _, src := range sensor.Sources(cfg.Seed, simulatedSensors) {
			o.sources = append(o.sources, src)
		}
	}

	if len(o.sources) != simulatedSensors {
		return nil, fmt.Errorf("%w: got %d", errSourceCount, len(o.sources))
	}

	if o.repo == nil && cfg.StateFile != "" {
		o.repo = snapshot.NewFileRepository(cfg.StateFile)
	}

	n := &Node{
		cfg:      cfg,
		metrics:  metrics.New(),
		registry: resource.NewRegistry(cfg.ResourcePrefix),
		repo:     o.repo,
		now:      o.now,
	}

	n.hub = observe.NewHub(n.registry, observe.WithRecorder(n.metrics), observe.WithClock(o.now))

	if err := n.buildSensors(o.sources); err != nil {
		return nil, err
	}

	if err := n.buildAlarms(); err != nil {
		return nil, err
	}

	evaluators := n.Evaluators()

	tasks := make([]scheduler.Task, 0, len(evaluators))
	for _, e := range evaluators {
		tasks = append(tasks, e)
	}

	n.scheduler = scheduler.New(n.metrics, tasks...)

	return n, nil
}

// buildSensors creates the simulators and the fixed temperature feed.
func (n *Node) buildSensors(sources []sensor.Source) error {
	s := n.cfg.Sensors

	walks := []struct {
		resource string
		title    string
		params   sensor.Params
		source   sensor.Source
	}{
		{
			SimLight, "SIM-LIGHT",
			walkParams(sensor.LightParams(), s.Light, sensor.Geometric{
				Divisor: s.Light.DecreaseStep, Multiplier: s.Light.IncreaseStep, Integral: true,
			}),
			sources[0],
		},
		{
			SimRain, "SIM-RAIN",
			walkParams(sensor.RainParams(), s.Rain, sensor.Linear{Down: s.Rain.DecreaseStep, Up: s.Rain.IncreaseStep}),
			sources[1],
		},
		{
			SimTraffic, "SIM-TRAFFIC",
			walkParams(sensor.TrafficParams(), s.Traffic, sensor.Linear{Down: s.Traffic.DecreaseStep, Up: s.Traffic.IncreaseStep}),
			sources[2],
		},
		{
			SimAcceleration, "SIM-ACCEL",
			walkParams(sensor.AccelerationParams(), s.Acceleration, sensor.Linear{
				Down: s.Acceleration.DecreaseStep, Up: s.Acceleration.IncreaseStep,
			}),
			sources[3],
		},
	}

	for _, w := range walks {
		sim, err := sensor.NewSimulator(w.params, w.source)
		if err != nil {
			return fmt.Errorf("build %s: %w", w.resource, err)
		}

		if err = n.addSensor(w.resource, w.title, sim); err != nil {
			return err
		}
	}

	temperatureParams := sensor.TemperatureParams()
	temperatureParams.Initial = s.Temperature.Initial
	temperatureParams.Min = s.Temperature.Min
	temperatureParams.Max = s.Temperature.Max

	temperature, err := sensor.NewFixed(temperatureParams)
	if err != nil {
		return fmt.Errorf("build %s: %w", SimTemperature, err)
	}

	n.temperature = temperature

	return n.addSensor(SimTemperature, "SIM-TEMPERATURE", temperature)
}

// addSensor instruments a sampler and registers it.
func (n *Node) addSensor(name, title string, sampler sensor.Sampler) error {
	n.samplers = append(n.samplers, sampler)

	if err := n.registry.Register(resource.NewSensor(name, title, n.metrics.Instrument(sampler))); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	return nil
}

// buildAlarms creates the evaluators; accel gates the others when enabled.
func (n *Node) buildAlarms() error {
	a := n.cfg.Alarms

	accel, err := n.addAlarm(AlarmAccel, "ALARM-ACCEL", SimAcceleration,
		alarm.AtOrAbove(a.Accel.Threshold), a.Accel.Period, alarm.AlwaysOpen)
	if err != nil {
		return err
	}

	gate := alarm.AlwaysOpen
	if n.cfg.UseAccelAlarm {
		gate = accel
	}

	gated := []struct {
		name      string
		title     string
		sensor    string
		predicate alarm.Predicate
		period    time.Duration
	}{
		{AlarmFreezing, "ALARM-FREEZING", SimTemperature, alarm.AtOrBelow(a.Freezing.Threshold), a.Freezing.Period},
		{AlarmLights, "ALARM-LIGHTS", SimLight, alarm.AtOrBelow(a.Lights.Threshold), a.Lights.Period},
		{AlarmTraffic, "ALARM-TRAFFIC", SimTraffic, alarm.AtOrAbove(a.Traffic.Threshold), a.Traffic.Period},
	}

	for _, g := range gated {
		if _, err = n.addAlarm(g.name, g.title, g.sensor, g.predicate, g.period, gate); err != nil {
			return err
		}
	}

	return nil
}

// addAlarm creates an evaluator over a registered sensor and registers it.
func (n *Node) addAlarm(
	name, title, sensorName string,
	predicate alarm.Predicate,
	period time.Duration,
	gate alarm.Gate,
) (*alarm.Evaluator, error) {
	res, err := n.registry.Lookup(sensorName)
	if err != nil {
		return nil, fmt.Errorf("alarm %s: %w", name, err)
	}

	sensorRes, ok := res.(*resource.Sensor)
	if !ok {
		return nil, fmt.Errorf("alarm %s: %s is not a sensor", name, sensorName)
	}

	evaluator, err := alarm.New(alarm.Config{
		Name:      name,
		Sensor:    sensorRes.Sampler(),
		Predicate: predicate,
		Period:    period,
		Gate:      gate,
	}, n.hub, alarm.WithClock(n.now))
	if err != nil {
		return nil, err
	}

	if err = n.registry.Register(resource.NewAlarm(title, evaluator)); err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}

	return evaluator, nil
}

// walkParams overlays configured values on the stock parameters of a sensor.
func walkParams(base sensor.Params, c config.Sensor, rule sensor.Rule) sensor.Params {
	base.Initial = c.Initial
	base.Min = c.Min
	base.Max = c.Max
	base.DecreasePercent = c.DecreasePercent
	base.IncreasePercent = c.IncreasePercent
	base.Rule = rule

	return base
}

// Registry returns the resource registry.
func (n *Node) Registry() *resource.Registry {
	return n.registry
}

// Hub returns the observe hub.
func (n *Node) Hub() *observe.Hub {
	return n.hub
}

// Metrics returns the node metrics.
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Temperature returns the externally fed temperature sensor.
func (n *Node) Temperature() *sensor.Fixed {
	return n.temperature
}

// Evaluators returns the alarms in registration order.
func (n *Node) Evaluators() []*alarm.Evaluator {
	return n.registry.Evaluators()
}

// AlarmNames returns the names of the observable resources.
func (n *Node) AlarmNames() []string {
	evaluators := n.Evaluators()

	names := make([]string, 0, len(evaluators))
	for _, e := range evaluators {
		names = append(names, e.Name())
	}

	return names
}

// RegisterGRPC registers the resource service on s.
func (n *Node) RegisterGRPC(s grpc.ServiceRegistrar) {
	grpcapi.RegisterResourceServiceServer(s, grpcapi.NewServer(n.registry, n.hub))
}

// Handler returns the HTTP facade including /metrics.
func (n *Node) Handler() http.Handler {
	return httpapi.NewHandler(n.registry, n.hub,
		httpapi.WithMetrics(n.metrics.Handler()),
		httpapi.WithWriteTimeout(n.cfg.Timeout))
}

// Schedule runs the evaluators until ctx is done, then closes every subscription.
func (n *Node) Schedule(ctx context.Context) {
	defer n.hub.Close()

	n.scheduler.Run(ctx)
}

// Snapshot captures current sensor values and alarm statuses without sampling.
func (n *Node) Snapshot() *snapshot.Snapshot {
	s := &snapshot.Snapshot{
		TakenAt: n.now(),
		Sensors: make(map[string]float64, len(n.samplers)),
		Alarms:  make(map[string]alarm.Status),
	}

	for _, sampler := range n.samplers {
		s.Sensors[sampler.Name()] = sampler.Value()
	}

	for _, e := range n.Evaluators() {
		s.Alarms[e.Name()] = e.Status()
	}

	return s
}

// Restore loads the snapshot, if any, into sensors and alarms without notifying.
func (n *Node) Restore(ctx context.Context) error {
	if n.repo == nil {
		return nil
	}

	s, err := n.repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, snapshot.ErrNotFound):
		logger.Info(ctx, "No snapshot to restore, starting from seeds")
		return nil
	default:
		return fmt.Errorf("load snapshot: %w", err)
	}

	for _, sampler := range n.samplers {
		if v, ok := s.Sensors[sampler.Name()]; ok {
			restored := sampler.Restore(v)
			logger.DebugKV(ctx, "Sensor restored", "sensor", sampler.Name(), "value", restored)
		}
	}

	for _, e := range n.Evaluators() {
		if status, ok := s.Alarms[e.Name()]; ok {
			e.Restore(status)
		}
	}

	logger.InfoKV(ctx, "Snapshot restored", "taken_at", s.TakenAt)

	return nil
}

// SaveSnapshot writes the current snapshot, if a repository is configured.
func (n *Node) SaveSnapshot(ctx context.Context) error {
	if n.repo == nil {
		return nil
	}

	if err := n.repo.Save(ctx, n.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	logger.Info(ctx, "Snapshot saved")

	return nil
}
