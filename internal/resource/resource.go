package resource

import (
	"time"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
)

const (
	// MaxChunkSize caps every rendered payload.
	MaxChunkSize = 64
	// ContentTypeText is the content type of every representation.
	ContentTypeText = "text/plain"
)

// Response is one rendered representation.
type Response struct {
	// Payload is the textual value; it aliases the caller buffer when one was given.
	Payload []byte
	// ContentType is always ContentTypeText.
	ContentType string
	// MaxAge is the caching hint; zero means none.
	MaxAge time.Duration
	// Truncated is set when the value did not fit the buffer.
	Truncated bool
}

// Resource is a named, readable node resource.
type Resource interface {
	// Name is the resource identity, e.g. "alarm_freezing".
	Name() string
	// Title is the link-format title, e.g. "ALARM-FREEZING".
	Title() string
	// Observable reports whether the resource emits notifications.
	Observable() bool
	// Read renders the current representation into buf.
	Read(buf []byte) Response
}

// Sensor exposes a sampler; every read advances the simulation.
type Sensor struct {
	name    string
	title   string
	sampler sensor.Sampler
}

// NewSensor wraps a sampler as a resource.
func NewSensor(name, title string, sampler sensor.Sampler) *Sensor {
	return &Sensor{
		name:    name,
		title:   title,
		sampler: sampler,
	}
}

// Name implements Resource.
func (s *Sensor) Name() string { return s.name }

// Title implements Resource.
func (s *Sensor) Title() string { return s.title }

// Observable implements Resource.
func (s *Sensor) Observable() bool { return false }

// Sampler returns the wrapped sensor.
func (s *Sensor) Sampler() sensor.Sampler { return s.sampler }

// Read samples the sensor and renders the fresh reading.
func (s *Sensor) Read(buf []byte) Response {
	text := sensor.AppendReading(make([]byte, 0, MaxChunkSize), s.sampler.Kind(), s.sampler.Sample())

	return render(buf, text, 0)
}

// Alarm exposes an evaluator; reads never trigger an evaluation.
type Alarm struct {
	name      string
	title     string
	evaluator *alarm.Evaluator
}

// NewAlarm wraps an evaluator as a resource named after the alarm.
func NewAlarm(title string, evaluator *alarm.Evaluator) *Alarm {
	return &Alarm{
		name:      evaluator.Name(),
		title:     title,
		evaluator: evaluator,
	}
}

// Name implements Resource.
func (a *Alarm) Name() string { return a.name }

// Title implements Resource.
func (a *Alarm) Title() string { return a.title }

// Observable implements Resource.
func (a *Alarm) Observable() bool { return true }

// Evaluator returns the wrapped evaluator.
func (a *Alarm) Evaluator() *alarm.Evaluator { return a.evaluator }

// Read renders the last computed status with max-age set to the period.
func (a *Alarm) Read(buf []byte) Response {
	return render(buf, []byte(a.evaluator.Status().String()), a.evaluator.Period())
}

// render copies text into buf, bounded by its capacity and MaxChunkSize.
func render(buf, text []byte, maxAge time.Duration) Response {
	if buf == nil {
		buf = make([]byte, 0, MaxChunkSize)
	}

	limit := min(cap(buf), MaxChunkSize)
	truncated := len(text) > limit

	if truncated {
		text = text[:limit]
	}

	return Response{
		Payload:     append(buf[:0], text...),
		ContentType: ContentTypeText,
		MaxAge:      maxAge,
		Truncated:   truncated,
	}
}
