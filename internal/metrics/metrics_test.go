package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
)

// TestInstrument_RecordsSamples ensures wrapped samplers report every sample.
func TestInstrument_RecordsSamples(t *testing.T) {
	t.Parallel()

	m := New()

	temperature, err := sensor.NewFixed(sensor.TemperatureParams())
	require.NoError(t, err)

	s := m.Instrument(temperature)
	require.Equal(t, sensor.NameTemperature, s.Name())

	s.Sample()
	s.Sample()

	require.InDelta(t, 2, testutil.ToFloat64(m.samples.WithLabelValues(sensor.NameTemperature)), 0)
	require.InDelta(t, 3, testutil.ToFloat64(m.readings.WithLabelValues(sensor.NameTemperature)), 0)

	// Value does not count as a sample.
	s.Value()
	require.InDelta(t, 2, testutil.ToFloat64(m.samples.WithLabelValues(sensor.NameTemperature)), 0)
}

// TestEvaluated_TracksOutcomeAndStatus checks alarm counters.
func TestEvaluated_TracksOutcomeAndStatus(t *testing.T) {
	t.Parallel()

	m := New()

	m.Evaluated("alarm_lights", alarm.Skipped, alarm.Inactive)
	m.Evaluated("alarm_lights", alarm.Changed, alarm.Active)
	m.Evaluated("alarm_lights", alarm.Unchanged, alarm.Active)

	require.InDelta(t, 1, testutil.ToFloat64(m.evaluations.WithLabelValues("alarm_lights", "skipped")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.evaluations.WithLabelValues("alarm_lights", "changed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.status.WithLabelValues("alarm_lights")), 0)

	m.Notified("alarm_lights", 3)
	m.Observers(3)

	require.InDelta(t, 1, testutil.ToFloat64(m.notifications.WithLabelValues("alarm_lights")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(m.observers), 0)
}

// TestHandler_ServesExposition ensures the handler renders node metrics.
func TestHandler_ServesExposition(t *testing.T) {
	t.Parallel()

	m := New()
	m.Evaluated("alarm_accel", alarm.Changed, alarm.Active)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `sensor_node_alarm_status{alarm="alarm_accel"} 1`))
}
