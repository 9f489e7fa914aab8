package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.IncOutcome("allocate", "ok")
	m.IncOutcome("allocate", "ok")
	m.IncOutcome("allocate", "slot_conflict")
	m.IncOutcome("", "")
	m.ObserveLockWait(20 * time.Millisecond)
	m.IncEvent("published")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("allocate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("allocate", "slot_conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("unknown", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("published")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BookingMetrics
	assert.NotPanics(t, func() {
		m.IncOutcome("allocate", "ok")
		m.ObserveLockWait(time.Second)
		m.IncEvent("failed")
	})
	assert.NotPanics(t, func() {
		NewBookingMetrics(nil).IncOutcome("cancel", "ok")
	})
}
