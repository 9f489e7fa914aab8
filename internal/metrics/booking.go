// Package metrics defines the prometheus collectors exported by the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics records allocator outcomes. A nil *BookingMetrics is valid
// and records nothing.
type BookingMetrics struct {
	outcomes *prometheus.CounterVec
	lockWait prometheus.Histogram
	events   *prometheus.CounterVec
}

// NewBookingMetrics registers the booking collectors on reg.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "field_booking_allocations_total",
		Help: "Booking allocator operations by outcome.",
	}, []string{"operation", "outcome"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "field_booking_slot_lock_wait_seconds",
		Help:    "Time spent waiting for the per field/date slot lock.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "field_booking_events_total",
		Help: "Booking-created event deliveries by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, lockWait, events)
	return &BookingMetrics{outcomes: outcomes, lockWait: lockWait, events: events}
}

// IncOutcome counts one operation result, e.g. ("allocate", "slot_conflict").
func (m *BookingMetrics) IncOutcome(operation, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *BookingMetrics) ObserveLockWait(d time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *BookingMetrics) IncEvent(result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
