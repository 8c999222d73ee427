package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the slot reservation flows. All
// methods are nil-safe so components can run unmetered in tests.
type BookingMetrics struct {
	holdsTotal         *prometheus.CounterVec
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	holdsExpiredTotal  prometheus.Counter
	slotsGenerated     prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		holdsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citadental",
			Subsystem: "booking",
			Name:      "holds_total",
			Help:      "Hold attempts by outcome",
		}, []string{"outcome"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citadental",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome and acting role",
		}, []string{"outcome", "actor_role"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citadental",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		holdsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citadental",
			Subsystem: "booking",
			Name:      "holds_expired_total",
			Help:      "Holds reclaimed by the expiry reaper",
		}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citadental",
			Subsystem: "booking",
			Name:      "slots_generated_total",
			Help:      "Slots created by schedule generation",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.holdsTotal, m.bookingsTotal, m.cancellationsTotal, m.holdsExpiredTotal, m.slotsGenerated)
	return m
}

func (m *BookingMetrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holdsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveBooking(outcome, actorRole string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome, actorRole).Inc()
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveHoldExpired() {
	if m == nil {
		return
	}
	m.holdsExpiredTotal.Inc()
}

func (m *BookingMetrics) ObserveSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

// HTTPMetrics records request durations for the API middleware.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citadental",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.duration)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(method, route, status).Observe(seconds)
}
