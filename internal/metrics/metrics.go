package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seat_reservation"

// Metrics holds the reservation engine's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ReservationsCreated   prometheus.Counter
	ReservationsCancelled prometheus.Counter
	SeatsBooked           prometheus.Counter
	SelectionRejected     *prometheus.CounterVec
	HoldsPurged           prometheus.Counter
	TripsPurged           prometheus.Counter
	HTTPRequests          *prometheus.CounterVec
}

// New registers every collector plus the Go runtime collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations committed.",
		}),
		ReservationsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_cancelled_total",
			Help:      "Reservations cancelled by their owner.",
		}),
		SeatsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seats_booked_total",
			Help:      "Seats moved to occupied by reservations.",
		}),
		SelectionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_selection_rejected_total",
			Help:      "Seat selections or bookings refused, by reason.",
		}, []string{"reason"}),
		HoldsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_holds_purged_total",
			Help:      "Expired selection holds removed by maintenance.",
		}),
		TripsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_purged_total",
			Help:      "Departed trips removed by maintenance.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.ReservationsCreated,
		m.ReservationsCancelled,
		m.SeatsBooked,
		m.SelectionRejected,
		m.HoldsPurged,
		m.TripsPurged,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
