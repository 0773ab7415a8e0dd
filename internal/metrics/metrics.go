// Package metrics exposes the Prometheus collectors of the admission
// service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "admission",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "admission",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Workflow transitions by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	seatReservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "seats",
			Name:      "reservations_total",
			Help:      "Seat reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	seatsAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "admission",
			Subsystem: "seats",
			Name:      "available",
			Help:      "Seats left per course as of the last reservation.",
		},
		[]string{"course_id"},
	)

	bulkItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "bulk",
			Name:      "items_total",
			Help:      "Items processed by bulk operations.",
		},
		[]string{"operation", "outcome"},
	)

	letters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "letters",
			Name:      "issued_total",
			Help:      "Admission letter generation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "broker",
			Name:      "published_total",
			Help:      "Messages published to the broker by queue and outcome.",
		},
		[]string{"queue", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transitions,
		seatReservations,
		seatsAvailable,
		bulkItems,
		letters,
		published,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := strings.ToUpper(c.Request().Method)
			status := strconv.Itoa(c.Response().Status)
			httpRequests.WithLabelValues(method, route, status).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// RecordTransition counts one workflow transition.
func RecordTransition(operation, outcome string) {
	transitions.WithLabelValues(operation, outcome).Inc()
}

// RecordSeatReservation counts one reservation attempt.
func RecordSeatReservation(outcome string) {
	seatReservations.WithLabelValues(outcome).Inc()
}

// SetSeatsAvailable publishes the last known seat count of a course.
func SetSeatsAvailable(courseID uint64, available int) {
	seatsAvailable.WithLabelValues(strconv.FormatUint(courseID, 10)).Set(float64(available))
}

// RecordBulkItem counts one item of a bulk operation.
func RecordBulkItem(operation, outcome string) {
	bulkItems.WithLabelValues(operation, outcome).Inc()
}

// RecordLetter counts one letter generation attempt.
func RecordLetter(outcome string) {
	letters.WithLabelValues(outcome).Inc()
}

// RecordPublish counts one broker publish.
func RecordPublish(queue, outcome string) {
	published.WithLabelValues(queue, outcome).Inc()
}
