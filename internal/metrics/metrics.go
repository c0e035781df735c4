// Package metrics holds the Prometheus collectors of the API and the ledger
// services. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/friendcoin/friendcoin/internal/apperr"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry        *prometheus.Registry
	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	taxDestroyed    prometheus.Counter
	circulation     prometheus.Gauge
	overdueNotified prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "friendcoin_ledger_operations_total",
			Help: "Ledger operations by kind and outcome code.",
		}, []string{"kind", "outcome"}),
		taxDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "friendcoin_transfer_tax_fractions_total",
			Help: "Transfer tax withheld from senders, in friendship fractions.",
		}),
		circulation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "friendcoin_coins_in_circulation",
			Help: "Last observed total_coins_in_circulation.",
		}),
		overdueNotified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "friendcoin_overdue_loan_notices_total",
			Help: "Overdue loan notices sent by the sweep.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.operations, m.taxDestroyed, m.circulation, m.overdueNotified,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware measures request count, latency and concurrency per route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.From(err).Status
		}
		route := c.Route().Path
		labels := []string{c.Method(), route, strconv.Itoa(status)}
		m.httpRequests.WithLabelValues(labels...).Inc()
		m.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// ObserveOperation counts one ledger operation by its outcome.
func (m *Metrics) ObserveOperation(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = apperr.From(err).Code
	}
	m.operations.WithLabelValues(kind, outcome).Inc()
}

// AddTax records tax withheld by a transfer.
func (m *Metrics) AddTax(fractions int64) {
	if m == nil || fractions <= 0 {
		return
	}
	m.taxDestroyed.Add(float64(fractions))
}

// SetCirculation records the current circulation total.
func (m *Metrics) SetCirculation(total int64) {
	if m == nil {
		return
	}
	m.circulation.Set(float64(total))
}

// OverdueNotified counts overdue loan notices.
func (m *Metrics) OverdueNotified(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueNotified.Add(float64(n))
}
