// Package metrics exposes prometheus counters for adjudication throughput.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ClaimsSubmitted  prometheus.Counter
	ClaimsAssigned   prometheus.Counter
	Dispositions     *prometheus.CounterVec
	OperationErrors  *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ClaimsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "m4a_claims_submitted_total",
			Help: "Claims accepted into the queue.",
		}),
		ClaimsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "m4a_claims_assigned_total",
			Help: "Claims assigned to a processor.",
		}),
		Dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "m4a_claim_dispositions_total",
			Help: "Terminal and intermediate dispositions by kind.",
		}, []string{"disposition"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "m4a_operation_errors_total",
			Help: "Engine operation failures by error kind.",
		}, []string{"kind"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "m4a_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
	}
	m.registry.MustRegister(
		m.ClaimsSubmitted, m.ClaimsAssigned, m.Dispositions,
		m.OperationErrors, m.RequestsInFlight,
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware tracks in-flight requests.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()
			return next(c)
		}
	}
}
