package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the gateway. Unlike the
// per-tenant vectors a connection-pooling proxy needs, a single-backend
// gateway has exactly one thing to measure for most of these, so most
// metrics here are plain Gauge/Counter/Histogram rather than *Vec — the
// label dimensions that remain (translated kind, SQLSTATE class, query
// mode) are the ones
// spec §7's error taxonomy and §4.4's query/command split actually vary.
type Collector struct {
	Registry *prometheus.Registry

	sessionsActive     prometheus.Gauge
	authFailuresTotal  prometheus.Counter
	queriesTranslated  *prometheus.CounterVec
	queriesExecuted    *prometheus.CounterVec
	backendErrorsTotal *prometheus.CounterVec
	handshakeDuration  prometheus.Histogram
	queryDuration      *prometheus.HistogramVec

	connectionsActive  prometheus.Gauge
	connectionsWaiting prometheus.Gauge
	poolExhaustedTotal prometheus.Counter

	backendHealthy prometheus.Gauge
}

// New creates and registers all Prometheus metrics using a custom
// registry. Safe to call multiple times (e.g. in tests) since each call
// produces an independent registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_sessions_active",
			Help: "Number of MySQL client sessions currently connected",
		}),
		authFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_auth_failures_total",
			Help: "Total number of failed client authentication attempts",
		}),
		queriesTranslated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_queries_translated_total",
			Help: "Total number of COM_QUERY statements passed through the translator, by outcome kind",
		}, []string{"kind"}),
		queriesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_queries_executed_total",
			Help: "Total number of statements forwarded to the PostgreSQL backend",
		}, []string{"mode"}),
		backendErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_backend_errors_total",
			Help: "Total backend errors by SQLSTATE class",
		}, []string{"sqlstate_class"}),
		handshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_handshake_duration_seconds",
			Help:    "Duration of the MySQL handshake + authentication leg",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_query_duration_seconds",
			Help:    "Duration from COM_QUERY receipt to result-set emission",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"mode"}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_backend_connections_active",
			Help: "Number of leased PostgreSQL backend connections",
		}),
		connectionsWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_backend_connections_waiting",
			Help: "Number of sessions waiting to acquire a PostgreSQL backend connection",
		}),
		poolExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_pool_exhausted_total",
			Help: "Total number of times a backend connection acquire had to wait because the pool was at capacity",
		}),
		backendHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_backend_healthy",
			Help: "1 if the last backend health probe succeeded, 0 otherwise",
		}),
	}

	reg.MustRegister(
		c.sessionsActive,
		c.authFailuresTotal,
		c.queriesTranslated,
		c.queriesExecuted,
		c.backendErrorsTotal,
		c.handshakeDuration,
		c.queryDuration,
		c.connectionsActive,
		c.connectionsWaiting,
		c.poolExhaustedTotal,
		c.backendHealthy,
	)

	return c
}

// SessionOpened/SessionClosed track the active session gauge.
func (c *Collector) SessionOpened() { c.sessionsActive.Inc() }
func (c *Collector) SessionClosed() { c.sessionsActive.Dec() }

// AuthFailure increments the auth-failure counter (spec §4.2.2's Access
// Denied outcome).
func (c *Collector) AuthFailure() { c.authFailuresTotal.Inc() }

// QueryTranslated records a Translator outcome by its Statement kind
// ("forwarded", "intercepted", "noop", "error").
func (c *Collector) QueryTranslated(kind string) {
	c.queriesTranslated.WithLabelValues(kind).Inc()
}

// QueryExecuted records a statement the Executor ran, by mode ("query" or
// "command", per spec §4.4).
func (c *Collector) QueryExecuted(mode string) {
	c.queriesExecuted.WithLabelValues(mode).Inc()
}

// BackendError records a backend error by its SQLSTATE class (the first
// two characters of the 5-character code).
func (c *Collector) BackendError(sqlState string) {
	class := "unknown"
	if len(sqlState) >= 2 {
		class = sqlState[:2]
	}
	c.backendErrorsTotal.WithLabelValues(class).Inc()
}

// HandshakeDuration observes time spent in handshake + auth.
func (c *Collector) HandshakeDuration(d time.Duration) {
	c.handshakeDuration.Observe(d.Seconds())
}

// QueryDuration observes time spent translating and executing one
// COM_QUERY, labeled by query mode.
func (c *Collector) QueryDuration(mode string, d time.Duration) {
	c.queryDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// UpdatePoolStats refreshes the backend connection pool gauges.
func (c *Collector) UpdatePoolStats(active, waiting int) {
	c.connectionsActive.Set(float64(active))
	c.connectionsWaiting.Set(float64(waiting))
}

// PoolExhausted increments the pool-exhaustion counter.
func (c *Collector) PoolExhausted() { c.poolExhaustedTotal.Inc() }

// BackendHealthy records the outcome of the most recent backend health
// probe (internal/health.Checker).
func (c *Collector) BackendHealthy(healthy bool) {
	if healthy {
		c.backendHealthy.Set(1)
	} else {
		c.backendHealthy.Set(0)
	}
}
