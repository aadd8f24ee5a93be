package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Horizon Metrics
	horizonRequestsTotal   *prometheus.CounterVec
	horizonRequestDuration *prometheus.HistogramVec
	horizonRetries         *prometheus.CounterVec
	horizonBreakerState    *prometheus.GaugeVec

	// Explanation Metrics
	explanationsTotal        *prometheus.CounterVec
	operationsPerTransaction *prometheus.HistogramVec
	operationsExplainedTotal *prometheus.CounterVec
	explanationCacheRequests *prometheus.CounterVec
	explanationCacheEntries  prometheus.Gauge

	// Watch Workflow Metrics
	watchPollDuration        *prometheus.HistogramVec
	watchPollExecutionsTotal *prometheus.CounterVec
	watchActivityDuration    *prometheus.HistogramVec
	watchTransactionsFound   *prometheus.CounterVec
	webhookDeliveriesTotal   *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRateLimited      *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Horizon Metrics
		horizonRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_requests_total",
				Help: "Total number of Horizon requests by endpoint and status",
			},
			[]string{"endpoint", "status", "network"},
		),
		horizonRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "horizon_request_duration_seconds",
				Help:    "Duration of Horizon requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "network"},
		),
		horizonRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horizon_retries_total",
				Help: "Total number of Horizon retry attempts",
			},
			[]string{"endpoint", "reason"},
		),
		horizonBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "horizon_circuit_breaker_state",
				Help: "Horizon circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"network"},
		),

		// Explanation Metrics
		explanationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explanations_total",
				Help: "Total number of explanations produced by kind and status",
			},
			[]string{"kind", "status"},
		),
		operationsPerTransaction: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explained_operations_per_transaction",
				Help:    "Number of operations in each explained transaction",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"network"},
		),
		operationsExplainedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operations_explained_total",
				Help: "Total number of operations explained by type and support",
			},
			[]string{"type", "supported"},
		),
		explanationCacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explanation_cache_requests_total",
				Help: "Explanation cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		explanationCacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "explanation_cache_entries",
				Help: "Number of entries currently held in the explanation cache",
			},
		),

		// Watch Workflow Metrics
		watchPollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_poll_duration_seconds",
				Help:    "Duration of account watch polls in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"network", "status"},
		),
		watchPollExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_poll_executions_total",
				Help: "Total number of account watch polls",
			},
			[]string{"network", "status"},
		),
		watchActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "watch_activity_duration_seconds",
				Help:    "Duration of individual watch activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"activity"},
		),
		watchTransactionsFound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watch_transactions_found_total",
				Help: "Total number of new transactions found by account watches",
			},
			[]string{"network"},
		),
		webhookDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_deliveries_total",
				Help: "Total number of webhook deliveries by status",
			},
			[]string{"status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method", "status_code"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status_code"},
		),
		httpRateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Total number of HTTP requests rejected by the rate limiter",
			},
			[]string{"handler"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject_prefix", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject_prefix"},
		),
	}
}

// Horizon Metrics

func (m *Metrics) RecordHorizonRequest(endpoint, status, network string, duration float64) {
	m.horizonRequestsTotal.WithLabelValues(endpoint, status, network).Inc()
	m.horizonRequestDuration.WithLabelValues(endpoint, network).Observe(duration)
}

func (m *Metrics) RecordHorizonRetry(endpoint, reason string) {
	m.horizonRetries.WithLabelValues(endpoint, reason).Inc()
}

// RecordBreakerState expects 0 for closed, 1 for half-open and 2 for open.
func (m *Metrics) RecordBreakerState(network string, state float64) {
	m.horizonBreakerState.WithLabelValues(network).Set(state)
}

// Explanation Metrics

func (m *Metrics) RecordExplanation(kind, status string) {
	m.explanationsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordOperationsPerTransaction(network string, count int) {
	m.operationsPerTransaction.WithLabelValues(network).Observe(float64(count))
}

func (m *Metrics) RecordOperationExplained(opType string, supported bool) {
	m.operationsExplainedTotal.WithLabelValues(opType, strconv.FormatBool(supported)).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.explanationCacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheEntries(n int) {
	m.explanationCacheEntries.Set(float64(n))
}

// Watch Workflow Metrics

func (m *Metrics) RecordWatchPoll(network, status string, duration float64) {
	m.watchPollExecutionsTotal.WithLabelValues(network, status).Inc()
	m.watchPollDuration.WithLabelValues(network, status).Observe(duration)
}

func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.watchActivityDuration.WithLabelValues(activity).Observe(duration)
}

func (m *Metrics) RecordWatchTransactionsFound(network string, count int) {
	m.watchTransactionsFound.WithLabelValues(network).Add(float64(count))
}

func (m *Metrics) RecordWebhookDelivery(status string) {
	m.webhookDeliveriesTotal.WithLabelValues(status).Inc()
}

// Database Metrics

func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// HTTP Metrics

func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	code := strconv.Itoa(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method, code).Observe(duration)
}

func (m *Metrics) RecordRateLimited(handler string) {
	m.httpRateLimited.WithLabelValues(handler).Inc()
}

func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS Metrics

func (m *Metrics) RecordNATSPublish(subjectPrefix, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subjectPrefix, status).Inc()
	m.natsPublishDuration.WithLabelValues(subjectPrefix).Observe(duration)
}
