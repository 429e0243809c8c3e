package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the billing service.
// Every method is safe on a nil receiver.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	WebhookEvents     *prometheus.CounterVec
	BillingOperations *prometheus.CounterVec

	// Reconciliation metrics
	ReconcileRuns  *prometheus.CounterVec
	ReconcileDrift prometheus.Counter

	// Cache metrics
	CatalogCache *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		WebhookEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Stripe webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"}, // handled, ignored, duplicate, failed, rejected
		),
		BillingOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_operations_total",
				Help: "Subscription lifecycle operations by result",
			},
			[]string{"operation", "result"},
		),

		ReconcileRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reconcile_runs_total",
				Help: "Reconciliation sweeps by result",
			},
			[]string{"result"},
		),
		ReconcileDrift: f.NewCounter(prometheus.CounterOpts{
			Name: "billing_reconcile_drift_total",
			Help: "Subscriptions corrected by the reconciliation sweep",
		}),

		CatalogCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_catalog_cache_total",
				Help: "Plan catalog cache lookups",
			},
			[]string{"result"}, // hit, miss
		),
	}
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.BillingOperations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RecordReconcileRun(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ReconcileRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordReconcileDrift() {
	if m == nil {
		return
	}
	m.ReconcileDrift.Inc()
}

func (m *Metrics) RecordCatalogCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CatalogCache.WithLabelValues(result).Inc()
}
