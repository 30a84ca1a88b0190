package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "business_api"

// Metrics manages the Prometheus metrics.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge

	Authentications   *prometheus.CounterVec
	AuthorizationDeny *prometheus.CounterVec
	TenantViolations  *prometheus.CounterVec
	JWKSFetches       *prometheus.CounterVec
	JWKSFetchLatency  prometheus.Histogram
	GatewayCalls      *prometheus.CounterVec
	GatewayLatency    *prometheus.HistogramVec
	RateLimitHits     *prometheus.CounterVec
	AuditEntries      *prometheus.CounterVec
	AuditSinkFailures *prometheus.CounterVec
	AuditDropped      prometheus.Counter
	CacheAccess       *prometheus.CounterVec
	VaultLatency      *prometheus.HistogramVec
	DBQueryLatency    *prometheus.HistogramVec
}

// NewMetrics creates the metrics on a private registry, together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPActiveRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		Authentications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authentications_total",
			Help:      "Bearer token verifications by result.",
		}, []string{"result", "reason"}),
		AuthorizationDeny: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_denied_total",
			Help:      "Requests rejected by role, assurance or tenant checks.",
		}, []string{"code"}),
		TenantViolations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_violations_total",
			Help:      "Cross-municipality access attempts.",
		}, []string{"tenant_id"}),
		JWKSFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jwks_fetches_total",
			Help:      "Key-set downloads from the identity broker.",
		}, []string{"result"}),
		JWKSFetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "jwks_fetch_duration_seconds",
			Help:      "Latency of key-set downloads.",
			Buckets:   prometheus.DefBuckets,
		}),
		GatewayCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Outbound calls to external systems.",
		}, []string{"gateway", "operation", "status"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Latency of outbound calls to external systems.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"gateway", "operation"}),
		RateLimitHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit hits.",
		}, []string{"scope"}),
		AuditEntries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Audit entries recorded by result.",
		}, []string{"result"}),
		AuditSinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_sink_failures_total",
			Help:      "Failed writes to durable audit sinks.",
		}, []string{"sink"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit entries not delivered to sinks because the queue was full.",
		}),
		CacheAccess: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_access_total",
			Help:      "Cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"}),
		VaultLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vault_request_duration_seconds",
			Help:      "Latency of Vault API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		DBQueryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Latency of database queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) ActiveRequestsInc() { m.HTTPActiveRequests.Inc() }
func (m *Metrics) ActiveRequestsDec() { m.HTTPActiveRequests.Dec() }

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordAuthentication(result, reason string) {
	m.Authentications.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) RecordAuthorizationDenied(code string) {
	m.AuthorizationDeny.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordTenantViolation(tenantID string) {
	m.TenantViolations.WithLabelValues(tenantID).Inc()
}

func (m *Metrics) RecordJWKSFetch(success bool, duration time.Duration) {
	m.JWKSFetches.WithLabelValues(resultLabel(success)).Inc()
	m.JWKSFetchLatency.Observe(duration.Seconds())
}

func (m *Metrics) RecordGatewayCall(gateway, operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.GatewayCalls.WithLabelValues(gateway, operation, status).Inc()
	m.GatewayLatency.WithLabelValues(gateway, operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHits.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordAuditEntry(result string) {
	m.AuditEntries.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAuditSinkFailure(sink string) {
	m.AuditSinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) RecordAuditDropped() {
	m.AuditDropped.Inc()
}

func (m *Metrics) RecordCacheAccess(cacheType string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheAccess.WithLabelValues(cacheType, outcome).Inc()
}

func (m *Metrics) RecordVaultAPI(operation string, duration time.Duration, err error) {
	m.VaultLatency.WithLabelValues(operation, resultLabel(err == nil)).Observe(duration.Seconds())
}

func (m *Metrics) RecordDBQuery(operation string, duration time.Duration) {
	m.DBQueryLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
