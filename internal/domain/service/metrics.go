package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// The application and middleware layers depend on this abstraction rather than on Prometheus.
type Metrics interface {
	// RecordAuthentication records the outcome of a bearer token verification.
	RecordAuthentication(result, reason string)

	// RecordAuthorizationDenied records a request rejected by a role, assurance or tenant check.
	RecordAuthorizationDenied(code string)

	// RecordTenantViolation records an attempt to touch another municipality's resource.
	RecordTenantViolation(tenantID string)

	// RecordJWKSFetch records a key-set download from the identity broker.
	RecordJWKSFetch(success bool, duration time.Duration)

	// RecordGatewayCall records an outbound call to the workflow engine or the registry.
	RecordGatewayCall(gateway, operation string, statusCode int, duration time.Duration)

	// RecordRateLimitHit records a request rejected by the rate limiter.
	RecordRateLimitHit(scope string)

	// RecordAuditEntry records an audit entry appended to the buffer.
	RecordAuditEntry(result string)

	// RecordAuditSinkFailure records a failed write to a durable audit sink.
	RecordAuditSinkFailure(sink string)

	// RecordAuditDropped records an audit entry that could not be queued for the sinks.
	RecordAuditDropped()

	// RecordCacheAccess records a cache hit or miss.
	RecordCacheAccess(cacheType string, hit bool)

	// RecordVaultAPI records the latency and error status of a Vault API call.
	RecordVaultAPI(operation string, duration time.Duration, err error)

	// RecordDBQuery records the duration of a database query.
	RecordDBQuery(operation string, duration time.Duration)
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordAuthentication(string, string)                  {}
func (noopMetrics) RecordAuthorizationDenied(string)                     {}
func (noopMetrics) RecordTenantViolation(string)                         {}
func (noopMetrics) RecordJWKSFetch(bool, time.Duration)                  {}
func (noopMetrics) RecordGatewayCall(string, string, int, time.Duration) {}
func (noopMetrics) RecordRateLimitHit(string)                            {}
func (noopMetrics) RecordAuditEntry(string)                              {}
func (noopMetrics) RecordAuditSinkFailure(string)                        {}
func (noopMetrics) RecordAuditDropped()                                  {}
func (noopMetrics) RecordCacheAccess(string, bool)                       {}
func (noopMetrics) RecordVaultAPI(string, time.Duration, error)          {}
func (noopMetrics) RecordDBQuery(string, time.Duration)                  {}
