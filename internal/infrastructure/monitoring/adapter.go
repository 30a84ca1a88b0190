// Package monitoring provides the zap logger, the Prometheus metrics and the
// OpenTelemetry tracer used by the business API.
package monitoring

import (
	"github.com/ronl/business-api/internal/domain/service"
)

// NewMetricsAdapter exposes the Prometheus metrics through the domain's
// service.Metrics interface. A nil metrics value yields a no-op implementation.
func NewMetricsAdapter(metrics *Metrics) service.Metrics {
	if metrics == nil {
		return service.NewNoopMetrics()
	}
	return metrics
}
