package dto

import "time"

// Dependency health states.
const (
	DependencyUp   = "up"
	DependencyDown = "down"
)

// Overall health states.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// DependencyHealth is the probe result of one external dependency. Latency is
// in milliseconds.
type DependencyHealth struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// HealthReport is the composite health document. Uptime is in seconds,
// Duration in milliseconds.
type HealthReport struct {
	Name         string                      `json:"name"`
	Version      string                      `json:"version"`
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Uptime       float64                     `json:"uptime"`
	Environment  string                      `json:"environment"`
	Duration     int64                       `json:"duration"`
	Dependencies map[string]DependencyHealth `json:"dependencies"`
}

// Healthy reports whether every dependency is up.
func (r *HealthReport) Healthy() bool {
	return r.Status == HealthHealthy
}
