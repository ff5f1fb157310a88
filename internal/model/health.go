package model

import "time"

// HealthStatus defines the probe classification of a monitored service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// Valid reports whether s is one of the known statuses
func (s HealthStatus) Valid() bool {
	switch s {
	case HealthStatusHealthy, HealthStatusDegraded, HealthStatusUnhealthy:
		return true
	default:
		return false
	}
}

// ServiceHealth is the result of one health check of one service.
// Values are never mutated after they are appended to a history.
type ServiceHealth struct {
	Name             string       `json:"name"`
	URL              string       `json:"url"`
	Status           HealthStatus `json:"status"`
	ResponseTime     float64      `json:"response_time"`
	LastCheck        time.Time    `json:"last_check"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	UptimePercentage float64      `json:"uptime_percentage"`
}

// IsHealthy reports whether the check classified the service as healthy
func (h ServiceHealth) IsHealthy() bool {
	return h.Status == HealthStatusHealthy
}
