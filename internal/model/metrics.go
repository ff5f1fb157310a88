package model

import "time"

// RequestStatus is the outcome tag passed by instrumented call sites
type RequestStatus string

const (
	RequestStatusSuccess RequestStatus = "success"
	RequestStatusError   RequestStatus = "error"
)

// PerformanceMetrics is a point-in-time snapshot of process-wide telemetry.
// CacheHitRate and ActiveConnections are reserved and always zero.
type PerformanceMetrics struct {
	Timestamp         time.Time `json:"timestamp"`
	RequestsTotal     int64     `json:"requests_total"`
	RequestsPerSecond float64   `json:"requests_per_second"`
	AvgResponseTime   float64   `json:"avg_response_time"`
	ErrorRate         float64   `json:"error_rate"`
	CacheHitRate      float64   `json:"cache_hit_rate"`
	MemoryUsage       float64   `json:"memory_usage"`
	CPUUsage          float64   `json:"cpu_usage"`
	ActiveConnections int       `json:"active_connections"`
}

// ServiceStats is the per-service view derived from recorded requests
type ServiceStats struct {
	Requests        int64      `json:"requests"`
	Errors          int64      `json:"errors"`
	ErrorRate       float64    `json:"error_rate"`
	AvgResponseTime float64    `json:"avg_response_time"`
	LastRequest     *time.Time `json:"last_request"`
}
