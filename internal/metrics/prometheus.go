package metrics

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// UnavailablePlaceholder is returned by Export when no exporter is configured
const UnavailablePlaceholder = "# Prometheus not available\n"

// PrometheusExporter mirrors collector counters into a private registry
type PrometheusExporter struct {
	registry          *prometheus.Registry
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections prometheus.Gauge
	memoryUsageBytes  prometheus.Gauge
	cpuUsagePercent   prometheus.Gauge
	deliveriesTotal   *prometheus.CounterVec
}

// NewPrometheusExporter creates an exporter with its own registry, so several
// collectors can coexist in one process.
func NewPrometheusExporter() *PrometheusExporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusExporter{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inde_mcp",
			Name:      "requests_total",
			Help:      "Total number of requests",
		}, []string{"service", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inde_mcp",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "inde_mcp",
			Name:      "active_connections",
			Help:      "Number of active connections",
		}),
		memoryUsageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "inde_mcp",
			Name:      "memory_usage_bytes",
			Help:      "Memory usage in bytes",
		}),
		cpuUsagePercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "inde_mcp",
			Name:      "cpu_usage_percent",
			Help:      "CPU usage percentage",
		}),
		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inde_mcp",
			Name:      "alert_deliveries_total",
			Help:      "Total number of outbound alert deliveries",
		}, []string{"notifier", "status"}),
	}
}

// RecordRequest records one completed call
func (e *PrometheusExporter) RecordRequest(service, method, status string, seconds float64) {
	e.requestsTotal.WithLabelValues(service, method, status).Inc()
	e.requestDuration.WithLabelValues(service, method).Observe(seconds)
}

// RecordDelivery records one outbound alert delivery
func (e *PrometheusExporter) RecordDelivery(notifier, status string) {
	e.deliveriesTotal.WithLabelValues(notifier, status).Inc()
}

// UpdateSystemStats sets the process resource gauges
func (e *PrometheusExporter) UpdateSystemStats(memoryBytes, cpuPercent float64) {
	e.memoryUsageBytes.Set(memoryBytes)
	e.cpuUsagePercent.Set(cpuPercent)
}

// Expose renders the registry in the text exposition format
func (e *PrometheusExporter) Expose() (string, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// Handler returns a scrape handler bound to the exporter's registry
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
