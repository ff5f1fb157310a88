// Package metrics records per-call outcomes and produces performance snapshots.
package metrics

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"go.uber.org/zap"
)

const (
	defaultHistorySize = 1000
	recentWindow       = 60 * time.Second
	samplerTimeout     = 2 * time.Second
)

// RequestRecorder is the contract offered to instrumented call sites
type RequestRecorder interface {
	RecordRequest(service, method string, duration time.Duration, status model.RequestStatus)
}

type serviceCounters struct {
	requests    int64
	errors      int64
	totalTime   time.Duration
	lastRequest time.Time
}

// Collector accumulates request counters and keeps a bounded snapshot history
type Collector struct {
	mu            sync.RWMutex
	startTime     time.Time
	totalRequests int64
	totalErrors   int64
	services      map[string]*serviceCounters
	history       []model.PerformanceMetrics
	historySize   int

	exporter *PrometheusExporter
	sampler  ResourceSampler
	now      func() time.Time
	logger   *zap.Logger
}

// CollectorConfig holds collector configuration
type CollectorConfig struct {
	HistorySize   int
	ExportEnabled bool
}

// Option customises a Collector
type Option func(*Collector)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithSampler replaces the process resource sampler
func WithSampler(s ResourceSampler) Option {
	return func(c *Collector) { c.sampler = s }
}

// WithExporter sets the exporter explicitly, overriding ExportEnabled
func WithExporter(e *PrometheusExporter) Option {
	return func(c *Collector) { c.exporter = e }
}

// NewCollector creates a new metrics collector
func NewCollector(cfg *CollectorConfig, logger *zap.Logger, opts ...Option) *Collector {
	if cfg == nil {
		cfg = &CollectorConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		services:    make(map[string]*serviceCounters),
		historySize: cfg.HistorySize,
		sampler:     NewProcessSampler(),
		now:         time.Now,
		logger:      logger,
	}
	if c.historySize <= 0 {
		c.historySize = defaultHistorySize
	}
	if cfg.ExportEnabled {
		c.exporter = NewPrometheusExporter()
	}

	for _, opt := range opts {
		opt(c)
	}

	c.startTime = c.now()
	return c
}

// RecordRequest records one completed call. It never fails.
func (c *Collector) RecordRequest(service, method string, duration time.Duration, status model.RequestStatus) {
	isError := status == model.RequestStatusError
	now := c.now()

	c.mu.Lock()
	c.totalRequests++
	if isError {
		c.totalErrors++
	}

	stats, ok := c.services[service]
	if !ok {
		stats = &serviceCounters{}
		c.services[service] = stats
	}
	stats.requests++
	stats.totalTime += duration
	stats.lastRequest = now
	if isError {
		stats.errors++
	}
	c.mu.Unlock()

	if c.exporter != nil {
		c.exporter.RecordRequest(service, method, string(status), duration.Seconds())
	}
}

// CurrentMetrics computes a snapshot and appends it to the history
func (c *Collector) CurrentMetrics() model.PerformanceMetrics {
	snapshot := c.Snapshot()

	c.mu.Lock()
	c.history = append(c.history, snapshot)
	if overflow := len(c.history) - c.historySize; overflow > 0 {
		c.history = append(c.history[:0], c.history[overflow:]...)
	}
	c.mu.Unlock()

	return snapshot
}

// Snapshot computes the current metrics without recording them.
//
// RequestsPerSecond counts the services that saw a request in the last
// minute and divides by min(60, uptime seconds). It measures recent service
// activity, not request throughput.
func (c *Collector) Snapshot() model.PerformanceMetrics {
	now := c.now()
	usage := c.sampleResources()

	c.mu.RLock()
	var (
		recent    int
		totalTime time.Duration
	)
	for _, stats := range c.services {
		totalTime += stats.totalTime
		if !stats.lastRequest.IsZero() && now.Sub(stats.lastRequest) < recentWindow {
			recent++
		}
	}
	requests := c.totalRequests
	errors := c.totalErrors
	uptime := now.Sub(c.startTime).Seconds()
	c.mu.RUnlock()

	var rps float64
	if uptime > 0 {
		rps = float64(recent) / math.Min(recentWindow.Seconds(), uptime)
	}

	var avgResponseTime, errorRate float64
	if requests > 0 {
		avgResponseTime = totalTime.Seconds() / float64(requests)
		errorRate = float64(errors) / float64(requests) * 100
	}

	if c.exporter != nil {
		c.exporter.UpdateSystemStats(usage.MemoryMB*1024*1024, usage.CPUPercent)
	}

	return model.PerformanceMetrics{
		Timestamp:         now,
		RequestsTotal:     requests,
		RequestsPerSecond: rps,
		AvgResponseTime:   avgResponseTime,
		ErrorRate:         errorRate,
		CacheHitRate:      0,
		MemoryUsage:       usage.MemoryMB,
		CPUUsage:          usage.CPUPercent,
		ActiveConnections: 0,
	}
}

func (c *Collector) sampleResources() ResourceUsage {
	if c.sampler == nil {
		return ResourceUsage{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), samplerTimeout)
	defer cancel()

	usage, err := c.sampler.Sample(ctx)
	if err != nil {
		c.logger.Debug("Failed to sample process resources", zap.Error(err))
		return ResourceUsage{}
	}
	return usage
}

// History returns a copy of the recorded snapshots, oldest first
func (c *Collector) History() []model.PerformanceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.PerformanceMetrics, len(c.history))
	copy(out, c.history)
	return out
}

// ServiceStats returns the derived view for one service.
// Unknown services yield zero values.
func (c *Collector) ServiceStats(service string) model.ServiceStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats, ok := c.services[service]
	if !ok || stats.requests == 0 {
		return model.ServiceStats{}
	}

	last := stats.lastRequest
	return model.ServiceStats{
		Requests:        stats.requests,
		Errors:          stats.errors,
		ErrorRate:       float64(stats.errors) / float64(stats.requests) * 100,
		AvgResponseTime: stats.totalTime.Seconds() / float64(stats.requests),
		LastRequest:     &last,
	}
}

// Export renders the exporter in the text exposition format, or a
// placeholder when export is disabled or fails.
func (c *Collector) Export() string {
	if c.exporter == nil {
		return UnavailablePlaceholder
	}
	out, err := c.exporter.Expose()
	if err != nil {
		c.logger.Warn("Failed to export metrics", zap.Error(err))
		return UnavailablePlaceholder
	}
	return out
}

// DeliveryRecorder returns a recorder for outbound alert deliveries. They only
// reach the exporter and never count toward the request totals behind the
// error rate and the health status.
func (c *Collector) DeliveryRecorder() RequestRecorder {
	return deliveryRecorder{exporter: c.exporter}
}

type deliveryRecorder struct {
	exporter *PrometheusExporter
}

func (r deliveryRecorder) RecordRequest(service, _ string, _ time.Duration, status model.RequestStatus) {
	if r.exporter != nil {
		r.exporter.RecordDelivery(service, string(status))
	}
}

// Exporter returns the configured exporter, or nil
func (c *Collector) Exporter() *PrometheusExporter {
	return c.exporter
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}
