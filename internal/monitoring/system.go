// Package monitoring wires the collector, health monitor, alert manager and
// dashboard together and runs the main control loop.
package monitoring

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/devrev/inde-monitor/internal/alert"
	"github.com/devrev/inde-monitor/internal/config"
	"github.com/devrev/inde-monitor/internal/dashboard"
	"github.com/devrev/inde-monitor/internal/health"
	"github.com/devrev/inde-monitor/internal/metrics"
	"github.com/devrev/inde-monitor/internal/model"
	"go.uber.org/zap"
)

// HealthReport is the body served by the health endpoint
type HealthReport struct {
	Status    model.HealthStatus       `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Metrics   model.PerformanceMetrics `json:"metrics"`
}

// Healthy reports whether the report status is healthy
func (r HealthReport) Healthy() bool {
	return r.Status == model.HealthStatusHealthy
}

type options struct {
	probe   health.Probe
	sampler metrics.ResourceSampler
	now     func() time.Time
	console io.Writer
	ses     alert.SESAPI
}

// Option customises a System
type Option func(*options)

// WithProbe sets the probe used for every configured service
func WithProbe(p health.Probe) Option {
	return func(o *options) { o.probe = p }
}

// WithSampler sets the process resource sampler
func WithSampler(s metrics.ResourceSampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithClock sets the time source shared by every component
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithConsoleWriter redirects the console notifier
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithSESClient sets the SES client used when email alerts are enabled
func WithSESClient(c alert.SESAPI) Option {
	return func(o *options) { o.ses = c }
}

// System is the monitoring orchestrator
type System struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time

	collector *metrics.Collector
	monitor   *health.Monitor
	alerts    *alert.Manager
	dashboard *dashboard.Dashboard

	setupOnce sync.Once
	setupErr  error
	monitorWg sync.WaitGroup
}

// New builds every component from cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *System {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	collectorOpts := []metrics.Option{metrics.WithClock(o.now)}
	if o.sampler != nil {
		collectorOpts = append(collectorOpts, metrics.WithSampler(o.sampler))
	}
	collector := metrics.NewCollector(&metrics.CollectorConfig{
		HistorySize:   cfg.Metrics.HistorySize,
		ExportEnabled: cfg.Metrics.Enabled,
	}, logger.Named("metrics"), collectorOpts...)

	monitorOpts := []health.Option{health.WithClock(o.now)}
	if o.probe != nil {
		monitorOpts = append(monitorOpts, health.WithDefaultProbe(o.probe))
	}
	monitor := health.NewMonitor(&health.MonitorConfig{
		CheckInterval:       cfg.Monitor.CheckInterval,
		ErrorBackoff:        cfg.Monitor.ErrorBackoff,
		ProbeTimeout:        cfg.Monitor.ProbeTimeout,
		MaxConcurrentProbes: cfg.Monitor.MaxConcurrentProbes,
		HistorySize:         cfg.Monitor.HistorySize,
	}, logger.Named("health"), monitorOpts...)

	alerts := alert.NewManager(&alert.ManagerConfig{
		MaxResolvedAlerts: cfg.Alerts.MaxResolvedAlerts,
	}, logger.Named("alerts"), alert.WithClock(o.now))
	alert.RegisterDefaultRules(alerts, alert.Thresholds{
		ErrorRate:    cfg.Alerts.ErrorRateThreshold,
		ResponseTime: cfg.Alerts.ResponseTimeThreshold,
		MemoryMB:     cfg.Alerts.MemoryThresholdMB,
	})
	if cfg.Alerts.Console {
		alerts.AddNotifier(alert.NewConsoleNotifier(o.console))
	}
	alerts.AddNotifier(alert.NewLogNotifier(logger.Named("alerts")))
	if cfg.Alerts.WebhookURL != "" {
		timeout := cfg.Alerts.WebhookTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client := metrics.NewInstrumentedClient(collector.DeliveryRecorder(), "webhook", timeout)
		alerts.AddNotifier(alert.NewWebhookNotifierWithClient(cfg.Alerts.WebhookURL, client))
	}
	if email := cfg.Alerts.Email; email.Enabled {
		if o.ses != nil {
			alerts.AddNotifier(alert.NewEmailNotifier(o.ses, email.From, email.To, logger.Named("alerts")))
		} else if n, err := alert.NewSESEmailNotifier(context.Background(), email.Region, email.From, email.To, logger.Named("alerts")); err != nil {
			logger.Warn("Email alerts disabled", zap.Error(err))
		} else {
			alerts.AddNotifier(n)
		}
	}

	dash := dashboard.New(collector, monitor, alerts).WithClock(o.now)

	return &System{
		cfg:       cfg,
		logger:    logger,
		now:       o.now,
		collector: collector,
		monitor:   monitor,
		alerts:    alerts,
		dashboard: dash,
	}
}

// SetupDefaultServices registers the configured probe targets. It runs once;
// later calls return the first result.
func (s *System) SetupDefaultServices() error {
	s.setupOnce.Do(func() {
		for _, svc := range s.cfg.Services {
			if err := s.monitor.AddService(svc.Name, svc.URL, nil); err != nil {
				s.setupErr = fmt.Errorf("failed to register service %s: %w", svc.Name, err)
				return
			}
		}
		s.logger.Info("Services registered", zap.Int("count", len(s.cfg.Services)))
	})
	return s.setupErr
}

// RunCycle runs one main loop iteration: snapshot, health sweep, alert
// evaluation and a status log line.
func (s *System) RunCycle(ctx context.Context) error {
	current := s.collector.CurrentMetrics()

	results, err := s.monitor.CheckAllServices(ctx)
	if err != nil {
		return fmt.Errorf("health sweep failed: %w", err)
	}

	triggered := s.alerts.CheckAlerts(ctx, current, results)

	healthy := 0
	for _, h := range results {
		if h.IsHealthy() {
			healthy++
		}
	}

	s.logger.Info("Monitoring cycle complete",
		zap.String("services", fmt.Sprintf("%d/%d", healthy, len(results))),
		zap.Float64("rps", current.RequestsPerSecond),
		zap.Float64("error_rate", current.ErrorRate),
		zap.Float64("memory_mb", current.MemoryUsage),
		zap.Int("new_alerts", len(triggered)))
	return nil
}

// Start registers the configured services, launches the health monitor loop
// and runs RunCycle every cycle interval until ctx is done. A failed cycle is
// followed by the error backoff instead of the cycle interval.
func (s *System) Start(ctx context.Context) error {
	if err := s.SetupDefaultServices(); err != nil {
		return err
	}

	s.monitorWg.Add(1)
	go func() {
		defer s.monitorWg.Done()
		s.monitor.Start(ctx)
	}()
	defer func() {
		s.monitor.Stop()
		s.monitorWg.Wait()
	}()

	s.logger.Info("Monitoring system started",
		zap.Duration("cycle_interval", s.cfg.Monitor.CycleInterval),
		zap.Duration("check_interval", s.cfg.Monitor.CheckInterval))

	for {
		wait := s.cfg.Monitor.CycleInterval
		if err := s.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("Monitoring cycle failed", zap.Error(err))
			wait = s.cfg.Monitor.ErrorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Monitoring system stopped")
			return nil
		case <-timer.C:
		}
	}

	s.logger.Info("Monitoring system stopped")
	return nil
}

func (s *System) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitoring cycle panicked: %v", r)
		}
	}()
	return s.RunCycle(ctx)
}

// Close stops the health monitor and releases its worker pool
func (s *System) Close() error {
	return s.monitor.Close()
}

// HealthEndpoint evaluates process health from a fresh snapshot. The snapshot
// is not added to the collector history.
func (s *System) HealthEndpoint() HealthReport {
	snapshot := s.collector.Snapshot()

	status := model.HealthStatusUnhealthy
	if snapshot.ErrorRate < s.cfg.Health.MaxErrorRate &&
		snapshot.AvgResponseTime < s.cfg.Health.MaxResponseTime.Seconds() &&
		snapshot.MemoryUsage < s.cfg.Health.MaxMemoryMB {
		status = model.HealthStatusHealthy
	}

	return HealthReport{
		Status:    status,
		Timestamp: s.now(),
		Metrics:   snapshot,
	}
}

// MetricsEndpoint returns the text exposition, or a placeholder when export is disabled
func (s *System) MetricsEndpoint() string {
	return s.collector.Export()
}

// Config returns the effective configuration
func (s *System) Config() *config.Config { return s.cfg }

// Collector returns the metrics collector for instrumented call sites
func (s *System) Collector() *metrics.Collector { return s.collector }

// Monitor returns the service health monitor
func (s *System) Monitor() *health.Monitor { return s.monitor }

// Alerts returns the alert manager
func (s *System) Alerts() *alert.Manager { return s.alerts }

// Dashboard returns the dashboard
func (s *System) Dashboard() *dashboard.Dashboard { return s.dashboard }
