// Package health probes registered services and keeps a rolling health
// history per service.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	monerrors "github.com/devrev/inde-monitor/internal/errors"
	"github.com/devrev/inde-monitor/internal/model"
	"github.com/devrev/inde-monitor/internal/util/workerpool"
	"go.uber.org/zap"
)

const (
	defaultCheckInterval = 300 * time.Second
	defaultErrorBackoff  = 10 * time.Second
	defaultHistorySize   = 100
	defaultMaxProbes     = 10
	poolStopTimeout      = 5 * time.Second
)

type serviceEntry struct {
	name       string
	url        string
	probe      Probe
	lastHealth *model.ServiceHealth
	history    []model.ServiceHealth
}

// MonitorConfig holds configuration for the service health monitor
type MonitorConfig struct {
	CheckInterval       time.Duration
	ErrorBackoff        time.Duration
	ProbeTimeout        time.Duration
	MaxConcurrentProbes int
	HistorySize         int
}

// Monitor owns the registry of probe targets and their health histories
type Monitor struct {
	mu          sync.RWMutex
	services    map[string]*serviceEntry
	historySize int

	checkInterval time.Duration
	errorBackoff  time.Duration
	defaultProbe  Probe
	pool          *workerpool.WorkerPool
	logger        *zap.Logger
	now           func() time.Time

	loopMu   sync.Mutex
	running  atomic.Bool
	stopCh   chan struct{}
	loopDone chan struct{}
}

// Option customises a Monitor
type Option func(*Monitor)

// WithDefaultProbe sets the probe used when AddService gets a nil probe
func WithDefaultProbe(p Probe) Option {
	return func(m *Monitor) { m.defaultProbe = p }
}

// WithClock replaces the time source used to stamp checks
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a new service health monitor
func NewMonitor(cfg *MonitorConfig, logger *zap.Logger, opts ...Option) *Monitor {
	if cfg == nil {
		cfg = &MonitorConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Monitor{
		services:      make(map[string]*serviceEntry),
		historySize:   cfg.HistorySize,
		checkInterval: cfg.CheckInterval,
		errorBackoff:  cfg.ErrorBackoff,
		logger:        logger,
		now:           time.Now,
	}
	if m.historySize <= 0 {
		m.historySize = defaultHistorySize
	}
	if m.checkInterval <= 0 {
		m.checkInterval = defaultCheckInterval
	}
	if m.errorBackoff <= 0 {
		m.errorBackoff = defaultErrorBackoff
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.defaultProbe == nil {
		m.defaultProbe = NewHTTPProbe(nil, cfg.ProbeTimeout)
	}

	maxProbes := cfg.MaxConcurrentProbes
	if maxProbes <= 0 {
		maxProbes = defaultMaxProbes
	}
	m.pool = workerpool.NewWorkerPool(&workerpool.Config{
		Name:       "health-probes",
		MaxWorkers: maxProbes,
		Logger:     logger,
	})

	return m
}

// AddService registers a target. A nil probe uses the default HTTP probe.
// Re-registering a name replaces its URL and probe and keeps its history.
func (m *Monitor) AddService(name, url string, probe Probe) error {
	if name == "" {
		return monerrors.NewInvalidArgumentError("service name is required")
	}
	if url == "" {
		return monerrors.NewInvalidArgumentError("service url is required")
	}
	if probe == nil {
		probe = m.defaultProbe
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.services[name]; ok {
		entry.url = url
		entry.probe = probe
		return nil
	}
	m.services[name] = &serviceEntry{name: name, url: url, probe: probe}

	m.logger.Info("Service registered",
		zap.String("service", name),
		zap.String("url", url))
	return nil
}

// RemoveService unregisters a target and drops its history
func (m *Monitor) RemoveService(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[name]; !ok {
		return false
	}
	delete(m.services, name)
	return true
}

// CheckServiceHealth probes one service and records the result.
//
// The uptime percentage covers the trailing window of up to HistorySize
// checks, including this one. A probe that fails outright is returned as an
// error and nothing is recorded.
func (m *Monitor) CheckServiceHealth(ctx context.Context, name string) (health model.ServiceHealth, err error) {
	m.mu.RLock()
	entry, ok := m.services[name]
	var url string
	var probe Probe
	if ok {
		url, probe = entry.url, entry.probe
	}
	m.mu.RUnlock()

	if !ok {
		return model.ServiceHealth{}, monerrors.NewServiceNotFoundError(name)
	}

	result, err := runProbe(ctx, probe, url)
	if err != nil {
		return model.ServiceHealth{}, monerrors.NewProbeError(name, err)
	}
	if !result.Status.Valid() {
		result = ProbeResult{
			Status:       model.HealthStatusUnhealthy,
			ResponseTime: result.ResponseTime,
			ErrorMessage: fmt.Sprintf("invalid probe status %q", result.Status),
		}
	}

	health = model.ServiceHealth{
		Name:         name,
		URL:          url,
		Status:       result.Status,
		ResponseTime: result.ResponseTime.Seconds(),
		LastCheck:    m.now(),
		ErrorMessage: result.ErrorMessage,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// the service may have been removed while the probe was in flight
	current, ok := m.services[name]
	if !ok || current != entry {
		return health, nil
	}

	history := append(entry.history, health)
	if overflow := len(history) - m.historySize; overflow > 0 {
		history = append(history[:0], history[overflow:]...)
	}
	healthy := 0
	for _, h := range history {
		if h.IsHealthy() {
			healthy++
		}
	}
	health.UptimePercentage = float64(healthy) / float64(len(history)) * 100
	history[len(history)-1] = health

	entry.history = history
	last := health
	entry.lastHealth = &last

	return health, nil
}

// runProbe calls the probe and turns a panic into an error
func runProbe(ctx context.Context, probe Probe, url string) (result ProbeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return probe.Check(ctx, url)
}

// CheckAllServices probes every registered service on the bounded worker
// pool. The result holds exactly one entry per service registered when the
// sweep started; a service whose probe failed is reported unhealthy without
// being recorded in its history. An error is returned only when probes could
// not be scheduled, alongside the complete result map.
func (m *Monitor) CheckAllServices(ctx context.Context) (map[string]model.ServiceHealth, error) {
	m.mu.RLock()
	targets := make(map[string]string, len(m.services))
	for name, entry := range m.services {
		targets[name] = entry.url
	}
	m.mu.RUnlock()

	results := make(map[string]model.ServiceHealth, len(targets))
	var resultsMu sync.Mutex

	tasks := make([]workerpool.Task, 0, len(targets))
	for _, name := range sortedKeys(targets) {
		name := name
		tasks = append(tasks, workerpool.Task{
			ID: name,
			Fn: func(ctx context.Context) error {
				health, err := m.CheckServiceHealth(ctx, name)
				if err != nil {
					return err
				}
				resultsMu.Lock()
				results[name] = health
				resultsMu.Unlock()
				return nil
			},
		})
	}

	failures, schedErr := m.pool.RunAll(ctx, tasks)

	for name, err := range failures {
		if err == nil {
			continue
		}
		m.logger.Warn("Service health check failed",
			zap.String("service", name),
			zap.Error(err))
		results[name] = model.ServiceHealth{
			Name:         name,
			URL:          targets[name],
			Status:       model.HealthStatusUnhealthy,
			ResponseTime: 0,
			LastCheck:    m.now(),
			ErrorMessage: err.Error(),
		}
	}

	if schedErr != nil {
		return results, monerrors.NewUnavailableError("health sweep could not schedule every probe", schedErr)
	}
	return results, nil
}

// Start runs the periodic sweep until Stop is called or ctx is done.
// A sweep in flight always completes; stop requests are observed between
// sweeps. Only one loop runs at a time: Start returns at once while a loop
// is active, and waits for a stopped loop to finish its last sweep.
func (m *Monitor) Start(ctx context.Context) {
	stopCh, doneCh, ok := m.beginLoop(ctx)
	if !ok {
		return
	}
	defer m.endLoop(doneCh)

	m.logger.Info("Health monitor started",
		zap.Duration("check_interval", m.checkInterval))

	for {
		wait := m.checkInterval
		if err := m.sweep(ctx); err != nil {
			m.logger.Error("Health monitoring sweep failed",
				zap.Error(err),
				zap.Duration("retry_in", m.errorBackoff))
			wait = m.errorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("Health monitor stopped", zap.Error(ctx.Err()))
			return
		case <-stopCh:
			timer.Stop()
			m.logger.Info("Health monitor stopped")
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) beginLoop(ctx context.Context) (chan struct{}, chan struct{}, bool) {
	for {
		m.loopMu.Lock()
		if m.loopDone == nil {
			stopCh, doneCh := make(chan struct{}), make(chan struct{})
			m.stopCh, m.loopDone = stopCh, doneCh
			m.running.Store(true)
			m.loopMu.Unlock()
			return stopCh, doneCh, true
		}
		if m.stopCh != nil {
			m.loopMu.Unlock()
			m.logger.Warn("Health monitor already running")
			return nil, nil, false
		}
		previous := m.loopDone
		m.loopMu.Unlock()

		select {
		case <-previous:
		case <-ctx.Done():
			return nil, nil, false
		}
	}
}

func (m *Monitor) endLoop(doneCh chan struct{}) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	m.running.Store(false)
	m.stopCh = nil
	m.loopDone = nil
	close(doneCh)
}

// sweep runs one CheckAllServices and converts a panic into an error
func (m *Monitor) sweep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health sweep panicked: %v", r)
		}
	}()
	_, err = m.CheckAllServices(ctx)

	stats := m.pool.Stats()
	m.logger.Debug("Health sweep finished",
		zap.Uint64("probes_completed", stats.CompletedTasks),
		zap.Uint64("probes_failed", stats.FailedTasks),
		zap.Uint64("probes_panicked", stats.PanickedTasks),
		zap.Uint64("probes_rejected", stats.RejectedTasks))
	return err
}

// Stop asks the running loop to exit after the current sweep. It does not
// wait; IsRunning stays true until the loop has returned.
func (m *Monitor) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}

// IsRunning reports whether a periodic loop is alive
func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

// Close stops the loop and the probe worker pool
func (m *Monitor) Close() error {
	m.Stop()
	return m.pool.Stop(poolStopTimeout)
}

// Services returns the registered service names in sorted order
func (m *Monitor) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceURL returns the registered URL of a service
func (m *Monitor) ServiceURL(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.services[name]
	if !ok {
		return "", false
	}
	return entry.url, true
}

// LastHealth returns the last recorded check of a service
func (m *Monitor) LastHealth(name string) (model.ServiceHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.services[name]
	if !ok || entry.lastHealth == nil {
		return model.ServiceHealth{}, false
	}
	return *entry.lastHealth, true
}

// LastHealthAll returns the last recorded check of every service that has one
func (m *Monitor) LastHealthAll() map[string]model.ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]model.ServiceHealth, len(m.services))
	for name, entry := range m.services {
		if entry.lastHealth != nil {
			out[name] = *entry.lastHealth
		}
	}
	return out
}

// History returns a copy of a service's recorded checks, oldest first
func (m *Monitor) History(name string) ([]model.ServiceHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.services[name]
	if !ok {
		return nil, monerrors.NewServiceNotFoundError(name)
	}
	out := make([]model.ServiceHealth, len(entry.history))
	copy(out, entry.history)
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
