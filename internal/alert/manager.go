// Package alert evaluates alert rules over collector and health state and
// dispatches new alerts to notifiers.
package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxResolved = 500

// EvalContext is the state every rule sees during one evaluation pass
type EvalContext struct {
	Metrics model.PerformanceMetrics
	Health  map[string]model.ServiceHealth
}

// Rule inspects an EvalContext and returns an alert when its condition holds
type Rule interface {
	Name() string
	Evaluate(ec EvalContext) (*model.Alert, error)
}

// RuleFunc adapts a function to the evaluation half of Rule
type RuleFunc func(ec EvalContext) (*model.Alert, error)

type namedRule struct {
	name string
	fn   RuleFunc
}

func (r *namedRule) Name() string { return r.name }

func (r *namedRule) Evaluate(ec EvalContext) (*model.Alert, error) { return r.fn(ec) }

// NewRule wraps fn as a Rule called name
func NewRule(name string, fn RuleFunc) Rule {
	return &namedRule{name: name, fn: fn}
}

// Notifier delivers a newly triggered alert somewhere
type Notifier interface {
	Notify(ctx context.Context, alert model.Alert) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, alert model.Alert) error

// Notify calls f(ctx, alert)
func (f NotifierFunc) Notify(ctx context.Context, alert model.Alert) error {
	return f(ctx, alert)
}

// ManagerConfig holds alert manager configuration
type ManagerConfig struct {
	// MaxResolvedAlerts bounds how many resolved alerts are retained
	MaxResolvedAlerts int
}

// Manager owns the alert list, the rules and the notifiers
type Manager struct {
	mu          sync.RWMutex
	alerts      []*model.Alert
	rules       []Rule
	notifiers   []Notifier
	maxResolved int

	logger *zap.Logger
	now    func() time.Time
}

// Option customises a Manager
type Option func(*Manager)

// WithClock replaces the time source used to stamp alerts
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a new alert manager with no rules and no notifiers
func NewManager(cfg *ManagerConfig, logger *zap.Logger, opts ...Option) *Manager {
	if cfg == nil {
		cfg = &ManagerConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		maxResolved: cfg.MaxResolvedAlerts,
		logger:      logger,
		now:         time.Now,
	}
	if m.maxResolved <= 0 {
		m.maxResolved = defaultMaxResolved
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddRule appends a rule. Rules are evaluated in registration order.
func (m *Manager) AddRule(rule Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// AddNotifier appends a notifier. Notifiers are called in registration order.
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// CheckAlerts evaluates every rule against the same context and returns the
// alerts that were newly triggered. A rule that fails is logged and skipped.
// An alert whose (service, level) pair already has an unresolved alert is
// dropped without touching the existing one.
func (m *Manager) CheckAlerts(ctx context.Context, metrics model.PerformanceMetrics, health map[string]model.ServiceHealth) []model.Alert {
	ec := EvalContext{Metrics: metrics, Health: health}

	m.mu.RLock()
	rules := make([]Rule, len(m.rules))
	copy(rules, m.rules)
	m.mu.RUnlock()

	var triggered []model.Alert
	for _, rule := range rules {
		alert, err := evaluate(rule, ec)
		if err != nil {
			m.logger.Error("Alert rule evaluation failed",
				zap.String("rule", rule.Name()),
				zap.Error(err))
			continue
		}
		if alert == nil {
			continue
		}
		if !alert.Level.Valid() {
			m.logger.Error("Alert rule returned an unknown level",
				zap.String("rule", rule.Name()),
				zap.String("level", string(alert.Level)))
			continue
		}

		if a, ok := m.trigger(rule.Name(), *alert); ok {
			m.notify(ctx, a)
			triggered = append(triggered, a)
		}
	}
	return triggered
}

func evaluate(rule Rule, ec EvalContext) (alert *model.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alert, err = nil, fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return rule.Evaluate(ec)
}

// trigger appends the alert unless an unresolved alert with the same key exists
func (m *Manager) trigger(ruleName string, alert model.Alert) (model.Alert, bool) {
	if alert.Service == "" {
		alert.Service = model.SystemService
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.alerts {
		if !existing.Resolved && existing.SameKey(alert) {
			return model.Alert{}, false
		}
	}

	if alert.ID == "" {
		alert.ID = fmt.Sprintf("%s-%s", ruleName, uuid.NewString())
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = m.now()
	}
	alert.Resolved = false
	alert.ResolvedAt = nil

	stored := alert
	m.alerts = append(m.alerts, &stored)

	m.logger.Info("Alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.String("service", alert.Service))
	return alert, true
}

func (m *Manager) notify(ctx context.Context, alert model.Alert) {
	m.mu.RLock()
	notifiers := make([]Notifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.RUnlock()

	for i, n := range notifiers {
		if err := safeNotify(ctx, n, alert); err != nil {
			m.logger.Error("Alert notification failed",
				zap.Int("notifier", i),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}
}

func safeNotify(ctx context.Context, n Notifier, alert model.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()
	return n.Notify(ctx, alert)
}

// ResolveAlert resolves the unresolved alert with the given id. It reports
// false, changing nothing, when the id is unknown or already resolved.
func (m *Manager) ResolveAlert(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id && !a.Resolved {
			a.Resolve(m.now())
			m.evictResolved()
			m.logger.Info("Alert resolved",
				zap.String("alert_id", id),
				zap.String("service", a.Service))
			return true
		}
	}
	return false
}

// evictResolved drops the resolved alerts with the oldest resolution time
// until at most maxResolved remain. Caller holds mu.
func (m *Manager) evictResolved() {
	var resolved []*model.Alert
	for _, a := range m.alerts {
		if a.Resolved {
			resolved = append(resolved, a)
		}
	}
	excess := len(resolved) - m.maxResolved
	if excess <= 0 {
		return
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].ResolvedAt.Before(*resolved[j].ResolvedAt)
	})
	evict := make(map[*model.Alert]struct{}, excess)
	for _, a := range resolved[:excess] {
		evict[a] = struct{}{}
	}

	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if _, ok := evict[a]; !ok {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(m.alerts); i++ {
		m.alerts[i] = nil
	}
	m.alerts = kept

	m.logger.Debug("Evicted resolved alerts", zap.Int("count", excess))
}

// ActiveAlerts returns the unresolved alerts in creation order
func (m *Manager) ActiveAlerts() []model.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

// Alerts returns every retained alert in creation order
func (m *Manager) Alerts() []model.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Alert, len(m.alerts))
	for i, a := range m.alerts {
		out[i] = *a
	}
	return out
}

// Get returns the retained alert with the given id
func (m *Manager) Get(id string) (model.Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.alerts {
		if a.ID == id {
			return *a, true
		}
	}
	return model.Alert{}, false
}
