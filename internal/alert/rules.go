package alert

import (
	"fmt"
	"sort"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
)

// Default rule names
const (
	RuleHighErrorRate = "high_error_rate"
	RuleSlowResponse  = "slow_response"
	RuleServiceDown   = "service_down"
	RuleHighMemory    = "high_memory"
)

// Thresholds parameterise the default rules. Each rule fires strictly above
// its threshold.
type Thresholds struct {
	ErrorRate    float64
	ResponseTime time.Duration
	MemoryMB     float64
}

// DefaultThresholds returns the stock rule thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrorRate:    10,
		ResponseTime: 10 * time.Second,
		MemoryMB:     1000,
	}
}

// DefaultRules returns the four stock rules in evaluation order
func DefaultRules(t Thresholds) []Rule {
	return []Rule{
		NewRule(RuleHighErrorRate, highErrorRate(t.ErrorRate)),
		NewRule(RuleSlowResponse, slowResponse(t.ResponseTime)),
		NewRule(RuleServiceDown, serviceDown),
		NewRule(RuleHighMemory, highMemory(t.MemoryMB)),
	}
}

// RegisterDefaultRules adds the stock rules to m
func RegisterDefaultRules(m *Manager, t Thresholds) {
	for _, r := range DefaultRules(t) {
		m.AddRule(r)
	}
}

func highErrorRate(threshold float64) RuleFunc {
	return func(ec EvalContext) (*model.Alert, error) {
		if ec.Metrics.ErrorRate <= threshold {
			return nil, nil
		}
		return &model.Alert{
			Level:   model.SeverityCritical,
			Message: fmt.Sprintf("High error rate: %.1f%%", ec.Metrics.ErrorRate),
			Service: model.SystemService,
		}, nil
	}
}

func slowResponse(threshold time.Duration) RuleFunc {
	return func(ec EvalContext) (*model.Alert, error) {
		if ec.Metrics.AvgResponseTime <= threshold.Seconds() {
			return nil, nil
		}
		return &model.Alert{
			Level:   model.SeverityWarning,
			Message: fmt.Sprintf("Slow response: %.1fs", ec.Metrics.AvgResponseTime),
			Service: model.SystemService,
		}, nil
	}
}

// serviceDown fires for the first unhealthy service by name
func serviceDown(ec EvalContext) (*model.Alert, error) {
	names := make([]string, 0, len(ec.Health))
	for name := range ec.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h := ec.Health[name]
		if h.Status != model.HealthStatusUnhealthy {
			continue
		}
		return &model.Alert{
			Level:   model.SeverityCritical,
			Message: fmt.Sprintf("Service %s unavailable: %s", name, h.ErrorMessage),
			Service: name,
		}, nil
	}
	return nil, nil
}

func highMemory(thresholdMB float64) RuleFunc {
	return func(ec EvalContext) (*model.Alert, error) {
		if ec.Metrics.MemoryUsage <= thresholdMB {
			return nil, nil
		}
		return &model.Alert{
			Level:   model.SeverityWarning,
			Message: fmt.Sprintf("High memory usage: %.1fMB", ec.Metrics.MemoryUsage),
			Service: model.SystemService,
		}, nil
	}
}
