package alert

import (
	"context"
	"testing"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalRule(t *testing.T, name string, ec EvalContext) *model.Alert {
	t.Helper()
	for _, r := range DefaultRules(DefaultThresholds()) {
		if r.Name() == name {
			a, err := r.Evaluate(ec)
			require.NoError(t, err)
			return a
		}
	}
	t.Fatalf("rule %s not found", name)
	return nil
}

func TestDefaultRules_Order(t *testing.T) {
	var names []string
	for _, r := range DefaultRules(DefaultThresholds()) {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{RuleHighErrorRate, RuleSlowResponse, RuleServiceDown, RuleHighMemory}, names)
}

func TestHighErrorRateRule(t *testing.T) {
	assert.Nil(t, evalRule(t, RuleHighErrorRate, EvalContext{Metrics: model.PerformanceMetrics{ErrorRate: 10}}))

	a := evalRule(t, RuleHighErrorRate, EvalContext{Metrics: model.PerformanceMetrics{ErrorRate: 12.5}})
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityCritical, a.Level)
	assert.Equal(t, model.SystemService, a.Service)
	assert.Equal(t, "High error rate: 12.5%", a.Message)
}

func TestSlowResponseRule(t *testing.T) {
	assert.Nil(t, evalRule(t, RuleSlowResponse, EvalContext{Metrics: model.PerformanceMetrics{AvgResponseTime: 10}}))

	a := evalRule(t, RuleSlowResponse, EvalContext{Metrics: model.PerformanceMetrics{AvgResponseTime: 11.24}})
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityWarning, a.Level)
	assert.Equal(t, model.SystemService, a.Service)
	assert.Equal(t, "Slow response: 11.2s", a.Message)
}

func TestServiceDownRule(t *testing.T) {
	health := map[string]model.ServiceHealth{
		"ICMBio": {Name: "ICMBio", Status: model.HealthStatusUnhealthy, ErrorMessage: "HTTP 500"},
		"ANA":    {Name: "ANA", Status: model.HealthStatusDegraded},
		"IBGE":   {Name: "IBGE", Status: model.HealthStatusUnhealthy, ErrorMessage: "Timeout"},
		"ANATEL": {Name: "ANATEL", Status: model.HealthStatusHealthy},
	}

	a := evalRule(t, RuleServiceDown, EvalContext{Health: health})
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityCritical, a.Level)
	assert.Equal(t, "IBGE", a.Service)
	assert.Equal(t, "Service IBGE unavailable: Timeout", a.Message)

	assert.Nil(t, evalRule(t, RuleServiceDown, EvalContext{Health: map[string]model.ServiceHealth{
		"ANA": {Status: model.HealthStatusDegraded},
	}}))
	assert.Nil(t, evalRule(t, RuleServiceDown, EvalContext{}))
}

func TestHighMemoryRule(t *testing.T) {
	assert.Nil(t, evalRule(t, RuleHighMemory, EvalContext{Metrics: model.PerformanceMetrics{MemoryUsage: 1000}}))

	a := evalRule(t, RuleHighMemory, EvalContext{Metrics: model.PerformanceMetrics{MemoryUsage: 1200}})
	require.NotNil(t, a)
	assert.Equal(t, model.SeverityWarning, a.Level)
	assert.Equal(t, "High memory usage: 1200.0MB", a.Message)
}

func TestDefaultRules_CustomThresholds(t *testing.T) {
	m := NewManager(nil, nil)
	RegisterDefaultRules(m, Thresholds{ErrorRate: 1, ResponseTime: time.Second, MemoryMB: 10})

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{
		ErrorRate:       2,
		AvgResponseTime: 1.5,
		MemoryUsage:     11,
	}, nil)

	require.Len(t, triggered, 2)
	// high_memory shares (system, warning) with slow_response and is deduplicated
	assert.Equal(t, model.SeverityCritical, triggered[0].Level)
	assert.Equal(t, model.SeverityWarning, triggered[1].Level)
	assert.Contains(t, triggered[1].Message, "Slow response")
}
