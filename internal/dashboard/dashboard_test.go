package dashboard

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	snapshot  model.PerformanceMetrics
	stats     map[string]model.ServiceStats
	snapshots int
}

func (f *fakeMetrics) Snapshot() model.PerformanceMetrics {
	f.snapshots++
	return f.snapshot
}

func (f *fakeMetrics) ServiceStats(service string) model.ServiceStats {
	return f.stats[service]
}

type fakeHealth struct {
	services []string
	last     map[string]model.ServiceHealth
}

func (f *fakeHealth) Services() []string                            { return f.services }
func (f *fakeHealth) LastHealthAll() map[string]model.ServiceHealth { return f.last }

type fakeAlerts []model.Alert

func (f fakeAlerts) ActiveAlerts() []model.Alert { return f }

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture() (*fakeMetrics, *fakeHealth, fakeAlerts) {
	metrics := &fakeMetrics{
		snapshot: model.PerformanceMetrics{
			Timestamp:         fixedNow,
			RequestsTotal:     42,
			RequestsPerSecond: 0.7,
			AvgResponseTime:   1.25,
			ErrorRate:         4.76,
			MemoryUsage:       128,
			CPUUsage:          3.5,
		},
		stats: map[string]model.ServiceStats{
			"ANATEL": {Requests: 30, Errors: 2, ErrorRate: 6.67, AvgResponseTime: 1.5},
			"IBGE":   {Requests: 12, ErrorRate: 0, AvgResponseTime: 0.6},
		},
	}
	health := &fakeHealth{
		services: []string{"ANA", "ANATEL", "IBGE"},
		last: map[string]model.ServiceHealth{
			"ANATEL": {Name: "ANATEL", Status: model.HealthStatusUnhealthy, ResponseTime: 30, UptimePercentage: 60, ErrorMessage: "Timeout"},
			"IBGE":   {Name: "IBGE", Status: model.HealthStatusHealthy, ResponseTime: 0.4, UptimePercentage: 100},
		},
	}
	alerts := fakeAlerts{{
		ID:        "service_down-1",
		Level:     model.SeverityCritical,
		Message:   "Service ANATEL unavailable: <Timeout>",
		Service:   "ANATEL",
		Timestamp: fixedNow,
	}}
	return metrics, health, alerts
}

func TestDashboard_Generate(t *testing.T) {
	metrics, health, alerts := newFixture()
	d := New(metrics, health, alerts).WithClock(func() time.Time { return fixedNow })

	data := d.Generate()

	assert.Equal(t, fixedNow, data.Timestamp)
	assert.Equal(t, metrics.snapshot, data.SystemMetrics)
	assert.Equal(t, 3, data.TotalServices)
	assert.Equal(t, 1, data.HealthyServices)
	assert.Len(t, data.ServiceStatus, 2)
	assert.NotContains(t, data.ServiceStatus, "ANA")

	require.Len(t, data.ServiceStats, 3)
	assert.Equal(t, model.ServiceStats{}, data.ServiceStats["ANA"])
	assert.Equal(t, int64(30), data.ServiceStats["ANATEL"].Requests)

	require.Len(t, data.ActiveAlerts, 1)
	assert.Equal(t, "ANATEL", data.ActiveAlerts[0].Service)
}

func TestDashboard_GenerateIsReadOnly(t *testing.T) {
	metrics, health, alerts := newFixture()
	d := New(metrics, health, alerts)

	first := d.Generate()
	second := d.Generate()

	assert.Equal(t, 2, metrics.snapshots)
	assert.Equal(t, first.SystemMetrics, second.SystemMetrics)
	assert.Equal(t, first.ServiceStatus, second.ServiceStatus)
}

func TestDashboard_GenerateJSONShape(t *testing.T) {
	metrics, health, _ := newFixture()
	d := New(metrics, health, fakeAlerts(nil))

	raw, err := json.Marshal(d.Generate())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{
		"timestamp", "system_metrics", "service_status", "service_stats",
		"active_alerts", "total_services", "healthy_services",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, []interface{}{}, decoded["active_alerts"])
}

func TestDashboard_RenderHTML(t *testing.T) {
	metrics, health, alerts := newFixture()
	d := New(metrics, health, alerts).WithClock(func() time.Time { return fixedNow })

	page, err := d.RenderHTML()
	require.NoError(t, err)

	assert.Contains(t, page, `<meta http-equiv="refresh" content="30">`)
	assert.Contains(t, page, "Last update: 2024-03-01T12:00:00Z")
	assert.Contains(t, page, "<strong>RPS:</strong> 0.7")
	assert.Contains(t, page, "<strong>Error rate:</strong> 4.8%")
	assert.Contains(t, page, "Healthy services: 1/3")
	assert.Contains(t, page, "<strong>ANATEL:</strong> unhealthy (30.0s, 60.0% uptime)")
	assert.Contains(t, page, "<strong>[CRITICAL]</strong> ANATEL")
	assert.Contains(t, page, "<tr><td>ANATEL</td><td>30</td><td>2</td><td>6.7%</td><td>1.5s</td></tr>")

	// alert messages are escaped
	assert.Contains(t, page, "&lt;Timeout&gt;")
	assert.NotContains(t, page, "<Timeout>")

	summary := strings.Index(page, "System Metrics")
	services := strings.Index(page, "Service Health")
	active := strings.Index(page, "Active Alerts")
	stats := strings.Index(page, "Service Statistics")
	assert.True(t, summary < services && services < active && active < stats)

	again, err := d.RenderHTML()
	require.NoError(t, err)
	assert.Equal(t, page, again)
}

func TestDashboard_RenderHTMLWithoutAlerts(t *testing.T) {
	metrics, health, _ := newFixture()
	page, err := New(metrics, health, fakeAlerts(nil)).RenderHTML()
	require.NoError(t, err)
	assert.NotContains(t, page, "Active Alerts")
	assert.Contains(t, page, "<tr><td>ANA</td><td>0</td><td>0</td><td>0.0%</td><td>0.0s</td></tr>")
}
