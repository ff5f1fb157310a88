// Package dashboard composes collector, monitor and alert state into a
// structured view and an HTML page.
package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
)

// MetricsSource is the collector surface the dashboard reads
type MetricsSource interface {
	Snapshot() model.PerformanceMetrics
	ServiceStats(service string) model.ServiceStats
}

// HealthSource is the monitor surface the dashboard reads
type HealthSource interface {
	Services() []string
	LastHealthAll() map[string]model.ServiceHealth
}

// AlertSource is the alert manager surface the dashboard reads
type AlertSource interface {
	ActiveAlerts() []model.Alert
}

// Data is the structured dashboard view
type Data struct {
	Timestamp       time.Time                      `json:"timestamp"`
	SystemMetrics   model.PerformanceMetrics       `json:"system_metrics"`
	ServiceStatus   map[string]model.ServiceHealth `json:"service_status"`
	ServiceStats    map[string]model.ServiceStats  `json:"service_stats"`
	ActiveAlerts    []model.Alert                  `json:"active_alerts"`
	TotalServices   int                            `json:"total_services"`
	HealthyServices int                            `json:"healthy_services"`
}

// Dashboard reads from its sources and never records anything
type Dashboard struct {
	metrics MetricsSource
	health  HealthSource
	alerts  AlertSource
	now     func() time.Time
}

// New creates a dashboard over the given sources
func New(metrics MetricsSource, health HealthSource, alerts AlertSource) *Dashboard {
	return &Dashboard{
		metrics: metrics,
		health:  health,
		alerts:  alerts,
		now:     time.Now,
	}
}

// WithClock replaces the time source used to stamp generated views
func (d *Dashboard) WithClock(now func() time.Time) *Dashboard {
	d.now = now
	return d
}

// Generate builds the structured view. Services never checked are counted in
// TotalServices and ServiceStats but are absent from ServiceStatus.
func (d *Dashboard) Generate() Data {
	services := d.health.Services()
	status := d.health.LastHealthAll()

	stats := make(map[string]model.ServiceStats, len(services))
	for _, name := range services {
		stats[name] = d.metrics.ServiceStats(name)
	}

	healthy := 0
	for _, h := range status {
		if h.IsHealthy() {
			healthy++
		}
	}

	alerts := d.alerts.ActiveAlerts()
	if alerts == nil {
		alerts = []model.Alert{}
	}

	return Data{
		Timestamp:       d.now(),
		SystemMetrics:   d.metrics.Snapshot(),
		ServiceStatus:   status,
		ServiceStats:    stats,
		ActiveAlerts:    alerts,
		TotalServices:   len(services),
		HealthyServices: healthy,
	}
}

type namedHealth struct {
	Name string
	model.ServiceHealth
}

type namedStats struct {
	Name string
	model.ServiceStats
}

type pageData struct {
	Data
	Status []namedHealth
	Stats  []namedStats
}

var pageTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"f1":    func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"upper": func(s model.Severity) string { return strings.ToUpper(string(s)) },
	"ts":    func(t time.Time) string { return t.Format(time.RFC3339) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
    <title>INDE MCP - Dashboard</title>
    <meta http-equiv="refresh" content="30">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .metric { display: inline-block; margin: 10px; padding: 10px; border: 1px solid #ddd; }
        .healthy { color: green; }
        .degraded { color: orange; }
        .unhealthy { color: red; }
        .alert { padding: 10px; margin: 5px; border-left: 4px solid red; background: #ffe6e6; }
    </style>
</head>
<body>
    <h1>INDE MCP Server - Dashboard</h1>
    <p>Last update: {{ts .Timestamp}}</p>

    <h2>System Metrics</h2>
    <div class="metric"><strong>Total requests:</strong> {{.SystemMetrics.RequestsTotal}}</div>
    <div class="metric"><strong>RPS:</strong> {{f1 .SystemMetrics.RequestsPerSecond}}</div>
    <div class="metric"><strong>Average response time:</strong> {{f1 .SystemMetrics.AvgResponseTime}}s</div>
    <div class="metric"><strong>Error rate:</strong> {{f1 .SystemMetrics.ErrorRate}}%</div>
    <div class="metric"><strong>Memory:</strong> {{f1 .SystemMetrics.MemoryUsage}}MB</div>
    <div class="metric"><strong>CPU:</strong> {{f1 .SystemMetrics.CPUUsage}}%</div>

    <h2>Service Health</h2>
    <p>Healthy services: {{.HealthyServices}}/{{.TotalServices}}</p>
{{- range .Status}}
    <div class="metric {{.Status}}"><strong>{{.Name}}:</strong> {{.Status}} ({{f1 .ResponseTime}}s, {{f1 .UptimePercentage}}% uptime)</div>
{{- end}}
{{- if .ActiveAlerts}}

    <h2>Active Alerts</h2>
{{- range .ActiveAlerts}}
    <div class="alert"><strong>[{{upper .Level}}]</strong> {{.Service}}: {{.Message}}<br><small>{{ts .Timestamp}}</small></div>
{{- end}}
{{- end}}

    <h2>Service Statistics</h2>
    <table border="1">
        <tr><th>Service</th><th>Requests</th><th>Errors</th><th>Error rate</th><th>Average time</th></tr>
{{- range .Stats}}
        <tr><td>{{.Name}}</td><td>{{.Requests}}</td><td>{{.Errors}}</td><td>{{f1 .ErrorRate}}%</td><td>{{f1 .AvgResponseTime}}s</td></tr>
{{- end}}
    </table>
</body>
</html>
`))

// RenderHTML renders the current view as a self-refreshing HTML page. Service
// rows are sorted by name.
func (d *Dashboard) RenderHTML() (string, error) {
	return Render(d.Generate())
}

// Render renders a previously generated view
func Render(data Data) (string, error) {
	page := pageData{Data: data}

	for _, name := range sortedNames(data.ServiceStatus) {
		page.Status = append(page.Status, namedHealth{Name: name, ServiceHealth: data.ServiceStatus[name]})
	}
	for _, name := range sortedNames(data.ServiceStats) {
		page.Stats = append(page.Stats, namedStats{Name: name, ServiceStats: data.ServiceStats[name]})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("failed to render dashboard: %w", err)
	}
	return buf.String(), nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
