package model

import "time"

// Severity is the level of an alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// SystemService is the service name used by alerts about global conditions
const SystemService = "system"

// Alert is one triggered alert. Only Resolve changes it after creation.
type Alert struct {
	ID         string     `json:"id"`
	Level      Severity   `json:"level"`
	Message    string     `json:"message"`
	Service    string     `json:"service"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// Resolve marks the alert resolved at the given time
func (a *Alert) Resolve(at time.Time) {
	a.Resolved = true
	a.ResolvedAt = &at
}

// SameKey reports whether two alerts share the (service, level) dedup key
func (a Alert) SameKey(other Alert) bool {
	return a.Service == other.Service && a.Level == other.Level
}
