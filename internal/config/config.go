package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string            `yaml:"host"`
	Port            int               `yaml:"port"`
	ReadTimeout     time.Duration     `yaml:"read_timeout"`
	WriteTimeout    time.Duration     `yaml:"write_timeout"`
	IdleTimeout     time.Duration     `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"`
	StreamInterval  time.Duration     `yaml:"stream_interval"`
	RateLimiter     RateLimiterConfig `yaml:"rate_limiter"`
}

// RateLimiterConfig holds rate limiter configuration for the read endpoints
type RateLimiterConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// MonitorConfig holds health probing and control loop configuration
type MonitorConfig struct {
	CheckInterval       time.Duration `yaml:"check_interval"`
	CycleInterval       time.Duration `yaml:"cycle_interval"`
	ErrorBackoff        time.Duration `yaml:"error_backoff"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	MaxConcurrentProbes int           `yaml:"max_concurrent_probes"`
	HistorySize         int           `yaml:"history_size"`
}

// MetricsConfig holds collector and exporter configuration
type MetricsConfig struct {
	Enabled     bool `yaml:"enabled"`
	HistorySize int  `yaml:"history_size"`
}

// AlertsConfig holds alert rule thresholds and notification settings
type AlertsConfig struct {
	ErrorRateThreshold    float64       `yaml:"error_rate_threshold"`
	ResponseTimeThreshold time.Duration `yaml:"response_time_threshold"`
	MemoryThresholdMB     float64       `yaml:"memory_threshold_mb"`
	MaxResolvedAlerts     int           `yaml:"max_resolved_alerts"`
	WebhookURL            string        `yaml:"webhook_url" validate:"omitempty,url"`
	WebhookTimeout        time.Duration `yaml:"webhook_timeout"`
	Console               bool          `yaml:"console"`
	Email                 EmailConfig   `yaml:"email"`
}

// EmailConfig holds the SES email notifier settings
type EmailConfig struct {
	Enabled bool     `yaml:"enabled"`
	Region  string   `yaml:"region"`
	From    string   `yaml:"from" validate:"omitempty,email"`
	To      []string `yaml:"to" validate:"omitempty,dive,email"`
}

// HealthConfig holds the thresholds used by the health endpoint
type HealthConfig struct {
	MaxErrorRate    float64       `yaml:"max_error_rate"`
	MaxResponseTime time.Duration `yaml:"max_response_time"`
	MaxMemoryMB     float64       `yaml:"max_memory_mb"`
}

// ServiceTarget is a named probe target
type ServiceTarget struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url" validate:"omitempty,url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the monitor
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Monitor  MonitorConfig   `yaml:"monitor"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Alerts   AlertsConfig    `yaml:"alerts"`
	Health   HealthConfig    `yaml:"health"`
	Services []ServiceTarget `yaml:"services" validate:"dive"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// DefaultServices are the geospatial catalogs monitored when none are configured
var DefaultServices = []ServiceTarget{
	{Name: "ANATEL", URL: "https://sistemas.anatel.gov.br/geoserver/ows"},
	{Name: "ANA", URL: "https://metadados.snirh.gov.br/geoserver/wfs"},
	{Name: "IBGE", URL: "https://geoservicos.ibge.gov.br/geoserver/wfs"},
	{Name: "INCRA", URL: "https://certificacao.incra.gov.br/csv_shp/export_shp.py"},
	{Name: "ICMBio", URL: "https://geoservicos.icmbio.gov.br/geoserver/ows"},
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
		Alerts:  AlertsConfig{Console: true},
	}
	setDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Metrics: MetricsConfig{Enabled: true},
		Alerts:  AlertsConfig{Console: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.StreamInterval == 0 {
		cfg.Server.StreamInterval = 5 * time.Second
	}
	if cfg.Server.RateLimiter.RequestsPerSecond == 0 {
		cfg.Server.RateLimiter.RequestsPerSecond = 50
	}
	if cfg.Server.RateLimiter.BurstSize == 0 {
		cfg.Server.RateLimiter.BurstSize = 20
	}

	if cfg.Monitor.CheckInterval == 0 {
		cfg.Monitor.CheckInterval = 300 * time.Second
	}
	if cfg.Monitor.CycleInterval == 0 {
		cfg.Monitor.CycleInterval = 60 * time.Second
	}
	if cfg.Monitor.ErrorBackoff == 0 {
		cfg.Monitor.ErrorBackoff = 10 * time.Second
	}
	if cfg.Monitor.ProbeTimeout == 0 {
		cfg.Monitor.ProbeTimeout = 30 * time.Second
	}
	if cfg.Monitor.MaxConcurrentProbes == 0 {
		cfg.Monitor.MaxConcurrentProbes = 10
	}
	if cfg.Monitor.HistorySize == 0 {
		cfg.Monitor.HistorySize = 100
	}

	if cfg.Metrics.HistorySize == 0 {
		cfg.Metrics.HistorySize = 1000
	}

	if cfg.Alerts.ErrorRateThreshold == 0 {
		cfg.Alerts.ErrorRateThreshold = 10
	}
	if cfg.Alerts.ResponseTimeThreshold == 0 {
		cfg.Alerts.ResponseTimeThreshold = 10 * time.Second
	}
	if cfg.Alerts.MemoryThresholdMB == 0 {
		cfg.Alerts.MemoryThresholdMB = 1000
	}
	if cfg.Alerts.MaxResolvedAlerts == 0 {
		cfg.Alerts.MaxResolvedAlerts = 500
	}
	if cfg.Alerts.WebhookTimeout == 0 {
		cfg.Alerts.WebhookTimeout = 10 * time.Second
	}

	if cfg.Health.MaxErrorRate == 0 {
		cfg.Health.MaxErrorRate = 20
	}
	if cfg.Health.MaxResponseTime == 0 {
		cfg.Health.MaxResponseTime = 30 * time.Second
	}
	if cfg.Health.MaxMemoryMB == 0 {
		cfg.Health.MaxMemoryMB = 2000
	}

	if len(cfg.Services) == 0 {
		cfg.Services = append([]ServiceTarget(nil), DefaultServices...)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RateLimiter.Enabled {
		if c.Server.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("server.rate_limiter.requests_per_second must be positive")
		}
		if c.Server.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("server.rate_limiter.burst_size must be positive")
		}
	}
	if c.Monitor.CheckInterval < 0 || c.Monitor.CycleInterval < 0 || c.Monitor.ErrorBackoff < 0 {
		return fmt.Errorf("monitor intervals must not be negative")
	}
	if c.Monitor.ProbeTimeout < 0 {
		return fmt.Errorf("monitor.probe_timeout must not be negative")
	}
	if c.Monitor.MaxConcurrentProbes < 0 {
		return fmt.Errorf("monitor.max_concurrent_probes must not be negative")
	}
	if c.Alerts.ErrorRateThreshold < 0 || c.Alerts.ErrorRateThreshold > 100 {
		return fmt.Errorf("alerts.error_rate_threshold must be between 0 and 100")
	}
	if c.Health.MaxErrorRate < 0 || c.Health.MaxErrorRate > 100 {
		return fmt.Errorf("health.max_error_rate must be between 0 and 100")
	}

	seen := make(map[string]struct{}, len(c.Services))
	for i, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d].name is required", i)
		}
		if svc.URL == "" {
			return fmt.Errorf("services[%d].url is required", i)
		}
		if _, dup := seen[svc.Name]; dup {
			return fmt.Errorf("duplicate service name %q", svc.Name)
		}
		seen[svc.Name] = struct{}{}
	}

	if c.Alerts.Email.Enabled {
		if c.Alerts.Email.From == "" || len(c.Alerts.Email.To) == 0 {
			return fmt.Errorf("alerts.email requires from and at least one to address")
		}
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
