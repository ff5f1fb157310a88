package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"go.uber.org/zap"
)

const defaultWebhookTimeout = 10 * time.Second

var levelIcons = map[model.Severity]string{
	model.SeverityInfo:     "ℹ️",
	model.SeverityWarning:  "⚠️",
	model.SeverityCritical: "🚨",
}

// ConsoleNotifier writes one line per alert
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier creates a console notifier. A nil writer means stdout.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleNotifier{w: w}
}

// Notify implements Notifier
func (n *ConsoleNotifier) Notify(_ context.Context, alert model.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := fmt.Fprintf(n.w, "%s [%s] %s: %s\n",
		levelIcons[alert.Level], strings.ToUpper(string(alert.Level)), alert.Service, alert.Message)
	return err
}

// LogNotifier writes alerts to a zap logger at a level matching the severity
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, alert model.Alert) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("service", alert.Service),
		zap.String("level", string(alert.Level)),
		zap.Time("timestamp", alert.Timestamp),
	}
	msg := "Alert: " + alert.Message

	switch alert.Level {
	case model.SeverityCritical:
		n.logger.Error(msg, fields...)
	case model.SeverityWarning:
		n.logger.Warn(msg, fields...)
	default:
		n.logger.Info(msg, fields...)
	}
	return nil
}

// WebhookPayload is the JSON body posted for every new alert
type WebhookPayload struct {
	AlertID   string `json:"alert_id"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// HTTPClient sends a single HTTP request
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier posts alerts to an HTTP endpoint. Failures are not retried.
type WebhookNotifier struct {
	url    string
	client HTTPClient
}

// NewWebhookNotifier creates a webhook notifier with a per-request timeout
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return NewWebhookNotifierWithClient(url, &http.Client{Timeout: timeout})
}

// NewWebhookNotifierWithClient creates a webhook notifier that posts through client
func NewWebhookNotifierWithClient(url string, client HTTPClient) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &WebhookNotifier{
		url:    url,
		client: client,
	}
}

// Notify implements Notifier
func (n *WebhookNotifier) Notify(ctx context.Context, alert model.Alert) error {
	body, err := json.Marshal(WebhookPayload{
		AlertID:   alert.ID,
		Level:     string(alert.Level),
		Service:   alert.Service,
		Message:   alert.Message,
		Timestamp: alert.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
