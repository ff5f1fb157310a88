package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
)

// DefaultProbeTimeout bounds a single HTTP probe
const DefaultProbeTimeout = 30 * time.Second

// ProbeResult is the classification of one probe
type ProbeResult struct {
	Status       model.HealthStatus
	ResponseTime time.Duration
	ErrorMessage string
}

// Probe checks one target. An error means the probe itself failed and no
// classification could be made.
type Probe interface {
	Check(ctx context.Context, url string) (ProbeResult, error)
}

// ProbeFunc adapts a function to Probe
type ProbeFunc func(ctx context.Context, url string) (ProbeResult, error)

// Check calls f(ctx, url)
func (f ProbeFunc) Check(ctx context.Context, url string) (ProbeResult, error) {
	return f(ctx, url)
}

// HTTPProbe issues a GET and classifies the outcome. It never returns an error.
type HTTPProbe struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProbe creates an HTTP probe. A nil client uses a fresh http.Client.
func NewHTTPProbe(client *http.Client, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProbe{client: client, timeout: timeout}
}

// Check implements Probe
func (p *HTTPProbe) Check(ctx context.Context, url string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{
			Status:       model.HealthStatusUnhealthy,
			ResponseTime: p.timeout,
			ErrorMessage: err.Error(),
		}, nil
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		message := err.Error()
		if isTimeout(err) {
			message = "Timeout"
		}
		return ProbeResult{
			Status:       model.HealthStatusUnhealthy,
			ResponseTime: p.timeout,
			ErrorMessage: message,
		}, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	elapsed := time.Since(start)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ProbeResult{Status: model.HealthStatusHealthy, ResponseTime: elapsed}, nil
	}
	return ProbeResult{
		Status:       model.HealthStatusDegraded,
		ResponseTime: elapsed,
		ErrorMessage: fmt.Sprintf("HTTP %d", resp.StatusCode),
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
