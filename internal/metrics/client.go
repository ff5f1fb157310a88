package metrics

import (
	"net/http"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
)

// InstrumentedClient records each logical call made through Do exactly once.
// Redirects followed by the underlying client belong to the same call.
// A transport error or a final status >= 400 counts as an error.
type InstrumentedClient struct {
	Client   *http.Client
	Recorder RequestRecorder
	Service  string
	// Operation names the call; defaults to the HTTP method.
	Operation func(*http.Request) string
}

// NewInstrumentedClient returns a client whose calls are recorded under service
func NewInstrumentedClient(recorder RequestRecorder, service string, timeout time.Duration) *InstrumentedClient {
	return &InstrumentedClient{
		Client:   &http.Client{Timeout: timeout},
		Recorder: recorder,
		Service:  service,
	}
}

// Do sends req and records its outcome
func (c *InstrumentedClient) Do(req *http.Request) (*http.Response, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	status := model.RequestStatusSuccess
	if err != nil || resp.StatusCode >= http.StatusBadRequest {
		status = model.RequestStatusError
	}

	operation := req.Method
	if c.Operation != nil {
		operation = c.Operation(req)
	}

	if c.Recorder != nil {
		c.Recorder.RecordRequest(c.Service, operation, duration, status)
	}
	return resp, err
}
