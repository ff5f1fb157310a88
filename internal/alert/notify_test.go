package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleAlert(level model.Severity) model.Alert {
	return model.Alert{
		ID:        "service_down-1234",
		Level:     level,
		Message:   "Service ANATEL unavailable: Timeout",
		Service:   "ANATEL",
		Timestamp: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	require.NoError(t, n.Notify(context.Background(), sampleAlert(model.SeverityCritical)))
	require.NoError(t, n.Notify(context.Background(), sampleAlert(model.SeverityWarning)))

	assert.Equal(t,
		"🚨 [CRITICAL] ANATEL: Service ANATEL unavailable: Timeout\n"+
			"⚠️ [WARNING] ANATEL: Service ANATEL unavailable: Timeout\n",
		buf.String())
}

func TestLogNotifier_LevelMapping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewLogNotifier(zap.New(core))

	for _, level := range []model.Severity{model.SeverityInfo, model.SeverityWarning, model.SeverityCritical} {
		require.NoError(t, n.Notify(context.Background(), sampleAlert(level)))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "Alert: Service ANATEL unavailable: Timeout", entries[2].Message)
	assert.Equal(t, "ANATEL", entries[2].ContextMap()["service"])
}

func TestWebhookNotifier(t *testing.T) {
	var got WebhookPayload
	var contentType string
	status := http.StatusOK

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)

	t.Run("posts payload", func(t *testing.T) {
		require.NoError(t, n.Notify(context.Background(), sampleAlert(model.SeverityCritical)))
		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, WebhookPayload{
			AlertID:   "service_down-1234",
			Level:     "critical",
			Service:   "ANATEL",
			Message:   "Service ANATEL unavailable: Timeout",
			Timestamp: "2024-03-01T12:30:00Z",
		}, got)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		status = http.StatusAccepted
		err := n.Notify(context.Background(), sampleAlert(model.SeverityWarning))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "202")
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		err := NewWebhookNotifier(url, time.Second).Notify(context.Background(), sampleAlert(model.SeverityInfo))
		assert.Error(t, err)
	})
}

func TestWebhookNotifier_FailureDoesNotBlockOtherNotifiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	m := NewManager(nil, zap.NewNop())
	m.AddRule(fixedRule("x_down", "X", model.SeverityCritical))
	m.AddNotifier(NewWebhookNotifier(srv.URL, time.Second))
	m.AddNotifier(NewConsoleNotifier(&buf))

	triggered := m.CheckAlerts(context.Background(), model.PerformanceMetrics{}, nil)
	require.Len(t, triggered, 1)
	assert.Contains(t, buf.String(), "[CRITICAL] X: x_down fired")
}
