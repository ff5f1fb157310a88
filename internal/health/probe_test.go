package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProbe_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/created":
			w.WriteHeader(http.StatusNoContent)
		case "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	probe := NewHTTPProbe(nil, 200*time.Millisecond)
	ctx := context.Background()

	t.Run("2xx is healthy", func(t *testing.T) {
		for _, path := range []string{"/ok", "/created"} {
			res, err := probe.Check(ctx, srv.URL+path)
			require.NoError(t, err)
			assert.Equal(t, model.HealthStatusHealthy, res.Status)
			assert.Empty(t, res.ErrorMessage)
		}
	})

	t.Run("other status is degraded", func(t *testing.T) {
		res, err := probe.Check(ctx, srv.URL+"/down")
		require.NoError(t, err)
		assert.Equal(t, model.HealthStatusDegraded, res.Status)
		assert.Equal(t, "HTTP 503", res.ErrorMessage)
	})

	t.Run("timeout is unhealthy with timeout as elapsed", func(t *testing.T) {
		res, err := probe.Check(ctx, srv.URL+"/slow")
		require.NoError(t, err)
		assert.Equal(t, model.HealthStatusUnhealthy, res.Status)
		assert.Equal(t, "Timeout", res.ErrorMessage)
		assert.Equal(t, 200*time.Millisecond, res.ResponseTime)
	})

	t.Run("transport error is unhealthy", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		res, err := probe.Check(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, model.HealthStatusUnhealthy, res.Status)
		assert.NotEmpty(t, res.ErrorMessage)
	})

	t.Run("malformed url is unhealthy", func(t *testing.T) {
		res, err := probe.Check(ctx, "://bad")
		require.NoError(t, err)
		assert.Equal(t, model.HealthStatusUnhealthy, res.Status)
	})
}

func TestNewHTTPProbe_DefaultTimeout(t *testing.T) {
	probe := NewHTTPProbe(nil, 0)
	assert.Equal(t, DefaultProbeTimeout, probe.timeout)
}
