package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devrev/inde-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	service, method string
	status          model.RequestStatus
}

type recorderStub struct {
	calls []recordedCall
}

func (r *recorderStub) RecordRequest(service, method string, _ time.Duration, status model.RequestStatus) {
	r.calls = append(r.calls, recordedCall{service, method, status})
}

func newWFSServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/moved":
			http.Redirect(w, r, "/moved-again", http.StatusFound)
		case "/moved-again":
			http.Redirect(w, r, "/ok", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInstrumentedClient(t *testing.T) {
	srv := newWFSServer(t)

	rec := &recorderStub{}
	client := NewInstrumentedClient(rec, "IBGE", 5*time.Second)

	for _, path := range []string{"/ok", "/missing"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recordedCall{"IBGE", http.MethodGet, model.RequestStatusSuccess}, rec.calls[0])
	assert.Equal(t, recordedCall{"IBGE", http.MethodGet, model.RequestStatusError}, rec.calls[1])
}

func TestInstrumentedClient_RedirectsRecordOnce(t *testing.T) {
	srv := newWFSServer(t)

	rec := &recorderStub{}
	client := NewInstrumentedClient(rec, "INCRA", 5*time.Second)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/moved", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{"INCRA", http.MethodGet, model.RequestStatusSuccess}, rec.calls[0])
}

func TestInstrumentedClient_TransportError(t *testing.T) {
	srv := newWFSServer(t)
	url := srv.URL
	srv.Close()

	rec := &recorderStub{}
	client := NewInstrumentedClient(rec, "ANA", time.Second)
	client.Operation = func(*http.Request) string { return "describe_feature_type" }

	req, err := http.NewRequest(http.MethodGet, url+"/wfs", nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{"ANA", "describe_feature_type", model.RequestStatusError}, rec.calls[0])
}
