package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	monerrors "github.com/devrev/inde-monitor/internal/errors"
	"github.com/devrev/inde-monitor/internal/model"
	"github.com/devrev/inde-monitor/internal/monitoring"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const metricsContentType = "text/plain; version=0.0.4; charset=utf-8"

// Handlers holds the HTTP handlers and their dependencies
type Handlers struct {
	system         *monitoring.System
	errorHandler   *monerrors.Handler
	metricsHandler http.Handler
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(system *monitoring.System, errorHandler *monerrors.Handler, logger *zap.Logger) *Handlers {
	h := &Handlers{
		system:       system,
		errorHandler: errorHandler,
		logger:       logger,
	}
	if exporter := system.Collector().Exporter(); exporter != nil {
		h.metricsHandler = exporter.Handler()
	}
	return h
}

// AlertsResponse is the body of the alert listing
type AlertsResponse struct {
	Count  int           `json:"count"`
	Alerts []model.Alert `json:"alerts"`
}

// ServicesResponse is the body of the service listing
type ServicesResponse struct {
	Total    int                            `json:"total"`
	Healthy  int                            `json:"healthy"`
	Services []string                       `json:"services"`
	Status   map[string]model.ServiceHealth `json:"status"`
}

// ServiceResponse is the body of a single service lookup
type ServiceResponse struct {
	Name    string                `json:"name"`
	URL     string                `json:"url"`
	Last    *model.ServiceHealth  `json:"last_health"`
	Stats   model.ServiceStats    `json:"stats"`
	History []model.ServiceHealth `json:"history"`
}

// Health handles GET /health. It answers 503 when the process is unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.system.HealthEndpoint()

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, report)
}

// Metrics handles GET /metrics. It serves the exporter registry, or the
// unavailable placeholder when export is disabled.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metricsHandler != nil {
		h.metricsHandler.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", metricsContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.system.MetricsEndpoint()))
}

// DashboardHTML handles GET /dashboard
func (h *Handlers) DashboardHTML(w http.ResponseWriter, r *http.Request) {
	page, err := h.system.Dashboard().RenderHTML()
	if err != nil {
		h.errorHandler.HandleError(w, r, monerrors.NewInternalError("failed to render dashboard", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// DashboardJSON handles GET /api/v1/dashboard
func (h *Handlers) DashboardJSON(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.system.Dashboard().Generate())
}

// ListAlerts handles GET /api/v1/alerts. ?all=true includes resolved alerts.
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	all := false
	if v := r.URL.Query().Get("all"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.errorHandler.HandleError(w, r, monerrors.NewInvalidArgumentError("all must be a boolean").WithDetail("all", v))
			return
		}
		all = parsed
	}

	alerts := h.system.Alerts().ActiveAlerts()
	if all {
		alerts = h.system.Alerts().Alerts()
	}
	h.writeJSONResponse(w, http.StatusOK, AlertsResponse{Count: len(alerts), Alerts: alerts})
}

// ResolveAlert handles POST /api/v1/alerts/{id}/resolve
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.system.Alerts().ResolveAlert(id) {
		h.errorHandler.HandleError(w, r, monerrors.NewAlertNotFoundError(id))
		return
	}

	resolved, _ := h.system.Alerts().Get(id)
	h.writeJSONResponse(w, http.StatusOK, resolved)
}

// ListServices handles GET /api/v1/services
func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	monitor := h.system.Monitor()
	status := monitor.LastHealthAll()

	healthy := 0
	for _, s := range status {
		if s.IsHealthy() {
			healthy++
		}
	}

	services := monitor.Services()
	h.writeJSONResponse(w, http.StatusOK, ServicesResponse{
		Total:    len(services),
		Healthy:  healthy,
		Services: services,
		Status:   status,
	})
}

// GetService handles GET /api/v1/services/{name}
func (h *Handlers) GetService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	monitor := h.system.Monitor()

	url, ok := monitor.ServiceURL(name)
	if !ok {
		h.errorHandler.HandleError(w, r, monerrors.NewServiceNotFoundError(name))
		return
	}
	history, err := monitor.History(name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := ServiceResponse{
		Name:    name,
		URL:     url,
		Stats:   h.system.Collector().ServiceStats(name),
		History: history,
	}
	if last, ok := monitor.LastHealth(name); ok {
		resp.Last = &last
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// CheckService handles POST /api/v1/services/{name}/check
func (h *Handlers) CheckService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	result, err := h.system.Monitor().CheckServiceHealth(r.Context(), name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
