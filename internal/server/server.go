// Package server exposes the monitoring read surface over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/devrev/inde-monitor/internal/config"
	monerrors "github.com/devrev/inde-monitor/internal/errors"
	"github.com/devrev/inde-monitor/internal/monitoring"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the HTTP server for the monitoring endpoints
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *Handlers
	stream       *Stream
	errorHandler *monerrors.Handler
	logger       *zap.Logger
	cfg          config.ServerConfig
}

// NewServer creates the server and registers every route
func NewServer(cfg config.ServerConfig, system *monitoring.System, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	errorHandler := monerrors.NewHandler(logger)

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		handlers:     NewHandlers(system, errorHandler, logger),
		stream:       NewStream(system.Dashboard().Generate, cfg.StreamInterval, logger.Named("stream")),
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		Recovery(s.errorHandler, s.logger),
		RequestID,
		Logging(s.logger),
	}
	if s.cfg.RateLimiter.Enabled {
		limiter := NewRateLimiter(s.cfg.RateLimiter.RequestsPerSecond, s.cfg.RateLimiter.BurstSize, s.errorHandler, s.logger)
		middlewareChain = append(middlewareChain, limiter.Limit)
	}
	s.router.Use(mux.MiddlewareFunc(Chain(middlewareChain...)))

	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handlers.Metrics).Methods(http.MethodGet)
	s.router.HandleFunc("/dashboard", s.handlers.DashboardHTML).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/dashboard", s.handlers.DashboardJSON).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", s.handlers.ListAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/{id}/resolve", s.handlers.ResolveAlert).Methods(http.MethodPost)
	v1.HandleFunc("/services", s.handlers.ListServices).Methods(http.MethodGet)
	v1.HandleFunc("/services/{name}", s.handlers.GetService).Methods(http.MethodGet)
	v1.HandleFunc("/services/{name}/check", s.handlers.CheckService).Methods(http.MethodPost)
	v1.Handle("/stream", s.stream).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, monerrors.ErrCodeInvalidArgument,
			"endpoint not found", r.Header.Get(requestIDHeader))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, monerrors.ErrCodeInvalidArgument,
			"method not allowed", r.Header.Get(requestIDHeader))
	})
}

// Start listens and serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.stream.Close()
	return err
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}
