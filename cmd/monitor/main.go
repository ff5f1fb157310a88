// Package main provides the entry point for the INDE service monitor.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/inde-monitor/internal/config"
	"github.com/devrev/inde-monitor/internal/monitoring"
	"github.com/devrev/inde-monitor/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			bootstrap := initLogger(cfg.Logging)
			bootstrap.Fatal("failed to load configuration", zap.Error(err), zap.String("path", path))
		}
		cfg = loaded
	}

	logger := initLogger(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting INDE service monitor",
		zap.Int("server_port", cfg.Server.Port),
		zap.Int("services", len(cfg.Services)),
		zap.Duration("check_interval", cfg.Monitor.CheckInterval),
		zap.Duration("cycle_interval", cfg.Monitor.CycleInterval))

	system := monitoring.New(cfg, logger)
	defer func() {
		if err := system.Close(); err != nil {
			logger.Warn("failed to close monitoring system", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := server.NewServer(cfg.Server, system, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return system.Start(gctx)
	})
	g.Go(func() error {
		return httpServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("monitor exited with error", zap.Error(err))
	}

	logger.Info("INDE service monitor shutdown complete")
}

// initLogger builds the zap logger. LOG_LEVEL and LOG_FORMAT override the config.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = cfg.Level
	}

	var level zapcore.Level
	switch logLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = cfg.Format
	}

	var zapCfg zap.Config
	if logFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
