package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/aurora/internal/api/rest"
	"github.com/fortuna/aurora/internal/api/websocket"
	"github.com/fortuna/aurora/internal/app"
	"github.com/fortuna/aurora/internal/backfill"
	"github.com/fortuna/aurora/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	serviceName    = "aurora"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default config/aurora.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, err := config.NewLogger(cfg.Agent.LogLevel, cfg.Agent.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid logging configuration")
	}
	logger.WithField("version", serviceVersion).Infof("Starting %s - NHL prediction service", serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.Options{Migrate: true})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise")
	}
	defer a.Close()

	// WebSocket clients receive prediction events
	wsServer := websocket.NewServer(logger)
	a.Predictions.WithListener(wsServer)

	backfillService := backfill.NewService(a.Runner, logger)
	backfillService.Start()
	logger.Info("✓ Backfill service started")

	if cfg.Agent.Schedule {
		go func() {
			if err := a.Agent.RunDaily(ctx); err != nil {
				logger.WithError(err).Error("Daily agent scheduler failed")
			}
		}()
	}

	checks := map[string]rest.HealthChecker{"database": a.DB}
	if a.Redis != nil {
		checks["redis"] = a.Redis
	}

	restServer := rest.NewServer(cfg.Server.RESTPort, rest.Services{
		Games:       a.Games,
		Stats:       a.Stats,
		Predictions: a.Predictions,
		Standings:   a.Enricher.Cache(),
		Backfill:    backfillService,
		Checks:      checks,
		Today:       a.Ingester.Today,
	}, logger)
	go func() {
		if err := restServer.Start(); err != nil {
			logger.WithError(err).Error("REST server stopped")
		}
	}()

	go func() {
		if err := wsServer.Start(cfg.Server.WSPort); err != nil {
			logger.WithError(err).Error("WebSocket server stopped")
		}
	}()

	logger.WithFields(logrus.Fields{
		"rest": "http://0.0.0.0:" + cfg.Server.RESTPort,
		"ws":   "ws://0.0.0.0:" + cfg.Server.WSPort + "/ws/predictions",
	}).Infof("✓ %s v%s started", serviceName, serviceVersion)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("REST server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("WebSocket server shutdown error")
	}
	if err := backfillService.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Backfill service shutdown error")
	}

	logger.Infof("%s stopped", serviceName)
}
