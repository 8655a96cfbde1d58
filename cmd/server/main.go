package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chronic-risk-monitor/internal/api"
	"github.com/chronic-risk-monitor/internal/app"
	"github.com/chronic-risk-monitor/internal/config"
	"github.com/chronic-risk-monitor/internal/logging"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logrus.WithError(err).Fatal("Configuration validation failed")
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)
	logger.WithFields(logrus.Fields{"host": cfg.Server.Host, "port": cfg.Server.Port}).Info("Starting chronic risk monitor")

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize monitor")
	}
	defer a.Close()

	server := api.NewServer(api.ServerDeps{
		Config:  cfg.Server,
		Views:   a.Views,
		History: a.History,
		Ticks:   a.State,
		Logger:  logger,
		Debug:   configManager.IsDevelopment(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Monitor.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
