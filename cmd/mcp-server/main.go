package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chronic-risk-monitor/internal/app"
	"github.com/chronic-risk-monitor/internal/config"
	"github.com/chronic-risk-monitor/internal/livestate"
	"github.com/chronic-risk-monitor/internal/logging"
	"github.com/chronic-risk-monitor/internal/mcp"
	"github.com/chronic-risk-monitor/internal/service"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configManager.Validate(); err != nil {
		logrus.WithError(err).Fatal("Configuration validation failed")
	}

	cfg := configManager.GetConfig()
	// stdout carries the protocol
	logger := logging.NewWithOutput(cfg.Logging, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var (
		views  *service.Views
		reader *livestate.RedisReader
	)
	switch cfg.MCP.Source {
	case "redis":
		v, r, closeViews, err := app.NewRedisViews(cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to the live-state mirror")
		}
		defer closeViews()
		views, reader = v, r
	default:
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize monitor")
		}
		defer a.Close()
		views = a.Views
		g.Go(func() error { return a.Monitor.Run(gctx) })
	}

	server := mcp.NewServer(cfg.MCP, views, logger)
	if reader != nil {
		g.Go(func() error {
			server.WatchTicks(gctx, reader.Ticks(gctx))
			return nil
		})
	}
	g.Go(func() error {
		// the client closing stdin ends the session and the process
		defer cancel()
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("MCP server stopped with error")
		os.Exit(1)
	}
	logger.Info("MCP server stopped")
}
