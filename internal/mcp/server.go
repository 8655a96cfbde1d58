// Package mcp exposes the risk views as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/service"
)

// Server represents the risk monitor MCP server
type Server struct {
	cfg       domain.MCPConfig
	mcpServer *mcp.Server
	views     *service.Views
	logger    *logrus.Logger

	// highest tick announced by the mirroring process; 0 when unwatched
	announced atomic.Uint64
}

// NewServer creates a new MCP server instance over the given views. The
// views decide where snapshots come from: the in-process live state or the
// Redis mirror.
func NewServer(cfg domain.MCPConfig, views *service.Views, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "chronic-risk-monitor"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "v0.1.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	s := &Server{
		cfg:       cfg,
		mcpServer: mcp.NewServer(serverInfo, nil),
		views:     views,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Start runs the MCP server over stdio until the client disconnects or ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"name":    s.cfg.ServerName,
		"version": s.cfg.ServerVersion,
		"source":  s.cfg.Source,
	}).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// WatchTicks records the tick numbers announced by the process that owns the
// monitor until ticks is closed or ctx is done. Snapshots older than the
// latest announcement are reported stale.
func (s *Server) WatchTicks(ctx context.Context, ticks <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if tick > s.announced.Load() {
				s.announced.Store(tick)
			}
			s.logger.WithField("tick", tick).Debug("Tick announced")
		}
	}
}
