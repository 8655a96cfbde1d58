// Package api exposes the admin and user views over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/livestate"
	"github.com/chronic-risk-monitor/internal/middleware"
	"github.com/chronic-risk-monitor/internal/service"
)

// Version is reported by /health.
const Version = "0.1.0"

// TickSource delivers snapshots as they are published.
type TickSource interface {
	Subscribe(buf int) (<-chan *livestate.Snapshot, func())
}

// ServerDeps wires a Server.
type ServerDeps struct {
	Config  domain.ServerConfig
	Views   *service.Views
	History *alerting.History
	Ticks   TickSource // optional; /api/v1/live is disabled without it
	Logger  *logrus.Logger
	Debug   bool
}

// Server represents the HTTP server
type Server struct {
	cfg     domain.ServerConfig
	views   *service.Views
	history *alerting.History
	ticks   TickSource
	log     *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(deps ServerDeps) *Server {
	if deps.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	allowOrigins := deps.Config.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	router := gin.New()
	router.Use(
		middleware.CorrelationID(),
		middleware.Recovery(deps.Logger),
		middleware.RequestLogger(deps.Logger),
		cors.New(cors.Config{
			AllowOrigins:  allowOrigins,
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", middleware.CorrelationIDHeader},
			ExposeHeaders: []string{middleware.CorrelationIDHeader, "Content-Disposition"},
			MaxAge:        12 * time.Hour,
		}),
		middleware.SecurityHeaders(),
	)
	if deps.Config.RateLimit > 0 {
		router.Use(middleware.NewRateLimiter(deps.Config.RateLimit, deps.Config.RateBurst).Middleware())
	}

	s := &Server{
		cfg:     deps.Config,
		views:   deps.Views,
		history: deps.History,
		ticks:   deps.Ticks,
		log:     deps.Logger,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/admin/patients", s.handleAdminView)
		v1.GET("/admin/export.xlsx", s.handleExport)
		v1.GET("/patients/:id", s.handleUserView)
		v1.GET("/patients/:id/summary", s.handleUserSummary)
		v1.GET("/alerts", s.handleAlerts)
		v1.GET("/alerts/history", s.handleAlertHistory)
		if s.ticks != nil {
			v1.GET("/live", s.handleLive)
		}
	}
}

// writeError maps domain errors to HTTP responses.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrInternalServer
	message := "Internal server error"

	var shape *domain.FeatureShapeError
	var missing *domain.MissingFeatureError
	var validation *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNoSnapshot), errors.Is(err, domain.ErrNoReading):
		status, code, message = http.StatusServiceUnavailable, domain.ErrNoData, "No live readings available"
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, domain.ErrCodeNotFound, "Patient not found"
	case errors.As(err, &validation):
		status, code, message = http.StatusBadRequest, domain.ErrInvalidInput, validation.Message
	case errors.As(err, &shape):
		code, message = domain.ErrFeatureShape, "Model input shape mismatch"
	case errors.As(err, &missing):
		code, message = domain.ErrMissingFeature, "Model input has a missing feature"
	}

	if status >= http.StatusInternalServerError && code != domain.ErrNoData {
		s.log.WithError(err).WithField("correlation_id", middleware.GetCorrelationID(c)).Error("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, domain.NewServiceError(code, message, err.Error(), middleware.GetCorrelationID(c)))
}
