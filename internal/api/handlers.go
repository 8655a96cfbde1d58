package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/export"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertResponse is the doctor-facing roster of one tick.
type AlertResponse struct {
	Tick     uint64 `json:"tick"`
	AtRisk   bool   `json:"at_risk"`
	HighRisk []int  `json:"high_risk"`
	Message  string `json:"message"`
}

// handleHealth reports liveness; a monitor that has not ticked yet is still
// healthy but reports tick 0.
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().UTC(),
	}
	if snap, err := s.views.Snapshot(c.Request.Context()); err == nil {
		resp.Tick = snap.Tick()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAdminView(c *gin.Context) {
	view, err := s.views.Admin(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleUserView(c *gin.Context) {
	id, ok := s.patientID(c)
	if !ok {
		return
	}
	view, err := s.views.User(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleUserSummary(c *gin.Context) {
	id, ok := s.patientID(c)
	if !ok {
		return
	}
	view, err := s.views.User(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.String(http.StatusOK, view.Summary)
}

func (s *Server) handleAlerts(c *gin.Context) {
	view, err := s.views.Admin(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AlertResponse{
		Tick:     view.Tick,
		AtRisk:   view.AtRisk,
		HighRisk: view.HighRisk,
		Message:  view.Message,
	})
}

func (s *Server) handleAlertHistory(c *gin.Context) {
	rosters := []alerting.Roster{}
	if s.history != nil {
		rosters = s.history.List()
	}
	c.JSON(http.StatusOK, gin.H{"rosters": rosters, "count": len(rosters)})
}

func (s *Server) handleExport(c *gin.Context) {
	view, err := s.views.Admin(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteAdminWorkbook(&buf, view); err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(view.Tick)+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// patientID parses the :id path parameter, writing a 400 on failure.
func (s *Server) patientID(c *gin.Context) (int, bool) {
	raw := c.Param("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		s.writeError(c, domain.NewValidationError("id", "patient id must be a positive integer", raw))
		return 0, false
	}
	return id, true
}
