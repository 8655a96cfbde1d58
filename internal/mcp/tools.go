package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/service"
)

// Tool names.
const (
	ToolGetPatientRisk       = "get_patient_risk"
	ToolListHighRiskPatients = "list_high_risk_patients"
	ToolGetLiveReadings      = "get_live_readings"
)

// PatientRiskInput is the argument of get_patient_risk.
type PatientRiskInput struct {
	PatientID int `json:"patient_id" jsonschema:"id of the patient to assess"`
}

// NoInput is the argument of tools that take none.
type NoInput struct{}

// HighRiskOutput is the result of list_high_risk_patients.
type HighRiskOutput struct {
	Tick     uint64               `json:"tick"`
	AtRisk   bool                 `json:"at_risk"`
	Message  string               `json:"message"`
	Patients []service.PatientRow `json:"patients"`
	Skipped  []int                `json:"skipped,omitempty"`
}

// LiveReadingsOutput is the result of get_live_readings.
type LiveReadingsOutput struct {
	Tick        uint64                  `json:"tick"`
	GeneratedAt time.Time               `json:"generated_at"`
	Readings    []domain.DynamicReading `json:"readings"`
	Skipped     []int                   `json:"skipped,omitempty"`
	Stale       bool                    `json:"stale"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolGetPatientRisk,
		Description: "Assess one patient's diabetes and hypertension risk on the latest readings",
	}, s.handleGetPatientRisk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListHighRiskPatients,
		Description: "List the patients flagged at risk on the latest readings",
	}, s.handleListHighRiskPatients)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolGetLiveReadings,
		Description: "Return the latest synthetic vitals for every patient",
	}, s.handleGetLiveReadings)

	s.logger.WithField("tool_count", 3).Info("Successfully registered all tools")
}

func (s *Server) handleGetPatientRisk(ctx context.Context, _ *mcp.CallToolRequest, in PatientRiskInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": ToolGetPatientRisk, "patient_id": in.PatientID}).Info("Tool invoked")

	if in.PatientID <= 0 {
		return toolError(fmt.Errorf("patient_id must be a positive integer, got %d", in.PatientID)), nil, nil
	}
	view, err := s.views.User(ctx, in.PatientID)
	if err != nil {
		return s.viewError(err)
	}
	return jsonResult(view)
}

func (s *Server) handleListHighRiskPatients(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolListHighRiskPatients).Info("Tool invoked")

	view, err := s.views.Admin(ctx)
	if err != nil {
		return s.viewError(err)
	}
	return jsonResult(HighRiskOutput{
		Tick:     view.Tick,
		AtRisk:   view.AtRisk,
		Message:  view.Message,
		Patients: view.HighRiskRows(),
		Skipped:  view.Skipped,
	})
}

func (s *Server) handleGetLiveReadings(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolGetLiveReadings).Info("Tool invoked")

	snap, err := s.views.Snapshot(ctx)
	if err != nil {
		return s.viewError(err)
	}
	return jsonResult(LiveReadingsOutput{
		Tick:        snap.Tick(),
		GeneratedAt: snap.GeneratedAt(),
		Readings:    snap.Readings(),
		Skipped:     snap.Skipped(),
		Stale:       snap.Stale(s.announced.Load()),
	})
}

// viewError reports expected conditions to the client as tool errors and
// anything else as a protocol error.
func (s *Server) viewError(err error) (*mcp.CallToolResult, any, error) {
	switch {
	case errors.Is(err, domain.ErrNoSnapshot), errors.Is(err, domain.ErrNoReading), errors.Is(err, domain.ErrNotFound):
		return toolError(err), nil, nil
	default:
		s.logger.WithError(err).Error("Tool failed")
		return nil, nil, err
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
