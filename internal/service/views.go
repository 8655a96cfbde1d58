package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/livestate"
	"github.com/chronic-risk-monitor/internal/pipeline"
)

// PatientRow is one line of a dashboard table.
type PatientRow struct {
	PatientID        int               `json:"patient_id"`
	BMI              float64           `json:"bmi"`
	HbA1cLevel       float64           `json:"HbA1c_level"`
	GlucoseLevel     float64           `json:"blood_glucose_level"`
	Diabetes         bool              `json:"diabetes"`
	HypertensionRisk bool              `json:"hypertension_risk"`
	Status           domain.RiskStatus `json:"status"`
}

func newPatientRow(r domain.PatientRisk) PatientRow {
	return PatientRow{
		PatientID:        r.PatientID(),
		BMI:              r.Vector.BMI,
		HbA1cLevel:       r.Vector.HbA1cLevel,
		GlucoseLevel:     r.Vector.GlucoseLevel,
		Diabetes:         r.Prediction.Diabetes,
		HypertensionRisk: r.Prediction.HypertensionRisk,
		Status:           alerting.ClassifyStatus(r.Prediction),
	}
}

// AdminView is the bulk view over every patient of one tick.
type AdminView struct {
	Tick        uint64               `json:"tick"`
	SnapshotID  string               `json:"snapshot_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Patients    []PatientRow         `json:"patients"`
	HighRisk    []int                `json:"high_risk"`
	Skipped     []int                `json:"skipped,omitempty"`
	AtRisk      bool                 `json:"at_risk"`
	Message     string               `json:"message"`
	Risks       []domain.PatientRisk `json:"-"`
}

// HighRiskRows returns the rows of at-risk patients in table order.
func (v *AdminView) HighRiskRows() []PatientRow {
	out := make([]PatientRow, 0, len(v.HighRisk))
	for _, row := range v.Patients {
		if row.Status == domain.AT_RISK {
			out = append(out, row)
		}
	}
	return out
}

// UserView is the single-patient view of one tick.
type UserView struct {
	Tick        uint64                 `json:"tick"`
	GeneratedAt time.Time              `json:"generated_at"`
	Patient     PatientRow             `json:"patient"`
	Status      domain.RiskStatus      `json:"status"`
	Message     string                 `json:"message"`
	Summary     string                 `json:"summary"`
	Probability domain.RiskProbability `json:"probability"`
}

// Views renders the admin and user views from the published live state. It
// holds no write handle, so rendering a view can never advance a tick.
type Views struct {
	reader   livestate.Reader
	pipeline *pipeline.RiskPipeline
	log      *logrus.Logger
}

// NewViews creates the views over a live-state reader.
func NewViews(reader livestate.Reader, p *pipeline.RiskPipeline, logger *logrus.Logger) *Views {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Views{reader: reader, pipeline: p, log: logger}
}

// Snapshot returns the current snapshot.
func (v *Views) Snapshot(ctx context.Context) (*livestate.Snapshot, error) {
	return v.reader.Current(ctx)
}

// Admin runs batch inference over every vector of the current snapshot.
func (v *Views) Admin(ctx context.Context) (*AdminView, error) {
	snap, err := v.reader.Current(ctx)
	if err != nil {
		return nil, err
	}
	return v.AdminFor(snap)
}

// AdminFor renders the admin view of a given snapshot, e.g. one delivered by
// a live-state subscription.
func (v *Views) AdminFor(snap *livestate.Snapshot) (*AdminView, error) {
	risks, err := v.pipeline.InferBatch(snap.Vectors())
	if err != nil {
		return nil, fmt.Errorf("admin view at tick %d: %w", snap.Tick(), err)
	}

	rows := make([]PatientRow, len(risks))
	for i, r := range risks {
		rows[i] = newPatientRow(r)
	}
	highRisk := alerting.SelectHighRisk(risks)

	return &AdminView{
		Tick:        snap.Tick(),
		SnapshotID:  snap.ID().String(),
		GeneratedAt: snap.GeneratedAt(),
		Patients:    rows,
		HighRisk:    highRisk,
		Skipped:     snap.Skipped(),
		AtRisk:      len(highRisk) > 0,
		Message:     alerting.RosterMessage(highRisk),
		Risks:       risks,
	}, nil
}

// User runs single-record inference for one patient on the current
// snapshot.
func (v *Views) User(ctx context.Context, patientID int) (*UserView, error) {
	snap, err := v.reader.Current(ctx)
	if err != nil {
		return nil, err
	}

	vector, ok := snap.Vector(patientID)
	if !ok {
		for _, id := range snap.Skipped() {
			if id == patientID {
				return nil, fmt.Errorf("patient %d at tick %d: %w", patientID, snap.Tick(), domain.ErrNoReading)
			}
		}
		return nil, fmt.Errorf("patient %d: %w", patientID, domain.ErrNotFound)
	}

	prediction, err := v.pipeline.InferRisk(vector)
	if err != nil {
		return nil, fmt.Errorf("user view for patient %d at tick %d: %w", patientID, snap.Tick(), err)
	}
	probability, err := v.pipeline.InferProbability(vector)
	if err != nil {
		return nil, fmt.Errorf("user view for patient %d at tick %d: %w", patientID, snap.Tick(), err)
	}

	risk := domain.PatientRisk{Vector: vector, Prediction: prediction}
	status := alerting.ClassifyStatus(prediction)

	v.log.WithFields(logrus.Fields{
		"tick":       snap.Tick(),
		"patient_id": patientID,
		"status":     status,
	}).Debug("Rendered user view")

	return &UserView{
		Tick:        snap.Tick(),
		GeneratedAt: snap.GeneratedAt(),
		Patient:     newPatientRow(risk),
		Status:      status,
		Message:     status.Message(),
		Summary:     alerting.Summary(risk),
		Probability: probability,
	}, nil
}
