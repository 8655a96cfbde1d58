package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/livestate"
	"github.com/chronic-risk-monitor/internal/notify"
)

// ReadingGenerator produces one tick's readings for the given records.
type ReadingGenerator interface {
	GenerateFor(records []domain.PatientRecord) map[int]domain.DynamicReading
}

// SnapshotMirror copies a published snapshot to another process.
type SnapshotMirror interface {
	Mirror(ctx context.Context, snap *livestate.Snapshot) error
}

// RiskInferer assesses a batch of vectors, preserving their order.
type RiskInferer interface {
	InferBatch(vectors []domain.CompositeFeatureVector) ([]domain.PatientRisk, error)
}

// MonitorDeps wires a Monitor.
type MonitorDeps struct {
	Records   []domain.PatientRecord
	Generator ReadingGenerator
	Pipeline  RiskInferer
	Producer  *livestate.Producer
	History   *alerting.History
	Mirror    SnapshotMirror  // optional
	Notifier  notify.Notifier // optional
	Interval  time.Duration
	Logger    *logrus.Logger
}

// TickResult is the outcome of one tick.
type TickResult struct {
	Snapshot *livestate.Snapshot
	Risks    []domain.PatientRisk
	Roster   alerting.Roster
}

// Monitor is the single tick authority. It alone generates readings and
// publishes them; everything else reads the published snapshots.
type Monitor struct {
	records   []domain.PatientRecord
	generator ReadingGenerator
	composer  *Composer
	pipeline  RiskInferer
	producer  *livestate.Producer
	history   *alerting.History
	mirror    SnapshotMirror
	notifier  notify.Notifier
	interval  time.Duration
	log       *logrus.Logger
}

// NewMonitor creates a monitor.
func NewMonitor(deps MonitorDeps) (*Monitor, error) {
	if deps.Generator == nil || deps.Pipeline == nil || deps.Producer == nil || deps.History == nil {
		return nil, fmt.Errorf("generator, pipeline, producer and history are required")
	}
	if deps.Interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", deps.Interval)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	return &Monitor{
		records:   append([]domain.PatientRecord(nil), deps.Records...),
		generator: deps.Generator,
		composer:  NewComposer(deps.Logger),
		pipeline:  deps.Pipeline,
		producer:  deps.Producer,
		history:   deps.History,
		mirror:    deps.Mirror,
		notifier:  deps.Notifier,
		interval:  deps.Interval,
		log:       deps.Logger,
	}, nil
}

// RunTick generates, composes and assesses one tick, then publishes it.
// A failed inference publishes nothing, so every published tick has a
// roster in the history.
func (m *Monitor) RunTick(ctx context.Context) (*TickResult, error) {
	start := time.Now()

	readings := m.generator.GenerateFor(m.records)
	composition := m.composer.Compose(m.records, readings)
	skipped := composition.Skipped(m.records)

	risks, err := m.pipeline.InferBatch(composition.Vectors)
	if err != nil {
		m.log.WithError(err).Error("Risk inference failed")
		return nil, fmt.Errorf("tick %d: %w", m.producer.State().Tick()+1, err)
	}

	snap := m.producer.Publish(readings, composition.Vectors, skipped)
	logger := m.log.WithField("tick", snap.Tick())

	if m.mirror != nil {
		if err := m.mirror.Mirror(ctx, snap); err != nil {
			logger.WithError(err).Warn("Failed to mirror live state")
		}
	}

	roster := alerting.Roster{
		Tick:        snap.Tick(),
		GeneratedAt: snap.GeneratedAt(),
		Patients:    len(risks),
		HighRisk:    alerting.SelectHighRisk(risks),
		Skipped:     skipped,
	}
	m.history.Add(roster)

	if alert, ok := notify.NewAlert(snap.Tick(), snap.GeneratedAt(), risks); ok {
		if err := m.notifier.Notify(ctx, alert); err != nil {
			logger.WithError(err).Warn("Failed to deliver alert")
		}
	}

	logger.WithFields(logrus.Fields{
		"patients":  len(risks),
		"high_risk": len(roster.HighRisk),
		"skipped":   len(skipped),
		"duration":  time.Since(start),
	}).Info("Tick completed")

	return &TickResult{Snapshot: snap, Risks: risks, Roster: roster}, nil
}

// Run ticks once immediately and then every interval until ctx is done.
// A failed tick is logged and the next one proceeds on schedule.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.WithFields(logrus.Fields{
		"interval": m.interval,
		"patients": len(m.records),
	}).Info("Starting risk monitor")

	_, _ = m.RunTick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Risk monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			_, _ = m.RunTick(ctx)
		}
	}
}

// Records returns the patients this monitor covers.
func (m *Monitor) Records() []domain.PatientRecord {
	return append([]domain.PatientRecord(nil), m.records...)
}
