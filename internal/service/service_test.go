package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/livestate"
	"github.com/chronic-risk-monitor/internal/notify"
	"github.com/chronic-risk-monitor/internal/pipeline"
	"github.com/chronic-risk-monitor/internal/records"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func loadPipeline(t *testing.T) *pipeline.RiskPipeline {
	t.Helper()
	p, err := pipeline.LoadFromDir(filepath.Join("..", "..", "models"), quietLogger())
	require.NoError(t, err)
	return p
}

// fixedGenerator returns the same readings every tick, limited to the
// requested records.
type fixedGenerator map[int]domain.DynamicReading

func (g fixedGenerator) GenerateFor(rs []domain.PatientRecord) map[int]domain.DynamicReading {
	out := make(map[int]domain.DynamicReading, len(g))
	for id, r := range g {
		out[id] = r
	}
	return out
}

func scenarioReadings() fixedGenerator {
	return fixedGenerator{
		1: {PatientID: 1, BMI: 27.4, HbA1cLevel: 6.8, GlucoseLevel: 150},
		2: {PatientID: 2, BMI: 19.0, HbA1cLevel: 5.6, GlucoseLevel: 90},
		3: {PatientID: 3, BMI: 34.0, HbA1cLevel: 8.9, GlucoseLevel: 240},
		4: {PatientID: 4, BMI: 22.0, HbA1cLevel: 5.6, GlucoseLevel: 85},
		5: {PatientID: 5, BMI: 30.0, HbA1cLevel: 7.5, GlucoseLevel: 200},
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (r *recordingNotifier) Notify(_ context.Context, a notify.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type failingMirror struct{ calls int }

func (m *failingMirror) Mirror(context.Context, *livestate.Snapshot) error {
	m.calls++
	return errors.New("redis down")
}

func newTestMonitor(t *testing.T, gen ReadingGenerator, rs []domain.PatientRecord, deps MonitorDeps) (*Monitor, *livestate.State) {
	t.Helper()
	state, producer := livestate.New()
	if deps.History == nil {
		history, err := alerting.NewHistory(10)
		require.NoError(t, err)
		deps.History = history
	}

	deps.Records = rs
	deps.Generator = gen
	if deps.Pipeline == nil {
		deps.Pipeline = loadPipeline(t)
	}
	deps.Producer = producer
	if deps.Interval == 0 {
		deps.Interval = time.Hour
	}
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}

	m, err := NewMonitor(deps)
	require.NoError(t, err)
	return m, state
}

func TestComposer_ScenarioVector(t *testing.T) {
	c := NewComposer(quietLogger())
	comp := c.Compose(records.SeedRecords(), scenarioReadings())

	require.Len(t, comp.Vectors, 5)
	assert.Empty(t, comp.Failures)
	assert.Empty(t, comp.Missing)
	assert.Empty(t, comp.Orphans)
	assert.Equal(t, []float64{1, 45, 1, 3, 27.4, 6.8, 150}, comp.Vectors[0].Features())

	for i, v := range comp.Vectors {
		assert.Equal(t, i+1, v.PatientID, "record store order")
	}
}

func TestComposer_EncodingTotality(t *testing.T) {
	c := NewComposer(quietLogger())
	reading := domain.DynamicReading{PatientID: 1, BMI: 25, HbA1cLevel: 6, GlucoseLevel: 100}

	for code, smoking := range domain.SmokingHistories() {
		rs := []domain.PatientRecord{{ID: 1, Age: 30, SmokingHistory: smoking}}
		comp := c.Compose(rs, map[int]domain.DynamicReading{1: reading})
		require.Len(t, comp.Vectors, 1, "category %q", smoking)
		assert.Equal(t, code, comp.Vectors[0].SmokingCode)
	}
}

func TestComposer_DataIntegrityWarnings(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := NewComposer(logger)

	rs := []domain.PatientRecord{
		{ID: 1, Gender: 1, Age: 45, HeartDisease: true, SmokingHistory: domain.SMOKING_CURRENT},
		{ID: 2, Age: 50, SmokingHistory: "occasionally"},
		{ID: 3, Age: 35, SmokingHistory: domain.SMOKING_FORMER},
		{ID: 4, Age: 60, SmokingHistory: domain.SMOKING_NEVER},
	}
	readings := map[int]domain.DynamicReading{
		1:  {PatientID: 1, BMI: 27.4, HbA1cLevel: 6.8, GlucoseLevel: 150},
		2:  {PatientID: 2, BMI: 20, HbA1cLevel: 6, GlucoseLevel: 100},
		4:  {PatientID: 4, BMI: math.NaN(), HbA1cLevel: 6, GlucoseLevel: 100},
		42: {PatientID: 42, BMI: 20, HbA1cLevel: 6, GlucoseLevel: 100},
	}

	comp := c.Compose(rs, readings)

	require.Len(t, comp.Vectors, 1)
	assert.Equal(t, 1, comp.Vectors[0].PatientID)
	assert.Equal(t, []int{3}, comp.Missing)
	assert.Equal(t, []int{42}, comp.Orphans)
	require.Len(t, comp.Failures, 2)

	var unknown *domain.UnknownCategoryError
	require.True(t, errors.As(comp.Failures[0].Err, &unknown))
	assert.Equal(t, 2, unknown.PatientID)
	assert.Equal(t, "occasionally", unknown.Value)

	var missing *domain.MissingFeatureError
	require.True(t, errors.As(comp.Failures[1].Err, &missing))
	assert.Equal(t, "bmi", missing.Feature)

	assert.Equal(t, []int{2, 3, 4}, comp.Skipped(rs))

	warned := map[int]bool{}
	for _, e := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, e.Level)
		warned[e.Data["patient_id"].(int)] = true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true, 42: true}, warned)
}

func TestMonitor_RunTickPublishesAndAssesses(t *testing.T) {
	notifier := &recordingNotifier{}
	mirror := &failingMirror{}
	m, state := newTestMonitor(t, scenarioReadings(), records.SeedRecords(), MonitorDeps{
		Notifier: notifier,
		Mirror:   mirror,
	})
	ctx := context.Background()

	result, err := m.RunTick(ctx)
	require.NoError(t, err, "a mirror failure never fails the tick")
	assert.Equal(t, 1, mirror.calls)

	assert.Equal(t, uint64(1), result.Snapshot.Tick())
	assert.Equal(t, uint64(1), state.Tick())
	require.Len(t, result.Risks, 5)
	assert.Equal(t, domain.RiskPrediction{Diabetes: true, HypertensionRisk: true}, result.Risks[0].Prediction)
	assert.Equal(t, domain.RiskPrediction{}, result.Risks[1].Prediction)
	assert.Contains(t, result.Roster.HighRisk, 1)
	assert.NotContains(t, result.Roster.HighRisk, 2)
	assert.Equal(t, 1, notifier.count())

	second, err := m.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Snapshot.Tick())
	assert.Equal(t, 2, notifier.count())
}

// stateCheckingInferer records the published tick at inference time and can
// fail on demand.
type stateCheckingInferer struct {
	inner   RiskInferer
	state   func() uint64
	seen    []uint64
	failing bool
}

func (s *stateCheckingInferer) InferBatch(vectors []domain.CompositeFeatureVector) ([]domain.PatientRisk, error) {
	s.seen = append(s.seen, s.state())
	if s.failing {
		return nil, domain.NewFeatureShapeError("diabetes", "classify", 3, 2)
	}
	return s.inner.InferBatch(vectors)
}

func TestMonitor_InfersBeforePublishing(t *testing.T) {
	var state *livestate.State
	inferer := &stateCheckingInferer{inner: loadPipeline(t), state: func() uint64 { return state.Tick() }}
	m, st := newTestMonitor(t, scenarioReadings(), records.SeedRecords(), MonitorDeps{Pipeline: inferer})
	state = st
	ctx := context.Background()

	_, err := m.RunTick(ctx)
	require.NoError(t, err)
	_, err = m.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, inferer.seen, "inference sees the previous tick")
	assert.Equal(t, uint64(2), st.Tick())
}

func TestMonitor_FailedInferencePublishesNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	var state *livestate.State
	inferer := &stateCheckingInferer{inner: loadPipeline(t), state: func() uint64 { return state.Tick() }}
	history, err := alerting.NewHistory(10)
	require.NoError(t, err)
	m, st := newTestMonitor(t, scenarioReadings(), records.SeedRecords(), MonitorDeps{
		Pipeline: inferer,
		History:  history,
		Notifier: notifier,
	})
	state = st
	ctx := context.Background()

	_, err = m.RunTick(ctx)
	require.NoError(t, err)

	inferer.failing = true
	_, err = m.RunTick(ctx)
	var shape *domain.FeatureShapeError
	require.ErrorAs(t, err, &shape)
	assert.Contains(t, err.Error(), "tick 2")

	assert.Equal(t, uint64(1), st.Tick())
	assert.Equal(t, 1, history.Len())
	assert.Equal(t, 1, notifier.count())

	inferer.failing = false
	result, err := m.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Snapshot.Tick())
	_, ok := history.Get(2)
	assert.True(t, ok)
}

func TestMonitor_SkipsMissingPatient(t *testing.T) {
	gen := scenarioReadings()
	delete(gen, 3)
	m, _ := newTestMonitor(t, gen, records.SeedRecords(), MonitorDeps{})

	result, err := m.RunTick(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Risks, 4)
	assert.Equal(t, []int{3}, result.Snapshot.Skipped())
	assert.Equal(t, []int{3}, result.Roster.Skipped)
}

func TestMonitor_NoAlertWhenStable(t *testing.T) {
	notifier := &recordingNotifier{}
	gen := fixedGenerator{2: {PatientID: 2, BMI: 19.0, HbA1cLevel: 5.6, GlucoseLevel: 90}}
	rs := []domain.PatientRecord{{ID: 2, Gender: 0, Age: 20, SmokingHistory: domain.SMOKING_NO_INFO}}
	m, _ := newTestMonitor(t, gen, rs, MonitorDeps{Notifier: notifier})

	result, err := m.RunTick(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Roster.AtRisk())
	assert.Equal(t, 0, notifier.count())
}

func TestMonitor_RunTicksUntilCancelled(t *testing.T) {
	m, state := newTestMonitor(t, scenarioReadings(), records.SeedRecords(), MonitorDeps{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return state.Tick() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestNewMonitor_Validation(t *testing.T) {
	_, err := NewMonitor(MonitorDeps{})
	assert.Error(t, err)
}

func TestViews_AdminAndUserAgree(t *testing.T) {
	m, state := newTestMonitor(t, scenarioReadings(), records.SeedRecords(), MonitorDeps{})
	views := NewViews(state, loadPipeline(t), quietLogger())
	ctx := context.Background()

	_, err := views.Admin(ctx)
	assert.True(t, errors.Is(err, domain.ErrNoSnapshot))

	_, err = m.RunTick(ctx)
	require.NoError(t, err)

	admin, err := views.Admin(ctx)
	require.NoError(t, err)
	require.Len(t, admin.Patients, 5)
	assert.True(t, admin.AtRisk)
	assert.Equal(t, alerting.RosterAtRiskMessage, admin.Message)
	assert.Len(t, admin.HighRiskRows(), len(admin.HighRisk))

	for _, row := range admin.Patients {
		user, err := views.User(ctx, row.PatientID)
		require.NoError(t, err)
		assert.Equal(t, admin.Tick, user.Tick)
		assert.Equal(t, row, user.Patient, "patient %d", row.PatientID)
		require.NotNil(t, user.Probability.Diabetes)
		require.NotNil(t, user.Probability.HypertensionRisk)
		assert.Equal(t, row.Diabetes, *user.Probability.Diabetes > 0.5)
		assert.Equal(t, row.HypertensionRisk, *user.Probability.HypertensionRisk > 0.5)
	}

	assert.Equal(t, uint64(1), state.Tick(), "rendering views never advances the tick")
}

func TestViews_UserErrors(t *testing.T) {
	gen := scenarioReadings()
	delete(gen, 5)
	m, state := newTestMonitor(t, gen, records.SeedRecords(), MonitorDeps{})
	views := NewViews(state, loadPipeline(t), quietLogger())
	ctx := context.Background()

	_, err := views.User(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNoSnapshot))

	_, err = m.RunTick(ctx)
	require.NoError(t, err)

	_, err = views.User(ctx, 5)
	assert.True(t, errors.Is(err, domain.ErrNoReading))

	_, err = views.User(ctx, 99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	user, err := views.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.AT_RISK, user.Status)
	assert.Equal(t, domain.AT_RISK.Message(), user.Message)
	assert.Contains(t, user.Summary, "Patient 1 health summary")
}
