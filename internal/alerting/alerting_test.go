package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronic-risk-monitor/internal/domain"
)

func risk(id int, diabetes, hypertension bool) domain.PatientRisk {
	return domain.PatientRisk{
		Vector:     domain.CompositeFeatureVector{PatientID: id, BMI: 27.4, HbA1cLevel: 6.8, GlucoseLevel: 150},
		Prediction: domain.RiskPrediction{Diabetes: diabetes, HypertensionRisk: hypertension},
	}
}

func TestClassifyStatus_ORSemantics(t *testing.T) {
	tests := []struct {
		diabetes     bool
		hypertension bool
		want         domain.RiskStatus
	}{
		{true, false, domain.AT_RISK},
		{false, true, domain.AT_RISK},
		{true, true, domain.AT_RISK},
		{false, false, domain.STABLE},
	}

	for _, tt := range tests {
		got := ClassifyStatus(domain.RiskPrediction{Diabetes: tt.diabetes, HypertensionRisk: tt.hypertension})
		assert.Equal(t, tt.want, got, "diabetes=%v hypertension=%v", tt.diabetes, tt.hypertension)
	}
}

func TestSelectHighRisk_PreservesInputOrder(t *testing.T) {
	risks := []domain.PatientRisk{
		risk(5, false, true),
		risk(2, false, false),
		risk(9, true, false),
		risk(1, true, true),
	}

	assert.Equal(t, []int{5, 9, 1}, SelectHighRisk(risks))
	assert.Empty(t, SelectHighRisk(nil))
	assert.Len(t, HighRisk(risks), 3)
}

func TestRosterMessage(t *testing.T) {
	assert.Equal(t, RosterAtRiskMessage, RosterMessage([]int{3}))
	assert.Equal(t, RosterStableMessage, RosterMessage(nil))
}

func TestSummary(t *testing.T) {
	text := Summary(risk(1, true, false))

	assert.Contains(t, text, "Patient 1 health summary")
	assert.Contains(t, text, "- BMI: 27.4")
	assert.Contains(t, text, "- HbA1c Level: 6.8")
	assert.Contains(t, text, "- Blood Glucose Level: 150")
	assert.Contains(t, text, "- Diabetes: Yes")
	assert.Contains(t, text, "- Hypertension: No")
	assert.Contains(t, text, "Status: AT_RISK. At risk. Please consult a doctor.")

	assert.Contains(t, Summary(risk(2, false, false)), "Status: STABLE. Currently stable.")
}

func TestRosterSummary(t *testing.T) {
	text := RosterSummary(4, []domain.PatientRisk{risk(1, true, true), risk(2, false, false)})
	assert.Contains(t, text, "Tick 4: 1 of 2 patients at risk")
	assert.Contains(t, text, RosterAtRiskMessage)
	assert.Contains(t, text, "- Patient 1: diabetes=Yes hypertension=Yes")
	assert.NotContains(t, text, "Patient 2")

	stable := RosterSummary(5, []domain.PatientRisk{risk(2, false, false)})
	assert.Contains(t, stable, RosterStableMessage)
}

func TestHistory_EvictsOldest(t *testing.T) {
	h, err := NewHistory(3)
	require.NoError(t, err)

	_, ok := h.Latest()
	assert.False(t, ok)

	for tick := uint64(1); tick <= 5; tick++ {
		h.Add(Roster{Tick: tick, Patients: 5, HighRisk: []int{int(tick)}})
	}

	assert.Equal(t, 3, h.Len())
	_, ok = h.Get(1)
	assert.False(t, ok)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), latest.Tick)
	assert.True(t, latest.AtRisk())

	list := h.List()
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{5, 4, 3}, []uint64{list[0].Tick, list[1].Tick, list[2].Tick})
}

func TestHistory_CopiesRoster(t *testing.T) {
	h, err := NewHistory(2)
	require.NoError(t, err)

	ids := []int{1, 2}
	h.Add(Roster{Tick: 1, HighRisk: ids})
	ids[0] = 99

	got, ok := h.Get(1)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, got.HighRisk)

	h.Add(Roster{Tick: 2})
	got, _ = h.Get(2)
	assert.NotNil(t, got.HighRisk)
	assert.False(t, got.AtRisk())

	_, err = NewHistory(0)
	assert.Error(t, err)
}
