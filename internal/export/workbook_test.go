package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/service"
)

func sampleView() *service.AdminView {
	return &service.AdminView{
		Tick:        12,
		GeneratedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Patients: []service.PatientRow{
			{PatientID: 1, BMI: 27.4, HbA1cLevel: 6.8, GlucoseLevel: 150, Diabetes: true, HypertensionRisk: true, Status: domain.AT_RISK},
			{PatientID: 2, BMI: 19, HbA1cLevel: 5.6, GlucoseLevel: 90, Status: domain.STABLE},
		},
		HighRisk: []int{1},
		AtRisk:   true,
		Message:  "Users at risk detected. Please notify doctors.",
	}
}

func TestWriteAdminWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAdminWorkbook(&buf, sampleView()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{PatientsSheet, HighRiskSheet}, f.GetSheetList())

	rows, err := f.GetRows(PatientsSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, PatientsHeader, rows[0])
	assert.Equal(t, []string{"1", "27.4", "6.8", "150", "1", "1", "AT_RISK"}, rows[1])
	assert.Equal(t, []string{"2", "19", "5.6", "90", "0", "0", "STABLE"}, rows[2])

	footer, err := f.GetCellValue(PatientsSheet, "A5")
	require.NoError(t, err)
	assert.Contains(t, footer, "Tick 12")

	roster, err := f.GetRows(HighRiskSheet)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, HighRiskHeader, roster[0])
	assert.Equal(t, []string{"1", "1", "1"}, roster[1])
}

func TestWriteAdminWorkbook_NobodyAtRisk(t *testing.T) {
	view := sampleView()
	view.Patients = view.Patients[1:]
	view.HighRisk = nil

	var buf bytes.Buffer
	require.NoError(t, WriteAdminWorkbook(&buf, view))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	roster, err := f.GetRows(HighRiskSheet)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "risk-monitor-tick-3.xlsx", Filename(3))
}
