// Package export renders the admin view as an XLSX workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/chronic-risk-monitor/internal/service"
)

// Sheet names.
const (
	PatientsSheet = "Patients"
	HighRiskSheet = "High Risk"
)

// PatientsHeader is the admin table header.
var PatientsHeader = []string{
	"User ID",
	"bmi",
	"HbA1c_level",
	"blood_glucose_level",
	"diabetes",
	"Hypertension Risk",
	"Status",
}

// HighRiskHeader is the high-risk roster header.
var HighRiskHeader = []string{
	"User ID",
	"diabetes",
	"Hypertension Risk",
}

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename returns the download name for a tick.
func Filename(tick uint64) string {
	return fmt.Sprintf("risk-monitor-tick-%d.xlsx", tick)
}

// WriteAdminWorkbook writes the admin table and its high-risk roster.
func WriteAdminWorkbook(w io.Writer, view *service.AdminView) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(PatientsSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(HighRiskSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	patients := make([][]interface{}, len(view.Patients))
	for i, p := range view.Patients {
		patients[i] = []interface{}{
			p.PatientID, p.BMI, p.HbA1cLevel, p.GlucoseLevel,
			boolCell(p.Diabetes), boolCell(p.HypertensionRisk), string(p.Status),
		}
	}
	if err := writeTable(f, PatientsSheet, PatientsHeader, patients, headerStyle); err != nil {
		return err
	}

	var roster [][]interface{}
	for _, p := range view.HighRiskRows() {
		roster = append(roster, []interface{}{p.PatientID, boolCell(p.Diabetes), boolCell(p.HypertensionRisk)})
	}
	if err := writeTable(f, HighRiskSheet, HighRiskHeader, roster, headerStyle); err != nil {
		return err
	}

	footer := fmt.Sprintf("Tick %d, generated %s. %s", view.Tick, view.GeneratedAt.Format("2006-01-02 15:04:05 MST"), view.Message)
	footerCell, err := excelize.CoordinatesToCellName(1, len(patients)+3)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellValue(PatientsSheet, footerCell, footer); err != nil {
		return fmt.Errorf("failed to set footer: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []string, rows [][]interface{}, headerStyle int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

// boolCell renders a label the way the dashboards showed it.
func boolCell(b bool) int {
	if b {
		return 1
	}
	return 0
}
