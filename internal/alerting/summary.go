package alerting

import (
	"fmt"
	"strings"

	"github.com/chronic-risk-monitor/internal/domain"
)

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Summary renders one patient's current data and prediction as plain text.
func Summary(r domain.PatientRisk) string {
	v := r.Vector
	status := ClassifyStatus(r.Prediction)

	var b strings.Builder
	fmt.Fprintf(&b, "Patient %d health summary\n", v.PatientID)
	fmt.Fprintf(&b, "- BMI: %.1f\n", v.BMI)
	fmt.Fprintf(&b, "- HbA1c Level: %.1f\n", v.HbA1cLevel)
	fmt.Fprintf(&b, "- Blood Glucose Level: %.0f\n", v.GlucoseLevel)
	fmt.Fprintf(&b, "- Diabetes: %s\n", yesNo(r.Prediction.Diabetes))
	fmt.Fprintf(&b, "- Hypertension: %s\n", yesNo(r.Prediction.HypertensionRisk))
	fmt.Fprintf(&b, "Status: %s. %s\n", status, status.Message())
	return b.String()
}

// RosterSummary renders a tick's high-risk roster as plain text.
func RosterSummary(tick uint64, risks []domain.PatientRisk) string {
	high := HighRisk(risks)

	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d: %d of %d patients at risk\n", tick, len(high), len(risks))
	if len(high) == 0 {
		b.WriteString(RosterStableMessage + "\n")
		return b.String()
	}
	b.WriteString(RosterAtRiskMessage + "\n")
	for _, r := range high {
		fmt.Fprintf(&b, "- Patient %d: diabetes=%s hypertension=%s\n",
			r.PatientID(), yesNo(r.Prediction.Diabetes), yesNo(r.Prediction.HypertensionRisk))
	}
	return b.String()
}
