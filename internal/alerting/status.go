// Package alerting turns risk predictions into statuses, high-risk rosters
// and the plain-text summaries handed to report and chat consumers.
package alerting

import (
	"github.com/chronic-risk-monitor/internal/domain"
)

// Roster banners.
const (
	RosterAtRiskMessage = "Users at risk detected. Please notify doctors."
	RosterStableMessage = "All users currently stable."
)

// ClassifyStatus returns AT_RISK when either condition is predicted.
func ClassifyStatus(p domain.RiskPrediction) domain.RiskStatus {
	if p.Diabetes || p.HypertensionRisk {
		return domain.AT_RISK
	}
	return domain.STABLE
}

// SelectHighRisk returns the ids of at-risk patients in input order.
func SelectHighRisk(risks []domain.PatientRisk) []int {
	ids := make([]int, 0, len(risks))
	for _, r := range risks {
		if ClassifyStatus(r.Prediction) == domain.AT_RISK {
			ids = append(ids, r.PatientID())
		}
	}
	return ids
}

// HighRisk returns the at-risk entries in input order.
func HighRisk(risks []domain.PatientRisk) []domain.PatientRisk {
	out := make([]domain.PatientRisk, 0, len(risks))
	for _, r := range risks {
		if ClassifyStatus(r.Prediction) == domain.AT_RISK {
			out = append(out, r)
		}
	}
	return out
}

// RosterMessage returns the admin banner for a roster.
func RosterMessage(highRisk []int) string {
	if len(highRisk) > 0 {
		return RosterAtRiskMessage
	}
	return RosterStableMessage
}
