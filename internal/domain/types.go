// Package domain contains the core entities of the chronic-disease risk monitor:
// static patient records, simulated dynamic readings, the composite feature
// vectors fed to the risk classifiers and the predictions they produce.
package domain

import (
	"errors"
	"fmt"
)

// SmokingHistory is the closed enumeration of smoking categories carried by a
// patient record. The string values are the labels the classifiers were
// trained against.
type SmokingHistory string

const (
	SMOKING_NO_INFO     SmokingHistory = "No Info"
	SMOKING_NEVER       SmokingHistory = "never"
	SMOKING_FORMER      SmokingHistory = "former"
	SMOKING_CURRENT     SmokingHistory = "current"
	SMOKING_NOT_CURRENT SmokingHistory = "not current"
	SMOKING_EVER        SmokingHistory = "ever"
)

// smokingCodes is the fixed ordinal encoding used as model input.
var smokingCodes = map[SmokingHistory]int{
	SMOKING_NO_INFO:     0,
	SMOKING_NEVER:       1,
	SMOKING_FORMER:      2,
	SMOKING_CURRENT:     3,
	SMOKING_NOT_CURRENT: 4,
	SMOKING_EVER:        5,
}

// SmokingHistories returns every category in ordinal order.
func SmokingHistories() []SmokingHistory {
	return []SmokingHistory{
		SMOKING_NO_INFO,
		SMOKING_NEVER,
		SMOKING_FORMER,
		SMOKING_CURRENT,
		SMOKING_NOT_CURRENT,
		SMOKING_EVER,
	}
}

// IsValid reports whether the value belongs to the closed enumeration.
func (s SmokingHistory) IsValid() bool {
	_, ok := smokingCodes[s]
	return ok
}

// Code returns the ordinal model-input code. Values outside the enumeration
// are never coerced to a default.
func (s SmokingHistory) Code() (int, bool) {
	code, ok := smokingCodes[s]
	return code, ok
}

// String returns the string representation of the category.
func (s SmokingHistory) String() string {
	return string(s)
}

// RiskStatus is the presentation-level status derived from a prediction.
type RiskStatus string

const (
	STABLE  RiskStatus = "STABLE"
	AT_RISK RiskStatus = "AT_RISK"
)

// IsValid validates the risk status.
func (r RiskStatus) IsValid() bool {
	switch r {
	case STABLE, AT_RISK:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (r RiskStatus) String() string {
	return string(r)
}

// Message returns the banner text shown to staff for the status.
func (r RiskStatus) Message() string {
	switch r {
	case AT_RISK:
		return "At risk. Please consult a doctor."
	case STABLE:
		return "Currently stable."
	default:
		return "Unknown status"
	}
}

// Reading bounds for the synthetic vitals generator.
const (
	MinBMI     = 18.5
	MaxBMI     = 35.0
	MinHbA1c   = 5.5
	MaxHbA1c   = 9.0
	MinGlucose = 80
	MaxGlucose = 250

	MinAge = 0
	MaxAge = 120
)

// Validation errors for patient data integrity
var (
	ErrNotFound       = errors.New("not found")
	ErrNoSnapshot     = errors.New("no live readings published yet")
	ErrNoReading      = errors.New("no reading for patient in the current tick")
	ErrInvalidGender  = errors.New("gender must be 0 or 1")
	ErrInvalidAge     = fmt.Errorf("age must be within [%d, %d]", MinAge, MaxAge)
	ErrInvalidPatient = errors.New("patient identifier must be a positive integer")
)
