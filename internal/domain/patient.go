package domain

import (
	"math"
)

// DiabetesFeatures is the fixed, order-sensitive input schema of the
// diabetes stage.
var DiabetesFeatures = []string{
	"gender",
	"age",
	"heart_disease",
	"smoking_history",
	"bmi",
	"HbA1c_level",
	"blood_glucose_level",
}

// HypertensionFeatures is the diabetes schema with the diabetes prediction
// appended last.
var HypertensionFeatures = append(append([]string{}, DiabetesFeatures...), "diabetes")

// PatientRecord holds the static attributes of one patient. Records are
// immutable for the lifetime of the process.
type PatientRecord struct {
	ID             int            `json:"id"`
	Gender         int            `json:"gender"`
	Age            int            `json:"age"`
	HeartDisease   bool           `json:"heart_disease"`
	SmokingHistory SmokingHistory `json:"smoking_history"`
}

// Validate checks the structural invariants of a record. The smoking
// category is checked by the feature composer, where an unmapped value must
// surface as an UnknownCategoryError.
func (r PatientRecord) Validate() error {
	if r.ID <= 0 {
		return NewValidationError("id", ErrInvalidPatient.Error(), r.ID)
	}
	if r.Gender != 0 && r.Gender != 1 {
		return NewValidationError("gender", ErrInvalidGender.Error(), r.Gender)
	}
	if r.Age < MinAge || r.Age > MaxAge {
		return NewValidationError("age", ErrInvalidAge.Error(), r.Age)
	}
	return nil
}

// DynamicReading is one tick's simulated vitals for a patient.
type DynamicReading struct {
	PatientID    int     `json:"patient_id"`
	BMI          float64 `json:"bmi"`
	HbA1cLevel   float64 `json:"HbA1c_level"`
	GlucoseLevel int     `json:"blood_glucose_level"`
}

// CompositeFeatureVector joins a record with its current reading, with the
// smoking category replaced by its ordinal code.
type CompositeFeatureVector struct {
	PatientID    int     `json:"patient_id"`
	Gender       int     `json:"gender"`
	Age          int     `json:"age"`
	HeartDisease bool    `json:"heart_disease"`
	SmokingCode  int     `json:"smoking_history"`
	BMI          float64 `json:"bmi"`
	HbA1cLevel   float64 `json:"HbA1c_level"`
	GlucoseLevel float64 `json:"blood_glucose_level"`
}

// NewCompositeFeatureVector encodes a record and reading into model input.
func NewCompositeFeatureVector(record PatientRecord, reading DynamicReading) (CompositeFeatureVector, error) {
	code, ok := record.SmokingHistory.Code()
	if !ok {
		return CompositeFeatureVector{}, NewUnknownCategoryError(record.ID, "smoking_history", string(record.SmokingHistory))
	}
	return CompositeFeatureVector{
		PatientID:    record.ID,
		Gender:       record.Gender,
		Age:          record.Age,
		HeartDisease: record.HeartDisease,
		SmokingCode:  code,
		BMI:          reading.BMI,
		HbA1cLevel:   reading.HbA1cLevel,
		GlucoseLevel: float64(reading.GlucoseLevel),
	}, nil
}

// Features returns the vector in DiabetesFeatures order.
func (v CompositeFeatureVector) Features() []float64 {
	return []float64{
		float64(v.Gender),
		float64(v.Age),
		boolToFloat(v.HeartDisease),
		float64(v.SmokingCode),
		v.BMI,
		v.HbA1cLevel,
		v.GlucoseLevel,
	}
}

// Validate rejects missing (NaN) or infinite features. Clinical values are
// never imputed.
func (v CompositeFeatureVector) Validate() error {
	for i, x := range v.Features() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return NewMissingFeatureError(v.PatientID, DiabetesFeatures[i])
		}
	}
	return nil
}

// WithDiabetes returns a copy of the diabetes-stage features with the
// diabetes prediction appended, in HypertensionFeatures order.
func WithDiabetes(features []float64, diabetes bool) []float64 {
	out := make([]float64, len(features), len(features)+1)
	copy(out, features)
	return append(out, boolToFloat(diabetes))
}

// RiskPrediction is the two-stage classifier output for one vector.
type RiskPrediction struct {
	Diabetes         bool `json:"diabetes"`
	HypertensionRisk bool `json:"hypertension_risk"`
}

// RiskProbability holds the positive-class probability of each stage. A stage
// whose classifier is not calibrated leaves its field nil.
type RiskProbability struct {
	Diabetes         *float64 `json:"diabetes,omitempty"`
	HypertensionRisk *float64 `json:"hypertension_risk,omitempty"`
}

// PatientRisk pairs a vector with its prediction.
type PatientRisk struct {
	Vector     CompositeFeatureVector `json:"vector"`
	Prediction RiskPrediction         `json:"prediction"`
}

// PatientID returns the identifier of the assessed patient.
func (p PatientRisk) PatientID() int {
	return p.Vector.PatientID
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
