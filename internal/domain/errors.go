package domain

import (
	"fmt"
	"time"
)

// ServiceError represents a standardized error response
type ServiceError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrNoData          = "NO_DATA"
	ErrFeatureShape    = "FEATURE_SHAPE"
	ErrUnknownCategory = "UNKNOWN_CATEGORY"
	ErrMissingFeature  = "MISSING_FEATURE"
	ErrRateLimit       = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
)

// NewServiceError creates a new ServiceError with timestamp
func NewServiceError(code, message, details, requestID string) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// UnknownCategoryError is returned when a categorical attribute has no
// ordinal mapping. It is fatal for the affected patient only.
type UnknownCategoryError struct {
	PatientID int    `json:"patient_id"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

// Error implements the error interface
func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("patient %d: unknown %s category %q", e.PatientID, e.Field, e.Value)
}

// NewUnknownCategoryError creates a new UnknownCategoryError
func NewUnknownCategoryError(patientID int, field, value string) *UnknownCategoryError {
	return &UnknownCategoryError{PatientID: patientID, Field: field, Value: value}
}

// FeatureShapeError signals that a matrix entering a pipeline step does not
// have the width the fitted artifact expects. It indicates artifact or
// schema drift and is never retried.
type FeatureShapeError struct {
	Stage    string `json:"stage"`
	Step     string `json:"step"`
	Expected int    `json:"expected"`
	Got      int    `json:"got"`
}

// Error implements the error interface
func (e *FeatureShapeError) Error() string {
	return fmt.Sprintf("%s %s: expected %d features, got %d", e.Stage, e.Step, e.Expected, e.Got)
}

// NewFeatureShapeError creates a new FeatureShapeError
func NewFeatureShapeError(stage, step string, expected, got int) *FeatureShapeError {
	return &FeatureShapeError{Stage: stage, Step: step, Expected: expected, Got: got}
}

// MissingFeatureError is returned for a NaN or infinite model input.
type MissingFeatureError struct {
	PatientID int    `json:"patient_id"`
	Feature   string `json:"feature"`
}

// Error implements the error interface
func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("patient %d: missing value for feature %s", e.PatientID, e.Feature)
}

// NewMissingFeatureError creates a new MissingFeatureError
func NewMissingFeatureError(patientID int, feature string) *MissingFeatureError {
	return &MissingFeatureError{PatientID: patientID, Feature: feature}
}

// ArtifactError wraps a failure to load or validate a pre-fit model artifact.
type ArtifactError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *ArtifactError) Error() string {
	return fmt.Sprintf("model artifact %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ArtifactError) Unwrap() error {
	return e.Err
}
