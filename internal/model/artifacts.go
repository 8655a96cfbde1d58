package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chronic-risk-monitor/internal/domain"
)

// Artifact kinds understood by the loader.
const (
	KindStandardScaler = "standard_scaler"
	KindPCA            = "pca"
)

// ScalerArtifact is the on-disk form of a fitted StandardScaler.
type ScalerArtifact struct {
	Kind      string    `json:"kind"`
	NFeatures int       `json:"n_features"`
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
}

// PCAArtifact is the on-disk form of a fitted PCA projection.
type PCAArtifact struct {
	Kind              string      `json:"kind"`
	NFeatures         int         `json:"n_features"`
	NComponents       int         `json:"n_components"`
	Mean              []float64   `json:"mean"`
	Components        [][]float64 `json:"components"`
	Whiten            bool        `json:"whiten,omitempty"`
	ExplainedVariance []float64   `json:"explained_variance,omitempty"`
}

// ClassifierArtifact is the on-disk form of a fitted linear classifier.
type ClassifierArtifact struct {
	Kind      string    `json:"kind"`
	NFeatures int       `json:"n_features"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// StageArtifacts is the scaler → reducer → classifier triple of one disease
// stage.
type StageArtifacts struct {
	Scaler     *StandardScaler
	Reducer    *PCA
	Classifier *LinearClassifier
}

// StageFiles returns the artifact paths for a stage, e.g. "diabetes" →
// diabetes_scaler.json, diabetes_pca.json, diabetes_model.json.
func StageFiles(dir, stage string) (scaler, reducer, classifier string) {
	return filepath.Join(dir, stage+"_scaler.json"),
		filepath.Join(dir, stage+"_pca.json"),
		filepath.Join(dir, stage+"_model.json")
}

// LoadStage loads and validates the three artifacts of a stage. Every
// failure is reported as a *domain.ArtifactError.
func LoadStage(dir, stage string) (*StageArtifacts, error) {
	scalerPath, pcaPath, modelPath := StageFiles(dir, stage)

	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, err
	}
	reducer, err := LoadPCA(pcaPath)
	if err != nil {
		return nil, err
	}
	classifier, err := LoadClassifier(modelPath)
	if err != nil {
		return nil, err
	}

	return &StageArtifacts{Scaler: scaler, Reducer: reducer, Classifier: classifier}, nil
}

// LoadScaler reads a standard_scaler artifact.
func LoadScaler(path string) (*StandardScaler, error) {
	var a ScalerArtifact
	if err := readArtifact(path, &a); err != nil {
		return nil, err
	}
	if a.Kind != KindStandardScaler {
		return nil, artifactErr(path, fmt.Errorf("expected kind %q, got %q", KindStandardScaler, a.Kind))
	}
	if a.NFeatures != len(a.Mean) {
		return nil, artifactErr(path, fmt.Errorf("n_features is %d but mean has %d entries", a.NFeatures, len(a.Mean)))
	}
	s, err := NewStandardScaler(a.Mean, a.Scale)
	if err != nil {
		return nil, artifactErr(path, err)
	}
	return s, nil
}

// LoadPCA reads a pca artifact.
func LoadPCA(path string) (*PCA, error) {
	var a PCAArtifact
	if err := readArtifact(path, &a); err != nil {
		return nil, err
	}
	if a.Kind != KindPCA {
		return nil, artifactErr(path, fmt.Errorf("expected kind %q, got %q", KindPCA, a.Kind))
	}
	if a.NFeatures != len(a.Mean) {
		return nil, artifactErr(path, fmt.Errorf("n_features is %d but mean has %d entries", a.NFeatures, len(a.Mean)))
	}
	if a.NComponents != len(a.Components) {
		return nil, artifactErr(path, fmt.Errorf("n_components is %d but %d components are present", a.NComponents, len(a.Components)))
	}
	p, err := NewPCA(a.Mean, a.Components, a.Whiten, a.ExplainedVariance)
	if err != nil {
		return nil, artifactErr(path, err)
	}
	return p, nil
}

// LoadClassifier reads a logistic_regression or linear_svm artifact.
func LoadClassifier(path string) (*LinearClassifier, error) {
	var a ClassifierArtifact
	if err := readArtifact(path, &a); err != nil {
		return nil, err
	}
	if a.NFeatures != len(a.Coef) {
		return nil, artifactErr(path, fmt.Errorf("n_features is %d but coef has %d entries", a.NFeatures, len(a.Coef)))
	}
	c, err := NewLinearClassifier(a.Kind, a.Coef, a.Intercept)
	if err != nil {
		return nil, artifactErr(path, err)
	}
	return c, nil
}

func readArtifact(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return artifactErr(path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return artifactErr(path, fmt.Errorf("decoding: %w", err))
	}
	return nil
}

func artifactErr(path string, err error) error {
	return &domain.ArtifactError{Path: path, Err: err}
}
