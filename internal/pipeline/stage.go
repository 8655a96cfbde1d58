// Package pipeline chains the pre-fit scale → reduce → classify steps into
// the diabetes and hypertension stages and runs them over single vectors or
// whole batches.
package pipeline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/model"
)

// Transformer is a pre-fit row-wise transformation. A single vector is a
// 1-row matrix.
type Transformer interface {
	Transform(x mat.Matrix) (*mat.Dense, error)
	InputDim() int
	OutputDim() int
}

// Classifier is a pre-fit binary classifier returning one label per row.
type Classifier interface {
	Predict(x mat.Matrix) ([]bool, error)
	InputDim() int
}

// ProbabilisticClassifier is a Classifier that can report positive-class
// probabilities when calibrated.
type ProbabilisticClassifier interface {
	Classifier
	Calibrated() bool
	Probability(x mat.Matrix) ([]float64, error)
}

// Step names reported in FeatureShapeError.
const (
	StepScale    = "scale"
	StepReduce   = "reduce"
	StepClassify = "classify"
)

// Stage is one scale → reduce → classify sub-pipeline.
type Stage struct {
	name       string
	features   []string
	scaler     Transformer
	reducer    Transformer
	classifier Classifier
}

// NewStage wires the three steps and checks that their dimensions chain:
// the feature schema feeds the scaler, the scaler feeds the reducer and the
// reducer feeds the classifier.
func NewStage(name string, features []string, scaler, reducer Transformer, classifier Classifier) (*Stage, error) {
	if scaler == nil || reducer == nil || classifier == nil {
		return nil, fmt.Errorf("stage %s: scaler, reducer and classifier are required", name)
	}
	if scaler.InputDim() != len(features) {
		return nil, domain.NewFeatureShapeError(name, StepScale, scaler.InputDim(), len(features))
	}
	if reducer.InputDim() != scaler.OutputDim() {
		return nil, domain.NewFeatureShapeError(name, StepReduce, reducer.InputDim(), scaler.OutputDim())
	}
	if classifier.InputDim() != reducer.OutputDim() {
		return nil, domain.NewFeatureShapeError(name, StepClassify, classifier.InputDim(), reducer.OutputDim())
	}

	return &Stage{
		name:       name,
		features:   append([]string(nil), features...),
		scaler:     scaler,
		reducer:    reducer,
		classifier: classifier,
	}, nil
}

// NewStageFromArtifacts builds a stage from loaded artifacts.
func NewStageFromArtifacts(name string, features []string, a *model.StageArtifacts) (*Stage, error) {
	return NewStage(name, features, a.Scaler, a.Reducer, a.Classifier)
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// Features returns the ordered input schema.
func (s *Stage) Features() []string { return append([]string(nil), s.features...) }

// Predict runs every row of x through the three steps. A NaN or infinite
// cell fails the whole call with a MissingFeatureError naming its column; raw
// matrices carry no patient, so the error reports patient 0.
func (s *Stage) Predict(x mat.Matrix) ([]bool, error) {
	reduced, err := s.transform(x)
	if err != nil {
		return nil, err
	}
	labels, err := s.classifier.Predict(reduced)
	if err != nil {
		_, got := reduced.Dims()
		return nil, s.stepErr(StepClassify, s.classifier.InputDim(), got, err)
	}
	return labels, nil
}

// Calibrated reports whether Probability is available for this stage.
func (s *Stage) Calibrated() bool {
	pc, ok := s.classifier.(ProbabilisticClassifier)
	return ok && pc.Calibrated()
}

// Probability returns the positive-class probability of every row of x. ok
// is false when the stage's classifier is not calibrated.
func (s *Stage) Probability(x mat.Matrix) (probs []float64, ok bool, err error) {
	if !s.Calibrated() {
		return nil, false, nil
	}
	reduced, err := s.transform(x)
	if err != nil {
		return nil, false, err
	}
	probs, err = s.classifier.(ProbabilisticClassifier).Probability(reduced)
	if err != nil {
		_, got := reduced.Dims()
		return nil, false, s.stepErr(StepClassify, s.classifier.InputDim(), got, err)
	}
	return probs, true, nil
}

// transform checks x and runs the scale and reduce steps.
func (s *Stage) transform(x mat.Matrix) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != len(s.features) {
		return nil, domain.NewFeatureShapeError(s.name, StepScale, len(s.features), cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, domain.NewMissingFeatureError(0, s.features[j])
			}
		}
	}

	scaled, err := s.scaler.Transform(x)
	if err != nil {
		return nil, s.stepErr(StepScale, s.scaler.InputDim(), cols, err)
	}
	reduced, err := s.reducer.Transform(scaled)
	if err != nil {
		_, got := scaled.Dims()
		return nil, s.stepErr(StepReduce, s.reducer.InputDim(), got, err)
	}
	return reduced, nil
}

func (s *Stage) stepErr(step string, expected, got int, err error) error {
	if errors.Is(err, model.ErrDimension) {
		return domain.NewFeatureShapeError(s.name, step, expected, got)
	}
	return fmt.Errorf("%s %s: %w", s.name, step, err)
}
