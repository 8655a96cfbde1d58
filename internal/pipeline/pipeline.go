package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/model"
)

// Stage names, also used as artifact file prefixes.
const (
	StageDiabetes     = "diabetes"
	StageHypertension = "hypertension"
)

// RiskPipeline runs the diabetes stage, splices its label into the
// hypertension input and runs the hypertension stage. It holds only pre-fit
// state and is safe for concurrent use.
type RiskPipeline struct {
	diabetes     *Stage
	hypertension *Stage
	logger       *logrus.Logger
}

// New creates a pipeline from two wired stages.
func New(diabetes, hypertension *Stage, logger *logrus.Logger) (*RiskPipeline, error) {
	if diabetes == nil || hypertension == nil {
		return nil, fmt.Errorf("both stages are required")
	}
	if got := len(diabetes.features); got != len(domain.DiabetesFeatures) {
		return nil, domain.NewFeatureShapeError(StageDiabetes, StepScale, len(domain.DiabetesFeatures), got)
	}
	if got := len(hypertension.features); got != len(domain.HypertensionFeatures) {
		return nil, domain.NewFeatureShapeError(StageHypertension, StepScale, len(domain.HypertensionFeatures), got)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RiskPipeline{diabetes: diabetes, hypertension: hypertension, logger: logger}, nil
}

// LoadFromDir loads both stages' artifacts from dir. Any failure is fatal for
// the caller; there is no partial mode.
func LoadFromDir(dir string, logger *logrus.Logger) (*RiskPipeline, error) {
	diabetesArtifacts, err := model.LoadStage(dir, StageDiabetes)
	if err != nil {
		return nil, err
	}
	hypertensionArtifacts, err := model.LoadStage(dir, StageHypertension)
	if err != nil {
		return nil, err
	}

	diabetes, err := NewStageFromArtifacts(StageDiabetes, domain.DiabetesFeatures, diabetesArtifacts)
	if err != nil {
		return nil, err
	}
	hypertension, err := NewStageFromArtifacts(StageHypertension, domain.HypertensionFeatures, hypertensionArtifacts)
	if err != nil {
		return nil, err
	}

	p, err := New(diabetes, hypertension, logger)
	if err != nil {
		return nil, err
	}
	p.logger.WithFields(logrus.Fields{
		"dir":                     dir,
		"diabetes_kind":           diabetesArtifacts.Classifier.Kind(),
		"hypertension_kind":       hypertensionArtifacts.Classifier.Kind(),
		"diabetes_components":     diabetesArtifacts.Reducer.OutputDim(),
		"hypertension_components": hypertensionArtifacts.Reducer.OutputDim(),
	}).Info("Loaded model artifacts")
	return p, nil
}

// PredictDiabetes runs the diabetes stage on one 7-feature vector.
func (p *RiskPipeline) PredictDiabetes(features []float64) (bool, error) {
	return predictOne(p.diabetes, features)
}

// PredictHypertension runs the hypertension stage on one 8-feature vector
// whose last element is the diabetes label.
func (p *RiskPipeline) PredictHypertension(features []float64) (bool, error) {
	if len(features) == len(p.hypertension.features) {
		if label := features[len(features)-1]; !math.IsNaN(label) && !math.IsInf(label, 0) && label != 0 && label != 1 {
			return false, domain.NewValidationError("diabetes", "diabetes label must be 0 or 1", label)
		}
	}
	return predictOne(p.hypertension, features)
}

// InferRisk runs both stages for a single vector. It is the batch path with
// one row, so single and batch results cannot diverge.
func (p *RiskPipeline) InferRisk(v domain.CompositeFeatureVector) (domain.RiskPrediction, error) {
	risks, err := p.InferBatch([]domain.CompositeFeatureVector{v})
	if err != nil {
		return domain.RiskPrediction{}, err
	}
	return risks[0].Prediction, nil
}

// InferBatch runs both stages over every vector, preserving input order.
// A missing feature in any row fails the whole call; callers validate and
// drop bad vectors first.
func (p *RiskPipeline) InferBatch(vectors []domain.CompositeFeatureVector) ([]domain.PatientRisk, error) {
	if len(vectors) == 0 {
		return []domain.PatientRisk{}, nil
	}
	start := time.Now()

	n := len(vectors)
	width := len(domain.DiabetesFeatures)
	stageA := mat.NewDense(n, width, nil)
	for i, v := range vectors {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		stageA.SetRow(i, v.Features())
	}

	diabetes, err := p.diabetes.Predict(stageA)
	if err != nil {
		return nil, err
	}

	stageB := mat.NewDense(n, width+1, nil)
	for i := 0; i < n; i++ {
		stageB.SetRow(i, domain.WithDiabetes(stageA.RawRowView(i), diabetes[i]))
	}

	hypertension, err := p.hypertension.Predict(stageB)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PatientRisk, n)
	for i, v := range vectors {
		out[i] = domain.PatientRisk{
			Vector: v,
			Prediction: domain.RiskPrediction{
				Diabetes:         diabetes[i],
				HypertensionRisk: hypertension[i],
			},
		}
	}

	p.logger.WithFields(logrus.Fields{
		"patients": n,
		"duration": time.Since(start),
	}).Debug("Risk inference completed")
	return out, nil
}

// InferProbability returns each stage's positive-class probability for one
// vector. The hypertension input carries the predicted diabetes label, as in
// InferRisk, so the probabilities agree with the labels.
func (p *RiskPipeline) InferProbability(v domain.CompositeFeatureVector) (domain.RiskProbability, error) {
	var out domain.RiskProbability
	if err := v.Validate(); err != nil {
		return out, err
	}
	features := v.Features()
	stageA := mat.NewDense(1, len(features), features)

	diabetes, err := p.diabetes.Predict(stageA)
	if err != nil {
		return out, err
	}
	if probs, ok, err := p.diabetes.Probability(stageA); err != nil {
		return out, err
	} else if ok {
		out.Diabetes = &probs[0]
	}

	withLabel := domain.WithDiabetes(features, diabetes[0])
	stageB := mat.NewDense(1, len(withLabel), withLabel)
	if probs, ok, err := p.hypertension.Probability(stageB); err != nil {
		return out, err
	} else if ok {
		out.HypertensionRisk = &probs[0]
	}
	return out, nil
}

func predictOne(s *Stage, features []float64) (bool, error) {
	if len(features) != len(s.features) {
		return false, domain.NewFeatureShapeError(s.name, StepScale, len(s.features), len(features))
	}
	labels, err := s.Predict(mat.NewDense(1, len(features), append([]float64(nil), features...)))
	if err != nil {
		return false, err
	}
	return labels[0], nil
}
