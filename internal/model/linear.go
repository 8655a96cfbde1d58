package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDimension is wrapped by every adapter when its input width does not
// match the fitted artifact.
var ErrDimension = errors.New("dimension mismatch")

// ErrEmptyInput is returned for a matrix with no rows.
var ErrEmptyInput = errors.New("empty input")

// Supported classifier kinds.
const (
	KindLogisticRegression = "logistic_regression"
	KindLinearSVM          = "linear_svm"
)

// LinearClassifier is a pre-fit binary linear model. The positive label is
// predicted iff coef·x + intercept > 0, which is the decision rule shared by
// logistic regression and a linear SVM.
type LinearClassifier struct {
	kind      string
	coef      *mat.VecDense
	intercept float64
}

// NewLinearClassifier creates a classifier from fitted parameters.
func NewLinearClassifier(kind string, coef []float64, intercept float64) (*LinearClassifier, error) {
	switch kind {
	case KindLogisticRegression, KindLinearSVM:
	default:
		return nil, fmt.Errorf("unsupported classifier kind %q", kind)
	}
	if len(coef) == 0 {
		return nil, fmt.Errorf("classifier has no coefficients")
	}
	if err := checkFinite("coef", coef); err != nil {
		return nil, err
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, fmt.Errorf("intercept is not finite")
	}

	return &LinearClassifier{
		kind:      kind,
		coef:      mat.NewVecDense(len(coef), append([]float64(nil), coef...)),
		intercept: intercept,
	}, nil
}

// Kind returns the artifact kind.
func (c *LinearClassifier) Kind() string { return c.kind }

// InputDim returns the number of features the model was fit on.
func (c *LinearClassifier) InputDim() int { return c.coef.Len() }

// DecisionFunction returns coef·x + intercept for every row of x.
func (c *LinearClassifier) DecisionFunction(x mat.Matrix) ([]float64, error) {
	r, cols := x.Dims()
	if r == 0 {
		return nil, ErrEmptyInput
	}
	if cols != c.coef.Len() {
		return nil, fmt.Errorf("%w: classifier expects %d columns, got %d", ErrDimension, c.coef.Len(), cols)
	}

	scores := mat.NewVecDense(r, nil)
	scores.MulVec(x, c.coef)

	out := make([]float64, r)
	for i := range out {
		out[i] = scores.AtVec(i) + c.intercept
	}
	return out, nil
}

// Predict returns the boolean label for every row of x.
func (c *LinearClassifier) Predict(x mat.Matrix) ([]bool, error) {
	scores, err := c.DecisionFunction(x)
	if err != nil {
		return nil, err
	}
	labels := make([]bool, len(scores))
	for i, s := range scores {
		labels[i] = s > 0
	}
	return labels, nil
}

// Calibrated reports whether Probability is defined for this kind. Only
// logistic models are calibrated.
func (c *LinearClassifier) Calibrated() bool { return c.kind == KindLogisticRegression }

// Probability returns the positive-class probability for every row of x.
func (c *LinearClassifier) Probability(x mat.Matrix) ([]float64, error) {
	if !c.Calibrated() {
		return nil, fmt.Errorf("%s does not produce probabilities", c.kind)
	}
	scores, err := c.DecisionFunction(x)
	if err != nil {
		return nil, err
	}
	for i, s := range scores {
		scores[i] = 1 / (1 + math.Exp(-s))
	}
	return scores, nil
}
