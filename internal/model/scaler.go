// Package model adapts pre-fit numeric artifacts (standardization, PCA
// projection and linear classifiers) to matrix operations. A single feature
// vector is a one-row matrix, so batch and single-record inference share one
// code path.
package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// StandardScaler applies a pre-fit per-feature standardization
// z = (x - mean) / scale. It never refits.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler creates a scaler from fitted parameters. A zero scale
// (constant feature at fit time) is treated as 1.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("scaler has no features")
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler mean has %d entries, scale has %d", len(mean), len(scale))
	}
	if err := checkFinite("mean", mean); err != nil {
		return nil, err
	}
	if err := checkFinite("scale", scale); err != nil {
		return nil, err
	}

	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// InputDim returns the number of features the scaler was fit on.
func (s *StandardScaler) InputDim() int { return len(s.mean) }

// OutputDim equals InputDim.
func (s *StandardScaler) OutputDim() int { return len(s.mean) }

// Transform standardizes every row of x.
func (s *StandardScaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if r == 0 {
		return nil, ErrEmptyInput
	}
	if c != len(s.mean) {
		return nil, fmt.Errorf("%w: scaler expects %d columns, got %d", ErrDimension, len(s.mean), c)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, x)
	return out, nil
}

func checkFinite(name string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s[%d] is not finite", name, i)
		}
	}
	return nil
}
