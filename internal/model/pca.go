package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PCA applies a pre-fit linear projection y = (x - mean) · componentsᵀ,
// optionally whitened by the per-component explained variance.
type PCA struct {
	mean       []float64
	components *mat.Dense // n_components × n_features
	whiten     bool
	stddev     []float64
}

// NewPCA creates a projection from fitted parameters. components holds one
// row per retained component.
func NewPCA(mean []float64, components [][]float64, whiten bool, explainedVariance []float64) (*PCA, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("pca has no features")
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("pca has no components")
	}
	if err := checkFinite("mean", mean); err != nil {
		return nil, err
	}

	n := len(mean)
	k := len(components)
	data := make([]float64, 0, n*k)
	for i, row := range components {
		if len(row) != n {
			return nil, fmt.Errorf("component %d has %d entries, expected %d", i, len(row), n)
		}
		if err := checkFinite(fmt.Sprintf("components[%d]", i), row); err != nil {
			return nil, err
		}
		data = append(data, row...)
	}

	p := &PCA{
		mean:       append([]float64(nil), mean...),
		components: mat.NewDense(k, n, data),
		whiten:     whiten,
	}

	if whiten {
		if len(explainedVariance) != k {
			return nil, fmt.Errorf("whitened pca needs %d explained variances, got %d", k, len(explainedVariance))
		}
		p.stddev = make([]float64, k)
		for i, v := range explainedVariance {
			if !(v > 0) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("explained_variance[%d] must be positive", i)
			}
			p.stddev[i] = math.Sqrt(v)
		}
	}
	return p, nil
}

// InputDim returns the number of features the projection was fit on.
func (p *PCA) InputDim() int { return len(p.mean) }

// OutputDim returns the number of retained components.
func (p *PCA) OutputDim() int {
	k, _ := p.components.Dims()
	return k
}

// Transform projects every row of x onto the retained components.
func (p *PCA) Transform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if r == 0 {
		return nil, ErrEmptyInput
	}
	if c != len(p.mean) {
		return nil, fmt.Errorf("%w: pca expects %d columns, got %d", ErrDimension, len(p.mean), c)
	}

	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(_, j int, v float64) float64 {
		return v - p.mean[j]
	}, x)

	out := mat.NewDense(r, p.OutputDim(), nil)
	out.Mul(centered, p.components.T())

	if p.whiten {
		out.Apply(func(_, j int, v float64) float64 {
			return v / p.stddev[j]
		}, out)
	}
	return out, nil
}
