package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/chronic-risk-monitor/internal/domain"
)

func TestStandardScaler_Transform(t *testing.T) {
	scaler, err := NewStandardScaler([]float64{1, 10}, []float64{2, 0})
	require.NoError(t, err)

	x := mat.NewDense(2, 2, []float64{
		3, 10,
		1, 14,
	})
	out, err := scaler.Transform(x)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, out.RawRowView(0))
	assert.Equal(t, []float64{0, 4}, out.RawRowView(1), "zero scale is treated as 1")
	assert.Equal(t, 3.0, x.At(0, 0), "input must not be modified")
}

func TestStandardScaler_Errors(t *testing.T) {
	_, err := NewStandardScaler([]float64{1, 2}, []float64{1})
	assert.Error(t, err)

	_, err = NewStandardScaler([]float64{math.NaN()}, []float64{1})
	assert.Error(t, err)

	scaler, err := NewStandardScaler([]float64{0, 0, 0}, []float64{1, 1, 1})
	require.NoError(t, err)
	_, err = scaler.Transform(mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, ErrDimension)
	_, err = scaler.Transform(&mat.Dense{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestPCA_Transform(t *testing.T) {
	pca, err := NewPCA([]float64{1, 1, 1}, [][]float64{
		{1, 0, 0},
		{0, 1, 1},
	}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, pca.InputDim())
	assert.Equal(t, 2, pca.OutputDim())

	out, err := pca.Transform(mat.NewDense(2, 3, []float64{
		2, 3, 4,
		1, 1, 1,
	}))
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 5}, out.RawRowView(0))
	assert.Equal(t, []float64{0, 0}, out.RawRowView(1))
}

func TestPCA_Whiten(t *testing.T) {
	pca, err := NewPCA([]float64{0, 0}, [][]float64{{1, 0}, {0, 1}}, true, []float64{4, 9})
	require.NoError(t, err)

	out, err := pca.Transform(mat.NewDense(1, 2, []float64{2, 3}))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, out.RawRowView(0), 1e-12)

	_, err = NewPCA([]float64{0, 0}, [][]float64{{1, 0}}, true, []float64{0})
	assert.Error(t, err)
}

func TestLinearClassifier(t *testing.T) {
	clf, err := NewLinearClassifier(KindLogisticRegression, []float64{1, -1}, 0.5)
	require.NoError(t, err)

	x := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		0, 0.5,
	})
	labels, err := clf.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, labels, "a zero decision value is negative")

	probs, err := clf.Probability(x)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-1.5)), probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[2], 1e-12)
	assert.True(t, clf.Calibrated())

	svm, err := NewLinearClassifier(KindLinearSVM, []float64{1, -1}, 0.5)
	require.NoError(t, err)
	assert.False(t, svm.Calibrated())
	_, err = svm.Probability(x)
	assert.Error(t, err)

	_, err = NewLinearClassifier("random_forest", []float64{1}, 0)
	assert.Error(t, err)
}

func TestLoadStage_ShippedArtifacts(t *testing.T) {
	for _, stage := range []string{"diabetes", "hypertension"} {
		t.Run(stage, func(t *testing.T) {
			artifacts, err := LoadStage(filepath.Join("..", "..", "models"), stage)
			require.NoError(t, err)

			assert.Equal(t, artifacts.Scaler.OutputDim(), artifacts.Reducer.InputDim())
			assert.Equal(t, artifacts.Reducer.OutputDim(), artifacts.Classifier.InputDim())
		})
	}
}

func TestLoadArtifacts_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	tests := []struct {
		name string
		load func() error
	}{
		{
			name: "missing file",
			load: func() error { _, err := LoadScaler(filepath.Join(dir, "absent.json")); return err },
		},
		{
			name: "malformed json",
			load: func() error { _, err := LoadScaler(write("bad.json", "{")); return err },
		},
		{
			name: "wrong kind",
			load: func() error {
				_, err := LoadScaler(write("kind.json", `{"kind":"pca","n_features":1,"mean":[0],"scale":[1]}`))
				return err
			},
		},
		{
			name: "n_features mismatch",
			load: func() error {
				_, err := LoadScaler(write("nf.json", `{"kind":"standard_scaler","n_features":2,"mean":[0],"scale":[1]}`))
				return err
			},
		},
		{
			name: "n_components mismatch",
			load: func() error {
				_, err := LoadPCA(write("nc.json", `{"kind":"pca","n_features":2,"n_components":2,"mean":[0,0],"components":[[1,0]]}`))
				return err
			},
		},
		{
			name: "unsupported classifier",
			load: func() error {
				_, err := LoadClassifier(write("clf.json", `{"kind":"gradient_boosting","n_features":1,"coef":[1],"intercept":0}`))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.load()
			require.Error(t, err)

			var artifactErr *domain.ArtifactError
			assert.True(t, errors.As(err, &artifactErr))
		})
	}
}
