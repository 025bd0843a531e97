package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/sklearn/tree"
)

func stump(index int, threshold, left, right float64) *tree.Tree {
	return tree.New(index, []tree.Node{
		{Feature: 0, Threshold: threshold, Left: 1, Right: 2},
		{Feature: tree.LeafFeature, Threshold: math.NaN(), Value: left, Left: tree.NoChild, Right: tree.NoChild},
		{Feature: tree.LeafFeature, Threshold: math.NaN(), Value: right, Left: tree.NoChild, Right: tree.NoChild},
	})
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		raw       float64
		wantFixed int
	}{
		{70.0, 70},
		{52.5, 52},
		{53.5, 54},
		{52.4999, 52},
		{61.7, 62},
		{29.2, 30},
		{-1000, 30},
		{80.4, 80},
		{95.0, 80},
		{30.5, 30},
		{79.5, 80},
	}
	for _, tt := range tests {
		got := Allocate(tt.raw)
		assert.Equal(t, tt.wantFixed, got.FixedDeposit, "raw=%v", tt.raw)
		assert.Equal(t, 100, got.FixedDeposit+got.Savings, "raw=%v", tt.raw)
		assert.Equal(t, tt.raw, got.Raw)
	}
}

func TestGradientBoosting_SingleTreeExample(t *testing.T) {
	// base 50 + 0.1 * (x <= 10 ? 100 : 200)
	g, err := NewGradientBoosting([]*tree.Tree{stump(0, 10, 100, 200)}, 0.1, 50)
	require.NoError(t, err)

	raw, err := g.Raw([]float64{12})
	require.NoError(t, err)
	assert.InDelta(t, 70.0, raw, 1e-12)

	alloc, err := g.Predict([]float64{12})
	require.NoError(t, err)
	assert.Equal(t, Allocation{FixedDeposit: 70, Savings: 30, Raw: raw}, alloc)

	alloc, err = g.Predict([]float64{10})
	require.NoError(t, err)
	assert.Equal(t, 60, alloc.FixedDeposit)
	assert.Equal(t, 3, g.NumNodes())
}

func TestGradientBoosting_SumsInOrder(t *testing.T) {
	trees := []*tree.Tree{
		stump(0, 0, 1, -1),
		stump(1, 1, 2, -2),
		stump(2, 2, 4, -4),
	}
	g, err := NewGradientBoosting(trees, 0.5, 40)
	require.NoError(t, err)

	raw, err := g.Raw([]float64{1.5})
	require.NoError(t, err)
	// right, right, left
	assert.InDelta(t, 40+0.5*(-1-2+4), raw, 1e-12)
}

func TestGradientBoosting_TraversalFailure(t *testing.T) {
	broken := tree.New(1, []tree.Node{{Feature: 5, Threshold: 0, Left: 0, Right: 0}})
	g, err := NewGradientBoosting([]*tree.Tree{stump(0, 0, 1, 2), broken}, 0.1, 0)
	require.NoError(t, err)

	_, err = g.Predict([]float64{1})
	require.Error(t, err)

	var predErr *errors.PredictionError
	require.True(t, errors.As(err, &predErr))
	assert.Equal(t, 1, predErr.Tree)
	assert.True(t, errors.IsTraversalError(err))
}

func TestNewGradientBoosting_InvalidParameters(t *testing.T) {
	trees := []*tree.Tree{stump(0, 0, 1, 2)}

	for _, lr := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, err := NewGradientBoosting(trees, lr, 0)
		assert.True(t, errors.IsArtifactError(err), "learning_rate=%v", lr)
	}

	_, err := NewGradientBoosting(trees, 0.1, math.NaN())
	assert.True(t, errors.IsArtifactError(err))

	_, err = NewGradientBoosting(nil, 0.1, 0)
	assert.True(t, errors.IsArtifactError(err))
}

func TestGradientBoosting_NonFiniteScore(t *testing.T) {
	tests := []struct {
		name  string
		trees []*tree.Tree
	}{
		{
			name:  "overflow to infinity",
			trees: []*tree.Tree{stump(0, 10, 1e308, 0)},
		},
		{
			name:  "opposite infinities sum to NaN",
			trees: []*tree.Tree{stump(0, 10, 1e308, 0), stump(1, 10, -1e308, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGradientBoosting(tt.trees, 10, 50)
			require.NoError(t, err)

			_, err = g.Raw([]float64{1})
			require.Error(t, err)
			var predErr *errors.PredictionError
			require.True(t, errors.As(err, &predErr))
			assert.Contains(t, err.Error(), "non-finite raw score")

			alloc, err := g.Predict([]float64{1})
			require.Error(t, err)
			assert.Equal(t, Allocation{}, alloc)

			// the right branch stays finite
			alloc, err = g.Predict([]float64{11})
			require.NoError(t, err)
			assert.Equal(t, 50, alloc.FixedDeposit)
		})
	}
}
