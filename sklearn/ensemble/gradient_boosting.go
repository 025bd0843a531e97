// Package ensemble evaluates a fitted gradient-boosting regressor and maps
// its score to an allocation split.
package ensemble

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/sklearn/tree"
)

// Allocation bounds for the fixed-deposit share, in percent.
const (
	MinFixedDeposit = 30
	MaxFixedDeposit = 80
)

// GradientBoosting is an additive ensemble of regression trees:
// raw(x) = BaseScore + Σ LearningRate * tree_i(x).
type GradientBoosting struct {
	Trees        []*tree.Tree
	LearningRate float64
	BaseScore    float64
}

// NewGradientBoosting checks the scalar parameters and returns the ensemble.
// Trees are expected to have been validated already.
func NewGradientBoosting(trees []*tree.Tree, learningRate, baseScore float64) (*GradientBoosting, error) {
	if len(trees) == 0 {
		return nil, errors.NewArtifactError("trees", "ensemble has no trees")
	}
	if !errors.IsFinite(learningRate) || learningRate <= 0 {
		return nil, errors.NewArtifactErrorf("parameters.learning_rate", "must be finite and > 0, got %v", learningRate)
	}
	if err := errors.CheckFinite("base_score", baseScore); err != nil {
		return nil, err
	}
	return &GradientBoosting{Trees: trees, LearningRate: learningRate, BaseScore: baseScore}, nil
}

// Raw returns the unclipped ensemble score for a preprocessed vector. Trees
// are summed in declared order. A failing tree aborts the evaluation with a
// PredictionError carrying its index. Leaf values are finite individually,
// but their shrunk sum can still overflow; a NaN or infinite score is a
// PredictionError as well.
func (g *GradientBoosting) Raw(x []float64) (float64, error) {
	sum := g.BaseScore
	for i, t := range g.Trees {
		v, err := t.Evaluate(x)
		if err != nil {
			return 0, errors.NewPredictionError("GradientBoosting.Raw", i, err)
		}
		sum += g.LearningRate * v
	}
	if !errors.IsFinite(sum) {
		return 0, errors.NewPredictionError("GradientBoosting.Raw", -1,
			errors.NewValueError("GradientBoosting.Raw", fmt.Sprintf("non-finite raw score %v", sum)))
	}
	return sum, nil
}

// Allocation is the recommended split. The two shares are integers summing
// to 100; Raw keeps the unrounded score for audit.
type Allocation struct {
	FixedDeposit int     `json:"fixed_deposit_allocation_percentage"`
	Savings      int     `json:"savings_account_allocation_percentage"`
	Raw          float64 `json:"raw_prediction"`
}

// Allocate clips raw to [MinFixedDeposit, MaxFixedDeposit] and rounds half
// to even, the convention the training labels were produced with
// (52.5 → 52, 53.5 → 54). The savings share is the remainder.
// raw must be finite, as returned by Raw.
func Allocate(raw float64) Allocation {
	fixed := int(math.RoundToEven(errors.ClipValue(raw, MinFixedDeposit, MaxFixedDeposit)))
	return Allocation{
		FixedDeposit: fixed,
		Savings:      100 - fixed,
		Raw:          raw,
	}
}

// Predict is Allocate(Raw(x)).
func (g *GradientBoosting) Predict(x []float64) (Allocation, error) {
	raw, err := g.Raw(x)
	if err != nil {
		return Allocation{}, err
	}
	return Allocate(raw), nil
}

// NumNodes returns the total node count across all trees.
func (g *GradientBoosting) NumNodes() int {
	n := 0
	for _, t := range g.Trees {
		n += t.NumNodes()
	}
	return n
}
