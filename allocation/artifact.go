package allocation

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/preprocessing"
)

// ModelTypeGradientBoosting is the only model_type the loader accepts.
const ModelTypeGradientBoosting = "gradient_boosting"

// Artifact is the on-disk JSON document. Pointer fields distinguish an
// absent key from a zero value.
type Artifact struct {
	ModelType          string                      `json:"model_type"`
	Parameters         Parameters                  `json:"parameters"`
	FeatureImportance  map[string]float64          `json:"feature_importance,omitempty"`
	Features           preprocessing.FeatureSchema `json:"features"`
	Preprocessing      PreprocessingSpec           `json:"preprocessing"`
	BaseScore          *float64                    `json:"base_score,omitempty"`
	PerformanceMetrics *PerformanceMetrics         `json:"performance_metrics,omitempty"`
	Trees              []TreeSpec                  `json:"trees"`
}

// Parameters holds the hyperparameters of the fitted regressor. The training
// export writes integers as either 3 or 3.0, so they are kept as numbers.
type Parameters struct {
	NEstimators  *json.Number `json:"n_estimators"`
	LearningRate *float64     `json:"learning_rate"`
	MaxDepth     *json.Number `json:"max_depth,omitempty"`
}

// PreprocessingSpec names the transforms and carries the scaler statistics.
type PreprocessingSpec struct {
	Numerical   string                        `json:"numerical"`
	Categorical string                        `json:"categorical"`
	Scaler      *preprocessing.StandardScaler `json:"scaler"`
}

// PerformanceMetrics are the held-out scores recorded at training time.
type PerformanceMetrics struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// TreeSpec is one serialized tree.
type TreeSpec struct {
	TreeIndex *int       `json:"tree_index"`
	NNodes    *int       `json:"n_nodes"`
	Nodes     []NodeSpec `json:"nodes"`
}

// NodeSpec is one serialized node. Threshold and children are null at leaves.
type NodeSpec struct {
	NodeID     *int       `json:"node_id"`
	Feature    FeatureRef `json:"feature"`
	Threshold  *float64   `json:"threshold"`
	Value      *float64   `json:"value"`
	LeftChild  *int       `json:"left_child"`
	RightChild *int       `json:"right_child"`
}

// FeatureRef is the node's "feature" field: an integer index for a split,
// the string "leaf", null, or absent for a leaf.
type FeatureRef struct {
	Index int
	Split bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FeatureRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FeatureRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != "leaf" {
			return errors.Newf("feature must be an integer index or \"leaf\", got %q", s)
		}
		*f = FeatureRef{}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "feature must be an integer index or \"leaf\"")
	}
	idx, err := integral(n)
	if err != nil {
		return errors.Wrap(err, "feature index")
	}
	*f = FeatureRef{Index: idx, Split: true}
	return nil
}

// MarshalJSON writes "leaf" for leaves and the index otherwise.
func (f FeatureRef) MarshalJSON() ([]byte, error) {
	if !f.Split {
		return []byte(`"leaf"`), nil
	}
	return json.Marshal(f.Index)
}

// integral parses a JSON number that must hold a whole value, such as 3 or 3.0.
func integral(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.Newf("%s is not an integer", n.String())
	}
	return int(f), nil
}
