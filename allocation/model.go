// Package allocation serves the savings allocation model: it loads and
// validates JSON artifacts, turns household records into fixed-deposit and
// savings shares, and swaps artifacts at runtime without interrupting
// in-flight requests.
//
// A typical server keeps a Registry, points a Watcher at the artifact and
// calls Registry.Predict per request:
//
//	reg := allocation.NewRegistry(allocation.WithMetrics(allocation.NewMetrics()))
//	if _, err := reg.LoadFile("model/savings_allocation_model.json"); err != nil {
//	    return err
//	}
//	res, err := reg.Predict(record)
package allocation

import (
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/allocgo/core/parallel"
	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/preprocessing"
	"github.com/YuminosukeSato/allocgo/sklearn/ensemble"
)

// Result is the allocation recommended for one record.
type Result = ensemble.Allocation

// Model is a loaded, validated artifact. It is immutable and safe for
// concurrent use.
type Model struct {
	pipeline       *preprocessing.Pipeline
	ensemble       *ensemble.GradientBoosting
	params         ResolvedParameters
	importance     map[string]float64
	recorded       *PerformanceMetrics
	batchThreshold int

	digest   string
	loadID   uuid.UUID
	source   string
	loadedAt time.Time
}

// Predict canonicalizes, preprocesses and scores one record. Any failure is
// returned as a PredictionError; no partial result is ever returned.
func (m *Model) Predict(record preprocessing.Record) (res Result, err error) {
	defer func() {
		var panicErr *errors.PanicError
		if errors.As(err, &panicErr) {
			res = Result{}
			err = errors.NewPredictionError("Model.Predict", -1, err)
		}
	}()
	defer errors.Recover(&err, "Model.Predict")

	x, err := m.pipeline.TransformRecord(record)
	if err != nil {
		return Result{}, errors.NewPredictionError("Model.Predict", -1, err)
	}
	return m.ensemble.Predict(x)
}

// PredictBatch scores records in parallel once the batch exceeds the
// model's batch threshold. Results and errors are index-aligned with
// records; a failed record has a zero Result and a non-nil error.
func (m *Model) PredictBatch(records []preprocessing.Record) ([]Result, []error) {
	results := make([]Result, len(records))
	errs := parallel.ForEach(len(records), m.batchThreshold, 0, func(i int) error {
		res, err := m.Predict(records[i])
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})
	return results, errs
}

// Summary describes a loaded model.
type Summary struct {
	LoadID             string              `json:"load_id"`
	Source             string              `json:"source,omitempty"`
	Digest             string              `json:"sha256"`
	LoadedAt           time.Time           `json:"loaded_at"`
	Parameters         ResolvedParameters  `json:"parameters"`
	BaseScore          float64             `json:"base_score"`
	Trees              int                 `json:"trees"`
	Nodes              int                 `json:"nodes"`
	Features           []string            `json:"features"`
	PerformanceMetrics *PerformanceMetrics `json:"performance_metrics,omitempty"`
}

// Summary returns the model's audit summary.
func (m *Model) Summary() Summary {
	return Summary{
		LoadID:             m.loadID.String(),
		Source:             m.source,
		Digest:             m.digest,
		LoadedAt:           m.loadedAt,
		Parameters:         m.params,
		BaseScore:          m.ensemble.BaseScore,
		Trees:              m.NumTrees(),
		Nodes:              m.ensemble.NumNodes(),
		Features:           m.pipeline.Schema().ExpandedNames(),
		PerformanceMetrics: m.recorded,
	}
}

// LoadID identifies this load of the artifact.
func (m *Model) LoadID() uuid.UUID { return m.loadID }

// Digest is the hex SHA-256 of the artifact bytes.
func (m *Model) Digest() string { return m.digest }

// Source is the path the artifact was read from, empty for Load.
func (m *Model) Source() string { return m.source }

// NumTrees returns the ensemble size.
func (m *Model) NumTrees() int { return len(m.ensemble.Trees) }

// Dim returns the preprocessed input dimensionality.
func (m *Model) Dim() int { return m.pipeline.Dim() }

// BaseScore returns the resolved init score.
func (m *Model) BaseScore() float64 { return m.ensemble.BaseScore }

// Schema returns the feature schema records are validated against.
func (m *Model) Schema() *preprocessing.FeatureSchema { return m.pipeline.Schema() }

// FeatureImportance returns a copy of the recorded importances.
func (m *Model) FeatureImportance() map[string]float64 {
	out := make(map[string]float64, len(m.importance))
	for k, v := range m.importance {
		out[k] = v
	}
	return out
}

// PerformanceMetrics returns the metrics recorded at training time, or nil.
func (m *Model) PerformanceMetrics() *PerformanceMetrics {
	if m.recorded == nil {
		return nil
	}
	pm := *m.recorded
	return &pm
}
