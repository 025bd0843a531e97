package allocation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/pkg/log"
	"github.com/YuminosukeSato/allocgo/preprocessing"
	"github.com/YuminosukeSato/allocgo/sklearn/ensemble"
	"github.com/YuminosukeSato/allocgo/sklearn/tree"
)

// DefaultBatchThreshold is the batch size at or below which PredictBatch
// stays on the calling goroutine.
const DefaultBatchThreshold = 64

// LoadOption configures Load and LoadFile.
type LoadOption func(*loadConfig)

type loadConfig struct {
	baseScore      *float64
	logger         log.Logger
	batchThreshold int
	source         string
}

// WithBaseScore supplies the ensemble's init score for artifacts that do not
// carry one. When the artifact does carry one, this value wins and a
// BaseScoreOverrideWarning is raised if the two differ.
func WithBaseScore(v float64) LoadOption {
	return func(c *loadConfig) {
		c.baseScore = &v
	}
}

// WithLogger sets the logger used for the load summary.
func WithLogger(l log.Logger) LoadOption {
	return func(c *loadConfig) {
		c.logger = l
	}
}

// WithBatchThreshold sets the PredictBatch sequential threshold of the
// loaded model.
func WithBatchThreshold(n int) LoadOption {
	return func(c *loadConfig) {
		c.batchThreshold = n
	}
}

// LoadFile reads and loads the artifact at path.
func LoadFile(path string, opts ...LoadOption) (*Model, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "read artifact %s", path)
	}
	return Load(data, append(opts, func(c *loadConfig) { c.source = path })...)
}

// Load decodes and validates an artifact. Every structural invariant is
// checked here, once; the returned Model is immutable and never re-checks.
// The first violation is returned as an ArtifactError naming the field.
func Load(data []byte, opts ...LoadOption) (*Model, error) {
	cfg := loadConfig{batchThreshold: DefaultBatchThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("allocation")
	}

	start := time.Now()

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, errors.NewArtifactErrorf("", "malformed JSON: %v", err)
	}

	m, err := build(&art, &cfg)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	m.digest = hex.EncodeToString(sum[:])
	m.loadID = uuid.New()
	m.source = cfg.source
	m.loadedAt = time.Now()

	cfg.logger.Info("artifact loaded",
		log.OperationKey, log.OperationLoad,
		log.PhaseKey, log.PhaseLoading,
		log.ArtifactPathKey, m.source,
		log.ArtifactDigestKey, m.digest,
		log.LoadIDKey, m.loadID.String(),
		log.ModelTypeKey, art.ModelType,
		log.TreesKey, m.NumTrees(),
		log.NodesKey, m.ensemble.NumNodes(),
		log.FeaturesKey, m.Dim(),
		log.BaseScoreKey, m.ensemble.BaseScore,
		log.LearningRateKey, m.ensemble.LearningRate,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

func build(art *Artifact, cfg *loadConfig) (*Model, error) {
	if art.ModelType != ModelTypeGradientBoosting {
		return nil, errors.NewArtifactErrorf("model_type", "unsupported model type %q (want %q)",
			art.ModelType, ModelTypeGradientBoosting)
	}
	if art.Preprocessing.Numerical != preprocessing.KindStandardScaler {
		return nil, errors.NewArtifactErrorf("preprocessing.numerical", "unknown preprocessing kind %q", art.Preprocessing.Numerical)
	}
	if art.Preprocessing.Categorical != preprocessing.KindOneHotEncoder {
		return nil, errors.NewArtifactErrorf("preprocessing.categorical", "unknown preprocessing kind %q", art.Preprocessing.Categorical)
	}

	params, err := resolveParameters(&art.Parameters)
	if err != nil {
		return nil, err
	}
	if len(art.Trees) != params.NEstimators {
		return nil, errors.NewArtifactErrorf("parameters.n_estimators",
			"expected %d trees, got %d", params.NEstimators, len(art.Trees))
	}

	schema := &art.Features
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if art.Preprocessing.Scaler == nil {
		return nil, errors.NewArtifactError("preprocessing.scaler", "missing scaler statistics")
	}
	pipeline, err := preprocessing.NewPipeline(schema, art.Preprocessing.Scaler)
	if err != nil {
		return nil, err
	}

	baseScore, err := resolveBaseScore(art.BaseScore, cfg.baseScore)
	if err != nil {
		return nil, err
	}

	if err := checkImportance(art.FeatureImportance, schema.ExpandedNames()); err != nil {
		return nil, err
	}

	dim := pipeline.Dim()
	trees := make([]*tree.Tree, len(art.Trees))
	for i := range art.Trees {
		t, err := buildTree(i, &art.Trees[i])
		if err != nil {
			return nil, err
		}
		if err := t.Validate(dim); err != nil {
			return nil, err
		}
		trees[i] = t
	}

	gb, err := ensemble.NewGradientBoosting(trees, params.LearningRate, baseScore)
	if err != nil {
		return nil, err
	}

	return &Model{
		pipeline:       pipeline,
		ensemble:       gb,
		params:         params,
		importance:     art.FeatureImportance,
		recorded:       art.PerformanceMetrics,
		batchThreshold: cfg.batchThreshold,
	}, nil
}

// ResolvedParameters are the validated hyperparameters of a loaded model.
// MaxDepth is 0 when the artifact does not record one.
type ResolvedParameters struct {
	NEstimators  int     `json:"n_estimators"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth,omitempty"`
}

func resolveParameters(p *Parameters) (ResolvedParameters, error) {
	var out ResolvedParameters

	if p.NEstimators == nil {
		return out, errors.NewArtifactError("parameters.n_estimators", "missing")
	}
	n, err := integral(*p.NEstimators)
	if err != nil || n < 1 {
		return out, errors.NewArtifactErrorf("parameters.n_estimators", "must be a positive integer, got %s", p.NEstimators.String())
	}
	out.NEstimators = n

	if p.LearningRate == nil {
		return out, errors.NewArtifactError("parameters.learning_rate", "missing")
	}
	if lr := *p.LearningRate; !errors.IsFinite(lr) || lr <= 0 {
		return out, errors.NewArtifactErrorf("parameters.learning_rate", "must be finite and > 0, got %v", lr)
	}
	out.LearningRate = *p.LearningRate

	if p.MaxDepth != nil {
		d, err := integral(*p.MaxDepth)
		if err != nil || d < 0 {
			return out, errors.NewArtifactErrorf("parameters.max_depth", "must be a non-negative integer, got %s", p.MaxDepth.String())
		}
		out.MaxDepth = d
	}
	return out, nil
}

func resolveBaseScore(fromArtifact, supplied *float64) (float64, error) {
	switch {
	case supplied != nil:
		if err := errors.CheckFinite("base_score", *supplied); err != nil {
			return 0, err
		}
		if fromArtifact != nil && *fromArtifact != *supplied {
			errors.Warn(errors.NewBaseScoreOverrideWarning(*fromArtifact, *supplied))
		}
		return *supplied, nil
	case fromArtifact != nil:
		if err := errors.CheckFinite("base_score", *fromArtifact); err != nil {
			return 0, err
		}
		return *fromArtifact, nil
	default:
		return 0, errors.NewArtifactError("base_score",
			"missing: the artifact does not record the ensemble's init score and none was supplied")
	}
}

func checkImportance(importance map[string]float64, expanded []string) error {
	known := make(map[string]struct{}, len(expanded))
	for _, name := range expanded {
		known[name] = struct{}{}
	}
	for name, w := range importance {
		if !errors.IsFinite(w) || w < 0 {
			return errors.NewArtifactErrorf("feature_importance."+name, "must be a non-negative finite weight, got %v", w)
		}
		if _, ok := known[name]; !ok {
			errors.Warn(errors.NewUnknownImportanceFeatureWarning(name))
		}
	}
	return nil
}

// buildTree converts a serialized tree into its arena. Node ids must cover
// 0..n_nodes-1 exactly once; the JSON order of nodes does not matter.
func buildTree(i int, spec *TreeSpec) (*tree.Tree, error) {
	field := "trees[" + strconv.Itoa(i) + "]"

	if spec.TreeIndex == nil {
		return nil, errors.NewArtifactError(field+".tree_index", "missing")
	}
	if *spec.TreeIndex != i {
		return nil, errors.NewArtifactErrorf(field+".tree_index", "expected %d, got %d", i, *spec.TreeIndex)
	}
	if spec.NNodes == nil {
		return nil, errors.NewArtifactError(field+".n_nodes", "missing")
	}
	n := *spec.NNodes
	if n != len(spec.Nodes) {
		return nil, errors.NewArtifactErrorf(field+".n_nodes", "declares %d nodes, found %d", n, len(spec.Nodes))
	}

	nodes := make([]tree.Node, n)
	seen := make([]bool, n)
	for j := range spec.Nodes {
		ns := &spec.Nodes[j]
		nodeField := field + ".nodes[" + strconv.Itoa(j) + "]"

		if ns.NodeID == nil {
			return nil, errors.NewArtifactError(nodeField+".node_id", "missing")
		}
		id := *ns.NodeID
		if id < 0 || id >= n {
			return nil, errors.NewArtifactErrorf(nodeField+".node_id",
				"node id %d out of range: ids must be contiguous from 0 to %d", id, n-1)
		}
		if seen[id] {
			return nil, errors.NewArtifactErrorf(nodeField+".node_id", "duplicate node id %d", id)
		}
		seen[id] = true

		if ns.Value == nil {
			return nil, errors.NewArtifactError(nodeField+".value", "missing")
		}

		node := tree.Node{
			Feature:   tree.LeafFeature,
			Threshold: math.NaN(),
			Value:     *ns.Value,
			Left:      tree.NoChild,
			Right:     tree.NoChild,
		}
		if ns.Feature.Split {
			if ns.Feature.Index < 0 {
				return nil, errors.NewArtifactErrorf(nodeField+".feature", "negative feature index %d", ns.Feature.Index)
			}
			node.Feature = ns.Feature.Index
			if ns.Threshold != nil {
				node.Threshold = *ns.Threshold
			}
		} else if ns.Threshold != nil {
			return nil, errors.NewArtifactError(nodeField+".threshold", "leaf node must not have a threshold")
		}
		if ns.LeftChild != nil {
			node.Left = *ns.LeftChild
		}
		if ns.RightChild != nil {
			node.Right = *ns.RightChild
		}
		nodes[id] = node
	}

	return tree.New(i, nodes), nil
}
