// Package log defines standard attribute keys for allocation serving.
//
// Keys follow a hierarchical naming convention ("artifact.trees",
// "preds.count") so logs from the loader, the registry and the CLI can be
// filtered consistently.

package log

// Operation context
const (
	// ComponentKey identifies which package is logging.
	// Examples: "allocation", "registry", "watcher", "cli"
	ComponentKey = "ml.component"

	// OperationKey specifies the operation being performed.
	// Standard values: "load", "predict", "predict_batch", "reload", "evaluate"
	OperationKey = "ml.operation"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"
)

// Artifact context
const (
	// ArtifactPathKey is the filesystem path an artifact was read from.
	ArtifactPathKey = "artifact.path"

	// ArtifactDigestKey is the hex SHA-256 of the artifact bytes.
	ArtifactDigestKey = "artifact.sha256"

	// LoadIDKey identifies one successful load of an artifact.
	LoadIDKey = "artifact.load_id"

	// ModelTypeKey records the artifact's model_type discriminator.
	ModelTypeKey = "model.type"

	// TreesKey records the number of trees in the ensemble.
	TreesKey = "artifact.trees"

	// NodesKey records the total number of nodes across all trees.
	NodesKey = "artifact.nodes"

	// BaseScoreKey records the ensemble's init score.
	BaseScoreKey = "hyperparams.base_score"

	// LearningRateKey records the shrinkage applied to every tree.
	LearningRateKey = "hyperparams.learning_rate"
)

// Data shape
const (
	// SamplesKey indicates the number of records processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the expanded input dimensionality.
	FeaturesKey = "data.features"

	// FeatureKey names a single offending feature.
	FeatureKey = "data.feature"

	// RandomSeedKey records the seed of a synthetic generator.
	RandomSeedKey = "config.random_seed"
)

// Performance and results
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// FailuresKey indicates the number of failed predictions in a batch.
	FailuresKey = "preds.failures"

	// MAEKey, MSEKey, RMSEKey and R2ScoreKey record regression metrics.
	MAEKey     = "metrics.mae"
	MSEKey     = "metrics.mse"
	RMSEKey    = "metrics.rmse"
	R2ScoreKey = "metrics.r2_score"
)

// Error context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	// Examples: "ArtifactError", "SchemaError", "TraversalError"
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationLoad         = "load"
	OperationReload       = "reload"
	OperationPredict      = "predict"
	OperationPredictBatch = "predict_batch"
	OperationEvaluate     = "evaluate"
	OperationGenerate     = "generate"

	PhaseInference = "inference"
	PhaseLoading   = "loading"
)
