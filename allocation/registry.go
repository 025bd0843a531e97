package allocation

import (
	"sync/atomic"
	"time"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/pkg/log"
	"github.com/YuminosukeSato/allocgo/preprocessing"
)

// Registry publishes the model currently being served. Readers take one
// snapshot per request with Current, so a concurrent reload never changes
// the model under an in-flight prediction.
type Registry struct {
	current  atomic.Pointer[Model]
	loadOpts []LoadOption
	metrics  *Metrics
	logger   log.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics instruments the registry.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithRegistryLogger sets the registry's logger. It is also passed to every
// load performed through the registry.
func WithRegistryLogger(l log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithLoadOptions sets the options applied to every LoadFile call.
func WithLoadOptions(opts ...LoadOption) RegistryOption {
	return func(r *Registry) {
		r.loadOpts = append(r.loadOpts, opts...)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("registry")
	}
	return r
}

// Current returns the served model, or nil before the first load.
func (r *Registry) Current() *Model {
	return r.current.Load()
}

// Swap publishes m and returns the model it replaced.
func (r *Registry) Swap(m *Model) *Model {
	return r.current.Swap(m)
}

// LoadFile loads the artifact at path and publishes it. On failure the
// previously served model stays in place and the error is returned.
func (r *Registry) LoadFile(path string) (*Model, error) {
	opts := append([]LoadOption{WithLogger(r.logger)}, r.loadOpts...)
	m, err := LoadFile(path, opts...)
	r.metrics.observeReload(m, err)
	if err != nil {
		r.logger.Error("artifact load failed, keeping previous model",
			err,
			log.OperationKey, log.OperationReload,
			log.ArtifactPathKey, path,
		)
		return nil, err
	}

	prev := r.Swap(m)
	fields := []any{
		log.OperationKey, log.OperationReload,
		log.ArtifactPathKey, path,
		log.LoadIDKey, m.LoadID().String(),
		log.ArtifactDigestKey, m.Digest(),
	}
	if prev != nil {
		fields = append(fields, "artifact.previous_load_id", prev.LoadID().String())
	}
	r.logger.Info("artifact published", fields...)
	return m, nil
}

// Predict scores one record against the current snapshot.
func (r *Registry) Predict(record preprocessing.Record) (Result, error) {
	m := r.Current()
	if m == nil {
		err := errors.Wrap(errors.ErrNoModel, "Registry.Predict")
		r.metrics.observePrediction(log.OperationPredict, 0, 0, []error{err})
		return Result{}, err
	}

	start := time.Now()
	res, err := m.Predict(record)
	if err != nil {
		r.metrics.observePrediction(log.OperationPredict, time.Since(start).Seconds(), 0, []error{err})
		return Result{}, err
	}
	r.metrics.observePrediction(log.OperationPredict, time.Since(start).Seconds(), 1, nil)
	return res, nil
}

// PredictBatch scores records against a single snapshot.
func (r *Registry) PredictBatch(records []preprocessing.Record) ([]Result, []error) {
	m := r.Current()
	if m == nil {
		errs := make([]error, len(records))
		for i := range errs {
			errs[i] = errors.Wrap(errors.ErrNoModel, "Registry.PredictBatch")
		}
		r.metrics.observePrediction(log.OperationPredictBatch, 0, 0, errs)
		return make([]Result, len(records)), errs
	}

	start := time.Now()
	results, errs := m.PredictBatch(records)
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	r.metrics.observePrediction(log.OperationPredictBatch, time.Since(start).Seconds(), len(records)-failed, errs)
	if failed > 0 {
		r.logger.Warn("batch completed with failures",
			log.OperationKey, log.OperationPredictBatch,
			log.LoadIDKey, m.LoadID().String(),
			log.SamplesKey, len(records),
			log.FailuresKey, failed,
		)
	}
	return results, errs
}
