package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// Reload outcomes recorded in artifact_reloads_total.
const (
	ReloadSuccess = "success"
	ReloadFailure = "failure"
)

// Metrics is the Prometheus instrumentation of a Registry.
type Metrics struct {
	// Predictions counts successfully scored records, from single and batch
	// predictions alike.
	Predictions prometheus.Counter

	// Failures counts rejected predictions.
	// Labels: reason (schema, traversal, no_model, internal)
	Failures *prometheus.CounterVec

	// Latency measures end-to-end prediction time, batch or single.
	// Labels: op (predict, predict_batch)
	Latency *prometheus.HistogramVec

	// Reloads counts artifact loads performed through the registry.
	// Labels: result (success, failure)
	Reloads *prometheus.CounterVec

	// Trees reports the size of the currently served ensemble.
	Trees prometheus.Gauge
}

// NewMetrics registers the collectors with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of each other.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "allocgo",
			Name:      "predictions_total",
			Help:      "Total allocation predictions served",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "allocgo",
			Name:      "prediction_failures_total",
			Help:      "Total predictions rejected, by reason",
		}, []string{"reason"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "allocgo",
			Name:      "prediction_latency_seconds",
			Help:      "Prediction latency in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
		Reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "allocgo",
			Name:      "artifact_reloads_total",
			Help:      "Total artifact loads through the registry, by result",
		}, []string{"result"}),
		Trees: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "allocgo",
			Name:      "artifact_trees",
			Help:      "Number of trees in the served artifact",
		}),
	}
}

// failureReason maps an error to the reason label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrNoModel):
		return "no_model"
	case errors.IsSchemaError(err):
		return "schema"
	case errors.IsTraversalError(err):
		return "traversal"
	default:
		return "internal"
	}
}

func (m *Metrics) observePrediction(op string, seconds float64, succeeded int, failures []error) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(op).Observe(seconds)
	m.Predictions.Add(float64(succeeded))
	for _, err := range failures {
		if err != nil {
			m.Failures.WithLabelValues(failureReason(err)).Inc()
		}
	}
}

func (m *Metrics) observeReload(model *Model, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Reloads.WithLabelValues(ReloadFailure).Inc()
		return
	}
	m.Reloads.WithLabelValues(ReloadSuccess).Inc()
	m.Trees.Set(float64(model.NumTrees()))
}
