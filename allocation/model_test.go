package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/preprocessing"
)

func loadExample(t *testing.T, opts ...LoadOption) *Model {
	t.Helper()
	m, err := Load(encode(t, loadFixture(t)), append([]LoadOption{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return m
}

func TestModel_PredictRejectsRecords(t *testing.T) {
	m := loadExample(t)

	tests := []struct {
		name    string
		record  preprocessing.Record
		feature string
	}{
		{"unknown category", record(12, "Mining"), "job_industry"},
		{"missing numerical", preprocessing.Record{"job_industry": "Finance"}, "x"},
		{"numerical as string", preprocessing.Record{"x": "12", "job_industry": "Finance"}, "x"},
		{"missing categorical", preprocessing.Record{"x": 12.0}, "job_industry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Predict(tt.record)
			require.Error(t, err)
			assert.Equal(t, Result{}, res)

			var predErr *errors.PredictionError
			require.True(t, errors.As(err, &predErr))
			assert.Equal(t, -1, predErr.Tree)

			var schemaErr *errors.SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.feature, schemaErr.Feature)
		})
	}
}

func TestModel_SharesAlwaysSumTo100(t *testing.T) {
	m := loadExample(t)
	for x := -50.0; x <= 50; x += 0.25 {
		res, err := m.Predict(record(x, "Finance"))
		require.NoError(t, err)
		assert.Equal(t, 100, res.FixedDeposit+res.Savings)
		assert.GreaterOrEqual(t, res.FixedDeposit, 30)
		assert.LessOrEqual(t, res.FixedDeposit, 80)
	}
}

func TestModel_PredictBatch(t *testing.T) {
	for _, threshold := range []int{0, 1000} {
		m := loadExample(t, WithBatchThreshold(threshold))

		records := make([]preprocessing.Record, 200)
		for i := range records {
			switch {
			case i%10 == 3:
				records[i] = record(float64(i), "Mining")
			case i%2 == 0:
				records[i] = record(5, "Technology")
			default:
				records[i] = record(15, "Finance")
			}
		}

		results, errs := m.PredictBatch(records)
		require.Len(t, results, len(records))
		require.Len(t, errs, len(records))

		for i := range records {
			switch {
			case i%10 == 3:
				assert.True(t, errors.IsSchemaError(errs[i]), "threshold=%d index=%d", threshold, i)
				assert.Equal(t, Result{}, results[i])
			case i%2 == 0:
				require.NoError(t, errs[i])
				assert.Equal(t, 60, results[i].FixedDeposit)
			default:
				require.NoError(t, errs[i])
				assert.Equal(t, 70, results[i].FixedDeposit)
			}
		}
	}
}

func TestModel_PredictBatchEmpty(t *testing.T) {
	results, errs := loadExample(t).PredictBatch(nil)
	assert.Empty(t, results)
	assert.Empty(t, errs)
}

func TestModel_AccessorsReturnCopies(t *testing.T) {
	m := loadExample(t)

	fi := m.FeatureImportance()
	fi["x"] = 42
	assert.Equal(t, 1.0, m.FeatureImportance()["x"])

	pm := m.PerformanceMetrics()
	pm.MAE = 0
	assert.Equal(t, 2.5, m.PerformanceMetrics().MAE)

	assert.Equal(t, []string{"x"}, m.Schema().Numerical)
	assert.Equal(t, 1, m.NumTrees())
}

func TestModel_PredictRecoversPanic(t *testing.T) {
	broken := *loadExample(t)
	broken.ensemble = nil

	res, err := broken.Predict(record(12, "Finance"))
	require.Error(t, err)
	assert.Equal(t, Result{}, res)

	var predErr *errors.PredictionError
	require.True(t, errors.As(err, &predErr), "want PredictionError, got %T", err)
	var panicErr *errors.PanicError
	assert.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "Model.Predict", panicErr.Operation)
}
