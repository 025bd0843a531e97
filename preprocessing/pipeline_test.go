package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	scaler, err := NewStandardScaler([]float64{5000, 35}, []float64{1500, 8})
	require.NoError(t, err)

	dst := make([]float64, 2)
	require.NoError(t, scaler.Transform(dst, []float64{6500, 31}))
	assert.InDelta(t, 1.0, dst[0], 1e-12)
	assert.InDelta(t, -0.5, dst[1], 1e-12)

	require.NoError(t, scaler.Transform(dst, []float64{5000, 35}))
	assert.Equal(t, []float64{0, 0}, dst)

	err = scaler.Transform(dst, []float64{1})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = scaler.Transform(make([]float64, 1), []float64{1, 2})
	assert.True(t, errors.As(err, &dimErr))
}

func TestStandardScaler_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mean      []float64
		scale     []float64
		wantField string
	}{
		{"zero scale", []float64{0, 0}, []float64{1, 0}, "preprocessing.scaler.scale[1]"},
		{"NaN mean", []float64{math.NaN(), 0}, []float64{1, 1}, "preprocessing.scaler.mean[0]"},
		{"Inf scale", []float64{0, 0}, []float64{math.Inf(1), 1}, "preprocessing.scaler.scale[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStandardScaler(tt.mean, tt.scale)
			var artifactErr *errors.ArtifactError
			require.True(t, errors.As(err, &artifactErr), "want ArtifactError, got %v", err)
			assert.Equal(t, tt.wantField, artifactErr.Field)
		})
	}

	s := &StandardScaler{Mean: []float64{0}, Scale: []float64{1}}
	err := s.Validate(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 values")
}

func TestOneHotEncoder_DropFirst(t *testing.T) {
	enc, err := NewOneHotEncoder([]CategoricalFeature{
		{Name: "job_industry", Categories: []string{"Construction", "Education", "Finance"}},
		{Name: "region", Categories: []string{"N", "S"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, enc.Width())

	dst := []float64{9, 9, 9}
	require.NoError(t, enc.Transform(dst, []int{0, 0}))
	assert.Equal(t, []float64{0, 0, 0}, dst, "reference categories encode as all zero")

	require.NoError(t, enc.Transform(dst, []int{2, 1}))
	assert.Equal(t, []float64{0, 1, 1}, dst)

	assert.Error(t, enc.Transform(dst, []int{3, 0}))
	assert.Error(t, enc.Transform(dst, []int{1}))
}

func TestPipeline_TransformRecord(t *testing.T) {
	schema := householdSchema(t)
	scaler, err := NewStandardScaler([]float64{5000, 35}, []float64{1000, 5})
	require.NoError(t, err)

	p, err := NewPipeline(schema, scaler)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Dim())

	vec, err := p.TransformRecord(Record{"monthly_income": 6000.0, "age": 30, "job_industry": "Education"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 1, 0}, vec)

	vec, err = p.TransformRecord(Record{"monthly_income": 5000.0, "age": 35, "job_industry": "Construction"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, vec)

	_, err = p.TransformRecord(Record{"monthly_income": 5000.0, "age": 35, "job_industry": "Other"})
	assert.True(t, errors.IsSchemaError(err))
}

func TestPipeline_RejectsMismatchedScaler(t *testing.T) {
	schema := householdSchema(t)
	_, err := NewPipeline(schema, &StandardScaler{Mean: []float64{0}, Scale: []float64{1}})
	assert.True(t, errors.IsArtifactError(err))
}

func TestPipeline_NonFiniteStandardizedValue(t *testing.T) {
	schema, err := NewFeatureSchema([]string{"x"}, nil)
	require.NoError(t, err)
	scaler, err := NewStandardScaler([]float64{0}, []float64{1e-300})
	require.NoError(t, err)
	p, err := NewPipeline(schema, scaler)
	require.NoError(t, err)

	_, err = p.TransformRecord(Record{"x": 1e300})
	assert.True(t, errors.IsSchemaError(err))
}
