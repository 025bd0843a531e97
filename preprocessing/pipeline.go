package preprocessing

import (
	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// Transform kinds recognised in the artifact's preprocessing block.
const (
	KindStandardScaler = "standard_scaler"
	KindOneHotEncoder  = "onehot_encoder"
)

// Pipeline turns a raw record into the model input vector: standardized
// numerical features followed by the one-hot blocks, in schema order.
// A Pipeline is immutable and safe for concurrent use.
type Pipeline struct {
	schema  *FeatureSchema
	scaler  *StandardScaler
	encoder *OneHotEncoder
}

// NewPipeline wires a validated schema to its scaler statistics.
func NewPipeline(schema *FeatureSchema, scaler *StandardScaler) (*Pipeline, error) {
	if schema == nil || scaler == nil {
		return nil, errors.NewArtifactError("preprocessing", "schema and scaler are required")
	}
	if err := scaler.Validate(len(schema.Numerical)); err != nil {
		return nil, err
	}
	encoder, err := NewOneHotEncoder(schema.Categorical)
	if err != nil {
		return nil, err
	}
	if len(schema.Numerical)+encoder.Width() != schema.Dim() {
		return nil, errors.NewArtifactErrorf("features", "schema dimensionality %d does not match %d numerical + %d indicator columns",
			schema.Dim(), len(schema.Numerical), encoder.Width())
	}
	return &Pipeline{schema: schema, scaler: scaler, encoder: encoder}, nil
}

// Schema returns the feature schema.
func (p *Pipeline) Schema() *FeatureSchema {
	return p.schema
}

// Dim is the length of the vectors produced by Transform.
func (p *Pipeline) Dim() int {
	return p.schema.Dim()
}

// Transform maps a canonical record to the model input vector.
func (p *Pipeline) Transform(c Canonical) ([]float64, error) {
	out := make([]float64, p.schema.Dim())
	nNum := len(p.schema.Numerical)

	if err := p.scaler.Transform(out[:nNum], c.Numerical); err != nil {
		return nil, err
	}
	for j, v := range out[:nNum] {
		if !errors.IsFinite(v) {
			return nil, errors.NewSchemaError(p.schema.Numerical[j], "standardized value is not finite", c.Numerical[j])
		}
	}
	if err := p.encoder.Transform(out[nNum:], c.Categories); err != nil {
		return nil, err
	}
	return out, nil
}

// TransformRecord canonicalizes and transforms a raw record.
func (p *Pipeline) TransformRecord(r Record) ([]float64, error) {
	c, err := p.schema.Canonicalize(r)
	if err != nil {
		return nil, err
	}
	return p.Transform(c)
}
