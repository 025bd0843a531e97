package preprocessing

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// Record is one raw input as decoded from JSON: feature name to value.
// Numerical features hold numbers, categorical features hold strings.
type Record map[string]any

// CategoricalFeature declares a categorical input and its vocabulary.
// Categories[0] is the reference level dropped by one-hot encoding.
type CategoricalFeature struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// UnmarshalJSON accepts both {"name":..., "categories":[...]} and the bare
// string form written by older exports. The bare form has no vocabulary and
// is rejected by FeatureSchema.Validate.
func (c *CategoricalFeature) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = CategoricalFeature{Name: name}
		return nil
	}
	type plain CategoricalFeature
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CategoricalFeature(p)
	return nil
}

// FeatureSchema fixes the position of every feature in the model input.
//
// The expanded vector holds the numerical features in declared order,
// followed by one block per categorical feature containing an indicator for
// every category except the first. Trees index into this vector, so the
// schema is the single source of truth for index assignment.
type FeatureSchema struct {
	Numerical   []string             `json:"numerical"`
	Categorical []CategoricalFeature `json:"categorical"`

	// category name -> vocabulary index, one map per categorical feature
	lookup []map[string]int
	dim    int
}

// NewFeatureSchema builds and validates a schema.
func NewFeatureSchema(numerical []string, categorical []CategoricalFeature) (*FeatureSchema, error) {
	s := &FeatureSchema{Numerical: numerical, Categorical: categorical}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks names and vocabularies and prepares the lookup tables.
// It returns an ArtifactError naming the first problem found.
func (s *FeatureSchema) Validate() error {
	if len(s.Numerical)+len(s.Categorical) == 0 {
		return errors.NewArtifactError("features", "schema declares no features")
	}

	seen := make(map[string]string, len(s.Numerical)+len(s.Categorical))
	for i, name := range s.Numerical {
		field := "features.numerical[" + strconv.Itoa(i) + "]"
		if name == "" {
			return errors.NewArtifactError(field, "empty feature name")
		}
		if prev, dup := seen[name]; dup {
			return errors.NewArtifactErrorf(field, "duplicate feature name '%s' (also %s)", name, prev)
		}
		seen[name] = field
	}

	lookup := make([]map[string]int, len(s.Categorical))
	dim := len(s.Numerical)
	for i, cf := range s.Categorical {
		field := "features.categorical[" + strconv.Itoa(i) + "]"
		if cf.Name == "" {
			return errors.NewArtifactError(field, "empty feature name")
		}
		if prev, dup := seen[cf.Name]; dup {
			return errors.NewArtifactErrorf(field, "duplicate feature name '%s' (also %s)", cf.Name, prev)
		}
		seen[cf.Name] = field

		if len(cf.Categories) == 0 {
			return errors.NewArtifactErrorf(field, "categorical feature '%s' has empty categories", cf.Name)
		}
		idx := make(map[string]int, len(cf.Categories))
		for j, c := range cf.Categories {
			if _, dup := idx[c]; dup {
				return errors.NewArtifactErrorf(field+".categories["+strconv.Itoa(j)+"]",
					"duplicate category '%s'", c)
			}
			idx[c] = j
		}
		lookup[i] = idx
		dim += len(cf.Categories) - 1
	}

	s.lookup = lookup
	s.dim = dim
	return nil
}

// Dim is the length of the expanded input vector.
func (s *FeatureSchema) Dim() int {
	return s.dim
}

// ExpandedNames returns the name of every position of the expanded vector,
// using "<feature>_<category>" for one-hot indicators.
func (s *FeatureSchema) ExpandedNames() []string {
	names := make([]string, 0, s.dim)
	names = append(names, s.Numerical...)
	for _, cf := range s.Categorical {
		for _, c := range cf.Categories[1:] {
			names = append(names, cf.Name+"_"+c)
		}
	}
	return names
}

// Canonical is a record validated against the schema: numerical values in
// declared order and, per categorical feature, the vocabulary index.
type Canonical struct {
	Numerical  []float64
	Categories []int
}

// Canonicalize validates a raw record and puts it in schema order.
//
// Missing fields, non-numeric or non-finite numerical values, non-string
// categorical values and categories outside the vocabulary fail with a
// SchemaError. Fields the schema does not declare are ignored.
// The schema must have been validated (NewFeatureSchema, Validate or an
// artifact load); an unvalidated schema yields a ValueError.
func (s *FeatureSchema) Canonicalize(record Record) (Canonical, error) {
	if s.lookup == nil {
		return Canonical{}, errors.NewValueError("FeatureSchema.Canonicalize", "schema has not been validated")
	}
	out := Canonical{
		Numerical:  make([]float64, len(s.Numerical)),
		Categories: make([]int, len(s.Categorical)),
	}

	for i, name := range s.Numerical {
		raw, ok := record[name]
		if !ok || raw == nil {
			return Canonical{}, errors.NewSchemaError(name, "missing required field", nil)
		}
		v, ok := toFloat(raw)
		if !ok {
			return Canonical{}, errors.NewSchemaError(name, "numerical feature must be a number", raw)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Canonical{}, errors.NewSchemaError(name, "numerical feature must be finite", v)
		}
		out.Numerical[i] = v
	}

	for i, cf := range s.Categorical {
		raw, ok := record[cf.Name]
		if !ok || raw == nil {
			return Canonical{}, errors.NewSchemaError(cf.Name, "missing required field", nil)
		}
		str, ok := raw.(string)
		if !ok {
			return Canonical{}, errors.NewSchemaError(cf.Name, "categorical feature must be a string", raw)
		}
		idx, ok := s.lookup[i][str]
		if !ok {
			return Canonical{}, errors.NewSchemaError(cf.Name, "unknown category", str)
		}
		out.Categories[i] = idx
	}

	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
