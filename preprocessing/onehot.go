package preprocessing

import (
	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// OneHotEncoder expands categorical features into indicator columns with the
// first category of each feature dropped (drop="first").
type OneHotEncoder struct {
	categories [][]string
	offsets    []int // start of each feature's block, relative to the encoder output
	width      int
}

// NewOneHotEncoder builds an encoder for the given categorical features.
func NewOneHotEncoder(features []CategoricalFeature) (*OneHotEncoder, error) {
	enc := &OneHotEncoder{
		categories: make([][]string, len(features)),
		offsets:    make([]int, len(features)),
	}
	for i, f := range features {
		if len(f.Categories) == 0 {
			return nil, errors.NewArtifactErrorf("features.categorical", "categorical feature '%s' has empty categories", f.Name)
		}
		enc.categories[i] = f.Categories
		enc.offsets[i] = enc.width
		enc.width += len(f.Categories) - 1
	}
	return enc, nil
}

// Width is the number of indicator columns produced.
func (e *OneHotEncoder) Width() int {
	return e.width
}

// Transform writes the indicator block for the given vocabulary indices into
// dst, which must hold Width() values. Index 0 (the reference category)
// leaves its block all zero.
func (e *OneHotEncoder) Transform(dst []float64, categories []int) error {
	if len(categories) != len(e.categories) {
		return errors.NewDimensionError("OneHotEncoder.Transform", len(e.categories), len(categories))
	}
	if len(dst) < e.width {
		return errors.NewDimensionError("OneHotEncoder.Transform", e.width, len(dst))
	}

	for j := 0; j < e.width; j++ {
		dst[j] = 0
	}
	for i, idx := range categories {
		if idx < 0 || idx >= len(e.categories[i]) {
			return errors.NewValueError("OneHotEncoder.Transform", "category index out of range")
		}
		if idx == 0 {
			continue
		}
		dst[e.offsets[i]+idx-1] = 1
	}
	return nil
}
