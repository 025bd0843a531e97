package errors

import (
	"math"
	"strconv"
)

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckFinite returns an ArtifactError naming field when value is NaN or Inf.
func CheckFinite(field string, value float64) error {
	if !IsFinite(value) {
		return NewArtifactErrorf(field, "must be finite, got %v", value)
	}
	return nil
}

// CheckAllFinite checks every value, naming the offending index as field[i].
func CheckAllFinite(field string, values []float64) error {
	for i, v := range values {
		if !IsFinite(v) {
			return NewArtifactErrorf(indexed(field, i), "must be finite, got %v", v)
		}
	}
	return nil
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func indexed(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}
