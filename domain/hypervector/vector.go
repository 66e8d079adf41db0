// Package hypervector provides the fixed-width vector representation used
// for approximate semantic comparison between demands and agent profiles.
package hypervector

import (
	"errors"
	"math"
)

// Errors for vector operations.
var (
	// ErrDimensionMismatch indicates two vectors of different width.
	ErrDimensionMismatch = errors.New("hypervector dimension mismatch")

	// ErrZeroVector indicates a similarity computation against a zero vector.
	ErrZeroVector = errors.New("hypervector has zero magnitude")
)

// Vector is a fixed-width high-dimensional numeric vector. The encoder that
// produced it fixes the dimensionality; vectors of different widths never
// compare.
type Vector []float64

// Dim returns the vector's dimensionality.
func (v Vector) Dim() int {
	return len(v)
}

// Norm returns the Euclidean norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity between two vectors in [-1, 1].
func Cosine(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
