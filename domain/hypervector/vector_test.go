package hypervector

import (
	"errors"
	"math"
	"testing"
)

func TestVector_Norm(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want float64
	}{
		{"empty", Vector{}, 0},
		{"unit", Vector{1, 0, 0}, 1},
		{"pythagorean", Vector{3, 4}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Norm(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Norm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 1},
		{"scaled", Vector{1, 2, 3}, Vector{2, 4, 6}, 1},
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 0},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Cosine() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_Errors(t *testing.T) {
	if _, err := Cosine(Vector{1, 2}, Vector{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Cosine() mismatched widths error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := Cosine(Vector{0, 0}, Vector{1, 1}); !errors.Is(err, ErrZeroVector) {
		t.Errorf("Cosine() zero vector error = %v, want ErrZeroVector", err)
	}
}
