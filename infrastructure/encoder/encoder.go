// Package encoder provides a deterministic hypervector encoder used when no
// external embedding oracle is wired in.
package encoder

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"unicode"

	"github.com/NatureBlueee/Towow-sub004/domain/hypervector"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
)

// DefaultDimension is the hypervector width used unless configured otherwise.
const DefaultDimension = 256

// HashEncoder projects token hashes into a fixed-width hypervector.
// The projection is a pure function of the input text: the same text always
// yields the same vector, which keeps cascade ranking reproducible in tests
// and demos.
type HashEncoder struct {
	dimension int
}

var _ oracle.Encoder = (*HashEncoder)(nil)

// NewHashEncoder creates an encoder with the given dimension.
// A non-positive dimension falls back to DefaultDimension.
func NewHashEncoder(dimension int) *HashEncoder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEncoder{dimension: dimension}
}

// Dimension returns the width of produced vectors.
func (e *HashEncoder) Dimension() int {
	return e.dimension
}

// Encode projects the text into a hypervector. Each token contributes a
// pseudorandom unit pattern seeded by its hash; token patterns are summed
// and the result normalized. Empty input yields the zero vector.
func (e *HashEncoder) Encode(ctx context.Context, text string) (hypervector.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make(hypervector.Vector, e.dimension)
	for _, token := range Tokenize(text) {
		seed := tokenSeed(token)
		rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- deterministic projection, not security
		for i := range vec {
			vec[i] += rng.Float64()*2 - 1
		}
	}

	norm := vec.Norm()
	if norm == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// Tokenize lowercases the text and splits it on non-letter, non-digit runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSeed(token string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	if sum > math.MaxInt64 {
		return int64(sum - math.MaxInt64 - 1)
	}
	return int64(sum) // #nosec G115 -- bounds checked above
}
