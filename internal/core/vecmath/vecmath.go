// Package vecmath provides the vector primitives used for scoring:
// cosine similarity and centroids of embedding vectors.
//
// Vectors are float32 as produced by embedding models; sums are
// accumulated in float64.
package vecmath

import (
	"fmt"
	"math"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
//
// The result is NaN when either vector is all zeros. Callers must treat
// NaN as undefined rather than coercing it to a number.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, domain.ErrEmptyVector
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return math.NaN(), nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push parallel vectors a hair past 1.
	return clamp(sim), nil
}

// Centroid returns the element-wise mean of vectors.
func Centroid(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyGroup
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, domain.ErrEmptyVector
	}

	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				domain.ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	n := float64(len(vectors))
	centroid := make([]float32, dim)
	for j, s := range sum {
		centroid[j] = float32(s / n)
	}
	return centroid, nil
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func clamp(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}
