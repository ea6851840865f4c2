package vector

import (
	"sort"

	"gonum.org/v1/gonum/blas/blas32"
)

// normEpsilon keeps normalization finite for zero and near-zero vectors.
const normEpsilon = 1e-12

// Normalize returns a unit-length copy of v. The divisor is norm+epsilon, so a
// zero vector stays zero instead of producing NaNs.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if len(out) == 0 {
		return out
	}
	x := blas32.Vector{N: len(out), Inc: 1, Data: out}
	norm := float64(blas32.Nrm2(x))
	blas32.Scal(float32(1/(norm+normEpsilon)), x)
	return out
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
// Mismatched or empty vectors score 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	dot := float64(blas32.Dot(
		blas32.Vector{N: len(a), Inc: 1, Data: a},
		blas32.Vector{N: len(b), Inc: 1, Data: b},
	))
	// float32 rounding can push unit vectors slightly past ±1.
	if dot > 1 {
		return 1
	}
	if dot < -1 {
		return -1
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	return float64(blas32.Nrm2(blas32.Vector{N: len(x), Inc: 1, Data: x}))
}

// SortResults orders results by descending similarity; equal similarities keep
// insertion order (ascending entry ID).
func SortResults(results []*SimilarityResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].EntryID < results[j].EntryID
	})
}
