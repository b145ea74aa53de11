package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}

// CosineSimilarity returns the cosine similarity between two vectors.
// Returns 0 for mismatched lengths, empty vectors, or zero-norm inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MeanVector returns the element-wise mean of the given vectors.
// Returns nil when vecs is empty.
func MeanVector(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	mean := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range mean {
			mean[i] += v[i]
		}
	}
	inv := float32(1.0 / float64(len(vecs)))
	for i := range mean {
		mean[i] *= inv
	}
	return mean
}
