package math32

import "math"

// Dot calculates the dot product of two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
// It does NOT perform bounds checks for performance reasons.
// Callers MUST ensure lengths match to avoid buffer over-reads.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// SquaredL2 calculates the squared L2 distance between two vectors.
//
// SAFETY: This function assumes len(a) == len(b).
func SquaredL2(a, b []float32) float32 {
	var ret float32
	for i := range a {
		d := a[i] - b[i]
		ret += d * d
	}

	return ret
}

// Axpy computes dst[i] += alpha * x[i].
//
// SAFETY: This function assumes len(dst) == len(x).
func Axpy(alpha float32, x, dst []float32) {
	for i := range x {
		dst[i] += alpha * x[i]
	}
}

// ScaleInPlace multiplies every element of v by alpha.
func ScaleInPlace(v []float32, alpha float32) {
	for i := range v {
		v[i] *= alpha
	}
}

// Fill sets every element of v to alpha.
func Fill(v []float32, alpha float32) {
	for i := range v {
		v[i] = alpha
	}
}

// Argmax returns the index of the largest element of v.
// Returns -1 for an empty slice. Ties resolve to the lowest index.
func Argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}

	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}

	return best
}

// MinMax returns the smallest and largest elements of v in one pass.
// Both results are v[0] for a single-element slice.
//
// SAFETY: v must be non-empty.
func MinMax(v []float32) (minVal, maxVal float32) {
	minVal, maxVal = v[0], v[0]
	for _, x := range v[1:] {
		if x < minVal {
			minVal = x
		}
		if x > maxVal {
			maxVal = x
		}
	}

	return minVal, maxVal
}

// Softmax writes the softmax of src into dst.
// The computation subtracts the maximum for numerical stability.
//
// SAFETY: This function assumes len(dst) == len(src).
func Softmax(dst, src []float32) {
	if len(src) == 0 {
		return
	}

	maxVal := src[0]
	for _, x := range src[1:] {
		if x > maxVal {
			maxVal = x
		}
	}

	var sum float32
	for i, x := range src {
		e := float32(math.Exp(float64(x - maxVal)))
		dst[i] = e
		sum += e
	}

	inv := 1 / sum
	for i := range dst {
		dst[i] *= inv
	}
}
