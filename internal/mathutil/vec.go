// Package mathutil holds the small vector helpers shared by the
// accumulators and the prior estimator.
package mathutil

import "math"

// Vec is a float64 vector.
type Vec = []float64

// SumVec returns the sum of the elements of v.
func SumVec(v Vec) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

// AxpyVec adds alpha*x to dst.
func AxpyVec(dst Vec, alpha float64, x Vec) {
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}

// AxpySqVec adds alpha*x² elementwise to dst.
func AxpySqVec(dst Vec, alpha float64, x Vec) {
	for i := range dst {
		dst[i] += alpha * x[i] * x[i]
	}
}

// ScaleVec multiplies v by alpha in place.
func ScaleVec(v Vec, alpha float64) {
	for i := range v {
		v[i] *= alpha
	}
}

// FloorVec raises every element below floor to floor and returns how many
// were changed.
func FloorVec(v Vec, floor float64) int {
	n := 0
	for i, x := range v {
		if x < floor {
			v[i] = floor
			n++
		}
	}
	return n
}

// LogVec replaces every element by its natural logarithm.
func LogVec(v Vec) {
	for i, x := range v {
		v[i] = math.Log(x)
	}
}
