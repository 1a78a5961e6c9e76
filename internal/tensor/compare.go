package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// AllClose reports whether a and b have equal shapes and dtypes and every pair of
// elements agrees within tol, either absolutely or relatively.
// Integer and boolean tensors are compared exactly.
func AllClose(a, b *RawTensor, tol float64) bool {
	if a.dtype != b.dtype || !a.shape.Equal(b.shape) {
		return false
	}
	exact := !a.dtype.IsFloat()
	n := a.NumElements()
	for i := 0; i < n; i++ {
		x, y := a.Float(i), b.Float(i)
		if exact {
			if x != y {
				return false
			}
			continue
		}
		if math.IsNaN(x) || math.IsNaN(y) {
			if !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
			continue
		}
		if !scalar.EqualWithinAbsOrRel(x, y, tol, tol) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns the largest absolute element difference between two tensors of equal shape.
// It returns +Inf when the shapes differ.
func MaxAbsDiff(a, b *RawTensor) float64 {
	if !a.shape.Equal(b.shape) {
		return math.Inf(1)
	}
	worst := 0.0
	n := a.NumElements()
	for i := 0; i < n; i++ {
		if d := math.Abs(a.Float(i) - b.Float(i)); d > worst || math.IsNaN(d) {
			worst = d
		}
	}
	return worst
}
