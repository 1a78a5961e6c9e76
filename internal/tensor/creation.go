package tensor

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Zeros creates a CPU tensor filled with zeros.
//
// Example:
//
//	t, err := tensor.Zeros(tensor.Shape{3, 4}, tensor.Float32)
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return NewRaw(shape, dtype, CPU)
}

// Ones creates a CPU tensor filled with ones.
func Ones(shape Shape, dtype DataType) (*RawTensor, error) {
	return Full(shape, dtype, 1)
}

// Full creates a CPU tensor with every element set to value.
func Full(shape Shape, dtype DataType, value float64) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		return nil, err
	}
	if value == 0 {
		return t, nil
	}
	n := t.NumElements()
	for i := 0; i < n; i++ {
		t.store(i, value)
	}
	return t, nil
}

// Scalar creates a rank-0 tensor holding value.
func Scalar(value float64, dtype DataType) *RawTensor {
	t := MustNewRaw(Shape{}, dtype)
	t.store(0, value)
	return t
}

// FromFloat64s creates a Float64 tensor from row-major data.
//
// Example:
//
//	t, err := tensor.FromFloat64s(tensor.Shape{2}, []float64{1, 2})
func FromFloat64s(shape Shape, data []float64) (*RawTensor, error) {
	t, err := newFromLen(shape, Float64, len(data))
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat64(), data)
	return t, nil
}

// FromFloat32s creates a Float32 tensor from row-major data.
func FromFloat32s(shape Shape, data []float32) (*RawTensor, error) {
	t, err := newFromLen(shape, Float32, len(data))
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// FromInt64s creates an Int64 tensor from row-major data.
func FromInt64s(shape Shape, data []int64) (*RawTensor, error) {
	t, err := newFromLen(shape, Int64, len(data))
	if err != nil {
		return nil, err
	}
	copy(t.AsInt64(), data)
	return t, nil
}

// FromBools creates a Bool tensor from row-major data.
func FromBools(shape Shape, data []bool) (*RawTensor, error) {
	t, err := newFromLen(shape, Bool, len(data))
	if err != nil {
		return nil, err
	}
	copy(t.AsBool(), data)
	return t, nil
}

// FromValues creates a tensor of any dtype from row-major float64 data.
func FromValues(shape Shape, dtype DataType, data []float64) (*RawTensor, error) {
	t, err := newFromLen(shape, dtype, len(data))
	if err != nil {
		return nil, err
	}
	for i, v := range data {
		t.store(i, v)
	}
	return t, nil
}

func newFromLen(shape Shape, dtype DataType, n int) (*RawTensor, error) {
	if shape.NumElements() != n {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", n, shape, shape.NumElements())
	}
	return NewRaw(shape, dtype, CPU)
}

// Arange creates a rank-1 tensor with values start, start+step, ... below stop.
func Arange(start, stop, step float64, dtype DataType) (*RawTensor, error) {
	if step == 0 {
		return nil, fmt.Errorf("arange: step must be non-zero")
	}
	n := 0
	for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v = start + float64(n)*step {
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("arange: empty range [%g, %g) with step %g", start, stop, step)
	}
	t, err := NewRaw(Shape{n}, dtype, CPU)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		t.store(i, start+float64(i)*step)
	}
	return t, nil
}

// RandomUniform fills a new tensor with samples from U[lo, hi).
// A nil src uses a randomly seeded PCG source.
//
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func RandomUniform(shape Shape, dtype DataType, lo, hi float64, src rand.Source) (*RawTensor, error) {
	if !dtype.IsFloat() {
		return nil, fmt.Errorf("random uniform: dtype %s is not a float type", dtype)
	}
	if hi <= lo {
		return nil, fmt.Errorf("random uniform: empty interval [%g, %g)", lo, hi)
	}
	dist := distuv.Uniform{Min: lo, Max: hi, Src: sourceOrDefault(src)}
	return sample(shape, dtype, dist.Rand)
}

// RandomNormal fills a new tensor with samples from N(mean, std²).
func RandomNormal(shape Shape, dtype DataType, mean, std float64, src rand.Source) (*RawTensor, error) {
	if !dtype.IsFloat() {
		return nil, fmt.Errorf("random normal: dtype %s is not a float type", dtype)
	}
	if std <= 0 {
		return nil, fmt.Errorf("random normal: std must be positive, got %g", std)
	}
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: sourceOrDefault(src)}
	return sample(shape, dtype, dist.Rand)
}

func sample(shape Shape, dtype DataType, draw func() float64) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		return nil, err
	}
	n := t.NumElements()
	for i := 0; i < n; i++ {
		t.store(i, draw())
	}
	return t, nil
}

func sourceOrDefault(src rand.Source) rand.Source {
	if src != nil {
		return src
	}
	//nolint:gosec // statistical randomness only
	return rand.NewPCG(rand.Uint64(), rand.Uint64())
}

// NewSource returns a deterministic PCG source for seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
