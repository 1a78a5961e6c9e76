package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// storageIndex maps a logical row-major linear index to a position in storage.
func (r *RawTensor) storageIndex(linear int) int {
	if r.order == C {
		return linear
	}
	pos := 0
	for d := len(r.shape) - 1; d >= 0; d-- {
		pos += (linear % r.shape[d]) * r.stride[d]
		linear /= r.shape[d]
	}
	return pos
}

func (r *RawTensor) offsetOf(idx []int) int {
	if len(idx) != len(r.shape) {
		panic(fmt.Sprintf("index rank %d does not match tensor rank %d", len(idx), len(r.shape)))
	}
	pos := 0
	for d, i := range idx {
		if i < 0 || i >= r.shape[d] {
			panic(fmt.Sprintf("index %d out of range for dimension %d of size %d", i, d, r.shape[d]))
		}
		pos += i * r.stride[d]
	}
	return pos
}

func (r *RawTensor) load(pos int) float64 {
	switch r.dtype {
	case Float32:
		return float64(r.AsFloat32()[pos])
	case Float64:
		return r.AsFloat64()[pos]
	case Float16:
		return float64(float16.Frombits(r.AsUint16()[pos]).Float32())
	case Int32:
		return float64(r.AsInt32()[pos])
	case Int64:
		return float64(r.AsInt64()[pos])
	case Uint8:
		return float64(r.buffer.data[pos])
	case Bool:
		if r.AsBool()[pos] {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.dtype))
	}
}

func (r *RawTensor) store(pos int, v float64) {
	switch r.dtype {
	case Float32:
		r.AsFloat32()[pos] = float32(v)
	case Float64:
		r.AsFloat64()[pos] = v
	case Float16:
		r.AsUint16()[pos] = float16.Fromfloat32(float32(v)).Bits()
	case Int32:
		r.AsInt32()[pos] = int32(v)
	case Int64:
		r.AsInt64()[pos] = int64(v)
	case Uint8:
		r.buffer.data[pos] = uint8(v)
	case Bool:
		r.AsBool()[pos] = v != 0
	default:
		panic(fmt.Sprintf("unsupported dtype %s", r.dtype))
	}
}

// Float returns the element at logical row-major index i converted to float64.
func (r *RawTensor) Float(i int) float64 {
	if i < 0 || i >= r.NumElements() {
		panic(fmt.Sprintf("index %d out of range [0, %d)", i, r.NumElements()))
	}
	return r.load(r.storageIndex(i))
}

// SetFloat stores v at logical row-major index i, converting to the tensor's dtype.
func (r *RawTensor) SetFloat(i int, v float64) {
	if i < 0 || i >= r.NumElements() {
		panic(fmt.Sprintf("index %d out of range [0, %d)", i, r.NumElements()))
	}
	r.store(r.storageIndex(i), v)
}

// At returns the element at the given multi-index.
func (r *RawTensor) At(idx ...int) float64 {
	return r.load(r.offsetOf(idx))
}

// SetAt stores v at the given multi-index.
func (r *RawTensor) SetAt(v float64, idx ...int) {
	r.store(r.offsetOf(idx), v)
}

// Float64s copies the elements, in logical row-major order, into a new []float64.
func (r *RawTensor) Float64s() []float64 {
	n := r.NumElements()
	out := make([]float64, n)
	if r.dtype == Float64 && r.order == C {
		copy(out, r.AsFloat64())
		return out
	}
	for i := range out {
		out[i] = r.load(r.storageIndex(i))
	}
	return out
}

// Dup returns an independent copy of the tensor laid out in the given order.
func (r *RawTensor) Dup(order Order) *RawTensor {
	out, err := NewRawOrder(r.shape, r.dtype, r.device, order)
	if err != nil {
		panic(err)
	}
	if order == r.order {
		copy(out.buffer.data, r.buffer.data)
		return out
	}
	n := r.NumElements()
	for i := 0; i < n; i++ {
		out.store(out.storageIndex(i), r.load(r.storageIndex(i)))
	}
	return out
}

// Contiguous returns r itself when it is already C-ordered, otherwise a C-ordered copy.
func (r *RawTensor) Contiguous() *RawTensor {
	if r.IsContiguous() {
		return r
	}
	return r.Dup(C)
}

// Reshape returns a tensor with the new shape over the same elements.
// C-contiguous tensors are viewed without copying; the view shares the buffer.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			r.shape, r.NumElements(), shape, shape.NumElements())
	}
	src := r
	if !r.IsContiguous() {
		src = r.Dup(C)
	}
	if shape == nil {
		shape = Shape{}
	}
	return &RawTensor{
		buffer: src.buffer,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
		order:  C,
	}, nil
}

// CopyFrom overwrites the elements of r with those of src, which must have the same shape.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch %v vs %v", r.shape, src.shape)
	}
	if r.dtype == src.dtype && r.order == src.order {
		copy(r.buffer.data, src.buffer.data)
		return nil
	}
	n := r.NumElements()
	for i := 0; i < n; i++ {
		r.store(r.storageIndex(i), src.load(src.storageIndex(i)))
	}
	return nil
}
