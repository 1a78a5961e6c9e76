package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// CPU is the host device. It is the only device kernels run on.
const CPU Device = iota

// String returns a human-readable device name.
func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// Order is the memory layout of a tensor's elements.
type Order byte

// Memory orders.
const (
	C Order = 'c' // row-major
	F Order = 'f' // column-major
)

// String returns "c" or "f".
func (o Order) String() string { return string(o) }

// tensorBuffer is the storage shared between a tensor and its reshape views.
type tensorBuffer struct {
	data []byte
}

// RawTensor is the low-level, dynamically typed tensor representation.
//
// Elements are addressed by their logical row-major position regardless of the
// memory order; strides map logical positions to storage.
type RawTensor struct {
	buffer *tensorBuffer
	shape  Shape
	stride []int // element strides
	dtype  DataType
	device Device
	order  Order
}

// NewRaw creates a new C-ordered RawTensor with the given shape and type.
// Memory is zero initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return NewRawOrder(shape, dtype, device, C)
}

// NewRawOrder creates a new zero initialized RawTensor laid out in the given order.
func NewRawOrder(shape Shape, dtype DataType, device Device, order Order) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if order != C && order != F {
		return nil, fmt.Errorf("invalid memory order %q", order)
	}

	byteSize := shape.NumElements() * dtype.Size()
	if shape == nil {
		shape = Shape{}
	}
	return &RawTensor{
		buffer: &tensorBuffer{data: make([]byte, byteSize)},
		shape:  shape.Clone(),
		stride: shape.ComputeStridesOrder(order),
		dtype:  dtype,
		device: device,
		order:  order,
	}, nil
}

// MustNewRaw is NewRaw for shapes known to be valid; it panics on error.
func MustNewRaw(shape Shape, dtype DataType) *RawTensor {
	r, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's element strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// Order returns the memory order of the tensor's storage.
func (r *RawTensor) Order() Order {
	return r.order
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// IsContiguous reports whether storage is row-major without gaps, which is what
// the typed views and the kernels expect.
func (r *RawTensor) IsContiguous() bool {
	if r.NumElements() <= 1 {
		return true
	}
	want := r.shape.ComputeStrides()
	for i, s := range r.stride {
		if r.shape[i] != 1 && s != want[i] {
			return false
		}
	}
	return true
}

// Data returns the raw byte slice in storage order.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data
}

// AsFloat32 interprets the storage as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat64 interprets the storage as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsUint16 interprets Float16 storage as raw IEEE 754 half precision bits.
func (r *RawTensor) AsUint16() []uint16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt32 interprets the storage as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt64 interprets the storage as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsUint8 interprets the storage as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.buffer.data
}

// AsBool interprets the storage as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	if r.dtype != Bool {
		panic(fmt.Sprintf("tensor dtype is %s, not bool", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&data[0])), r.NumElements())
}

// String gives a short description: dtype, shape and order.
func (r *RawTensor) String() string {
	return fmt.Sprintf("%s%v(%s)", r.dtype, r.shape, r.order)
}
