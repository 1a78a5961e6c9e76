// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/samediff/internal/tensor"
)

// RawTensor is a dense array with a shape, data type and memory order.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()                    // Type-safe access
//	view, _ := raw.Reshape(tensor.Shape{3, 2}) // Shares storage
//	cp := raw.Dup(tensor.F)                    // Independent copy
type RawTensor = tensor.RawTensor

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
	Float16 = tensor.Float16
)

// Device identifies where a tensor's buffer lives.
type Device = tensor.Device

// CPU is the only device kernels execute on.
const CPU = tensor.CPU

// Order is the memory layout of a tensor.
type Order = tensor.Order

// Memory orders.
const (
	C = tensor.C
	F = tensor.F
)

// Shape is a list of dimension sizes.
type Shape = tensor.Shape

// UnknownDim marks a dimension fixed only when a value is fed.
const UnknownDim = tensor.UnknownDim

// NewRaw allocates a zeroed C-order tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Zeros returns a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.Zeros(shape, dtype)
}

// Ones returns a tensor filled with ones.
func Ones(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.Ones(shape, dtype)
}

// Full returns a tensor with every element set to value.
func Full(shape Shape, dtype DataType, value float64) (*RawTensor, error) {
	return tensor.Full(shape, dtype, value)
}

// Scalar returns a rank-0 tensor.
func Scalar(value float64, dtype DataType) *RawTensor {
	return tensor.Scalar(value, dtype)
}

// FromFloat64s wraps data in a Float64 tensor of the given shape.
func FromFloat64s(shape Shape, data []float64) (*RawTensor, error) {
	return tensor.FromFloat64s(shape, data)
}

// FromFloat32s wraps data in a Float32 tensor of the given shape.
func FromFloat32s(shape Shape, data []float32) (*RawTensor, error) {
	return tensor.FromFloat32s(shape, data)
}

// FromInt64s wraps data in an Int64 tensor of the given shape.
func FromInt64s(shape Shape, data []int64) (*RawTensor, error) {
	return tensor.FromInt64s(shape, data)
}

// FromBools wraps data in a Bool tensor of the given shape.
func FromBools(shape Shape, data []bool) (*RawTensor, error) {
	return tensor.FromBools(shape, data)
}

// FromValues converts data to dtype.
func FromValues(shape Shape, dtype DataType, data []float64) (*RawTensor, error) {
	return tensor.FromValues(shape, dtype, data)
}

// RandomUniform samples from [lo, hi). A nil src uses a fixed seed.
func RandomUniform(shape Shape, dtype DataType, lo, hi float64, src rand.Source) (*RawTensor, error) {
	return tensor.RandomUniform(shape, dtype, lo, hi, src)
}

// RandomNormal samples from N(mean, std²). A nil src uses a fixed seed.
func RandomNormal(shape Shape, dtype DataType, mean, std float64, src rand.Source) (*RawTensor, error) {
	return tensor.RandomNormal(shape, dtype, mean, std, src)
}

// NewSource returns a deterministic random source.
func NewSource(seed uint64) rand.Source {
	return tensor.NewSource(seed)
}

// AllClose reports whether a and b have equal shapes and elements within tol.
func AllClose(a, b *RawTensor, tol float64) bool {
	return tensor.AllClose(a, b, tol)
}
