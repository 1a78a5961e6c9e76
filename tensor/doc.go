// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense n-dimensional arrays that samediff graphs
// compute on.
//
// # Overview
//
// A RawTensor holds a shape, a data type, a memory order (C or F) and a
// byte buffer. Element access goes through float64 so the
// same code reads every supported type:
//
//	x, _ := tensor.FromFloat64s(tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
//	x.SetFloat(0, 10)
//	fmt.Println(x.At(1, 2)) // 6
//
// Reshape of a C-contiguous tensor returns a view sharing its storage, so
// writes through either are visible in both. Dup copies, optionally changing
// the memory order.
//
// # Supported Data Types
//
//   - Float16, Float32, Float64 (floating-point)
//   - Int32, Int64, Uint8 (integer)
//   - Bool
//
// Shapes used by graph placeholders may contain UnknownDim; values bound to
// variables always have fully known shapes.
package tensor
