// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go kernel backend.
//
// Kernels are safe for concurrent use; they never share mutable state.
package cpu

import (
	internalcpu "github.com/born-ml/samediff/internal/backend/cpu"
	"github.com/born-ml/samediff/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	b := cpu.New()
//	x, _ := tensor.FromFloat64s(tensor.Shape{2}, []float64{1, -1})
//	y := b.Relu(x)
func New() *Backend {
	return internalcpu.New()
}
