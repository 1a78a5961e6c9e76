// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/samediff/internal/backend/cpu"
	"github.com/born-ml/samediff/tensor"
)

// TestBackendInterface verifies that cpu.CPUBackend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.CPUBackend)(nil)
}

// TestRawTensorAPI verifies RawTensor type alias exposes expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", raw.DType())
	}
	if raw.ByteSize() != 6*4 {
		t.Errorf("ByteSize() = %d, want 24", raw.ByteSize())
	}

	view, err := raw.Reshape(tensor.Shape{3, 2})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	view.SetFloat(0, 3)
	if raw.Float(0) != 3 {
		t.Errorf("Float(0) = %v after write through view, want 3", raw.Float(0))
	}
	cp := raw.Dup(tensor.C)
	cp.SetFloat(0, 4)
	if raw.Float(0) != 3 {
		t.Error("write to Dup leaked into original")
	}
}

func TestConstructors(t *testing.T) {
	x, err := tensor.FromFloat64s(tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	f := x.Dup(tensor.F)
	if f.Order() != tensor.F {
		t.Errorf("Dup(F).Order() = %v", f.Order())
	}
	if !tensor.AllClose(x, f, 0) {
		t.Error("Dup changed element values")
	}

	ones, err := tensor.Ones(tensor.Shape{2, 2}, tensor.Float64)
	if err != nil {
		t.Fatal(err)
	}
	if ones.At(1, 1) != 1 {
		t.Errorf("Ones().At(1, 1) = %v", ones.At(1, 1))
	}

	a, _ := tensor.RandomNormal(tensor.Shape{4}, tensor.Float64, 0, 1, tensor.NewSource(9))
	b, _ := tensor.RandomNormal(tensor.Shape{4}, tensor.Float64, 0, 1, tensor.NewSource(9))
	if !tensor.AllClose(a, b, 0) {
		t.Error("same seed produced different samples")
	}

	if s := tensor.Scalar(2, tensor.Int64); s.Shape().Rank() != 0 || s.Float(0) != 2 {
		t.Errorf("Scalar = %v", s)
	}
}
