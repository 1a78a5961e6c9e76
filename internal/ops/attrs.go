package ops

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// Attrs is the immutable per-kind configuration of an operation.
// Implementations are the value structs in this file.
type Attrs interface {
	isAttrs()
}

type validator interface {
	validate() error
}

// ScalarAttrs configures scalar_add and scalar_mul.
type ScalarAttrs struct {
	Value float64
}

// MatMulAttrs configures matmul.
type MatMulAttrs struct {
	TransposeA bool
	TransposeB bool
}

// ReshapeAttrs configures reshape. At most one dimension may be -1.
type ReshapeAttrs struct {
	Shape tensor.Shape
}

// TransposeAttrs configures transpose. An empty Perm reverses the dimensions.
type TransposeAttrs struct {
	Perm []int
}

// BroadcastAttrs configures broadcast_to.
type BroadcastAttrs struct {
	Shape tensor.Shape
}

// ReduceAttrs configures reductions and their backprops. An empty Axes reduces every axis.
type ReduceAttrs struct {
	Axes     []int
	KeepDims bool
}

// AxisAttrs configures single-axis ops: softmax, concat, concat_bp and argmax.
type AxisAttrs struct {
	Axis int
}

// SplitAttrs configures split into Num equal parts along Axis.
type SplitAttrs struct {
	Axis int
	Num  int
}

// Conv2DAttrs configures conv2d and its backprops.
type Conv2DAttrs struct {
	Stride  int
	Padding int
}

// Pool2DAttrs configures maxpool2d and its backprop.
type Pool2DAttrs struct {
	Kernel int
	Stride int
}

// CastAttrs configures cast.
type CastAttrs struct {
	DType tensor.DataType
}

func (ScalarAttrs) isAttrs()    {}
func (MatMulAttrs) isAttrs()    {}
func (ReshapeAttrs) isAttrs()   {}
func (TransposeAttrs) isAttrs() {}
func (BroadcastAttrs) isAttrs() {}
func (ReduceAttrs) isAttrs()    {}
func (AxisAttrs) isAttrs()      {}
func (SplitAttrs) isAttrs()     {}
func (Conv2DAttrs) isAttrs()    {}
func (Pool2DAttrs) isAttrs()    {}
func (CastAttrs) isAttrs()      {}

func (a ReshapeAttrs) validate() error {
	unknown := 0
	for _, d := range a.Shape {
		switch {
		case d == tensor.UnknownDim:
			unknown++
		case d <= 0:
			return fmt.Errorf("reshape: invalid dimension %d", d)
		}
	}
	if unknown > 1 {
		return fmt.Errorf("reshape: at most one -1 dimension allowed, got %v", a.Shape)
	}
	return nil
}

func (a TransposeAttrs) validate() error {
	seen := make(map[int]bool, len(a.Perm))
	for _, p := range a.Perm {
		if p < 0 || p >= len(a.Perm) || seen[p] {
			return fmt.Errorf("transpose: %v is not a permutation", a.Perm)
		}
		seen[p] = true
	}
	return nil
}

func (a BroadcastAttrs) validate() error {
	if err := a.Shape.Validate(); err != nil {
		return fmt.Errorf("broadcast_to: %w", err)
	}
	return nil
}

func (a SplitAttrs) validate() error {
	if a.Num <= 0 {
		return fmt.Errorf("split: num must be positive, got %d", a.Num)
	}
	return nil
}

func (a Conv2DAttrs) validate() error {
	if a.Stride <= 0 || a.Padding < 0 {
		return fmt.Errorf("conv2d: invalid stride %d / padding %d", a.Stride, a.Padding)
	}
	return nil
}

func (a Pool2DAttrs) validate() error {
	if a.Kernel <= 0 || a.Stride <= 0 {
		return fmt.Errorf("maxpool2d: invalid kernel %d / stride %d", a.Kernel, a.Stride)
	}
	return nil
}
