// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops names the op kinds a graph can contain and their configuration
// types.
package ops

import "github.com/born-ml/samediff/internal/ops"

// Kind identifies an op.
type Kind = ops.Kind

// Attrs is the configuration of one op.
type Attrs = ops.Attrs

// Configuration types.
type (
	ScalarAttrs    = ops.ScalarAttrs
	MatMulAttrs    = ops.MatMulAttrs
	ReshapeAttrs   = ops.ReshapeAttrs
	TransposeAttrs = ops.TransposeAttrs
	BroadcastAttrs = ops.BroadcastAttrs
	ReduceAttrs    = ops.ReduceAttrs
	AxisAttrs      = ops.AxisAttrs
	SplitAttrs     = ops.SplitAttrs
	Conv2DAttrs    = ops.Conv2DAttrs
	Pool2DAttrs    = ops.Pool2DAttrs
	CastAttrs      = ops.CastAttrs
)

// Op kinds.
const (
	Add      = ops.Add
	Sub      = ops.Sub
	Mul      = ops.Mul
	Div      = ops.Div
	Pow      = ops.Pow
	Maximum  = ops.Maximum
	FloorDiv = ops.FloorDiv
	FloorMod = ops.FloorMod

	Neg      = ops.Neg
	Abs      = ops.Abs
	Exp      = ops.Exp
	Log      = ops.Log
	Sqrt     = ops.Sqrt
	Square   = ops.Square
	Tanh     = ops.Tanh
	Sigmoid  = ops.Sigmoid
	Relu     = ops.Relu
	Sin      = ops.Sin
	Cos      = ops.Cos
	Identity = ops.Identity
	Sign     = ops.Sign
	Step     = ops.Step

	ScalarAdd = ops.ScalarAdd
	ScalarMul = ops.ScalarMul
	MatMul    = ops.MatMul

	Reshape         = ops.Reshape
	Transpose       = ops.Transpose
	BroadcastTo     = ops.BroadcastTo
	Concat          = ops.Concat
	Split           = ops.Split
	ReduceToShapeOf = ops.ReduceToShapeOf

	ReduceSum  = ops.ReduceSum
	ReduceMean = ops.ReduceMean
	ReduceMax  = ops.ReduceMax

	Softmax   = ops.Softmax
	Conv2D    = ops.Conv2D
	MaxPool2D = ops.MaxPool2D

	Equal     = ops.Equal
	Greater   = ops.Greater
	Less      = ops.Less
	ArgMax    = ops.ArgMax
	Cast      = ops.Cast
	Where     = ops.Where
	OnesLike  = ops.OnesLike
	ZerosLike = ops.ZerosLike
)

// ErrUnknownKind is returned for names and kinds with no registered op.
var ErrUnknownKind = ops.ErrUnknownKind

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, error) {
	return ops.ParseKind(name)
}

// Kinds returns every registered kind in declaration order.
func Kinds() []Kind {
	return ops.Kinds()
}
