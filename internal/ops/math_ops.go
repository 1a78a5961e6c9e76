package ops

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// registerMathOps adds arithmetic, elementwise and linear algebra kinds.
func (r *Registry) registerMathOps() {
	binaries := []struct {
		kind Kind
		fn   func(Backend, *tensor.RawTensor, *tensor.RawTensor) *tensor.RawTensor
		diff bool
	}{
		{Add, Backend.Add, true},
		{Sub, Backend.Sub, true},
		{Mul, Backend.Mul, true},
		{Div, Backend.Div, true},
		{Pow, Backend.Pow, true},
		{Maximum, Backend.Maximum, true},
		{FloorDiv, Backend.FloorDiv, false},
		{FloorMod, Backend.FloorMod, false},
	}
	for _, bin := range binaries {
		fn := bin.fn
		r.register(&Def{
			Kind:      bin.kind,
			MinInputs: 2,
			MaxInputs: 2,
			Infer:     inferBinary(bin.kind.String(), false),
			Forward: func(b Backend, _ Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
				return one(fn(b, in[0], in[1]))
			},
			Differentiable: bin.diff,
		})
	}

	unaries := []struct {
		kind      Kind
		fn        func(Backend, *tensor.RawTensor) *tensor.RawTensor
		floatOnly bool
		diff      bool
	}{
		{Neg, Backend.Neg, false, true},
		{Abs, Backend.Abs, false, true},
		{Exp, Backend.Exp, true, true},
		{Log, Backend.Log, true, true},
		{Sqrt, Backend.Sqrt, true, true},
		{Square, Backend.Square, false, true},
		{Tanh, Backend.Tanh, true, true},
		{Sigmoid, Backend.Sigmoid, true, true},
		{Relu, Backend.Relu, false, true},
		{Sin, Backend.Sin, true, true},
		{Cos, Backend.Cos, true, true},
		{Identity, Backend.Identity, false, true},
		{Sign, Backend.Sign, false, false},
		{Step, Backend.Step, false, false},
	}
	for _, un := range unaries {
		fn, name, floatOnly := un.fn, un.kind.String(), un.floatOnly
		r.register(&Def{
			Kind:      un.kind,
			MinInputs: 1,
			MaxInputs: 1,
			Infer: func(_ Attrs, in []VarType) ([]VarType, error) {
				if floatOnly {
					if err := floatDType(name, in[0]); err != nil {
						return nil, err
					}
				}
				return same(in[0]), nil
			},
			Forward: func(b Backend, _ Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
				return one(fn(b, in[0]))
			},
			Differentiable: un.diff,
		})
	}

	r.register(&Def{
		Kind:          ScalarAdd,
		MinInputs:     1,
		MaxInputs:     1,
		Defaults:      ScalarAttrs{},
		AttrsRequired: true,
		Infer:         inferSame,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.AddScalar(in[0], attrs.(ScalarAttrs).Value))
		},
		Differentiable: true,
	})
	r.register(&Def{
		Kind:          ScalarMul,
		MinInputs:     1,
		MaxInputs:     1,
		Defaults:      ScalarAttrs{},
		AttrsRequired: true,
		Infer:         inferSame,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.MulScalar(in[0], attrs.(ScalarAttrs).Value))
		},
		Differentiable: true,
	})

	r.register(&Def{
		Kind:      MatMul,
		MinInputs: 2,
		MaxInputs: 2,
		Defaults:  MatMulAttrs{},
		Infer:     inferMatMul,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(MatMulAttrs)
			return one(b.MatMul(in[0], in[1], a.TransposeA, a.TransposeB))
		},
		Differentiable: true,
	})
}

func inferSame(_ Attrs, in []VarType) ([]VarType, error) {
	return same(in[0]), nil
}

// inferBinary infers a broadcasting binary op. Comparisons produce Bool.
func inferBinary(op string, boolOut bool) InferFunc {
	return func(_ Attrs, in []VarType) ([]VarType, error) {
		if err := sameDType(op, in[0], in[1]); err != nil {
			return nil, err
		}
		shape, err := broadcastShape(op, in[0].Shape, in[1].Shape)
		if err != nil {
			return nil, err
		}
		dtype := in[0].DType
		if boolOut {
			dtype = tensor.Bool
		}
		return []VarType{{DType: dtype, Shape: shape}}, nil
	}
}

func inferMatMul(attrs Attrs, in []VarType) ([]VarType, error) {
	a := attrs.(MatMulAttrs)
	if err := sameDType("matmul", in[0], in[1]); err != nil {
		return nil, err
	}
	if err := floatDType("matmul", in[0]); err != nil {
		return nil, err
	}
	for _, t := range in {
		if err := requireRank("matmul", t, 2); err != nil {
			return nil, err
		}
	}
	rows, inner := dim(in[0].Shape, 0), dim(in[0].Shape, 1)
	if a.TransposeA {
		rows, inner = inner, rows
	}
	inner2, cols := dim(in[1].Shape, 0), dim(in[1].Shape, 1)
	if a.TransposeB {
		inner2, cols = cols, inner2
	}
	if !dimsAgree(inner, inner2) {
		return nil, fmt.Errorf("%w: matmul inner dimensions %v and %v don't match", ErrShape, in[0].Shape, in[1].Shape)
	}
	return []VarType{{DType: in[0].DType, Shape: tensor.Shape{rows, cols}}}, nil
}
