package samediff

import (
	"github.com/born-ml/samediff/internal/ops"
)

// backwardRule builds the gradient w.r.t. each input of op from the gradients
// of its outputs. A nil entry means no gradient flows to that input.
type backwardRule func(m *Math, op *Op, grads []*Variable) ([]*Variable, error)

// backwardRules is keyed by forward kind. Kinds missing from the table have
// no gradient and fail gradient graph construction when on a loss path.
var backwardRules map[ops.Kind]backwardRule

func init() {
	backwardRules = map[ops.Kind]backwardRule{
		ops.Add:     addGrad,
		ops.Sub:     subGrad,
		ops.Mul:     mulGrad,
		ops.Div:     divGrad,
		ops.Pow:     powGrad,
		ops.Maximum: maximumGrad,

		ops.Neg:      unaryGrad(func(m *Math, _, _, g *Variable) *Variable { return m.Neg(g) }),
		ops.Abs:      unaryGrad(func(m *Math, x, _, g *Variable) *Variable { return m.Mul(g, m.Sign(x)) }),
		ops.Exp:      unaryGrad(func(m *Math, _, y, g *Variable) *Variable { return m.Mul(g, y) }),
		ops.Log:      unaryGrad(func(m *Math, x, _, g *Variable) *Variable { return m.Div(g, x) }),
		ops.Sqrt:     unaryGrad(func(m *Math, _, y, g *Variable) *Variable { return m.Div(g, m.ScalarMul(y, 2)) }),
		ops.Square:   unaryGrad(func(m *Math, x, _, g *Variable) *Variable { return m.Mul(g, m.ScalarMul(x, 2)) }),
		ops.Tanh:     unaryGrad(tanhGrad),
		ops.Sigmoid:  unaryGrad(sigmoidGrad),
		ops.Relu:     unaryGrad(func(m *Math, x, _, g *Variable) *Variable { return m.Mul(g, m.Step(x)) }),
		ops.Sin:      unaryGrad(func(m *Math, x, _, g *Variable) *Variable { return m.Mul(g, m.Cos(x)) }),
		ops.Cos:      unaryGrad(func(m *Math, x, _, g *Variable) *Variable { return m.Neg(m.Mul(g, m.Sin(x))) }),
		ops.Identity: unaryGrad(func(_ *Math, _, _, g *Variable) *Variable { return g }),

		ops.ScalarAdd: unaryGrad(func(_ *Math, _, _, g *Variable) *Variable { return g }),
		ops.ScalarMul: scalarMulGrad,
		ops.MatMul:    matMulGrad,

		ops.Reshape:     reshapeGrad,
		ops.Transpose:   transposeGrad,
		ops.BroadcastTo: broadcastGrad,
		ops.Concat:      concatGrad,
		ops.Split:       splitGrad,

		ops.ReduceSum:  reduceGrad(ops.ReduceSumBp),
		ops.ReduceMean: reduceGrad(ops.ReduceMeanBp),
		ops.ReduceMax:  reduceGrad(ops.ReduceMaxBp),

		ops.Softmax:   softmaxGrad,
		ops.Conv2D:    conv2DGrad,
		ops.MaxPool2D: maxPool2DGrad,

		ops.Cast:  castGrad,
		ops.Where: whereGrad,
	}

	// Piecewise constant or integer valued: the gradient is zero everywhere
	// it is defined.
	for _, k := range []ops.Kind{
		ops.FloorDiv, ops.FloorMod, ops.Sign, ops.Step,
		ops.Equal, ops.Greater, ops.Less, ops.ArgMax,
		ops.OnesLike, ops.ZerosLike,
	} {
		backwardRules[k] = zeroGrad
	}
}

func zeroGrad(_ *Math, op *Op, _ []*Variable) ([]*Variable, error) {
	return make([]*Variable, len(op.inputs)), nil
}

func unaryGrad(f func(m *Math, x, y, g *Variable) *Variable) backwardRule {
	return func(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
		x, y := op.g.vars[op.inputs[0]], op.g.vars[op.outputs[0]]
		return []*Variable{f(m, x, y, grads[0])}, nil
	}
}

func tanhGrad(m *Math, _, y, g *Variable) *Variable {
	// 1 - tanh²
	return m.Mul(g, m.ScalarAdd(m.Neg(m.Square(y)), 1))
}

func sigmoidGrad(m *Math, _, y, g *Variable) *Variable {
	// σ(1 - σ)
	return m.Mul(g, m.Mul(y, m.ScalarAdd(m.Neg(y), 1)))
}

// unbroadcast sums g down to the shape of v when broadcasting widened it.
func unbroadcast(m *Math, g, v *Variable) *Variable {
	if g == nil || m.Err() != nil {
		return nil
	}
	if v.shape != nil && g.shape != nil && v.shape.IsFullyKnown() && v.shape.Equal(g.shape) {
		return g
	}
	return m.ReduceToShapeOf(g, v)
}

func inputs2(op *Op) (*Variable, *Variable) {
	return op.g.vars[op.inputs[0]], op.g.vars[op.inputs[1]]
}

func addGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	g := grads[0]
	return []*Variable{unbroadcast(m, g, a), unbroadcast(m, g, b)}, nil
}

func subGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	g := grads[0]
	return []*Variable{unbroadcast(m, g, a), unbroadcast(m, m.Neg(g), b)}, nil
}

func mulGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	g := grads[0]
	return []*Variable{unbroadcast(m, m.Mul(g, b), a), unbroadcast(m, m.Mul(g, a), b)}, nil
}

func divGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	g := grads[0]
	// d(a/b)/db = -a/b²
	db := m.Neg(m.Div(m.Mul(g, a), m.Square(b)))
	return []*Variable{unbroadcast(m, m.Div(g, b), a), unbroadcast(m, db, b)}, nil
}

func powGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	y := op.g.vars[op.outputs[0]]
	g := grads[0]
	da := m.Mul(g, m.Mul(b, m.Pow(a, m.ScalarAdd(b, -1))))
	db := m.Mul(g, m.Mul(y, m.Log(a)))
	return []*Variable{unbroadcast(m, da, a), unbroadcast(m, db, b)}, nil
}

// maximumGrad routes the gradient to a where a >= b, matching the forward tie rule.
func maximumGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	g := grads[0]
	zeros := m.ZerosLike(g)
	toB := m.Less(a, b)
	return []*Variable{
		unbroadcast(m, m.Where(toB, zeros, g), a),
		unbroadcast(m, m.Where(toB, g, zeros), b),
	}, nil
}

func scalarMulGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	c := op.attrs.(ops.ScalarAttrs).Value
	return []*Variable{m.ScalarMul(grads[0], c)}, nil
}

func matMulGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	a, b := inputs2(op)
	g := grads[0]
	attrs := op.attrs.(ops.MatMulAttrs)
	switch {
	case !attrs.TransposeA && !attrs.TransposeB:
		// C = AB: dA = G·Bᵀ, dB = Aᵀ·G
		return []*Variable{m.MatMulT(g, b, false, true), m.MatMulT(a, g, true, false)}, nil
	case attrs.TransposeA && !attrs.TransposeB:
		// C = AᵀB: dA = B·Gᵀ, dB = A·G
		return []*Variable{m.MatMulT(b, g, false, true), m.MatMulT(a, g, false, false)}, nil
	case !attrs.TransposeA && attrs.TransposeB:
		// C = ABᵀ: dA = G·B, dB = Gᵀ·A
		return []*Variable{m.MatMulT(g, b, false, false), m.MatMulT(g, a, true, false)}, nil
	default:
		// C = AᵀBᵀ: dA = Bᵀ·Gᵀ, dB = Gᵀ·Aᵀ
		return []*Variable{m.MatMulT(b, g, true, true), m.MatMulT(g, a, true, true)}, nil
	}
}

func reshapeGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	x := op.g.vars[op.inputs[0]]
	shape, err := gradShape(op, x)
	if err != nil {
		return nil, err
	}
	return []*Variable{m.Reshape(grads[0], shape...)}, nil
}

func transposeGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	perm := op.attrs.(ops.TransposeAttrs).Perm
	if len(perm) == 0 {
		return []*Variable{m.Transpose(grads[0])}, nil
	}
	inverse := make([]int, len(perm))
	for i, p := range perm {
		inverse[p] = i
	}
	return []*Variable{m.Transpose(grads[0], inverse...)}, nil
}

func broadcastGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	x := op.g.vars[op.inputs[0]]
	return []*Variable{unbroadcast(m, grads[0], x)}, nil
}

func concatGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	axis := op.attrs.(ops.AxisAttrs).Axis
	in := append([]*Variable{grads[0]}, op.Inputs()...)
	return m.Op(ops.ConcatBp, ops.AxisAttrs{Axis: axis}, in...), nil
}

func splitGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	axis := op.attrs.(ops.SplitAttrs).Axis
	return []*Variable{m.Concat(axis, grads...)}, nil
}

func reduceGrad(bp ops.Kind) backwardRule {
	return func(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
		x := op.g.vars[op.inputs[0]]
		return []*Variable{m.op1(bp, op.attrs, x, grads[0])}, nil
	}
}

// softmaxGrad computes s ⊙ (g - Σ(g ⊙ s)) along the softmax axis.
func softmaxGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	s := op.g.vars[op.outputs[0]]
	g := grads[0]
	axis := op.attrs.(ops.AxisAttrs).Axis
	dot := m.Sum(m.Mul(g, s), true, axis)
	return []*Variable{m.Mul(s, m.Sub(g, dot))}, nil
}

func conv2DGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	in := op.Inputs()
	x, w, g := in[0], in[1], grads[0]
	dx := m.op1(ops.Conv2DInputBp, op.attrs, x, w, g)
	dw := m.op1(ops.Conv2DWeightBp, op.attrs, x, w, g)
	if len(in) == 2 {
		return []*Variable{dx, dw}, nil
	}
	return []*Variable{dx, dw, m.Sum(g, false, 0, 2, 3)}, nil
}

func maxPool2DGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	x := op.g.vars[op.inputs[0]]
	return []*Variable{m.op1(ops.MaxPool2DBp, op.attrs, x, grads[0])}, nil
}

// castGrad casts the gradient back for float to float casts. Casts to or
// from integer types have no gradient.
func castGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	x := op.g.vars[op.inputs[0]]
	if !x.dtype.IsFloat() || !grads[0].dtype.IsFloat() {
		return []*Variable{nil}, nil
	}
	return []*Variable{m.Cast(grads[0], x.dtype)}, nil
}

func whereGrad(m *Math, op *Op, grads []*Variable) ([]*Variable, error) {
	in := op.Inputs()
	cond, x, y, g := in[0], in[1], in[2], grads[0]
	zeros := m.ZerosLike(g)
	return []*Variable{
		nil,
		unbroadcast(m, m.Where(cond, g, zeros), x),
		unbroadcast(m, m.Where(cond, zeros, g), y),
	}, nil
}
