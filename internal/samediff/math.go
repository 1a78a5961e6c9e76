package samediff

import (
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

// Math is a fluent builder over CreateOp. The first error is kept and every
// later call returns nil, so a chain can be built and checked once:
//
//	m := g.Math()
//	y := m.Add(m.MatMul(x, w), b)
//	loss := m.Name("loss").Mean(y, false)
//	if err := m.Err(); err != nil { ... }
//
// Name returns a builder that names only the op it creates, so nested calls
// such as m.Name("loss").Sum(m.Tanh(x), false) name the outer op.
type Math struct {
	g    *Graph
	err  *error
	name string
}

// Math returns a builder for g.
func (g *Graph) Math() *Math {
	return &Math{g: g, err: new(error)}
}

// Err returns the first error encountered.
func (m *Math) Err() error { return *m.err }

// Name returns a builder sharing m's error that names the next op it creates.
func (m *Math) Name(name string) *Math {
	return &Math{g: m.g, err: m.err, name: name}
}

// Op creates an op of any kind and returns all of its outputs.
func (m *Math) Op(kind ops.Kind, attrs ops.Attrs, inputs ...*Variable) []*Variable {
	if *m.err != nil {
		return nil
	}
	var opts []OpOption
	if m.name != "" {
		opts = append(opts, WithOpName(m.name))
		m.name = ""
	}
	outs, err := m.g.CreateOp(kind, inputs, attrs, opts...)
	if err != nil {
		*m.err = err
		return nil
	}
	return outs
}

func (m *Math) op1(kind ops.Kind, attrs ops.Attrs, inputs ...*Variable) *Variable {
	outs := m.Op(kind, attrs, inputs...)
	if outs == nil {
		return nil
	}
	return outs[0]
}

func (m *Math) Add(a, b *Variable) *Variable      { return m.op1(ops.Add, nil, a, b) }
func (m *Math) Sub(a, b *Variable) *Variable      { return m.op1(ops.Sub, nil, a, b) }
func (m *Math) Mul(a, b *Variable) *Variable      { return m.op1(ops.Mul, nil, a, b) }
func (m *Math) Div(a, b *Variable) *Variable      { return m.op1(ops.Div, nil, a, b) }
func (m *Math) Pow(a, b *Variable) *Variable      { return m.op1(ops.Pow, nil, a, b) }
func (m *Math) Maximum(a, b *Variable) *Variable  { return m.op1(ops.Maximum, nil, a, b) }
func (m *Math) FloorDiv(a, b *Variable) *Variable { return m.op1(ops.FloorDiv, nil, a, b) }
func (m *Math) FloorMod(a, b *Variable) *Variable { return m.op1(ops.FloorMod, nil, a, b) }

func (m *Math) Neg(x *Variable) *Variable      { return m.op1(ops.Neg, nil, x) }
func (m *Math) Abs(x *Variable) *Variable      { return m.op1(ops.Abs, nil, x) }
func (m *Math) Exp(x *Variable) *Variable      { return m.op1(ops.Exp, nil, x) }
func (m *Math) Log(x *Variable) *Variable      { return m.op1(ops.Log, nil, x) }
func (m *Math) Sqrt(x *Variable) *Variable     { return m.op1(ops.Sqrt, nil, x) }
func (m *Math) Square(x *Variable) *Variable   { return m.op1(ops.Square, nil, x) }
func (m *Math) Tanh(x *Variable) *Variable     { return m.op1(ops.Tanh, nil, x) }
func (m *Math) Sigmoid(x *Variable) *Variable  { return m.op1(ops.Sigmoid, nil, x) }
func (m *Math) Relu(x *Variable) *Variable     { return m.op1(ops.Relu, nil, x) }
func (m *Math) Sin(x *Variable) *Variable      { return m.op1(ops.Sin, nil, x) }
func (m *Math) Cos(x *Variable) *Variable      { return m.op1(ops.Cos, nil, x) }
func (m *Math) Identity(x *Variable) *Variable { return m.op1(ops.Identity, nil, x) }
func (m *Math) Sign(x *Variable) *Variable     { return m.op1(ops.Sign, nil, x) }
func (m *Math) Step(x *Variable) *Variable     { return m.op1(ops.Step, nil, x) }

// ScalarAdd returns x + c.
func (m *Math) ScalarAdd(x *Variable, c float64) *Variable {
	return m.op1(ops.ScalarAdd, ops.ScalarAttrs{Value: c}, x)
}

// ScalarMul returns x * c.
func (m *Math) ScalarMul(x *Variable, c float64) *Variable {
	return m.op1(ops.ScalarMul, ops.ScalarAttrs{Value: c}, x)
}

// MatMul returns the rank-2 product a·b.
func (m *Math) MatMul(a, b *Variable) *Variable {
	return m.op1(ops.MatMul, ops.MatMulAttrs{}, a, b)
}

// MatMulT returns op(a)·op(b) where op optionally transposes.
func (m *Math) MatMulT(a, b *Variable, transposeA, transposeB bool) *Variable {
	return m.op1(ops.MatMul, ops.MatMulAttrs{TransposeA: transposeA, TransposeB: transposeB}, a, b)
}

// Reshape reshapes x; one dimension may be -1.
func (m *Math) Reshape(x *Variable, shape ...int) *Variable {
	return m.op1(ops.Reshape, ops.ReshapeAttrs{Shape: tensor.Shape(shape)}, x)
}

// Transpose permutes the axes of x; no perm reverses them.
func (m *Math) Transpose(x *Variable, perm ...int) *Variable {
	return m.op1(ops.Transpose, ops.TransposeAttrs{Perm: perm}, x)
}

// BroadcastTo broadcasts x to shape.
func (m *Math) BroadcastTo(x *Variable, shape ...int) *Variable {
	return m.op1(ops.BroadcastTo, ops.BroadcastAttrs{Shape: tensor.Shape(shape)}, x)
}

// Concat joins xs along axis.
func (m *Math) Concat(axis int, xs ...*Variable) *Variable {
	return m.op1(ops.Concat, ops.AxisAttrs{Axis: axis}, xs...)
}

// Split cuts x into num equal parts along axis.
func (m *Math) Split(x *Variable, axis, num int) []*Variable {
	return m.Op(ops.Split, ops.SplitAttrs{Axis: axis, Num: num}, x)
}

// ReduceToShapeOf sums x down to the shape of ref.
func (m *Math) ReduceToShapeOf(x, ref *Variable) *Variable {
	return m.op1(ops.ReduceToShapeOf, nil, x, ref)
}

// Sum reduces over axes, or all axes when none are given.
func (m *Math) Sum(x *Variable, keepDims bool, axes ...int) *Variable {
	return m.op1(ops.ReduceSum, ops.ReduceAttrs{Axes: axes, KeepDims: keepDims}, x)
}

// Mean averages over axes, or all axes when none are given.
func (m *Math) Mean(x *Variable, keepDims bool, axes ...int) *Variable {
	return m.op1(ops.ReduceMean, ops.ReduceAttrs{Axes: axes, KeepDims: keepDims}, x)
}

// Max takes the maximum over axes, or all axes when none are given.
func (m *Math) Max(x *Variable, keepDims bool, axes ...int) *Variable {
	return m.op1(ops.ReduceMax, ops.ReduceAttrs{Axes: axes, KeepDims: keepDims}, x)
}

// Softmax normalizes x along axis.
func (m *Math) Softmax(x *Variable, axis int) *Variable {
	return m.op1(ops.Softmax, ops.AxisAttrs{Axis: axis}, x)
}

// Conv2D convolves NCHW input x with OIHW kernel w. bias may be nil.
func (m *Math) Conv2D(x, w, bias *Variable, stride, padding int) *Variable {
	attrs := ops.Conv2DAttrs{Stride: stride, Padding: padding}
	if bias == nil {
		return m.op1(ops.Conv2D, attrs, x, w)
	}
	return m.op1(ops.Conv2D, attrs, x, w, bias)
}

// MaxPool2D pools NCHW input x.
func (m *Math) MaxPool2D(x *Variable, kernel, stride int) *Variable {
	return m.op1(ops.MaxPool2D, ops.Pool2DAttrs{Kernel: kernel, Stride: stride}, x)
}

func (m *Math) Equal(a, b *Variable) *Variable   { return m.op1(ops.Equal, nil, a, b) }
func (m *Math) Greater(a, b *Variable) *Variable { return m.op1(ops.Greater, nil, a, b) }
func (m *Math) Less(a, b *Variable) *Variable    { return m.op1(ops.Less, nil, a, b) }

// ArgMax returns the index of the first maximum along axis.
func (m *Math) ArgMax(x *Variable, axis int) *Variable {
	return m.op1(ops.ArgMax, ops.AxisAttrs{Axis: axis}, x)
}

// Cast converts x to dtype.
func (m *Math) Cast(x *Variable, dtype tensor.DataType) *Variable {
	return m.op1(ops.Cast, ops.CastAttrs{DType: dtype}, x)
}

// Where selects x where cond is true and y elsewhere.
func (m *Math) Where(cond, x, y *Variable) *Variable {
	return m.op1(ops.Where, nil, cond, x, y)
}

func (m *Math) OnesLike(x *Variable) *Variable  { return m.op1(ops.OnesLike, nil, x) }
func (m *Math) ZerosLike(x *Variable) *Variable { return m.op1(ops.ZerosLike, nil, x) }
