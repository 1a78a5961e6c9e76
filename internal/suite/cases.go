package suite

import (
	"math/rand/v2"

	"github.com/born-ml/samediff/internal/gradcheck"
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// Case is one op validation: a small graph around a single op kind and the
// checks to run on it.
type Case struct {
	Name string
	Kind ops.Kind
	// Build creates a fresh graph and test case; src seeds every random input.
	Build func(src rand.Source) (*gradcheck.TestCase, error)
	// Adjust loosens numeric settings for cases that need it. Nil keeps them.
	Adjust func(gradcheck.Config) gradcheck.Config
}

// gradCase builds a case checking gradients of the weighted loss of the
// outputs returned by fn.
func gradCase(name string, kind ops.Kind, fn func(b *builder) []*samediff.Variable) Case {
	return Case{Name: name, Kind: kind, Build: func(src rand.Source) (*gradcheck.TestCase, error) {
		b := newBuilder(name, src)
		outs := fn(b)
		if err := b.firstErr(); err != nil {
			return nil, err
		}
		return b.gradient(outs...)
	}}
}

// fwdCase builds a forward-only case for kinds without a useful gradient.
func fwdCase(name string, kind ops.Kind, fn func(b *builder) (*samediff.Variable, *tensor.RawTensor, error)) Case {
	return Case{Name: name, Kind: kind, Build: func(src rand.Source) (*gradcheck.TestCase, error) {
		b := newBuilder(name, src)
		out, want, err := fn(b)
		return b.forward(out, want, err)
	}}
}

func one(v *samediff.Variable) []*samediff.Variable { return []*samediff.Variable{v} }

func unaryCase(kind ops.Kind, input func(b *builder) *samediff.Variable) Case {
	return gradCase(kind.String(), kind, func(b *builder) []*samediff.Variable {
		return b.m.Op(kind, nil, input(b))
	})
}

func normal23(b *builder) *samediff.Variable   { return b.normal("x", 2, 3) }
func positive23(b *builder) *samediff.Variable { return b.uniform("x", 0.5, 3, 2, 3) }
func nonZero23(b *builder) *samediff.Variable  { return b.awayFromZero("x", 2, 3) }

// Cases returns the built-in validation cases, at least one per op kind that
// graphs can use directly. Backprop helper kinds are covered through the
// gradients of the kinds that emit them.
func Cases() []Case {
	return []Case{
		// Broadcasting binary arithmetic.
		gradCase("add", ops.Add, func(b *builder) []*samediff.Variable {
			return one(b.m.Add(b.normal("a", 3, 1), b.normal("b", 1, 4)))
		}),
		gradCase("sub", ops.Sub, func(b *builder) []*samediff.Variable {
			return one(b.m.Sub(b.normal("a", 2, 3), b.normal("b", 3)))
		}),
		gradCase("mul", ops.Mul, func(b *builder) []*samediff.Variable {
			return one(b.m.Mul(b.normal("a", 2, 3), b.normal("b", 2, 3)))
		}),
		gradCase("div", ops.Div, func(b *builder) []*samediff.Variable {
			return one(b.m.Div(b.normal("a", 2, 3), b.awayFromZero("b", 2, 3)))
		}),
		gradCase("pow", ops.Pow, func(b *builder) []*samediff.Variable {
			return one(b.m.Pow(b.uniform("a", 0.5, 2, 2, 3), b.uniform("b", -1, 2, 2, 3)))
		}),
		gradCase("maximum", ops.Maximum, func(b *builder) []*samediff.Variable {
			return one(b.m.Maximum(b.normal("a", 2, 3), b.normal("b", 2, 3)))
		}),
		fwdCase("floordiv", ops.FloorDiv, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.FloorDiv(b.values("a", tensor.Shape{4}, 7, -7, 5.5, 3), b.values("b", tensor.Shape{4}, 2, 2, -2, 0.5))
			want, err := tensor.FromFloat64s(tensor.Shape{4}, []float64{3, -4, -3, 6})
			return out, want, err
		}),
		fwdCase("floormod", ops.FloorMod, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.FloorMod(b.values("a", tensor.Shape{4}, 7, -7, 5.5, 3), b.values("b", tensor.Shape{4}, 2, 2, -2, 0.5))
			want, err := tensor.FromFloat64s(tensor.Shape{4}, []float64{1, 1, -0.5, 0})
			return out, want, err
		}),

		// Elementwise unary.
		unaryCase(ops.Neg, normal23),
		unaryCase(ops.Abs, nonZero23),
		unaryCase(ops.Exp, normal23),
		unaryCase(ops.Log, positive23),
		unaryCase(ops.Sqrt, positive23),
		unaryCase(ops.Square, normal23),
		unaryCase(ops.Tanh, normal23),
		unaryCase(ops.Sigmoid, normal23),
		unaryCase(ops.Relu, nonZero23),
		unaryCase(ops.Sin, normal23),
		unaryCase(ops.Cos, normal23),
		unaryCase(ops.Identity, normal23),
		fwdCase("sign", ops.Sign, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.Sign(b.values("x", tensor.Shape{3}, -2, 0, 3))
			want, err := tensor.FromFloat64s(tensor.Shape{3}, []float64{-1, 0, 1})
			return out, want, err
		}),
		fwdCase("step", ops.Step, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.Step(b.values("x", tensor.Shape{3}, -1, 0, 2))
			want, err := tensor.FromFloat64s(tensor.Shape{3}, []float64{0, 0, 1})
			return out, want, err
		}),

		// Scalar and linear algebra.
		gradCase("scalar_add", ops.ScalarAdd, func(b *builder) []*samediff.Variable {
			return one(b.m.ScalarAdd(b.normal("x", 2, 3), 1.5))
		}),
		gradCase("scalar_mul", ops.ScalarMul, func(b *builder) []*samediff.Variable {
			return one(b.m.ScalarMul(b.normal("x", 2, 3), -2.5))
		}),
		gradCase("matmul", ops.MatMul, func(b *builder) []*samediff.Variable {
			return one(b.m.MatMul(b.normal("a", 2, 3), b.normal("b", 3, 4)))
		}),
		gradCase("matmul/transpose", ops.MatMul, func(b *builder) []*samediff.Variable {
			return one(b.m.MatMulT(b.normal("a", 3, 2), b.normal("b", 4, 3), true, true))
		}),

		// Shape manipulation.
		gradCase("reshape", ops.Reshape, func(b *builder) []*samediff.Variable {
			return one(b.m.Reshape(b.normal("x", 2, 3), 3, -1))
		}),
		gradCase("transpose", ops.Transpose, func(b *builder) []*samediff.Variable {
			return one(b.m.Transpose(b.normal("x", 2, 3, 4), 2, 0, 1))
		}),
		gradCase("broadcast_to", ops.BroadcastTo, func(b *builder) []*samediff.Variable {
			return one(b.m.BroadcastTo(b.normal("x", 3), 2, 3))
		}),
		gradCase("concat", ops.Concat, func(b *builder) []*samediff.Variable {
			return one(b.m.Concat(1, b.normal("a", 2, 1), b.normal("b", 2, 3)))
		}),
		gradCase("split", ops.Split, func(b *builder) []*samediff.Variable {
			return b.m.Split(b.normal("x", 2, 4), 1, 2)
		}),
		fwdCase("reduce_to_shape_of", ops.ReduceToShapeOf, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			x := b.values("x", tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
			ref := b.values("ref", tensor.Shape{1, 3}, 0, 0, 0)
			want, err := tensor.FromFloat64s(tensor.Shape{1, 3}, []float64{5, 7, 9})
			return b.m.ReduceToShapeOf(x, ref), want, err
		}),

		// Reductions.
		gradCase("reduce_sum", ops.ReduceSum, func(b *builder) []*samediff.Variable {
			return one(b.m.Sum(b.normal("x", 2, 3, 4), false, 1))
		}),
		gradCase("reduce_sum/all", ops.ReduceSum, func(b *builder) []*samediff.Variable {
			return one(b.m.Sum(b.normal("x", 2, 3), false))
		}),
		gradCase("reduce_mean", ops.ReduceMean, func(b *builder) []*samediff.Variable {
			return one(b.m.Mean(b.normal("x", 2, 3), true, 0))
		}),
		gradCase("reduce_max", ops.ReduceMax, func(b *builder) []*samediff.Variable {
			return one(b.m.Max(b.normal("x", 3, 4), false, 1))
		}),

		// Neural network ops.
		gradCase("softmax", ops.Softmax, func(b *builder) []*samediff.Variable {
			return one(b.m.Softmax(b.normal("x", 2, 5), -1))
		}),
		gradCase("conv2d", ops.Conv2D, func(b *builder) []*samediff.Variable {
			return one(b.m.Conv2D(b.normal("x", 1, 2, 5, 5), b.normal("w", 3, 2, 3, 3), b.normal("bias", 3), 1, 1))
		}),
		gradCase("conv2d/stride", ops.Conv2D, func(b *builder) []*samediff.Variable {
			return one(b.m.Conv2D(b.normal("x", 2, 1, 5, 5), b.normal("w", 2, 1, 3, 3), nil, 2, 0))
		}),
		gradCase("maxpool2d", ops.MaxPool2D, func(b *builder) []*samediff.Variable {
			return one(b.m.MaxPool2D(b.normal("x", 1, 2, 4, 4), 2, 2))
		}),

		// Comparison and selection.
		fwdCase("equal", ops.Equal, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.Equal(b.values("a", tensor.Shape{3}, 1, 2, 3), b.values("b", tensor.Shape{3}, 1, 0, 3))
			want, err := tensor.FromBools(tensor.Shape{3}, []bool{true, false, true})
			return out, want, err
		}),
		fwdCase("greater", ops.Greater, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.Greater(b.values("a", tensor.Shape{3}, 1, 2, 3), b.values("b", tensor.Shape{3}, 1, 0, 3))
			want, err := tensor.FromBools(tensor.Shape{3}, []bool{false, true, false})
			return out, want, err
		}),
		fwdCase("less", ops.Less, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.Less(b.values("a", tensor.Shape{3}, 1, 2, 3), b.values("b", tensor.Shape{3}, 1, 0, 4))
			want, err := tensor.FromBools(tensor.Shape{3}, []bool{false, false, true})
			return out, want, err
		}),
		fwdCase("argmax", ops.ArgMax, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.ArgMax(b.values("x", tensor.Shape{2, 3}, 1, 5, 2, 7, 0, 7), 1)
			want, err := tensor.FromInt64s(tensor.Shape{2}, []int64{1, 0})
			return out, want, err
		}),
		fwdCase("cast", ops.Cast, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.Cast(b.values("x", tensor.Shape{3}, 1.7, -1.7, 0), tensor.Int32)
			want, err := tensor.FromValues(tensor.Shape{3}, tensor.Int32, []float64{1, -1, 0})
			return out, want, err
		}),
		{
			Name: "cast/float32",
			Kind: ops.Cast,
			Build: gradCase("cast/float32", ops.Cast, func(b *builder) []*samediff.Variable {
				return one(b.m.Cast(b.m.Cast(b.normal("x", 2, 3), tensor.Float32), tensor.Float64))
			}).Build,
			// Float32 rounding needs a larger step and a looser rule.
			Adjust: func(cfg gradcheck.Config) gradcheck.Config {
				cfg.Epsilon = max(cfg.Epsilon, 1e-3)
				cfg.MaxRelError = max(cfg.MaxRelError, 1e-3)
				cfg.MinAbsError = max(cfg.MinAbsError, 1e-5)
				return cfg
			},
		},
		gradCase("where", ops.Where, func(b *builder) []*samediff.Variable {
			mask := b.values("mask", tensor.Shape{2, 3}, 1, -1, 2, -2, 0.5, -0.5)
			cond := b.m.Greater(mask, b.m.ZerosLike(mask))
			return one(b.m.Where(cond, b.normal("x", 2, 3), b.normal("y", 2, 3)))
		}),
		fwdCase("ones_like", ops.OnesLike, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.OnesLike(b.values("x", tensor.Shape{2}, 3, -4))
			want, err := tensor.FromFloat64s(tensor.Shape{2}, []float64{1, 1})
			return out, want, err
		}),
		fwdCase("zeros_like", ops.ZerosLike, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
			out := b.m.ZerosLike(b.values("x", tensor.Shape{2}, 3, -4))
			want, err := tensor.FromFloat64s(tensor.Shape{2}, []float64{0, 0})
			return out, want, err
		}),
	}
}
