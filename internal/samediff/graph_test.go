package samediff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

func values(t *testing.T, shape tensor.Shape, data ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat64s(shape, data)
	require.NoError(t, err)
	return r
}

func TestCreateVariables(t *testing.T) {
	g := New(WithName("test"))
	x, err := g.Placeholder("x", tensor.Float64, tensor.Shape{-1, 4})
	require.NoError(t, err)
	w, err := g.Var("w", values(t, tensor.Shape{4, 2}, 1, 2, 3, 4, 5, 6, 7, 8))
	require.NoError(t, err)
	c, err := g.Constant("c", tensor.Scalar(2, tensor.Float64))
	require.NoError(t, err)

	assert.Equal(t, RolePlaceholder, x.Role())
	assert.Equal(t, tensor.Shape{-1, 4}, x.Shape())
	assert.True(t, w.IsTrainable())
	assert.False(t, c.IsTrainable())
	assert.True(t, x.IsGradCandidate())
	assert.Nil(t, x.Producer())
	assert.Equal(t, "test", g.Name())
	assert.Equal(t, 3, g.NumVariables())
	assert.Len(t, g.TrainableVariables(), 1)
	assert.Len(t, g.Placeholders(), 1)

	got, err := g.Variable("w")
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = g.Variable("nope")
	var unknown *UnknownVariableError
	assert.ErrorAs(t, err, &unknown)
}

func TestDuplicateNames(t *testing.T) {
	g := New()
	_, err := g.Placeholder("x", tensor.Float64, tensor.Shape{2})
	require.NoError(t, err)

	_, err = g.Placeholder("x", tensor.Float32, tensor.Shape{2})
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "x", dup.Name)

	x, _ := g.Variable("x")
	_, err = g.CreateOp(ops.Neg, []*Variable{x}, nil, WithOutputNames("x"))
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, 1, g.NumVariables(), "failed op must not add variables")
	assert.Equal(t, 0, g.NumOps())
}

func TestAutoNames(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("", tensor.Float64, tensor.Shape{2})
	assert.Equal(t, "placeholder", x.Name())

	m := g.Math()
	a := m.Neg(x)
	b := m.Neg(a)
	parts := m.Split(m.Concat(0, a, b), 0, 2)
	require.NoError(t, m.Err())

	assert.Equal(t, "neg", a.Name())
	assert.Equal(t, "neg_1", b.Name())
	require.Len(t, parts, 2)
	assert.Equal(t, "split:0", parts[0].Name())
	assert.Equal(t, "split:1", parts[1].Name())
	assert.Equal(t, 1, parts[1].OutputIndex())
	assert.Equal(t, ops.Split, parts[1].Producer().Kind())
}

func TestNamedOp(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{2})
	y := g.Math().Name("y").Square(x)
	require.NotNil(t, y)
	assert.Equal(t, "y", y.Name())
	assert.NotNil(t, g.Op("y"))

	outs, err := g.CreateOp(ops.Split, []*Variable{x}, ops.SplitAttrs{Axis: 0, Num: 2}, WithOutputNames("lo", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", outs[1].Name())

	_, err = g.CreateOp(ops.Split, []*Variable{x}, ops.SplitAttrs{Axis: 0, Num: 2}, WithOutputNames("only"))
	var cfg *InvalidConfigError
	assert.ErrorAs(t, err, &cfg)
}

func TestNameAppliesToOuterOp(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{2})
	m := g.Math()
	loss := m.Name("loss").Sum(m.Tanh(x), false)
	require.NoError(t, m.Err())
	assert.Equal(t, "loss", loss.Name())
	assert.Equal(t, ops.ReduceSum, g.Op("loss").Kind())

	y, _ := g.Placeholder("y", tensor.Float64, tensor.Shape{3})
	assert.Nil(t, m.Name("z").Add(x, y))
	assert.Error(t, m.Err(), "errors from a named builder are shared")
}

func TestCreateOpErrors(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{3})
	y, _ := g.Placeholder("y", tensor.Float64, tensor.Shape{4})
	i, _ := g.Placeholder("i", tensor.Int32, tensor.Shape{3})
	other, _ := New().Placeholder("o", tensor.Float64, tensor.Shape{3})

	_, err := g.CreateOp(ops.Add, []*Variable{x}, nil)
	var arity *InvalidArityError
	assert.ErrorAs(t, err, &arity)

	_, err = g.CreateOp(ops.Add, []*Variable{x, y}, nil)
	var shape *ShapeMismatchError
	assert.ErrorAs(t, err, &shape)

	_, err = g.CreateOp(ops.Add, []*Variable{x, i}, nil)
	var dtype *TypeMismatchError
	assert.ErrorAs(t, err, &dtype)

	_, err = g.CreateOp(ops.ScalarMul, []*Variable{x}, nil)
	var cfg *InvalidConfigError
	assert.ErrorAs(t, err, &cfg)
	assert.True(t, errors.Is(err, ops.ErrAttrs))

	_, err = g.CreateOp(ops.Add, []*Variable{x, other}, nil)
	assert.ErrorAs(t, err, &cfg)

	_, err = g.CreateOp(ops.Kind(999), []*Variable{x}, nil)
	assert.ErrorAs(t, err, &cfg)

	assert.Equal(t, 0, g.NumOps())
}

func TestMathKeepsFirstError(t *testing.T) {
	g := New()
	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{3})
	y, _ := g.Placeholder("y", tensor.Float64, tensor.Shape{4})

	m := g.Math()
	bad := m.Add(x, y)
	assert.Nil(t, bad)
	assert.Nil(t, m.Neg(bad))
	var shape *ShapeMismatchError
	assert.ErrorAs(t, m.Err(), &shape)
	assert.Equal(t, 0, g.NumOps())
}

func TestStaticShapeInference(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{-1, 4})
	w, _ := g.Var("w", values(t, tensor.Shape{4, 3}, make([]float64, 12)...))
	b, _ := g.Var("b", values(t, tensor.Shape{3}, 0, 0, 0))

	y := m.Add(m.MatMul(x, w), b)
	loss := m.Mean(y, false)
	require.NoError(t, m.Err())
	assert.Equal(t, tensor.Shape{-1, 3}, y.Shape())
	assert.Equal(t, tensor.Shape{}, loss.Shape())
	assert.Equal(t, tensor.Float64, loss.DType())

	idx := m.ArgMax(y, -1)
	require.NoError(t, m.Err())
	assert.Equal(t, tensor.Int64, idx.DType())
}

func TestAssociateValue(t *testing.T) {
	g := New()
	w, err := g.CreateVariable("w", RoleVariable, tensor.Float64, tensor.Shape{2})
	require.NoError(t, err)
	assert.Nil(t, w.Value())

	require.NoError(t, g.AssociateValue("w", values(t, tensor.Shape{2}, 1, 2)))
	assert.Equal(t, []float64{1, 2}, w.Value().AsFloat64())

	err = g.AssociateValue("w", tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32))
	var dtype *TypeMismatchError
	assert.ErrorAs(t, err, &dtype)

	err = g.AssociateValue("w", values(t, tensor.Shape{3}, 1, 2, 3))
	var shape *ShapeMismatchError
	assert.ErrorAs(t, err, &shape)

	err = g.AssociateValue("missing", values(t, tensor.Shape{2}, 1, 2))
	var unknown *UnknownVariableError
	assert.ErrorAs(t, err, &unknown)

	_, _ = g.Placeholder("p", tensor.Float64, tensor.Shape{2})
	var cfg *InvalidConfigError
	assert.ErrorAs(t, g.AssociateValue("p", values(t, tensor.Shape{2}, 1, 2)), &cfg)
}

func TestCreateVariableValidation(t *testing.T) {
	g := New()
	var cfg *InvalidConfigError

	_, err := g.CreateVariable("a", RoleArray, tensor.Float64, tensor.Shape{2})
	assert.ErrorAs(t, err, &cfg)

	_, err = g.CreateVariable("v", RoleVariable, tensor.Float64, tensor.Shape{-1})
	assert.ErrorAs(t, err, &cfg)

	_, err = g.CreateVariable("bad", RolePlaceholder, tensor.Float64, tensor.Shape{0})
	assert.ErrorAs(t, err, &cfg)

	_, err = g.Var("nil", nil)
	assert.ErrorAs(t, err, &cfg)
}

func TestLosses(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{2}, 1, 2))
	s := m.Name("s").Sum(x, false)
	idx := m.Name("idx").ArgMax(x, 0)
	require.NoError(t, m.Err())

	v0 := g.Version()
	require.NoError(t, g.SetLoss("s"))
	assert.Greater(t, g.Version(), v0)
	require.NoError(t, g.AddLoss("s"))
	assert.Len(t, g.Losses(), 1)
	assert.Same(t, s, g.Losses()[0])

	var cfg *InvalidConfigError
	assert.ErrorAs(t, g.AddLoss(idx.Name()), &cfg)
	var unknown *UnknownVariableError
	assert.ErrorAs(t, g.SetLoss("nope"), &unknown)
	assert.Len(t, g.Losses(), 1, "failed SetLoss keeps previous losses")
}

func TestSummary(t *testing.T) {
	g := New(WithName("demo"))
	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{-1, 2})
	g.Math().Name("y").Relu(x)

	s := g.Summary()
	assert.Contains(t, s, "demo")
	assert.Contains(t, s, "float64[?,2]")
	assert.Contains(t, s, "relu")
	assert.Contains(t, s, "placeholder")
	assert.Len(t, g.Consumers(x), 1)
}
