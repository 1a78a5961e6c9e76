package samediff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

func TestGradientDiamond(t *testing.T) {
	g := New()
	m := g.Math()
	xs := []float64{-1.2, 0.3, 2.5}
	x, _ := g.Var("x", values(t, tensor.Shape{3}, xs...))
	// x is read by both mul inputs and by sin; contributions must add up.
	y := m.Add(m.Mul(x, x), m.Sin(x))
	m.Name("loss").Sum(y, false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	got := grads["x"].AsFloat64()
	for i, v := range xs {
		assert.InDelta(t, 2*v+math.Cos(v), got[i], 1e-12)
	}

	name, err := g.GradientName("x")
	require.NoError(t, err)
	assert.Equal(t, "x-grad", name)
}

func TestGradientBroadcast(t *testing.T) {
	g := New()
	m := g.Math()
	a, _ := g.Var("a", values(t, tensor.Shape{3, 1}, 1, 2, 3))
	b, _ := g.Var("b", values(t, tensor.Shape{1, 4}, 1, 2, 3, 4))
	m.Name("loss").Sum(m.Add(a, b), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil)
	require.NoError(t, err)
	require.Len(t, grads, 2)
	assert.Equal(t, tensor.Shape{3, 1}, grads["a"].Shape())
	assert.Equal(t, []float64{4, 4, 4}, grads["a"].AsFloat64())
	assert.Equal(t, tensor.Shape{1, 4}, grads["b"].Shape())
	assert.Equal(t, []float64{3, 3, 3, 3}, grads["b"].AsFloat64())
}

func TestGradientMatMulBias(t *testing.T) {
	g := linearGraph(t)
	x := values(t, tensor.Shape{2, 2}, 1, 0, 0.5, 2)
	grads, err := g.CalculateGradients(map[string]*tensor.RawTensor{"x": x})
	require.NoError(t, err)
	require.Contains(t, grads, "x")
	require.Contains(t, grads, "w")
	require.Contains(t, grads, "b")

	// y = xw + b = [[1.5,1.5],[7,8.5]]: every unit is active, so dL/dy = 1.
	assert.Equal(t, []float64{2, 2}, grads["b"].AsFloat64())
	// dL/dw = xᵀ·1
	assert.InDeltaSlice(t, []float64{1.5, 1.5, 2, 2}, grads["w"].AsFloat64(), 1e-12)
	// dL/dx = 1·wᵀ
	assert.InDeltaSlice(t, []float64{3, 7, 3, 7}, grads["x"].AsFloat64(), 1e-12)
}

func TestGradientNoLoss(t *testing.T) {
	g := New()
	x, _ := g.Var("x", values(t, tensor.Shape{1}, 1))
	g.Math().Neg(x)

	_, err := g.CalculateGradients(nil)
	var noLoss *NoLossDefinedError
	assert.ErrorAs(t, err, &noLoss)
}

func TestGradientDisconnected(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{2}, 1, 2))
	unused, _ := g.Var("unused", values(t, tensor.Shape{3}, 1, 2, 3))
	m.Name("loss").Sum(m.Square(x), false)
	m.Neg(unused)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, grads["x"].AsFloat64())
	assert.Equal(t, []float64{0, 0, 0}, grads["unused"].AsFloat64())
}

func TestGradientThroughArgMaxIsZero(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{3}, 3, 1, 2))
	idx := m.Cast(m.ArgMax(x, 0), tensor.Float64)
	m.Name("loss").Add(idx, m.Sum(m.ScalarMul(x, 0), false))
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, grads["x"].AsFloat64())
}

func TestGradientPlaceholder(t *testing.T) {
	g := New()
	m := g.Math()
	p, _ := g.Placeholder("p", tensor.Float64, tensor.Shape{-1})
	m.Name("loss").Sum(m.Exp(p), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	feed := values(t, tensor.Shape{2}, 0, 1)
	grads, err := g.CalculateGradients(map[string]*tensor.RawTensor{"p": feed}, "p")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, math.E}, grads["p"].AsFloat64(), 1e-12)
}

func TestGradientMultipleLosses(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{2}, 1, 3))
	m.Name("l1").Sum(x, false)
	m.Name("l2").Sum(m.Square(x), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("l1", "l2"))

	grads, err := g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, grads["x"].AsFloat64())
}

func TestGradientSplitConcat(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{4}, 1, 2, 3, 4))
	y, _ := g.Var("y", values(t, tensor.Shape{2}, 5, 6))
	parts := m.Split(x, 0, 2)
	// Only the second half of x reaches the loss.
	joined := m.Concat(0, parts[1], y)
	m.Name("loss").Sum(m.Square(joined), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 6, 8}, grads["x"].AsFloat64())
	assert.Equal(t, []float64{10, 12}, grads["y"].AsFloat64())
}

func TestGradientSoftmaxSumsToZero(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{2, 3}, 0.1, 0.5, -0.3, 1, 2, 3))
	r, _ := g.Constant("r", values(t, tensor.Shape{2, 3}, 1, -2, 0.5, 3, 0.25, -1))
	m.Name("loss").Sum(m.Mul(m.Softmax(x, 1), r), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	got := grads["x"].AsFloat64()
	assert.InDelta(t, 0, got[0]+got[1]+got[2], 1e-12)
	assert.InDelta(t, 0, got[3]+got[4]+got[5], 1e-12)
}

func TestGradientMaximumTies(t *testing.T) {
	g := New()
	m := g.Math()
	a, _ := g.Var("a", values(t, tensor.Shape{3}, 1, 2, 3))
	b, _ := g.Var("b", values(t, tensor.Shape{3}, 3, 2, 1))
	m.Name("loss").Sum(m.Maximum(a, b), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, grads["a"].AsFloat64())
	assert.Equal(t, []float64{1, 0, 0}, grads["b"].AsFloat64())
}

func TestGradientUnsupported(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{2, 2}, 1, 2, 3, 4))
	ref, _ := g.Constant("ref", values(t, tensor.Shape{1, 2}, 0, 0))
	m.Name("loss").Sum(m.ReduceToShapeOf(x, ref), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	_, err := g.CalculateGradients(nil)
	var unsupported *UnsupportedGradientError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ops.ReduceToShapeOf, unsupported.Kind)
}

func TestGradGraphCachedByVersion(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{2}, 1, 2))
	m.Name("loss").Sum(m.Square(x), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	first, err := g.GradGraph()
	require.NoError(t, err)
	again, err := g.GradGraph()
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Same(t, g, first.Parent())

	m.Name("extra").Sum(x, false)
	require.NoError(t, g.AddLoss("extra"))
	rebuilt, err := g.GradGraph()
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)

	grads, err := g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, grads["x"].AsFloat64())

	_, err = rebuilt.GradGraph()
	var cfg *InvalidConfigError
	assert.ErrorAs(t, err, &cfg)
}

func TestGradientSeesUpdatedValues(t *testing.T) {
	g := New()
	m := g.Math()
	x, _ := g.Var("x", values(t, tensor.Shape{1}, 2))
	m.Name("loss").Sum(m.Square(x), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	grads, err := g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	assert.Equal(t, 4.0, grads["x"].Float(0))

	x.Value().SetFloat(0, 5)
	grads, err = g.CalculateGradients(nil, "x")
	require.NoError(t, err)
	assert.Equal(t, 10.0, grads["x"].Float(0))
}

func TestGradientNonCandidate(t *testing.T) {
	g := New()
	m := g.Math()
	c, _ := g.Constant("c", values(t, tensor.Shape{1}, 2))
	x, _ := g.Var("x", values(t, tensor.Shape{1}, 3))
	m.Name("loss").Sum(m.Mul(c, x), false)
	require.NoError(t, m.Err())
	require.NoError(t, g.SetLoss("loss"))

	_, err := g.CalculateGradients(nil, "c")
	var cfg *InvalidConfigError
	assert.ErrorAs(t, err, &cfg)
}
