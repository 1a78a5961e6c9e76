package suite

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/samediff/internal/gradcheck"
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

func TestEveryKindCovered(t *testing.T) {
	assert.Empty(t, Uncovered(Cases()))
	assert.True(t, Internal(ops.Conv2DInputBp))
	assert.False(t, Internal(ops.Conv2D))
}

func TestCaseNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range Cases() {
		assert.False(t, seen[c.Name], "duplicate case %s", c.Name)
		seen[c.Name] = true
		assert.True(t, c.Kind.Valid(), c.Name)
	}
}

func TestBuiltinCasesPass(t *testing.T) {
	results, err := Run(context.Background(), Cases(), Options{Seed: 7, Parallelism: 4})
	require.NoError(t, err)
	require.Len(t, results, len(Cases()))
	for _, r := range results {
		if !assert.True(t, r.Passed, r.Case) {
			t.Logf("%s: err=%v\n%s", r.Case, r.Err, r.Report.String())
		}
	}
}

func TestRunDeterministicPerCase(t *testing.T) {
	c := gradCase("probe", ops.Identity, func(b *builder) []*samediff.Variable {
		return one(b.normal("x", 3))
	})
	first, err := c.Build(tensor.NewSource(CaseSeed(1, c.Name)))
	require.NoError(t, err)
	second, err := c.Build(tensor.NewSource(CaseSeed(1, c.Name)))
	require.NoError(t, err)

	x1, _ := first.Graph().Variable("x")
	x2, _ := second.Graph().Variable("x")
	assert.Equal(t, x1.Value().Float64s(), x2.Value().Float64s())
	assert.NotEqual(t, CaseSeed(1, "a"), CaseSeed(1, "b"))
}

func TestFilter(t *testing.T) {
	cases := Cases()
	names := func(cs []Case) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name)
		}
		return out
	}

	assert.Equal(t, []string{"conv2d", "conv2d/stride"}, names(Filter(cases, "conv2d")))
	assert.Equal(t, []string{"conv2d/stride"}, names(Filter(cases, "conv2d/*")))
	assert.Equal(t, []string{"matmul", "matmul/transpose", "softmax"}, names(Filter(cases, "matmul", " softmax ")))
	assert.Len(t, Filter(cases), len(cases))
	assert.Empty(t, Filter(cases, "nope"))
	assert.Contains(t, names(Filter(cases, "reduce_*")), "reduce_to_shape_of")
}

func TestRunReportsFailuresAndErrors(t *testing.T) {
	broken := Case{
		Name: "broken",
		Kind: ops.Add,
		Build: func(rand.Source) (*gradcheck.TestCase, error) {
			return nil, errors.New("no graph")
		},
	}
	wrong := fwdCase("wrong", ops.Neg, func(b *builder) (*samediff.Variable, *tensor.RawTensor, error) {
		out := b.m.Neg(b.values("x", tensor.Shape{1}, 2))
		want, err := tensor.FromFloat64s(tensor.Shape{1}, []float64{2})
		return out, want, err
	})
	panics := Case{
		Name: "panics",
		Kind: ops.Add,
		Build: func(rand.Source) (*gradcheck.TestCase, error) {
			panic("boom")
		},
	}

	results, err := Run(context.Background(), []Case{broken, wrong, panics}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Passed)
	assert.ErrorContains(t, results[0].Err, "no graph")

	assert.True(t, results[1].Failed())
	assert.NoError(t, results[1].Err)
	require.NotNil(t, results[1].Report)
	assert.Contains(t, results[1].Report.String(), `in test "wrong"`)

	assert.ErrorContains(t, results[2].Err, "boom")
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := Run(ctx, Cases()[:3], Options{Parallelism: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, Cases()[i].Name, r.Case)
		assert.Equal(t, Cases()[i].Kind, r.Kind)
		assert.True(t, r.Skipped)
		assert.True(t, r.Failed())
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestAdjustLoosensConfig(t *testing.T) {
	cases := Filter(Cases(), "cast/float32")
	require.Len(t, cases, 1)
	cfg := cases[0].Adjust(gradcheck.DefaultConfig())
	assert.Equal(t, 1e-3, cfg.Epsilon)
	assert.Equal(t, 1e-3, cfg.MaxRelError)
}
