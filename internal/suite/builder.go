package suite

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/samediff/internal/gradcheck"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// builder assembles a case graph and keeps the first error.
type builder struct {
	g   *samediff.Graph
	m   *samediff.Math
	src rand.Source
	err error
}

func newBuilder(name string, src rand.Source) *builder {
	g := samediff.New(samediff.WithName(name))
	return &builder{g: g, m: g.Math(), src: src}
}

func (b *builder) fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

func (b *builder) leaf(name string, value *tensor.RawTensor, err error) *samediff.Variable {
	if b.err != nil {
		return nil
	}
	if err != nil {
		b.fail(fmt.Errorf("%s: %w", name, err))
		return nil
	}
	v, err := b.g.Var(name, value)
	b.fail(err)
	return v
}

// uniform adds a trainable input drawn from U[lo, hi).
func (b *builder) uniform(name string, lo, hi float64, shape ...int) *samediff.Variable {
	t, err := tensor.RandomUniform(tensor.Shape(shape), tensor.Float64, lo, hi, b.src)
	return b.leaf(name, t, err)
}

// normal adds a trainable input drawn from N(0, 1).
func (b *builder) normal(name string, shape ...int) *samediff.Variable {
	t, err := tensor.RandomNormal(tensor.Shape(shape), tensor.Float64, 0, 1, b.src)
	return b.leaf(name, t, err)
}

// awayFromZero adds an input with magnitudes in [0.2, 2) and random signs,
// for ops with a kink at zero.
func (b *builder) awayFromZero(name string, shape ...int) *samediff.Variable {
	t, err := tensor.RandomUniform(tensor.Shape(shape), tensor.Float64, 0.2, 2, b.src)
	if err == nil {
		r := rand.New(b.src)
		for i := 0; i < t.NumElements(); i++ {
			if r.IntN(2) == 0 {
				t.SetFloat(i, -t.Float(i))
			}
		}
	}
	return b.leaf(name, t, err)
}

// values adds an input with exact contents.
func (b *builder) values(name string, shape tensor.Shape, data ...float64) *samediff.Variable {
	t, err := tensor.FromFloat64s(shape, data)
	return b.leaf(name, t, err)
}

// weightedLoss sets loss = sum_i sum(out_i * r_i) with random constants r_i,
// so every output element reaches the loss with a distinct weight.
func (b *builder) weightedLoss(outs ...*samediff.Variable) {
	if b.err != nil || b.m.Err() != nil {
		return
	}
	var total *samediff.Variable
	for i, out := range outs {
		r, err := tensor.RandomNormal(out.Shape(), tensor.Float64, 0, 1, b.src)
		if err != nil {
			b.fail(fmt.Errorf("loss weights for %s: %w", out.Name(), err))
			return
		}
		w, err := b.g.Constant(fmt.Sprintf("loss_weight_%d", i), r)
		if err != nil {
			b.fail(err)
			return
		}
		term := b.m.Sum(b.m.Mul(out, w), false)
		if total == nil {
			total = term
		} else {
			total = b.m.Add(total, term)
		}
	}
	loss := b.m.Name("loss").Identity(total)
	if loss != nil {
		b.fail(b.g.SetLoss(loss.Name()))
	}
}

// gradient finishes a case that checks gradients of the weighted loss of outs.
func (b *builder) gradient(outs ...*samediff.Variable) (*gradcheck.TestCase, error) {
	b.weightedLoss(outs...)
	if err := b.firstErr(); err != nil {
		return nil, err
	}
	return gradcheck.NewTestCase(b.g).Name(b.g.Name()), nil
}

// forward finishes a forward-only case asserting out equals want.
func (b *builder) forward(out *samediff.Variable, want *tensor.RawTensor, err error) (*gradcheck.TestCase, error) {
	b.fail(err)
	if err := b.firstErr(); err != nil {
		return nil, err
	}
	return gradcheck.NewTestCase(b.g).
		Name(b.g.Name()).
		Expected(out.Name(), want).
		GradientCheck(false), nil
}

func (b *builder) firstErr() error {
	if b.err != nil {
		return b.err
	}
	return b.m.Err()
}
