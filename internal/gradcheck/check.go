package gradcheck

import (
	"fmt"
	"slices"

	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// Check runs forward assertions for expected, then compares analytic and
// numerical gradients of the sum of g's losses with respect to inputs.
//
// With no inputs, every float trainable variable and every fed float
// placeholder is checked. It returns a nil report when nothing failed. An
// error means the check could not run.
func Check(g *samediff.Graph, feeds map[string]*tensor.RawTensor, inputs []string, expected map[string]*tensor.RawTensor, cfg Config) (*Report, error) {
	return run(&plan{
		graph:     g,
		feeds:     feeds,
		inputs:    inputs,
		expected:  expected,
		gradients: true,
		cfg:       cfg,
	})
}

// plan is one configured check.
type plan struct {
	graph       *samediff.Graph
	name        string
	feeds       map[string]*tensor.RawTensor
	inputs      []string
	exclude     []string
	expected    map[string]*tensor.RawTensor
	expectedFns map[string]func(*tensor.RawTensor) string
	gradients   bool
	cfg         Config
}

func run(p *plan) (*Report, error) {
	if p.graph == nil {
		return nil, fmt.Errorf("gradcheck: nil graph")
	}
	cfg := p.cfg.WithDefaults()
	log := cfg.Logger
	if log == nil {
		log = p.graph.Logger()
	}
	log = log.With("check", p.name)

	report := &Report{
		GraphID:   p.graph.ID().String(),
		GraphName: p.graph.Name(),
		TestName:  p.name,
		cfg:       cfg,
	}

	if err := p.checkForward(report, cfg); err != nil {
		return nil, err
	}
	if p.gradients {
		if err := p.checkGradients(report, cfg, log); err != nil {
			return nil, err
		}
	}

	log.Info("check finished",
		"passed", !report.Failed(),
		"forward_failures", len(report.Forward),
		"gradient_elements", report.ElementsChecked,
		"gradient_failures", report.GradientElementsFailed())
	if !report.Failed() {
		return nil, nil
	}
	return report, nil
}

func (p *plan) checkForward(report *Report, cfg Config) error {
	names := make([]string, 0, len(p.expected)+len(p.expectedFns))
	for name := range p.expected {
		names = append(names, name)
	}
	for name := range p.expectedFns {
		if _, dup := p.expected[name]; !dup {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)

	outs, err := p.graph.Output(p.feeds, names...)
	if err != nil {
		return err
	}
	for _, name := range names {
		actual := outs[name]
		if want, ok := p.expected[name]; ok {
			if f, failed := compareForward(name, want, actual, cfg.ForwardTolerance); failed {
				report.Forward = append(report.Forward, f)
			}
		}
		if fn, ok := p.expectedFns[name]; ok {
			if msg := fn(actual); msg != "" {
				report.Forward = append(report.Forward, ForwardFailure{Name: name, Reason: msg, Actual: actual})
			}
		}
	}
	return nil
}

func compareForward(name string, want, got *tensor.RawTensor, tol float64) (ForwardFailure, bool) {
	f := ForwardFailure{Name: name, Expected: want, Actual: got}
	switch {
	case want.DType() != got.DType():
		f.Reason = fmt.Sprintf("dtype %s, expected %s", got.DType(), want.DType())
	case !want.Shape().Equal(got.Shape()):
		f.Reason = fmt.Sprintf("shape %v, expected %v", got.Shape(), want.Shape())
	case !tensor.AllClose(want, got, tol):
		f.MaxDiff = tensor.MaxAbsDiff(want, got)
	default:
		return f, false
	}
	return f, true
}

// target is one input being checked and the tensor that gets perturbed.
type target struct {
	v     *samediff.Variable
	value *tensor.RawTensor
}

func (p *plan) selectTargets(feeds map[string]*tensor.RawTensor, log logger.Logger) ([]target, error) {
	g := p.graph
	names := p.inputs
	if len(names) == 0 {
		for _, v := range g.Variables() {
			_, fed := feeds[v.Name()]
			if v.IsTrainable() || (v.Role() == samediff.RolePlaceholder && fed) {
				names = append(names, v.Name())
			}
		}
	}

	var targets []target
	for _, name := range names {
		if slices.Contains(p.exclude, name) {
			continue
		}
		v, err := g.Variable(name)
		if err != nil {
			return nil, err
		}
		if !v.IsGradCandidate() {
			log.Debug("skipping input without gradient", "name", name, "role", v.Role(), "dtype", v.DType())
			continue
		}
		var value *tensor.RawTensor
		if v.Role() == samediff.RolePlaceholder {
			value = feeds[name]
			if value == nil {
				return nil, &samediff.UnboundVariableError{Name: name, Role: v.Role()}
			}
		} else if value = v.Value(); value == nil {
			return nil, &samediff.UnboundVariableError{Name: name, Role: v.Role()}
		}
		if v.DType() != tensor.Float64 {
			log.Warn("numerical gradients on reduced precision input are unreliable", "name", name, "dtype", v.DType())
		}
		targets = append(targets, target{v: v, value: value})
	}
	return targets, nil
}

func (p *plan) checkGradients(report *Report, cfg Config, log logger.Logger) error {
	g := p.graph
	losses := g.Losses()
	if len(losses) == 0 {
		return &samediff.NoLossDefinedError{Graph: g.Name()}
	}

	// Perturb copies of fed placeholders so caller tensors are never touched.
	feeds := make(map[string]*tensor.RawTensor, len(p.feeds))
	for name, t := range p.feeds {
		feeds[name] = t
	}
	targets, err := p.selectTargets(feeds, log)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		log.Info("no inputs to check")
		return nil
	}
	for i, t := range targets {
		if t.v.Role() == samediff.RolePlaceholder {
			cp := t.value.Dup(t.value.Order())
			feeds[t.v.Name()] = cp
			targets[i].value = cp
		}
	}

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.v.Name()
	}
	analytic, err := g.CalculateGradients(feeds, names...)
	if err != nil {
		return err
	}

	lossNames := make([]string, len(losses))
	for i, l := range losses {
		lossNames[i] = l.Name()
	}
	evalLoss := func() (float64, error) {
		outs, err := g.Output(feeds, lossNames...)
		if err != nil {
			return 0, err
		}
		total := 0.0
		for _, name := range lossNames {
			out := outs[name]
			for i := 0; i < out.NumElements(); i++ {
				total += out.Float(i)
			}
		}
		return total, nil
	}

	for _, t := range targets {
		grad := analytic[t.v.Name()]
		failures, err := numericCompare(t, grad, evalLoss, cfg)
		report.ElementsChecked += t.value.NumElements()
		if err != nil {
			return err
		}
		if failures.Failed > 0 {
			report.Gradients = append(report.Gradients, failures)
		}
	}

	// Rebind intermediates at the unperturbed values.
	_, err = evalLoss()
	return err
}

// numericCompare perturbs every element of t by ±epsilon, restoring it
// afterwards, and compares the central difference with grad.
func numericCompare(t target, grad *tensor.RawTensor, evalLoss func() (float64, error), cfg Config) (GradientFailures, error) {
	value := t.value
	shape := value.Shape()
	out := GradientFailures{Name: t.v.Name(), Shape: shape, Checked: value.NumElements()}
	if grad == nil || !grad.Shape().Equal(shape) {
		return out, fmt.Errorf("gradcheck: gradient of %q has shape %v, want %v", t.v.Name(), gradShape(grad), shape)
	}

	for i := 0; i < value.NumElements(); i++ {
		orig := value.Float(i)

		value.SetFloat(i, orig+cfg.Epsilon)
		plus, err := evalLoss()
		if err != nil {
			value.SetFloat(i, orig)
			return out, err
		}
		value.SetFloat(i, orig-cfg.Epsilon)
		minus, err := evalLoss()
		value.SetFloat(i, orig)
		if err != nil {
			return out, err
		}

		numeric := (plus - minus) / (2 * cfg.Epsilon)
		a := grad.Float(i)
		relErr, ok := CompareElement(a, numeric, cfg)
		if ok {
			continue
		}
		out.Failed++
		if len(out.Elements) < cfg.MaxReported {
			idx := make([]int, shape.Rank())
			shape.UnravelIndex(i, idx)
			out.Elements = append(out.Elements, ElementFailure{Index: idx, Analytic: a, Numeric: numeric, RelError: relErr})
		}
	}
	return out, nil
}

func gradShape(t *tensor.RawTensor) tensor.Shape {
	if t == nil {
		return nil
	}
	return t.Shape()
}
