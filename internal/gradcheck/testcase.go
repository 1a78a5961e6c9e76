package gradcheck

import (
	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// TestCase describes one validation run over a graph: feeds, expected
// forward values, whether to check gradients, and tolerances.
//
//	tc := gradcheck.NewTestCase(g).
//		Feed("x", x).
//		Expected("y", want).
//		GradientCheck(false)
//	msg, err := gradcheck.Validate(tc)
type TestCase struct {
	p plan
}

// NewTestCase returns a case for g with gradient checking enabled and
// default tolerances.
func NewTestCase(g *samediff.Graph) *TestCase {
	return &TestCase{p: plan{
		graph:       g,
		feeds:       make(map[string]*tensor.RawTensor),
		expected:    make(map[string]*tensor.RawTensor),
		expectedFns: make(map[string]func(*tensor.RawTensor) string),
		gradients:   true,
		cfg:         DefaultConfig(),
	}}
}

// Graph returns the graph under test.
func (tc *TestCase) Graph() *samediff.Graph { return tc.p.graph }

// Name labels the case in reports and logs.
func (tc *TestCase) Name(name string) *TestCase {
	tc.p.name = name
	return tc
}

// Feed supplies a placeholder value.
func (tc *TestCase) Feed(name string, value *tensor.RawTensor) *TestCase {
	tc.p.feeds[name] = value
	return tc
}

// Feeds supplies several placeholder values.
func (tc *TestCase) Feeds(feeds map[string]*tensor.RawTensor) *TestCase {
	for name, v := range feeds {
		tc.p.feeds[name] = v
	}
	return tc
}

// Expected asserts the forward value of a variable.
func (tc *TestCase) Expected(name string, value *tensor.RawTensor) *TestCase {
	tc.p.expected[name] = value
	return tc
}

// ExpectedFunc asserts the forward value of a variable with fn, which returns
// an empty string when the value is acceptable and a description otherwise.
func (tc *TestCase) ExpectedFunc(name string, fn func(actual *tensor.RawTensor) string) *TestCase {
	tc.p.expectedFns[name] = fn
	return tc
}

// GradientCheck enables or disables the gradient comparison. Cases for ops
// with boolean or integer outputs disable it and rely on forward values.
func (tc *TestCase) GradientCheck(enabled bool) *TestCase {
	tc.p.gradients = enabled
	return tc
}

// Inputs restricts the gradient check to the named variables.
func (tc *TestCase) Inputs(names ...string) *TestCase {
	tc.p.inputs = append(tc.p.inputs, names...)
	return tc
}

// Exclude skips the named variables in the gradient check.
func (tc *TestCase) Exclude(names ...string) *TestCase {
	tc.p.exclude = append(tc.p.exclude, names...)
	return tc
}

// Tolerance sets the gradient comparison thresholds.
func (tc *TestCase) Tolerance(maxRelError, minAbsError float64) *TestCase {
	tc.p.cfg.MaxRelError = maxRelError
	tc.p.cfg.MinAbsError = minAbsError
	return tc
}

// Epsilon sets the finite-difference perturbation.
func (tc *TestCase) Epsilon(eps float64) *TestCase {
	tc.p.cfg.Epsilon = eps
	return tc
}

// ForwardTolerance sets the tolerance for expected forward values.
func (tc *TestCase) ForwardTolerance(tol float64) *TestCase {
	tc.p.cfg.ForwardTolerance = tol
	return tc
}

// Config replaces all numeric settings.
func (tc *TestCase) Config(cfg Config) *TestCase {
	tc.p.cfg = cfg
	return tc
}

// Logger sets the logger used for the run.
func (tc *TestCase) Logger(log logger.Logger) *TestCase {
	tc.p.cfg.Logger = log
	return tc
}

// Run executes the case and returns its report, nil on success.
func (tc *TestCase) Run() (*Report, error) {
	return run(&tc.p)
}

// Validate executes tc and returns "" on success or the rendered failure
// report. The error is non-nil only when the case could not be executed.
func Validate(tc *TestCase) (string, error) {
	report, err := tc.Run()
	if err != nil {
		return "", err
	}
	return report.String(), nil
}
