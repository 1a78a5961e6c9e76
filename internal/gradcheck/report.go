package gradcheck

import (
	"fmt"
	"strings"

	"github.com/born-ml/samediff/internal/tensor"
)

// Report aggregates every failure of a check. A nil *Report means success.
type Report struct {
	GraphID   string
	GraphName string
	TestName  string

	Forward   []ForwardFailure
	Gradients []GradientFailures

	// ElementsChecked counts gradient elements compared across all inputs.
	ElementsChecked int

	cfg Config
}

// ForwardFailure is a forward value that differs from its expectation.
type ForwardFailure struct {
	Name     string
	Reason   string // set when the expectation is a function or shapes differ
	Expected *tensor.RawTensor
	Actual   *tensor.RawTensor
	MaxDiff  float64
}

// GradientFailures lists the failing elements of one input.
type GradientFailures struct {
	Name    string
	Shape   tensor.Shape
	Checked int
	Failed  int
	// Elements holds the first failures, up to Config.MaxReported.
	Elements []ElementFailure
}

// ElementFailure is one gradient element outside tolerance.
type ElementFailure struct {
	Index    []int
	Analytic float64
	Numeric  float64
	RelError float64
}

// Failed reports whether the report records any failure.
func (r *Report) Failed() bool {
	return r != nil && (len(r.Forward) > 0 || len(r.Gradients) > 0)
}

// GradientElementsFailed counts failing gradient elements across inputs.
func (r *Report) GradientElementsFailed() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, g := range r.Gradients {
		n += g.Failed
	}
	return n
}

// String renders the report as multi-line text. A nil report renders as "".
func (r *Report) String() string {
	if !r.Failed() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "check failed for graph %q (%s)", r.GraphName, r.GraphID)
	if r.TestName != "" {
		fmt.Fprintf(&b, " in test %q", r.TestName)
	}
	b.WriteByte('\n')

	if len(r.Forward) > 0 {
		fmt.Fprintf(&b, "forward: %d output(s) differ from expected (tolerance %g)\n", len(r.Forward), r.cfg.ForwardTolerance)
		for _, f := range r.Forward {
			b.WriteString("  " + f.describe(r.cfg.MaxReported) + "\n")
		}
	}

	if len(r.Gradients) > 0 {
		fmt.Fprintf(&b, "gradients: %d of %d element(s) failed (maxRelError=%g, minAbsError=%g, epsilon=%g)\n",
			r.GradientElementsFailed(), r.ElementsChecked, r.cfg.MaxRelError, r.cfg.MinAbsError, r.cfg.Epsilon)
		for _, g := range r.Gradients {
			fmt.Fprintf(&b, "  %s %v: %d of %d failed\n", g.Name, g.Shape, g.Failed, g.Checked)
			for _, e := range g.Elements {
				fmt.Fprintf(&b, "    %v analytic=%.6e numeric=%.6e relError=%.3e\n", e.Index, e.Analytic, e.Numeric, e.RelError)
			}
			if more := g.Failed - len(g.Elements); more > 0 {
				fmt.Fprintf(&b, "    ... and %d more\n", more)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f ForwardFailure) describe(limit int) string {
	var b strings.Builder
	b.WriteString(f.Name + ":")
	if f.Reason != "" {
		b.WriteString(" " + f.Reason)
	}
	if f.Expected != nil {
		fmt.Fprintf(&b, " expected %s%v %s", f.Expected.DType(), f.Expected.Shape(), sample(f.Expected, limit))
	}
	if f.Actual != nil {
		fmt.Fprintf(&b, " actual %s%v %s", f.Actual.DType(), f.Actual.Shape(), sample(f.Actual, limit))
	}
	if f.MaxDiff > 0 {
		fmt.Fprintf(&b, " (max abs diff %.3e)", f.MaxDiff)
	}
	return b.String()
}

// sample formats the first limit elements of t.
func sample(t *tensor.RawTensor, limit int) string {
	n := t.NumElements()
	shown := min(n, limit)
	parts := make([]string, shown)
	for i := range parts {
		parts[i] = fmt.Sprintf("%.6g", t.Float(i))
	}
	s := "[" + strings.Join(parts, " ")
	if n > shown {
		s += fmt.Sprintf(" ... +%d", n-shown)
	}
	return s + "]"
}
