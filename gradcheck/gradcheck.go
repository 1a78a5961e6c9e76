// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package gradcheck validates analytic gradients of a samediff graph against
// central finite differences and compares forward outputs with expected
// values.
//
// Example:
//
//	report, err := gradcheck.NewTestCase(g).
//	    Name("tanh").
//	    Feed("x", x).
//	    Expected("y", want).
//	    Run()
//	if err != nil {
//	    return err // the check could not run
//	}
//	if report.Failed() {
//	    fmt.Println(report) // every failing output and gradient element
//	}
package gradcheck

import (
	"github.com/born-ml/samediff/internal/gradcheck"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// Check types.
type (
	Config           = gradcheck.Config
	TestCase         = gradcheck.TestCase
	Report           = gradcheck.Report
	ForwardFailure   = gradcheck.ForwardFailure
	GradientFailures = gradcheck.GradientFailures
	ElementFailure   = gradcheck.ElementFailure
)

// Default tolerances.
const (
	DefaultEpsilon          = gradcheck.DefaultEpsilon
	DefaultMaxRelError      = gradcheck.DefaultMaxRelError
	DefaultMinAbsError      = gradcheck.DefaultMinAbsError
	DefaultForwardTolerance = gradcheck.DefaultForwardTolerance
)

// DefaultConfig returns the default tolerances.
func DefaultConfig() Config {
	return gradcheck.DefaultConfig()
}

// NewTestCase starts a check of g.
func NewTestCase(g *samediff.Graph) *TestCase {
	return gradcheck.NewTestCase(g)
}

// Check runs a gradient check on the named inputs of g; expected may be nil.
// A nil report means everything passed.
func Check(g *samediff.Graph, feeds map[string]*tensor.RawTensor, inputs []string, expected map[string]*tensor.RawTensor, cfg Config) (*Report, error) {
	return gradcheck.Check(g, feeds, inputs, expected, cfg)
}

// Validate runs tc and returns its failure report as text, empty on success.
func Validate(tc *TestCase) (string, error) {
	return gradcheck.Validate(tc)
}
