// Package gradcheck compares analytic gradients from a graph's gradient graph
// against central-difference numerical gradients and reports every mismatch.
//
// A check mutates the bound values of the variables it perturbs and restores
// them before returning. Do not execute the same graph concurrently with a check.
package gradcheck

import (
	"math"

	"github.com/born-ml/samediff/internal/logger"
)

// Default tolerances.
const (
	DefaultEpsilon          = 1e-6
	DefaultMaxRelError      = 1e-4
	DefaultMinAbsError      = 1e-6
	DefaultForwardTolerance = 1e-5
	DefaultMaxReported      = 10

	// RelErrorFloor bounds the relative error denominator away from zero.
	RelErrorFloor = 1e-12
)

// Config holds the numeric settings of a check. Zero fields take defaults.
type Config struct {
	// Epsilon is the central-difference perturbation.
	Epsilon float64
	// MaxRelError is the largest relative error an element may have.
	MaxRelError float64
	// MinAbsError: elements whose analytic and numeric values are both below
	// it in magnitude pass regardless of relative error.
	MinAbsError float64
	// ForwardTolerance is used for expected forward values.
	ForwardTolerance float64
	// MaxReported caps the failing elements listed per variable.
	MaxReported int

	Logger logger.Logger
}

// DefaultConfig returns the default tolerances.
func DefaultConfig() Config {
	return Config{
		Epsilon:          DefaultEpsilon,
		MaxRelError:      DefaultMaxRelError,
		MinAbsError:      DefaultMinAbsError,
		ForwardTolerance: DefaultForwardTolerance,
		MaxReported:      DefaultMaxReported,
	}
}

// WithDefaults returns c with zero or invalid fields replaced by defaults.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if !(c.Epsilon > 0) {
		c.Epsilon = d.Epsilon
	}
	if !(c.MaxRelError > 0) {
		c.MaxRelError = d.MaxRelError
	}
	if !(c.MinAbsError > 0) {
		c.MinAbsError = d.MinAbsError
	}
	if !(c.ForwardTolerance > 0) {
		c.ForwardTolerance = d.ForwardTolerance
	}
	if c.MaxReported <= 0 {
		c.MaxReported = d.MaxReported
	}
	return c
}

// CompareElement applies the comparison rule to one element and returns the
// relative error and whether the element passes.
//
//	relErr = |a - n| / max(|a|, |n|, RelErrorFloor)
//
// Both magnitudes below MinAbsError pass; otherwise relErr must not exceed
// MaxRelError. NaN or infinite values never pass.
func CompareElement(analytic, numeric float64, cfg Config) (float64, bool) {
	if math.IsNaN(analytic) || math.IsNaN(numeric) || math.IsInf(analytic, 0) || math.IsInf(numeric, 0) {
		return math.NaN(), false
	}
	absA, absN := math.Abs(analytic), math.Abs(numeric)
	relErr := math.Abs(analytic-numeric) / math.Max(math.Max(absA, absN), RelErrorFloor)
	if absA < cfg.MinAbsError && absN < cfg.MinAbsError {
		return relErr, true
	}
	return relErr, relErr <= cfg.MaxRelError
}
