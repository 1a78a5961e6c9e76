package samediff

import (
	"errors"
	"fmt"

	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

// DuplicateNameError reports a variable or op name that is already taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("samediff: name %q already exists in graph", e.Name)
}

// InvalidArityError reports an op created with the wrong number of inputs.
type InvalidArityError struct {
	Op   string
	Kind ops.Kind
	Err  error
}

func (e *InvalidArityError) Error() string {
	return fmt.Sprintf("samediff: op %q: %v", e.Op, e.Err)
}

func (e *InvalidArityError) Unwrap() error { return e.Err }

// ShapeMismatchError reports incompatible shapes found by static inference,
// a feed, or a bound value.
type ShapeMismatchError struct {
	Op       string // empty when not raised by an op
	Kind     ops.Kind
	Variable string
	Want     tensor.Shape
	Got      tensor.Shape
	Err      error
}

func (e *ShapeMismatchError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("samediff: variable %q: shape %v is not compatible with declared shape %v", e.Variable, e.Got, e.Want)
	}
	return fmt.Sprintf("samediff: op %q (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *ShapeMismatchError) Unwrap() error { return e.Err }

// TypeMismatchError reports incompatible element types.
type TypeMismatchError struct {
	Op       string
	Kind     ops.Kind
	Variable string
	Want     tensor.DataType
	Got      tensor.DataType
	Err      error
}

func (e *TypeMismatchError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("samediff: variable %q: dtype %s does not match declared %s", e.Variable, e.Got, e.Want)
	}
	return fmt.Sprintf("samediff: op %q (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }

// InvalidConfigError reports a bad op configuration or an invalid request.
type InvalidConfigError struct {
	Op     string
	Kind   ops.Kind
	Reason string
	Err    error
}

func (e *InvalidConfigError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("samediff: op %q (%s): %s", e.Op, e.Kind, msg)
	}
	return "samediff: " + msg
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// UnknownVariableError reports a name that does not resolve to a variable.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("samediff: no variable named %q", e.Name)
}

// UnboundVariableError reports a variable needed by execution that has no value.
type UnboundVariableError struct {
	Name string
	Role Role
	Op   string // consuming op, if any
}

func (e *UnboundVariableError) Error() string {
	what := "no value bound"
	if e.Role == RolePlaceholder {
		what = "no feed supplied"
	}
	if e.Op != "" {
		return fmt.Sprintf("samediff: %s variable %q needed by op %q: %s", e.Role, e.Name, e.Op, what)
	}
	return fmt.Sprintf("samediff: %s variable %q: %s", e.Role, e.Name, what)
}

// NativeExecutionError reports a backend failure while executing an op.
type NativeExecutionError struct {
	Op   string
	Kind ops.Kind
	Err  error
}

func (e *NativeExecutionError) Error() string {
	return fmt.Sprintf("samediff: executing op %q (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *NativeExecutionError) Unwrap() error { return e.Err }

// NoLossDefinedError reports a gradient request on a graph without loss variables.
type NoLossDefinedError struct {
	Graph string
}

func (e *NoLossDefinedError) Error() string {
	return fmt.Sprintf("samediff: graph %q has no loss variables", e.Graph)
}

// UnsupportedGradientError reports an op on a gradient path whose kind has no backward rule.
type UnsupportedGradientError struct {
	Op     string
	Kind   ops.Kind
	Reason string
}

func (e *UnsupportedGradientError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("samediff: no gradient for op %q (%s): %s", e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("samediff: no gradient defined for op %q (%s)", e.Op, e.Kind)
}

// opError converts an ops inference error into the graph's typed error.
func opError(name string, kind ops.Kind, err error) error {
	switch {
	case errors.Is(err, ops.ErrArity):
		return &InvalidArityError{Op: name, Kind: kind, Err: err}
	case errors.Is(err, ops.ErrShape):
		return &ShapeMismatchError{Op: name, Kind: kind, Err: err}
	case errors.Is(err, ops.ErrDType):
		return &TypeMismatchError{Op: name, Kind: kind, Err: err}
	default:
		return &InvalidConfigError{Op: name, Kind: kind, Err: err}
	}
}
