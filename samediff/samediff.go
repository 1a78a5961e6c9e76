// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package samediff builds computation graphs, executes them, and derives
// their gradient graphs by reverse-mode differentiation.
//
// # Basic Usage
//
//	g := samediff.New(samediff.WithName("linear"))
//	x, _ := g.Placeholder("x", tensor.Float64, tensor.Shape{-1, 3})
//	w, _ := g.Var("w", weights)
//	m := g.Math()
//	xw := m.MatMul(x, w)
//	loss := m.Name("loss").Sum(xw, false)
//	if err := m.Err(); err != nil {
//	    return err
//	}
//	_ = g.SetLoss(loss.Name())
//
//	feeds := map[string]*tensor.RawTensor{"x": batch}
//	out, _ := g.Output(feeds, "loss")
//	grads, _ := g.CalculateGradients(feeds, "w")
//
// A Graph is not safe for concurrent mutation.
package samediff

import (
	"github.com/google/uuid"

	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/samediff"
)

// Graph types.
type (
	Graph       = samediff.Graph
	Variable    = samediff.Variable
	Op          = samediff.Op
	Math        = samediff.Math
	Role        = samediff.Role
	ExecContext = samediff.ExecContext
	Session     = samediff.Session
	Option      = samediff.Option
	OpOption    = samediff.OpOption
	Logger      = logger.Logger
)

// Variable roles.
const (
	RolePlaceholder = samediff.RolePlaceholder
	RoleConstant    = samediff.RoleConstant
	RoleVariable    = samediff.RoleVariable
	RoleArray       = samediff.RoleArray
)

// GradSuffix is appended to a variable name to form its gradient's name.
const GradSuffix = samediff.GradSuffix

// Errors returned by graph construction and execution.
type (
	DuplicateNameError       = samediff.DuplicateNameError
	InvalidArityError        = samediff.InvalidArityError
	ShapeMismatchError       = samediff.ShapeMismatchError
	TypeMismatchError        = samediff.TypeMismatchError
	InvalidConfigError       = samediff.InvalidConfigError
	UnknownVariableError     = samediff.UnknownVariableError
	UnboundVariableError     = samediff.UnboundVariableError
	NativeExecutionError     = samediff.NativeExecutionError
	NoLossDefinedError       = samediff.NoLossDefinedError
	UnsupportedGradientError = samediff.UnsupportedGradientError
)

// New creates an empty graph.
func New(opts ...Option) *Graph {
	return samediff.New(opts...)
}

// WithName sets the graph name.
func WithName(name string) Option {
	return samediff.WithName(name)
}

// WithID sets the graph identity instead of generating one.
func WithID(id uuid.UUID) Option {
	return samediff.WithID(id)
}

// WithExecContext sets the context ops execute in.
func WithExecContext(ec *ExecContext) Option {
	return samediff.WithExecContext(ec)
}

// WithLogger sets the graph logger.
func WithLogger(log Logger) Option {
	return samediff.WithLogger(log)
}

// WithOpName names an op created by CreateOp.
func WithOpName(name string) OpOption {
	return samediff.WithOpName(name)
}

// WithOutputNames names the outputs of an op created by CreateOp.
func WithOutputNames(names ...string) OpOption {
	return samediff.WithOutputNames(names...)
}

// NewExecContext returns an execution context for device ("" or "cpu").
func NewExecContext(device string, log Logger) (*ExecContext, error) {
	return samediff.NewExecContext(device, log)
}

// NewSession returns a session that executes g in ec.
func NewSession(g *Graph, ec *ExecContext) *Session {
	return samediff.NewSession(g, ec)
}
