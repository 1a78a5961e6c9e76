package samediff

import (
	"fmt"

	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

// VarID indexes a variable within its graph.
type VarID int

// OpID indexes an op within its graph. Op ids follow creation order.
type OpID int

const noOp OpID = -1

// Role classifies how a variable gets its value.
type Role int

// Variable roles.
const (
	// RolePlaceholder values are supplied as feeds on every execution.
	RolePlaceholder Role = iota
	// RoleConstant values are bound once and never differentiated.
	RoleConstant
	// RoleVariable values are bound and trainable.
	RoleVariable
	// RoleArray values are produced by ops.
	RoleArray
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RolePlaceholder:
		return "placeholder"
	case RoleConstant:
		return "constant"
	case RoleVariable:
		return "variable"
	case RoleArray:
		return "array"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Variable is a named, typed node of a graph.
type Variable struct {
	g     *Graph
	id    VarID
	name  string
	role  Role
	dtype tensor.DataType
	shape tensor.Shape // declared; nil when the rank is unknown

	value *tensor.RawTensor

	producer OpID
	outIndex int
}

// ID returns the variable's index in its graph.
func (v *Variable) ID() VarID { return v.id }

// Name returns the variable's unique name.
func (v *Variable) Name() string { return v.name }

// Role returns the variable's role.
func (v *Variable) Role() Role { return v.role }

// DType returns the declared element type.
func (v *Variable) DType() tensor.DataType { return v.dtype }

// Shape returns a copy of the declared, possibly partial, shape.
func (v *Variable) Shape() tensor.Shape { return v.shape.Clone() }

// Graph returns the owning graph.
func (v *Variable) Graph() *Graph { return v.g }

// IsTrainable reports whether the variable is a float trainable variable.
func (v *Variable) IsTrainable() bool {
	return v.role == RoleVariable && v.dtype.IsFloat()
}

// IsGradCandidate reports whether gradients are computed for the variable:
// float trainable variables and float placeholders.
func (v *Variable) IsGradCandidate() bool {
	return v.dtype.IsFloat() && (v.role == RoleVariable || v.role == RolePlaceholder)
}

// Value returns the bound value, or nil. For placeholders this is the last
// value used by an execution, which is never consulted as a feed.
func (v *Variable) Value() *tensor.RawTensor {
	return v.g.value(v.id)
}

// Producer returns the op that produces the variable, or nil for leaves.
func (v *Variable) Producer() *Op {
	if v.producer == noOp {
		return nil
	}
	return v.g.nodes[v.producer]
}

// OutputIndex returns which output of its producer the variable is.
func (v *Variable) OutputIndex() int { return v.outIndex }

func (v *Variable) varType() ops.VarType {
	return ops.VarType{DType: v.dtype, Shape: v.shape.Clone()}
}

// String formats the variable as name:role dtype[shape].
func (v *Variable) String() string {
	return fmt.Sprintf("%s:%s %s", v.name, v.role, v.varType())
}

// Op is an operation node: a kind, its resolved configuration, and the
// variables it reads and produces.
type Op struct {
	g       *Graph
	id      OpID
	name    string
	kind    ops.Kind
	attrs   ops.Attrs
	inputs  []VarID
	outputs []VarID
}

// ID returns the op's index in its graph.
func (o *Op) ID() OpID { return o.id }

// Name returns the op's unique name.
func (o *Op) Name() string { return o.name }

// Kind returns the op kind.
func (o *Op) Kind() ops.Kind { return o.kind }

// Attrs returns the resolved configuration, nil for kinds without one.
func (o *Op) Attrs() ops.Attrs { return o.attrs }

// Inputs returns the input variables in order.
func (o *Op) Inputs() []*Variable {
	return o.g.lookupAll(o.inputs)
}

// Outputs returns the output variables in order.
func (o *Op) Outputs() []*Variable {
	return o.g.lookupAll(o.outputs)
}

// String formats the op as name = kind(inputs).
func (o *Op) String() string {
	names := make([]string, len(o.inputs))
	for i, id := range o.inputs {
		names[i] = o.g.vars[id].name
	}
	return fmt.Sprintf("%s = %s%v", o.name, o.kind, names)
}
