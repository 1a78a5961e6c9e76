// Package samediff implements the graph model: named variables, op nodes with
// static type inference, forward execution, and reverse-mode gradient graphs.
//
// A Graph is not safe for concurrent use. Build, execute and differentiate it
// from one goroutine; independent graphs may run in parallel.
package samediff

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

// Graph owns variables and ops in dense arenas indexed by VarID and OpID.
// Ops are appended only after their inputs exist, so creation order is a
// valid topological order and the graph is acyclic by construction.
type Graph struct {
	id   uuid.UUID
	name string

	vars     []*Variable
	nodes    []*Op
	varNames map[string]VarID
	opNames  map[string]OpID
	counters map[string]int

	losses  []VarID
	version uint64

	ec  *ExecContext
	log logger.Logger

	// Set on gradient graphs: the first forwardVars variables mirror parent's.
	parent      *Graph
	forwardVars int
	gradOf      map[VarID]VarID

	// Cached gradient graph and the version it was built at.
	grad        *Graph
	gradVersion uint64
}

// Option configures a Graph.
type Option func(*Graph)

// WithName sets the graph name.
func WithName(name string) Option {
	return func(g *Graph) { g.name = name }
}

// WithID sets the graph id instead of generating one. Loaders use it to keep
// the identity of a saved graph.
func WithID(id uuid.UUID) Option {
	return func(g *Graph) { g.id = id }
}

// WithExecContext sets the execution context used by Output and CalculateGradients.
func WithExecContext(ec *ExecContext) Option {
	return func(g *Graph) {
		if ec != nil {
			g.ec = ec
		}
	}
}

// WithLogger sets the graph logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Graph) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		id:       uuid.New(),
		name:     "graph",
		varNames: make(map[string]VarID),
		opNames:  make(map[string]OpID),
		counters: make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.ec == nil {
		g.ec = DefaultExecContext()
	}
	if g.log == nil {
		g.log = g.ec.logger()
	}
	g.log = g.log.With("graph", g.name)
	return g
}

// ID returns the graph's unique id.
func (g *Graph) ID() uuid.UUID { return g.id }

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Version increases on every structural change: new variables, new ops, loss changes.
func (g *Graph) Version() uint64 { return g.version }

// ExecContext returns the graph's execution context.
func (g *Graph) ExecContext() *ExecContext { return g.ec }

// Logger returns the graph logger.
func (g *Graph) Logger() logger.Logger { return g.log }

// Parent returns the forward graph of a gradient graph, or nil.
func (g *Graph) Parent() *Graph { return g.parent }

// NumVariables returns the number of variables.
func (g *Graph) NumVariables() int { return len(g.vars) }

// NumOps returns the number of ops.
func (g *Graph) NumOps() int { return len(g.nodes) }

// Variables returns all variables in creation order.
func (g *Graph) Variables() []*Variable {
	out := make([]*Variable, len(g.vars))
	copy(out, g.vars)
	return out
}

// Ops returns all ops in creation order.
func (g *Graph) Ops() []*Op {
	out := make([]*Op, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Variable resolves a name.
func (g *Graph) Variable(name string) (*Variable, error) {
	id, ok := g.varNames[name]
	if !ok {
		return nil, &UnknownVariableError{Name: name}
	}
	return g.vars[id], nil
}

// HasVariable reports whether name is a variable of the graph.
func (g *Graph) HasVariable(name string) bool {
	_, ok := g.varNames[name]
	return ok
}

// Op resolves an op name, returning nil if there is none.
func (g *Graph) Op(name string) *Op {
	id, ok := g.opNames[name]
	if !ok {
		return nil
	}
	return g.nodes[id]
}

// VariablesByRole returns the variables with the given role in creation order.
func (g *Graph) VariablesByRole(role Role) []*Variable {
	var out []*Variable
	for _, v := range g.vars {
		if v.role == role {
			out = append(out, v)
		}
	}
	return out
}

// Placeholders returns the placeholder variables.
func (g *Graph) Placeholders() []*Variable { return g.VariablesByRole(RolePlaceholder) }

// TrainableVariables returns the float trainable variables.
func (g *Graph) TrainableVariables() []*Variable {
	var out []*Variable
	for _, v := range g.vars {
		if v.IsTrainable() {
			out = append(out, v)
		}
	}
	return out
}

// Consumers returns the ops reading v, in creation order.
func (g *Graph) Consumers(v *Variable) []*Op {
	var out []*Op
	for _, op := range g.nodes {
		for _, in := range op.inputs {
			if in == v.id {
				out = append(out, op)
				break
			}
		}
	}
	return out
}

// Placeholder declares a value supplied on each execution.
// A nil shape leaves the rank unknown; UnknownDim marks unknown dimensions.
func (g *Graph) Placeholder(name string, dtype tensor.DataType, shape tensor.Shape) (*Variable, error) {
	return g.CreateVariable(name, RolePlaceholder, dtype, shape)
}

// Var declares a trainable variable initialized to value.
func (g *Graph) Var(name string, value *tensor.RawTensor) (*Variable, error) {
	return g.leafWithValue(name, RoleVariable, value)
}

// Constant declares a constant holding value.
func (g *Graph) Constant(name string, value *tensor.RawTensor) (*Variable, error) {
	return g.leafWithValue(name, RoleConstant, value)
}

func (g *Graph) leafWithValue(name string, role Role, value *tensor.RawTensor) (*Variable, error) {
	if value == nil {
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("%s %q: nil value", role, name)}
	}
	v, err := g.CreateVariable(name, role, value.DType(), value.Shape())
	if err != nil {
		return nil, err
	}
	v.value = value
	return v, nil
}

// CreateVariable declares a leaf variable without a value. An empty name is
// replaced by a generated one. Arrays are created only by ops.
func (g *Graph) CreateVariable(name string, role Role, dtype tensor.DataType, shape tensor.Shape) (*Variable, error) {
	if role == RoleArray {
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("variable %q: array variables are created by ops", name)}
	}
	if role < RolePlaceholder || role > RoleArray {
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("variable %q: invalid role %d", name, int(role))}
	}
	if !dtype.Valid() {
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("variable %q: invalid dtype %s", name, dtype)}
	}
	for _, d := range shape {
		if d <= 0 && d != tensor.UnknownDim {
			return nil, &InvalidConfigError{Reason: fmt.Sprintf("variable %q: invalid dimension %d in %v", name, d, shape)}
		}
	}
	if role != RolePlaceholder && !shape.IsFullyKnown() {
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("%s %q: shape %v must be fully known", role, name, shape)}
	}

	if name == "" {
		name = g.uniqueName(role.String())
	} else if g.nameTaken(name) {
		return nil, &DuplicateNameError{Name: name}
	}

	v := g.addVariable(name, role, dtype, shape, noOp, 0)
	g.version++
	g.log.Debug("create variable", "name", name, "role", role, "type", v.varType())
	return v, nil
}

func (g *Graph) addVariable(name string, role Role, dtype tensor.DataType, shape tensor.Shape, producer OpID, outIndex int) *Variable {
	v := &Variable{
		g:        g,
		id:       VarID(len(g.vars)),
		name:     name,
		role:     role,
		dtype:    dtype,
		shape:    shape.Clone(),
		producer: producer,
		outIndex: outIndex,
	}
	g.vars = append(g.vars, v)
	g.varNames[name] = v.id
	return v
}

// AssociateValue binds value to the named variable. The dtype must match and
// the shape must satisfy the declared one. Placeholders take feeds instead.
func (g *Graph) AssociateValue(name string, value *tensor.RawTensor) error {
	v, err := g.Variable(name)
	if err != nil {
		return err
	}
	if g.mirrorsParent(v.id) {
		return g.parent.AssociateValue(name, value)
	}
	if v.role == RolePlaceholder {
		return &InvalidConfigError{Reason: fmt.Sprintf("placeholder %q: values are supplied as feeds", name)}
	}
	if err := checkValue(v, value); err != nil {
		return err
	}
	v.value = value
	return nil
}

func checkValue(v *Variable, value *tensor.RawTensor) error {
	if value == nil {
		return &InvalidConfigError{Reason: fmt.Sprintf("variable %q: nil value", v.name)}
	}
	if value.DType() != v.dtype {
		return &TypeMismatchError{Variable: v.name, Want: v.dtype, Got: value.DType()}
	}
	if !v.shape.Compatible(value.Shape()) {
		return &ShapeMismatchError{Variable: v.name, Want: v.shape.Clone(), Got: value.Shape()}
	}
	return nil
}

// mirrorsParent reports whether id is a leaf copied from the forward graph.
func (g *Graph) mirrorsParent(id VarID) bool {
	return g.parent != nil && int(id) < g.forwardVars && g.vars[id].role != RoleArray
}

func (g *Graph) value(id VarID) *tensor.RawTensor {
	if g.mirrorsParent(id) {
		return g.parent.value(id)
	}
	return g.vars[id].value
}

// OpOption configures an op at creation.
type OpOption func(*opConfig)

type opConfig struct {
	name    string
	outputs []string
}

// WithOpName names the op. Single-output ops name their output after the op.
func WithOpName(name string) OpOption {
	return func(c *opConfig) { c.name = name }
}

// WithOutputNames names the op's outputs.
func WithOutputNames(names ...string) OpOption {
	return func(c *opConfig) { c.outputs = names }
}

// CreateOp adds an op reading inputs and returns its output variables.
// Arity, configuration, dtypes and shapes are checked statically; nothing is
// added to the graph when a check fails.
func (g *Graph) CreateOp(kind ops.Kind, inputs []*Variable, attrs ops.Attrs, opts ...OpOption) ([]*Variable, error) {
	var cfg opConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	types := make([]ops.VarType, len(inputs))
	ids := make([]VarID, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, &InvalidConfigError{Op: cfg.name, Kind: kind, Reason: fmt.Sprintf("input %d is nil", i)}
		}
		if in.g != g {
			return nil, &InvalidConfigError{Op: cfg.name, Kind: kind, Reason: fmt.Sprintf("input %q belongs to another graph", in.name)}
		}
		types[i] = in.varType()
		ids[i] = in.id
	}

	name := cfg.name
	if name != "" {
		if _, dup := g.opNames[name]; dup {
			return nil, &DuplicateNameError{Name: name}
		}
	}

	outTypes, resolved, err := ops.Infer(kind, attrs, types)
	if err != nil {
		display := name
		if display == "" {
			display = kind.String()
		}
		return nil, opError(display, kind, err)
	}

	if name == "" {
		name = g.uniqueName(kind.String())
	}
	outNames, err := g.outputNames(name, kind, cfg.outputs, len(outTypes))
	if err != nil {
		return nil, err
	}

	op := &Op{
		g:      g,
		id:     OpID(len(g.nodes)),
		name:   name,
		kind:   kind,
		attrs:  resolved,
		inputs: ids,
	}
	g.nodes = append(g.nodes, op)
	g.opNames[name] = op.id

	outs := make([]*Variable, len(outTypes))
	for i, t := range outTypes {
		outs[i] = g.addVariable(outNames[i], RoleArray, t.DType, t.Shape, op.id, i)
		op.outputs = append(op.outputs, outs[i].id)
	}
	g.version++
	g.log.Debug("create op", "op", name, "kind", kind, "inputs", len(inputs), "outputs", len(outs))
	return outs, nil
}

func (g *Graph) outputNames(opName string, kind ops.Kind, explicit []string, n int) ([]string, error) {
	if explicit != nil {
		if len(explicit) != n {
			return nil, &InvalidConfigError{Op: opName, Kind: kind, Reason: fmt.Sprintf("%d output names for %d outputs", len(explicit), n)}
		}
		seen := make(map[string]bool, n)
		for _, name := range explicit {
			if name == "" {
				return nil, &InvalidConfigError{Op: opName, Kind: kind, Reason: "empty output name"}
			}
			if seen[name] || g.HasVariable(name) {
				return nil, &DuplicateNameError{Name: name}
			}
			seen[name] = true
		}
		return explicit, nil
	}

	names := make([]string, n)
	for i := range names {
		base := opName
		if n > 1 {
			base = fmt.Sprintf("%s:%d", opName, i)
		}
		if g.HasVariable(base) {
			base = g.uniqueName(base)
		}
		names[i] = base
	}
	return names, nil
}

func (g *Graph) nameTaken(name string) bool {
	_, isVar := g.varNames[name]
	_, isOp := g.opNames[name]
	return isVar || isOp
}

// uniqueName returns base, or base_N for the first free N.
func (g *Graph) uniqueName(base string) string {
	for {
		n := g.counters[base]
		g.counters[base] = n + 1
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		if !g.nameTaken(name) {
			return name
		}
	}
}

func (g *Graph) lookupAll(ids []VarID) []*Variable {
	out := make([]*Variable, len(ids))
	for i, id := range ids {
		out[i] = g.vars[id]
	}
	return out
}

// SetLoss replaces the loss variables.
func (g *Graph) SetLoss(names ...string) error {
	ids := make([]VarID, 0, len(names))
	for _, name := range names {
		id, err := g.lossID(name)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	g.losses = ids
	g.version++
	return nil
}

// AddLoss appends a loss variable. Adding an existing loss is a no-op.
func (g *Graph) AddLoss(name string) error {
	id, err := g.lossID(name)
	if err != nil {
		return err
	}
	for _, l := range g.losses {
		if l == id {
			return nil
		}
	}
	g.losses = append(g.losses, id)
	g.version++
	return nil
}

func (g *Graph) lossID(name string) (VarID, error) {
	v, err := g.Variable(name)
	if err != nil {
		return 0, err
	}
	if !v.dtype.IsFloat() {
		return 0, &InvalidConfigError{Reason: fmt.Sprintf("loss %q must be floating point, got %s", name, v.dtype)}
	}
	return v.id, nil
}

// Losses returns the loss variables.
func (g *Graph) Losses() []*Variable {
	return g.lookupAll(g.losses)
}

// Summary renders the variables and ops as tables.
func (g *Graph) Summary() string {
	var b strings.Builder
	g.WriteSummary(&b)
	return b.String()
}

// WriteSummary writes the Summary tables to w.
func (g *Graph) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Graph %s (%s): %d variables, %d ops, %d losses\n",
		g.name, g.id, len(g.vars), len(g.nodes), len(g.losses))

	vt := tablewriter.NewWriter(w)
	vt.SetHeader([]string{"VARIABLE", "ROLE", "TYPE", "PRODUCER"})
	vt.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	vt.SetAlignment(tablewriter.ALIGN_LEFT)
	vt.SetAutoFormatHeaders(false)
	for _, v := range g.vars {
		producer := "-"
		if op := v.Producer(); op != nil {
			producer = op.name
		}
		vt.Append([]string{v.name, v.role.String(), v.varType().String(), producer})
	}
	vt.Render()

	if len(g.nodes) == 0 {
		return
	}
	ot := tablewriter.NewWriter(w)
	ot.SetHeader([]string{"OP", "KIND", "INPUTS", "OUTPUTS"})
	ot.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	ot.SetAlignment(tablewriter.ALIGN_LEFT)
	ot.SetAutoFormatHeaders(false)
	for _, op := range g.nodes {
		ot.Append([]string{op.name, op.kind.String(), joinNames(op.Inputs()), joinNames(op.Outputs())})
	}
	ot.Render()
}

func joinNames(vs []*Variable) string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.name
	}
	return strings.Join(names, ", ")
}
