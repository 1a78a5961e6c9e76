package samediff

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/born-ml/samediff/internal/tensor"
)

// GradSuffix is appended to a variable name to name its gradient.
const GradSuffix = "-grad"

// GradGraph returns the gradient graph of g, building it if g changed since
// the last build.
//
// The gradient graph starts as a structural copy of g with identical ids, so
// forward ops are recomputed during gradient execution while leaf values are
// read from g. Backward ops are appended after the forward ops. Every float
// trainable variable and float placeholder x gets a variable named x-grad
// holding d(sum of losses)/dx; candidates not connected to a loss get zeros.
func (g *Graph) GradGraph() (*Graph, error) {
	if g.parent != nil {
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("graph %q is already a gradient graph", g.name)}
	}
	if len(g.losses) == 0 {
		return nil, &NoLossDefinedError{Graph: g.name}
	}
	if g.grad != nil && g.gradVersion == g.version {
		return g.grad, nil
	}

	gg, err := g.buildGradGraph()
	if err != nil {
		return nil, err
	}
	g.grad, g.gradVersion = gg, g.version
	g.log.Debug("built gradient graph", "ops", len(gg.nodes), "forward_ops", len(g.nodes))
	return gg, nil
}

// GradientName returns the gradient variable name for a forward variable.
func (g *Graph) GradientName(name string) (string, error) {
	gg, err := g.GradGraph()
	if err != nil {
		return "", err
	}
	v, err := g.Variable(name)
	if err != nil {
		return "", err
	}
	id, ok := gg.gradOf[v.id]
	if !ok {
		return "", &InvalidConfigError{Reason: fmt.Sprintf("variable %q (%s %s) has no gradient", name, v.role, v.dtype)}
	}
	return gg.vars[id].name, nil
}

// CalculateGradients executes the gradient graph and returns the gradients of
// the named variables, keyed by forward variable name. With no names, every
// gradient candidate is returned.
func (g *Graph) CalculateGradients(feeds map[string]*tensor.RawTensor, names ...string) (map[string]*tensor.RawTensor, error) {
	gg, err := g.GradGraph()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		for _, v := range g.vars {
			if v.IsGradCandidate() {
				names = append(names, v.name)
			}
		}
		if len(names) == 0 {
			return map[string]*tensor.RawTensor{}, nil
		}
	}

	gradNames := make([]string, len(names))
	for i, name := range names {
		if gradNames[i], err = g.GradientName(name); err != nil {
			return nil, err
		}
	}
	outs, err := NewSession(gg, g.ec).Output(feeds, gradNames...)
	if err != nil {
		return nil, err
	}
	grads := make(map[string]*tensor.RawTensor, len(names))
	for i, name := range names {
		grads[name] = outs[gradNames[i]]
	}
	return grads, nil
}

func (g *Graph) cloneForGrad() *Graph {
	gg := &Graph{
		id:          uuid.New(),
		name:        g.name + GradSuffix,
		varNames:    make(map[string]VarID, len(g.varNames)),
		opNames:     make(map[string]OpID, len(g.opNames)),
		counters:    make(map[string]int, len(g.counters)),
		losses:      append([]VarID(nil), g.losses...),
		ec:          g.ec,
		log:         g.log.WithGroup("grad"),
		parent:      g,
		forwardVars: len(g.vars),
		gradOf:      make(map[VarID]VarID),
	}
	for _, v := range g.vars {
		cp := *v
		cp.g, cp.value, cp.shape = gg, nil, v.shape.Clone()
		gg.vars = append(gg.vars, &cp)
		gg.varNames[cp.name] = cp.id
	}
	for _, op := range g.nodes {
		cp := *op
		cp.g = gg
		cp.inputs = append([]VarID(nil), op.inputs...)
		cp.outputs = append([]VarID(nil), op.outputs...)
		gg.nodes = append(gg.nodes, &cp)
		gg.opNames[cp.name] = cp.id
	}
	for k, n := range g.counters {
		gg.counters[k] = n
	}
	return gg
}

// markInclusion computes, per forward op, whether it lies on a path from a
// gradient candidate to a loss. useful marks float values that depend on a
// candidate; included marks values some loss depends on.
func (g *Graph) markInclusion() (active []bool, useful []bool) {
	useful = make([]bool, len(g.vars))
	for _, v := range g.vars {
		if v.IsGradCandidate() {
			useful[v.id] = true
		}
	}
	for _, op := range g.nodes {
		dep := false
		for _, in := range op.inputs {
			dep = dep || useful[in]
		}
		if !dep {
			continue
		}
		for _, out := range op.outputs {
			if g.vars[out].dtype.IsFloat() {
				useful[out] = true
			}
		}
	}

	included := make([]bool, len(g.vars))
	for _, l := range g.losses {
		included[l] = true
	}
	active = make([]bool, len(g.nodes))
	for i := len(g.nodes) - 1; i >= 0; i-- {
		op := g.nodes[i]
		reaches, feeds := false, false
		for _, out := range op.outputs {
			reaches = reaches || (included[out] && useful[out])
		}
		if !reaches {
			continue
		}
		for _, in := range op.inputs {
			feeds = feeds || useful[in]
		}
		if !feeds {
			continue
		}
		active[i] = true
		for _, in := range op.inputs {
			included[in] = true
		}
	}
	return active, useful
}

func (g *Graph) buildGradGraph() (*Graph, error) {
	gg := g.cloneForGrad()
	m := gg.Math()
	active, useful := g.markInclusion()

	pending := make(map[VarID][]*Variable)
	for _, l := range g.losses {
		seed := m.Name(gg.uniqueName(g.vars[l].name + "-seed")).OnesLike(gg.vars[l])
		if seed == nil {
			return nil, m.Err()
		}
		pending[l] = append(pending[l], seed)
	}

	for i := len(g.nodes) - 1; i >= 0; i-- {
		if !active[i] {
			continue
		}
		op := gg.nodes[i]
		outGrads := make([]*Variable, len(op.outputs))
		flowing := false
		for j, out := range op.outputs {
			if outGrads[j] = accumulate(m, pending[out]); outGrads[j] != nil {
				flowing = true
			}
		}
		if !flowing {
			continue
		}
		if m.Err() != nil {
			return nil, m.Err()
		}
		for j, out := range op.outputs {
			if outGrads[j] == nil {
				outGrads[j] = m.ZerosLike(gg.vars[out])
			}
		}

		rule, ok := backwardRules[op.kind]
		if !ok {
			return nil, &UnsupportedGradientError{Op: op.name, Kind: op.kind}
		}
		inGrads, err := rule(m, op, outGrads)
		if err != nil {
			return nil, err
		}
		if err := m.Err(); err != nil {
			return nil, err
		}
		for j, in := range op.inputs {
			if j < len(inGrads) && inGrads[j] != nil && useful[in] {
				pending[in] = append(pending[in], inGrads[j])
			}
		}
	}

	for _, v := range g.vars {
		if !v.IsGradCandidate() {
			continue
		}
		name := gg.uniqueName(v.name + GradSuffix)
		var grad *Variable
		if sum := accumulate(m, pending[v.id]); sum != nil {
			grad = m.Name(name).Identity(sum)
		} else {
			grad = m.Name(name).ZerosLike(gg.vars[v.id])
		}
		if grad == nil {
			return nil, m.Err()
		}
		gg.gradOf[v.id] = grad.id
	}
	return gg, nil
}

// accumulate sums gradient contributions with add ops.
func accumulate(m *Math, parts []*Variable) *Variable {
	if len(parts) == 0 {
		return nil
	}
	sum := parts[0]
	for _, p := range parts[1:] {
		sum = m.Add(sum, p)
	}
	return sum
}

// gradShape returns the declared shape a gradient for v must have, failing
// for shapes that cannot be rebuilt statically.
func gradShape(op *Op, v *Variable) (tensor.Shape, error) {
	if v.shape == nil {
		return nil, &UnsupportedGradientError{Op: op.name, Kind: op.kind, Reason: fmt.Sprintf("input %q has unknown rank", v.name)}
	}
	unknown := 0
	for _, d := range v.shape {
		if d == tensor.UnknownDim {
			unknown++
		}
	}
	if unknown > 1 {
		return nil, &UnsupportedGradientError{Op: op.name, Kind: op.kind, Reason: fmt.Sprintf("input %q has shape %v", v.name, v.shape)}
	}
	return v.shape.Clone(), nil
}
