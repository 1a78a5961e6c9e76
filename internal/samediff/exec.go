package samediff

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/born-ml/samediff/internal/backend/cpu"
	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

// ExecContext carries the kernel backend and logger used for execution.
type ExecContext struct {
	Backend ops.Backend
	Logger  logger.Logger
}

// DefaultExecContext returns a CPU context that logs nothing.
func DefaultExecContext() *ExecContext {
	return &ExecContext{Backend: cpu.New(), Logger: logger.Discard()}
}

// NewExecContext returns a context for the named device.
func NewExecContext(device string, log logger.Logger) (*ExecContext, error) {
	b, err := ResolveBackend(device)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ExecContext{Backend: b, Logger: log}, nil
}

// ResolveBackend maps a device name to a kernel backend. Only the CPU is available.
func ResolveBackend(device string) (ops.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(device)) {
	case "", "cpu":
		return cpu.New(), nil
	default:
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("unsupported device %q (available: cpu)", device)}
	}
}

func (ec *ExecContext) backend() ops.Backend {
	if ec == nil || ec.Backend == nil {
		return cpu.New()
	}
	return ec.Backend
}

func (ec *ExecContext) logger() logger.Logger {
	if ec == nil || ec.Logger == nil {
		return logger.Discard()
	}
	return ec.Logger
}

// Session executes a graph with a given context.
type Session struct {
	g   *Graph
	b   ops.Backend
	log logger.Logger
}

// NewSession creates a session for g. A nil context uses the graph's.
func NewSession(g *Graph, ec *ExecContext) *Session {
	if ec == nil {
		ec = g.ec
	}
	log := g.log
	if ec != nil && ec.Logger != nil {
		log = ec.Logger.With("graph", g.name)
	}
	return &Session{g: g, b: ec.backend(), log: log}
}

// Output executes the graph using the graph's context.
func (g *Graph) Output(feeds map[string]*tensor.RawTensor, names ...string) (map[string]*tensor.RawTensor, error) {
	return NewSession(g, nil).Output(feeds, names...)
}

// Output computes the named variables. Feeds bind placeholders by name. Only
// ops the outputs depend on are run, in topological order with ties broken by
// op id, so results are deterministic. Intermediate values are bound to their
// variables after a successful pass.
func (s *Session) Output(feeds map[string]*tensor.RawTensor, names ...string) (map[string]*tensor.RawTensor, error) {
	g := s.g
	if len(names) == 0 {
		return nil, &InvalidConfigError{Reason: "no outputs requested"}
	}
	targets := make([]VarID, len(names))
	for i, name := range names {
		v, err := g.Variable(name)
		if err != nil {
			return nil, err
		}
		targets[i] = v.id
	}

	memo := make(map[VarID]*tensor.RawTensor, len(feeds))
	for name, value := range feeds {
		v, err := g.Variable(name)
		if err != nil {
			return nil, err
		}
		if v.role != RolePlaceholder {
			return nil, &InvalidConfigError{Reason: fmt.Sprintf("feed %q: %s variables cannot be fed", name, v.role)}
		}
		if err := checkValue(v, value); err != nil {
			return nil, err
		}
		memo[v.id] = value
	}

	order := g.schedule(targets)
	s.log.Debug("execute", "outputs", len(names), "ops", len(order))

	for _, id := range order {
		op := g.nodes[id]
		inputs := make([]*tensor.RawTensor, len(op.inputs))
		for i, in := range op.inputs {
			t, err := g.resolve(memo, in, op.name)
			if err != nil {
				return nil, err
			}
			inputs[i] = t
		}

		s.log.Debug("exec op", "op", op.name, "kind", op.kind)
		outs, err := ops.Execute(s.b, op.kind, op.attrs, inputs)
		if err != nil {
			return nil, &NativeExecutionError{Op: op.name, Kind: op.kind, Err: err}
		}
		for i, out := range outs {
			v := g.vars[op.outputs[i]]
			if !v.shape.Compatible(out.Shape()) || out.DType() != v.dtype {
				return nil, &NativeExecutionError{
					Op:   op.name,
					Kind: op.kind,
					Err:  fmt.Errorf("output %q: got %s%v, declared %s", v.name, out.DType(), out.Shape(), v.varType()),
				}
			}
			memo[v.id] = out
		}
	}

	results := make(map[string]*tensor.RawTensor, len(names))
	for i, id := range targets {
		t, err := g.resolve(memo, id, "")
		if err != nil {
			return nil, err
		}
		results[names[i]] = t
	}

	for _, id := range order {
		for _, out := range g.nodes[id].outputs {
			g.vars[out].value = memo[out]
		}
	}
	return results, nil
}

// resolve returns the value of id for this pass: computed, fed, or bound.
func (g *Graph) resolve(memo map[VarID]*tensor.RawTensor, id VarID, consumer string) (*tensor.RawTensor, error) {
	if t, ok := memo[id]; ok {
		return t, nil
	}
	v := g.vars[id]
	switch v.role {
	case RoleConstant, RoleVariable:
		if t := g.value(id); t != nil {
			memo[id] = t
			return t, nil
		}
	}
	return nil, &UnboundVariableError{Name: v.name, Role: v.role, Op: consumer}
}

// schedule returns the ops needed for targets in Kahn order, preferring the
// lowest op id among ready ops.
func (g *Graph) schedule(targets []VarID) []OpID {
	needed := make(map[OpID]bool)
	stack := make([]VarID, 0, len(targets))
	stack = append(stack, targets...)
	seen := make(map[VarID]bool)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		p := g.vars[id].producer
		if p == noOp || needed[p] {
			continue
		}
		needed[p] = true
		stack = append(stack, g.nodes[p].inputs...)
	}

	pending := make(map[OpID]int, len(needed))
	consumers := make(map[OpID][]OpID)
	ready := &opQueue{}
	for id := range needed {
		deps := make(map[OpID]bool)
		for _, in := range g.nodes[id].inputs {
			if p := g.vars[in].producer; p != noOp && needed[p] {
				deps[p] = true
			}
		}
		pending[id] = len(deps)
		for p := range deps {
			consumers[p] = append(consumers[p], id)
		}
		if len(deps) == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]OpID, 0, len(needed))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(OpID)
		order = append(order, id)
		for _, c := range consumers[id] {
			pending[c]--
			if pending[c] == 0 {
				heap.Push(ready, c)
			}
		}
	}
	return order
}

// opQueue is a min-heap of op ids.
type opQueue []OpID

func (q opQueue) Len() int           { return len(q) }
func (q opQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q opQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *opQueue) Push(x any)        { *q = append(*q, x.(OpID)) }
func (q *opQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
