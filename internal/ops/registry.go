package ops

import (
	"fmt"
	"reflect"

	"github.com/born-ml/samediff/internal/tensor"
)

// Variadic marks a Def without an upper input bound.
const Variadic = -1

// VarType is the static type of a value: dtype plus a possibly partial shape.
// A nil Shape means the rank itself is unknown.
type VarType struct {
	DType tensor.DataType
	Shape tensor.Shape
}

// String formats a VarType as dtype[shape].
func (v VarType) String() string {
	if v.Shape == nil {
		return v.DType.String() + "[*]"
	}
	return v.DType.String() + v.Shape.String()
}

// ForwardFunc runs an op's kernels on concrete inputs.
type ForwardFunc func(b Backend, attrs Attrs, inputs []*tensor.RawTensor) []*tensor.RawTensor

// InferFunc computes output types from input types without running kernels.
type InferFunc func(attrs Attrs, inputs []VarType) ([]VarType, error)

// Def describes one op kind.
type Def struct {
	Kind      Kind
	MinInputs int
	MaxInputs int // Variadic for no limit

	// Defaults is the configuration used when none is supplied. Nil means the
	// kind takes no configuration. Supplied attrs must have the same type.
	Defaults Attrs
	// AttrsRequired rejects a nil configuration instead of using Defaults.
	AttrsRequired bool

	// Outputs gives the output count; nil means one output.
	Outputs func(attrs Attrs, numInputs int) int

	Infer   InferFunc
	Forward ForwardFunc

	// Differentiable is false for kinds whose gradient is identically zero
	// (comparisons, integer-valued ops) and for backprop helper kinds.
	Differentiable bool
}

// Name returns the op name.
func (d *Def) Name() string { return d.Kind.String() }

// NumOutputs returns the number of outputs for the given configuration.
func (d *Def) NumOutputs(attrs Attrs, numInputs int) int {
	if d.Outputs == nil {
		return 1
	}
	return d.Outputs(attrs, numInputs)
}

// CheckArity validates an input count.
func (d *Def) CheckArity(n int) error {
	if n < d.MinInputs || (d.MaxInputs != Variadic && n > d.MaxInputs) {
		switch {
		case d.MaxInputs == Variadic:
			return fmt.Errorf("%w: %s takes at least %d inputs, got %d", ErrArity, d.Name(), d.MinInputs, n)
		case d.MinInputs == d.MaxInputs:
			return fmt.Errorf("%w: %s takes %d inputs, got %d", ErrArity, d.Name(), d.MinInputs, n)
		default:
			return fmt.Errorf("%w: %s takes %d to %d inputs, got %d", ErrArity, d.Name(), d.MinInputs, d.MaxInputs, n)
		}
	}
	return nil
}

// ResolveAttrs substitutes defaults for nil attrs and validates the configuration.
func (d *Def) ResolveAttrs(attrs Attrs) (Attrs, error) {
	if d.Defaults == nil {
		if attrs != nil {
			return nil, fmt.Errorf("%w: %s takes no configuration, got %T", ErrAttrs, d.Name(), attrs)
		}
		return nil, nil
	}
	if attrs == nil {
		if d.AttrsRequired {
			return nil, fmt.Errorf("%w: %s requires %T", ErrAttrs, d.Name(), d.Defaults)
		}
		return d.Defaults, nil
	}
	if reflect.TypeOf(attrs) != reflect.TypeOf(d.Defaults) {
		return nil, fmt.Errorf("%w: %s expects %T, got %T", ErrAttrs, d.Name(), d.Defaults, attrs)
	}
	if v, ok := attrs.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAttrs, err)
		}
	}
	return attrs, nil
}

// Registry maps op kinds to their definitions.
type Registry struct {
	defs map[Kind]*Def
}

// newRegistry creates a registry with every op kind.
func newRegistry() *Registry {
	r := &Registry{defs: make(map[Kind]*Def, numKinds)}

	r.registerMathOps()
	r.registerShapeOps()
	r.registerNNOps()
	r.registerUtilityOps()

	for _, k := range Kinds() {
		if _, ok := r.defs[k]; !ok {
			panic(fmt.Sprintf("ops: kind %s has no definition", k))
		}
	}
	return r
}

func (r *Registry) register(d *Def) {
	if _, dup := r.defs[d.Kind]; dup {
		panic(fmt.Sprintf("ops: kind %s registered twice", d.Kind))
	}
	r.defs[d.Kind] = d
}

var defaultRegistry = newRegistry()

// Lookup returns the definition of kind.
func Lookup(kind Kind) (*Def, error) {
	d, ok := defaultRegistry.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return d, nil
}

// Infer validates arity and configuration and computes output types.
// It returns the resolved attrs so callers can store them.
func Infer(kind Kind, attrs Attrs, inputs []VarType) ([]VarType, Attrs, error) {
	d, err := Lookup(kind)
	if err != nil {
		return nil, nil, err
	}
	if err := d.CheckArity(len(inputs)); err != nil {
		return nil, nil, err
	}
	attrs, err = d.ResolveAttrs(attrs)
	if err != nil {
		return nil, nil, err
	}
	outs, err := d.Infer(attrs, inputs)
	if err != nil {
		return nil, nil, err
	}
	if want := d.NumOutputs(attrs, len(inputs)); len(outs) != want {
		return nil, nil, fmt.Errorf("%s: inferred %d outputs, want %d", d.Name(), len(outs), want)
	}
	return outs, attrs, nil
}

// Execute runs kind on concrete inputs using backend b.
// A kernel panic is returned as an error wrapping ErrKernel.
func Execute(b Backend, kind Kind, attrs Attrs, inputs []*tensor.RawTensor) (outs []*tensor.RawTensor, err error) {
	d, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	if err := d.CheckArity(len(inputs)); err != nil {
		return nil, err
	}
	attrs, err = d.ResolveAttrs(attrs)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			outs = nil
			err = fmt.Errorf("%w: %s: %v", ErrKernel, d.Name(), r)
		}
	}()

	outs = d.Forward(b, attrs, inputs)
	if want := d.NumOutputs(attrs, len(inputs)); len(outs) != want {
		return nil, fmt.Errorf("%w: %s produced %d outputs, want %d", ErrKernel, d.Name(), len(outs), want)
	}
	return outs, nil
}

func one(t *tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{t}
}

func same(t VarType) []VarType {
	return []VarType{{DType: t.DType, Shape: t.Shape.Clone()}}
}
