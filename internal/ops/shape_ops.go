package ops

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// registerShapeOps adds shape manipulation and reduction kinds.
func (r *Registry) registerShapeOps() {
	r.register(&Def{
		Kind:          Reshape,
		MinInputs:     1,
		MaxInputs:     1,
		Defaults:      ReshapeAttrs{},
		AttrsRequired: true,
		Infer:         inferReshape,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			shape, err := resolveReshape(attrs.(ReshapeAttrs).Shape, in[0].Shape())
			if err != nil {
				panic(err.Error())
			}
			return one(b.Reshape(in[0], shape))
		},
		Differentiable: true,
	})

	r.register(&Def{
		Kind:      Transpose,
		MinInputs: 1,
		MaxInputs: 1,
		Defaults:  TransposeAttrs{},
		Infer:     inferTranspose,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.Transpose(in[0], attrs.(TransposeAttrs).Perm...))
		},
		Differentiable: true,
	})

	r.register(&Def{
		Kind:          BroadcastTo,
		MinInputs:     1,
		MaxInputs:     1,
		Defaults:      BroadcastAttrs{},
		AttrsRequired: true,
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			target := attrs.(BroadcastAttrs).Shape
			got, err := broadcastShape("broadcast_to", in[0].Shape, target)
			if err != nil {
				return nil, err
			}
			if got != nil && got.Rank() != target.Rank() {
				return nil, fmt.Errorf("%w: broadcast_to cannot expand %v to %v", ErrShape, in[0].Shape, target)
			}
			if got != nil && got.IsFullyKnown() && !got.Equal(target) {
				return nil, fmt.Errorf("%w: broadcast_to cannot expand %v to %v", ErrShape, in[0].Shape, target)
			}
			return []VarType{{DType: in[0].DType, Shape: target.Clone()}}, nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.BroadcastTo(in[0], attrs.(BroadcastAttrs).Shape))
		},
		Differentiable: true,
	})

	r.register(&Def{
		Kind:      Concat,
		MinInputs: 1,
		MaxInputs: Variadic,
		Defaults:  AxisAttrs{},
		Infer:     inferConcat,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.Concat(in, attrs.(AxisAttrs).Axis))
		},
		Differentiable: true,
	})

	r.register(&Def{
		Kind:          Split,
		MinInputs:     1,
		MaxInputs:     1,
		Defaults:      SplitAttrs{},
		AttrsRequired: true,
		Outputs: func(attrs Attrs, _ int) int {
			return attrs.(SplitAttrs).Num
		},
		Infer: inferSplit,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(SplitAttrs)
			return b.SplitEven(in[0], a.Axis, a.Num)
		},
		Differentiable: true,
	})

	// reduce_to_shape_of(grad, ref) sums grad down to ref's shape.
	r.register(&Def{
		Kind:      ReduceToShapeOf,
		MinInputs: 2,
		MaxInputs: 2,
		Infer: func(_ Attrs, in []VarType) ([]VarType, error) {
			if in[1].Shape != nil && in[0].Shape != nil {
				if _, err := broadcastShape("reduce_to_shape_of", in[1].Shape, in[0].Shape); err != nil {
					return nil, err
				}
			}
			return []VarType{{DType: in[0].DType, Shape: in[1].Shape.Clone()}}, nil
		},
		Forward: func(b Backend, _ Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.ReduceToShape(in[0], in[1].Shape()))
		},
	})

	reductions := []struct {
		kind      Kind
		fn        func(Backend, *tensor.RawTensor, []int, bool) *tensor.RawTensor
		floatOnly bool
	}{
		{ReduceSum, Backend.Sum, false},
		{ReduceMean, Backend.Mean, true},
		{ReduceMax, Backend.Max, false},
	}
	for _, red := range reductions {
		fn, name, floatOnly := red.fn, red.kind.String(), red.floatOnly
		r.register(&Def{
			Kind:      red.kind,
			MinInputs: 1,
			MaxInputs: 1,
			Defaults:  ReduceAttrs{},
			Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
				if floatOnly {
					if err := floatDType(name, in[0]); err != nil {
						return nil, err
					}
				}
				a := attrs.(ReduceAttrs)
				shape, err := reducedStatic(name, in[0].Shape, a.Axes, a.KeepDims)
				if err != nil {
					return nil, err
				}
				return []VarType{{DType: in[0].DType, Shape: shape}}, nil
			},
			Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
				a := attrs.(ReduceAttrs)
				return one(fn(b, in[0], a.Axes, a.KeepDims))
			},
			Differentiable: true,
		})
	}

	// reduce_*_bp(x, grad) maps the gradient of a reduction back onto x.
	backprops := []struct {
		kind Kind
		fn   func(Backend, *tensor.RawTensor, *tensor.RawTensor, []int) *tensor.RawTensor
	}{
		{ReduceSumBp, Backend.SumBackward},
		{ReduceMeanBp, Backend.MeanBackward},
		{ReduceMaxBp, Backend.MaxBackward},
	}
	for _, bp := range backprops {
		fn, name := bp.fn, bp.kind.String()
		r.register(&Def{
			Kind:      bp.kind,
			MinInputs: 2,
			MaxInputs: 2,
			Defaults:  ReduceAttrs{},
			Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
				if err := sameDType(name, in[0], in[1]); err != nil {
					return nil, err
				}
				a := attrs.(ReduceAttrs)
				if _, err := reducedStatic(name, in[0].Shape, a.Axes, a.KeepDims); err != nil {
					return nil, err
				}
				return same(in[0]), nil
			},
			Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
				return one(fn(b, in[0], in[1], attrs.(ReduceAttrs).Axes))
			},
		})
	}
}

// resolveReshape substitutes the -1 dimension of target for a concrete input shape.
func resolveReshape(target, input tensor.Shape) (tensor.Shape, error) {
	out := target.Clone()
	if out == nil {
		out = tensor.Shape{}
	}
	known, unknownAt := 1, -1
	for i, d := range out {
		if d == tensor.UnknownDim {
			unknownAt = i
			continue
		}
		known *= d
	}
	total := input.NumElements()
	if unknownAt >= 0 {
		if known == 0 || total%known != 0 {
			return nil, fmt.Errorf("reshape: cannot reshape %v to %v", input, target)
		}
		out[unknownAt] = total / known
	}
	if out.NumElements() != total {
		return nil, fmt.Errorf("reshape: cannot reshape %v (%d elements) to %v", input, total, target)
	}
	return out, nil
}

func inferReshape(attrs Attrs, in []VarType) ([]VarType, error) {
	target := attrs.(ReshapeAttrs).Shape
	if in[0].Shape != nil && in[0].Shape.IsFullyKnown() {
		out, err := resolveReshape(target, in[0].Shape)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShape, err)
		}
		return []VarType{{DType: in[0].DType, Shape: out}}, nil
	}
	out := target.Clone()
	if out == nil {
		out = tensor.Shape{}
	}
	return []VarType{{DType: in[0].DType, Shape: out}}, nil
}

func inferTranspose(attrs Attrs, in []VarType) ([]VarType, error) {
	perm := attrs.(TransposeAttrs).Perm
	shape := in[0].Shape
	if shape == nil {
		return []VarType{{DType: in[0].DType}}, nil
	}
	if len(perm) == 0 {
		out := make(tensor.Shape, shape.Rank())
		for i := range out {
			out[i] = shape[shape.Rank()-1-i]
		}
		return []VarType{{DType: in[0].DType, Shape: out}}, nil
	}
	if len(perm) != shape.Rank() {
		return nil, fmt.Errorf("%w: transpose perm %v for rank %d", ErrShape, perm, shape.Rank())
	}
	out := make(tensor.Shape, len(perm))
	for i, p := range perm {
		out[i] = shape[p]
	}
	return []VarType{{DType: in[0].DType, Shape: out}}, nil
}

func inferConcat(attrs Attrs, in []VarType) ([]VarType, error) {
	if err := sameDType("concat", in...); err != nil {
		return nil, err
	}
	var ref tensor.Shape
	for _, t := range in {
		if t.Shape != nil {
			ref = t.Shape
			break
		}
	}
	if ref == nil {
		return []VarType{{DType: in[0].DType}}, nil
	}
	axis, err := staticAxis("concat", attrs.(AxisAttrs).Axis, ref.Rank())
	if err != nil {
		return nil, err
	}
	out := ref.Clone()
	out[axis] = 0
	for i, t := range in {
		if t.Shape == nil {
			out[axis] = tensor.UnknownDim
			continue
		}
		if t.Shape.Rank() != ref.Rank() {
			return nil, fmt.Errorf("%w: concat input %d has rank %d, want %d", ErrShape, i, t.Shape.Rank(), ref.Rank())
		}
		for d := range ref {
			if d == axis {
				continue
			}
			if !dimsAgree(t.Shape[d], ref[d]) {
				return nil, fmt.Errorf("%w: concat input %d shape %v incompatible with %v", ErrShape, i, t.Shape, ref)
			}
			if out[d] == tensor.UnknownDim {
				out[d] = t.Shape[d]
			}
		}
		switch {
		case out[axis] == tensor.UnknownDim:
		case t.Shape[axis] == tensor.UnknownDim:
			out[axis] = tensor.UnknownDim
		default:
			out[axis] += t.Shape[axis]
		}
	}
	return []VarType{{DType: in[0].DType, Shape: out}}, nil
}

func inferSplit(attrs Attrs, in []VarType) ([]VarType, error) {
	a := attrs.(SplitAttrs)
	outs := make([]VarType, a.Num)
	shape := in[0].Shape
	var part tensor.Shape
	if shape != nil {
		axis, err := staticAxis("split", a.Axis, shape.Rank())
		if err != nil {
			return nil, err
		}
		part = shape.Clone()
		if d := shape[axis]; d != tensor.UnknownDim {
			if d%a.Num != 0 {
				return nil, fmt.Errorf("%w: split dimension %d of size %d into %d parts", ErrShape, axis, d, a.Num)
			}
			part[axis] = d / a.Num
		}
	}
	for i := range outs {
		outs[i] = VarType{DType: in[0].DType, Shape: part.Clone()}
	}
	return outs, nil
}
