package ops

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// registerUtilityOps adds comparison, selection, casting and fill kinds.
func (r *Registry) registerUtilityOps() {
	comparisons := []struct {
		kind Kind
		fn   func(Backend, *tensor.RawTensor, *tensor.RawTensor) *tensor.RawTensor
	}{
		{Equal, Backend.Equal},
		{Greater, Backend.Greater},
		{Less, Backend.Less},
	}
	for _, cmp := range comparisons {
		fn := cmp.fn
		r.register(&Def{
			Kind:      cmp.kind,
			MinInputs: 2,
			MaxInputs: 2,
			Infer:     inferBinary(cmp.kind.String(), true),
			Forward: func(b Backend, _ Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
				return one(fn(b, in[0], in[1]))
			},
		})
	}

	r.register(&Def{
		Kind:      ArgMax,
		MinInputs: 1,
		MaxInputs: 1,
		Defaults:  AxisAttrs{Axis: -1},
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			shape := in[0].Shape
			if shape == nil {
				return []VarType{{DType: tensor.Int64}}, nil
			}
			if shape.Rank() == 0 {
				return []VarType{{DType: tensor.Int64, Shape: tensor.Shape{}}}, nil
			}
			axis, err := staticAxis("argmax", attrs.(AxisAttrs).Axis, shape.Rank())
			if err != nil {
				return nil, err
			}
			out, err := reducedStatic("argmax", shape, []int{axis}, false)
			if err != nil {
				return nil, err
			}
			return []VarType{{DType: tensor.Int64, Shape: out}}, nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.ArgMax(in[0], attrs.(AxisAttrs).Axis))
		},
	})

	r.register(&Def{
		Kind:          Cast,
		MinInputs:     1,
		MaxInputs:     1,
		Defaults:      CastAttrs{},
		AttrsRequired: true,
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			return []VarType{{DType: attrs.(CastAttrs).DType, Shape: in[0].Shape.Clone()}}, nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.Cast(in[0], attrs.(CastAttrs).DType))
		},
		Differentiable: true,
	})

	// where(cond, x, y)
	r.register(&Def{
		Kind:      Where,
		MinInputs: 3,
		MaxInputs: 3,
		Infer: func(_ Attrs, in []VarType) ([]VarType, error) {
			if in[0].DType != tensor.Bool {
				return nil, fmt.Errorf("%w: where condition must be bool, got %s", ErrDType, in[0].DType)
			}
			if err := sameDType("where", in[1], in[2]); err != nil {
				return nil, err
			}
			xy, err := broadcastShape("where", in[1].Shape, in[2].Shape)
			if err != nil {
				return nil, err
			}
			shape, err := broadcastShape("where", in[0].Shape, xy)
			if err != nil {
				return nil, err
			}
			return []VarType{{DType: in[1].DType, Shape: shape}}, nil
		},
		Forward: func(b Backend, _ Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.Where(in[0], in[1], in[2]))
		},
		Differentiable: true,
	})

	for kind, value := range map[Kind]float64{OnesLike: 1, ZerosLike: 0} {
		r.register(&Def{
			Kind:      kind,
			MinInputs: 1,
			MaxInputs: 1,
			Infer:     inferSame,
			Forward: func(b Backend, _ Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
				return one(b.Fill(in[0].Shape(), in[0].DType(), value))
			},
		})
	}
}
