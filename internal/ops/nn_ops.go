package ops

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// registerNNOps adds softmax, convolution, pooling and their backprop kinds.
func (r *Registry) registerNNOps() {
	r.register(&Def{
		Kind:      Softmax,
		MinInputs: 1,
		MaxInputs: 1,
		Defaults:  AxisAttrs{Axis: -1},
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			if err := floatDType("softmax", in[0]); err != nil {
				return nil, err
			}
			if in[0].Shape != nil {
				if _, err := staticAxis("softmax", attrs.(AxisAttrs).Axis, in[0].Shape.Rank()); err != nil {
					return nil, err
				}
			}
			return same(in[0]), nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return one(b.Softmax(in[0], attrs.(AxisAttrs).Axis))
		},
		Differentiable: true,
	})

	// conv2d(x, w[, b]): x is NCHW, w is OIHW, b is [O].
	r.register(&Def{
		Kind:      Conv2D,
		MinInputs: 2,
		MaxInputs: 3,
		Defaults:  Conv2DAttrs{Stride: 1},
		Infer:     inferConv2D,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(Conv2DAttrs)
			var bias *tensor.RawTensor
			if len(in) == 3 {
				bias = in[2]
			}
			return one(b.Conv2D(in[0], in[1], bias, a.Stride, a.Padding))
		},
		Differentiable: true,
	})

	// conv2d_input_bp(x, w, grad) and conv2d_weight_bp(x, w, grad).
	r.register(&Def{
		Kind:      Conv2DInputBp,
		MinInputs: 3,
		MaxInputs: 3,
		Defaults:  Conv2DAttrs{Stride: 1},
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			if _, err := inferConv2D(attrs, in[:2]); err != nil {
				return nil, err
			}
			return same(in[0]), nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(Conv2DAttrs)
			return one(b.Conv2DInputBackward(in[0], in[1], in[2], a.Stride, a.Padding))
		},
	})
	r.register(&Def{
		Kind:      Conv2DWeightBp,
		MinInputs: 3,
		MaxInputs: 3,
		Defaults:  Conv2DAttrs{Stride: 1},
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			if _, err := inferConv2D(attrs, in[:2]); err != nil {
				return nil, err
			}
			return same(in[1]), nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(Conv2DAttrs)
			return one(b.Conv2DKernelBackward(in[0], in[1], in[2], a.Stride, a.Padding))
		},
	})

	r.register(&Def{
		Kind:      MaxPool2D,
		MinInputs: 1,
		MaxInputs: 1,
		Defaults:  Pool2DAttrs{Kernel: 2, Stride: 2},
		Infer:     inferMaxPool2D,
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(Pool2DAttrs)
			return one(b.MaxPool2D(in[0], a.Kernel, a.Stride))
		},
		Differentiable: true,
	})
	r.register(&Def{
		Kind:      MaxPool2DBp,
		MinInputs: 2,
		MaxInputs: 2,
		Defaults:  Pool2DAttrs{Kernel: 2, Stride: 2},
		Infer: func(attrs Attrs, in []VarType) ([]VarType, error) {
			if _, err := inferMaxPool2D(attrs, in[:1]); err != nil {
				return nil, err
			}
			return same(in[0]), nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			a := attrs.(Pool2DAttrs)
			return one(b.MaxPool2DBackward(in[0], in[1], a.Kernel, a.Stride))
		},
	})

	// concat_bp(grad, inputs...) returns one gradient per concatenated input.
	r.register(&Def{
		Kind:      ConcatBp,
		MinInputs: 2,
		MaxInputs: Variadic,
		Defaults:  AxisAttrs{},
		Outputs: func(_ Attrs, numInputs int) int {
			return numInputs - 1
		},
		Infer: func(_ Attrs, in []VarType) ([]VarType, error) {
			outs := make([]VarType, len(in)-1)
			for i, t := range in[1:] {
				outs[i] = VarType{DType: in[0].DType, Shape: t.Shape.Clone()}
			}
			return outs, nil
		},
		Forward: func(b Backend, attrs Attrs, in []*tensor.RawTensor) []*tensor.RawTensor {
			return b.ConcatBackward(in[0], in[1:], attrs.(AxisAttrs).Axis)
		},
	})
}

// spatialOut computes a declared output dimension, propagating unknowns.
func spatialOut(in, kernel, stride, padding int) int {
	if in == tensor.UnknownDim || kernel == tensor.UnknownDim {
		return tensor.UnknownDim
	}
	return (in+2*padding-kernel)/stride + 1
}

func inferConv2D(attrs Attrs, in []VarType) ([]VarType, error) {
	a := attrs.(Conv2DAttrs)
	if err := sameDType("conv2d", in...); err != nil {
		return nil, err
	}
	if err := floatDType("conv2d", in[0]); err != nil {
		return nil, err
	}
	if err := requireRank("conv2d", in[0], 4); err != nil {
		return nil, err
	}
	if err := requireRank("conv2d", in[1], 4); err != nil {
		return nil, err
	}
	x, w := in[0].Shape, in[1].Shape
	if !dimsAgree(dim(x, 1), dim(w, 1)) {
		return nil, fmt.Errorf("%w: conv2d input channels %d != kernel channels %d", ErrShape, dim(x, 1), dim(w, 1))
	}
	if len(in) == 3 {
		if err := requireRank("conv2d", in[2], 1); err != nil {
			return nil, err
		}
		if !dimsAgree(dim(in[2].Shape, 0), dim(w, 0)) {
			return nil, fmt.Errorf("%w: conv2d bias %v for %d output channels", ErrShape, in[2].Shape, dim(w, 0))
		}
	}
	hOut := spatialOut(dim(x, 2), dim(w, 2), a.Stride, a.Padding)
	wOut := spatialOut(dim(x, 3), dim(w, 3), a.Stride, a.Padding)
	if (hOut != tensor.UnknownDim && hOut <= 0) || (wOut != tensor.UnknownDim && wOut <= 0) {
		return nil, fmt.Errorf("%w: conv2d kernel %v larger than padded input %v", ErrShape, w, x)
	}
	return []VarType{{DType: in[0].DType, Shape: tensor.Shape{dim(x, 0), dim(w, 0), hOut, wOut}}}, nil
}

func inferMaxPool2D(attrs Attrs, in []VarType) ([]VarType, error) {
	a := attrs.(Pool2DAttrs)
	if err := floatDType("maxpool2d", in[0]); err != nil {
		return nil, err
	}
	if err := requireRank("maxpool2d", in[0], 4); err != nil {
		return nil, err
	}
	x := in[0].Shape
	hOut := spatialOut(dim(x, 2), a.Kernel, a.Stride, 0)
	wOut := spatialOut(dim(x, 3), a.Kernel, a.Stride, 0)
	if (hOut != tensor.UnknownDim && hOut <= 0) || (wOut != tensor.UnknownDim && wOut <= 0) {
		return nil, fmt.Errorf("%w: maxpool2d window %d larger than input %v", ErrShape, a.Kernel, x)
	}
	return []VarType{{DType: in[0].DType, Shape: tensor.Shape{dim(x, 0), dim(x, 1), hOut, wOut}}}, nil
}
