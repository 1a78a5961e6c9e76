package cpu

import (
	"fmt"

	"github.com/born-ml/samediff/internal/parallel"
	"github.com/born-ml/samediff/internal/tensor"
)

// convGeometry holds the dimensions of one NCHW/OIHW convolution.
type convGeometry struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding int
}

// ConvOutputSize returns the spatial output size of a convolution or pooling window.
func ConvOutputSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

func newConvGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d / padding %d", op, stride, padding))
	}
	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	if kernelShape[1] != g.CIn {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, g.CIn, kernelShape[1]))
	}
	g.HOut = ConvOutputSize(g.H, g.KH, stride, padding)
	g.WOut = ConvOutputSize(g.W, g.KW, stride, padding)
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return g
}

// im2col lays every receptive field out as a row:
// [N*H_out*W_out, C_in*K_h*K_w]. Padded positions are zero.
func (g convGeometry) im2col(input []float64) []float64 {
	colWidth := g.CIn * g.KH * g.KW
	col := make([]float64, g.N*g.HOut*g.WOut*colWidth)
	row := 0
	for n := 0; n < g.N; n++ {
		for oh := 0; oh < g.HOut; oh++ {
			for ow := 0; ow < g.WOut; ow++ {
				g.eachTap(n, oh, ow, func(k, inIdx int) {
					if inIdx >= 0 {
						col[row*colWidth+k] = input[inIdx]
					}
				})
				row++
			}
		}
	}
	return col
}

// eachTap visits every kernel tap of output position (n, oh, ow), passing the tap's
// column index and the flat input index, or -1 when the tap falls in the padding.
func (g convGeometry) eachTap(n, oh, ow int, visit func(k, inIdx int)) {
	hStart := oh*g.stride - g.padding
	wStart := ow*g.stride - g.padding
	k := 0
	for c := 0; c < g.CIn; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				h, w := hStart+kh, wStart+kw
				if h >= 0 && h < g.H && w >= 0 && w < g.W {
					visit(k, ((n*g.CIn+c)*g.H+h)*g.W+w)
				} else {
					visit(k, -1)
				}
				k++
			}
		}
	}
}

// outIndex is the flat index of output element (n, co, oh, ow).
func (g convGeometry) outIndex(n, co, oh, ow int) int {
	return ((n*g.COut+co)*g.HOut+oh)*g.WOut + ow
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape (optional, may be nil): [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// out_h = (H + 2*padding - K_h) / stride + 1
func (cpu *CPUBackend) Conv2D(input, kernel, bias *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireSameDType("conv2d", input, kernel)
	requireFloat("conv2d", input)
	g := newConvGeometry("conv2d", input.Shape(), kernel.Shape(), stride, padding)

	var b []float64
	if bias != nil {
		if !bias.Shape().Equal(tensor.Shape{g.COut}) {
			panic(fmt.Sprintf("conv2d: bias shape %v, want [%d]", bias.Shape(), g.COut))
		}
		b = bias.Float64s()
	}

	col := g.im2col(input.Float64s())
	kern := kernel.Float64s()
	colWidth := g.CIn * g.KH * g.KW
	out := make([]float64, g.N*g.COut*g.HOut*g.WOut)

	// One im2col row per output position; rows write disjoint outputs.
	positions := g.HOut * g.WOut
	parallel.For(g.N*positions, cpu.par, func(row int) {
		n, pos := row/positions, row%positions
		oh, ow := pos/g.WOut, pos%g.WOut
		patch := col[row*colWidth : (row+1)*colWidth]
		for co := 0; co < g.COut; co++ {
			sum := 0.0
			weights := kern[co*colWidth : (co+1)*colWidth]
			for k, v := range patch {
				sum += weights[k] * v
			}
			if b != nil {
				sum += b[co]
			}
			out[g.outIndex(n, co, oh, ow)] = sum
		}
	})
	return cpu.fromFloats("conv2d", tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, input.DType(), out)
}

// Conv2DInputBackward computes the gradient with respect to the convolution input
// (a transposed convolution): every output position scatters
// grad[n, c_out, h_out, w_out] * kernel[c_out, c_in, kh, kw] back onto the input it read.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_bp", input.Shape(), kernel.Shape(), stride, padding)
	checkConvGrad("conv2d_input_bp", grad, g)

	kern := kernel.Float64s()
	gv := grad.Float64s()
	colWidth := g.CIn * g.KH * g.KW
	dx := make([]float64, input.NumElements())
	for n := 0; n < g.N; n++ {
		for oh := 0; oh < g.HOut; oh++ {
			for ow := 0; ow < g.WOut; ow++ {
				g.eachTap(n, oh, ow, func(k, inIdx int) {
					if inIdx < 0 {
						return
					}
					for co := 0; co < g.COut; co++ {
						dx[inIdx] += gv[g.outIndex(n, co, oh, ow)] * kern[co*colWidth+k]
					}
				})
			}
		}
	}
	return cpu.fromFloats("conv2d_input_bp", input.Shape(), grad.DType(), dx)
}

// Conv2DKernelBackward computes the gradient with respect to the kernel:
// dK[c_out, k] = sum over positions of grad[n, c_out, h_out, w_out] * col[position, k].
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_weight_bp", input.Shape(), kernel.Shape(), stride, padding)
	checkConvGrad("conv2d_weight_bp", grad, g)

	col := g.im2col(input.Float64s())
	gv := grad.Float64s()
	colWidth := g.CIn * g.KH * g.KW
	dk := make([]float64, kernel.NumElements())
	row := 0
	for n := 0; n < g.N; n++ {
		for oh := 0; oh < g.HOut; oh++ {
			for ow := 0; ow < g.WOut; ow++ {
				patch := col[row*colWidth : (row+1)*colWidth]
				for co := 0; co < g.COut; co++ {
					gg := gv[g.outIndex(n, co, oh, ow)]
					if gg == 0 {
						continue
					}
					for k, v := range patch {
						dk[co*colWidth+k] += gg * v
					}
				}
				row++
			}
		}
	}
	return cpu.fromFloats("conv2d_weight_bp", kernel.Shape(), grad.DType(), dk)
}

func checkConvGrad(op string, grad *tensor.RawTensor, g convGeometry) {
	want := tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: gradient shape %v, want %v", op, grad.Shape(), want))
	}
}
