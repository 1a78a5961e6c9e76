package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/samediff/internal/parallel"
	"github.com/born-ml/samediff/internal/tensor"
)

type poolGeometry struct {
	N, C, H, W     int
	HOut, WOut     int
	kernel, stride int
}

func newPoolGeometry(op string, inputShape tensor.Shape, kernelSize, stride int) poolGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", op, kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, stride))
	}
	g := poolGeometry{
		N: inputShape[0], C: inputShape[1], H: inputShape[2], W: inputShape[3],
		kernel: kernelSize, stride: stride,
	}
	if kernelSize > g.H || kernelSize > g.W {
		panic(fmt.Sprintf("%s: kernel size %d too large for input %dx%d", op, kernelSize, g.H, g.W))
	}
	g.HOut = ConvOutputSize(g.H, kernelSize, stride, 0)
	g.WOut = ConvOutputSize(g.W, kernelSize, stride, 0)
	return g
}

// argmaxWindows returns, for every output element, the flat input index of the
// window maximum (first occurrence on ties). Planes are scanned in parallel.
func (g poolGeometry) argmaxWindows(input []float64, cfg parallel.Config) []int {
	winners := make([]int, g.N*g.C*g.HOut*g.WOut)
	parallel.ForPlanes(g.N, g.C, cfg, func(n, c int) {
		plane := (n*g.C + c) * g.H * g.W
		out := (n*g.C + c) * g.HOut * g.WOut
		for oh := 0; oh < g.HOut; oh++ {
			for ow := 0; ow < g.WOut; ow++ {
				best, bestVal := -1, math.Inf(-1)
				for kh := 0; kh < g.kernel; kh++ {
					for kw := 0; kw < g.kernel; kw++ {
						idx := plane + (oh*g.stride+kh)*g.W + ow*g.stride + kw
						if best < 0 || input[idx] > bestVal {
							best, bestVal = idx, input[idx]
						}
					}
				}
				winners[out] = best
				out++
			}
		}
	})
	return winners
}

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
//	out_height = (height - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	requireFloat("maxpool2d", input)
	g := newPoolGeometry("maxpool2d", input.Shape(), kernelSize, stride)
	src := input.Float64s()
	winners := g.argmaxWindows(src, cpu.par)
	vals := make([]float64, len(winners))
	for i, idx := range winners {
		vals[i] = src[idx]
	}
	return cpu.fromFloats("maxpool2d", tensor.Shape{g.N, g.C, g.HOut, g.WOut}, input.DType(), vals)
}

// MaxPool2DBackward routes each output gradient to the input element that won its window.
// Overlapping windows accumulate.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	g := newPoolGeometry("maxpool2d_bp", input.Shape(), kernelSize, stride)
	want := tensor.Shape{g.N, g.C, g.HOut, g.WOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("maxpool2d_bp: gradient shape %v, want %v", grad.Shape(), want))
	}
	winners := g.argmaxWindows(input.Float64s(), cpu.par)
	gv := grad.Float64s()
	dx := make([]float64, input.NumElements())
	for i, idx := range winners {
		dx[idx] += gv[i]
	}
	return cpu.fromFloats("maxpool2d_bp", input.Shape(), grad.DType(), dx)
}
