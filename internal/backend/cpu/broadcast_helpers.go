package cpu

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// computeBroadcastStridesForShape computes strides for broadcasting a shape to outShape.
// Returns strides where dimensions of size 1 have stride 0 (for broadcasting).
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	// Pad input shape with 1s on the left
	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// computeFlatIndex computes the flat index in the source array for a given output index.
// outStrides: strides of the output shape.
// inStrides: broadcast-adjusted strides of the input shape.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}

// broadcastIndex precomputes, for every element of outShape, the source index in
// a tensor of inShape.
func broadcastIndex(inShape, outShape tensor.Shape) []int {
	inStrides := computeBroadcastStridesForShape(inShape, outShape)
	outStrides := outShape.ComputeStrides()
	n := outShape.NumElements()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = computeFlatIndex(i, outStrides, inStrides)
	}
	return idx
}

// BroadcastTo materializes x expanded to shape.
func (cpu *CPUBackend) BroadcastTo(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !out.Equal(shape) {
		panic(fmt.Sprintf("broadcast_to: cannot broadcast %v to %v", x.Shape(), shape))
	}
	src := x.Float64s()
	idx := broadcastIndex(x.Shape(), shape)
	vals := make([]float64, len(idx))
	for i, j := range idx {
		vals[i] = src[j]
	}
	return cpu.fromFloats("broadcast_to", shape, x.DType(), vals)
}

// ReduceToShape sums grad over the broadcast dimensions so the result has shape target.
// It is the adjoint of BroadcastTo.
func (cpu *CPUBackend) ReduceToShape(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad.Dup(tensor.C)
	}
	out, _, err := tensor.BroadcastShapes(target, grad.Shape())
	if err != nil || !out.Equal(grad.Shape()) {
		panic(fmt.Sprintf("reduce_to_shape: %v is not broadcastable to %v", target, grad.Shape()))
	}
	src := grad.Float64s()
	idx := broadcastIndex(target, grad.Shape())
	vals := make([]float64, target.NumElements())
	for i, j := range idx {
		vals[j] += src[i]
	}
	return cpu.fromFloats("reduce_to_shape", target, grad.DType(), vals)
}
