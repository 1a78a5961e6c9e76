package cpu

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

// Reshape returns a copy of t with a new shape holding the same number of elements.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}
	return cpu.fromFloats("reshape", newShape, t.DType(), t.Float64s())
}

// Transpose permutes the dimensions of t. An empty perm reverses them.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, perm ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(perm) == 0 {
		perm = make([]int, ndim)
		for i := range perm {
			perm[i] = ndim - 1 - i
		}
	}
	if len(perm) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(perm), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range perm {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range perm {
		newShape[i] = shape[ax]
	}

	src := t.Float64s()
	inStrides := shape.ComputeStrides()
	vals := make([]float64, len(src))
	idx := make([]int, ndim)
	for i := range vals {
		newShape.UnravelIndex(i, idx)
		pos := 0
		for d, ax := range perm {
			pos += idx[d] * inStrides[ax]
		}
		vals[i] = src[pos]
	}
	return cpu.fromFloats("transpose", newShape, t.DType(), vals)
}

// Concat joins tensors along axis. All other dimensions must agree.
func (cpu *CPUBackend) Concat(parts []*tensor.RawTensor, axis int) *tensor.RawTensor {
	if len(parts) == 0 {
		panic("concat: no inputs")
	}
	first := parts[0].Shape()
	axis = normalizeAxis("concat", axis, first.Rank())

	outShape := first.Clone()
	outShape[axis] = 0
	for i, p := range parts {
		requireSameDType("concat", parts[0], p)
		s := p.Shape()
		if s.Rank() != first.Rank() {
			panic(fmt.Sprintf("concat: input %d has rank %d, want %d", i, s.Rank(), first.Rank()))
		}
		for d := range s {
			if d != axis && s[d] != first[d] {
				panic(fmt.Sprintf("concat: input %d shape %v incompatible with %v on axis %d", i, s, first, axis))
			}
		}
		outShape[axis] += s[axis]
	}

	outer, inner := outerInner(outShape, axis)
	vals := make([]float64, outShape.NumElements())
	offset := 0
	for _, p := range parts {
		src := p.Float64s()
		width := p.Shape()[axis] * inner
		for o := 0; o < outer; o++ {
			copy(vals[o*outShape[axis]*inner+offset:], src[o*width:(o+1)*width])
		}
		offset += width
	}
	return cpu.fromFloats("concat", outShape, parts[0].DType(), vals)
}

// Split cuts x along axis into pieces of the given sizes, which must sum to the axis length.
func (cpu *CPUBackend) Split(x *tensor.RawTensor, axis int, sizes []int) []*tensor.RawTensor {
	shape := x.Shape()
	axis = normalizeAxis("split", axis, shape.Rank())
	total := 0
	for _, s := range sizes {
		if s <= 0 {
			panic(fmt.Sprintf("split: invalid size %d", s))
		}
		total += s
	}
	if total != shape[axis] {
		panic(fmt.Sprintf("split: sizes %v do not sum to dimension %d of %v", sizes, axis, shape))
	}

	src := x.Float64s()
	outer, inner := outerInner(shape, axis)
	rowWidth := shape[axis] * inner
	results := make([]*tensor.RawTensor, len(sizes))
	offset := 0
	for k, size := range sizes {
		partShape := shape.Clone()
		partShape[axis] = size
		width := size * inner
		vals := make([]float64, outer*width)
		for o := 0; o < outer; o++ {
			copy(vals[o*width:(o+1)*width], src[o*rowWidth+offset:o*rowWidth+offset+width])
		}
		offset += width
		results[k] = cpu.fromFloats("split", partShape, x.DType(), vals)
	}
	return results
}

// SplitEven cuts x along axis into num equal pieces.
func (cpu *CPUBackend) SplitEven(x *tensor.RawTensor, axis, num int) []*tensor.RawTensor {
	axis = normalizeAxis("split", axis, x.Shape().Rank())
	dim := x.Shape()[axis]
	if num <= 0 || dim%num != 0 {
		panic(fmt.Sprintf("split: dimension %d of size %d is not divisible into %d parts", axis, dim, num))
	}
	sizes := make([]int, num)
	for i := range sizes {
		sizes[i] = dim / num
	}
	return cpu.Split(x, axis, sizes)
}

// ConcatBackward splits the gradient of a concat back into per-input gradients
// shaped like inputs.
func (cpu *CPUBackend) ConcatBackward(grad *tensor.RawTensor, inputs []*tensor.RawTensor, axis int) []*tensor.RawTensor {
	axis = normalizeAxis("concat_bp", axis, grad.Shape().Rank())
	sizes := make([]int, len(inputs))
	for i, in := range inputs {
		sizes[i] = in.Shape()[axis]
	}
	return cpu.Split(grad, axis, sizes)
}

// outerInner returns the product of dimensions before and after axis.
func outerInner(shape tensor.Shape, axis int) (outer, inner int) {
	outer, inner = 1, 1
	for d := 0; d < axis; d++ {
		outer *= shape[d]
	}
	for d := axis + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	return outer, inner
}
