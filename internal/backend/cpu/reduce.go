package cpu

import (
	"fmt"
	"math"
	"sort"

	"github.com/born-ml/samediff/internal/tensor"
)

// normalizeAxes resolves negative axes, sorts them and rejects duplicates.
// An empty list selects every axis.
func normalizeAxes(op string, axes []int, rank int) []int {
	if len(axes) == 0 {
		all := make([]int, rank)
		for i := range all {
			all[i] = i
		}
		return all
	}
	out := make([]int, len(axes))
	seen := make(map[int]bool, len(axes))
	for i, ax := range axes {
		ax = normalizeAxis(op, ax, rank)
		if seen[ax] {
			panic(fmt.Sprintf("%s: duplicate axis %d", op, ax))
		}
		seen[ax] = true
		out[i] = ax
	}
	sort.Ints(out)
	return out
}

// ReducedShape returns the result shape of reducing shape over axes.
func ReducedShape(shape tensor.Shape, axes []int, keepDims bool) tensor.Shape {
	axes = normalizeAxes("reduce", axes, shape.Rank())
	reduced := make(map[int]bool, len(axes))
	for _, ax := range axes {
		reduced[ax] = true
	}
	out := make(tensor.Shape, 0, shape.Rank())
	for d, dim := range shape {
		switch {
		case !reduced[d]:
			out = append(out, dim)
		case keepDims:
			out = append(out, 1)
		}
	}
	return out
}

// reduceIndex maps every element of shape to its slot in the reduction result.
func reduceIndex(shape tensor.Shape, axes []int) (kept tensor.Shape, slots []int) {
	kept = ReducedShape(shape, axes, true)
	return kept, broadcastIndex(kept, shape)
}

// Sum reduces x by summation over axes.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	kept, slots := reduceIndex(x.Shape(), axes)
	vals := make([]float64, kept.NumElements())
	for i, v := range x.Float64s() {
		vals[slots[i]] += v
	}
	return cpu.fromFloats("reduce_sum", ReducedShape(x.Shape(), axes, keepDims), x.DType(), vals)
}

// Mean reduces x by averaging over axes.
func (cpu *CPUBackend) Mean(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	requireFloat("reduce_mean", x)
	kept, slots := reduceIndex(x.Shape(), axes)
	vals := make([]float64, kept.NumElements())
	for i, v := range x.Float64s() {
		vals[slots[i]] += v
	}
	count := float64(x.NumElements() / kept.NumElements())
	for i := range vals {
		vals[i] /= count
	}
	return cpu.fromFloats("reduce_mean", ReducedShape(x.Shape(), axes, keepDims), x.DType(), vals)
}

// Max reduces x by taking the maximum over axes.
func (cpu *CPUBackend) Max(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor {
	kept, slots := reduceIndex(x.Shape(), axes)
	vals := make([]float64, kept.NumElements())
	for i := range vals {
		vals[i] = math.Inf(-1)
	}
	for i, v := range x.Float64s() {
		if v > vals[slots[i]] || math.IsNaN(v) {
			vals[slots[i]] = v
		}
	}
	return cpu.fromFloats("reduce_max", ReducedShape(x.Shape(), axes, keepDims), x.DType(), vals)
}

// SumBackward broadcasts the gradient of a sum back to the shape of x.
func (cpu *CPUBackend) SumBackward(x, grad *tensor.RawTensor, axes []int) *tensor.RawTensor {
	kept, slots := reduceIndex(x.Shape(), axes)
	checkReducedGrad("reduce_sum_bp", grad, kept)
	g := grad.Float64s()
	vals := make([]float64, x.NumElements())
	for i := range vals {
		vals[i] = g[slots[i]]
	}
	return cpu.fromFloats("reduce_sum_bp", x.Shape(), grad.DType(), vals)
}

// MeanBackward spreads the gradient of a mean evenly over the reduced elements.
func (cpu *CPUBackend) MeanBackward(x, grad *tensor.RawTensor, axes []int) *tensor.RawTensor {
	kept, slots := reduceIndex(x.Shape(), axes)
	checkReducedGrad("reduce_mean_bp", grad, kept)
	count := float64(x.NumElements() / kept.NumElements())
	g := grad.Float64s()
	vals := make([]float64, x.NumElements())
	for i := range vals {
		vals[i] = g[slots[i]] / count
	}
	return cpu.fromFloats("reduce_mean_bp", x.Shape(), grad.DType(), vals)
}

// MaxBackward routes the gradient of a max to the maximal elements.
// Ties share the gradient equally, which matches the central-difference derivative.
func (cpu *CPUBackend) MaxBackward(x, grad *tensor.RawTensor, axes []int) *tensor.RawTensor {
	kept, slots := reduceIndex(x.Shape(), axes)
	checkReducedGrad("reduce_max_bp", grad, kept)
	xv := x.Float64s()
	best := make([]float64, kept.NumElements())
	for i := range best {
		best[i] = math.Inf(-1)
	}
	for i, v := range xv {
		if v > best[slots[i]] {
			best[slots[i]] = v
		}
	}
	ties := make([]float64, len(best))
	for i, v := range xv {
		if v == best[slots[i]] {
			ties[slots[i]]++
		}
	}
	g := grad.Float64s()
	vals := make([]float64, len(xv))
	for i, v := range xv {
		if v == best[slots[i]] {
			vals[i] = g[slots[i]] / ties[slots[i]]
		}
	}
	return cpu.fromFloats("reduce_max_bp", x.Shape(), grad.DType(), vals)
}

// checkReducedGrad accepts gradients shaped like the reduction result with or without kept dims.
func checkReducedGrad(op string, grad *tensor.RawTensor, kept tensor.Shape) {
	if grad.NumElements() != kept.NumElements() {
		panic(fmt.Sprintf("%s: gradient shape %v does not match reduced shape %v", op, grad.Shape(), kept))
	}
}

// ArgMax returns the Int64 index of the first maximum along axis, removing that axis.
func (cpu *CPUBackend) ArgMax(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	shape := x.Shape()
	if shape.Rank() == 0 {
		return cpu.alloc("argmax", tensor.Shape{}, tensor.Int64)
	}
	axis = normalizeAxis("argmax", axis, shape.Rank())
	outer, inner := outerInner(shape, axis)
	dim := shape[axis]
	src := x.Float64s()

	result := cpu.alloc("argmax", ReducedShape(shape, []int{axis}, false), tensor.Int64)
	out := result.AsInt64()
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			bestIdx, bestVal := 0, math.Inf(-1)
			for k := 0; k < dim; k++ {
				v := src[(o*dim+k)*inner+in]
				if v > bestVal {
					bestIdx, bestVal = k, v
				}
			}
			out[o*inner+in] = int64(bestIdx)
		}
	}
	return result
}

// Softmax computes exp(x) / sum(exp(x)) along axis, shifting by the maximum for stability.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, axis int) *tensor.RawTensor {
	requireFloat("softmax", x)
	shape := x.Shape()
	axis = normalizeAxis("softmax", axis, shape.Rank())
	outer, inner := outerInner(shape, axis)
	dim := shape[axis]
	vals := x.Float64s()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			at := func(k int) int { return (o*dim+k)*inner + in }
			maxVal := math.Inf(-1)
			for k := 0; k < dim; k++ {
				maxVal = math.Max(maxVal, vals[at(k)])
			}
			sum := 0.0
			for k := 0; k < dim; k++ {
				e := math.Exp(vals[at(k)] - maxVal)
				vals[at(k)] = e
				sum += e
			}
			for k := 0; k < dim; k++ {
				vals[at(k)] /= sum
			}
		}
	}
	return cpu.fromFloats("softmax", shape, x.DType(), vals)
}
