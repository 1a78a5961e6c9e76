package tensor

import (
	"fmt"
	"strings"
)

// UnknownDim marks a dimension whose size is not known when a graph is built.
const UnknownDim = -1

// Shape represents the dimensions of a tensor.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// IsFullyKnown reports whether no dimension is UnknownDim.
func (s Shape) IsFullyKnown() bool {
	for _, dim := range s {
		if dim == UnknownDim {
			return false
		}
	}
	return true
}

// Compatible reports whether a concrete shape satisfies a declared, possibly partial, shape.
// A nil declared shape accepts anything.
func (s Shape) Compatible(concrete Shape) bool {
	if s == nil {
		return true
	}
	if len(s) != len(concrete) {
		return false
	}
	for i, dim := range s {
		if dim != UnknownDim && dim != concrete[i] {
			return false
		}
	}
	return true
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as [d0,d1,...], with ? for unknown dimensions.
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, dim := range s {
		if dim == UnknownDim {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(dim)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	return s.ComputeStridesOrder(C)
}

// ComputeStridesOrder calculates element strides for the given memory order.
func (s Shape) ComputeStridesOrder(order Order) []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	if order == F {
		strides[0] = 1
		for i := 1; i < len(s); i++ {
			strides[i] = strides[i-1] * s[i-1]
		}
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// UnknownDim is accepted: unknown against 1 stays unknown, unknown against n resolves to n.
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(1, 5) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, Error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		case aDim == UnknownDim:
			result[maxLen-1-i] = bDim
		case bDim == UnknownDim:
			result[maxLen-1-i] = aDim
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// UnravelIndex converts a row-major linear index into a multi-index for the shape.
func (s Shape) UnravelIndex(linear int, idx []int) {
	for d := len(s) - 1; d >= 0; d-- {
		idx[d] = linear % s[d]
		linear /= s[d]
	}
}
