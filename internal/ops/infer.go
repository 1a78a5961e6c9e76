package ops

import (
	"fmt"

	"github.com/born-ml/samediff/internal/tensor"
)

func sameDType(op string, ts ...VarType) error {
	for _, t := range ts[1:] {
		if t.DType != ts[0].DType {
			return fmt.Errorf("%w: %s inputs have dtypes %s and %s", ErrDType, op, ts[0].DType, t.DType)
		}
	}
	return nil
}

func floatDType(op string, t VarType) error {
	if !t.DType.IsFloat() {
		return fmt.Errorf("%w: %s requires a float input, got %s", ErrDType, op, t.DType)
	}
	return nil
}

// broadcastShape broadcasts two declared shapes; an unknown rank on either side
// gives an unknown result.
func broadcastShape(op string, a, b tensor.Shape) (tensor.Shape, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	out, _, err := tensor.BroadcastShapes(a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrShape, op, err)
	}
	return out, nil
}

func staticAxis(op string, axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("%w: %s axis out of range for rank %d", ErrAttrs, op, rank)
	}
	return axis, nil
}

func requireRank(op string, t VarType, rank int) error {
	if t.Shape != nil && t.Shape.Rank() != rank {
		return fmt.Errorf("%w: %s expects rank %d, got %v", ErrShape, op, rank, t.Shape)
	}
	return nil
}

// dimsAgree reports whether two declared dimensions can be equal.
func dimsAgree(a, b int) bool {
	return a == tensor.UnknownDim || b == tensor.UnknownDim || a == b
}

// dim returns dimension i of a declared shape, or UnknownDim when the rank is unknown.
func dim(s tensor.Shape, i int) int {
	if s == nil {
		return tensor.UnknownDim
	}
	return s[i]
}

func reducedStatic(op string, shape tensor.Shape, axes []int, keepDims bool) (tensor.Shape, error) {
	if shape == nil {
		return nil, nil
	}
	rank := shape.Rank()
	reduced := make(map[int]bool)
	if len(axes) == 0 {
		for i := 0; i < rank; i++ {
			reduced[i] = true
		}
	}
	for _, ax := range axes {
		a, err := staticAxis(op, ax, rank)
		if err != nil {
			return nil, err
		}
		if reduced[a] {
			return nil, fmt.Errorf("%w: %s duplicate axis %d", ErrAttrs, op, ax)
		}
		reduced[a] = true
	}
	out := tensor.Shape{}
	for i, d := range shape {
		switch {
		case !reduced[i]:
			out = append(out, d)
		case keepDims:
			out = append(out, 1)
		}
	}
	return out, nil
}
