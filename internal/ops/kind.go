// Package ops defines the closed set of graph operation kinds, their immutable
// configuration, static type inference, and dispatch onto a kernel Backend.
package ops

import (
	"fmt"
	"sort"
)

// Kind identifies an operation type. The set is closed.
type Kind int

// Operation kinds.
const (
	Invalid Kind = iota

	// Broadcasting binary arithmetic.
	Add
	Sub
	Mul
	Div
	Pow
	Maximum
	FloorDiv
	FloorMod

	// Elementwise unary.
	Neg
	Abs
	Exp
	Log
	Sqrt
	Square
	Tanh
	Sigmoid
	Relu
	Sin
	Cos
	Identity
	Sign
	Step

	// Scalar and linear algebra.
	ScalarAdd
	ScalarMul
	MatMul

	// Shape manipulation.
	Reshape
	Transpose
	BroadcastTo
	Concat
	Split
	ReduceToShapeOf

	// Reductions and their backprops.
	ReduceSum
	ReduceMean
	ReduceMax
	ReduceSumBp
	ReduceMeanBp
	ReduceMaxBp

	// Neural network ops and their backprops.
	Softmax
	Conv2D
	Conv2DInputBp
	Conv2DWeightBp
	MaxPool2D
	MaxPool2DBp
	ConcatBp

	// Comparison and selection.
	Equal
	Greater
	Less
	ArgMax
	Cast
	Where
	OnesLike
	ZerosLike

	numKinds
)

var kindNames = [numKinds]string{
	Invalid:         "invalid",
	Add:             "add",
	Sub:             "sub",
	Mul:             "mul",
	Div:             "div",
	Pow:             "pow",
	Maximum:         "maximum",
	FloorDiv:        "floordiv",
	FloorMod:        "floormod",
	Neg:             "neg",
	Abs:             "abs",
	Exp:             "exp",
	Log:             "log",
	Sqrt:            "sqrt",
	Square:          "square",
	Tanh:            "tanh",
	Sigmoid:         "sigmoid",
	Relu:            "relu",
	Sin:             "sin",
	Cos:             "cos",
	Identity:        "identity",
	Sign:            "sign",
	Step:            "step",
	ScalarAdd:       "scalar_add",
	ScalarMul:       "scalar_mul",
	MatMul:          "matmul",
	Reshape:         "reshape",
	Transpose:       "transpose",
	BroadcastTo:     "broadcast_to",
	Concat:          "concat",
	Split:           "split",
	ReduceToShapeOf: "reduce_to_shape_of",
	ReduceSum:       "reduce_sum",
	ReduceMean:      "reduce_mean",
	ReduceMax:       "reduce_max",
	ReduceSumBp:     "reduce_sum_bp",
	ReduceMeanBp:    "reduce_mean_bp",
	ReduceMaxBp:     "reduce_max_bp",
	Softmax:         "softmax",
	Conv2D:          "conv2d",
	Conv2DInputBp:   "conv2d_input_bp",
	Conv2DWeightBp:  "conv2d_weight_bp",
	MaxPool2D:       "maxpool2d",
	MaxPool2DBp:     "maxpool2d_bp",
	ConcatBp:        "concat_bp",
	Equal:           "equal",
	Greater:         "greater",
	Less:            "less",
	ArgMax:          "argmax",
	Cast:            "cast",
	Where:           "where",
	OnesLike:        "ones_like",
	ZerosLike:       "zeros_like",
}

// String returns the op name, e.g. "reduce_sum".
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k names a real operation.
func (k Kind) Valid() bool {
	return k > Invalid && k < numKinds
}

// ParseKind resolves an op name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k := Invalid + 1; k < numKinds; k++ {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds-1)
	for k := Invalid + 1; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Names returns every op name, sorted.
func Names() []string {
	out := make([]string, 0, numKinds-1)
	for k := Invalid + 1; k < numKinds; k++ {
		out = append(out, kindNames[k])
	}
	sort.Strings(out)
	return out
}
