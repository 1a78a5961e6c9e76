package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/samediff/internal/tensor"
)

// MatMul multiplies two rank-2 tensors, optionally transposing either operand first.
//
//	[M, K] @ [K, N] -> [M, N]
//
// The product is computed in float64 by gonum's BLAS-backed Dense and rounded
// to the operand dtype.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor, transposeA, transposeB bool) *tensor.RawTensor {
	requireSameDType("matmul", a, b)
	requireFloat("matmul", a)
	if a.Shape().Rank() != 2 || b.Shape().Rank() != 2 {
		panic(fmt.Sprintf("matmul: expected rank-2 operands, got %v and %v", a.Shape(), b.Shape()))
	}

	am := mat.NewDense(a.Shape()[0], a.Shape()[1], a.Float64s())
	bm := mat.NewDense(b.Shape()[0], b.Shape()[1], b.Float64s())
	var left, right mat.Matrix = am, bm
	if transposeA {
		left = am.T()
	}
	if transposeB {
		right = bm.T()
	}

	m, k := left.Dims()
	k2, n := right.Dims()
	if k != k2 {
		panic(fmt.Sprintf("matmul: inner dimensions don't match: %v (transpose=%v) @ %v (transpose=%v)",
			a.Shape(), transposeA, b.Shape(), transposeB))
	}

	var out mat.Dense
	out.Mul(left, right)
	return cpu.fromFloats("matmul", tensor.Shape{m, n}, a.DType(), out.RawMatrix().Data)
}
