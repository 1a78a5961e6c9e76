package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/samediff/internal/tensor"
)

// binary applies f elementwise with NumPy-style broadcasting.
func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, outDType tensor.DataType, f func(x, y float64) float64) *tensor.RawTensor {
	requireSameDType(op, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	av, bv := a.Float64s(), b.Float64s()
	vals := make([]float64, outShape.NumElements())
	if !needsBroadcast {
		for i := range vals {
			vals[i] = f(av[i], bv[i])
		}
	} else {
		ai := broadcastIndex(a.Shape(), outShape)
		bi := broadcastIndex(b.Shape(), outShape)
		for i := range vals {
			vals[i] = f(av[ai[i]], bv[bi[i]])
		}
	}
	return cpu.fromFloats(op, outShape, outDType, vals)
}

// unary applies f to every element of x.
func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(v float64) float64) *tensor.RawTensor {
	vals := x.Float64s()
	for i, v := range vals {
		vals[i] = f(v)
	}
	return cpu.fromFloats(op, x.Shape(), x.DType(), vals)
}

func (cpu *CPUBackend) unaryFloat(op string, x *tensor.RawTensor, f func(v float64) float64) *tensor.RawTensor {
	requireFloat(op, x)
	return cpu.unary(op, x, f)
}

// Add performs element-wise addition with broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, a.DType(), func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, a.DType(), func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, a.DType(), func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
// Integer division truncates toward zero and panics on a zero divisor.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	integer := a.DType().IsInteger()
	return cpu.binary("div", a, b, a.DType(), func(x, y float64) float64 {
		if integer && y == 0 {
			panic("div: integer division by zero")
		}
		return x / y
	})
}

// Pow raises a to the power b elementwise.
func (cpu *CPUBackend) Pow(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("pow", a, b, a.DType(), math.Pow)
}

// Maximum returns the elementwise maximum. Ties resolve to a.
func (cpu *CPUBackend) Maximum(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("maximum", a, b, a.DType(), func(x, y float64) float64 {
		if y > x {
			return y
		}
		return x
	})
}

// FloorDiv computes floor(a / b).
func (cpu *CPUBackend) FloorDiv(a, b *tensor.RawTensor) *tensor.RawTensor {
	integer := a.DType().IsInteger()
	return cpu.binary("floordiv", a, b, a.DType(), func(x, y float64) float64 {
		if integer && y == 0 {
			panic("floordiv: integer division by zero")
		}
		return math.Floor(x / y)
	})
}

// FloorMod computes a - floor(a / b) * b, which takes the sign of b.
func (cpu *CPUBackend) FloorMod(a, b *tensor.RawTensor) *tensor.RawTensor {
	integer := a.DType().IsInteger()
	return cpu.binary("floormod", a, b, a.DType(), func(x, y float64) float64 {
		if integer && y == 0 {
			panic("floormod: integer division by zero")
		}
		return x - math.Floor(x/y)*y
	})
}

// Neg negates every element.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("neg", x, func(v float64) float64 { return -v })
}

// Abs returns |x|.
func (cpu *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("abs", x, math.Abs)
}

// Sign returns -1, 0 or 1 per element.
func (cpu *CPUBackend) Sign(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sign", x, func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
}

// Step returns 1 where x > 0, else 0. It is the derivative of ReLU.
func (cpu *CPUBackend) Step(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("step", x, func(v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	})
}

// Square returns x*x.
func (cpu *CPUBackend) Square(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("square", x, func(v float64) float64 { return v * v })
}

// Exp computes e^x.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("exp", x, math.Exp)
}

// Log computes the natural logarithm.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("log", x, math.Log)
}

// Sqrt computes the square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("sqrt", x, math.Sqrt)
}

// Tanh computes the hyperbolic tangent.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("tanh", x, math.Tanh)
}

// Sigmoid computes 1 / (1 + e^-x).
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("sigmoid", x, func(v float64) float64 {
		if v >= 0 {
			return 1 / (1 + math.Exp(-v))
		}
		e := math.Exp(v)
		return e / (1 + e)
	})
}

// Relu computes max(x, 0).
func (cpu *CPUBackend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float64) float64 { return math.Max(v, 0) })
}

// Sin computes the sine.
func (cpu *CPUBackend) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("sin", x, math.Sin)
}

// Cos computes the cosine.
func (cpu *CPUBackend) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("cos", x, math.Cos)
}

// Identity returns an independent copy of x.
func (cpu *CPUBackend) Identity(x *tensor.RawTensor) *tensor.RawTensor {
	return x.Dup(tensor.C)
}

// AddScalar adds a constant to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, c float64) *tensor.RawTensor {
	return cpu.unary("scalar_add", x, func(v float64) float64 { return v + c })
}

// MulScalar multiplies every element by a constant.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, c float64) *tensor.RawTensor {
	return cpu.unary("scalar_mul", x, func(v float64) float64 { return v * c })
}

func boolOf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Equal returns a Bool tensor marking a == b.
func (cpu *CPUBackend) Equal(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("equal", a, b, tensor.Bool, func(x, y float64) float64 { return boolOf(x == y) })
}

// Greater returns a Bool tensor marking a > b.
func (cpu *CPUBackend) Greater(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("greater", a, b, tensor.Bool, func(x, y float64) float64 { return boolOf(x > y) })
}

// Less returns a Bool tensor marking a < b.
func (cpu *CPUBackend) Less(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("less", a, b, tensor.Bool, func(x, y float64) float64 { return boolOf(x < y) })
}

// Where selects x where cond is true and y elsewhere, broadcasting all three.
func (cpu *CPUBackend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	if cond.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", cond.DType()))
	}
	requireSameDType("where", x, y)
	xy, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(cond.Shape(), xy)
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	cv, xv, yv := cond.Float64s(), x.Float64s(), y.Float64s()
	ci := broadcastIndex(cond.Shape(), outShape)
	xi := broadcastIndex(x.Shape(), outShape)
	yi := broadcastIndex(y.Shape(), outShape)
	vals := make([]float64, outShape.NumElements())
	for i := range vals {
		if cv[ci[i]] != 0 {
			vals[i] = xv[xi[i]]
		} else {
			vals[i] = yv[yi[i]]
		}
	}
	return cpu.fromFloats("where", outShape, x.DType(), vals)
}

// Cast converts x to dtype. Float to integer conversion truncates toward zero.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return cpu.fromFloats("cast", x.Shape(), dtype, x.Float64s())
}

// Fill creates a tensor of the given shape and dtype with every element set to value.
func (cpu *CPUBackend) Fill(shape tensor.Shape, dtype tensor.DataType, value float64) *tensor.RawTensor {
	result := cpu.alloc("fill", shape, dtype)
	if value != 0 {
		n := result.NumElements()
		for i := 0; i < n; i++ {
			result.SetFloat(i, value)
		}
	}
	return result
}
