package ops

import "github.com/born-ml/samediff/internal/tensor"

// Backend is the kernel set that op kinds dispatch to.
//
// Kernels return freshly allocated tensors and never modify their inputs.
// Invalid arguments cause a panic, which Execute converts into an error.
type Backend interface {
	Name() string
	Device() tensor.Device

	Add(a, b *tensor.RawTensor) *tensor.RawTensor
	Sub(a, b *tensor.RawTensor) *tensor.RawTensor
	Mul(a, b *tensor.RawTensor) *tensor.RawTensor
	Div(a, b *tensor.RawTensor) *tensor.RawTensor
	Pow(a, b *tensor.RawTensor) *tensor.RawTensor
	Maximum(a, b *tensor.RawTensor) *tensor.RawTensor
	FloorDiv(a, b *tensor.RawTensor) *tensor.RawTensor
	FloorMod(a, b *tensor.RawTensor) *tensor.RawTensor

	Neg(x *tensor.RawTensor) *tensor.RawTensor
	Abs(x *tensor.RawTensor) *tensor.RawTensor
	Exp(x *tensor.RawTensor) *tensor.RawTensor
	Log(x *tensor.RawTensor) *tensor.RawTensor
	Sqrt(x *tensor.RawTensor) *tensor.RawTensor
	Square(x *tensor.RawTensor) *tensor.RawTensor
	Tanh(x *tensor.RawTensor) *tensor.RawTensor
	Sigmoid(x *tensor.RawTensor) *tensor.RawTensor
	Relu(x *tensor.RawTensor) *tensor.RawTensor
	Sin(x *tensor.RawTensor) *tensor.RawTensor
	Cos(x *tensor.RawTensor) *tensor.RawTensor
	Identity(x *tensor.RawTensor) *tensor.RawTensor
	Sign(x *tensor.RawTensor) *tensor.RawTensor
	Step(x *tensor.RawTensor) *tensor.RawTensor

	AddScalar(x *tensor.RawTensor, c float64) *tensor.RawTensor
	MulScalar(x *tensor.RawTensor, c float64) *tensor.RawTensor
	MatMul(a, b *tensor.RawTensor, transposeA, transposeB bool) *tensor.RawTensor

	Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor
	Transpose(x *tensor.RawTensor, perm ...int) *tensor.RawTensor
	BroadcastTo(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor
	ReduceToShape(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor
	Concat(parts []*tensor.RawTensor, axis int) *tensor.RawTensor
	SplitEven(x *tensor.RawTensor, axis, num int) []*tensor.RawTensor
	ConcatBackward(grad *tensor.RawTensor, inputs []*tensor.RawTensor, axis int) []*tensor.RawTensor

	Sum(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor
	Mean(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor
	Max(x *tensor.RawTensor, axes []int, keepDims bool) *tensor.RawTensor
	SumBackward(x, grad *tensor.RawTensor, axes []int) *tensor.RawTensor
	MeanBackward(x, grad *tensor.RawTensor, axes []int) *tensor.RawTensor
	MaxBackward(x, grad *tensor.RawTensor, axes []int) *tensor.RawTensor

	Softmax(x *tensor.RawTensor, axis int) *tensor.RawTensor
	Conv2D(input, kernel, bias *tensor.RawTensor, stride, padding int) *tensor.RawTensor
	Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor
	Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor
	MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor
	MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor

	Equal(a, b *tensor.RawTensor) *tensor.RawTensor
	Greater(a, b *tensor.RawTensor) *tensor.RawTensor
	Less(a, b *tensor.RawTensor) *tensor.RawTensor
	ArgMax(x *tensor.RawTensor, axis int) *tensor.RawTensor
	Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor
	Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor
	Fill(shape tensor.Shape, dtype tensor.DataType, value float64) *tensor.RawTensor
}
