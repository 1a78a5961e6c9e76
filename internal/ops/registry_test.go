package ops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/samediff/internal/backend/cpu"
	"github.com/born-ml/samediff/internal/tensor"
)

func TestEveryKindRegistered(t *testing.T) {
	for _, k := range Kinds() {
		d, err := Lookup(k)
		if err != nil {
			t.Errorf("Expected kind %s to be registered: %v", k, err)
			continue
		}
		if d.Forward == nil || d.Infer == nil {
			t.Errorf("kind %s is missing Forward or Infer", k)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("UnknownOp")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.False(t, Invalid.Valid())
	assert.Len(t, Names(), len(Kinds()))
}

func f64(shape ...int) VarType {
	return VarType{DType: tensor.Float64, Shape: tensor.Shape(shape)}
}

func TestInferErrors(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		attrs Attrs
		in    []VarType
		want  error
	}{
		{"arity", Add, nil, []VarType{f64(2)}, ErrArity},
		{"broadcast", Add, nil, []VarType{f64(3), f64(4)}, ErrShape},
		{"dtype", Mul, nil, []VarType{f64(2), {DType: tensor.Int32, Shape: tensor.Shape{2}}}, ErrDType},
		{"float only", Exp, nil, []VarType{{DType: tensor.Int64, Shape: tensor.Shape{2}}}, ErrDType},
		{"matmul inner", MatMul, nil, []VarType{f64(2, 3), f64(4, 5)}, ErrShape},
		{"matmul rank", MatMul, nil, []VarType{f64(2, 3, 1), f64(3, 5)}, ErrShape},
		{"wrong attrs type", MatMul, ReduceAttrs{}, []VarType{f64(2, 3), f64(3, 5)}, ErrAttrs},
		{"attrs on attr-less kind", Add, ScalarAttrs{}, []VarType{f64(2), f64(2)}, ErrAttrs},
		{"missing required attrs", ScalarMul, nil, []VarType{f64(2)}, ErrAttrs},
		{"bad reshape", Reshape, ReshapeAttrs{Shape: tensor.Shape{5}}, []VarType{f64(2, 3)}, ErrShape},
		{"two unknown reshape", Reshape, ReshapeAttrs{Shape: tensor.Shape{-1, -1}}, []VarType{f64(6)}, ErrAttrs},
		{"split divisible", Split, SplitAttrs{Axis: 0, Num: 4}, []VarType{f64(6)}, ErrShape},
		{"reduce axis", ReduceSum, ReduceAttrs{Axes: []int{3}}, []VarType{f64(2, 2)}, ErrAttrs},
		{"conv channels", Conv2D, nil, []VarType{f64(1, 3, 5, 5), f64(2, 2, 3, 3)}, ErrShape},
		{"where cond", Where, nil, []VarType{f64(2), f64(2), f64(2)}, ErrDType},
		{"concat rank", Concat, nil, []VarType{f64(2, 2), f64(2)}, ErrShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Infer(tt.kind, tt.attrs, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestInferShapes(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		attrs Attrs
		in    []VarType
		want  []tensor.Shape
	}{
		{"broadcast", Add, nil, []VarType{f64(3, 1), f64(1, 4)}, []tensor.Shape{{3, 4}}},
		{"partial broadcast", Add, nil, []VarType{f64(-1, 4), f64(4)}, []tensor.Shape{{-1, 4}}},
		{"matmul transposed", MatMul, MatMulAttrs{TransposeA: true}, []VarType{f64(3, 2), f64(3, 5)}, []tensor.Shape{{2, 5}}},
		{"matmul unknown batch", MatMul, nil, []VarType{f64(-1, 4), f64(4, 3)}, []tensor.Shape{{-1, 3}}},
		{"reshape infer", Reshape, ReshapeAttrs{Shape: tensor.Shape{-1, 2}}, []VarType{f64(2, 3)}, []tensor.Shape{{3, 2}}},
		{"transpose default", Transpose, nil, []VarType{f64(2, 3, 4)}, []tensor.Shape{{4, 3, 2}}},
		{"concat", Concat, AxisAttrs{Axis: 1}, []VarType{f64(2, 1), f64(2, 3)}, []tensor.Shape{{2, 4}}},
		{"split", Split, SplitAttrs{Axis: 1, Num: 2}, []VarType{f64(3, 4)}, []tensor.Shape{{3, 2}, {3, 2}}},
		{"reduce all", ReduceMean, nil, []VarType{f64(2, 3)}, []tensor.Shape{{}}},
		{"reduce keep", ReduceSum, ReduceAttrs{Axes: []int{-1}, KeepDims: true}, []VarType{f64(2, 3)}, []tensor.Shape{{2, 1}}},
		{"conv2d", Conv2D, Conv2DAttrs{Stride: 2, Padding: 1}, []VarType{f64(1, 3, 8, 8), f64(4, 3, 3, 3), f64(4)}, []tensor.Shape{{1, 4, 4, 4}}},
		{"maxpool", MaxPool2D, nil, []VarType{f64(2, 3, 4, 6)}, []tensor.Shape{{2, 3, 2, 3}}},
		{"argmax", ArgMax, nil, []VarType{f64(3)}, []tensor.Shape{{}}},
		{"concat_bp", ConcatBp, AxisAttrs{Axis: 0}, []VarType{f64(5), f64(2), f64(3)}, []tensor.Shape{{2}, {3}}},
		{"reduce_to_shape_of", ReduceToShapeOf, nil, []VarType{f64(3, 4), f64(3, 1)}, []tensor.Shape{{3, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outs, _, err := Infer(tt.kind, tt.attrs, tt.in)
			require.NoError(t, err)
			require.Len(t, outs, len(tt.want))
			for i, w := range tt.want {
				assert.True(t, outs[i].Shape.Equal(w), "output %d: got %v, want %v", i, outs[i].Shape, w)
			}
		})
	}
}

func TestInferComparisonDTypes(t *testing.T) {
	outs, _, err := Infer(Greater, nil, []VarType{f64(2), f64(2)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Bool, outs[0].DType)

	outs, _, err = Infer(ArgMax, nil, []VarType{f64(2, 3)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, outs[0].DType)
	assert.Equal(t, tensor.Shape{2}, outs[0].Shape)

	outs, _, err = Infer(Cast, CastAttrs{DType: tensor.Float32}, []VarType{f64(2)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, outs[0].DType)
}

func TestExecute(t *testing.T) {
	backend := cpu.New()
	x, _ := tensor.FromFloat64s(tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})

	outs, err := Execute(backend, ReduceSum, ReduceAttrs{Axes: []int{0}}, []*tensor.RawTensor{x})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7, 9}, outs[0].AsFloat64())

	outs, err = Execute(backend, Split, SplitAttrs{Axis: 1, Num: 3}, []*tensor.RawTensor{x})
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, []float64{2, 5}, outs[1].AsFloat64())

	outs, err = Execute(backend, Reshape, ReshapeAttrs{Shape: tensor.Shape{-1}}, []*tensor.RawTensor{x})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6}, outs[0].Shape())
}

func TestExecuteRecoversKernelPanic(t *testing.T) {
	backend := cpu.New()
	a, _ := tensor.FromFloat64s(tensor.Shape{3}, []float64{1, 2, 3})
	b, _ := tensor.FromFloat64s(tensor.Shape{4}, []float64{1, 2, 3, 4})

	outs, err := Execute(backend, Add, nil, []*tensor.RawTensor{a, b})
	assert.Nil(t, outs)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKernel)
	assert.Contains(t, err.Error(), "add")

	_, err = Execute(backend, Add, nil, []*tensor.RawTensor{a})
	assert.ErrorIs(t, err, ErrArity)
}
