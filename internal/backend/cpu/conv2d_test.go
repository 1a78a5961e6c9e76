package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/samediff/internal/parallel"
	"github.com/born-ml/samediff/internal/tensor"
)

func TestConv2D_Simple(t *testing.T) {
	backend := New()

	// Input: [1, 1, 3, 3], kernel: [1, 1, 2, 2] of ones
	input := f64(t, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	kernel := f64(t, tensor.Shape{1, 1, 2, 2}, 1, 1, 1, 1)

	out := backend.Conv2D(input, kernel, nil, 1, 0)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Expected shape [1,1,2,2], got %v", out.Shape())
	}
	assert.Equal(t, []float64{12, 16, 24, 28}, out.AsFloat64())
}

func TestConv2D_BiasPaddingStride(t *testing.T) {
	backend := New()
	input := f64(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	kernel := f64(t, tensor.Shape{2, 1, 1, 1}, 1, -1)
	bias := f64(t, tensor.Shape{2}, 10, 20)

	out := backend.Conv2D(input, kernel, bias, 2, 1)
	// Padded input is 4x4, 1x1 kernel at stride 2 samples (0,0),(0,2),(2,0),(2,2)
	// of the padded grid: 0, 0, 0, 4.
	require.Equal(t, tensor.Shape{1, 2, 2, 2}, out.Shape())
	assert.Equal(t, []float64{10, 10, 10, 14, 20, 20, 20, 16}, out.AsFloat64())

	assert.Panics(t, func() { backend.Conv2D(input, kernel, f64(t, tensor.Shape{3}, 1, 2, 3), 1, 0) })
	assert.Panics(t, func() { backend.Conv2D(input, f64(t, tensor.Shape{1, 2, 1, 1}, 1, 1), nil, 1, 0) })
}

// sumConv returns sum(conv2d(x, k) * w) for finite-difference checks of the backward kernels.
func sumConv(backend *CPUBackend, x, k, w *tensor.RawTensor, stride, padding int) float64 {
	out := backend.Conv2D(x, k, nil, stride, padding)
	total := 0.0
	for i, v := range out.Float64s() {
		total += v * w.Float(i)
	}
	return total
}

func TestConv2DBackward_FiniteDifference(t *testing.T) {
	backend := New()
	src := tensor.NewSource(3)
	x, _ := tensor.RandomUniform(tensor.Shape{2, 2, 4, 4}, tensor.Float64, -1, 1, src)
	k, _ := tensor.RandomUniform(tensor.Shape{3, 2, 3, 3}, tensor.Float64, -1, 1, src)

	for _, cfg := range []struct{ stride, padding int }{{1, 0}, {2, 1}} {
		out := backend.Conv2D(x, k, nil, cfg.stride, cfg.padding)
		w, _ := tensor.RandomUniform(out.Shape(), tensor.Float64, -1, 1, src)

		dx := backend.Conv2DInputBackward(x, k, w, cfg.stride, cfg.padding)
		dk := backend.Conv2DKernelBackward(x, k, w, cfg.stride, cfg.padding)

		const eps = 1e-6
		for _, target := range []struct {
			name string
			t    *tensor.RawTensor
			grad *tensor.RawTensor
		}{{"input", x, dx}, {"kernel", k, dk}} {
			for i := 0; i < target.t.NumElements(); i += 7 {
				orig := target.t.Float(i)
				target.t.SetFloat(i, orig+eps)
				plus := sumConv(backend, x, k, w, cfg.stride, cfg.padding)
				target.t.SetFloat(i, orig-eps)
				minus := sumConv(backend, x, k, w, cfg.stride, cfg.padding)
				target.t.SetFloat(i, orig)

				numeric := (plus - minus) / (2 * eps)
				assert.InDelta(t, numeric, target.grad.Float(i), 1e-6, "%s[%d] stride=%d pad=%d",
					target.name, i, cfg.stride, cfg.padding)
			}
		}
	}
}

func TestMaxPool2D(t *testing.T) {
	backend := New()
	input := f64(t, tensor.Shape{1, 1, 4, 4},
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16)

	out := backend.MaxPool2D(input, 2, 2)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{6, 8, 14, 16}, out.AsFloat64())

	grad := f64(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	dx := backend.MaxPool2DBackward(input, grad, 2, 2)
	want := make([]float64, 16)
	want[5], want[7], want[13], want[15] = 1, 2, 3, 4
	assert.Equal(t, want, dx.AsFloat64())

	// Overlapping windows accumulate into the shared winner
	overlap := backend.MaxPool2DBackward(input, f64(t, tensor.Shape{1, 1, 3, 3}, 1, 1, 1, 1, 1, 1, 1, 1, 1), 2, 1)
	assert.Equal(t, 1.0, overlap.Float(15))
	assert.Equal(t, 0.0, overlap.Float(0))

	assert.Panics(t, func() { backend.MaxPool2D(input, 5, 1) })
}

func TestParallelMatchesSequential(t *testing.T) {
	src := tensor.NewSource(3)
	input, err := tensor.RandomNormal(tensor.Shape{3, 2, 9, 9}, tensor.Float64, 0, 1, src)
	require.NoError(t, err)
	kernel, err := tensor.RandomNormal(tensor.Shape{4, 2, 3, 3}, tensor.Float64, 0, 1, src)
	require.NoError(t, err)

	seq := NewWithConfig(parallel.Sequential())
	par := NewWithConfig(parallel.Config{Workers: 8, MinChunk: 1})

	assert.Equal(t, seq.Conv2D(input, kernel, nil, 2, 1).AsFloat64(), par.Conv2D(input, kernel, nil, 2, 1).AsFloat64())
	assert.Equal(t, seq.MaxPool2D(input, 3, 2).AsFloat64(), par.MaxPool2D(input, 3, 2).AsFloat64())

	// Kernel panics from workers still surface on the caller.
	assert.Panics(t, func() { par.Conv2D(input, kernel, f64(t, tensor.Shape{1}, 0), 1, 0) })
}
