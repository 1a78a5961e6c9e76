package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64, CPU)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorRejectsBadShape(t *testing.T) {
	if _, err := NewRaw(Shape{2, 0}, Float32, CPU); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := NewRaw(Shape{UnknownDim}, Float32, CPU); err == nil {
		t.Error("expected error for unknown dimension")
	}
	if _, err := NewRawOrder(Shape{2}, Float32, CPU, Order('x')); err == nil {
		t.Error("expected error for bad order")
	}
}

func TestFloatOrderIndependent(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	c, err := FromFloat64s(Shape{2, 3}, data)
	require.NoError(t, err)

	f := c.Dup(F)
	assert.Equal(t, F, f.Order())
	assert.Equal(t, []int{1, 2}, f.Strides())
	assert.False(t, f.IsContiguous())

	for i, want := range data {
		assert.Equal(t, want, f.Float(i), "index %d", i)
	}
	assert.Equal(t, 2.0, f.At(0, 1))
	assert.Equal(t, 4.0, f.At(1, 0))

	// Column-major storage: 1 4 2 5 3 6
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, f.AsFloat64())

	back := f.Contiguous()
	assert.Equal(t, C, back.Order())
	assert.Equal(t, data, back.AsFloat64())
}

func TestSetAt(t *testing.T) {
	r, _ := NewRaw(Shape{2, 2}, Float32, CPU)
	r.SetAt(5, 1, 0)
	if r.Float(2) != 5 {
		t.Errorf("SetAt(1,0) should write linear index 2, got %v", r.Float64s())
	}

	assert.Panics(t, func() { r.At(2, 0) })
	assert.Panics(t, func() { r.At(0) })
	assert.Panics(t, func() { r.Float(4) })
}

func TestDupIsIndependent(t *testing.T) {
	a, _ := FromFloat64s(Shape{3}, []float64{1, 2, 3})
	b := a.Dup(C)
	b.SetFloat(0, 100)
	if a.Float(0) != 1 {
		t.Error("Dup must not share storage")
	}
}

func TestReshapeView(t *testing.T) {
	a, _ := FromFloat64s(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})

	v, err := a.Reshape(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, v.Shape())
	v.SetAt(9, 0, 0)
	assert.Equal(t, 9.0, a.Float(0), "reshape of contiguous tensor is a view")

	f := a.Dup(F)
	w, err := f.Reshape(Shape{6})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 2, 3, 4, 5, 6}, w.Float64s())
	w.SetFloat(0, 0)
	assert.Equal(t, 9.0, f.Float(0), "reshape of F-ordered tensor copies")

	_, err = a.Reshape(Shape{4})
	assert.Error(t, err)
}

func TestFloat16Storage(t *testing.T) {
	r, err := FromValues(Shape{3}, Float16, []float64{0.5, -2, 1024})
	require.NoError(t, err)
	assert.Equal(t, 6, r.ByteSize())
	assert.Equal(t, []float64{0.5, -2, 1024}, r.Float64s())

	// 1/3 is not representable in half precision
	r.SetFloat(0, 1.0/3)
	assert.InDelta(t, 1.0/3, r.Float(0), 1e-3)
	assert.NotEqual(t, 1.0/3, r.Float(0))
}

func TestCopyFrom(t *testing.T) {
	dst, _ := Zeros(Shape{2, 2}, Float32)
	src, _ := FromFloat64s(Shape{2, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{1, 2, 3, 4}, dst.AsFloat32())

	bad, _ := Zeros(Shape{4}, Float32)
	assert.Error(t, dst.CopyFrom(bad))
}
