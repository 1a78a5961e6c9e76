// Package cpu implements the pure-Go kernel backend that executes graph ops.
//
// Kernels never modify their inputs. They panic on misuse (bad shapes, unsupported
// dtypes); the op dispatch layer recovers those panics and reports them as errors.
package cpu

import (
	"fmt"

	"github.com/born-ml/samediff/internal/parallel"
	"github.com/born-ml/samediff/internal/tensor"
)

// CPUBackend implements tensor kernels on the CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend using every CPU for convolution and pooling.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend that splits kernels as cfg says.
// Results are identical for every cfg.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// alloc creates a zeroed result tensor, panicking with the kernel name on failure.
func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

// fromFloats allocates a result and writes vals (row-major) into it.
func (cpu *CPUBackend) fromFloats(op string, shape tensor.Shape, dtype tensor.DataType, vals []float64) *tensor.RawTensor {
	result := cpu.alloc(op, shape, dtype)
	if dtype == tensor.Float64 {
		copy(result.AsFloat64(), vals)
		return result
	}
	for i, v := range vals {
		result.SetFloat(i, v)
	}
	return result
}

func requireFloat(op string, t *tensor.RawTensor) {
	if !t.DType().IsFloat() {
		panic(fmt.Sprintf("%s: unsupported dtype %s (float type required)", op, t.DType()))
	}
}

func requireSameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}

// normalizeAxis maps a possibly negative axis into [0, rank).
func normalizeAxis(op string, axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Sprintf("%s: axis %d out of range for rank %d", op, axis, rank))
	}
	return axis
}
