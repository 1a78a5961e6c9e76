// Package tensor provides the dense N-dimensional array used by graphs and kernels.
package tensor

import (
	"fmt"
	"strings"
)

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Float16
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Valid reports whether dt is one of the supported types.
func (dt DataType) Valid() bool {
	return dt >= Float32 && dt <= Float16
}

// IsFloat reports whether the type is a floating point type.
// Only floating point variables take part in differentiation.
func (dt DataType) IsFloat() bool {
	return dt == Float16 || dt == Float32 || dt == Float64
}

// IsInteger reports whether the type is a signed or unsigned integer type.
func (dt DataType) IsInteger() bool {
	return dt == Int32 || dt == Int64 || dt == Uint8
}

// ParseDataType converts a name such as "float64" (or the short "f64") into a DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float16", "f16", "half":
		return Float16, nil
	case "float32", "f32", "float":
		return Float32, nil
	case "float64", "f64", "double":
		return Float64, nil
	case "int32", "i32", "int":
		return Int32, nil
	case "int64", "i64", "long":
		return Int64, nil
	case "uint8", "u8", "byte":
		return Uint8, nil
	case "bool":
		return Bool, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}
