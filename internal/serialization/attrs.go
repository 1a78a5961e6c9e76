package serialization

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/tensor"
)

func appendInt(b []byte, num protowire.Number, v int) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendDims(b []byte, num protowire.Number, dims []int) []byte {
	for _, d := range dims {
		b = appendInt(b, num, d)
	}
	return b
}

// encodeAttrs returns nil for ops without configuration.
func encodeAttrs(attrs ops.Attrs) ([]byte, error) {
	var b []byte
	tag := func(t uint64) {
		b = protowire.AppendTag(b, attrTag, protowire.VarintType)
		b = protowire.AppendVarint(b, t)
	}
	switch a := attrs.(type) {
	case nil:
		return nil, nil
	case ops.ScalarAttrs:
		tag(tagScalar)
		b = protowire.AppendTag(b, attrValue, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(a.Value))
	case ops.MatMulAttrs:
		tag(tagMatMul)
		b = appendBool(b, attrTransposeA, a.TransposeA)
		b = appendBool(b, attrTransposeB, a.TransposeB)
	case ops.ReshapeAttrs:
		tag(tagReshape)
		b = appendBool(b, attrShapeSet, a.Shape != nil)
		b = appendDims(b, attrDim, a.Shape)
	case ops.TransposeAttrs:
		tag(tagTranspose)
		b = appendDims(b, attrInt, a.Perm)
	case ops.BroadcastAttrs:
		tag(tagBroadcast)
		b = appendBool(b, attrShapeSet, a.Shape != nil)
		b = appendDims(b, attrDim, a.Shape)
	case ops.ReduceAttrs:
		tag(tagReduce)
		b = appendDims(b, attrInt, a.Axes)
		b = appendBool(b, attrKeepDims, a.KeepDims)
	case ops.AxisAttrs:
		tag(tagAxis)
		b = appendInt(b, attrAxis, a.Axis)
	case ops.SplitAttrs:
		tag(tagSplit)
		b = appendInt(b, attrAxis, a.Axis)
		b = appendInt(b, attrNum, a.Num)
	case ops.Conv2DAttrs:
		tag(tagConv2D)
		b = appendInt(b, attrStride, a.Stride)
		b = appendInt(b, attrPadding, a.Padding)
	case ops.Pool2DAttrs:
		tag(tagPool2D)
		b = appendInt(b, attrKernel, a.Kernel)
		b = appendInt(b, attrStride, a.Stride)
	case ops.CastAttrs:
		tag(tagCast)
		b = appendInt(b, attrDType, int(a.DType))
	default:
		return nil, fmt.Errorf("unsupported attrs type %T", attrs)
	}
	return b, nil
}

// attrFields collects the decoded fields of an attrs record.
type attrFields struct {
	tag        uint64
	value      float64
	transposeA bool
	transposeB bool
	shapeSet   bool
	dims       []int
	ints       []int
	keepDims   bool
	axis       int
	num        int
	stride     int
	padding    int
	kernel     int
	dtype      int
}

func decodeAttrs(b []byte) (ops.Attrs, error) {
	var f attrFields
	err := parseFields(b, func(fd field) error {
		switch fd.num {
		case attrTag:
			f.tag = fd.varint
		case attrValue:
			f.value = math.Float64frombits(fd.fixed64)
		case attrTransposeA:
			f.transposeA = protowire.DecodeBool(fd.varint)
		case attrTransposeB:
			f.transposeB = protowire.DecodeBool(fd.varint)
		case attrShapeSet:
			f.shapeSet = protowire.DecodeBool(fd.varint)
		case attrDim:
			f.dims = append(f.dims, fd.int())
		case attrInt:
			f.ints = append(f.ints, fd.int())
		case attrKeepDims:
			f.keepDims = protowire.DecodeBool(fd.varint)
		case attrAxis:
			f.axis = fd.int()
		case attrNum:
			f.num = fd.int()
		case attrStride:
			f.stride = fd.int()
		case attrPadding:
			f.padding = fd.int()
		case attrKernel:
			f.kernel = fd.int()
		case attrDType:
			f.dtype = fd.int()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	shape := func() tensor.Shape {
		if !f.shapeSet {
			return nil
		}
		if f.dims == nil {
			return tensor.Shape{}
		}
		return tensor.Shape(f.dims)
	}
	switch f.tag {
	case tagScalar:
		return ops.ScalarAttrs{Value: f.value}, nil
	case tagMatMul:
		return ops.MatMulAttrs{TransposeA: f.transposeA, TransposeB: f.transposeB}, nil
	case tagReshape:
		return ops.ReshapeAttrs{Shape: shape()}, nil
	case tagTranspose:
		return ops.TransposeAttrs{Perm: f.ints}, nil
	case tagBroadcast:
		return ops.BroadcastAttrs{Shape: shape()}, nil
	case tagReduce:
		return ops.ReduceAttrs{Axes: f.ints, KeepDims: f.keepDims}, nil
	case tagAxis:
		return ops.AxisAttrs{Axis: f.axis}, nil
	case tagSplit:
		return ops.SplitAttrs{Axis: f.axis, Num: f.num}, nil
	case tagConv2D:
		return ops.Conv2DAttrs{Stride: f.stride, Padding: f.padding}, nil
	case tagPool2D:
		return ops.Pool2DAttrs{Kernel: f.kernel, Stride: f.stride}, nil
	case tagCast:
		return ops.CastAttrs{DType: tensor.DataType(f.dtype)}, nil
	default:
		return nil, fmt.Errorf("unknown attrs tag %d", f.tag)
	}
}
