package serialization

import "google.golang.org/protobuf/encoding/protowire"

// Format constants.
const (
	MagicBytes     = "SDGF"
	FormatVersion  = 1    // v1: protowire body with SHA-256 checksum
	HeaderSize     = 64   // fixed header size (0x40 bytes)
	ChecksumSize   = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset = 0x14 // checksum offset in the fixed header
	FileExtension  = ".sdg"
)

// Flags for the .sdg format.
const (
	FlagHasValues uint32 = 1 << 0 // bit 0: variable and constant values included
	FlagHasLosses uint32 = 1 << 1 // bit 1: loss variables recorded
)

// Graph record fields.
const (
	graphID       protowire.Number = 1
	graphName     protowire.Number = 2
	graphVariable protowire.Number = 3
	graphOp       protowire.Number = 4
	graphLoss     protowire.Number = 5
)

// Variable record fields.
const (
	varName      protowire.Number = 1
	varRole      protowire.Number = 2
	varDType     protowire.Number = 3
	varRankKnown protowire.Number = 4
	varDim       protowire.Number = 5
	varValue     protowire.Number = 6
)

// Op record fields.
const (
	opName   protowire.Number = 1
	opKind   protowire.Number = 2
	opInput  protowire.Number = 3
	opOutput protowire.Number = 4
	opAttrs  protowire.Number = 5
)

// Attrs record fields. Tag selects the attrs struct; the rest are its fields.
const (
	attrTag        protowire.Number = 1
	attrValue      protowire.Number = 2
	attrTransposeA protowire.Number = 3
	attrTransposeB protowire.Number = 4
	attrShapeSet   protowire.Number = 5
	attrDim        protowire.Number = 6
	attrInt        protowire.Number = 7
	attrKeepDims   protowire.Number = 8
	attrAxis       protowire.Number = 9
	attrNum        protowire.Number = 10
	attrStride     protowire.Number = 11
	attrPadding    protowire.Number = 12
	attrKernel     protowire.Number = 13
	attrDType      protowire.Number = 14
)

// Attrs struct tags.
const (
	tagScalar uint64 = iota + 1
	tagMatMul
	tagReshape
	tagTranspose
	tagBroadcast
	tagReduce
	tagAxis
	tagSplit
	tagConv2D
	tagPool2D
	tagCast
)

// header is the decoded fixed header.
type header struct {
	Version  uint32
	Flags    uint32
	BodySize uint64
	Checksum [ChecksumSize]byte
}
