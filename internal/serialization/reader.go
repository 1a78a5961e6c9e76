package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/samediff/internal/logger"
	"github.com/born-ml/samediff/internal/ops"
	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// ReaderOptions configures how a graph is read.
type ReaderOptions struct {
	SkipChecksumValidation bool                  // Skip checksum validation (faster but less safe)
	ExecContext            *samediff.ExecContext // Execution context of the loaded graph
	Logger                 logger.Logger         // Logger of the loaded graph
}

// Load reads a graph from path with checksum validation.
func Load(path string) (*samediff.Graph, error) {
	return LoadWithOptions(path, ReaderOptions{})
}

// LoadWithOptions reads a graph from path.
func LoadWithOptions(path string, opts ReaderOptions) (*samediff.Graph, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for graph loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	g, err := Read(file, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return g, nil
}

// Read decodes one graph file from r.
func Read(r io.Reader, opts ReaderOptions) (*samediff.Graph, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	body, sum, err := readBody(r, h.BodySize)
	if err != nil {
		return nil, err
	}
	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(sum, h.Checksum); err != nil {
			return nil, err
		}
	}
	return decodeGraph(body, h, opts)
}

// Unmarshal decodes a graph from complete file bytes.
func Unmarshal(data []byte, opts ReaderOptions) (*samediff.Graph, error) {
	return Read(bytes.NewReader(data), opts)
}

func readHeader(r io.Reader) (header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return header{}, truncated("header", err)
	}
	if string(buf[:len(MagicBytes)]) != MagicBytes {
		return header{}, ErrInvalidMagic
	}
	h := header{
		Version:  binary.LittleEndian.Uint32(buf[4:8]),
		Flags:    binary.LittleEndian.Uint32(buf[8:12]),
		BodySize: binary.LittleEndian.Uint64(buf[12:20]),
	}
	copy(h.Checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])
	if err := validateHeader(h); err != nil {
		return header{}, err
	}
	return h, nil
}

func truncated(section string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, section)
	}
	return fmt.Errorf("failed to read %s: %w", section, err)
}

// field is one decoded protowire field. Only the member matching typ is set.
type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed64 uint64
	bytes   []byte
}

func (f field) int() int { return int(protowire.DecodeZigZag(f.varint)) }

func (f field) string() string { return string(f.bytes) }

// parseFields calls fn for every field of a record. Unknown wire types are skipped.
func parseFields(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &FormatError{Type: "malformed", Err: protowire.ParseError(n)}
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return &FormatError{Type: "malformed", Details: fmt.Sprintf("field %d", num), Err: protowire.ParseError(n)}
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// record is a variable or op entry in file order.
type record struct {
	op   bool
	data []byte
}

func decodeGraph(body []byte, h header, opts ReaderOptions) (*samediff.Graph, error) {
	var (
		id      uuid.UUID
		name    string
		records []record
		losses  []string
	)
	err := parseFields(body, func(f field) error {
		switch f.num {
		case graphID:
			parsed, err := uuid.FromBytes(f.bytes)
			if err != nil {
				return &FormatError{Type: "invalid_id", Err: err}
			}
			id = parsed
		case graphName:
			name = f.string()
		case graphVariable, graphOp:
			if len(records) >= MaxRecordCount {
				return &FormatError{Type: "too_many_records", Details: fmt.Sprintf("max %d", MaxRecordCount)}
			}
			records = append(records, record{op: f.num == graphOp, data: f.bytes})
		case graphLoss:
			losses = append(losses, f.string())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, &FormatError{Type: "invalid_id", Details: "graph id missing"}
	}

	gopts := []samediff.Option{samediff.WithID(id), samediff.WithName(name)}
	if opts.ExecContext != nil {
		gopts = append(gopts, samediff.WithExecContext(opts.ExecContext))
	}
	if opts.Logger != nil {
		gopts = append(gopts, samediff.WithLogger(opts.Logger))
	}
	g := samediff.New(gopts...)

	for _, rec := range records {
		if rec.op {
			err = decodeOp(g, rec.data)
		} else {
			err = decodeVariable(g, rec.data, h.Flags&FlagHasValues != 0)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(losses) > 0 {
		if err := g.SetLoss(losses...); err != nil {
			return nil, &FormatError{Type: "invalid_loss", Err: err}
		}
	}
	g.Logger().Debug("graph decoded", "variables", g.NumVariables(), "ops", g.NumOps(), "losses", len(losses))
	return g, nil
}

func decodeVariable(g *samediff.Graph, b []byte, withValues bool) error {
	var (
		name      string
		role      samediff.Role
		dtype     tensor.DataType
		rankKnown bool
		dims      []int
		value     []byte
		hasValue  bool
	)
	err := parseFields(b, func(f field) error {
		switch f.num {
		case varName:
			name = f.string()
		case varRole:
			role = samediff.Role(f.varint)
		case varDType:
			dtype = tensor.DataType(f.varint)
		case varRankKnown:
			rankKnown = protowire.DecodeBool(f.varint)
		case varDim:
			if len(dims) >= MaxRank {
				return &FormatError{Type: "rank_too_large", Details: fmt.Sprintf("max %d", MaxRank)}
			}
			dims = append(dims, f.int())
		case varValue:
			value, hasValue = f.bytes, true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	var shape tensor.Shape
	if rankKnown {
		shape = tensor.Shape{}
		if dims != nil {
			shape = tensor.Shape(dims)
		}
	}
	v, err := g.CreateVariable(name, role, dtype, shape)
	if err != nil {
		return &FormatError{Type: "invalid_variable", Name: name, Err: err}
	}
	if !hasValue || !withValues {
		return nil
	}

	raw, err := tensor.NewRaw(v.Shape(), dtype, tensor.CPU)
	if err != nil {
		return &FormatError{Type: "invalid_variable", Name: name, Err: err}
	}
	if len(value) != raw.ByteSize() {
		return &FormatError{
			Type:    "value_size",
			Name:    name,
			Details: fmt.Sprintf("got %d bytes, %s%v needs %d", len(value), dtype, shape, raw.ByteSize()),
		}
	}
	if dtype == tensor.Bool {
		for i, b := range value {
			if b > 1 {
				return &FormatError{
					Type:    "invalid_value",
					Name:    name,
					Details: fmt.Sprintf("bool element %d holds byte %d", i, b),
				}
			}
		}
	}
	copy(raw.Data(), value)
	if err := g.AssociateValue(name, raw); err != nil {
		return &FormatError{Type: "invalid_variable", Name: name, Err: err}
	}
	return nil
}

func decodeOp(g *samediff.Graph, b []byte) error {
	var (
		name     string
		kindName string
		inputs   []string
		outputs  []string
		attrs    ops.Attrs
	)
	err := parseFields(b, func(f field) error {
		switch f.num {
		case opName:
			name = f.string()
		case opKind:
			kindName = f.string()
		case opInput:
			inputs = append(inputs, f.string())
		case opOutput:
			outputs = append(outputs, f.string())
		case opAttrs:
			a, err := decodeAttrs(f.bytes)
			if err != nil {
				return &FormatError{Type: "invalid_attrs", Name: name, Err: err}
			}
			attrs = a
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	kind, err := ops.ParseKind(kindName)
	if err != nil {
		return &FormatError{Type: "unknown_kind", Name: name, Err: err}
	}

	ins := make([]*samediff.Variable, len(inputs))
	for i, in := range inputs {
		v, err := g.Variable(in)
		if err != nil {
			return &FormatError{Type: "unknown_input", Name: name, Err: err}
		}
		ins[i] = v
	}
	if _, err := g.CreateOp(kind, ins, attrs, samediff.WithOpName(name), samediff.WithOutputNames(outputs...)); err != nil {
		return &FormatError{Type: "invalid_op", Name: name, Err: err}
	}
	return nil
}
