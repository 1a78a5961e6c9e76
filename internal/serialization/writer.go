package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/samediff/internal/samediff"
)

// WriterOptions configures how a graph is written.
type WriterOptions struct {
	SkipValues bool // Write structure only; variables and constants load unbound
}

// Save writes g to path with default options.
func Save(path string, g *samediff.Graph) error {
	return SaveWithOptions(path, g, WriterOptions{})
}

// SaveWithOptions writes g to path.
func SaveWithOptions(path string, g *samediff.Graph, opts WriterOptions) (err error) {
	data, err := Marshal(g, opts)
	if err != nil {
		return err
	}
	//nolint:gosec // G304: File path comes from user input, which is expected for graph saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}

// Write encodes g and writes the complete file to w.
func Write(w io.Writer, g *samediff.Graph, opts WriterOptions) error {
	data, err := Marshal(g, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}

// Marshal returns the complete file bytes for g: header and body.
func Marshal(g *samediff.Graph, opts WriterOptions) ([]byte, error) {
	if g == nil {
		return nil, errors.New("serialization: nil graph")
	}
	if g.Parent() != nil {
		return nil, fmt.Errorf("serialization: graph %q is a gradient graph; save its forward graph", g.Name())
	}

	body, err := encodeGraph(g, opts)
	if err != nil {
		return nil, err
	}

	flags := uint32(0)
	if !opts.SkipValues {
		flags |= FlagHasValues
	}
	if len(g.Losses()) > 0 {
		flags |= FlagHasLosses
	}

	return frame(body, flags), nil
}

// frame prepends the fixed header to body.
func frame(body []byte, flags uint32) []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(body))
	buf.WriteString(MagicBytes)
	var fixed [HeaderSize - len(MagicBytes)]byte
	binary.LittleEndian.PutUint32(fixed[0:4], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[4:8], flags)
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(len(body)))
	sum := ComputeChecksum(body)
	copy(fixed[ChecksumOffset-len(MagicBytes):], sum[:])
	buf.Write(fixed[:])
	buf.Write(body)
	return buf.Bytes()
}

// encodeGraph writes leaf variables and ops in creation order. An op is
// emitted at the position of its first output.
func encodeGraph(g *samediff.Graph, opts WriterOptions) ([]byte, error) {
	var b []byte
	id := g.ID()
	b = protowire.AppendTag(b, graphID, protowire.BytesType)
	b = protowire.AppendBytes(b, id[:])
	b = protowire.AppendTag(b, graphName, protowire.BytesType)
	b = protowire.AppendString(b, g.Name())

	for _, v := range g.Variables() {
		op := v.Producer()
		if op == nil {
			b = protowire.AppendTag(b, graphVariable, protowire.BytesType)
			b = protowire.AppendBytes(b, encodeVariable(v, opts))
			continue
		}
		if v.OutputIndex() != 0 {
			continue
		}
		rec, err := encodeOp(op)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, graphOp, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}

	for _, l := range g.Losses() {
		b = protowire.AppendTag(b, graphLoss, protowire.BytesType)
		b = protowire.AppendString(b, l.Name())
	}
	return b, nil
}

func encodeVariable(v *samediff.Variable, opts WriterOptions) []byte {
	var b []byte
	b = protowire.AppendTag(b, varName, protowire.BytesType)
	b = protowire.AppendString(b, v.Name())
	b = protowire.AppendTag(b, varRole, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Role()))
	b = protowire.AppendTag(b, varDType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.DType()))

	shape := v.Shape()
	b = appendBool(b, varRankKnown, shape != nil)
	b = appendDims(b, varDim, shape)

	if value := v.Value(); value != nil && !opts.SkipValues {
		c := value.Contiguous()
		b = protowire.AppendTag(b, varValue, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Data()[:c.ByteSize()])
	}
	return b
}

func encodeOp(op *samediff.Op) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, opName, protowire.BytesType)
	b = protowire.AppendString(b, op.Name())
	b = protowire.AppendTag(b, opKind, protowire.BytesType)
	b = protowire.AppendString(b, op.Kind().String())
	for _, in := range op.Inputs() {
		b = protowire.AppendTag(b, opInput, protowire.BytesType)
		b = protowire.AppendString(b, in.Name())
	}
	for _, out := range op.Outputs() {
		b = protowire.AppendTag(b, opOutput, protowire.BytesType)
		b = protowire.AppendString(b, out.Name())
	}
	attrs, err := encodeAttrs(op.Attrs())
	if err != nil {
		return nil, fmt.Errorf("op %q: %w", op.Name(), err)
	}
	if attrs != nil {
		b = protowire.AppendTag(b, opAttrs, protowire.BytesType)
		b = protowire.AppendBytes(b, attrs)
	}
	return b, nil
}
