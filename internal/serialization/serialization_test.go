package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/samediff/internal/samediff"
	"github.com/born-ml/samediff/internal/tensor"
)

// buildGraph creates a graph touching every record type: placeholder with an
// unknown batch dimension, trainable variable, constant, multi-output op,
// float attrs, int attrs and a loss.
func buildGraph(t *testing.T) (*samediff.Graph, map[string]*tensor.RawTensor) {
	t.Helper()
	g := samediff.New(samediff.WithName("roundtrip"))

	x, err := g.Placeholder("x", tensor.Float64, tensor.Shape{-1, 2})
	if err != nil {
		t.Fatalf("Placeholder failed: %v", err)
	}
	wv, _ := tensor.FromFloat64s(tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
	w, err := g.Var("w", wv)
	if err != nil {
		t.Fatalf("Var failed: %v", err)
	}
	bv, _ := tensor.FromFloat64s(tensor.Shape{2}, []float64{0.5, -0.5})
	b, err := g.Constant("b", bv)
	if err != nil {
		t.Fatalf("Constant failed: %v", err)
	}

	m := g.Math()
	h := m.Name("h").Add(m.MatMul(x, w), b)
	parts := m.Split(h, 1, 2)
	cat := m.Concat(1, parts[1], parts[0])
	m.Name("loss").Sum(m.ScalarMul(m.Tanh(m.Transpose(cat)), 0.5), false)
	if err := m.Err(); err != nil {
		t.Fatalf("building graph failed: %v", err)
	}
	if err := g.SetLoss("loss"); err != nil {
		t.Fatalf("SetLoss failed: %v", err)
	}

	xv, _ := tensor.FromFloat64s(tensor.Shape{3, 2}, []float64{0.1, 0, 0, 0.2, 0.3, -0.1})
	return g, map[string]*tensor.RawTensor{"x": xv}
}

func variableNames(g *samediff.Graph) []string {
	var names []string
	for _, v := range g.Variables() {
		names = append(names, v.Name()+":"+v.Role().String()+":"+v.DType().String()+v.Shape().String())
	}
	return names
}

// TestRoundTrip verifies that a saved graph loads with the same structure,
// values and results.
func TestRoundTrip(t *testing.T) {
	g, feeds := buildGraph(t)
	path := filepath.Join(t.TempDir(), "graph"+FileExtension)

	if err := Save(path, g); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ID() != g.ID() {
		t.Errorf("Expected id %s, got %s", g.ID(), loaded.ID())
	}
	if loaded.Name() != "roundtrip" {
		t.Errorf("Expected name roundtrip, got %q", loaded.Name())
	}
	if want, got := variableNames(g), variableNames(loaded); !slices.Equal(want, got) {
		t.Errorf("Variables differ:\nwant %v\ngot  %v", want, got)
	}
	if loaded.NumOps() != g.NumOps() {
		t.Errorf("Expected %d ops, got %d", g.NumOps(), loaded.NumOps())
	}
	for _, op := range g.Ops() {
		other := loaded.Op(op.Name())
		if other == nil || other.Kind() != op.Kind() || other.ID() != op.ID() {
			t.Errorf("Op %s did not survive the round trip: %v", op, other)
		}
	}
	if losses := loaded.Losses(); len(losses) != 1 || losses[0].Name() != "loss" {
		t.Errorf("Expected loss [loss], got %v", losses)
	}

	want, err := g.Output(feeds, "h", "loss")
	if err != nil {
		t.Fatalf("Output on original failed: %v", err)
	}
	got, err := loaded.Output(feeds, "h", "loss")
	if err != nil {
		t.Fatalf("Output on loaded failed: %v", err)
	}
	for name := range want {
		if !tensor.AllClose(want[name], got[name], 0) {
			t.Errorf("%s: expected %v, got %v", name, want[name].Float64s(), got[name].Float64s())
		}
	}

	wantGrads, err := g.CalculateGradients(feeds, "w", "x")
	if err != nil {
		t.Fatalf("CalculateGradients on original failed: %v", err)
	}
	gotGrads, err := loaded.CalculateGradients(feeds, "w", "x")
	if err != nil {
		t.Fatalf("CalculateGradients on loaded failed: %v", err)
	}
	for name := range wantGrads {
		if !tensor.AllClose(wantGrads[name], gotGrads[name], 1e-12) {
			t.Errorf("gradient of %s differs after round trip", name)
		}
	}
}

// TestRoundTripSkipValues verifies structure-only files.
func TestRoundTripSkipValues(t *testing.T) {
	g, feeds := buildGraph(t)
	var buf bytes.Buffer
	if err := Write(&buf, g, WriterOptions{SkipValues: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	flags := binary.LittleEndian.Uint32(buf.Bytes()[8:12])
	if flags&FlagHasValues != 0 || flags&FlagHasLosses == 0 {
		t.Errorf("Unexpected flags 0x%x", flags)
	}

	loaded, err := Read(&buf, ReaderOptions{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	w, err := loaded.Variable("w")
	if err != nil {
		t.Fatalf("Variable failed: %v", err)
	}
	if w.Value() != nil {
		t.Error("Expected w to load unbound")
	}

	_, err = loaded.Output(feeds, "loss")
	var unbound *samediff.UnboundVariableError
	if !errors.As(err, &unbound) {
		t.Fatalf("Expected UnboundVariableError, got: %v", err)
	}

	orig, _ := g.Variable("w")
	if err := loaded.AssociateValue("w", orig.Value()); err != nil {
		t.Fatalf("AssociateValue failed: %v", err)
	}
	b, _ := g.Variable("b")
	if err := loaded.AssociateValue("b", b.Value()); err != nil {
		t.Fatalf("AssociateValue failed: %v", err)
	}
	if _, err := loaded.Output(feeds, "loss"); err != nil {
		t.Errorf("Output after binding failed: %v", err)
	}
}

// TestCorruptionDetection verifies that a modified body fails the checksum.
func TestCorruptionDetection(t *testing.T) {
	g, _ := buildGraph(t)
	data, err := Marshal(g, WriterOptions{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	corrupt := bytes.Clone(data)
	corrupt[len(corrupt)-1] ^= 0xFF
	if _, err := Unmarshal(corrupt, ReaderOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got: %v", err)
	}

	// A damaged checksum with an intact body is only detected when validating.
	badSum := bytes.Clone(data)
	badSum[ChecksumOffset] ^= 0xFF
	if _, err := Unmarshal(badSum, ReaderOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got: %v", err)
	}
	if _, err := Unmarshal(badSum, ReaderOptions{SkipChecksumValidation: true}); err != nil {
		t.Errorf("Expected skip to succeed, got: %v", err)
	}
}

// TestHeaderErrors verifies magic, version and truncation handling.
func TestHeaderErrors(t *testing.T) {
	g, _ := buildGraph(t)
	data, err := Marshal(g, WriterOptions{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	badMagic := bytes.Clone(data)
	copy(badMagic, "SDGX")
	if _, err := Unmarshal(badMagic, ReaderOptions{}); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got: %v", err)
	}

	badVersion := bytes.Clone(data)
	binary.LittleEndian.PutUint32(badVersion[4:8], FormatVersion+1)
	if _, err := Unmarshal(badVersion, ReaderOptions{}); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Expected ErrUnsupportedVersion, got: %v", err)
	}

	huge := bytes.Clone(data)
	binary.LittleEndian.PutUint64(huge[12:20], MaxBodySize+1)
	if _, err := Unmarshal(huge, ReaderOptions{}); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("Expected ErrBodyTooLarge, got: %v", err)
	}

	overstated := bytes.Clone(data)
	binary.LittleEndian.PutUint64(overstated[12:20], MaxBodySize)
	if _, err := Unmarshal(overstated, ReaderOptions{}); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated for an overstated body size, got: %v", err)
	}

	for _, n := range []int{0, HeaderSize - 1, len(data) - 1} {
		if _, err := Unmarshal(data[:n], ReaderOptions{}); !errors.Is(err, ErrTruncated) {
			t.Errorf("length %d: expected ErrTruncated, got: %v", n, err)
		}
	}
}

// TestGradientGraphRejected verifies that derived graphs are not written.
func TestGradientGraphRejected(t *testing.T) {
	g, _ := buildGraph(t)
	gg, err := g.GradGraph()
	if err != nil {
		t.Fatalf("GradGraph failed: %v", err)
	}
	if _, err := Marshal(gg, WriterOptions{}); err == nil {
		t.Error("Expected an error for a gradient graph")
	}
	if _, err := Marshal(nil, WriterOptions{}); err == nil {
		t.Error("Expected an error for a nil graph")
	}
}

func graphBody(records ...[]byte) []byte {
	id := uuid.New()
	var b []byte
	b = protowire.AppendTag(b, graphID, protowire.BytesType)
	b = protowire.AppendBytes(b, id[:])
	for _, r := range records {
		b = append(b, r...)
	}
	return b
}

func opRecord(name, kind string, inputs ...string) []byte {
	var r []byte
	r = protowire.AppendTag(r, opName, protowire.BytesType)
	r = protowire.AppendString(r, name)
	r = protowire.AppendTag(r, opKind, protowire.BytesType)
	r = protowire.AppendString(r, kind)
	for _, in := range inputs {
		r = protowire.AppendTag(r, opInput, protowire.BytesType)
		r = protowire.AppendString(r, in)
	}
	var b []byte
	b = protowire.AppendTag(b, graphOp, protowire.BytesType)
	return protowire.AppendBytes(b, r)
}

func varRecord(name string, role samediff.Role, value []byte) []byte {
	return typedVarRecord(name, role, tensor.Float64, value)
}

func typedVarRecord(name string, role samediff.Role, dtype tensor.DataType, value []byte) []byte {
	var r []byte
	r = protowire.AppendTag(r, varName, protowire.BytesType)
	r = protowire.AppendString(r, name)
	r = protowire.AppendTag(r, varRole, protowire.VarintType)
	r = protowire.AppendVarint(r, uint64(role))
	r = protowire.AppendTag(r, varDType, protowire.VarintType)
	r = protowire.AppendVarint(r, uint64(dtype))
	r = appendBool(r, varRankKnown, true)
	r = appendDims(r, varDim, []int{2})
	if value != nil {
		r = protowire.AppendTag(r, varValue, protowire.BytesType)
		r = protowire.AppendBytes(r, value)
	}
	var b []byte
	b = protowire.AppendTag(b, graphVariable, protowire.BytesType)
	return protowire.AppendBytes(b, r)
}

// TestBodyErrors verifies that invalid bodies fail with a FormatError.
func TestBodyErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		wantType string
	}{
		{"missing id", nil, "invalid_id"},
		{"unknown kind", graphBody(varRecord("a", samediff.RoleVariable, nil), opRecord("op", "frobnicate", "a")), "unknown_kind"},
		{"unknown input", graphBody(opRecord("op", "neg", "ghost")), "unknown_input"},
		{"bad arity", graphBody(varRecord("a", samediff.RoleVariable, nil), opRecord("op", "add", "a")), "invalid_op"},
		{"value size", graphBody(varRecord("a", samediff.RoleConstant, make([]byte, 8))), "value_size"},
		{"bool value", graphBody(typedVarRecord("a", samediff.RoleConstant, tensor.Bool, []byte{1, 2})), "invalid_value"},
		{"array leaf", graphBody(varRecord("a", samediff.RoleArray, nil)), "invalid_variable"},
		{"empty name", graphBody(varRecord("", samediff.RoleVariable, nil)), "invalid_name"},
		{"malformed", append(graphBody(), 0xFF), "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(frame(tt.body, FlagHasValues), ReaderOptions{})
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected FormatError, got: %v", err)
			}
			if fe.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s (%v)", tt.wantType, fe.Type, err)
			}
		})
	}
}

// TestBodyErrorUnwrapsGraphError verifies that graph errors stay inspectable.
func TestBodyErrorUnwrapsGraphError(t *testing.T) {
	body := graphBody(varRecord("a", samediff.RoleVariable, nil), varRecord("a", samediff.RoleVariable, nil))
	_, err := Unmarshal(frame(body, 0), ReaderOptions{})
	var dup *samediff.DuplicateNameError
	if !errors.As(err, &dup) || dup.Name != "a" {
		t.Errorf("Expected DuplicateNameError for a, got: %v", err)
	}
}

// TestValidateName verifies name checks on loaded records.
func TestValidateName(t *testing.T) {
	for _, name := range []string{"x", "dense/kernel", "split:1", "x-grad"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) failed: %v", name, err)
		}
	}
	for _, name := range []string{"", "a\x00b", strings.Repeat("n", MaxNameLen+1)} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%.10q) should fail", name)
		}
	}
}
