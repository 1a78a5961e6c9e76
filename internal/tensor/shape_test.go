package tensor

import (
	"testing"
)

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"outer", Shape{3, 1}, Shape{1, 4}, Shape{3, 4}, true, false},
		{"rank", Shape{4}, Shape{2, 3, 4}, Shape{2, 3, 4}, true, false},
		{"scalar", Shape{}, Shape{2, 2}, Shape{2, 2}, true, false},
		{"unknown vs n", Shape{UnknownDim, 4}, Shape{3, 4}, Shape{3, 4}, false, false},
		{"unknown vs 1", Shape{UnknownDim}, Shape{1}, Shape{UnknownDim}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BroadcastShapes(%v, %v) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("BroadcastShapes(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if broadcast != tt.broadcast {
				t.Errorf("BroadcastShapes(%v, %v) broadcast = %v, want %v", tt.a, tt.b, broadcast, tt.broadcast)
			}
		})
	}
}

func TestShapeCompatible(t *testing.T) {
	declared := Shape{UnknownDim, 3}
	if !declared.Compatible(Shape{7, 3}) {
		t.Error("[?,3] should accept [7,3]")
	}
	if declared.Compatible(Shape{7, 4}) {
		t.Error("[?,3] should reject [7,4]")
	}
	if declared.Compatible(Shape{3}) {
		t.Error("rank mismatch should be rejected")
	}
	if !Shape(nil).Compatible(Shape{1, 2, 3}) {
		t.Error("nil declared shape accepts anything")
	}
	if got := declared.String(); got != "[?,3]" {
		t.Errorf("String() = %q", got)
	}
}

func TestComputeStridesOrder(t *testing.T) {
	s := Shape{2, 3, 4}
	c := s.ComputeStridesOrder(C)
	f := s.ComputeStridesOrder(F)
	if c[0] != 12 || c[1] != 4 || c[2] != 1 {
		t.Errorf("C strides = %v", c)
	}
	if f[0] != 1 || f[1] != 2 || f[2] != 6 {
		t.Errorf("F strides = %v", f)
	}
}

func TestUnravelIndex(t *testing.T) {
	idx := make([]int, 3)
	Shape{2, 3, 4}.UnravelIndex(23, idx)
	if idx[0] != 1 || idx[1] != 2 || idx[2] != 3 {
		t.Errorf("UnravelIndex(23) = %v", idx)
	}
}

func TestParseDataType(t *testing.T) {
	for in, want := range map[string]DataType{
		"float32": Float32, "f64": Float64, "half": Float16, "int": Int32, "long": Int64, "bool": Bool,
	} {
		got, err := ParseDataType(in)
		if err != nil || got != want {
			t.Errorf("ParseDataType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDataType("complex128"); err == nil {
		t.Error("expected error for unknown type")
	}
}
