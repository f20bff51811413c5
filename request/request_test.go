package request

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcompose/compose"
)

func TestDecodeJSON(t *testing.T) {
	in := `{
  "outputName": "stamped",
  "defaultFontSize": 14,
  "defaultTextColor": "#333333",
  "operations": [
    {"type": "text", "page": 1, "x": 72, "y": 700, "text": "Hello", "whiteout": true, "whiteoutWidth": 80, "whiteoutHeight": 20, "z": 2},
    {"type": "image", "page": 2, "x": 10, "y": 20, "asset": "logo.png", "width": 100, "opacity": 0.5},
    {"type": "rect", "page": 1, "x": 0, "y": 0, "w": 50, "h": 25, "fillColor": "#ff0000", "strokeWidth": 2},
    {"type": "line", "page": 1, "x1": 5, "y1": 6, "x2": 7, "y2": 8, "strokeColor": "#000"}
  ]
}`
	got, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := compose.EditRequest{
		OutputName:       "stamped",
		DefaultFontSize:  compose.Float(14),
		DefaultTextColor: "#333333",
		Operations: []compose.Operation{
			compose.TextOp{
				Placement: compose.Placement{Page: 1, X: 72, Y: 700, Z: compose.Int(2)},
				Text:      "Hello", Whiteout: true, WhiteoutWidth: 80, WhiteoutHeight: 20,
			},
			compose.ImageOp{
				Placement: compose.Placement{Page: 2, X: 10, Y: 20},
				AssetKey:  "logo.png", Width: compose.Float(100), Opacity: compose.Float(0.5),
			},
			compose.RectOp{
				Placement: compose.Placement{Page: 1},
				W:         50, H: 25, FillColor: "#ff0000", StrokeWidth: compose.Float(2),
			},
			compose.LineOp{
				Placement: compose.Placement{Page: 1, X: 5, Y: 6},
				X2:        7, Y2: 8, StrokeColor: "#000",
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded request mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeYAML(t *testing.T) {
	in := `
operations:
  - type: Text
    page: 3
    x: 1.5
    y: 2
    text: |-
      first
      second
    fontSize: 9
    rotationDeg: 45
`
	got, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	op, ok := got.Operations[0].(compose.TextOp)
	if !ok {
		t.Fatalf("expected a text operation, got %T", got.Operations[0])
	}
	if op.Text != "first\nsecond" || *op.FontSize != 9 || op.RotationDeg != 45 || op.Page != 3 || op.X != 1.5 {
		t.Fatalf("unexpected operation %+v", op)
	}
	if op.Opacity != nil || op.Z != nil {
		t.Fatalf("absent optional fields must stay nil")
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"operations":[{"type":"circle","page":2}]}`))
	if !errors.Is(err, compose.UnsupportedOperation) {
		t.Fatalf("expected UnsupportedOperation, got %v", err)
	}
	if errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("unknown types are not validation failures")
	}
	var e *compose.Error
	if !errors.As(err, &e) || e.Op != "circle" || e.Page != 2 {
		t.Fatalf("error should name the type and page: %v", err)
	}

	for _, page := range []int{0, -3} {
		in := fmt.Sprintf(`{"operations":[{"type":"circle","page":%d}]}`, page)
		if _, err := Decode([]byte(in)); !errors.Is(err, compose.UnsupportedOperation) {
			t.Fatalf("page %d: expected UnsupportedOperation before page validation, got %v", page, err)
		}
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"no operations", `{"operations":[]}`, "no operations"},
		{"missing operations", `{"outputName":"x"}`, "no operations"},
		{"page zero", `{"operations":[{"type":"rect","page":0,"w":1,"h":1}]}`, "page 0"},
		{"missing type", `{"operations":[{"page":1}]}`, "missing type"},
		{"blank text", `{"operations":[{"type":"text","page":1,"text":"  "}]}`, "text is blank"},
		{"blank asset", `{"operations":[{"type":"image","page":1}]}`, "asset is blank"},
		{"zero width", `{"operations":[{"type":"image","page":1,"asset":"a","width":0}]}`, "width must be positive"},
		{"negative font size", `{"operations":[{"type":"text","page":1,"text":"a","fontSize":-2}]}`, "fontSize must be positive"},
		{"flat rect", `{"operations":[{"type":"rect","page":1,"w":10,"h":0}]}`, "must be positive"},
		{"negative stroke", `{"operations":[{"type":"line","page":1,"strokeWidth":-1}]}`, "strokeWidth"},
		{"negative whiteout", `{"operations":[{"type":"text","page":1,"text":"a","whiteoutHeight":-1}]}`, "whiteoutHeight"},
		{"bad default size", `{"defaultFontSize":0,"operations":[{"type":"line","page":1}]}`, "defaultFontSize"},
		{"malformed", `{"operations": [`, ""},
		{"wrong shape", `{"operations":"text"}`, ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.in))
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("error %q should mention %q", err, tc.msg)
			}
		})
	}
}

func TestDecodeLimits(t *testing.T) {
	if _, err := Decode([]byte(" \n")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	old := MaxInputSize
	MaxInputSize = 10
	defer func() { MaxInputSize = old }()
	if _, err := Decode([]byte(`{"operations":[]}`)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
