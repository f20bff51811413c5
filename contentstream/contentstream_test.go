package contentstream

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcompose/coords"
)

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:          "0",
		12:         "12",
		-3.5:       "-3.5",
		0.1234567:  "0.1235",
		1e-7:       "0",
		-1e-7:      "0",
		1e7:        "10000000",
		612.000001: "612",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBuilderSerializes(t *testing.T) {
	var b Builder
	b.Save().
		SetExtGState("GS1").
		FillRGB(1, 0.5, 0).
		Rectangle(10, 20, 30.25, 40).
		Fill().
		BeginText().
		SetFont("F1", 12).
		SetTextMatrix(coords.Translate(72, 700)).
		ShowText(Array{HexString{0x00, 0x2A}, Number(-15), HexString{0x01, 0x00}}).
		EndText().
		Restore()

	want := "q\n" +
		"/GS1 gs\n" +
		"1 0.5 0 rg\n" +
		"10 20 30.25 40 re\n" +
		"f\n" +
		"BT\n" +
		"/F1 12 Tf\n" +
		"1 0 0 1 72 700 Tm\n" +
		"[<002A> -15 <0100>] TJ\n" +
		"ET\n" +
		"Q\n"
	if diff := cmp.Diff(want, string(b.Bytes())); diff != "" {
		t.Fatalf("content mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"q", "gs", "rg", "re", "f", "BT", "Tf", "Tm", "TJ", "ET", "Q"}, Operators(b.Bytes())); diff != "" {
		t.Fatalf("operators mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderAppend(t *testing.T) {
	var a, b Builder
	a.MoveTo(0, 0)
	b.LineTo(1, 1).Stroke()
	a.Append(&b)
	if a.Len() != 3 {
		t.Fatalf("expected 3 operations, got %d", a.Len())
	}
}
