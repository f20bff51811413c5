package fonts_test

import (
	"math"
	"testing"

	"github.com/go-text/typesetting/language"

	"github.com/wudi/pdfcompose/contentstream"
	"github.com/wudi/pdfcompose/fonts"
)

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect language.Script
	}{
		{"Latin", "Hello World", language.Latin},
		{"Arabic", "مرحبا بالعالم", language.Arabic},
		{"Hebrew", "שלום עולם", language.Hebrew},
		{"Cyrillic", "Привет мир", language.Cyrillic},
		{"Greek", "Γειά σου Κόσμε", language.Greek},
		// Ties keep the script seen first.
		{"Mixed Latin/Arabic (Latin dominant)", "Hello World مرحبا", language.Latin},
		{"Mixed Latin/Arabic (Arabic dominant)", "مرحبا بالعالم Hello", language.Arabic},
		{"CJK (Han)", "你好世界", language.Han},
		{"Hiragana", "こんにちは", language.Hiragana},
		{"Hangul", "안녕하세요", language.Hangul},
		{"Digits only", "12345", language.Latin},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := fonts.DetectScript([]rune(tc.input))
			if got != tc.expect {
				t.Errorf("Expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func newFace(t *testing.T) *fonts.Face {
	t.Helper()
	face, err := fonts.NewProgramCache(fonts.DefaultSource()).NewFace()
	if err != nil {
		t.Fatalf("face: %v", err)
	}
	return face
}

func TestShapeLatin(t *testing.T) {
	face := newFace(t)
	run := face.Shape("Hello")
	if len(run.Glyphs) != 5 {
		t.Fatalf("expected 5 glyphs, got %d", len(run.Glyphs))
	}
	for i, g := range run.Glyphs {
		if g.ID == 0 {
			t.Fatalf("glyph %d is .notdef", i)
		}
		if g.XAdvance <= 0 {
			t.Fatalf("glyph %d has no advance", i)
		}
		if len(g.Runes) != 1 || g.Runes[0] != rune("Hello"[i]) {
			t.Fatalf("glyph %d maps to %q", i, string(g.Runes))
		}
	}
	if run.Glyphs[2].ID != run.Glyphs[3].ID {
		t.Fatalf("both l's should share a glyph")
	}
}

func TestShapeNormalizesToNFC(t *testing.T) {
	face := newFace(t)
	composed := face.Shape("\u00e9")
	decomposed := face.Shape("e\u0301")
	if len(composed.Glyphs) != 1 || len(decomposed.Glyphs) != 1 {
		t.Fatalf("expected single glyphs, got %d and %d", len(composed.Glyphs), len(decomposed.Glyphs))
	}
	if composed.Glyphs[0].ID != decomposed.Glyphs[0].ID {
		t.Fatalf("NFC forms should shape identically")
	}
}

func TestMeasureScalesWithSize(t *testing.T) {
	face := newFace(t)
	w12 := face.Measure("Watermark", 12)
	w24 := face.Measure("Watermark", 24)
	if w12 <= 0 {
		t.Fatalf("expected positive width, got %v", w12)
	}
	if math.Abs(w24-2*w12) > 1e-9 {
		t.Fatalf("width should scale linearly: %v vs %v", w12, w24)
	}
	if got := face.Measure("Water\nWatermark", 12); math.Abs(got-w12) > 1e-9 {
		t.Fatalf("multi-line measure should use the widest line, got %v want %v", got, w12)
	}
	if face.Measure("", 12) != 0 {
		t.Fatalf("empty text has no width")
	}
}

func TestTextArrayEncodesGlyphIDs(t *testing.T) {
	face := newFace(t)
	run := face.Shape("AB")
	arr := face.TextArray(run)
	var ids []byte
	for _, part := range arr {
		if hex, ok := part.(contentstream.HexString); ok {
			ids = append(ids, hex...)
		}
	}
	if len(ids) != 4 {
		t.Fatalf("expected two 2-byte glyph ids, got % x", ids)
	}
	if uint16(ids[0])<<8|uint16(ids[1]) != run.Glyphs[0].ID {
		t.Fatalf("first glyph id mismatch")
	}
}
