package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/wudi/pdfcompose/internal/pdftest"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/ir/semantic"
	"github.com/wudi/pdfcompose/parser"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodePNGWithAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	r, err := Decode(encodePNG(t, img))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Width != 3 || r.Height != 2 {
		t.Fatalf("unexpected size %dx%d", r.Width, r.Height)
	}
	if r.Filter != "" || r.ColorSpace != "DeviceRGB" {
		t.Fatalf("unexpected encoding %q/%q", r.Filter, r.ColorSpace)
	}
	if len(r.Data) != 3*2*3 {
		t.Fatalf("expected packed RGB, got %d bytes", len(r.Data))
	}
	if len(r.Alpha) != 6 || r.Alpha[4] != 128 {
		t.Fatalf("unexpected alpha channel %v", r.Alpha)
	}
	if !bytes.Equal(r.Data[12:15], []byte{10, 20, 30}) {
		t.Fatalf("unexpected pixel %v", r.Data[12:15])
	}
}

func TestDecodeOpaquePNGHasNoMask(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	r, err := Decode(encodePNG(t, img))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Alpha != nil {
		t.Fatalf("opaque images should not carry a soft mask")
	}
}

func TestDecodeJPEGPassthrough(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		cs   string
	}{
		{"rgb", image.NewRGBA(image.Rect(0, 0, 8, 5)), "DeviceRGB"},
		{"gray", image.NewGray(image.Rect(0, 0, 8, 5)), "DeviceGray"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			data := encodeJPEG(t, tc.img)
			r, err := Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if r.Filter != "DCTDecode" || r.ColorSpace != tc.cs {
				t.Fatalf("unexpected encoding %q/%q", r.Filter, r.ColorSpace)
			}
			if !bytes.Equal(r.Data, data) {
				t.Fatalf("JPEG bytes should pass through unchanged")
			}
			if w, h := r.NaturalSize(); w != 8 || h != 5 {
				t.Fatalf("unexpected natural size %vx%v", w, h)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Decode([]byte("definitely not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestExifOrientation(t *testing.T) {
	// Little-endian TIFF header, one IFD entry: orientation = 6.
	tiff := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 1, 0, 0x12, 0x01, 3, 0, 1, 0, 0, 0, 6, 0, 0, 0}
	if got := exifOrientation(tiff); got != 6 {
		t.Fatalf("expected orientation 6, got %d", got)
	}
	if got := exifOrientation([]byte("XX")); got != 0 {
		t.Fatalf("expected 0 for bad header, got %d", got)
	}
}

func TestEmbedAddsSoftMask(t *testing.T) {
	rd, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), pdftest.Minimal(1))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := semantic.Build(rd, 0)
	if err != nil {
		t.Fatal(err)
	}
	r := &Raster{Width: 1, Height: 1, ColorSpace: "DeviceRGB", Data: []byte{1, 2, 3}, Alpha: []byte{9}}
	ref := r.Embed(doc)

	stm, ok := doc.Resolve(ref).(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected image stream, got %T", doc.Resolve(ref))
	}
	if sub, _ := stm.Dict.Name("Subtype"); sub != "Image" {
		t.Fatalf("unexpected subtype %q", sub)
	}
	mask, ok := doc.Resolve(stm.Dict.KV["SMask"]).(*raw.StreamObj)
	if !ok {
		t.Fatalf("missing soft mask")
	}
	if cs, _ := mask.Dict.Name("ColorSpace"); cs != "DeviceGray" {
		t.Fatalf("soft mask must be gray, got %q", cs)
	}
	if len(doc.Changed()) != 2 {
		t.Fatalf("expected image and mask objects, got %d", len(doc.Changed()))
	}
}
