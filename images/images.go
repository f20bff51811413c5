// Package images turns raster assets into image XObjects.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP with image.Decode

	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/ir/semantic"
)

var ErrEmpty = errors.New("images: no image data")

// Raster is a decoded image ready for embedding. JPEG sources keep their
// original bytes and are stored with DCTDecode; everything else is raw 8-bit
// RGB with an optional 8-bit alpha channel.
type Raster struct {
	Width      int
	Height     int
	ColorSpace string
	Filter     string
	Data       []byte
	Alpha      []byte
}

// Decode sniffs data and prepares it for embedding.
func Decode(data []byte) (*Raster, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if isJPEG(data) {
		if r, ok := jpegPassthrough(data); ok {
			return r, nil
		}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

func isJPEG(data []byte) bool {
	return len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// jpegPassthrough keeps gray and YCbCr JPEGs as stored. CMYK and Adobe
// inverted variants go through the generic path.
func jpegPassthrough(data []byte) (*Raster, bool) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, false
	}
	var cs string
	switch cfg.ColorModel {
	case color.GrayModel:
		cs = "DeviceGray"
	case color.YCbCrModel:
		cs = "DeviceRGB"
	default:
		return nil, false
	}
	if hasEXIFOrientation(data) {
		return nil, false
	}
	return &Raster{Width: cfg.Width, Height: cfg.Height, ColorSpace: cs, Filter: "DCTDecode", Data: data}, true
}

// hasEXIFOrientation reports whether an APP1 segment carries a non-default
// orientation tag, in which case the pixels must be rotated before embedding.
func hasEXIFOrientation(data []byte) bool {
	for i := 2; i+4 < len(data); {
		if data[i] != 0xFF {
			return false
		}
		marker := data[i+1]
		if marker == 0xDA || marker == 0xD9 {
			return false
		}
		size := int(data[i+2])<<8 | int(data[i+3])
		if size < 2 || i+2+size > len(data) {
			return false
		}
		seg := data[i+4 : i+2+size]
		if marker == 0xE1 && bytes.HasPrefix(seg, []byte("Exif\x00\x00")) {
			return exifOrientation(seg[6:]) > 1
		}
		i += 2 + size
	}
	return false
}

func exifOrientation(tiff []byte) int {
	if len(tiff) < 8 {
		return 0
	}
	var u16 func([]byte) int
	var u32 func([]byte) int
	switch string(tiff[:2]) {
	case "II":
		u16 = func(b []byte) int { return int(b[0]) | int(b[1])<<8 }
		u32 = func(b []byte) int { return u16(b) | u16(b[2:])<<16 }
	case "MM":
		u16 = func(b []byte) int { return int(b[0])<<8 | int(b[1]) }
		u32 = func(b []byte) int { return u16(b)<<16 | u16(b[2:]) }
	default:
		return 0
	}
	ifd := u32(tiff[4:])
	if ifd < 0 || ifd+2 > len(tiff) {
		return 0
	}
	n := u16(tiff[ifd:])
	for k := 0; k < n; k++ {
		e := ifd + 2 + k*12
		if e+12 > len(tiff) {
			return 0
		}
		if u16(tiff[e:]) == 0x0112 {
			return u16(tiff[e+8:])
		}
	}
	return 0
}

// FromImage flattens src to RGB, splitting translucency into Alpha.
func FromImage(src image.Image) *Raster {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba, ok := src.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*w {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)
	}

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	translucent := false
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			translucent = true
		}
	}

	r := &Raster{Width: w, Height: h, ColorSpace: "DeviceRGB", Data: pixels}
	if translucent {
		r.Alpha = alpha
	}
	return r
}

// NaturalSize is the image size in points, one point per pixel.
func (r *Raster) NaturalSize() (w, h float64) { return float64(r.Width), float64(r.Height) }

// Embed adds the image, and its soft mask when present, to doc.
func (r *Raster) Embed(doc *semantic.Document) raw.RefObj {
	dict := imageDict(r.Width, r.Height, r.ColorSpace)
	if r.Filter != "" {
		dict.Set("Filter", raw.NameLiteral(r.Filter))
	}
	if r.Alpha != nil {
		mask := imageDict(r.Width, r.Height, "DeviceGray")
		dict.Set("SMask", doc.Add(raw.NewStream(mask, r.Alpha)))
	}
	return doc.Add(raw.NewStream(dict, r.Data))
}

func imageDict(w, h int, colorSpace string) *raw.DictObj {
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("XObject"))
	dict.Set("Subtype", raw.NameLiteral("Image"))
	dict.Set("Width", raw.NumberInt(int64(w)))
	dict.Set("Height", raw.NumberInt(int64(h)))
	dict.Set("ColorSpace", raw.NameLiteral(colorSpace))
	dict.Set("BitsPerComponent", raw.NumberInt(8))
	return dict
}
