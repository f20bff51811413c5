// Package fonts loads TrueType/OpenType programs, shapes text with them and
// embeds them into documents as Identity-H composite fonts.
package fonts

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	gtfont "github.com/go-text/typesetting/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/pdfcompose/ir/raw"
)

// Face is one parsed font program bound to a single output document. It
// records which glyphs were drawn so the embedded font carries their widths
// and Unicode mappings. A Face is not safe for concurrent use.
type Face struct {
	PostScriptName string
	Ascent         float64 // glyph space, 1/1000 em
	Descent        float64 // negative below the baseline
	CapHeight      float64
	ItalicAngle    float64
	BBox           [4]float64

	data       []byte
	font       *sfnt.Font
	shapeFace  *gtfont.Face
	buf        sfnt.Buffer
	unitsPerEm sfnt.Units
	ppem       fixed.Int26_6

	widths map[uint16]int
	used   map[uint16][]rune
	ref    *raw.RefObj
}

// Parse reads metrics from a TrueType/OpenType program.
func Parse(data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, ErrEmptyProgram
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("parse truetype: invalid unitsPerEm")
	}
	shapeFace, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse shaping face: %w", err)
	}

	f := &Face{
		data:       data,
		font:       font,
		shapeFace:  shapeFace,
		unitsPerEm: unitsPerEm,
		ppem:       fixed.Int26_6(unitsPerEm << 6),
		widths:     make(map[uint16]int),
		used:       make(map[uint16][]rune),
	}

	f.PostScriptName = "CustomTT"
	if ps, _ := font.Name(&f.buf, sfnt.NameIDPostScript); len(ps) > 0 {
		f.PostScriptName = strings.Map(func(r rune) rune {
			if r <= ' ' || r > '~' || strings.ContainsRune("()<>[]{}/%#", r) {
				return -1
			}
			return r
		}, ps)
	}

	metrics, _ := font.Metrics(&f.buf, f.ppem, xfont.HintingNone)
	f.Ascent = f.scale(metrics.Ascent)
	f.Descent = -f.scale(metrics.Descent)
	f.CapHeight = f.scale(metrics.CapHeight)
	if f.CapHeight == 0 {
		f.CapHeight = f.Ascent
	}
	// sfnt bounds grow downward; PDF glyph space grows upward.
	if bounds, err := font.Bounds(&f.buf, f.ppem, xfont.HintingNone); err == nil {
		f.BBox = [4]float64{
			f.scale(bounds.Min.X),
			-f.scale(bounds.Max.Y),
			f.scale(bounds.Max.X),
			-f.scale(bounds.Min.Y),
		}
	}
	if post := font.PostTable(); post != nil {
		f.ItalicAngle = post.ItalicAngle
	}
	return f, nil
}

// GlyphWidth is the nominal advance of gid in 1/1000 em.
func (f *Face) GlyphWidth(gid uint16) int {
	if w, ok := f.widths[gid]; ok {
		return w
	}
	adv, err := f.font.GlyphAdvance(&f.buf, sfnt.GlyphIndex(gid), f.ppem, xfont.HintingNone)
	w := 0
	if err == nil {
		w = int(math.Round(f.scale(adv)))
	}
	f.widths[gid] = w
	return w
}

func (f *Face) NumGlyphs() int { return f.font.NumGlyphs() }

func (f *Face) scale(val fixed.Int26_6) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(f.unitsPerEm))
}
