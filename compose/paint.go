package compose

import (
	"strings"

	"github.com/wudi/pdfcompose/contentstream"
	"github.com/wudi/pdfcompose/coords"
	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/images"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/ir/semantic"
	"github.com/wudi/pdfcompose/observability"
)

const (
	defaultFontSize = 12
	lineSpacing     = 1.2
)

type alphaKey struct{ fill, stroke float64 }

// session is the state of one Apply call. Nothing in it outlives the call.
type session struct {
	c      *Compositor
	doc    *semantic.Document
	req    EditRequest
	assets AssetMap

	canvases map[int]*contentstream.Builder
	order    []int
	face     *fonts.Face
	gstates  map[alphaKey]raw.RefObj
	images   map[string]imageRef
}

type imageRef struct {
	ref    raw.RefObj
	raster *images.Raster
}

func newSession(c *Compositor, doc *semantic.Document, req EditRequest, assets AssetMap) *session {
	return &session{
		c:        c,
		doc:      doc,
		req:      req,
		assets:   assets,
		canvases: make(map[int]*contentstream.Builder),
		gstates:  make(map[alphaKey]raw.RefObj),
		images:   make(map[string]imageRef),
	}
}

func (s *session) paint(op Operation) error {
	p, ok := placementOf(op)
	if !ok {
		return &Error{Kind: UnsupportedOperation, Op: describe(op)}
	}
	page, err := s.doc.Page(p.Page)
	if err != nil {
		return &Error{Kind: InvalidPage, Page: p.Page, Op: op.kind(), Err: err}
	}
	s.c.cfg.Logger.Debug("painting operation",
		observability.String("op", op.kind()),
		observability.Int("page", p.Page),
		observability.Int("z", p.z()))

	switch o := op.(type) {
	case TextOp:
		return s.text(page, o)
	case *TextOp:
		return s.text(page, *o)
	case ImageOp:
		return s.image(page, o)
	case *ImageOp:
		return s.image(page, *o)
	case RectOp:
		return s.rect(page, o)
	case *RectOp:
		return s.rect(page, *o)
	case LineOp:
		return s.line(page, o)
	case *LineOp:
		return s.line(page, *o)
	default:
		return &Error{Kind: UnsupportedOperation, Page: p.Page, Op: describe(op)}
	}
}

func (s *session) canvas(page *semantic.Page) *contentstream.Builder {
	b, ok := s.canvases[page.Index]
	if !ok {
		b = &contentstream.Builder{}
		s.canvases[page.Index] = b
		s.order = append(s.order, page.Index)
	}
	return b
}

// finish appends each page's drawing and embeds the font once all glyphs
// are known.
func (s *session) finish() {
	for _, idx := range s.order {
		s.doc.AppendContent(s.doc.Pages[idx], s.canvases[idx].Bytes())
	}
	if s.face != nil {
		s.face.Embed(s.doc)
	}
}

// font parses the request's face on first use.
func (s *session) font() (*fonts.Face, error) {
	if s.face != nil {
		return s.face, nil
	}
	face, err := s.c.cfg.Fonts.NewFace()
	if err != nil {
		return nil, &Error{Kind: FontLoadFailed, Err: err}
	}
	s.face = face
	return face, nil
}

// alpha selects a graphics state with the given opacities. Fully opaque
// drawing needs none.
func (s *session) alpha(b *contentstream.Builder, page *semantic.Page, fill, stroke float64) {
	if fill >= 1 && stroke >= 1 {
		return
	}
	key := alphaKey{fill: fill, stroke: stroke}
	ref, ok := s.gstates[key]
	if !ok {
		gs := raw.Dict()
		gs.Set("Type", raw.NameLiteral("ExtGState"))
		gs.Set("ca", raw.NumberFloat(fill))
		gs.Set("CA", raw.NumberFloat(stroke))
		ref = s.doc.Add(gs)
		s.gstates[key] = ref
	}
	b.SetExtGState(s.doc.ResourceName(page, "ExtGState", "GS", ref))
}

func (s *session) text(page *semantic.Page, op TextOp) error {
	colorHex := op.ColorHex
	if strings.TrimSpace(colorHex) == "" {
		colorHex = s.req.DefaultTextColor
	}
	color := Black
	if c, ok, err := parseOptionalColor(colorHex); err != nil {
		return withOp(err, "text", op.Page)
	} else if ok {
		color = c
	}

	size := float64(defaultFontSize)
	switch {
	case op.FontSize != nil && *op.FontSize > 0:
		size = *op.FontSize
	case s.req.DefaultFontSize != nil && *s.req.DefaultFontSize > 0:
		size = *s.req.DefaultFontSize
	}

	face, err := s.font()
	if err != nil {
		return withOp(err, "text", op.Page)
	}
	fontName := s.doc.ResourceName(page, "Font", "F", face.Ref(s.doc))

	b := s.canvas(page)
	if op.Whiteout && op.WhiteoutWidth > 0 && op.WhiteoutHeight > 0 {
		b.Save().FillRGB(1, 1, 1).Rectangle(op.X, op.Y, op.WhiteoutWidth, op.WhiteoutHeight).Fill().Restore()
	}

	opacity := clampOpacity(op.Opacity)
	b.Save()
	s.alpha(b, page, opacity, opacity)
	b.FillRGB(color.Floats())
	b.BeginText().SetFont(fontName, size)
	rotate := coords.RotateDegrees(op.RotationDeg).Multiply(coords.Translate(op.X, op.Y))
	text := strings.ReplaceAll(op.Text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		m := coords.Translate(0, -float64(i)*lineSpacing*size).Multiply(rotate)
		b.SetTextMatrix(m)
		b.ShowText(face.TextArray(face.Shape(line)))
	}
	b.EndText().Restore()
	return nil
}

func (s *session) image(page *semantic.Page, op ImageOp) error {
	img, ok := s.images[op.AssetKey]
	if !ok {
		data, err := s.assets.Resolve(op.AssetKey)
		if err != nil {
			return withOp(err, "image", op.Page)
		}
		raster, err := images.Decode(data)
		if err != nil {
			return &Error{Kind: InvalidImage, Page: op.Page, AssetKey: op.AssetKey, Op: "image", Err: err}
		}
		img = imageRef{ref: raster.Embed(s.doc), raster: raster}
		s.images[op.AssetKey] = img
	}

	nw, nh := img.raster.NaturalSize()
	w, h := ScaleImage(nw, nh, op.Width, op.Height)
	name := s.doc.ResourceName(page, "XObject", "Im", img.ref)

	opacity := clampOpacity(op.Opacity)
	b := s.canvas(page)
	b.Save()
	s.alpha(b, page, opacity, opacity)
	b.Concat(coords.Place(op.X, op.Y, w, h, op.RotationDeg))
	b.DrawXObject(name)
	b.Restore()
	return nil
}

func (s *session) rect(page *semantic.Page, op RectOp) error {
	fill, hasFill, err := parseOptionalColor(op.FillColor)
	if err != nil {
		return withOp(err, "rect", op.Page)
	}
	stroke, hasStroke, err := parseOptionalColor(op.StrokeColor)
	if err != nil {
		return withOp(err, "rect", op.Page)
	}

	opacity := clampOpacity(op.Opacity)
	b := s.canvas(page)
	b.Save()
	s.alpha(b, page, opacity, opacity)
	if hasFill {
		b.FillRGB(fill.Floats())
	}
	if hasStroke {
		b.StrokeRGB(stroke.Floats())
	}
	if op.StrokeWidth != nil {
		b.LineWidth(*op.StrokeWidth)
	}
	b.Rectangle(op.X, op.Y, op.W, op.H)
	switch {
	case hasFill && hasStroke:
		b.FillStroke()
	case hasFill:
		b.Fill()
	default:
		b.Stroke()
	}
	b.Restore()
	return nil
}

func (s *session) line(page *semantic.Page, op LineOp) error {
	stroke, hasStroke, err := parseOptionalColor(op.StrokeColor)
	if err != nil {
		return withOp(err, "line", op.Page)
	}

	b := s.canvas(page)
	b.Save()
	s.alpha(b, page, 1, clampOpacity(op.Opacity))
	if hasStroke {
		b.StrokeRGB(stroke.Floats())
	}
	if op.StrokeWidth != nil {
		b.LineWidth(*op.StrokeWidth)
	}
	b.MoveTo(op.X, op.Y).LineTo(op.X2, op.Y2).Stroke()
	b.Restore()
	return nil
}

// withOp fills in the operation context of a composition error.
func withOp(err error, op string, page int) error {
	if e, ok := err.(*Error); ok {
		if e.Op == "" {
			e.Op = op
		}
		if e.Page == 0 {
			e.Page = page
		}
	}
	return err
}
