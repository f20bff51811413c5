package compose

import (
	"context"

	"github.com/wudi/pdfcompose/coords"
)

// Watermark is text stamped across the middle of every page.
type Watermark struct {
	Text        string
	FontSize    float64 // 0 means 48
	ColorHex    string  // empty means #808080
	Opacity     float64 // clamped into [0, 1]
	RotationDeg float64
}

// Watermark draws w centered on each page: the middle of the rotated text
// box sits on the middle of the visible page area.
func (c *Compositor) Watermark(src []byte, w Watermark) ([]byte, error) {
	doc, err := c.open(context.Background(), src)
	if err != nil {
		return nil, err
	}
	face, err := c.cfg.Fonts.NewFace()
	if err != nil {
		return nil, &Error{Kind: FontLoadFailed, Op: "watermark", Err: err}
	}

	size := w.FontSize
	if size <= 0 {
		size = 48
	}
	color := w.ColorHex
	if color == "" {
		color = "#808080"
	}
	if _, err := ParseColor(color); err != nil {
		return nil, withOp(err, "watermark", 0)
	}
	opacity := clampOpacity(&w.Opacity)

	// Text-space offset from the anchor to the box center.
	width := face.Measure(w.Text, size)
	middle := (face.Ascent + face.Descent) / 2 * size / 1000
	toCenter := coords.RotateDegrees(w.RotationDeg).TransformVector(coords.Point{X: width / 2, Y: middle})

	req := EditRequest{Operations: make([]Operation, 0, doc.PageCount())}
	for i, page := range doc.Pages {
		cx, cy := page.CropBox.Center()
		req.Operations = append(req.Operations, TextOp{
			Placement:   Placement{Page: i + 1, X: cx - toCenter.X, Y: cy - toCenter.Y},
			Text:        w.Text,
			FontSize:    &size,
			ColorHex:    color,
			RotationDeg: w.RotationDeg,
			Opacity:     &opacity,
		})
	}
	return c.Apply(src, req, nil)
}
