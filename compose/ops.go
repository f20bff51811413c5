package compose

// Operation is one drawing instruction. The set of implementations is
// closed: TextOp, ImageOp, RectOp and LineOp.
type Operation interface {
	placement() Placement
	kind() string
}

// Placement is shared by every operation. X and Y are points from the
// bottom-left corner of the page; Page is 1-based; a nil Z paints at 0.
type Placement struct {
	Page int
	X, Y float64
	Z    *int
}

func (p Placement) placement() Placement { return p }

func (p Placement) z() int {
	if p.Z == nil {
		return 0
	}
	return *p.Z
}

// TextOp draws left-aligned text with its first baseline at (X, Y).
type TextOp struct {
	Placement
	Text        string
	FontSize    *float64
	ColorHex    string
	RotationDeg float64
	Opacity     *float64
	// Whiteout paints an opaque white box of WhiteoutWidth x WhiteoutHeight
	// at (X, Y) immediately before the text.
	Whiteout       bool
	WhiteoutWidth  float64
	WhiteoutHeight float64
}

// ImageOp draws an asset with its bottom-left corner at (X, Y).
type ImageOp struct {
	Placement
	AssetKey    string
	Width       *float64
	Height      *float64
	Opacity     *float64
	RotationDeg float64
}

// RectOp draws a W x H rectangle at (X, Y). Empty colors are absent.
type RectOp struct {
	Placement
	W, H        float64
	FillColor   string
	StrokeColor string
	StrokeWidth *float64
	Opacity     *float64
}

// LineOp draws a segment from (X, Y) to (X2, Y2).
type LineOp struct {
	Placement
	X2, Y2      float64
	StrokeColor string
	StrokeWidth *float64
	Opacity     *float64
}

func (TextOp) kind() string  { return "text" }
func (ImageOp) kind() string { return "image" }
func (RectOp) kind() string  { return "rect" }
func (LineOp) kind() string  { return "line" }

// EditRequest is an ordered batch of operations with request-wide text
// defaults.
type EditRequest struct {
	Operations       []Operation
	DefaultFontSize  *float64
	DefaultTextColor string
	// OutputName is carried for callers that name the result; Apply
	// ignores it.
	OutputName string
}

// Float returns a pointer to v, for optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for Z.
func Int(v int) *int { return &v }
