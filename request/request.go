// Package request decodes edit requests from their JSON or YAML wire form.
package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/wudi/pdfcompose/compose"
)

// MaxInputSize bounds the encoded request.
var MaxInputSize = 4 << 20

var (
	ErrInvalidRequest = errors.New("request: invalid request")
	ErrEmpty          = errors.New("request: empty input")
	ErrTooLarge       = errors.New("request: input exceeds maximum size")
)

type wireRequest struct {
	Operations       []wireOp `yaml:"operations"`
	OutputName       string   `yaml:"outputName"`
	DefaultFontSize  *float64 `yaml:"defaultFontSize"`
	DefaultTextColor string   `yaml:"defaultTextColor"`
}

// wireOp is the union of every operation's fields, selected by Type.
type wireOp struct {
	Type string  `yaml:"type"`
	Z    *int    `yaml:"z"`
	Page int     `yaml:"page"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`

	Text           string   `yaml:"text"`
	FontSize       *float64 `yaml:"fontSize"`
	ColorHex       string   `yaml:"colorHex"`
	RotationDeg    float64  `yaml:"rotationDeg"`
	Whiteout       bool     `yaml:"whiteout"`
	WhiteoutWidth  *float64 `yaml:"whiteoutWidth"`
	WhiteoutHeight *float64 `yaml:"whiteoutHeight"`

	Asset   string   `yaml:"asset"`
	Width   *float64 `yaml:"width"`
	Height  *float64 `yaml:"height"`
	Opacity *float64 `yaml:"opacity"`

	W           float64  `yaml:"w"`
	H           float64  `yaml:"h"`
	FillColor   string   `yaml:"fillColor"`
	StrokeColor string   `yaml:"strokeColor"`
	StrokeWidth *float64 `yaml:"strokeWidth"`

	X1 *float64 `yaml:"x1"`
	Y1 *float64 `yaml:"y1"`
	X2 float64  `yaml:"x2"`
	Y2 float64  `yaml:"y2"`
}

// Decode parses and validates an edit request. JSON input is accepted as
// YAML. Operations of an unknown type fail with a *compose.Error of kind
// UnsupportedOperation; every other problem wraps ErrInvalidRequest.
func Decode(data []byte) (compose.EditRequest, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return compose.EditRequest{}, ErrEmpty
	}
	if len(data) > MaxInputSize {
		return compose.EditRequest{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), MaxInputSize)
	}
	var w wireRequest
	if err := yaml.Unmarshal(data, &w); err != nil {
		return compose.EditRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return w.build()
}

func (w wireRequest) build() (compose.EditRequest, error) {
	if len(w.Operations) == 0 {
		return compose.EditRequest{}, fmt.Errorf("%w: no operations", ErrInvalidRequest)
	}
	if w.DefaultFontSize != nil && *w.DefaultFontSize <= 0 {
		return compose.EditRequest{}, fmt.Errorf("%w: defaultFontSize must be positive", ErrInvalidRequest)
	}
	req := compose.EditRequest{
		Operations:       make([]compose.Operation, 0, len(w.Operations)),
		DefaultFontSize:  w.DefaultFontSize,
		DefaultTextColor: w.DefaultTextColor,
		OutputName:       w.OutputName,
	}
	for i, o := range w.Operations {
		op, err := o.build()
		if err != nil {
			var ce *compose.Error
			if errors.As(err, &ce) {
				return compose.EditRequest{}, err
			}
			return compose.EditRequest{}, fmt.Errorf("%w: operation %d: %v", ErrInvalidRequest, i, err)
		}
		req.Operations = append(req.Operations, op)
	}
	return req, nil
}

func (o wireOp) build() (compose.Operation, error) {
	typ := strings.ToLower(strings.TrimSpace(o.Type))
	if typ == "" {
		return nil, errors.New("missing type")
	}
	switch typ {
	case "text", "image", "rect", "line":
	default:
		return nil, &compose.Error{Kind: compose.UnsupportedOperation, Page: o.Page, Op: typ}
	}
	if o.Page < 1 {
		return nil, fmt.Errorf("page %d must be at least 1", o.Page)
	}
	place := compose.Placement{Page: o.Page, X: o.X, Y: o.Y, Z: o.Z}

	switch typ {
	case "text":
		if strings.TrimSpace(o.Text) == "" {
			return nil, errors.New("text is blank")
		}
		if err := positive("fontSize", o.FontSize); err != nil {
			return nil, err
		}
		op := compose.TextOp{
			Placement:   place,
			Text:        o.Text,
			FontSize:    o.FontSize,
			ColorHex:    o.ColorHex,
			RotationDeg: o.RotationDeg,
			Opacity:     o.Opacity,
			Whiteout:    o.Whiteout,
		}
		for _, d := range []struct {
			name string
			v    *float64
			dst  *float64
		}{
			{"whiteoutWidth", o.WhiteoutWidth, &op.WhiteoutWidth},
			{"whiteoutHeight", o.WhiteoutHeight, &op.WhiteoutHeight},
		} {
			if d.v == nil {
				continue
			}
			if *d.v < 0 {
				return nil, fmt.Errorf("%s must not be negative", d.name)
			}
			*d.dst = *d.v
		}
		return op, nil

	case "image":
		if strings.TrimSpace(o.Asset) == "" {
			return nil, errors.New("asset is blank")
		}
		if err := positive("width", o.Width); err != nil {
			return nil, err
		}
		if err := positive("height", o.Height); err != nil {
			return nil, err
		}
		return compose.ImageOp{
			Placement:   place,
			AssetKey:    o.Asset,
			Width:       o.Width,
			Height:      o.Height,
			Opacity:     o.Opacity,
			RotationDeg: o.RotationDeg,
		}, nil

	case "rect":
		if o.W <= 0 || o.H <= 0 {
			return nil, fmt.Errorf("rect size %gx%g must be positive", o.W, o.H)
		}
		if err := nonNegative("strokeWidth", o.StrokeWidth); err != nil {
			return nil, err
		}
		return compose.RectOp{
			Placement:   place,
			W:           o.W,
			H:           o.H,
			FillColor:   o.FillColor,
			StrokeColor: o.StrokeColor,
			StrokeWidth: o.StrokeWidth,
			Opacity:     o.Opacity,
		}, nil

	case "line":
		if o.X1 != nil {
			place.X = *o.X1
		}
		if o.Y1 != nil {
			place.Y = *o.Y1
		}
		if err := nonNegative("strokeWidth", o.StrokeWidth); err != nil {
			return nil, err
		}
		return compose.LineOp{
			Placement:   place,
			X2:          o.X2,
			Y2:          o.Y2,
			StrokeColor: o.StrokeColor,
			StrokeWidth: o.StrokeWidth,
			Opacity:     o.Opacity,
		}, nil
	}
	return nil, &compose.Error{Kind: compose.UnsupportedOperation, Page: o.Page, Op: typ}
}

func positive(name string, v *float64) error {
	if v != nil && *v <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

func nonNegative(name string, v *float64) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}
