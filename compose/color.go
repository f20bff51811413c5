package compose

import (
	"errors"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

var (
	Black = RGB{}
	White = RGB{R: 255, G: 255, B: 255}
)

// Floats returns the components in the 0..1 range used by rg/RG.
func (c RGB) Floats() (r, g, b float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

var errColorSyntax = errors.New("expected 3, 4, 6 or 8 hex digits")

// ParseColor accepts "#rgb", "#rgba", "#rrggbb" and "#rrggbbaa" with an
// optional "#" or "0x" prefix. Alpha digits are ignored.
func ParseColor(s string) (RGB, error) {
	literal := s
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	}
	for i := 0; i < len(s); i++ {
		if !isHex(s[i]) {
			return RGB{}, &Error{Kind: InvalidColor, Color: literal, Err: errColorSyntax}
		}
	}
	switch len(s) {
	case 3, 4:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6, 8:
		s = s[:6]
	default:
		return RGB{}, &Error{Kind: InvalidColor, Color: literal, Err: errColorSyntax}
	}
	c, err := colorful.Hex("#" + s)
	if err != nil {
		return RGB{}, &Error{Kind: InvalidColor, Color: literal, Err: err}
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// parseOptionalColor treats a blank literal as absent.
func parseOptionalColor(s string) (RGB, bool, error) {
	if strings.TrimSpace(s) == "" {
		return RGB{}, false, nil
	}
	c, err := ParseColor(s)
	return c, err == nil, err
}
