package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies composition failures. Kinds are comparable with errors.Is.
type Kind int

const (
	PdfParseError Kind = iota + 1
	InvalidPage
	InvalidColor
	AssetNotFound
	FontLoadFailed
	UnsupportedOperation
	InvalidImage
	WriteFailed
)

var kindNames = map[Kind]string{
	PdfParseError:        "pdf parse error",
	InvalidPage:          "invalid page",
	InvalidColor:         "invalid color",
	AssetNotFound:        "asset not found",
	FontLoadFailed:       "font load failed",
	UnsupportedOperation: "unsupported operation",
	InvalidImage:         "invalid image",
	WriteFailed:          "write failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Error() string { return k.String() }

// Error is a composition failure with the context needed to report it.
type Error struct {
	Kind     Kind
	Page     int
	AssetKey string
	Color    string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("compose: ")
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		fmt.Fprintf(&b, " (%s)", e.Op)
	}
	switch {
	case e.AssetKey != "":
		fmt.Fprintf(&b, ": asset %q", e.AssetKey)
	case e.Color != "":
		fmt.Fprintf(&b, ": %q", e.Color)
	case e.Kind == InvalidPage:
		fmt.Fprintf(&b, ": page %d", e.Page)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind, so errors.Is(err, compose.InvalidPage) works.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf extracts the Kind of err, or 0 when err is not a composition error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return 0
}
