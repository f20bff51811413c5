// Package writer serializes an edited document back to PDF bytes, either as
// a complete rewrite or as an incremental update appended to the source.
package writer

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/ir/semantic"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

var ErrNoRoot = errors.New("writer: trailer has no /Root")

type Config struct {
	// Version is the minimum header version. The source version wins when
	// it is higher; anything below 1.4 is raised to 1.4.
	Version PDFVersion
	// Compression is the zlib level for new unfiltered streams; 0 leaves
	// them uncompressed.
	Compression int
	// Incremental appends changed objects to Base instead of rewriting the
	// file. Documents whose cross-reference data had to be rebuilt are
	// always rewritten in full.
	Incremental bool
	Base        []byte
	// Deterministic derives the file identifier from the output bytes.
	Deterministic bool
}

// Writer serializes documents.
type Writer interface {
	Write(ctx context.Context, doc *semantic.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

func New() Writer { return &impl{} }

// Write serializes doc to w with the default Writer.
func Write(ctx context.Context, doc *semantic.Document, w io.Writer, cfg Config) error {
	return New().Write(ctx, doc, w, cfg)
}
