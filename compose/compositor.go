// Package compose applies batches of drawing operations (text, images,
// rectangles and lines) to existing PDF documents.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/ir/semantic"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/parser"
	"github.com/wudi/pdfcompose/security"
	"github.com/wudi/pdfcompose/writer"
)

type Config struct {
	// Fonts supplies the text font program. Nil uses Go Regular.
	Fonts  *fonts.ProgramCache
	// Limits bounds source parsing. The zero value parses without bounds
	// or a deadline.
	Limits security.Limits
	// Writer controls serialization. When Incremental is set the source
	// bytes become the base of the update.
	Writer writer.Config
	Logger observability.Logger
	Tracer observability.Tracer
}

// Compositor is safe for concurrent use. The font program bytes are the
// only state shared between calls.
type Compositor struct {
	cfg    Config
	parser *parser.DocumentParser
}

func New(cfg Config) *Compositor {
	if cfg.Fonts == nil {
		cfg.Fonts = fonts.NewProgramCache(fonts.DefaultSource())
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &Compositor{
		cfg:    cfg,
		parser: parser.NewDocumentParser(parser.Config{Limits: cfg.Limits, Logger: cfg.Logger}),
	}
}

// Apply paints req's operations onto a copy of src in ascending z order
// (ties keep request order) and returns the new document. The first failing
// operation aborts the call and no output is produced.
func (c *Compositor) Apply(src []byte, req EditRequest, assets AssetMap) (out []byte, err error) {
	start := time.Now()
	ctx, span := c.cfg.Tracer.StartSpan(context.Background(), observability.SpanApply)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	span.SetTag("operations", len(req.Operations))

	doc, err := c.open(ctx, src)
	if err != nil {
		return nil, err
	}

	ops := make([]Operation, len(req.Operations))
	copy(ops, req.Operations)
	sort.SliceStable(ops, func(i, j int) bool { return zOf(ops[i]) < zOf(ops[j]) })

	s := newSession(c, doc, req, assets)
	_, paintSpan := c.cfg.Tracer.StartSpan(ctx, observability.SpanPaint)
	for i, op := range ops {
		if err := s.paint(op); err != nil {
			paintSpan.SetError(err)
			paintSpan.Finish()
			c.cfg.Logger.Warn("operation failed", observability.Int("index", i), observability.Error("error", err))
			return nil, err
		}
	}
	s.finish()
	paintSpan.Finish()

	out, err = c.write(ctx, doc, src)
	if err != nil {
		return nil, err
	}
	c.cfg.Logger.Info("document composed",
		observability.Int("operations", len(ops)),
		observability.Int("pages", doc.PageCount()),
		observability.Int("bytes", len(out)),
		observability.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (c *Compositor) open(ctx context.Context, src []byte) (*semantic.Document, error) {
	ctx, span := c.cfg.Tracer.StartSpan(ctx, observability.SpanParse)
	defer span.Finish()
	rd, err := c.parser.Parse(ctx, src)
	if err != nil {
		span.SetError(err)
		return nil, &Error{Kind: PdfParseError, Err: err}
	}
	doc, err := semantic.Build(rd, c.cfg.Limits.MaxIndirectDepth)
	if err != nil {
		span.SetError(err)
		return nil, &Error{Kind: PdfParseError, Err: err}
	}
	span.SetTag("pages", doc.PageCount())
	return doc, nil
}

func (c *Compositor) write(ctx context.Context, doc *semantic.Document, src []byte) ([]byte, error) {
	ctx, span := c.cfg.Tracer.StartSpan(ctx, observability.SpanWrite)
	defer span.Finish()
	cfg := c.cfg.Writer
	if cfg.Incremental {
		cfg.Base = src
	}
	var buf bytes.Buffer
	if err := writer.Write(ctx, doc, &buf, cfg); err != nil {
		span.SetError(err)
		return nil, &Error{Kind: WriteFailed, Err: err}
	}
	return buf.Bytes(), nil
}

// AddText applies a single text operation.
func (c *Compositor) AddText(src []byte, op TextOp) ([]byte, error) {
	return c.Apply(src, EditRequest{Operations: []Operation{op}}, nil)
}

// AddImage applies a single image operation drawing image.
func (c *Compositor) AddImage(src []byte, op ImageOp, image []byte) ([]byte, error) {
	if op.AssetKey == "" {
		op.AssetKey = "image"
	}
	return c.Apply(src, EditRequest{Operations: []Operation{op}}, AssetMap{op.AssetKey: image})
}

func zOf(op Operation) int {
	if op == nil {
		return 0
	}
	if p, ok := placementOf(op); ok {
		return p.z()
	}
	return 0
}

// placementOf reads the placement of a known operation without calling
// through a nil pointer. Unknown variants report false.
func placementOf(op Operation) (Placement, bool) {
	switch o := op.(type) {
	case *TextOp:
		if o == nil {
			return Placement{}, false
		}
	case *ImageOp:
		if o == nil {
			return Placement{}, false
		}
	case *RectOp:
		if o == nil {
			return Placement{}, false
		}
	case *LineOp:
		if o == nil {
			return Placement{}, false
		}
	case TextOp, ImageOp, RectOp, LineOp:
	default:
		return Placement{}, false
	}
	return op.placement(), true
}

func describe(op Operation) string {
	if op == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", op)
}
