package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/wudi/pdfcompose/filters"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/security"
	"github.com/wudi/pdfcompose/xref"
)

var (
	ErrNotPDF     = errors.New("parser: missing %PDF- header")
	ErrNoCatalog  = errors.New("parser: document catalog not found")
	// ErrUnreadable reports an in-use object that could not be loaded.
	ErrUnreadable = errors.New("parser: unreadable object")
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	// Limits bounds the parse. The zero value sets no bounds.
	Limits security.Limits
	// DisableRepair fails on a damaged cross-reference chain instead of
	// rebuilding it from a full scan.
	DisableRepair bool
	// SkipUnreadable drops objects that fail to load, with a warning,
	// instead of failing the parse. References to them read as null.
	SkipUnreadable bool
	Logger         observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg}
}

// Parse loads every live object of data. The first object that fails to
// load fails the parse with ErrUnreadable unless SkipUnreadable is set.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	if p.cfg.Limits.MaxParseTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Limits.MaxParseTime)
		defer cancel()
	}
	version, ok := detectHeaderVersion(data)
	if !ok {
		return nil, ErrNotPDF
	}

	pipeline := filters.DefaultPipeline(p.cfg.Limits.FilterLimits())
	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth:  p.cfg.Limits.MaxXRefDepth,
		Scanner:       p.cfg.Limits.ScannerConfig(),
		Filters:       pipeline,
		DisableRepair: p.cfg.DisableRepair,
	})
	table, err := resolver.Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if table.Type() == raw.XRefRepaired {
		p.cfg.Logger.Warn("cross-reference table rebuilt from full scan")
	}
	if err := security.CheckTrailer(table.Trailer()); err != nil {
		return nil, err
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithData(data).
		WithXRef(table).
		WithLimits(p.cfg.Limits).
		WithFilters(pipeline).
		Build()
	if err != nil {
		return nil, err
	}

	doc := &raw.Document{
		Objects:   make(map[raw.ObjectRef]raw.Object),
		Trailer:   table.Trailer(),
		Version:   version,
		XRef:      table.Type(),
		StartXRef: table.StartXRef(),
	}
	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free head entry
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, _ := table.Lookup(objNum)
		ref := raw.ObjectRef{Num: objNum, Gen: entry.Gen}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !p.cfg.SkipUnreadable {
				return nil, fmt.Errorf("%w %d: %w", ErrUnreadable, objNum, err)
			}
			p.cfg.Logger.Warn("dropping unreadable object",
				observability.Int("object", objNum), observability.Error("error", err))
			continue
		}
		doc.Objects[ref] = obj
	}

	if table.Type() == raw.XRefRepaired {
		if err := p.recoverCompressed(ctx, loader, doc); err != nil {
			return nil, err
		}
	}
	if err := ensureCatalog(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// recoverCompressed adds objects held in object streams. A rebuilt table
// only knows top-level object offsets.
func (p *DocumentParser) recoverCompressed(ctx context.Context, loader *objectLoader, doc *raw.Document) error {
	for ref, obj := range doc.Objects {
		stm, ok := obj.(*raw.StreamObj)
		if !ok {
			continue
		}
		if typ, _ := stm.Dict.Name("Type"); typ != "ObjStm" {
			continue
		}
		objs, err := loader.unpack(ctx, ref.Num)
		if err != nil {
			if !p.cfg.SkipUnreadable {
				return fmt.Errorf("%w: object stream %d: %w", ErrUnreadable, ref.Num, err)
			}
			p.cfg.Logger.Warn("skipping damaged object stream",
				observability.Int("object", ref.Num), observability.Error("error", err))
			continue
		}
		for num, o := range objs {
			r := raw.ObjectRef{Num: num}
			if _, exists := doc.Get(r); !exists {
				doc.Objects[r] = o
			}
		}
	}
	return nil
}

// ensureCatalog makes sure the trailer /Root resolves to a catalog, falling
// back to the first /Type /Catalog object in the file.
func ensureCatalog(doc *raw.Document) error {
	if rootObj, ok := doc.Trailer.Get("Root"); ok {
		if ref, ok := rootObj.(raw.RefObj); ok {
			if obj, ok := doc.Get(ref.R); ok {
				if _, ok := obj.(*raw.DictObj); ok {
					return nil
				}
			}
		}
	}
	best := -1
	for ref, obj := range doc.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if typ, _ := d.Name("Type"); typ == "Catalog" && (best < 0 || ref.Num < best) {
			best = ref.Num
		}
	}
	if best < 0 {
		return ErrNoCatalog
	}
	for ref := range doc.Objects {
		if ref.Num == best {
			doc.Trailer.Set("Root", raw.RefObj{R: ref})
			break
		}
	}
	return nil
}

var headerPattern = regexp.MustCompile(`%PDF-(\d\.\d)`)

// detectHeaderVersion finds the "%PDF-x.y" marker within the first KiB.
func detectHeaderVersion(data []byte) (string, bool) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return "", false
	}
	m := headerPattern.FindSubmatch(head)
	if m == nil {
		return "1.4", true
	}
	return string(m[1]), true
}
