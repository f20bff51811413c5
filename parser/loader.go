package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfcompose/filters"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/scanner"
	"github.com/wudi/pdfcompose/security"
	"github.com/wudi/pdfcompose/xref"
)

var (
	ErrObjectNotFound = errors.New("parser: object not found")
	ErrObjectMismatch = errors.New("parser: object header does not match xref entry")
)

// ObjectLoader loads individual indirect objects on demand.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

type ObjectLoaderBuilder struct {
	data      []byte
	xrefTable xref.Table
	limits    security.Limits
	filters   *filters.Pipeline
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}

func (b *ObjectLoaderBuilder) WithData(data []byte) *ObjectLoaderBuilder {
	b.data = data
	return b
}

func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}

func (b *ObjectLoaderBuilder) WithFilters(p *filters.Pipeline) *ObjectLoaderBuilder {
	b.filters = p
	return b
}

func (b *ObjectLoaderBuilder) Build() (*objectLoader, error) {
	if b.xrefTable == nil {
		return nil, errors.New("parser: loader needs an xref table")
	}
	p := b.filters
	if p == nil {
		p = filters.DefaultPipeline(b.limits.FilterLimits())
	}
	return &objectLoader{
		data:       b.data,
		table:      b.xrefTable,
		scanCfg:    b.limits.ScannerConfig(),
		filters:    p,
		cache:      make(map[int]raw.Object),
		objStreams: make(map[int]map[int]raw.Object),
		loading:    make(map[int]bool),
	}, nil
}

type objectLoader struct {
	data       []byte
	table      xref.Table
	scanCfg    scanner.Config
	filters    *filters.Pipeline
	cache      map[int]raw.Object
	objStreams map[int]map[int]raw.Object // stream number -> object number -> object
	loading    map[int]bool
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := o.cache[ref.Num]; ok {
		return obj, nil
	}
	if o.loading[ref.Num] {
		return nil, fmt.Errorf("parser: object %d references itself while loading", ref.Num)
	}
	o.loading[ref.Num] = true
	defer delete(o.loading, ref.Num)

	entry, ok := o.table.Lookup(ref.Num)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	var (
		obj raw.Object
		err error
	)
	switch entry.Kind {
	case xref.EntryInUse:
		obj, err = o.loadAtOffset(ctx, ref.Num, entry.Offset)
	case xref.EntryCompressed:
		obj, err = o.loadFromObjectStream(ctx, ref.Num, entry.Stream)
	default:
		err = fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	o.cache[ref.Num] = obj
	return obj, nil
}

func (o *objectLoader) loadAtOffset(ctx context.Context, objNum int, offset int64) (raw.Object, error) {
	s := scanner.New(o.data, o.scanCfg)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	got, obj, err := raw.ParseIndirect(raw.NewTokenReader(s), o.lengthFunc(ctx))
	if err != nil {
		return nil, err
	}
	if got.Num != objNum {
		return nil, fmt.Errorf("%w: want %d, found %s at %d", ErrObjectMismatch, objNum, got, offset)
	}
	return obj, nil
}

// lengthFunc resolves /Length, following one level of indirection.
func (o *objectLoader) lengthFunc(ctx context.Context) raw.LengthFunc {
	return func(length raw.Object) int64 {
		if ref, ok := length.(raw.RefObj); ok {
			target, err := o.Load(ctx, ref.R)
			if err != nil {
				return -1
			}
			length = target
		}
		return raw.DirectLength(length)
	}
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, objNum, streamNum int) (raw.Object, error) {
	objs, err := o.unpack(ctx, streamNum)
	if err != nil {
		return nil, err
	}
	obj, ok := objs[objNum]
	if !ok {
		return nil, fmt.Errorf("%w: object %d not in object stream %d", ErrObjectNotFound, objNum, streamNum)
	}
	return obj, nil
}

// unpack decodes an object stream once and parses every object it holds.
func (o *objectLoader) unpack(ctx context.Context, streamNum int) (map[int]raw.Object, error) {
	if objs, ok := o.objStreams[streamNum]; ok {
		return objs, nil
	}
	stmObj, err := o.Load(ctx, raw.ObjectRef{Num: streamNum})
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
	}
	objs, err := o.parseObjectStream(ctx, stmObj)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
	}
	o.objStreams[streamNum] = objs
	return objs, nil
}

func (o *objectLoader) parseObjectStream(ctx context.Context, obj raw.Object) (map[int]raw.Object, error) {
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("not a stream (%s)", obj.Type())
	}
	if typ, _ := stm.Dict.Name("Type"); typ != "ObjStm" {
		return nil, fmt.Errorf("stream has /Type %q", typ)
	}
	n, _ := stm.Dict.Int("N")
	first, _ := stm.Dict.Int("First")
	decoded, err := o.filters.DecodeStream(ctx, stm)
	if err != nil {
		return nil, err
	}
	if first < 0 || first > int64(len(decoded)) {
		return nil, fmt.Errorf("/First %d out of range", first)
	}

	header := raw.NewTokenReader(scanner.New(decoded[:first], o.scanCfg))
	type slot struct {
		num int
		off int64
	}
	slots := make([]slot, 0, n)
	for i := int64(0); i < n; i++ {
		numTok, err1 := header.Next()
		offTok, err2 := header.Next()
		if err1 != nil || err2 != nil || numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			break
		}
		slots = append(slots, slot{num: int(numTok.Int), off: offTok.Int})
	}

	out := make(map[int]raw.Object, len(slots))
	for _, sl := range slots {
		start := first + sl.off
		if start < 0 || start >= int64(len(decoded)) {
			continue
		}
		s := scanner.New(decoded, o.scanCfg)
		if err := s.Seek(start); err != nil {
			continue
		}
		obj, err := raw.ParseObject(raw.NewTokenReader(s))
		if err != nil {
			continue
		}
		if _, dup := out[sl.num]; !dup {
			out[sl.num] = obj
		}
	}
	return out, nil
}
