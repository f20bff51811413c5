package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfcompose/filters"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/scanner"
)

var (
	ErrNoStartXRef = errors.New("xref: startxref not found")
	ErrBadXRef     = errors.New("xref: malformed cross-reference section")
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. Compressed entries live at Index inside the
// object stream numbered Stream.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table is the merged view of every cross-reference section in a file.
type Table interface {
	Lookup(objNum int) (Entry, bool)
	Objects() []int
	Type() raw.XRefKind
	Trailer() *raw.DictObj
	StartXRef() int64
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, data []byte) (Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Scanner      scanner.Config
	Filters      *filters.Pipeline
	// DisableRepair reports structural errors instead of rebuilding the
	// table from a full scan.
	DisableRepair bool
}

// NewResolver returns a resolver for classic tables, xref streams and
// hybrid files.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 50
	}
	if cfg.Filters == nil {
		cfg.Filters = filters.DefaultPipeline(filters.Limits{})
	}
	return &chainResolver{cfg: cfg}
}

type chainResolver struct {
	cfg ResolverConfig
}

func (c *chainResolver) Resolve(ctx context.Context, data []byte) (Table, error) {
	t, err := c.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if c.cfg.DisableRepair || ctx.Err() != nil {
		return nil, err
	}
	repaired, rerr := Repair(ctx, data, c.cfg.Scanner)
	if rerr != nil {
		return nil, fmt.Errorf("%v; repair: %w", err, rerr)
	}
	return repaired, nil
}

func (c *chainResolver) resolveChain(ctx context.Context, data []byte) (*table, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	// Some writers prepend junk before the header; offsets are then relative
	// to "%PDF-".
	shift := int64(bytes.Index(data, []byte("%PDF-")))
	if shift < 0 {
		shift = 0
	}

	t := &table{entries: make(map[int]Entry), startxref: start}
	seen := map[int64]bool{}
	offset := start
	var delta int64
	for depth := 0; ; depth++ {
		if depth >= c.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("%w: /Prev chain deeper than %d", ErrBadXRef, c.cfg.MaxXRefDepth)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[offset] {
			break
		}
		seen[offset] = true

		sec, err := c.readSection(ctx, data, offset, delta)
		if err != nil && depth == 0 && shift > 0 {
			if sec, err = c.readSection(ctx, data, offset, shift); err == nil {
				delta = shift
			}
		}
		if err != nil {
			return nil, err
		}
		if depth == 0 {
			t.kind = sec.kind
		}
		t.merge(sec)

		prev, ok := sec.trailer.Int("Prev")
		if !ok || prev < 0 {
			break
		}
		offset = prev
	}
	if t.trailer == nil {
		return nil, fmt.Errorf("%w: no trailer", ErrBadXRef)
	}
	if _, ok := t.trailer.Get("Root"); !ok {
		return nil, fmt.Errorf("%w: trailer has no /Root", ErrBadXRef)
	}
	return t, nil
}

// section is one xref table or stream plus its trailer dictionary.
type section struct {
	kind    raw.XRefKind
	entries map[int]Entry
	trailer *raw.DictObj
}

// readSection parses the section at offset+delta. In-use entry offsets are
// shifted by delta as well.
func (c *chainResolver) readSection(ctx context.Context, data []byte, offset, delta int64) (*section, error) {
	sec, err := c.readSectionAt(ctx, data, offset+delta, delta)
	if err != nil || delta == 0 {
		return sec, err
	}
	for num, e := range sec.entries {
		if e.Kind == EntryInUse {
			e.Offset += delta
			sec.entries[num] = e
		}
	}
	return sec, nil
}

func (c *chainResolver) readSectionAt(ctx context.Context, data []byte, offset, delta int64) (*section, error) {
	if offset <= 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("%w: offset %d out of range", ErrBadXRef, offset)
	}
	s := scanner.New(data, c.cfg.Scanner)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		sec, err := readTable(s)
		if err != nil {
			return nil, err
		}
		// Hybrid file: the stream supplements the table.
		if stm, ok := sec.trailer.Int("XRefStm"); ok {
			if extra, err := c.readStream(ctx, data, stm+delta); err == nil {
				for num, e := range extra.entries {
					if cur, ok := sec.entries[num]; !ok || cur.Kind == EntryFree {
						sec.entries[num] = e
					}
				}
			}
		}
		return sec, nil
	}
	return c.readStream(ctx, data, offset)
}

func readTable(s scanner.Scanner) (*section, error) {
	sec := &section{kind: raw.XRefTable, entries: make(map[int]Entry)}
	tr := raw.NewTokenReader(s)
	for {
		tok, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := raw.ParseObject(tr)
			if err != nil {
				return nil, fmt.Errorf("%w: trailer: %v", ErrBadXRef, err)
			}
			d, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, fmt.Errorf("%w: trailer is %s", ErrBadXRef, obj.Type())
			}
			sec.trailer = d
			return sec, nil
		}
		countTok, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
		}
		if tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("%w: bad subsection header at %d", ErrBadXRef, tok.Pos)
		}
		first, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := tr.Next()
			genTok, err2 := tr.Next()
			kindTok, err3 := tr.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("%w: bad entry at %d", ErrBadXRef, offTok.Pos)
			}
			// Tables that start at 1 but list the free head first are off by one.
			if i == 0 && first == 1 && kindTok.Str == "f" && genTok.Int == 65535 {
				first = 0
			}
			num := first + i
			if _, dup := sec.entries[num]; dup {
				continue
			}
			switch kindTok.Str {
			case "n":
				sec.entries[num] = Entry{Kind: EntryInUse, Offset: offTok.Int, Gen: int(genTok.Int)}
			case "f":
				sec.entries[num] = Entry{Kind: EntryFree, Gen: int(genTok.Int)}
			default:
				return nil, fmt.Errorf("%w: entry type %q", ErrBadXRef, kindTok.Str)
			}
		}
	}
}

func (c *chainResolver) readStream(ctx context.Context, data []byte, offset int64) (*section, error) {
	if offset <= 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("%w: xref stream offset %d out of range", ErrBadXRef, offset)
	}
	s := scanner.New(data, c.cfg.Scanner)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	_, obj, err := raw.ParseIndirect(raw.NewTokenReader(s), raw.DirectLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("%w: object at %d is not an xref stream", ErrBadXRef, offset)
	}
	if typ, _ := stm.Dict.Name("Type"); typ != "XRef" {
		return nil, fmt.Errorf("%w: stream at %d has /Type %q", ErrBadXRef, offset, typ)
	}
	decoded, err := c.cfg.Filters.DecodeStream(ctx, stm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadXRef, err)
	}
	entries, err := decodeStreamEntries(stm.Dict, decoded)
	if err != nil {
		return nil, err
	}
	return &section{kind: raw.XRefStream, entries: entries, trailer: stm.Dict}, nil
}

func decodeStreamEntries(dict *raw.DictObj, data []byte) (map[int]Entry, error) {
	wObj, _ := dict.Get("W")
	wArr, ok := wObj.(*raw.ArrayObj)
	if !ok || wArr.Len() != 3 {
		return nil, fmt.Errorf("%w: xref stream /W", ErrBadXRef)
	}
	var w [3]int
	for i := range w {
		n, ok := wArr.Items[i].(raw.NumberObj)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return nil, fmt.Errorf("%w: xref stream /W", ErrBadXRef)
		}
		w[i] = int(n.Int())
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, fmt.Errorf("%w: empty xref stream row", ErrBadXRef)
	}

	size, _ := dict.Int("Size")
	index := []int64{0, size}
	if idxObj, ok := dict.Get("Index"); ok {
		if arr, ok := idxObj.(*raw.ArrayObj); ok && arr.Len()%2 == 0 {
			index = index[:0]
			for _, it := range arr.Items {
				n, _ := it.(raw.NumberObj)
				index = append(index, n.Int())
			}
		}
	}

	entries := make(map[int]Entry)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return entries, nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			num := first + j
			if _, dup := entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				entries[num] = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				entries[num] = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				entries[num] = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return entries, nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoStartXRef, err)
	}
	return off, nil
}

type table struct {
	kind      raw.XRefKind
	entries   map[int]Entry
	trailer   *raw.DictObj
	startxref int64
}

// merge folds an older section into the table. Newer entries win.
func (t *table) merge(sec *section) {
	for num, e := range sec.entries {
		if _, ok := t.entries[num]; !ok {
			t.entries[num] = e
		}
	}
	if t.trailer == nil {
		t.trailer = raw.Dict()
	}
	for _, k := range sec.trailer.Keys() {
		if sectionOnlyKeys[k] {
			continue
		}
		if _, ok := t.trailer.Get(k); !ok {
			v, _ := sec.trailer.Get(k)
			t.trailer.Set(k, v)
		}
	}
}

// sectionOnlyKeys describe a single section and are not carried into the
// merged trailer.
var sectionOnlyKeys = map[string]bool{
	"Prev": true, "XRefStm": true, "W": true, "Index": true, "Filter": true,
	"DecodeParms": true, "Length": true, "Type": true,
}

func (t *table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind == EntryFree {
		return Entry{}, false
	}
	return e, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Type() raw.XRefKind     { return t.kind }
func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) StartXRef() int64      { return t.startxref }
