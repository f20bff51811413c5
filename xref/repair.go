package xref

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/scanner"
)

// ErrRepairFailed is returned when a full scan finds no objects.
var ErrRepairFailed = errors.New("xref: repair found no objects")

// Repair scans the entire file to reconstruct the xref table. It records the
// last "<num> <gen> obj" header seen for each object number and the last
// trailer dictionary (or XRef stream dictionary) found.
func Repair(ctx context.Context, data []byte, cfg scanner.Config) (Table, error) {
	s := scanner.New(data, cfg)
	tr := raw.NewTokenReader(s)
	entries := make(map[int]Entry)
	var lastTrailer *raw.DictObj

	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip invalid tokens during repair scan.
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt && tok.Int >= 0:
			genTok, err := tr.Next()
			if err != nil {
				continue
			}
			if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
				tr.Unread(genTok)
				continue
			}
			kwTok, err := tr.Next()
			if err != nil {
				continue
			}
			if kwTok.Type == scanner.TokenKeyword && kwTok.Str == "obj" {
				entries[int(tok.Int)] = Entry{Kind: EntryInUse, Offset: tok.Pos, Gen: int(genTok.Int)}
				if d := peekXRefDict(tr); d != nil {
					lastTrailer = d
				}
				continue
			}
			// genTok may itself start "<num> <gen> obj".
			tr.Unread(kwTok)
			tr.Unread(genTok)
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, err := raw.ParseObject(tr)
			if err != nil {
				continue
			}
			if d, ok := obj.(*raw.DictObj); ok {
				lastTrailer = d
			}
		}
	}

	if len(entries) == 0 {
		return nil, ErrRepairFailed
	}
	trailer := raw.Dict()
	if lastTrailer != nil {
		for _, k := range lastTrailer.Keys() {
			if sectionOnlyKeys[k] {
				continue
			}
			v, _ := lastTrailer.Get(k)
			trailer.Set(k, v)
		}
	}
	max := 0
	for num := range entries {
		if num > max {
			max = num
		}
	}
	trailer.Set("Size", raw.NumberInt(int64(max+1)))
	return &table{kind: raw.XRefRepaired, entries: entries, trailer: trailer}, nil
}

// peekXRefDict parses the object body following an "obj" header and returns
// its dictionary when it is a cross-reference stream. The tokens are
// consumed either way; the scan simply continues after them.
func peekXRefDict(tr *raw.TokenReader) *raw.DictObj {
	tok, err := tr.Next()
	if err != nil {
		return nil
	}
	if tok.Type != scanner.TokenDict {
		tr.Unread(tok)
		return nil
	}
	tr.Unread(tok)
	obj, err := raw.ParseObject(tr)
	if err != nil {
		return nil
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return nil
	}
	if typ, _ := d.Name("Type"); typ != "XRef" {
		return nil
	}
	if _, ok := d.Get("Root"); !ok {
		return nil
	}
	return d
}

// String is used in error messages and logs.
func (k EntryKind) String() string {
	switch k {
	case EntryFree:
		return "free"
	case EntryInUse:
		return "in-use"
	case EntryCompressed:
		return "compressed"
	}
	return fmt.Sprintf("EntryKind(%d)", int(k))
}
