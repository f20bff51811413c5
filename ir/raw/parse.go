package raw

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfcompose/scanner"
)

// ErrNotIndirect is returned when the bytes at an offset do not start with
// an "num gen obj" header.
var ErrNotIndirect = errors.New("raw: missing indirect object header")

// TokenReader wraps a scanner with a pushback buffer.
type TokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func NewTokenReader(s scanner.Scanner) *TokenReader { return &TokenReader{s: s} }

func (r *TokenReader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *TokenReader) Unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

// Scanner exposes the underlying scanner; pending pushback is discarded.
func (r *TokenReader) Scanner() scanner.Scanner {
	r.buf = r.buf[:0]
	return r.s
}

// LengthFunc resolves a stream dictionary's /Length entry, which may be an
// indirect reference. It returns -1 when the length is unknown.
type LengthFunc func(length Object) int64

// DirectLength resolves only direct integer lengths.
func DirectLength(length Object) int64 {
	if n, ok := length.(NumberObj); ok && n.Int() >= 0 {
		return n.Int()
	}
	return -1
}

// ParseIndirect reads "num gen obj <object> [stream] endobj" at the current
// scanner position.
func ParseIndirect(tr *TokenReader, length LengthFunc) (ObjectRef, Object, error) {
	numTok, err := tr.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	genTok, err := tr.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	kwTok, err := tr.Next()
	if err != nil {
		return ObjectRef{}, nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt ||
		genTok.Type != scanner.TokenNumber || !genTok.IsInt ||
		kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
		return ObjectRef{}, nil, fmt.Errorf("%w at offset %d", ErrNotIndirect, numTok.Pos)
	}
	ref := ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}

	obj, err := ParseObject(tr)
	if err != nil {
		return ref, nil, fmt.Errorf("parse object %d %d: %w", ref.Num, ref.Gen, err)
	}
	if dict, ok := obj.(*DictObj); ok {
		if l, ok := dict.Get("Length"); ok && length != nil {
			tr.s.SetNextStreamLength(length(l))
		}
		tok, err := tr.Next()
		if err == nil && tok.Type == scanner.TokenStream {
			obj = NewStream(dict, tok.Bytes)
		} else if err == nil {
			tr.Unread(tok)
		}
		tr.s.SetNextStreamLength(-1)
	}
	if tok, err := tr.Next(); err == nil {
		if tok.Type != scanner.TokenKeyword || tok.Str != "endobj" {
			tr.Unread(tok)
		}
	}
	return ref, obj, nil
}

// ParseObject reads one direct object.
func ParseObject(tr *TokenReader) (Object, error) {
	tok, err := tr.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, scanner.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return NumberObj{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: tok.Num, Gen: tok.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected %s token %q at offset %d", tok.Type, tok.Str, tok.Pos)
}

func parseArray(tr *TokenReader) (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := tr.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		tr.Unread(tok)
		item, err := ParseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *TokenReader) (Object, error) {
	d := Dict()
	for {
		tok, err := tr.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name key in dict at offset %d, got %s", tok.Pos, tok.Type)
		}
		val, err := ParseObject(tr)
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key.
		if _, isNull := val.(NullObj); isNull {
			continue
		}
		d.Set(tok.Str, val)
	}
}
