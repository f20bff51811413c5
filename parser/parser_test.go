package parser

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wudi/pdfcompose/internal/pdftest"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/security"
)

func parse(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func TestDocumentParserParsesClassicXRef(t *testing.T) {
	doc := parse(t, pdftest.Minimal(2))
	if doc.Version != "1.7" {
		t.Fatalf("expected version 1.7, got %q", doc.Version)
	}
	if doc.XRef != raw.XRefTable {
		t.Fatalf("expected classic table, got %v", doc.XRef)
	}
	// catalog, pages, font, 2 x (page + content)
	if len(doc.Objects) != 7 {
		t.Fatalf("expected 7 objects, got %d", len(doc.Objects))
	}
	content, ok := doc.Objects[raw.ObjectRef{Num: 5}].(*raw.StreamObj)
	if !ok {
		t.Fatalf("expected content stream for object 5, got %T", doc.Objects[raw.ObjectRef{Num: 5}])
	}
	if !bytes.Contains(content.Data, []byte("(Page 1)")) {
		t.Fatalf("unexpected content %q", content.Data)
	}
}

func TestDocumentParserUnpacksObjectStreams(t *testing.T) {
	doc := parse(t, pdftest.Build(pdftest.Options{Pages: 3, XRefStream: true}))
	if doc.XRef != raw.XRefStream {
		t.Fatalf("expected xref stream, got %v", doc.XRef)
	}
	cat, ok := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.DictObj)
	if !ok {
		t.Fatalf("catalog missing from object stream")
	}
	if typ, _ := cat.Name("Type"); typ != "Catalog" {
		t.Fatalf("unexpected catalog type %q", typ)
	}
	page, ok := doc.Objects[raw.ObjectRef{Num: 8}].(*raw.DictObj)
	if !ok {
		t.Fatalf("third page missing")
	}
	if typ, _ := page.Name("Type"); typ != "Page" {
		t.Fatalf("unexpected page type %q", typ)
	}
}

func TestDocumentParserFollowsPrevChain(t *testing.T) {
	base := pdftest.Minimal(1)
	data := pdftest.AppendUpdate(base, map[int]string{
		3: "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
	}, 1)
	doc := parse(t, data)
	font, ok := doc.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
	if !ok {
		t.Fatalf("font missing")
	}
	if name, _ := font.Name("BaseFont"); name != "Courier" {
		t.Fatalf("expected updated font, got %q", name)
	}
	if doc.StartXRef <= int64(len(base)) {
		t.Fatalf("startxref should point at the update section")
	}
}

func TestDocumentParserResolvesIndirectLength(t *testing.T) {
	src := "%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
		"3 0 obj\n<< /Length 4 0 R >>\nstream\nabc endstream inside\nendstream\nendobj\n" +
		"4 0 obj\n20\nendobj\n"
	// No xref at all: exercises repair plus indirect /Length.
	src += "trailer\n<< /Root 1 0 R /Size 5 >>\n"
	doc := parse(t, []byte(src))
	if doc.XRef != raw.XRefRepaired {
		t.Fatalf("expected repaired xref, got %v", doc.XRef)
	}
	stm, ok := doc.Objects[raw.ObjectRef{Num: 3}].(*raw.StreamObj)
	if !ok {
		t.Fatalf("stream missing: %T", doc.Objects[raw.ObjectRef{Num: 3}])
	}
	if got := string(stm.Data); got != "abc endstream inside" {
		t.Fatalf("unexpected stream data %q", got)
	}
}

func TestDocumentParserFindsCatalogWithoutTrailer(t *testing.T) {
	src := "%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
		"2 0 obj\n<< /Type /Catalog /Pages 1 0 R >>\nendobj\n"
	doc := parse(t, []byte(src))
	root, ok := doc.Trailer.Get("Root")
	if !ok || root.(raw.RefObj).R.Num != 2 {
		t.Fatalf("expected synthesized /Root 2 0 R, got %v", root)
	}
}

func TestDocumentParserRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "not a pdf", data: []byte("hello world"), want: ErrNotPDF},
		{name: "encrypted", data: pdftest.Build(pdftest.Options{Pages: 1, Encrypt: true}), want: security.ErrEncrypted},
		{name: "no catalog", data: []byte("%PDF-1.4\n1 0 obj\n<< /Foo 1 >>\nendobj\n"), want: ErrNoCatalog},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDocumentParser(Config{}).Parse(context.Background(), tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDocumentParserFailsOnUnreadableObject(t *testing.T) {
	data := pdftest.Corrupt(pdftest.Minimal(1), 3)
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), data)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
	if doc != nil {
		t.Fatalf("expected no document on failure")
	}
}

func TestDocumentParserSkipsUnreadableWhenAsked(t *testing.T) {
	data := pdftest.Corrupt(pdftest.Minimal(1), 3)
	doc, err := NewDocumentParser(Config{SkipUnreadable: true}).Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 3}]; ok {
		t.Fatalf("corrupt object should have been dropped")
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 4}]; !ok {
		t.Fatalf("page object lost")
	}
}

func TestDocumentParserEnforcesStreamLimit(t *testing.T) {
	data := pdftest.Build(pdftest.Options{Pages: 1, Content: func(int) string {
		return strings.Repeat("0 0 m 10 10 l S\n", 20)
	}})
	_, err := NewDocumentParser(Config{Limits: security.Limits{MaxStreamLength: 100}}).Parse(context.Background(), data)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
	if _, err := NewDocumentParser(Config{}).Parse(context.Background(), data); err != nil {
		t.Fatalf("zero limits must not bound the parse: %v", err)
	}
}
