package xref_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wudi/pdfcompose/internal/pdftest"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)
	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString(fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset))
	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != raw.XRefTable {
		t.Fatalf("expected classic table, got %v", table.Type())
	}
	for obj, off := range offsets {
		e, ok := table.Lookup(obj)
		if !ok {
			t.Fatalf("missing object %d", obj)
		}
		if e.Offset != off || e.Gen != 0 || e.Kind != xref.EntryInUse {
			t.Fatalf("object %d: expected offset %d, got %+v", obj, off, e)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatalf("free head entry must not resolve")
	}
	if got := table.Objects(); len(got) != 2 {
		t.Fatalf("expected 2 live objects, got %v", got)
	}
}

func TestResolverParsesXRefStreamWithPredictor(t *testing.T) {
	pdf := pdftest.Build(pdftest.Options{Pages: 2, XRefStream: true})
	table, err := xref.NewResolver(xref.ResolverConfig{DisableRepair: true}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != raw.XRefStream {
		t.Fatalf("expected xref stream, got %v", table.Type())
	}
	// Catalog lives in the object stream; page contents are top level.
	cat, ok := table.Lookup(1)
	if !ok || cat.Kind != xref.EntryCompressed || cat.Index != 0 {
		t.Fatalf("catalog entry: %+v", cat)
	}
	content, ok := table.Lookup(5)
	if !ok || content.Kind != xref.EntryInUse {
		t.Fatalf("content entry: %+v", content)
	}
	if !bytes.HasPrefix(pdf[content.Offset:], []byte("5 0 obj")) {
		t.Fatalf("offset %d does not point at object 5", content.Offset)
	}
	if _, ok := table.Trailer().Get("Root"); !ok {
		t.Fatalf("trailer lost /Root")
	}
	if _, ok := table.Trailer().Get("W"); ok {
		t.Fatalf("stream-only key leaked into trailer")
	}
}

func TestResolverFollowsPrevChain(t *testing.T) {
	base := pdftest.Minimal(1)
	updated := pdftest.AppendUpdate(base, map[int]string{
		3: "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>",
	}, 1)

	table, err := xref.NewResolver(xref.ResolverConfig{DisableRepair: true}).Resolve(context.Background(), updated)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	e, ok := table.Lookup(3)
	if !ok || e.Offset < int64(len(base)) {
		t.Fatalf("object 3 should come from the update section: %+v", e)
	}
	if e, ok := table.Lookup(4); !ok || e.Offset >= int64(len(base)) {
		t.Fatalf("object 4 should come from the base section: %+v", e)
	}
	if table.StartXRef() <= int64(len(base)) {
		t.Fatalf("startxref should point into the update: %d", table.StartXRef())
	}
}

func TestResolverRepairsCorruptXRef(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	corrupt := bytes.Replace(pdf, []byte("xref\n0 3"), []byte("xref\nzz 3"), 1)

	if _, err := xref.NewResolver(xref.ResolverConfig{DisableRepair: true}).Resolve(context.Background(), corrupt); !errors.Is(err, xref.ErrBadXRef) {
		t.Fatalf("expected ErrBadXRef without repair, got %v", err)
	}

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), corrupt)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if table.Type() != raw.XRefRepaired {
		t.Fatalf("expected repaired table, got %v", table.Type())
	}
	for obj, off := range offsets {
		if e, ok := table.Lookup(obj); !ok || e.Offset != off {
			t.Fatalf("object %d: got %+v want offset %d", obj, e, off)
		}
	}
	if _, ok := table.Trailer().Get("Root"); !ok {
		t.Fatalf("repaired trailer lost /Root")
	}
}

func TestResolverHandlesGarbagePrefix(t *testing.T) {
	pdf, _ := buildSimplePDF()
	shifted := append([]byte("garbage!"), pdf...)
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), shifted)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := table.Lookup(1); !ok {
		t.Fatalf("missing catalog after garbage prefix")
	}
}

func TestRepairWithoutObjects(t *testing.T) {
	if _, err := xref.Repair(context.Background(), []byte("not a pdf"), xref.ResolverConfig{}.Scanner); !errors.Is(err, xref.ErrRepairFailed) {
		t.Fatalf("expected ErrRepairFailed, got %v", err)
	}
}
