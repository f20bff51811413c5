package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfcompose/internal/pdftest"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/parser"
)

func load(t *testing.T, data []byte) *Document {
	t.Helper()
	rd, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc, err := Build(rd, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return doc
}

// memDoc assembles a raw document from numbered objects; object 1 is the
// catalog.
func memDoc(objs map[int]raw.Object) *raw.Document {
	d := &raw.Document{Objects: map[raw.ObjectRef]raw.Object{}, Trailer: raw.Dict()}
	for n, o := range objs {
		d.Objects[raw.ObjectRef{Num: n}] = o
	}
	d.Trailer.Set("Root", raw.Ref(1, 0))
	return d
}

func dict(kv ...any) *raw.DictObj {
	d := raw.Dict()
	for i := 0; i < len(kv); i += 2 {
		d.Set(kv[i].(string), kv[i+1].(raw.Object))
	}
	return d
}

func TestPageOrderAndRange(t *testing.T) {
	for _, opts := range []pdftest.Options{
		{Pages: 5},
		{Pages: 5, Nested: true},
		{Pages: 5, XRefStream: true},
	} {
		doc := load(t, pdftest.Build(opts))
		if doc.PageCount() != 5 {
			t.Fatalf("%+v: %d pages", opts, doc.PageCount())
		}
		for i, p := range doc.Pages {
			if p.Index != i || p.Ref().Num != 4+2*i {
				t.Fatalf("%+v: page %d is object %d (index %d)", opts, i+1, p.Ref().Num, p.Index)
			}
		}
		for _, n := range []int{0, 6, -1} {
			if _, err := doc.Page(n); !errors.Is(err, ErrPageRange) {
				t.Fatalf("page %d: expected ErrPageRange, got %v", n, err)
			}
		}
	}
}

func TestInheritedAttributes(t *testing.T) {
	doc, err := Build(memDoc(map[int]raw.Object{
		1: dict("Type", raw.NameLiteral("Catalog"), "Pages", raw.Ref(2, 0)),
		2: dict("Type", raw.NameLiteral("Pages"), "Kids", raw.NewArray(raw.Ref(3, 0), raw.Ref(4, 0)),
			"MediaBox", raw.Numbers(0, 0, 300, 400), "Rotate", raw.NumberInt(-90)),
		3: dict("Type", raw.NameLiteral("Page"), "Parent", raw.Ref(2, 0), "CropBox", raw.Numbers(250, 350, 50, 50)),
		4: dict("Type", raw.NameLiteral("Page"), "Parent", raw.Ref(2, 0), "MediaBox", raw.Numbers(0, 0, 100, 100), "Rotate", raw.NumberInt(180)),
	}), 0)
	if err != nil {
		t.Fatal(err)
	}
	first, second := doc.Pages[0], doc.Pages[1]
	if diff := cmp.Diff(Rectangle{0, 0, 300, 400}, first.MediaBox); diff != "" {
		t.Fatalf("inherited media box (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Rectangle{50, 50, 250, 350}, first.CropBox); diff != "" {
		t.Fatalf("crop box should be normalized (-want +got):\n%s", diff)
	}
	if first.Rotate != 270 || second.Rotate != 180 {
		t.Fatalf("rotation %d, %d", first.Rotate, second.Rotate)
	}
	if second.CropBox != second.MediaBox {
		t.Fatalf("crop box defaults to the media box")
	}
	if x, y := first.CropBox.Center(); x != 150 || y != 200 {
		t.Fatalf("center %v,%v", x, y)
	}
}

func TestPageTreeCycles(t *testing.T) {
	doc, err := Build(memDoc(map[int]raw.Object{
		1: dict("Type", raw.NameLiteral("Catalog"), "Pages", raw.Ref(2, 0)),
		2: dict("Type", raw.NameLiteral("Pages"), "Kids", raw.NewArray(raw.Ref(3, 0), raw.Ref(2, 0), raw.Ref(3, 0))),
		3: dict("Type", raw.NameLiteral("Page")),
	}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("repeated nodes must be visited once, got %d pages", doc.PageCount())
	}

	if _, err := Build(memDoc(map[int]raw.Object{1: dict("Type", raw.NameLiteral("Catalog"))}), 0); !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
}

func TestResourceNameCopiesInheritedResources(t *testing.T) {
	doc := load(t, pdftest.Build(pdftest.Options{Pages: 2, InheritResources: true}))
	root := doc.Resolve(raw.Ref(2, 0)).(*raw.DictObj)
	shared, _ := root.Get("Resources")
	sharedFonts, _ := shared.(*raw.DictObj).Get("Font")

	p1 := doc.Pages[0]
	font := doc.Add(raw.Dict())
	name := doc.ResourceName(p1, "Font", "F", font)
	if name != "F2" {
		t.Fatalf("F1 is taken, got %q", name)
	}
	if again := doc.ResourceName(p1, "Font", "F", font); again != name {
		t.Fatalf("same reference should reuse %q, got %q", name, again)
	}
	if gs := doc.ResourceName(p1, "ExtGState", "GS", doc.Add(raw.Dict())); gs != "GS1" {
		t.Fatalf("fresh category starts at 1, got %q", gs)
	}

	if sharedFonts.(*raw.DictObj).Len() != 1 {
		t.Fatalf("the shared font dictionary was modified")
	}
	if _, own := doc.Pages[1].Dict().Get("Resources"); own {
		t.Fatalf("untouched pages keep inheriting")
	}
	local, _ := p1.Dict().Get("Resources")
	if fonts, _ := local.(*raw.DictObj).Get("Font"); fonts.(*raw.DictObj).Len() != 2 {
		t.Fatalf("page fonts should hold F1 and F2")
	}
	changed := doc.Changed()
	if len(changed) == 0 || changed[0].Num != p1.Ref().Num {
		t.Fatalf("page object should be marked modified: %v", changed)
	}
	if doc.IsNew(p1.Ref().Num) || !doc.IsNew(font.R.Num) {
		t.Fatalf("new and modified objects are told apart")
	}
}

func TestAppendContentWrapsOnce(t *testing.T) {
	doc := load(t, pdftest.Minimal(1))
	p := doc.Pages[0]
	orig, _ := p.Dict().Get("Contents")

	doc.AppendContent(p, []byte("1 0 0 rg\n"))
	doc.AppendContent(p, []byte("0 0 1 rg\n"))

	contents, _ := p.Dict().Get("Contents")
	arr, ok := contents.(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		t.Fatalf("expected [q original first second], got %v", contents)
	}
	data := func(i int) string { return string(doc.Resolve(arr.Items[i]).(*raw.StreamObj).Data) }
	if data(0) != "q\n" || arr.Items[1] != orig {
		t.Fatalf("original content must be bracketed first")
	}
	if data(2) != "Q\n1 0 0 rg\n" || data(3) != "0 0 1 rg\n" {
		t.Fatalf("unexpected appended streams %q %q", data(2), data(3))
	}
}

func TestAppendContentOnEmptyPage(t *testing.T) {
	doc, err := Build(memDoc(map[int]raw.Object{
		1: dict("Type", raw.NameLiteral("Catalog"), "Pages", raw.Ref(2, 0)),
		2: dict("Type", raw.NameLiteral("Pages"), "Kids", raw.NewArray(raw.Ref(3, 0))),
		3: dict("Type", raw.NameLiteral("Page")),
	}), 0)
	if err != nil {
		t.Fatal(err)
	}
	doc.AppendContent(doc.Pages[0], []byte("0 g\n"))
	contents, _ := doc.Pages[0].Dict().Get("Contents")
	arr := contents.(*raw.ArrayObj)
	if arr.Len() != 1 || string(doc.Resolve(arr.Items[0]).(*raw.StreamObj).Data) != "0 g\n" {
		t.Fatalf("a page without content needs no q/Q bracket")
	}
	if doc.Size() != 5 {
		t.Fatalf("size %d after one new object", doc.Size())
	}
}
