// Package semantic is the mutable working view of a parsed PDF: the page
// list with inherited attributes, plus object allocation and bookkeeping of
// what changed.
package semantic

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfcompose/ir/raw"
)

var (
	ErrNoPages   = errors.New("semantic: document has no page tree")
	ErrPageRange = errors.New("semantic: page out of range")
)

type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Center returns the midpoint of the rectangle.
func (r Rectangle) Center() (x, y float64) { return (r.LLX + r.URX) / 2, (r.LLY + r.URY) / 2 }

type Page struct {
	Index    int // zero-based
	MediaBox Rectangle
	CropBox  Rectangle
	Rotate   int // degrees: 0/90/180/270

	ref       raw.ObjectRef
	dict      *raw.DictObj
	resources raw.Object // effective /Resources, possibly inherited or indirect
	local     *raw.DictObj
	cloned    map[string]bool
	wrapped   bool
}

func (p *Page) Ref() raw.ObjectRef { return p.ref }

// Dict is the page object itself.
func (p *Page) Dict() *raw.DictObj { return p.dict }

// Document wraps a raw document for in-place editing.
type Document struct {
	Pages []*Page

	raw     *raw.Document
	nextNum int
	added   map[int]bool
	dirty   map[int]bool
}

// Build walks the page tree of doc. maxDepth bounds the tree depth; zero
// means 100.
func Build(doc *raw.Document, maxDepth int) (*Document, error) {
	if maxDepth <= 0 {
		maxDepth = 100
	}
	d := &Document{
		raw:     doc,
		nextNum: doc.MaxObjectNum() + 1,
		added:   make(map[int]bool),
		dirty:   make(map[int]bool),
	}
	if size, ok := doc.Trailer.Int("Size"); ok && int(size) > d.nextNum {
		d.nextNum = int(size)
	}

	catalog, ok := d.Resolve(mustGet(doc.Trailer, "Root")).(*raw.DictObj)
	if !ok {
		return nil, ErrNoPages
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil, ErrNoPages
	}
	w := &pageWalker{doc: d, visited: make(map[int]bool), maxDepth: maxDepth}
	if err := w.walk(pagesObj, inheritedPageProps{}, 0); err != nil {
		return nil, err
	}
	d.Pages = w.pages
	return d, nil
}

func mustGet(d *raw.DictObj, key string) raw.Object {
	if o, ok := d.Get(key); ok {
		return o
	}
	return raw.NullObj{}
}

func (d *Document) Raw() *raw.Document { return d.raw }

func (d *Document) PageCount() int { return len(d.Pages) }

// Page returns the 1-based page n.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.Pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, n, len(d.Pages))
	}
	return d.Pages[n-1], nil
}

// Resolve follows indirect references. Dangling references resolve to null.
func (d *Document) Resolve(obj raw.Object) raw.Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj
		}
		target, ok := d.raw.Get(ref.R)
		if !ok {
			return raw.NullObj{}
		}
		obj = target
	}
	return raw.NullObj{}
}

// Reserve allocates a new object number; Set must fill it before writing.
func (d *Document) Reserve() raw.RefObj {
	ref := raw.ObjectRef{Num: d.nextNum}
	d.nextNum++
	d.added[ref.Num] = true
	d.raw.Objects[ref] = raw.NullObj{}
	return raw.RefObj{R: ref}
}

// Add stores obj as a new indirect object.
func (d *Document) Add(obj raw.Object) raw.RefObj {
	ref := d.Reserve()
	d.raw.Objects[ref.R] = obj
	return ref
}

// Set replaces the object at ref and marks it modified.
func (d *Document) Set(ref raw.ObjectRef, obj raw.Object) {
	d.raw.Objects[ref] = obj
	if !d.added[ref.Num] {
		d.dirty[ref.Num] = true
	}
}

// IsNew reports whether num was allocated by this document.
func (d *Document) IsNew(num int) bool { return d.added[num] }

// Changed returns new and modified object references in ascending order.
func (d *Document) Changed() []raw.ObjectRef {
	out := make([]raw.ObjectRef, 0, len(d.added)+len(d.dirty))
	for ref := range d.raw.Objects {
		if d.added[ref.Num] || d.dirty[ref.Num] {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Size is one past the highest object number in use.
func (d *Document) Size() int { return d.nextNum }

func (d *Document) markDirty(p *Page) { d.Set(p.ref, p.dict) }
