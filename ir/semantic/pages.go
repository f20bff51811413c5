package semantic

import (
	"fmt"

	"github.com/wudi/pdfcompose/ir/raw"
)

type inheritedPageProps struct {
	MediaBox  *Rectangle
	CropBox   *Rectangle
	Rotate    *int
	Resources raw.Object
}

type pageWalker struct {
	doc      *Document
	visited  map[int]bool
	maxDepth int
	pages    []*Page
}

// walk traverses the page tree and appends leaf pages in document order.
func (w *pageWalker) walk(obj raw.Object, inherited inheritedPageProps, depth int) error {
	if depth > w.maxDepth {
		return fmt.Errorf("semantic: page tree deeper than %d", w.maxDepth)
	}
	var ref raw.ObjectRef
	if r, ok := obj.(raw.RefObj); ok {
		if w.visited[r.R.Num] {
			// A node reachable twice is a cycle or a shared kid; skip it.
			return nil
		}
		w.visited[r.R.Num] = true
		ref = r.R
	}
	dict, ok := w.doc.Resolve(obj).(*raw.DictObj)
	if !ok {
		if depth == 0 {
			return ErrNoPages
		}
		return nil
	}

	next := inherited
	if mb := parseRectangle(w.doc.Resolve(mustGet(dict, "MediaBox"))); mb != nil {
		next.MediaBox = mb
	}
	if cb := parseRectangle(w.doc.Resolve(mustGet(dict, "CropBox"))); cb != nil {
		next.CropBox = cb
	}
	if rot, ok := w.doc.Resolve(mustGet(dict, "Rotate")).(raw.NumberObj); ok {
		v := int(rot.Int())
		next.Rotate = &v
	}
	if res, ok := dict.Get("Resources"); ok {
		next.Resources = res
	}

	typ, _ := dict.Name("Type")
	kidsObj, hasKids := dict.Get("Kids")
	if typ == "Pages" || (typ == "" && hasKids) {
		kids, ok := w.doc.Resolve(kidsObj).(*raw.ArrayObj)
		if !ok {
			return nil
		}
		for _, kid := range kids.Items {
			if err := w.walk(kid, next, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if ref.Num == 0 {
		// Pages must be indirect objects to be editable.
		return nil
	}

	page := &Page{
		Index:     len(w.pages),
		MediaBox:  Rectangle{0, 0, 612, 792},
		ref:       ref,
		dict:      dict,
		resources: next.Resources,
	}
	if next.MediaBox != nil {
		page.MediaBox = *next.MediaBox
	}
	page.CropBox = page.MediaBox
	if next.CropBox != nil {
		page.CropBox = *next.CropBox
	}
	if next.Rotate != nil {
		page.Rotate = ((*next.Rotate%360)+360)%360
	}
	w.pages = append(w.pages, page)
	return nil
}

func parseRectangle(obj raw.Object) *Rectangle {
	arr, ok := obj.(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		return nil
	}
	var v [4]float64
	for i, it := range arr.Items {
		n, ok := it.(raw.NumberObj)
		if !ok {
			return nil
		}
		v[i] = n.Float()
	}
	r := Rectangle{LLX: min(v[0], v[2]), LLY: min(v[1], v[3]), URX: max(v[0], v[2]), URY: max(v[1], v[3])}
	return &r
}
