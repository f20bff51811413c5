package semantic

import (
	"github.com/wudi/pdfcompose/ir/raw"
)

// AppendContent adds data as a new content stream painted after the page's
// existing content. The first call brackets the original streams with q/Q so
// new drawing starts from the default graphics state.
func (d *Document) AppendContent(p *Page, data []byte) {
	var items []raw.Object
	existing, hasContent := p.dict.Get("Contents")
	if hasContent {
		switch c := d.Resolve(existing).(type) {
		case *raw.ArrayObj:
			items = append(items, c.Items...)
		case *raw.StreamObj:
			if ref, ok := existing.(raw.RefObj); ok {
				items = append(items, ref)
			} else {
				items = append(items, d.Add(c))
			}
		}
	}

	if !p.wrapped && len(items) > 0 {
		open := d.Add(raw.NewStream(raw.Dict(), []byte("q\n")))
		items = append([]raw.Object{open}, items...)
		data = append([]byte("Q\n"), data...)
	}
	p.wrapped = true
	items = append(items, d.Add(raw.NewStream(raw.Dict(), data)))

	p.dict.Set("Contents", raw.NewArray(items...))
	d.markDirty(p)
}
