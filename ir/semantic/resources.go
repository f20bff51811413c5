package semantic

import (
	"strconv"

	"github.com/wudi/pdfcompose/ir/raw"
)

// ResourceName registers value in the page's /Resources category (Font,
// XObject, ExtGState, ...) and returns its name. The first call on a page
// gives it a private copy of its effective resources, so shared or
// inherited dictionaries are never modified. Registering the same reference
// twice returns the existing name.
func (d *Document) ResourceName(p *Page, category, prefix string, value raw.Object) string {
	res := d.localResources(p)
	sub := d.localCategory(p, res, category)

	if ref, ok := value.(raw.RefObj); ok {
		for _, k := range sub.Keys() {
			if existing, _ := sub.Get(k); existing == ref {
				return k
			}
		}
	}
	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if _, taken := sub.Get(name); !taken {
			sub.Set(name, value)
			return name
		}
	}
}

func (d *Document) localResources(p *Page) *raw.DictObj {
	if p.local != nil {
		return p.local
	}
	var res *raw.DictObj
	if src, ok := d.Resolve(p.resources).(*raw.DictObj); ok {
		res = src.Clone()
	} else {
		res = raw.Dict()
	}
	p.local = res
	p.cloned = make(map[string]bool)
	p.dict.Set("Resources", res)
	d.markDirty(p)
	return res
}

func (d *Document) localCategory(p *Page, res *raw.DictObj, category string) *raw.DictObj {
	if p.cloned[category] {
		sub, _ := res.Get(category)
		return sub.(*raw.DictObj)
	}
	var sub *raw.DictObj
	if src, ok := d.Resolve(mustGet(res, category)).(*raw.DictObj); ok {
		sub = src.Clone()
	} else {
		sub = raw.Dict()
	}
	res.Set(category, sub)
	p.cloned[category] = true
	return sub
}
