package raw

import (
	"context"
	"fmt"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// XRefKind records how the source file stored its newest cross-reference
// section.
type XRefKind int

const (
	XRefTable XRefKind = iota
	XRefStream
	XRefRepaired
)

func (k XRefKind) String() string {
	switch k {
	case XRefTable:
		return "table"
	case XRefStream:
		return "stream"
	case XRefRepaired:
		return "repaired"
	}
	return fmt.Sprintf("XRefKind(%d)", int(k))
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *DictObj
	Version   string // e.g., "1.7"
	XRef      XRefKind
	StartXRef int64 // offset of the newest xref section; 0 when repaired
	Encrypted bool
}

// Get returns the object stored under ref, ignoring the generation when the
// exact generation is not present.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	if obj, ok := d.Objects[ref]; ok {
		return obj, true
	}
	for r, obj := range d.Objects {
		if r.Num == ref.Num {
			return obj, true
		}
	}
	return nil, false
}

// MaxObjectNum returns the highest object number in use.
func (d *Document) MaxObjectNum() int {
	max := 0
	for r := range d.Objects {
		if r.Num > max {
			max = r.Num
		}
	}
	return max
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*Document, error)
}
