package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdfcompose/filters"
	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/ir/semantic"
)

type impl struct{}

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if stm, ok := obj.(*raw.StreamObj); ok {
		dict := stm.Dict.Clone()
		dict.Set("Length", raw.NumberInt(int64(len(stm.Data))))
		buf.Write(serializePrimitive(dict))
		buf.WriteString("\nstream\n")
		buf.Write(stm.Data)
		buf.WriteString("\nendstream")
	} else {
		buf.Write(serializePrimitive(obj))
	}
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config) error {
	rd := doc.Raw()
	root, ok := rd.Trailer.Get("Root")
	if !ok {
		return ErrNoRoot
	}
	if cfg.Incremental && len(cfg.Base) > 0 && rd.XRef != raw.XRefRepaired && rd.StartXRef > 0 {
		return w.writeIncremental(ctx, doc, out, cfg, root)
	}
	return w.writeFull(ctx, doc, out, cfg, root)
}

func (w *impl) writeFull(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config, root raw.Object) error {
	rd := doc.Raw()
	var buf bytes.Buffer
	buf.WriteString("%PDF-" + pdfVersion(rd.Version, cfg) + "\n%\xE2\xE3\xCF\xD3\n")

	ordered := make([]raw.ObjectRef, 0, len(rd.Objects))
	for ref, obj := range rd.Objects {
		if skipOnRewrite(obj) {
			continue
		}
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	offsets := make(map[int]int64, len(ordered))
	gens := make(map[int]int, len(ordered))
	maxNum := 0
	for _, ref := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, dup := offsets[ref.Num]; dup {
			continue
		}
		obj, err := prepareObject(doc, ref, rd.Objects[ref], cfg)
		if err != nil {
			return err
		}
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		buf.Write(serialized)
		maxNum = max(maxNum, ref.Num)
	}

	xrefOffset := buf.Len()
	size := maxNum + 1
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i < size; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[i])
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}

	ids := fileID(rd.Trailer, buf.Bytes(), cfg)
	trailer := buildTrailer(size, root, rd.Trailer, 0, ids)
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

func (w *impl) writeIncremental(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config, root raw.Object) error {
	rd := doc.Raw()
	var buf bytes.Buffer
	buf.Write(cfg.Base)
	if n := len(cfg.Base); n > 0 && cfg.Base[n-1] != '\n' && cfg.Base[n-1] != '\r' {
		buf.WriteByte('\n')
	}
	sectionStart := buf.Len()

	offsets := make(map[int]int64)
	gens := make(map[int]int)
	for _, ref := range doc.Changed() {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := prepareObject(doc, ref, rd.Objects[ref], cfg)
		if err != nil {
			return err
		}
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		buf.Write(serialized)
	}

	size := doc.Size()
	ids := fileID(rd.Trailer, buf.Bytes()[sectionStart:], cfg)
	xrefOffset := int64(buf.Len())

	if rd.XRef == raw.XRefStream {
		// The xref stream takes the next free number and lists itself.
		streamNum := size
		size++
		offsets[streamNum] = xrefOffset
		trailer := buildTrailer(size, root, rd.Trailer, rd.StartXRef, ids)
		stm, err := xrefStream(trailer, offsets, gens, cfg)
		if err != nil {
			return err
		}
		serialized, err := w.SerializeObject(raw.ObjectRef{Num: streamNum}, stm)
		if err != nil {
			return err
		}
		buf.Write(serialized)
	} else {
		buf.WriteString("xref\n")
		writeSubsections(&buf, offsets, gens)
		trailer := buildTrailer(size, root, rd.Trailer, rd.StartXRef, ids)
		buf.WriteString("trailer\n")
		buf.Write(serializePrimitive(trailer))
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// prepareObject compresses new unfiltered streams when compression is on.
func prepareObject(doc *semantic.Document, ref raw.ObjectRef, obj raw.Object, cfg Config) (raw.Object, error) {
	stm, ok := obj.(*raw.StreamObj)
	if !ok || cfg.Compression <= 0 || !doc.IsNew(ref.Num) {
		return obj, nil
	}
	if _, filtered := stm.Dict.Get("Filter"); filtered {
		return obj, nil
	}
	data, err := filters.FlateEncode(stm.Data, cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("compress object %d: %w", ref.Num, err)
	}
	dict := stm.Dict.Clone()
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, data), nil
}

// skipOnRewrite drops objects a rewritten file must not carry over: the old
// cross-reference and object streams, linearization hints, and reserved
// numbers that were never filled.
func skipOnRewrite(obj raw.Object) bool {
	switch o := obj.(type) {
	case raw.NullObj:
		return true
	case *raw.StreamObj:
		typ, _ := o.Dict.Name("Type")
		return typ == "XRef" || typ == "ObjStm"
	case *raw.DictObj:
		_, lin := o.Get("Linearized")
		return lin
	}
	return false
}

// writeSubsections emits the update table: the free head plus one
// subsection per run of consecutive object numbers.
func writeSubsections(buf *bytes.Buffer, offsets map[int]int64, gens map[int]int) {
	buf.WriteString("0 1\n0000000000 65535 f \n")
	nums := make([]int, 0, len(offsets))
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[nums[k]], gens[nums[k]])
		}
		i = j + 1
	}
}

func xrefStream(trailer *raw.DictObj, offsets map[int]int64, gens map[int]int, cfg Config) (*raw.StreamObj, error) {
	index, entries := xrefStreamIndexAndEntries(offsets, gens)
	dict := trailer.Clone()
	dict.Set("Type", raw.NameLiteral("XRef"))
	dict.Set("W", raw.NewArray(raw.NumberInt(1), raw.NumberInt(4), raw.NumberInt(2)))
	dict.Set("Index", index)
	if cfg.Compression > 0 {
		data, err := filters.FlateEncode(entries, cfg.Compression)
		if err != nil {
			return nil, fmt.Errorf("compress xref stream: %w", err)
		}
		dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		entries = data
	}
	return raw.NewStream(dict, entries), nil
}
