package fonts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/wudi/pdfcompose/ir/raw"
	"github.com/wudi/pdfcompose/ir/semantic"
)

// Ref returns the reference the composite font will occupy in doc,
// reserving it on first call. Embed fills it in.
func (f *Face) Ref(doc *semantic.Document) raw.RefObj {
	if f.ref == nil {
		ref := doc.Reserve()
		f.ref = &ref
	}
	return *f.ref
}

// Embed writes the Type0 font, its CIDFontType2 descendant, the descriptor,
// the full program and a ToUnicode CMap. It does nothing when Ref was never
// called.
func (f *Face) Embed(doc *semantic.Document) {
	if f.ref == nil {
		return
	}
	program := raw.Dict()
	program.Set("Length1", raw.NumberInt(int64(len(f.data))))
	programRef := doc.Add(raw.NewStream(program, f.data))

	descriptor := raw.Dict()
	descriptor.Set("Type", raw.NameLiteral("FontDescriptor"))
	descriptor.Set("FontName", raw.NameLiteral(f.PostScriptName))
	descriptor.Set("Flags", raw.NumberInt(32))
	descriptor.Set("FontBBox", raw.Numbers(f.BBox[:]...))
	descriptor.Set("ItalicAngle", raw.NumberFloat(f.ItalicAngle))
	descriptor.Set("Ascent", raw.NumberFloat(f.Ascent))
	descriptor.Set("Descent", raw.NumberFloat(f.Descent))
	descriptor.Set("CapHeight", raw.NumberFloat(f.CapHeight))
	descriptor.Set("StemV", raw.NumberInt(80))
	descriptor.Set("FontFile2", programRef)
	descriptorRef := doc.Add(descriptor)

	sysInfo := raw.Dict()
	sysInfo.Set("Registry", raw.Str([]byte("Adobe")))
	sysInfo.Set("Ordering", raw.Str([]byte("Identity")))
	sysInfo.Set("Supplement", raw.NumberInt(0))

	widths := make(map[int]int, len(f.used))
	for gid := range f.used {
		widths[int(gid)] = f.GlyphWidth(gid)
	}
	cid := raw.Dict()
	cid.Set("Type", raw.NameLiteral("Font"))
	cid.Set("Subtype", raw.NameLiteral("CIDFontType2"))
	cid.Set("BaseFont", raw.NameLiteral(f.PostScriptName))
	cid.Set("CIDSystemInfo", sysInfo)
	cid.Set("FontDescriptor", descriptorRef)
	cid.Set("DW", raw.NumberInt(1000))
	cid.Set("W", encodeCIDWidths(widths))
	cid.Set("CIDToGIDMap", raw.NameLiteral("Identity"))
	cidRef := doc.Add(cid)

	type0 := raw.Dict()
	type0.Set("Type", raw.NameLiteral("Font"))
	type0.Set("Subtype", raw.NameLiteral("Type0"))
	type0.Set("BaseFont", raw.NameLiteral(f.PostScriptName))
	type0.Set("Encoding", raw.NameLiteral("Identity-H"))
	type0.Set("DescendantFonts", raw.NewArray(cidRef))
	if cmap := f.toUnicodeCMap(); cmap != nil {
		type0.Set("ToUnicode", doc.Add(raw.NewStream(raw.Dict(), cmap)))
	}
	doc.Set(f.ref.R, type0)
}

// encodeCIDWidths groups consecutive glyphs of equal width as "first last w".
func encodeCIDWidths(widths map[int]int) *raw.ArrayObj {
	arr := raw.NewArray()
	if len(widths) == 0 {
		return arr
	}
	codes := make([]int, 0, len(widths))
	for c := range widths {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	start, prev, current := codes[0], codes[0], widths[codes[0]]
	for _, code := range codes[1:] {
		w := widths[code]
		if w == current && code == prev+1 {
			prev = code
			continue
		}
		arr.Append(raw.NumberInt(int64(start)))
		arr.Append(raw.NumberInt(int64(prev)))
		arr.Append(raw.NumberInt(int64(current)))
		start, prev, current = code, code, w
	}
	arr.Append(raw.NumberInt(int64(start)))
	arr.Append(raw.NumberInt(int64(prev)))
	arr.Append(raw.NumberInt(int64(current)))
	return arr
}

func (f *Face) toUnicodeCMap() []byte {
	keys := make([]int, 0, len(f.used))
	for gid, runes := range f.used {
		if len(runes) > 0 {
			keys = append(keys, int(gid))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Ints(keys)

	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s-UTF16 def\n", f.PostScriptName)
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	for i := 0; i < len(keys); {
		chunk := min(len(keys)-i, 100)
		fmt.Fprintf(&buf, "%d beginbfchar\n", chunk)
		for _, gid := range keys[i : i+chunk] {
			fmt.Fprintf(&buf, "<%04X> <%s>\n", gid, utf16Hex(f.used[uint16(gid)]))
		}
		buf.WriteString("endbfchar\n")
		i += chunk
	}
	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b strings.Builder
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}
