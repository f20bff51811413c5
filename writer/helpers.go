package writer

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfcompose/ir/raw"
)

func pdfVersion(source string, cfg Config) string {
	v := string(PDF14)
	if cfg.Version != "" && string(cfg.Version) > v {
		v = string(cfg.Version)
	}
	if source > v {
		v = source
	}
	return v
}

// fileID keeps the first identifier of the source trailer and derives a
// fresh second one.
func fileID(source *raw.DictObj, body []byte, cfg Config) [2][]byte {
	var fresh []byte
	if cfg.Deterministic {
		sum := sha256.Sum256(body)
		fresh = sum[:16]
	} else {
		fresh = make([]byte, 16)
		if _, err := rand.Read(fresh); err != nil {
			sum := sha256.Sum256(body)
			fresh = sum[:16]
		}
	}
	first := fresh
	if arr, ok := mustGet(source, "ID").(*raw.ArrayObj); ok && arr.Len() == 2 {
		if s, ok := arr.Items[0].(raw.StringObj); ok && len(s.Bytes) > 0 {
			first = s.Bytes
		}
	}
	return [2][]byte{first, fresh}
}

func buildTrailer(size int, root raw.Object, source *raw.DictObj, prev int64, ids [2][]byte) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(size)))
	trailer.Set("Root", root)
	if info, ok := source.Get("Info"); ok {
		if _, isRef := info.(raw.RefObj); isRef {
			trailer.Set("Info", info)
		}
	}
	trailer.Set("ID", raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	if prev > 0 {
		trailer.Set("Prev", raw.NumberInt(prev))
	}
	return trailer
}

func mustGet(d *raw.DictObj, key string) raw.Object {
	if o, ok := d.Get(key); ok {
		return o
	}
	return raw.NullObj{}
}

func xrefStreamIndexAndEntries(offsets map[int]int64, gens map[int]int) (*raw.ArrayObj, []byte) {
	keys := make([]int, 0, len(offsets)+1)
	keys = append(keys, 0)
	for k := range offsets {
		if k != 0 {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	indexArr := raw.NewArray()
	var entries []byte
	segStart, prev := -1, -1
	for _, k := range keys {
		if segStart == -1 {
			segStart = k
		} else if k != prev+1 {
			indexArr.Append(raw.NumberInt(int64(segStart)))
			indexArr.Append(raw.NumberInt(int64(prev - segStart + 1)))
			segStart = k
		}
		prev = k
		if k == 0 {
			entries = appendXRefStreamEntry(entries, 0, 0, 65535)
			continue
		}
		entries = appendXRefStreamEntry(entries, 1, offsets[k], gens[k])
	}
	indexArr.Append(raw.NumberInt(int64(segStart)))
	indexArr.Append(raw.NumberInt(int64(prev - segStart + 1)))
	return indexArr, entries
}

func appendXRefStreamEntry(buf []byte, typ int, field2 int64, gen int) []byte {
	buf = append(buf, byte(typ))
	offset := uint32(field2)
	buf = append(buf, byte(offset>>24), byte(offset>>16), byte(offset>>8), byte(offset))
	buf = append(buf, byte(gen>>8), byte(gen))
	return buf
}

func serializePrimitive(o raw.Object) []byte {
	switch v := o.(type) {
	case raw.NameObj:
		return []byte("/" + pdfNameLiteral(v.Val))
	case raw.NumberObj:
		if v.IsInt {
			return strconv.AppendInt(nil, v.I, 10)
		}
		return []byte(formatReal(v.F))
	case raw.BoolObj:
		if v.V {
			return []byte("true")
		}
		return []byte("false")
	case raw.NullObj:
		return []byte("null")
	case raw.StringObj:
		if v.Hex {
			return []byte("<" + strings.ToUpper(hex.EncodeToString(v.Bytes)) + ">")
		}
		return escapeLiteralString(v.Bytes)
	case *raw.ArrayObj:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case *raw.DictObj:
		var b bytes.Buffer
		b.WriteString("<<")
		for _, k := range v.Keys() {
			b.WriteString("/" + pdfNameLiteral(k) + " ")
			b.Write(serializePrimitive(v.KV[k]))
		}
		b.WriteString(">>")
		return b.Bytes()
	case raw.RefObj:
		return []byte(fmt.Sprintf("%d %d R", v.R.Num, v.R.Gen))
	default:
		// Streams are only valid as indirect objects.
		return []byte("null")
	}
}

// formatReal never uses exponent notation, which PDF does not allow.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

func escapeLiteralString(rawBytes []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// pdfNameLiteral escapes every byte outside the regular name set as #XX.
// Names arrive decoded from the scanner, so '#' itself is escaped too.
func pdfNameLiteral(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7F && strings.IndexByte("()<>[]{}/%#", ch) < 0 {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}
