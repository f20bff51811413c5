// Package pdftest synthesizes small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Options controls the generated document.
type Options struct {
	Pages int
	// XRefStream stores non-stream objects in an object stream and writes a
	// cross-reference stream instead of a classic table.
	XRefStream bool
	// InheritResources puts the shared resources and media box on the page
	// tree root instead of each page.
	InheritResources bool
	// Nested splits pages under intermediate /Pages nodes of two kids each.
	Nested bool
	// Content overrides the page content; nil draws "Page N".
	Content func(page int) string
	// Encrypt adds an /Encrypt entry to the trailer.
	Encrypt bool
}

// Minimal returns a classic-xref document with n pages.
func Minimal(pages int) []byte { return Build(Options{Pages: pages}) }

type object struct {
	body   string
	stream []byte
}

// Build renders a document according to opts.
func Build(opts Options) []byte {
	if opts.Pages < 0 {
		opts.Pages = 0
	}
	objs := map[int]object{}
	const catalog, pagesRoot, font = 1, 2, 3
	next := 4

	resources := fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", font)
	mediaBox := "[0 0 612 792]"

	pageNums := make([]int, opts.Pages)
	for i := range pageNums {
		pageNums[i] = next
		next += 2
	}

	// Page tree.
	parentOf := map[int]int{}
	var rootKids []int
	if opts.Nested && opts.Pages > 2 {
		for i := 0; i < len(pageNums); i += 2 {
			mid := next
			next++
			kids := pageNums[i:min(i+2, len(pageNums))]
			for _, k := range kids {
				parentOf[k] = mid
			}
			objs[mid] = object{body: fmt.Sprintf("<< /Type /Pages /Parent %d 0 R /Kids [%s] /Count %d >>", pagesRoot, refs(kids), len(kids))}
			rootKids = append(rootKids, mid)
		}
	} else {
		for _, k := range pageNums {
			parentOf[k] = pagesRoot
		}
		rootKids = pageNums
	}
	rootExtra := ""
	if opts.InheritResources {
		rootExtra = fmt.Sprintf(" /Resources %s /MediaBox %s", resources, mediaBox)
	}
	objs[catalog] = object{body: fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesRoot)}
	objs[pagesRoot] = object{body: fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d%s >>", refs(rootKids), opts.Pages, rootExtra)}
	objs[font] = object{body: "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"}

	for i, num := range pageNums {
		content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET", i+1)
		if opts.Content != nil {
			content = opts.Content(i + 1)
		}
		extra := ""
		if !opts.InheritResources {
			extra = fmt.Sprintf(" /Resources %s /MediaBox %s", resources, mediaBox)
		}
		objs[num] = object{body: fmt.Sprintf("<< /Type /Page /Parent %d 0 R /Contents %d 0 R%s >>", parentOf[num], num+1, extra)}
		objs[num+1] = object{stream: []byte(content)}
	}

	trailerExtra := ""
	if opts.Encrypt {
		objs[next] = object{body: "<< /Filter /Standard /V 1 /R 2 /O <00> /U <00> /P -4 >>"}
		trailerExtra = fmt.Sprintf(" /Encrypt %d 0 R", next)
		next++
	}

	if opts.XRefStream {
		return renderXRefStream(objs, next, catalog, trailerExtra)
	}
	return renderClassic(objs, next, catalog, trailerExtra)
}

func renderClassic(objs map[int]object, size, root int, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	offsets := map[int]int{}
	for _, num := range sortedKeys(objs) {
		offsets[num] = buf.Len()
		writeObject(&buf, num, objs[num])
	}
	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for n := 1; n < size; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", size, root, trailerExtra, xrefAt)
	return buf.Bytes()
}

func renderXRefStream(objs map[int]object, size, root int, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

	objStm := size
	xrefNum := size + 1
	size += 2

	type slot struct{ stream, index int }
	compressed := map[int]slot{}
	var header, body bytes.Buffer
	idx := 0
	for _, num := range sortedKeys(objs) {
		o := objs[num]
		if o.stream != nil {
			continue
		}
		fmt.Fprintf(&header, "%d %d ", num, body.Len())
		body.WriteString(o.body)
		body.WriteByte('\n')
		compressed[num] = slot{objStm, idx}
		idx++
	}
	first := header.Len()
	packed := deflate(append(header.Bytes(), body.Bytes()...))

	offsets := map[int]int{}
	for _, num := range sortedKeys(objs) {
		if objs[num].stream == nil {
			continue
		}
		offsets[num] = buf.Len()
		writeObject(&buf, num, objs[num])
	}
	offsets[objStm] = buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /ObjStm /N %d /First %d /Filter /FlateDecode /Length %d >>\nstream\n", objStm, idx, first, len(packed))
	buf.Write(packed)
	buf.WriteString("\nendstream\nendobj\n")

	offsets[xrefNum] = buf.Len()
	// Rows of W [1 4 2] with the PNG Up predictor.
	var rows []byte
	prev := make([]byte, 7)
	for n := 0; n < size; n++ {
		row := make([]byte, 7)
		switch {
		case n == 0:
			row[0] = 0
			row[5], row[6] = 0xFF, 0xFF
		case offsets[n] != 0:
			row[0] = 1
			putUint(row[1:5], offsets[n])
		default:
			if s, ok := compressed[n]; ok {
				row[0] = 2
				putUint(row[1:5], s.stream)
				putUint(row[5:7], s.index)
			}
		}
		rows = append(rows, 2)
		for i := range row {
			rows = append(rows, row[i]-prev[i])
		}
		prev = row
	}
	xdata := deflate(rows)
	fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] /Root %d 0 R%s /Filter /FlateDecode /DecodeParms << /Predictor 12 /Columns 7 >> /Length %d >>\nstream\n",
		xrefNum, size, root, trailerExtra, len(xdata))
	buf.Write(xdata)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", offsets[xrefNum])
	return buf.Bytes()
}

var startXRefPattern = regexp.MustCompile(`startxref\s+(\d+)\s+%%EOF\s*$`)

// AppendUpdate appends an incremental update section redefining objects in
// update. root names the catalog object for the new trailer.
func AppendUpdate(base []byte, update map[int]string, root int) []byte {
	m := startXRefPattern.FindSubmatch(base)
	if m == nil {
		panic("pdftest: base has no startxref")
	}
	prev, _ := strconv.Atoi(string(m[1]))
	size := 0
	for n := range update {
		if n+1 > size {
			size = n + 1
		}
	}
	if s := trailerSize(base); s > size {
		size = s
	}

	buf := bytes.NewBuffer(append([]byte(nil), base...))
	offsets := map[int]int{}
	nums := make([]int, 0, len(update))
	for n := range update {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", n, update[n])
	}
	xrefAt := buf.Len()
	buf.WriteString("xref\n")
	for _, n := range nums {
		fmt.Fprintf(buf, "%d 1\n%010d 00000 n \n", n, offsets[n])
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root %d 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", size, root, prev, xrefAt)
	return buf.Bytes()
}

// Corrupt overwrites the body of object num with stray ')' bytes, keeping
// every offset valid. It panics when the object is not found.
func Corrupt(data []byte, num int) []byte {
	out := append([]byte(nil), data...)
	header := []byte(fmt.Sprintf("\n%d 0 obj\n", num))
	start := bytes.Index(out, header)
	if start < 0 {
		panic("pdftest: object not found")
	}
	start += len(header)
	end := bytes.Index(out[start:], []byte("\nendobj"))
	if end < 0 {
		panic("pdftest: object has no endobj")
	}
	for i := start; i < start+end; i++ {
		out[i] = ')'
	}
	return out
}

var sizePattern = regexp.MustCompile(`/Size (\d+)`)

func trailerSize(data []byte) int {
	all := sizePattern.FindAllSubmatch(data, -1)
	if len(all) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(string(all[len(all)-1][1]))
	return n
}

func writeObject(buf *bytes.Buffer, num int, o object) {
	if o.stream != nil {
		fmt.Fprintf(buf, "%d 0 obj\n<< /Length %d >>\nstream\n", num, len(o.stream))
		buf.Write(o.stream)
		buf.WriteString("\nendstream\nendobj\n")
		return
	}
	fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", num, o.body)
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func putUint(dst []byte, v int) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func refs(nums []int) string {
	var b bytes.Buffer
	for i, n := range nums {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d 0 R", n)
	}
	return b.String()
}

func sortedKeys(objs map[int]object) []int {
	keys := make([]int, 0, len(objs))
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
