// Package contentstream builds page content streams from typed operations.
package contentstream

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/wudi/pdfcompose/coords"
)

// Operand is a content-stream operand.
type Operand interface {
	appendTo(dst []byte) []byte
}

type Number float64
type Name string
type HexString []byte
type Array []Operand

func (n Number) appendTo(dst []byte) []byte { return append(dst, FormatNumber(float64(n))...) }
func (n Name) appendTo(dst []byte) []byte   { return append(append(dst, '/'), string(n)...) }

func (h HexString) appendTo(dst []byte) []byte {
	const digits = "0123456789ABCDEF"
	dst = append(dst, '<')
	for _, c := range h {
		dst = append(dst, digits[c>>4], digits[c&0xF])
	}
	return append(dst, '>')
}

func (a Array) appendTo(dst []byte) []byte {
	dst = append(dst, '[')
	for i, it := range a {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = it.appendTo(dst)
	}
	return append(dst, ']')
}

// Operation is one operator with its operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Serialize renders operations one per line.
func Serialize(ops []Operation) []byte {
	var buf []byte
	for _, op := range ops {
		for _, operand := range op.Operands {
			buf = operand.appendTo(buf)
			buf = append(buf, ' ')
		}
		buf = append(buf, op.Operator...)
		buf = append(buf, '\n')
	}
	return buf
}

// FormatNumber writes v with at most four decimals and never in exponent
// form, which PDF does not allow.
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// Builder accumulates operations.
type Builder struct {
	ops []Operation
}

func (b *Builder) op(operator string, operands ...Operand) *Builder {
	b.ops = append(b.ops, Operation{Operator: operator, Operands: operands})
	return b
}

func nums(vals ...float64) []Operand {
	out := make([]Operand, len(vals))
	for i, v := range vals {
		out[i] = Number(v)
	}
	return out
}

func (b *Builder) Save() *Builder    { return b.op("q") }
func (b *Builder) Restore() *Builder { return b.op("Q") }

func (b *Builder) Concat(m coords.Matrix) *Builder {
	return b.op("cm", nums(m[0], m[1], m[2], m[3], m[4], m[5])...)
}

func (b *Builder) SetExtGState(name string) *Builder { return b.op("gs", Name(name)) }

// FillRGB and StrokeRGB take components in [0,1].
func (b *Builder) FillRGB(r, g, bl float64) *Builder   { return b.op("rg", nums(r, g, bl)...) }
func (b *Builder) StrokeRGB(r, g, bl float64) *Builder { return b.op("RG", nums(r, g, bl)...) }
func (b *Builder) LineWidth(w float64) *Builder        { return b.op("w", Number(w)) }

func (b *Builder) Rectangle(x, y, w, h float64) *Builder { return b.op("re", nums(x, y, w, h)...) }
func (b *Builder) MoveTo(x, y float64) *Builder          { return b.op("m", nums(x, y)...) }
func (b *Builder) LineTo(x, y float64) *Builder          { return b.op("l", nums(x, y)...) }
func (b *Builder) Fill() *Builder                        { return b.op("f") }
func (b *Builder) Stroke() *Builder                      { return b.op("S") }
func (b *Builder) FillStroke() *Builder                  { return b.op("B") }

func (b *Builder) DrawXObject(name string) *Builder { return b.op("Do", Name(name)) }

func (b *Builder) BeginText() *Builder { return b.op("BT") }
func (b *Builder) EndText() *Builder   { return b.op("ET") }

func (b *Builder) SetFont(name string, size float64) *Builder {
	return b.op("Tf", Name(name), Number(size))
}

func (b *Builder) SetTextMatrix(m coords.Matrix) *Builder {
	return b.op("Tm", nums(m[0], m[1], m[2], m[3], m[4], m[5])...)
}

// ShowText emits a TJ array of hex-encoded glyph runs and kerning numbers.
func (b *Builder) ShowText(parts Array) *Builder { return b.op("TJ", parts) }

func (b *Builder) Operations() []Operation { return b.ops }
func (b *Builder) Len() int                { return len(b.ops) }
func (b *Builder) Bytes() []byte           { return Serialize(b.ops) }

// Append copies another builder's operations after b's.
func (b *Builder) Append(o *Builder) *Builder {
	b.ops = append(b.ops, o.ops...)
	return b
}

// Operators lists the operators in order; handy for assertions.
func Operators(data []byte) []string {
	var out []string
	for _, line := range bytes.Split(data, []byte("\n")) {
		fields := bytes.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, string(fields[len(fields)-1]))
	}
	return out
}
