package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // 'stream' keyword plus payload
	TokenKeyword                  // other keywords (obj, endobj, >>, ], xref, trailer, ...)
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "dict"
	case TokenArray:
		return "array"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	case TokenStream:
		return "stream"
	case TokenKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// Token is one lexical unit. Only the fields relevant to Type are set.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string // names and keywords
	Bytes []byte // string and stream payloads
	Hex   bool   // string was written as <...>
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Num   int // reference object number
	Gen   int // reference generation
}

// Number returns the numeric value regardless of integer or real form.
func (t Token) Number() float64 {
	if t.IsInt {
		return float64(t.Int)
	}
	return t.Float
}

var (
	ErrUnexpectedEOF  = errors.New("scanner: unexpected end of data")
	ErrLimitExceeded  = errors.New("scanner: limit exceeded")
	ErrMalformedToken = errors.New("scanner: malformed token")
)

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxArrayDepth   int
	MaxDictDepth    int
	MaxStreamLength int64
}

type pdfScanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	arrayDepth    int
	dictDepth     int
}

// New returns a scanner over data. The slice is not copied; payloads in
// returned tokens are.
func New(data []byte, cfg Config) Scanner {
	return &pdfScanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("scanner: seek %d out of range", offset)
	}
	s.pos = offset
	s.arrayDepth, s.dictDepth = 0, 0
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *pdfScanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return Token{}, fmt.Errorf("%w: stray '>' at %d", ErrMalformedToken, start)
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case ')':
		s.pos++
		return Token{}, fmt.Errorf("%w: stray ')' at %d", ErrMalformedToken, start)
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	return s.scanKeyword()
}

func (s *pdfScanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *pdfScanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return s.emit(Token{Type: TokenName, Str: out.String(), Pos: start})
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	depth := 1
	var buf bytes.Buffer
	for {
		if s.pos >= int64(len(s.data)) {
			return Token{}, fmt.Errorf("%w: unterminated string at %d", ErrUnexpectedEOF, start)
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, fmt.Errorf("%w: string longer than %d", ErrLimitExceeded, s.cfg.MaxStringLength)
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return s.emit(Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start})
			}
			buf.WriteByte(c)
		case '\r':
			// EOL in a literal string reads as a single LF.
			if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
				s.pos++
			}
			buf.WriteByte('\n')
		case '\\':
			if s.pos >= int64(len(s.data)) {
				return Token{}, fmt.Errorf("%w: dangling escape at %d", ErrUnexpectedEOF, start)
			}
			e := s.data[s.pos]
			s.pos++
			switch {
			case e >= '0' && e <= '7':
				v := int(e - '0')
				for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(v))
			case e == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case e == '\n':
			default:
				buf.WriteByte(translateEscape(e))
			}
		default:
			buf.WriteByte(c)
		}
	}
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var out []byte
	var hi byte
	half := false
	for {
		if s.pos >= int64(len(s.data)) {
			return Token{}, fmt.Errorf("%w: unterminated hex string at %d", ErrUnexpectedEOF, start)
		}
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		if !isHex(c) {
			return Token{}, fmt.Errorf("%w: bad hex digit %q at %d", ErrMalformedToken, c, s.pos-1)
		}
		if half {
			out = append(out, hi<<4|fromHex(c))
		} else {
			hi = fromHex(c)
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return s.emit(Token{Type: TokenString, Bytes: out, Hex: true, Pos: start})
}

func (s *pdfScanner) scanStream(start int64) (Token, error) {
	// 'stream' is followed by CRLF or LF; a lone CR is tolerated.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	needle := []byte("endstream")
	declared := s.nextStreamLen
	s.nextStreamLen = -1

	if declared >= 0 {
		if s.cfg.MaxStreamLength > 0 && declared > s.cfg.MaxStreamLength {
			return Token{}, fmt.Errorf("%w: stream length %d", ErrLimitExceeded, declared)
		}
		end := dataStart + declared
		if end <= int64(len(s.data)) {
			p := end
			for p < int64(len(s.data)) && isWhitespace(s.data[p]) {
				p++
			}
			if bytes.HasPrefix(s.data[p:], needle) {
				payload := append([]byte(nil), s.data[dataStart:end]...)
				s.pos = p + int64(len(needle))
				return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
			}
		}
		// Declared length is wrong; fall through to the marker search.
	}

	idx := bytes.Index(s.data[dataStart:], needle)
	if idx < 0 {
		return Token{}, fmt.Errorf("%w: endstream not found for stream at %d", ErrUnexpectedEOF, start)
	}
	end := dataStart + int64(idx)
	if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
		return Token{}, fmt.Errorf("%w: stream length %d", ErrLimitExceeded, end-dataStart)
	}
	s.pos = end + int64(len(needle))
	// Strip the EOL that precedes endstream.
	if end > dataStart && s.data[end-1] == '\n' {
		end--
		if end > dataStart && s.data[end-1] == '\r' {
			end--
		}
	} else if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		s.pos++
		return Token{}, fmt.Errorf("%w: unexpected byte %q at %d", ErrMalformedToken, s.data[start], start)
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		return s.scanKeyword()
	}
	if i1, err := strconv.ParseInt(num1, 10, 64); err == nil && i1 >= 0 && num1[0] != '+' {
		// Possible "num gen R".
		save := s.pos
		s.skipWSAndComments()
		num2 := s.scanNumberString()
		if num2 != "" {
			if i2, err := strconv.ParseInt(num2, 10, 64); err == nil && i2 >= 0 {
				s.skipWSAndComments()
				if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
					(s.pos+1 >= int64(len(s.data)) || isWhitespace(s.data[s.pos+1]) || isDelimiter(s.data[s.pos+1])) {
					s.pos++
					return Token{Type: TokenRef, Num: int(i1), Gen: int(i2), Pos: start}, nil
				}
			}
		}
		s.pos = save
		return s.emit(Token{Type: TokenNumber, Int: i1, IsInt: true, Pos: start})
	}
	if i, err := strconv.ParseInt(num1, 10, 64); err == nil {
		return s.emit(Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start})
	}
	f, err := strconv.ParseFloat(normalizeReal(num1), 64)
	if err != nil {
		// Malformed reals such as "--5" or "1.2.3" read as zero.
		f = 0
	}
	return s.emit(Token{Type: TokenNumber, Float: f, Pos: start})
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenArray:
		s.arrayDepth++
		if s.cfg.MaxArrayDepth > 0 && s.arrayDepth > s.cfg.MaxArrayDepth {
			return Token{}, fmt.Errorf("%w: array depth %d", ErrLimitExceeded, s.arrayDepth)
		}
	case TokenDict:
		s.dictDepth++
		if s.cfg.MaxDictDepth > 0 && s.dictDepth > s.cfg.MaxDictDepth {
			return Token{}, fmt.Errorf("%w: dict depth %d", ErrLimitExceeded, s.dictDepth)
		}
	case TokenKeyword:
		if tok.Str == "]" && s.arrayDepth > 0 {
			s.arrayDepth--
		}
		if tok.Str == ">>" && s.dictDepth > 0 {
			s.dictDepth--
		}
	}
	return tok, nil
}

func normalizeReal(s string) string {
	// "-.5" and "5." are valid PDF reals.
	if len(s) > 1 && s[0] == '-' && s[1] == '-' {
		s = s[1:]
	}
	if s == "." || s == "-." || s == "+." {
		return "0"
	}
	return s
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	return c // covers \( \) \\ and unknown escapes
}
