package fonts

import (
	"strings"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfcompose/contentstream"
)

// Glyph is one shaped glyph. Advances and offsets are in 1/1000 em.
type Glyph struct {
	ID       uint16
	XAdvance float64
	XOffset  float64
	YOffset  float64
	Runes    []rune
}

// Run is a shaped single line of text.
type Run struct {
	Glyphs  []Glyph
	Advance float64 // 1/1000 em
}

// shapingSize makes one em 1000 units so shaped advances land directly in
// PDF glyph space.
const shapingSize = fixed.Int26_6(1000 * 64)

// Shape shapes one line of NFC-normalized text and records the glyphs as
// used by this face.
func (f *Face) Shape(text string) Run {
	run := f.shape(text)
	for _, g := range run.Glyphs {
		if runes, seen := f.used[g.ID]; !seen || len(runes) == 0 {
			f.used[g.ID] = g.Runes
		}
		f.GlyphWidth(g.ID)
	}
	return run
}

func (f *Face) shape(text string) Run {
	runes := []rune(norm.NFC.String(text))
	if len(runes) == 0 {
		return Run{}
	}
	script := DetectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      f.shapeFace,
		Size:      shapingSize,
		Script:    script,
		Language:  language.DefaultLanguage(),
	}
	out := (&shaping.HarfbuzzShaper{}).Shape(input)

	run := Run{Glyphs: make([]Glyph, 0, len(out.Glyphs))}
	for _, g := range out.Glyphs {
		glyph := Glyph{
			ID:       uint16(g.GlyphID),
			XAdvance: float64(g.XAdvance) / 64.0,
			XOffset:  float64(g.XOffset) / 64.0,
			YOffset:  float64(g.YOffset) / 64.0,
		}
		if start, end := g.ClusterIndex, g.ClusterIndex+g.RuneCount; g.RuneCount > 0 && start >= 0 && end <= len(runes) {
			glyph.Runes = runes[start:end]
		}
		run.Advance += glyph.XAdvance
		run.Glyphs = append(run.Glyphs, glyph)
	}
	return run
}

// Measure returns the width in points of the widest line of text at size.
func (f *Face) Measure(text string, size float64) float64 {
	widest := 0.0
	for _, line := range strings.Split(text, "\n") {
		widest = max(widest, f.shape(line).Advance)
	}
	return widest * size / 1000
}

// TextArray encodes a run as TJ operands: two-byte glyph ids, with the gap
// between the nominal width and the shaped advance written as a position
// adjustment.
func (f *Face) TextArray(run Run) contentstream.Array {
	arr := make(contentstream.Array, 0, len(run.Glyphs))
	var pending contentstream.HexString
	for _, g := range run.Glyphs {
		pending = append(pending, byte(g.ID>>8), byte(g.ID))
		adj := float64(f.GlyphWidth(g.ID)) - g.XAdvance
		if adj > 0.01 || adj < -0.01 {
			arr = append(arr, pending, contentstream.Number(adj))
			pending = nil
		}
	}
	if len(pending) > 0 {
		arr = append(arr, pending)
	}
	return arr
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// DetectScript picks the most frequent script in runes, Latin by default.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	case unicode.Is(unicode.Bengali, r):
		return language.Bengali
	case unicode.Is(unicode.Gurmukhi, r):
		return language.Gurmukhi
	case unicode.Is(unicode.Gujarati, r):
		return language.Gujarati
	case unicode.Is(unicode.Oriya, r):
		return language.Oriya
	case unicode.Is(unicode.Tamil, r):
		return language.Tamil
	case unicode.Is(unicode.Telugu, r):
		return language.Telugu
	case unicode.Is(unicode.Kannada, r):
		return language.Kannada
	case unicode.Is(unicode.Malayalam, r):
		return language.Malayalam
	case unicode.Is(unicode.Sinhala, r):
		return language.Sinhala
	case unicode.Is(unicode.Lao, r):
		return language.Lao
	case unicode.Is(unicode.Tibetan, r):
		return language.Tibetan
	case unicode.Is(unicode.Myanmar, r):
		return language.Myanmar
	case unicode.Is(unicode.Khmer, r):
		return language.Khmer
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
