package security

import (
	"time"

	"github.com/wudi/pdfcompose/filters"
	"github.com/wudi/pdfcompose/scanner"
)

// Limits defines resource boundaries for parsing source PDFs.
type Limits struct {
	// Maximum decompressed stream size (prevent zip bombs). Default: 100 MB.
	MaxDecompressedSize int64

	// Maximum page tree depth. Default: 100.
	MaxIndirectDepth int

	// Maximum XRef chain depth (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum array and dictionary nesting. Default: 256.
	MaxNestingDepth int

	// Maximum string length (bytes). Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length (bytes). Default: 50 MB.
	MaxStreamLength int64

	// Maximum total parse time. Default: 5m.
	MaxParseTime time.Duration
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 * 1024 * 1024,
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxNestingDepth:     256,
		MaxStringLength:     10 * 1024 * 1024,
		MaxStreamLength:     50 * 1024 * 1024,
		MaxParseTime:        5 * time.Minute,
	}
}

// ScannerConfig projects the limits onto the lexer.
func (l Limits) ScannerConfig() scanner.Config {
	return scanner.Config{
		MaxStringLength: l.MaxStringLength,
		MaxArrayDepth:   l.MaxNestingDepth,
		MaxDictDepth:    l.MaxNestingDepth,
		MaxStreamLength: l.MaxStreamLength,
	}
}

// FilterLimits projects the limits onto stream decoding.
func (l Limits) FilterLimits() filters.Limits {
	return filters.Limits{MaxDecompressedSize: l.MaxDecompressedSize}
}
