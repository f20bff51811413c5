package fonts

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/image/font/gofont/goregular"
)

var ErrEmptyProgram = errors.New("fonts: font program is empty")

// Source supplies raw font program bytes.
type Source interface {
	Load() ([]byte, error)
	String() string
}

type fileSource string

func (s fileSource) Load() ([]byte, error) { return os.ReadFile(string(s)) }
func (s fileSource) String() string        { return string(s) }

// File reads the program from path on first use.
func File(path string) Source { return fileSource(path) }

type bytesSource struct {
	name string
	data []byte
}

func (s bytesSource) Load() ([]byte, error) { return s.data, nil }
func (s bytesSource) String() string        { return s.name }

// Bytes serves an in-memory program.
func Bytes(data []byte) Source { return bytesSource{name: "memory", data: data} }

// DefaultSource is Go Regular, which covers Latin, Greek and Cyrillic.
func DefaultSource() Source { return bytesSource{name: "Go-Regular", data: goregular.TTF} }

// ProgramCache holds one font program's bytes, loaded at most once. Only the
// bytes are shared; every caller gets its own Face. A failed load leaves the
// cache empty so the next call tries again.
type ProgramCache struct {
	src     Source
	mu      sync.Mutex
	program atomic.Pointer[[]byte]
	loads   atomic.Int64
}

func NewProgramCache(src Source) *ProgramCache {
	if src == nil {
		src = DefaultSource()
	}
	return &ProgramCache{src: src}
}

// Program returns the cached bytes, loading and validating them on first use.
func (c *ProgramCache) Program() ([]byte, error) {
	if p := c.program.Load(); p != nil {
		return *p, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.program.Load(); p != nil {
		return *p, nil
	}
	c.loads.Add(1)
	data, err := c.src.Load()
	if err != nil {
		return nil, fmt.Errorf("load font %s: %w", c.src, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("load font %s: %w", c.src, ErrEmptyProgram)
	}
	if _, err := Parse(data); err != nil {
		return nil, fmt.Errorf("load font %s: %w", c.src, err)
	}
	c.program.Store(&data)
	return data, nil
}

// NewFace parses a fresh Face from the cached program.
func (c *ProgramCache) NewFace() (*Face, error) {
	data, err := c.Program()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Loads counts attempts to read the source.
func (c *ProgramCache) Loads() int64 { return c.loads.Load() }

func (c *ProgramCache) String() string { return c.src.String() }
