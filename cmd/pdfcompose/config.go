package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/wudi/pdfcompose/compose"
	"github.com/wudi/pdfcompose/fonts"
	"github.com/wudi/pdfcompose/observability"
	"github.com/wudi/pdfcompose/security"
	"github.com/wudi/pdfcompose/writer"
)

var (
	ErrConfigParse = errors.New("invalid config file")
	ErrReadInput   = errors.New("failed to read input")
	ErrWriteOutput = errors.New("failed to write output")
)

// maxConfigSize bounds config files and batch manifests.
const maxConfigSize = 1 << 20

// fileConfig is the optional YAML configuration. Unknown keys are rejected.
type fileConfig struct {
	Font          string `yaml:"font"`
	OutputDir     string `yaml:"outputDir"`
	Incremental   bool   `yaml:"incremental"`
	Compression   int    `yaml:"compression"`
	Deterministic bool   `yaml:"deterministic"`
	Workers       int    `yaml:"workers"`
	Limits        struct {
		MaxDecompressedSize int64         `yaml:"maxDecompressedSize"`
		MaxStreamLength     int64         `yaml:"maxStreamLength"`
		MaxParseTime        time.Duration `yaml:"maxParseTime"`
	} `yaml:"limits"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path chosen by the user
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	if err := unmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}
	if cfg.Compression < 0 || cfg.Compression > 9 {
		return nil, fmt.Errorf("%w: compression %d is outside 0..9", ErrConfigParse, cfg.Compression)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative", ErrConfigParse)
	}
	return cfg, nil
}

func unmarshalStrict(data []byte, v any) error {
	if len(data) > maxConfigSize {
		return fmt.Errorf("input exceeds %d bytes", maxConfigSize)
	}
	return yaml.UnmarshalWithOptions(data, v, yaml.Strict())
}

// merge applies command-line flags over the file configuration.
func (c *fileConfig) merge(f commonFlags) {
	if f.font != "" {
		c.Font = f.font
	}
	if f.incremental {
		c.Incremental = true
	}
}

func (c *fileConfig) workers(flag int) int {
	switch {
	case flag > 0:
		return flag
	case c.Workers > 0:
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (c *fileConfig) limits() security.Limits {
	l := security.DefaultLimits()
	if c.Limits.MaxDecompressedSize > 0 {
		l.MaxDecompressedSize = c.Limits.MaxDecompressedSize
	}
	if c.Limits.MaxStreamLength > 0 {
		l.MaxStreamLength = c.Limits.MaxStreamLength
	}
	if c.Limits.MaxParseTime > 0 {
		l.MaxParseTime = c.Limits.MaxParseTime
	}
	return l
}

// compositor builds the engine for one command invocation.
func (c *fileConfig) compositor(f commonFlags, e *env) *compose.Compositor {
	var src fonts.Source
	if c.Font != "" {
		src = fonts.File(c.Font)
	}
	return compose.New(compose.Config{
		Fonts:  fonts.NewProgramCache(src),
		Limits: c.limits(),
		Writer: writer.Config{
			Compression:   c.Compression,
			Incremental:   c.Incremental,
			Deterministic: c.Deterministic,
		},
		Logger: newLogger(f, e),
	})
}

func newLogger(f commonFlags, e *env) observability.Logger {
	level := slog.LevelInfo
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level})
	return observability.NewSlogLogger(slog.New(h))
}
