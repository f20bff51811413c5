package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfcompose/compose"
	"github.com/wudi/pdfcompose/request"
)

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path chosen by the user
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	return data, nil
}

func readRequest(path string) (compose.EditRequest, error) {
	data, err := readInput(path)
	if err != nil {
		return compose.EditRequest{}, err
	}
	return request.Decode(data)
}

// loadAssets reads --asset key=path pairs and every regular file of dir.
// Explicit pairs override directory entries.
func loadAssets(pairs []string, dir string) (compose.AssetMap, error) {
	assets := compose.AssetMap{}
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
		}
		for _, ent := range entries {
			if !ent.Type().IsRegular() {
				continue
			}
			data, err := readInput(filepath.Join(dir, ent.Name()))
			if err != nil {
				return nil, err
			}
			assets[ent.Name()] = data
		}
	}
	for _, pair := range pairs {
		key, path, ok := strings.Cut(pair, "=")
		if !ok || key == "" || path == "" {
			return nil, fmt.Errorf("%w: asset %q is not key=path", ErrUsage, pair)
		}
		data, err := readInput(path)
		if err != nil {
			return nil, err
		}
		assets[key] = data
	}
	return assets, nil
}

func runEdit(args []string, e *env) error {
	f, rest, err := parseEditFlags(args, e.stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f.common.config)
	if err != nil {
		return err
	}
	cfg.merge(f.common)

	src, err := readInput(rest[0])
	if err != nil {
		return err
	}
	req, err := readRequest(rest[1])
	if err != nil {
		return err
	}
	assets, err := loadAssets(f.assets, f.assetsDir)
	if err != nil {
		return err
	}
	c := cfg.compositor(f.common, e)
	out := outputPath(f.common, cfg, "edit", rest[0], req.OutputName, e.now())
	return finish(f.common, e, out, func() ([]byte, error) { return c.Apply(src, req, assets) })
}

func runText(args []string, e *env) error {
	f, rest, err := parseTextFlags(args, e.stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f.common.config)
	if err != nil {
		return err
	}
	cfg.merge(f.common)
	src, err := readInput(rest[0])
	if err != nil {
		return err
	}
	op := compose.TextOp{
		Placement:      compose.Placement{Page: f.place.page, X: f.place.x, Y: f.place.y},
		Text:           rest[1],
		FontSize:       optional(f.size),
		ColorHex:       f.color,
		RotationDeg:    f.place.rotation,
		Opacity:        &f.place.opacity,
		Whiteout:       f.whiteoutWidth > 0 && f.whiteoutHeight > 0,
		WhiteoutWidth:  f.whiteoutWidth,
		WhiteoutHeight: f.whiteoutHeight,
	}
	c := cfg.compositor(f.common, e)
	out := outputPath(f.common, cfg, "text", rest[0], "", e.now())
	return finish(f.common, e, out, func() ([]byte, error) { return c.AddText(src, op) })
}

func runImage(args []string, e *env) error {
	f, rest, err := parseImageFlags(args, e.stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f.common.config)
	if err != nil {
		return err
	}
	cfg.merge(f.common)
	src, err := readInput(rest[0])
	if err != nil {
		return err
	}
	img, err := readInput(rest[1])
	if err != nil {
		return err
	}
	op := compose.ImageOp{
		Placement:   compose.Placement{Page: f.place.page, X: f.place.x, Y: f.place.y},
		AssetKey:    filepath.Base(rest[1]),
		Width:       optional(f.width),
		Height:      optional(f.height),
		Opacity:     &f.place.opacity,
		RotationDeg: f.place.rotation,
	}
	c := cfg.compositor(f.common, e)
	out := outputPath(f.common, cfg, "image", rest[0], "", e.now())
	return finish(f.common, e, out, func() ([]byte, error) { return c.AddImage(src, op, img) })
}

func runWatermark(args []string, e *env) error {
	f, rest, err := parseWatermarkFlags(args, e.stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f.common.config)
	if err != nil {
		return err
	}
	cfg.merge(f.common)
	src, err := readInput(rest[0])
	if err != nil {
		return err
	}
	w := compose.Watermark{
		Text:        rest[1],
		FontSize:    f.size,
		ColorHex:    f.color,
		Opacity:     f.opacity,
		RotationDeg: f.rotation,
	}
	c := cfg.compositor(f.common, e)
	out := outputPath(f.common, cfg, "watermark", rest[0], "", e.now())
	return finish(f.common, e, out, func() ([]byte, error) { return c.Watermark(src, w) })
}

// finish runs the composition, writes the result and reports it.
func finish(f commonFlags, e *env, outPath string, apply func() ([]byte, error)) error {
	data, err := apply()
	if err != nil {
		return err
	}
	if err := writeOutput(outPath, data); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	if !f.quiet {
		fmt.Fprintf(e.stdout, "Created %s\n", outPath)
	}
	return nil
}
