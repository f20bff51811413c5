package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// ErrUsage marks invalid command lines.
var ErrUsage = errors.New("usage error")

// commonFlags holds flags shared by every drawing command.
type commonFlags struct {
	config      string
	font        string
	output      string
	name        string
	incremental bool
	quiet       bool
	verbose     bool
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	fs.StringVar(&f.font, "font", "", "TrueType font used for text")
	fs.StringVarP(&f.output, "output", "o", "", "output file")
	fs.StringVar(&f.name, "name", "", "output file name")
	fs.BoolVar(&f.incremental, "incremental", false, "append changes to the source")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log each operation")
}

// placementFlags holds the anchor of a single-operation command.
type placementFlags struct {
	page     int
	x, y     float64
	rotation float64
	opacity  float64
}

func addPlacementFlags(fs *flag.FlagSet, f *placementFlags) {
	fs.IntVarP(&f.page, "page", "p", 1, "1-based page number")
	fs.Float64VarP(&f.x, "x", "x", 0, "x in points from the left edge")
	fs.Float64VarP(&f.y, "y", "y", 0, "y in points from the bottom edge")
	fs.Float64Var(&f.rotation, "rotate", 0, "counter-clockwise rotation in degrees")
	fs.Float64Var(&f.opacity, "opacity", 1, "opacity from 0 to 1")
}

type editFlags struct {
	common    commonFlags
	assets    []string
	assetsDir string
}

type textFlags struct {
	common         commonFlags
	place          placementFlags
	size           float64
	color          string
	whiteoutWidth  float64
	whiteoutHeight float64
}

type imageFlags struct {
	common        commonFlags
	place         placementFlags
	width, height float64
}

type watermarkFlags struct {
	common   commonFlags
	size     float64
	color    string
	opacity  float64
	rotation float64
}

type batchFlags struct {
	common  commonFlags
	workers int
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	return fs
}

// parse runs fs and checks the positional argument count.
func parse(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	if fs.NArg() != positional {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrUsage, fs.Name(), positional, fs.NArg())
	}
	return fs.Args(), nil
}

func parseEditFlags(args []string, stderr io.Writer) (*editFlags, []string, error) {
	fs := newFlagSet("edit", stderr)
	f := &editFlags{}
	addCommonFlags(fs, &f.common)
	fs.StringArrayVarP(&f.assets, "asset", "a", nil, "asset as key=path (repeatable)")
	fs.StringVar(&f.assetsDir, "assets-dir", "", "directory whose files become assets keyed by file name")
	rest, err := parse(fs, args, 2)
	return f, rest, err
}

func parseTextFlags(args []string, stderr io.Writer) (*textFlags, []string, error) {
	fs := newFlagSet("text", stderr)
	f := &textFlags{}
	addCommonFlags(fs, &f.common)
	addPlacementFlags(fs, &f.place)
	fs.Float64VarP(&f.size, "size", "s", 14, "font size in points")
	fs.StringVar(&f.color, "color", "#000000", "hex text color")
	fs.Float64Var(&f.whiteoutWidth, "whiteout-width", 0, "width of a white box painted under the text")
	fs.Float64Var(&f.whiteoutHeight, "whiteout-height", 0, "height of a white box painted under the text")
	rest, err := parse(fs, args, 2)
	return f, rest, err
}

func parseImageFlags(args []string, stderr io.Writer) (*imageFlags, []string, error) {
	fs := newFlagSet("image", stderr)
	f := &imageFlags{}
	addCommonFlags(fs, &f.common)
	addPlacementFlags(fs, &f.place)
	fs.Float64Var(&f.width, "width", 0, "drawn width in points (0 keeps the aspect ratio)")
	fs.Float64Var(&f.height, "height", 0, "drawn height in points (0 keeps the aspect ratio)")
	rest, err := parse(fs, args, 2)
	return f, rest, err
}

func parseWatermarkFlags(args []string, stderr io.Writer) (*watermarkFlags, []string, error) {
	fs := newFlagSet("watermark", stderr)
	f := &watermarkFlags{}
	addCommonFlags(fs, &f.common)
	fs.Float64VarP(&f.size, "size", "s", 48, "font size in points")
	fs.StringVar(&f.color, "color", "#808080", "hex text color")
	fs.Float64Var(&f.opacity, "opacity", 0.3, "opacity from 0 to 1")
	fs.Float64Var(&f.rotation, "rotate", 45, "counter-clockwise rotation in degrees")
	rest, err := parse(fs, args, 2)
	return f, rest, err
}

func parseBatchFlags(args []string, stderr io.Writer) (*batchFlags, []string, error) {
	fs := newFlagSet("batch", stderr)
	f := &batchFlags{}
	addCommonFlags(fs, &f.common)
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel jobs (0 = config or GOMAXPROCS)")
	rest, err := parse(fs, args, 1)
	return f, rest, err
}

// optional turns a zero flag value into an absent one.
func optional(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
