// Command pdfcompose draws text, images, rectangles and lines onto existing
// PDF files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

// env carries the process surroundings so commands can be tested.
type env struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS; runtime defaults apply then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], &env{stdout: os.Stdout, stderr: os.Stderr, now: time.Now})
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfcompose: %v\n", err)
	}
	os.Exit(exitCodeFor(err))
}

func run(ctx context.Context, args []string, e *env) error {
	if len(args) == 0 {
		printUsage(e.stderr)
		return fmt.Errorf("%w: no command given", ErrUsage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "edit":
		return runEdit(rest, e)
	case "text":
		return runText(rest, e)
	case "image":
		return runImage(rest, e)
	case "watermark":
		return runWatermark(rest, e)
	case "batch":
		return runBatch(ctx, rest, e)
	case "version":
		fmt.Fprintf(e.stdout, "pdfcompose %s\n", Version)
		return nil
	case "help", "-h", "--help":
		printUsage(e.stdout)
		return nil
	}
	printUsage(e.stderr)
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: pdfcompose <command> [flags] <args>

Commands:
  edit       <source.pdf> <request.json|yaml>  apply a batch of operations
  text       <source.pdf> <text>               draw one text block
  image      <source.pdf> <image>              draw one image
  watermark  <source.pdf> <text>               stamp text across every page
  batch      <manifest.yaml>                   run many edit jobs concurrently
  version                                      print the version

Common flags:
  -c, --config string   YAML configuration file
      --font string     TrueType font used for text (default Go Regular)
  -o, --output string   output file (default: named after the source)
      --name string     output file name, sanitized and given a .pdf suffix
      --incremental     append changes to the source instead of rewriting it
  -q, --quiet           only show errors
  -v, --verbose         log each operation
`)
}
