package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	illegalName = regexp.MustCompile(`[\\/:*?"<>|\r\n\t]`)
	pdfSuffix   = regexp.MustCompile(`(?i)\.pdf$`)
)

// outputName names the result of op on the file original. An explicit
// requested name wins after illegal characters are replaced; otherwise the
// name is <base>_<op>_<yyyyMMdd_HHmmss>.pdf.
func outputName(op, original, requested string, now time.Time) string {
	if strings.TrimSpace(requested) != "" {
		name := strings.TrimSpace(illegalName.ReplaceAllString(requested, "_"))
		if strings.HasSuffix(name, ".pdf") {
			return name
		}
		return name + ".pdf"
	}
	base := "document"
	if strings.TrimSpace(original) != "" {
		base = pdfSuffix.ReplaceAllString(original, "")
	}
	return base + "_" + op + "_" + now.Format("20060102_150405") + ".pdf"
}

// outputPath decides where a command writes. -o wins; otherwise the policy
// name goes into the configured output directory or next to the source.
func outputPath(f commonFlags, cfg *fileConfig, op, source, requested string, now time.Time) string {
	if f.output != "" {
		return f.output
	}
	if f.name != "" {
		requested = f.name
	}
	dir := cfg.OutputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, outputName(op, filepath.Base(source), requested, now))
}

const (
	dirPermissions  = 0o750
	filePermissions = 0o644
)

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermissions)
}
