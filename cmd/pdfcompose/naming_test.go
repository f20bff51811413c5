package main

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOutputName(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 5, 2, 0, time.UTC)
	tests := []struct {
		name    string
		op      string
		orig    string
		request string
		want    string
	}{
		{"explicit", "edit", "in.pdf", "report", "report.pdf"},
		{"explicit keeps suffix", "edit", "in.pdf", "report.pdf", "report.pdf"},
		{"suffix is case sensitive", "edit", "", "report.PDF", "report.PDF.pdf"},
		{"illegal characters", "edit", "", "a/b\\c:d*e?f\"g<h>i|j\tk", "a_b_c_d_e_f_g_h_i_j_k.pdf"},
		{"trimmed", "edit", "", "  spaced  ", "spaced.pdf"},
		{"derived", "text", "invoice.pdf", "", "invoice_text_20250307_090502.pdf"},
		{"derived upper suffix", "image", "SCAN.PDF", "", "SCAN_image_20250307_090502.pdf"},
		{"no original", "watermark", "", "  ", "document_watermark_20250307_090502.pdf"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := outputName(tc.op, tc.orig, tc.request, now); got != tc.want {
				t.Fatalf("outputName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	src := filepath.Join("in", "doc.pdf")

	if got := outputPath(commonFlags{output: "x/y.pdf"}, &fileConfig{OutputDir: "out"}, "edit", src, "named", now); got != "x/y.pdf" {
		t.Fatalf("-o must win, got %q", got)
	}
	if got := outputPath(commonFlags{name: "flag"}, &fileConfig{}, "edit", src, "request", now); got != filepath.Join("in", "flag.pdf") {
		t.Fatalf("--name should beat the request name, got %q", got)
	}
	if got := outputPath(commonFlags{}, &fileConfig{OutputDir: "out"}, "text", src, "", now); got != filepath.Join("out", "doc_text_20250102_030405.pdf") {
		t.Fatalf("unexpected derived path %q", got)
	}
}
