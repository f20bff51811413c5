package main

import (
	"errors"
	"os"

	"github.com/wudi/pdfcompose/compose"
	"github.com/wudi/pdfcompose/request"
)

// Exit codes follow Unix conventions: 0=success, 1=general, 2=usage.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 2 // invalid flags, config, request or operation
	ExitIO      = 3 // missing or unreadable files, assets and fonts
)

// exitCodeFor maps an error to the process exit status. Callers must wrap
// with %w so errors.Is sees the cause.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, compose.AssetNotFound) ||
		errors.Is(err, compose.FontLoadFailed) {
		return ExitIO
	}

	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrConfigParse) ||
		errors.Is(err, request.ErrInvalidRequest) ||
		errors.Is(err, request.ErrEmpty) ||
		errors.Is(err, request.ErrTooLarge) ||
		errors.Is(err, compose.InvalidPage) ||
		errors.Is(err, compose.InvalidColor) ||
		errors.Is(err, compose.UnsupportedOperation) {
		return ExitUsage
	}

	return ExitGeneral
}
