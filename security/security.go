package security

import (
	"errors"

	"github.com/wudi/pdfcompose/ir/raw"
)

// ErrEncrypted is returned for sources protected by a security handler.
var ErrEncrypted = errors.New("security: encrypted documents are not supported")

// CheckTrailer rejects documents whose trailer names an /Encrypt dictionary.
func CheckTrailer(trailer *raw.DictObj) error {
	if trailer == nil {
		return nil
	}
	if enc, ok := trailer.Get("Encrypt"); ok {
		if _, isNull := enc.(raw.NullObj); !isNull {
			return ErrEncrypted
		}
	}
	return nil
}
