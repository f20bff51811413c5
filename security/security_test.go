package security

import (
	"errors"
	"testing"

	"github.com/wudi/pdfcompose/ir/raw"
)

func TestCheckTrailer(t *testing.T) {
	plain := raw.Dict()
	plain.Set("Root", raw.Ref(1, 0))
	if err := CheckTrailer(plain); err != nil {
		t.Fatalf("plain trailer rejected: %v", err)
	}

	enc := plain.Clone()
	enc.Set("Encrypt", raw.Ref(9, 0))
	if err := CheckTrailer(enc); !errors.Is(err, ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
}

func TestDefaultLimitsProjection(t *testing.T) {
	l := DefaultLimits()
	sc := l.ScannerConfig()
	if sc.MaxArrayDepth != l.MaxNestingDepth || sc.MaxStreamLength != l.MaxStreamLength {
		t.Fatalf("scanner config does not mirror limits: %+v", sc)
	}
	if l.FilterLimits().MaxDecompressedSize != l.MaxDecompressedSize {
		t.Fatalf("filter limits do not mirror limits")
	}
}
