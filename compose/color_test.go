package compose

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
	}{
		{"#000000", RGB{}},
		{"#ffffff", RGB{255, 255, 255}},
		{"#FF8000", RGB{255, 128, 0}},
		{"ff8000", RGB{255, 128, 0}},
		{"0xFF8000", RGB{255, 128, 0}},
		{"0X0a0b0c", RGB{10, 11, 12}},
		{"#f80", RGB{255, 136, 0}},
		{"#f80c", RGB{255, 136, 0}},
		{"#11223344", RGB{17, 34, 51}},
		{"  #abc  ", RGB{170, 187, 204}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseColor(tc.in)
			if err != nil {
				t.Fatalf("ParseColor(%q): %v", tc.in, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ParseColor(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestParseColorRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "#", "#12", "#12345", "#1234567", "#gggggg", "red", "0x", "##fff", "#ff 000"} {
		in := in
		t.Run(in, func(t *testing.T) {
			_, err := ParseColor(in)
			if !errors.Is(err, InvalidColor) {
				t.Fatalf("expected InvalidColor for %q, got %v", in, err)
			}
			var e *Error
			if !errors.As(err, &e) || e.Color != in {
				t.Fatalf("error should carry the literal %q: %v", in, err)
			}
		})
	}
}

func TestRGBFloats(t *testing.T) {
	r, g, b := RGB{R: 255, G: 0, B: 255}.Floats()
	if r != 1 || g != 0 || b != 1 {
		t.Fatalf("unexpected floats %v %v %v", r, g, b)
	}
}

func TestScaleImage(t *testing.T) {
	tests := []struct {
		name  string
		w, h  *float64
		wantW float64
		wantH float64
	}{
		{"natural", nil, nil, 200, 100},
		{"both", Float(50), Float(80), 50, 80},
		{"width only", Float(100), nil, 100, 50},
		{"height only", nil, Float(25), 50, 25},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w, h := ScaleImage(200, 100, tc.w, tc.h)
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("got %vx%v want %vx%v", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestClampOpacity(t *testing.T) {
	tests := []struct {
		in   *float64
		want float64
	}{
		{nil, 1},
		{Float(0.25), 0.25},
		{Float(-3), 0},
		{Float(1.7), 1},
		{Float(0), 0},
	}
	for _, tc := range tests {
		if got := clampOpacity(tc.in); got != tc.want {
			t.Fatalf("clampOpacity(%v) = %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestAssetMapResolve(t *testing.T) {
	m := AssetMap{"logo": []byte{1, 2, 3}}
	if data, err := m.Resolve("logo"); err != nil || len(data) != 3 {
		t.Fatalf("resolve: %v %v", data, err)
	}
	_, err := m.Resolve("Logo")
	if !errors.Is(err, AssetNotFound) {
		t.Fatalf("lookup must be case-sensitive, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.AssetKey != "Logo" {
		t.Fatalf("error should name the key: %v", err)
	}
	if _, err := AssetMap(nil).Resolve("x"); !errors.Is(err, AssetNotFound) {
		t.Fatalf("nil map should report AssetNotFound, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := error(&Error{Kind: InvalidPage, Page: 9, Op: "text"})
	if !errors.Is(err, InvalidPage) || errors.Is(err, InvalidColor) {
		t.Fatalf("kind matching broken")
	}
	if KindOf(err) != InvalidPage {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if KindOf(errors.New("other")) != 0 {
		t.Fatalf("plain errors have no kind")
	}
	if got := err.Error(); got != "compose: invalid page (text): page 9" {
		t.Fatalf("unexpected message %q", got)
	}
}
