package coords

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPlaceWithoutRotation(t *testing.T) {
	m := Place(10, 20, 100, 50, 0)
	want := Matrix{100, 0, 0, 50, 10, 20}
	if m != want {
		t.Fatalf("got %v want %v", m, want)
	}
}

func TestPlaceRotatesAboutAnchor(t *testing.T) {
	m := Place(10, 20, 100, 50, 90)
	// The anchor stays put; the unit square's right edge swings upward.
	if p := m.Transform(Point{0, 0}); !near(p.X, 10) || !near(p.Y, 20) {
		t.Fatalf("anchor moved to %v", p)
	}
	if p := m.Transform(Point{1, 0}); !near(p.X, 10) || !near(p.Y, 120) {
		t.Fatalf("right edge at %v", p)
	}
	if p := m.Transform(Point{0, 1}); !near(p.X, -40) || !near(p.Y, 20) {
		t.Fatalf("top edge at %v", p)
	}
}

func TestInverse(t *testing.T) {
	m := Place(3, 4, 2, 5, 30)
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	p := inv.Transform(m.Transform(Point{7, -2}))
	if !near(p.X, 7) || !near(p.Y, -2) {
		t.Fatalf("round trip gave %v", p)
	}
	if _, err := Scale(0, 1).Inverse(); err == nil {
		t.Fatalf("expected singular matrix error")
	}
}
