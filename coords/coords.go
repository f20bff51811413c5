// Package coords holds the affine matrices used to place drawing operations
// in PDF user space.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF transformation [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m followed by o (m x o in PDF's row-vector convention).
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// TransformVector applies m without its translation.
func (m Matrix) TransformVector(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y, Y: m[1]*p.X + m[3]*p.Y}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func (m Matrix) IsIdentity() bool { return m == Identity() }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate rotates counter-clockwise by angle radians.
func Rotate(angle float64) Matrix {
	s, c := math.Sincos(angle)
	// Snap exact quarter turns so 90 degrees yields clean 0/1 entries.
	if math.Abs(s) < 1e-12 {
		s = 0
	}
	if math.Abs(c) < 1e-12 {
		c = 0
	}
	return Matrix{c, s, -s, c, 0, 0}
}

// RotateDegrees rotates counter-clockwise by deg degrees.
func RotateDegrees(deg float64) Matrix { return Rotate(deg * math.Pi / 180) }

// Place scales to w x h, rotates by deg about the origin, then translates to
// (x, y): the unit square lands with its bottom-left corner at (x, y).
func Place(x, y, w, h, deg float64) Matrix {
	return Scale(w, h).Multiply(RotateDegrees(deg)).Multiply(Translate(x, y))
}
