package compose

import "math"

// ScaleImage computes the drawn size of an image with the given natural
// size. A single requested dimension scales the other proportionally.
func ScaleImage(naturalW, naturalH float64, width, height *float64) (w, h float64) {
	switch {
	case width != nil && height != nil:
		return *width, *height
	case width != nil:
		if naturalW == 0 {
			return *width, naturalH
		}
		return *width, naturalH * *width / naturalW
	case height != nil:
		if naturalH == 0 {
			return naturalW, *height
		}
		return naturalW * *height / naturalH, *height
	default:
		return naturalW, naturalH
	}
}

// clampOpacity maps nil to fully opaque and pins v into [0, 1].
func clampOpacity(v *float64) float64 {
	if v == nil {
		return 1
	}
	switch {
	case math.IsNaN(*v):
		return 1
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}
