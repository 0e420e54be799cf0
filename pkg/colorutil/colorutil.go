// Package colorutil provides shared color utilities for overlay rendering.
package colorutil

import (
	"image/color"
)

// ScoreColor maps a similarity percent in [0,100] to a color on a
// red-to-green ramp, for color-coding match overlays by confidence: 0 is
// pure red, 100 is pure green, with a yellow midpoint.
func ScoreColor(similarity float64) color.RGBA {
	t := similarity / 100.0
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	var r, g float64
	if t < 0.5 {
		r, g = 1, t*2
	} else {
		r, g = 1-(t-0.5)*2, 1
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: 0, A: 255}
}
