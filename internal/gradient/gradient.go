// Package gradient computes per-pixel gradient magnitude and orientation
// (the Gradient Modality, C3): a 5x5 Gaussian blur (sigma ~= 1.5) followed
// by a 3-tap Sobel for single-channel input, or per-channel Scharr with
// max-magnitude channel selection for 3-channel input.
package gradient

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"shapematch/internal/matcherr"
)

// Map holds the magnitude (normalized to a [0,1] maximum) and orientation
// (degrees, [0,360)) fields for one image, as flat row-major slices so
// downstream packages (quantize, feature) don't need a gocv dependency.
type Map struct {
	Rows, Cols int
	Magnitude  []float32
	Angle      []float32
}

func (m Map) at(r, c int) int { return r*m.Cols + c }

// Compute runs the gradient modality over src, a 1- or 3-channel 8-bit
// gocv.Mat. It returns InvalidInput for an empty Mat.
func Compute(src gocv.Mat) (Map, error) {
	const op = "gradient.Compute"
	if src.Empty() {
		return Map{}, matcherr.New(matcherr.InvalidInput, op, "empty source image")
	}

	rows, cols := src.Rows(), src.Cols()
	out := Map{Rows: rows, Cols: cols, Magnitude: make([]float32, rows*cols), Angle: make([]float32, rows*cols)}

	channels := src.Channels()
	switch channels {
	case 1:
		computeSingleChannel(src, out)
	default:
		computeMultiChannel(src, out)
	}

	normalize(out)
	return out, nil
}

func computeSingleChannel(src gocv.Mat, out Map) {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 1.5, 1.5, gocv.BorderReflect101)

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(blurred, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderReflect101)
	gocv.Sobel(blurred, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderReflect101)

	fillFromComponents(gx, gy, out)
}

func computeMultiChannel(src gocv.Mat, out Map) {
	channels := gocv.Split(src)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	rows, cols := out.Rows, out.Cols
	bestMag := make([]float32, rows*cols)
	bestGx := make([]float32, rows*cols)
	bestGy := make([]float32, rows*cols)

	for _, ch := range channels {
		gx := gocv.NewMat()
		gy := gocv.NewMat()
		gocv.Scharr(ch, &gx, gocv.MatTypeCV32F, 1, 0, 1, 0, gocv.BorderReflect101)
		gocv.Scharr(ch, &gy, gocv.MatTypeCV32F, 0, 1, 1, 0, gocv.BorderReflect101)

		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				i := out.at(r, c)
				dx := gx.GetFloatAt(r, c)
				dy := gy.GetFloatAt(r, c)
				mag := float32(math.Hypot(float64(dx), float64(dy)))
				if mag > bestMag[i] {
					bestMag[i] = mag
					bestGx[i] = dx
					bestGy[i] = dy
				}
			}
		}
		gx.Close()
		gy.Close()
	}

	for i := range out.Magnitude {
		out.Magnitude[i] = bestMag[i]
		out.Angle[i] = toDegrees(bestGx[i], bestGy[i])
	}
}

func fillFromComponents(gx, gy gocv.Mat, out Map) {
	rows, cols := out.Rows, out.Cols
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := out.at(r, c)
			dx := gx.GetFloatAt(r, c)
			dy := gy.GetFloatAt(r, c)
			out.Magnitude[i] = float32(math.Hypot(float64(dx), float64(dy)))
			out.Angle[i] = toDegrees(dx, dy)
		}
	}
}

func toDegrees(dx, dy float32) float32 {
	deg := math.Atan2(float64(dy), float64(dx)) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return float32(deg)
}

// normalize scales the magnitude map so its maximum value is 1, matching
// the "finally normalize the magnitude map so its maximum is 1" step of C3.
func normalize(m Map) {
	var max float32
	for _, v := range m.Magnitude {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return
	}
	for i := range m.Magnitude {
		m.Magnitude[i] /= max
	}
}
