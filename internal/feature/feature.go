// Package feature implements the Template Extractor (C5): non-maximum
// suppression of the gradient magnitude map, scatter-distance feature
// selection, and the Shape Template type that carries a selected feature
// list plus pose metadata through the rest of the pipeline.
//
// Extraction runs direction NMS quantized to {0,45,90,135}, then
// kernel-local suppression to collect candidates, then an iterative-distance
// scatter selection with a floor at d=2.
package feature

import (
	"math"
	"sort"

	"shapematch/internal/gradient"
	"shapematch/internal/matcherr"
	"shapematch/internal/quantize"
	"shapematch/pkg/geometry"
)

// Feature is a single selected point: a location in the template's local
// coordinates plus its dominant quantized orientation label (from the
// label map, not the spread bitmask).
type Feature struct {
	X, Y  int
	Label uint8
}

// ShapeTemplate is a Feature list plus the pose metadata that produced it:
// pyramid level, angle, scale, and the rotated bounding box in the
// template's own coordinate frame (the same frame as the features);
// render re-centers it on a match point.
type ShapeTemplate struct {
	Features []Feature
	Box      geometry.RotatedRect
	Level    int
	Angle    float64
	Scale    float64
}

// Params are the tunable feature extraction parameters.
type Params struct {
	NumFeatures        int
	MagnitudeThreshold float32 // normalized [0,1]
	NMSKernelSize      int     // odd, typical 5-7
	ScatterDistance    float64 // minimum feature spacing floor, default 10px
}

// DefaultParams returns typical defaults for feature extraction.
func DefaultParams() Params {
	return Params{
		NumFeatures:        150,
		MagnitudeThreshold: 0.2,
		NMSKernelSize:      5,
		ScatterDistance:    10,
	}
}

type candidate struct {
	x, y      int
	magnitude float32
	label     uint8
}

// Extract runs the four-step extraction procedure over a
// gradient Map and an optional mask (nil or empty means "no mask": every
// pixel is a candidate). It returns InsufficientFeatures if fewer than
// params.NumFeatures survivors remain even at the scatter-distance
// feasibility floor (d=2).
func Extract(grad gradient.Map, mask []byte, params Params) ([]Feature, error) {
	const op = "feature.Extract"
	if grad.Rows == 0 || grad.Cols == 0 {
		return nil, matcherr.New(matcherr.InvalidInput, op, "empty gradient map")
	}
	if params.NumFeatures <= 0 {
		return nil, matcherr.New(matcherr.InvalidInput, op, "num_features must be positive")
	}

	directionSuppressed := directionNMS(grad)
	survivors := kernelLocalNMS(grad, directionSuppressed, params.NMSKernelSize, params.MagnitudeThreshold)

	labels := quantize.BuildLabelMap(grad.Magnitude, grad.Angle, grad.Rows, grad.Cols, params.MagnitudeThreshold)

	var candidates []candidate
	for r := 0; r < grad.Rows; r++ {
		for c := 0; c < grad.Cols; c++ {
			i := r*grad.Cols + c
			if !survivors[i] {
				continue
			}
			if mask != nil && len(mask) > 0 && mask[i] == 0 {
				continue
			}
			lbl := labels.Labels[i]
			if lbl == quantize.NoLabel {
				continue
			}
			candidates = append(candidates, candidate{x: c, y: r, magnitude: grad.Magnitude[i], label: lbl})
		}
	}

	selected := scatterSelect(candidates, params)
	if len(selected) < params.NumFeatures {
		return nil, matcherr.New(matcherr.InsufficientFeatures, op, "could not reach num_features even at the scatter-distance feasibility floor")
	}

	out := make([]Feature, len(selected))
	for i, cnd := range selected {
		out[i] = Feature{X: cnd.x, Y: cnd.y, Label: cnd.label}
	}
	return out, nil
}

// directionNMS quantizes each pixel's angle to one of {0,45,90,135} and
// zeroes the magnitude unless it is the local max against the two
// neighbors along that axis.
func directionNMS(grad gradient.Map) []float32 {
	rows, cols := grad.Rows, grad.Cols
	out := make([]float32, rows*cols)
	copy(out, grad.Magnitude)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			mag := grad.Magnitude[i]
			if mag == 0 {
				continue
			}
			dr, dc := axisOffset(grad.Angle[i])
			r1, c1 := r-dr, c-dc
			r2, c2 := r+dr, c+dc
			if inBounds(r1, c1, rows, cols) && grad.Magnitude[r1*cols+c1] > mag {
				out[i] = 0
				continue
			}
			if inBounds(r2, c2, rows, cols) && grad.Magnitude[r2*cols+c2] > mag {
				out[i] = 0
			}
		}
	}
	return out
}

// axisOffset maps an angle (mod 180, since gradient direction is a line
// not a ray for this purpose) to the nearest of {0,45,90,135} and returns
// the (row,col) step along that axis.
func axisOffset(angleDeg float32) (int, int) {
	a := math.Mod(float64(angleDeg), 180)
	if a < 0 {
		a += 180
	}
	switch {
	case a < 22.5 || a >= 157.5:
		return 0, 1 // 0 degrees: horizontal neighbors
	case a < 67.5:
		return 1, 1 // 45 degrees
	case a < 112.5:
		return 1, 0 // 90 degrees: vertical neighbors
	default:
		return 1, -1 // 135 degrees
	}
}

func inBounds(r, c, rows, cols int) bool {
	return r >= 0 && r < rows && c >= 0 && c < cols
}

// kernelLocalNMS zeroes every pixel at or above magnitudeThreshold unless
// it is the maximum within a nmsKernelSize x nmsKernelSize box centered on
// it, ties broken by first occurrence in row-major order.
func kernelLocalNMS(grad gradient.Map, directionSuppressed []float32, nmsKernelSize int, magnitudeThreshold float32) []bool {
	if nmsKernelSize%2 == 0 {
		nmsKernelSize++
	}
	radius := nmsKernelSize / 2
	rows, cols := grad.Rows, grad.Cols
	out := make([]bool, rows*cols)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			mag := directionSuppressed[i]
			if mag < magnitudeThreshold {
				continue
			}
			isMax := true
		search:
			for dr := -radius; dr <= radius; dr++ {
				rr := r + dr
				if rr < 0 || rr >= rows {
					continue
				}
				for dc := -radius; dc <= radius; dc++ {
					cc := c + dc
					if cc < 0 || cc >= cols {
						continue
					}
					if dr == 0 && dc == 0 {
						continue
					}
					other := directionSuppressed[rr*cols+cc]
					if other > mag || (other == mag && (rr < r || (rr == r && cc < c))) {
						isMax = false
						break search
					}
				}
			}
			out[i] = isMax
		}
	}
	return out
}

// scatterSelect implements the iterative-distance scatter step: sort by
// descending magnitude, then greedily pick candidates while maintaining a
// minimum pairwise distance d, decrementing d by 1 per retry until enough
// candidates survive or d reaches the feasibility floor of 2. Each retry
// reruns the greedy pick from scratch at the smaller d, and the loop
// terminates in at most initial-d-minus-2 steps. Once enough survive,
// the highest-magnitude numFeatures of them are kept, trimming any
// overshoot instead of re-tightening d (which could re-enter a distance
// the loop already rejected as too sparse).
func scatterSelect(candidates []candidate, params Params) []candidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].magnitude > sorted[j].magnitude })

	d := math.Max(float64(params.NMSKernelSize)*float64(len(sorted))/float64(params.NumFeatures), params.ScatterDistance)

	var picked []candidate
	for {
		picked = pickWithMinDistance(sorted, d)
		if len(picked) >= params.NumFeatures || d <= 2 {
			break
		}
		d--
	}
	if len(picked) > params.NumFeatures {
		picked = picked[:params.NumFeatures]
	}
	return picked
}

func pickWithMinDistance(sorted []candidate, d float64) []candidate {
	dSq := d * d
	var picked []candidate
	for _, cnd := range sorted {
		ok := true
		for _, p := range picked {
			dx := float64(cnd.x - p.x)
			dy := float64(cnd.y - p.y)
			if dx*dx+dy*dy < dSq {
				ok = false
				break
			}
		}
		if ok {
			picked = append(picked, cnd)
		}
	}
	return picked
}
