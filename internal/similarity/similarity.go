// Package similarity implements the Similarity Engine (C8): given a Shape
// Template's features and the Linear Memories at a pyramid level, compute
// a percent similarity map over the search image at that level, optionally
// restricted to a set of regions of interest.
//
// Compute produces a full-map score; ComputeROI restricts the scan to a
// set of candidate regions, trading completeness for speed on the finer
// pyramid levels where only a handful of candidate positions survive.
package similarity

import (
	"shapematch/internal/feature"
	"shapematch/internal/linearmem"
	"shapematch/internal/matcherr"
	"shapematch/internal/response"
	"shapematch/pkg/geometry"
)

// Map is a similarity score (percent, [0,100]) over the outer (tile) grid
// shared by every orientation's Linear Memory at one pyramid level.
type Map struct {
	Rows, Cols int // OuterRows, OuterCols
	Scores     []float64
}

func (m Map) at(i, j int) int { return i*m.Cols + j }

// Memories is the set of 16 per-orientation Linear Memories for one
// pyramid level, indexed by orientation label.
type Memories [response.NumOrientations]*linearmem.LinearMemory

// Compute zero-initializes the similarity buffer and adds, for each
// feature, its Linear Memory's contribution across the whole outer grid.
func Compute(features []feature.Feature, memories Memories) (Map, error) {
	const op = "similarity.Compute"
	if len(features) == 0 {
		return Map{}, matcherr.New(matcherr.InvalidInput, op, "template has no features")
	}
	rows, cols := -1, -1
	for _, lm := range memories {
		if lm != nil {
			rows, cols = lm.OuterRows, lm.OuterCols
			break
		}
	}
	if rows < 0 {
		return Map{}, matcherr.New(matcherr.InvalidInput, op, "no linear memories supplied")
	}

	acc := make([]float64, rows*cols)
	for _, f := range features {
		lm := memories[f.Label]
		if lm == nil {
			continue
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				acc[i*cols+j] += float64(lm.Sample(f.X, f.Y, i, j))
			}
		}
	}

	toPercent(acc, len(features))
	return Map{Rows: rows, Cols: cols, Scores: acc}, nil
}

// ROI restricts a candidate region, in outer-grid coordinates, for the
// ROI-restricted variant of C8.
type ROI struct {
	RowLo, RowHi int // inclusive
	ColLo, ColHi int // inclusive
}

// ComputeROI computes the similarity map only within rois, leaving every
// other cell at 0. Used during pyramid refinement (C9) where the previous,
// coarser level has already narrowed down candidate locations.
func ComputeROI(features []feature.Feature, memories Memories, rows, cols int, rois []ROI) (Map, error) {
	const op = "similarity.ComputeROI"
	if len(features) == 0 {
		return Map{}, matcherr.New(matcherr.InvalidInput, op, "template has no features")
	}

	acc := make([]float64, rows*cols)
	done := make([]bool, rows*cols)
	for _, roi := range rois {
		rowLo, rowHi := clamp(roi.RowLo, 0, rows-1), clamp(roi.RowHi, 0, rows-1)
		colLo, colHi := clamp(roi.ColLo, 0, cols-1), clamp(roi.ColHi, 0, cols-1)
		for i := rowLo; i <= rowHi; i++ {
			for j := colLo; j <= colHi; j++ {
				// Overlapping ROIs must not score a cell twice.
				if done[i*cols+j] {
					continue
				}
				done[i*cols+j] = true
				for _, f := range features {
					lm := memories[f.Label]
					if lm == nil {
						continue
					}
					acc[i*cols+j] += float64(lm.Sample(f.X, f.Y, i, j))
				}
			}
		}
	}

	toPercent(acc, len(features))
	return Map{Rows: rows, Cols: cols, Scores: acc}, nil
}

func toPercent(acc []float64, numFeatures int) {
	denom := float64(response.MaxResponseValue * numFeatures)
	for i := range acc {
		acc[i] = acc[i] / denom * 100
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// At returns the similarity score at outer-grid cell (i,j).
func (m Map) At(i, j int) float64 { return m.Scores[m.at(i, j)] }

// ToImageRect converts an outer-grid ROI (tile units) to an image-pixel
// geometry.RectInt at tile size T, useful when propagating ROIs between
// pyramid levels.
func (r ROI) ToImageRect(T int) geometry.RectInt {
	return geometry.RectInt{
		X:      r.ColLo * T,
		Y:      r.RowLo * T,
		Width:  (r.ColHi - r.ColLo + 1) * T,
		Height: (r.RowHi - r.RowLo + 1) * T,
	}
}
