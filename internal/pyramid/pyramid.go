// Package pyramid builds the coarse-to-fine image pyramid (C1) shared by
// both the search image and every warped template variant.
//
// The source is first cropped to a multiple of 2^levels, then iteratively
// downsampled with PyrDown. Mat lifetime follows standard gocv Close
// discipline.
package pyramid

import (
	"image"

	"gocv.io/x/gocv"

	"shapematch/internal/matcherr"
)

// Pyramid is a read-only sequence of successively half-scaled levels.
// Level 0 is the finest (the cropped source); level Len()-1 is the
// coarsest.
type Pyramid struct {
	levels []gocv.Mat
}

// Build crops src so both dimensions are a multiple of 2^levels, uses the
// cropped view as level 0, and fills the remaining levels-1 levels with
// successive Gaussian-downsampled copies via PyrDown. levels must be
// >= 1 or InvalidInput is returned.
func Build(src gocv.Mat, levels int) (*Pyramid, error) {
	const op = "pyramid.Build"
	if src.Empty() {
		return nil, matcherr.New(matcherr.InvalidInput, op, "empty source image")
	}
	if levels < 1 {
		return nil, matcherr.New(matcherr.InvalidInput, op, "levels must be >= 1")
	}

	factor := 1 << uint(levels)
	rows := (src.Rows() / factor) * factor
	cols := (src.Cols() / factor) * factor
	if rows == 0 || cols == 0 {
		return nil, matcherr.New(matcherr.InvalidInput, op, "source too small for requested pyramid levels")
	}

	cropped := src.Region(image.Rect(0, 0, cols, rows))
	p := &Pyramid{levels: make([]gocv.Mat, levels)}
	p.levels[0] = cropped

	for i := 1; i < levels; i++ {
		down := gocv.NewMat()
		gocv.PyrDown(p.levels[i-1], &down, image.Point{}, gocv.BorderDefault)
		p.levels[i] = down
	}

	return p, nil
}

// Len returns the number of levels.
func (p *Pyramid) Len() int { return len(p.levels) }

// At returns a read-only view of level i. Level 0 is finest.
func (p *Pyramid) At(i int) gocv.Mat { return p.levels[i] }

// Close releases every level's underlying Mat.
func (p *Pyramid) Close() {
	for _, m := range p.levels {
		m.Close()
	}
}
