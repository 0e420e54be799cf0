// Package render implements the draw() host-canvas operation (C11): it
// paints a Shape Template's rotated bounding box and selected features at
// a Match Point's position onto a vector canvas, color-coded by
// similarity, so the host can export PNG/SVG/PDF without this package
// depending on any particular output format.
//
// Grounded on an overlay vocabulary (rectangles/polygons/circles as the
// drawable shape model) built on github.com/tdewolff/canvas, with
// pkg/colorutil supplying the similarity-to-color mapping.
package render

import (
	"image"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"gocv.io/x/gocv"

	"shapematch/internal/detector"
	"shapematch/internal/feature"
	"shapematch/internal/matcherr"
	"shapematch/pkg/colorutil"
	"shapematch/pkg/geometry"
)

// Options controls what draw() paints beyond the template outline.
type Options struct {
	DrawFeatures  bool
	StrokeWidthMM float64
}

// DefaultOptions returns sensible overlay defaults (thin strokes,
// feature points shown for inspection).
func DefaultOptions() Options {
	return Options{DrawFeatures: true, StrokeWidthMM: 0.5}
}

// Draw builds a canvas sized to bg, draws bg as the background raster,
// then strokes tmpl's rotated bounding box and (optionally) its features,
// transformed by pt's pose, color-coded by pt.Similarity.
func Draw(bg gocv.Mat, tmpl *feature.ShapeTemplate, pt detector.MatchPoint, opts Options) (*canvas.Canvas, error) {
	const op = "render.Draw"
	if bg.Empty() {
		return nil, matcherr.New(matcherr.InvalidInput, op, "empty background image")
	}
	if tmpl == nil {
		return nil, matcherr.New(matcherr.InvalidInput, op, "nil shape template")
	}

	w, h := float64(bg.Cols()), float64(bg.Rows())
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)

	img, err := bg.ToImage()
	if err != nil {
		return nil, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	ctx.DrawImage(0, 0, img, canvas.DPMM(1.0))

	strokeColor := colorutil.ScoreColor(pt.Similarity)
	ctx.SetStrokeColor(strokeColor)
	ctx.SetStrokeWidth(opts.StrokeWidthMM)

	box := transformBox(tmpl.Box, pt)
	drawPolygon(ctx, box.Corners())

	if opts.DrawFeatures {
		ctx.SetFillColor(strokeColor)
		for _, f := range tmpl.Features {
			p := transformPoint(geometry.Point2D{X: float64(f.X), Y: float64(f.Y)}, tmpl.Box.Center, pt)
			drawDot(ctx, p, 1.0)
		}
	}

	return c, nil
}

// transformBox re-centers tmpl's rotated box on the match point, keeping
// its stored angle (the box's own rotation already encodes the template
// variant's pose; only the translation changes per match).
func transformBox(box geometry.RotatedRect, pt detector.MatchPoint) geometry.RotatedRect {
	return geometry.RotatedRect{
		Center: geometry.Point2D{X: float64(pt.X), Y: float64(pt.Y)},
		Width:  box.Width,
		Height: box.Height,
		Angle:  box.Angle,
	}
}

// transformPoint maps a feature's local coordinate (relative to the
// template's own center) onto search-image coordinates at the match's
// position.
func transformPoint(local geometry.Point2D, templateCenter geometry.Point2D, pt detector.MatchPoint) geometry.Point2D {
	dx := local.X - templateCenter.X
	dy := local.Y - templateCenter.Y
	return geometry.Point2D{X: float64(pt.X) + dx, Y: float64(pt.Y) + dy}
}

func drawPolygon(ctx *canvas.Context, corners [4]geometry.Point2D) {
	p := &canvas.Path{}
	p.MoveTo(corners[0].X, corners[0].Y)
	for _, pt := range corners[1:] {
		p.LineTo(pt.X, pt.Y)
	}
	p.Close()
	ctx.DrawPath(0, 0, p)
}

func drawDot(ctx *canvas.Context, center geometry.Point2D, radius float64) {
	p := &canvas.Path{}
	p.MoveTo(center.X+radius, center.Y)
	for deg := 0.0; deg <= 360; deg += 45 {
		rad := deg * math.Pi / 180
		p.LineTo(center.X+radius*math.Cos(rad), center.Y+radius*math.Sin(rad))
	}
	p.Close()
	ctx.DrawPath(0, 0, p)
}

// ToRGBA rasterizes c at the given DPI-equivalent resolution into a
// standard image.RGBA, so callers that want a raster file (rather than
// SVG/PDF) don't need to depend on tdewolff/canvas's renderers package
// directly.
func ToRGBA(c *canvas.Canvas, resolution canvas.Resolution) *image.RGBA {
	return rasterizer.Draw(c, resolution, canvas.DefaultColorSpace)
}
