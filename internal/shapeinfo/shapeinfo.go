// Package shapeinfo implements the Shape-Info Producer (C2): it enumerates
// every (angle, scale) pair across configured ranges and produces a
// rotated/scaled copy of the template image (and mask) for each pair via
// affine warp.
//
// The source image is first padded with a BORDER_REPLICATE border of
// 1 + ceil(sqrt(rows^2+cols^2)) - max(rows,cols)/2 pixels per side (the
// mask with zeros) so no content is clipped by rotation at any angle, then each (angle, scale) pair is produced by a scale-outer,
// angle-inner double loop with eps-floored steps and warped via
// GetRotationMatrix2D + WarpAffine.
package shapeinfo

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"shapematch/internal/matcherr"
)

// Info is one (angle, scale) pair the producer emits.
type Info struct {
	Angle float64 // degrees
	Scale float64
}

// Range is an inclusive [Lo, Hi] range stepped by Step.
type Range struct {
	Lo, Hi, Step float64
}

// Config is the producer's configuration: angle/scale ranges, their step
// sizes, and the numerical slack eps used to make the upper bound
// inclusive under floating point stepping.
type Config struct {
	AngleRange Range
	ScaleRange Range
	Eps        float64
}

// DefaultEps is used when a Config leaves Eps at zero.
const DefaultEps = 1e-6

// Producer holds the padded template/mask and the enumerated (angle,
// scale) pairs, ready to emit a warped copy for each.
type Producer struct {
	cfg Config

	padded     gocv.Mat // template, BORDER_REPLICATE padded
	paddedMask gocv.Mat // mask, zero-padded (may be empty if no mask given)
	center     gocv.Point2f
	infos      []Info
}

// NewProducer pads templateImg (and mask, if non-empty) and enumerates the
// (angle, scale) pairs named by cfg. Returns ShapeInfoExhausted if the
// configured ranges emit zero pairs.
func NewProducer(templateImg, mask gocv.Mat, cfg Config) (*Producer, error) {
	const op = "shapeinfo.NewProducer"
	if templateImg.Empty() {
		return nil, matcherr.New(matcherr.InvalidInput, op, "empty template image")
	}
	if cfg.Eps <= 0 {
		cfg.Eps = DefaultEps
	}

	rows, cols := templateImg.Rows(), templateImg.Cols()
	diag := math.Sqrt(float64(rows*rows + cols*cols))
	border := int(1+math.Ceil(diag)) - (max(rows, cols) / 2)
	if border < 0 {
		border = 0
	}

	padded := gocv.NewMat()
	gocv.CopyMakeBorder(templateImg, &padded, border, border, border, border, gocv.BorderReplicate, gocv.NewScalar(0, 0, 0, 0))

	var paddedMask gocv.Mat
	if !mask.Empty() {
		paddedMask = gocv.NewMat()
		gocv.CopyMakeBorder(mask, &paddedMask, border, border, border, border, gocv.BorderConstant, gocv.NewScalar(0, 0, 0, 0))
	}

	infos := produceInfos(cfg)
	if len(infos) == 0 {
		padded.Close()
		if !paddedMask.Empty() {
			paddedMask.Close()
		}
		return nil, matcherr.New(matcherr.ShapeInfoExhausted, op, "angle/scale ranges produced no (angle, scale) pairs")
	}

	p := &Producer{
		cfg:        cfg,
		padded:     padded,
		paddedMask: paddedMask,
		center:     gocv.Point2f{X: float32(padded.Cols()) / 2, Y: float32(padded.Rows()) / 2},
		infos:      infos,
	}
	return p, nil
}

// produceInfos emits every (angle, scale) pair, scale as the outer loop
// and angle as the inner loop, both inclusive of their upper bound within
// eps, stepped by max(step, 2*eps).
func produceInfos(cfg Config) []Info {
	var infos []Info
	scaleStep := math.Max(cfg.ScaleRange.Step, 2*cfg.Eps)
	angleStep := math.Max(cfg.AngleRange.Step, 2*cfg.Eps)

	for scale := cfg.ScaleRange.Lo; scale <= cfg.ScaleRange.Hi+cfg.Eps; scale += scaleStep {
		for angle := cfg.AngleRange.Lo; angle <= cfg.AngleRange.Hi+cfg.Eps; angle += angleStep {
			infos = append(infos, Info{Angle: angle, Scale: scale})
		}
	}
	return infos
}

// Infos returns the enumerated (angle, scale) pairs in emission order.
func (p *Producer) Infos() []Info { return p.infos }

// SrcAt returns an affine-warped copy of the padded template for infos[i],
// using bilinear interpolation.
func (p *Producer) SrcAt(i int) gocv.Mat {
	return p.warp(p.padded, p.infos[i], gocv.InterpolationLinear)
}

// MaskAt returns an affine-warped copy of the padded mask for infos[i],
// using nearest-neighbor interpolation. Returns an empty Mat if the
// producer was built without a mask.
func (p *Producer) MaskAt(i int) gocv.Mat {
	if p.paddedMask.Empty() {
		return gocv.NewMat()
	}
	return p.warp(p.paddedMask, p.infos[i], gocv.InterpolationNearestNeighbor)
}

func (p *Producer) warp(src gocv.Mat, info Info, interp gocv.InterpolationFlags) gocv.Mat {
	rotMat := gocv.GetRotationMatrix2D(image.Point{X: int(p.center.X), Y: int(p.center.Y)}, info.Angle, info.Scale)
	defer rotMat.Close()

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, rotMat, image.Pt(src.Cols(), src.Rows()), interp, gocv.BorderConstant, gocv.NewScalar(0, 0, 0, 0))
	return dst
}

// Close releases the producer's padded template/mask Mats.
func (p *Producer) Close() {
	p.padded.Close()
	if !p.paddedMask.Empty() {
		p.paddedMask.Close()
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
