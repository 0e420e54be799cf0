package detector

import (
	"image"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gocv.io/x/gocv"

	"shapematch/internal/feature"
	"shapematch/internal/gradient"
	"shapematch/internal/linearmem"
	"shapematch/internal/matcherr"
	"shapematch/internal/pyramid"
	"shapematch/internal/quantize"
	"shapematch/internal/response"
	"shapematch/internal/shapeinfo"
	"shapematch/internal/similarity"
	"shapematch/pkg/geometry"
)

// PyramidParams configures the per-level quantization/spreading/linearization
// steps shared by addSource's pipeline (C3, C4, C6, C7).
type PyramidParams struct {
	MagnitudeThreshold float32 // normalized [0,1], default 0.2
	CountKernelSize    int     // odd, default 5
	ThresholdCount     int     // 0 means quantize.DefaultThresholdCount(CountKernelSize)
	SpreadT            int     // tile size, must be a power of two <= 8, default 8
}

// DefaultPyramidParams returns typical defaults for the pyramid pipeline.
func DefaultPyramidParams() PyramidParams {
	return PyramidParams{MagnitudeThreshold: 0.2, CountKernelSize: 5, SpreadT: 8}
}

// Detector owns, keyed by caller-supplied class id, a source memory
// pyramid, a template pyramid, and a list of match points. Entries live
// until a later call stores under the same id or the Detector is
// discarded; no method removes an id. No back-references exist between
// entries, so overwriting one leaves the others intact.
type Detector struct {
	mu sync.RWMutex

	sources   map[string]*SourceMemory
	templates map[string]*TemplateSet
	matches   map[string][]MatchPoint

	logger *zap.SugaredLogger
}

// New constructs an empty Detector. If logger is nil, a no-op logger is used.
func New(logger *zap.SugaredLogger) *Detector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Detector{
		sources:   make(map[string]*SourceMemory),
		templates: make(map[string]*TemplateSet),
		matches:   make(map[string][]MatchPoint),
		logger:    logger,
	}
}

// AddSource builds the search-image pyramid and, at each level, its
// response maps and linear memories (C1, C3, C4, C6, C7), storing the
// result by id. mask may be an empty Mat (no masking).
func (d *Detector) AddSource(id string, img gocv.Mat, levels int, mask gocv.Mat, params PyramidParams) error {
	const op = "Detector.AddSource"
	if id == "" {
		return matcherr.New(matcherr.InvalidInput, op, "id must not be empty")
	}
	if img.Empty() {
		return matcherr.New(matcherr.InvalidInput, op, "empty source image")
	}
	if levels < 1 {
		return matcherr.New(matcherr.InvalidInput, op, "levels must be >= 1")
	}
	normalizeParams(&params)

	working := img
	if !mask.Empty() {
		masked := gocv.NewMat()
		img.CopyToWithMask(&masked, mask)
		working = masked
		defer masked.Close()
	}

	pyr, err := pyramid.Build(working, levels)
	if err != nil {
		return err
	}
	defer pyr.Close()

	levelMemories := make([]levelMemory, levels)
	for lvl := 0; lvl < levels; lvl++ {
		lm, err := buildLevelMemory(pyr.At(lvl), params)
		if err != nil {
			return matcherr.Wrap(matcherr.InvalidInput, op, err)
		}
		levelMemories[lvl] = lm
	}

	d.mu.Lock()
	d.sources[id] = &SourceMemory{levels: levelMemories}
	d.mu.Unlock()
	return nil
}

func buildLevelMemory(mat gocv.Mat, params PyramidParams) (levelMemory, error) {
	grad, err := gradient.Compute(mat)
	if err != nil {
		return levelMemory{}, err
	}

	labels := quantize.BuildLabelMap(grad.Magnitude, grad.Angle, grad.Rows, grad.Cols, params.MagnitudeThreshold)
	thresholdCount := params.ThresholdCount
	if thresholdCount <= 0 {
		thresholdCount = quantize.DefaultThresholdCount(params.CountKernelSize)
	}
	bitmask := quantize.DominantBitmask(labels, params.CountKernelSize, thresholdCount)

	paddedRows := linearmem.PadToMultiple(grad.Rows, params.SpreadT)
	paddedCols := linearmem.PadToMultiple(grad.Cols, params.SpreadT)
	padded := padUint16(bitmask, grad.Rows, grad.Cols, paddedRows, paddedCols)

	spread := response.Spread(padded, paddedRows, paddedCols, params.SpreadT)
	maps := response.Build(spread, paddedRows, paddedCols)

	var mem similarity.Memories
	for k := 0; k < response.NumOrientations; k++ {
		lm, err := linearmem.Linearize(maps.Planes[k], paddedRows, paddedCols, params.SpreadT)
		if err != nil {
			return levelMemory{}, err
		}
		mem[k] = lm
	}

	return levelMemory{rows: paddedRows / params.SpreadT, cols: paddedCols / params.SpreadT, memories: mem}, nil
}

// AddTemplate enumerates producer's (angle, scale) pairs, warps the
// template for each, pyramids it, and extracts features at every level
// (C2, C1, C3, C5). Variants that fail with InsufficientFeatures at a
// given level are logged and skipped rather than aborting the whole
// template; the result is stored by id. If id is empty, a uuid is
// generated and returned.
func (d *Detector) AddTemplate(id string, img gocv.Mat, levels int, params feature.Params, mask gocv.Mat, producer *shapeinfo.Producer) (string, error) {
	const op = "Detector.AddTemplate"
	if img.Empty() {
		return "", matcherr.New(matcherr.InvalidInput, op, "empty template image")
	}
	if levels < 1 {
		return "", matcherr.New(matcherr.InvalidInput, op, "levels must be >= 1")
	}
	if producer == nil {
		return "", matcherr.New(matcherr.InvalidInput, op, "shape-info producer is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	infos := producer.Infos()
	variants := make([][]*feature.ShapeTemplate, levels)

	for vi, info := range infos {
		src := producer.SrcAt(vi)
		maskWarp := producer.MaskAt(vi)

		pyr, err := pyramid.Build(src, levels)
		if err != nil {
			src.Close()
			if !maskWarp.Empty() {
				maskWarp.Close()
			}
			return "", err
		}

		for lvl := 0; lvl < levels; lvl++ {
			mat := pyr.At(lvl)
			grad, err := gradient.Compute(mat)
			if err != nil {
				pyr.Close()
				src.Close()
				if !maskWarp.Empty() {
					maskWarp.Close()
				}
				return "", err
			}

			var maskBytes []byte
			if !maskWarp.Empty() {
				levelMask := gocv.NewMat()
				gocv.Resize(maskWarp, &levelMask, image.Pt(mat.Cols(), mat.Rows()), 0, 0, gocv.InterpolationNearestNeighbor)
				maskBytes = matToByteSlice(levelMask)
				levelMask.Close()
			}

			feats, err := feature.Extract(grad, maskBytes, params)
			if err != nil {
				if matcherr.Is(err, matcherr.InsufficientFeatures) {
					d.logger.Warnw("template variant has insufficient features, skipping",
						"template_id", id, "level", lvl, "angle", info.Angle, "scale", info.Scale)
					variants[lvl] = append(variants[lvl], nil)
					continue
				}
				pyr.Close()
				src.Close()
				if !maskWarp.Empty() {
					maskWarp.Close()
				}
				return "", err
			}

			box := geometry.RotatedRect{
				Center: geometry.Point2D{X: float64(mat.Cols()) / 2, Y: float64(mat.Rows()) / 2},
				Width:  float64(mat.Cols()),
				Height: float64(mat.Rows()),
				Angle:  info.Angle,
			}
			variants[lvl] = append(variants[lvl], &feature.ShapeTemplate{
				Features: feats,
				Box:      box,
				Level:    lvl,
				Angle:    info.Angle,
				Scale:    info.Scale,
			})
		}

		pyr.Close()
		src.Close()
		if !maskWarp.Empty() {
			maskWarp.Close()
		}
	}

	d.mu.Lock()
	d.templates[id] = &TemplateSet{ID: id, Variants: variants}
	d.mu.Unlock()
	return id, nil
}

// Source returns the registered source memory for id, or IdNotFound.
func (d *Detector) Source(id string) (*SourceMemory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sources[id]
	if !ok {
		return nil, matcherr.New(matcherr.IdNotFound, "Detector.Source", id)
	}
	return s, nil
}

// Template returns the registered template set for id, or IdNotFound.
func (d *Detector) Template(id string) (*TemplateSet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.templates[id]
	if !ok {
		return nil, matcherr.New(matcherr.IdNotFound, "Detector.Template", id)
	}
	return t, nil
}

func normalizeParams(p *PyramidParams) {
	if p.MagnitudeThreshold <= 0 {
		p.MagnitudeThreshold = 0.2
	}
	if p.CountKernelSize <= 0 {
		p.CountKernelSize = 5
	}
	if p.SpreadT <= 0 {
		p.SpreadT = 8
	}
}
