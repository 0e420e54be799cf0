package detector

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"shapematch/internal/feature"
	"shapematch/internal/matcherr"
	"shapematch/internal/similarity"
)

// MatchParams configures the score threshold and NMS behavior of the
// coarse-to-fine match loop.
type MatchParams struct {
	ScoreThreshold float64 // [0,100]
	SpreadT        int     // tile size, must match the source's PyramidParams.SpreadT
	NMSRadius      float64 // 0 means derive from the template's diagonal / 8
	AngleStep      float64 // max Δangle to consider a duplicate
	ScaleStep      float64 // max Δscale to consider a duplicate
}

// hit is an internal candidate carried through the refinement loop; it
// keeps the variant index and pose so NMS can apply the Δangle/Δscale
// criteria before being stripped down to a public MatchPoint.
type hit struct {
	variantIdx int
	i, j       int // outer-grid coordinates at the current level
	similarity float64
}

// Match runs the coarse-to-fine pipeline (C9) for every class currently
// registered via AddTemplate, against the source bound under sourceID,
// storing results retrievable via MatchClass. ctx is checked between
// pyramid levels and between classes; partial results are discarded on
// cancellation.
func (d *Detector) Match(ctx context.Context, sourceID string, params MatchParams) error {
	const op = "Detector.Match"
	source, err := d.Source(sourceID)
	if err != nil {
		return err
	}
	if params.SpreadT <= 0 {
		params.SpreadT = 8
	}

	d.mu.RLock()
	classIDs := make([]string, 0, len(d.templates))
	templateSets := make([]*TemplateSet, 0, len(d.templates))
	for id, ts := range d.templates {
		classIDs = append(classIDs, id)
		templateSets = append(templateSets, ts)
	}
	d.mu.RUnlock()

	for idx, ts := range templateSets {
		select {
		case <-ctx.Done():
			return matcherr.Wrap(matcherr.Cancelled, op, ctx.Err())
		default:
		}

		points, err := d.matchOneClass(ctx, source, ts, params)
		if err != nil {
			return err
		}

		d.mu.Lock()
		d.matches[classIDs[idx]] = points
		d.mu.Unlock()
	}
	return nil
}

func (d *Detector) matchOneClass(ctx context.Context, source *SourceMemory, templates *TemplateSet, params MatchParams) ([]MatchPoint, error) {
	const op = "Detector.matchOneClass"
	levels := templates.NumLevels()
	if levels == 0 || levels != source.NumLevels() {
		return nil, matcherr.New(matcherr.InvalidInput, op, "template and source pyramid level counts must match")
	}

	coarsest := levels - 1
	hits := matchCoarsestParallel(templates.Variants[coarsest], source.levels[coarsest], params.ScoreThreshold)

	for lvl := coarsest - 1; lvl >= 0; lvl-- {
		select {
		case <-ctx.Done():
			return nil, matcherr.Wrap(matcherr.Cancelled, op, ctx.Err())
		default:
		}
		hits = refineLevel(hits, templates.Variants[lvl], source.levels[lvl], params.ScoreThreshold)
	}

	return finalize(hits, templates, params), nil
}

// matchCoarsestParallel computes the full similarity map for each
// surviving Shape Template variant at the coarsest level, partitioning
// variants across a worker pool sized to runtime.NumCPU(), using a
// goroutine/channel/WaitGroup fan-in.
func matchCoarsestParallel(variants []*feature.ShapeTemplate, lm levelMemory, threshold float64) []hit {
	numWorkers := runtime.NumCPU()
	if numWorkers > len(variants) {
		numWorkers = len(variants)
	}
	if numWorkers < 1 {
		return nil
	}

	jobs := make(chan int, len(variants))
	for vi := range variants {
		jobs <- vi
	}
	close(jobs)

	results := make(chan []hit, numWorkers)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []hit
			for vi := range jobs {
				tmpl := variants[vi]
				if tmpl == nil {
					continue
				}
				m, err := similarity.Compute(tmpl.Features, lm.memories)
				if err != nil {
					continue
				}
				for i := 0; i < m.Rows; i++ {
					for j := 0; j < m.Cols; j++ {
						if score := m.At(i, j); score >= threshold {
							local = append(local, hit{variantIdx: vi, i: i, j: j, similarity: score})
						}
					}
				}
			}
			results <- local
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []hit
	for local := range results {
		all = append(all, local...)
	}
	return all
}

// refineLevel projects each coarse-level hit down one pyramid level
// (doubling tile coordinates and dilating by one tile) and restricts C8 to
// those ROIs, retaining only candidates still at or above threshold.
func refineLevel(prev []hit, variants []*feature.ShapeTemplate, lm levelMemory, threshold float64) []hit {
	byVariant := make(map[int][]hit)
	for _, h := range prev {
		byVariant[h.variantIdx] = append(byVariant[h.variantIdx], h)
	}

	var out []hit
	for vi, hits := range byVariant {
		tmpl := variants[vi]
		if tmpl == nil {
			continue
		}

		rois := make([]similarity.ROI, len(hits))
		for k, h := range hits {
			rois[k] = similarity.ROI{
				RowLo: h.i*2 - 1, RowHi: h.i*2 + 1,
				ColLo: h.j*2 - 1, ColHi: h.j*2 + 1,
			}
		}

		m, err := similarity.ComputeROI(tmpl.Features, lm.memories, lm.rows, lm.cols, rois)
		if err != nil {
			continue
		}
		for _, roi := range rois {
			for i := max0(roi.RowLo); i <= minN(roi.RowHi, lm.rows-1); i++ {
				for j := max0(roi.ColLo); j <= minN(roi.ColHi, lm.cols-1); j++ {
					if score := m.At(i, j); score >= threshold {
						out = append(out, hit{variantIdx: vi, i: i, j: j, similarity: score})
					}
				}
			}
		}
	}
	return out
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func minN(v, n int) int {
	if v > n {
		return n
	}
	return v
}

// finalize converts level-0 hits to pixel-space MatchPoints, applies NMS,
// and returns them sorted by descending similarity (ties break on smaller
// (y,x), since template id is constant within a class).
func finalize(hits []hit, templates *TemplateSet, params MatchParams) []MatchPoint {
	if len(hits) == 0 {
		return nil
	}

	T := params.SpreadT
	type posed struct {
		hit
		angle, scale, diagonal float64
	}
	posedHits := make([]posed, len(hits))
	for i, h := range hits {
		tmpl := templates.Variants[0][h.variantIdx]
		diag := math.Hypot(tmpl.Box.Width, tmpl.Box.Height)
		posedHits[i] = posed{hit: h, angle: tmpl.Angle, scale: tmpl.Scale, diagonal: diag}
	}

	sort.SliceStable(posedHits, func(a, b int) bool {
		if posedHits[a].similarity != posedHits[b].similarity {
			return posedHits[a].similarity > posedHits[b].similarity
		}
		ay, ax := posedHits[a].i*T, posedHits[a].j*T
		by, bx := posedHits[b].i*T, posedHits[b].j*T
		if ay != by {
			return ay < by
		}
		return ax < bx
	})

	radius := params.NMSRadius
	var kept []posed
	for _, h := range posedHits {
		r := radius
		if r <= 0 {
			r = h.diagonal / 8
		}
		dup := false
		for _, k := range kept {
			dx := float64((h.j - k.j) * T)
			dy := float64((h.i - k.i) * T)
			dist := math.Hypot(dx, dy)
			if dist <= r && math.Abs(h.angle-k.angle) <= params.AngleStep && math.Abs(h.scale-k.scale) <= params.ScaleStep {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, h)
		}
	}

	out := make([]MatchPoint, len(kept))
	for i, h := range kept {
		out[i] = MatchPoint{
			X:          h.j * T,
			Y:          h.i * T,
			TemplateID: templates.ID,
			VariantIdx: h.variantIdx,
			Similarity: h.similarity,
		}
	}
	return out
}

// MatchClass returns the stored match points for a class id, sorted as
// left by Match (descending similarity).
func (d *Detector) MatchClass(id string) ([]MatchPoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pts, ok := d.matches[id]
	if !ok {
		return nil, matcherr.New(matcherr.IdNotFound, "Detector.MatchClass", id)
	}
	return pts, nil
}
