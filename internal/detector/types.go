// Package detector implements the Detector / Match Pipeline (C9): an
// explicit registry of source and template pyramids keyed by caller-
// supplied ids, and the coarse-to-fine match loop that drives the
// Similarity Engine (C8) down the pyramid with ROI propagation and a
// final NMS pass over match hits.
//
// Sources and templates are held in maps keyed by caller-supplied id, with
// a worker-pool pattern for parallel per-template matching.
package detector

import (
	"shapematch/internal/feature"
	"shapematch/internal/similarity"
)

// MatchPoint is a single hit: location, class/template-set identifier,
// the specific (angle, scale) variant within that set that produced the
// hit, and similarity percent. VariantIdx indexes TemplateSet.Variants at
// level 0 and is what Draw needs to recover the matched pose: a class can
// hold many variants, and the one that wins at one match point isn't
// necessarily the one that wins at another.
type MatchPoint struct {
	X, Y       int
	TemplateID string
	VariantIdx int
	Similarity float64
}

// levelMemory bundles the per-orientation Linear Memories for one pyramid
// level, plus the outer-grid dimensions they share.
type levelMemory struct {
	rows, cols int
	memories   similarity.Memories
}

// SourceMemory is everything addSource produces and owns for one class id:
// per pyramid level, the 16 Linear Memories built from that level's
// response maps.
type SourceMemory struct {
	levels []levelMemory
}

// NumLevels returns how many pyramid levels this source was built with.
func (s *SourceMemory) NumLevels() int { return len(s.levels) }

// TemplateSet is everything addTemplate produces for one class id: for
// each pyramid level, one Shape Template per (angle, scale) variant
// emitted by the shape-info producer, aligned by index across levels. A
// nil entry means that variant's extraction failed with
// InsufficientFeatures at that level and is skipped during matching.
type TemplateSet struct {
	ID       string
	Variants [][]*feature.ShapeTemplate // Variants[level][variantIdx]
}

// NumLevels returns how many pyramid levels this template set was built with.
func (t *TemplateSet) NumLevels() int { return len(t.Variants) }
