package detector

import (
	"testing"

	"shapematch/internal/feature"
	"shapematch/internal/linearmem"
	"shapematch/internal/response"
	"shapematch/internal/similarity"
	"shapematch/pkg/geometry"
)

func constantLevelMemory(t *testing.T, rows, cols, T int, label uint8) levelMemory {
	t.Helper()
	plane := make([]uint8, rows*cols)
	for i := range plane {
		plane[i] = response.MaxResponseValue
	}
	lm, err := linearmem.Linearize(plane, rows, cols, T)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}
	var mem similarity.Memories
	mem[label] = lm
	return levelMemory{rows: lm.OuterRows, cols: lm.OuterCols, memories: mem}
}

func TestMatchCoarsestParallelFindsPerfectMatch(t *testing.T) {
	lm := constantLevelMemory(t, 8, 8, 4, 2)
	variants := []*feature.ShapeTemplate{
		{Features: []feature.Feature{{X: 0, Y: 0, Label: 2}}},
	}
	hits := matchCoarsestParallel(variants, lm, 99)
	if len(hits) == 0 {
		t.Fatal("expected at least one hit at threshold 99 against a perfect-match memory")
	}
	for _, h := range hits {
		if h.similarity != 100 {
			t.Errorf("hit similarity = %v, want 100", h.similarity)
		}
	}
}

func TestFinalizeAppliesNMSRadius(t *testing.T) {
	templates := &TemplateSet{
		ID: "cls",
		Variants: [][]*feature.ShapeTemplate{
			{
				{Box: geometry.RotatedRect{Width: 8, Height: 8}, Angle: 0, Scale: 1},
			},
		},
	}
	hits := []hit{
		{variantIdx: 0, i: 0, j: 0, similarity: 100},
		{variantIdx: 0, i: 0, j: 1, similarity: 90}, // close to the first, should be suppressed
		{variantIdx: 0, i: 10, j: 10, similarity: 80}, // far away, should survive
	}
	params := MatchParams{SpreadT: 4, NMSRadius: 5, AngleStep: 1, ScaleStep: 0.1}
	points := finalize(hits, templates, params)
	if len(points) != 2 {
		t.Fatalf("got %d match points, want 2: %+v", len(points), points)
	}
	if points[0].Similarity != 100 {
		t.Errorf("points[0].Similarity = %v, want 100 (sorted descending)", points[0].Similarity)
	}
}

func TestFinalizeEmptyHitsReturnsNil(t *testing.T) {
	templates := &TemplateSet{ID: "cls", Variants: [][]*feature.ShapeTemplate{{}}}
	if got := finalize(nil, templates, MatchParams{SpreadT: 4}); got != nil {
		t.Errorf("expected nil for empty hits, got %+v", got)
	}
}
