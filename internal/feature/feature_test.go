package feature

import (
	"testing"

	"shapematch/internal/gradient"
)

func TestAxisOffsetQuadrants(t *testing.T) {
	cases := []struct {
		angle      float32
		wantR, wantC int
	}{
		{0, 0, 1},
		{45, 1, 1},
		{90, 1, 0},
		{135, 1, -1},
		{180, 0, 1}, // folds back to 0
	}
	for _, tc := range cases {
		r, c := axisOffset(tc.angle)
		if r != tc.wantR || c != tc.wantC {
			t.Errorf("axisOffset(%v) = (%d,%d), want (%d,%d)", tc.angle, r, c, tc.wantR, tc.wantC)
		}
	}
}

func TestScatterSelectRespectsMinDistance(t *testing.T) {
	// Dense grid of candidates; scatter should still return exactly
	// NumFeatures well-spaced picks rather than clustering them.
	var candidates []candidate
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			candidates = append(candidates, candidate{x: x, y: y, magnitude: float32(x + y), label: 0})
		}
	}
	params := Params{NumFeatures: 20, MagnitudeThreshold: 0.1, NMSKernelSize: 5, ScatterDistance: 2}
	picked := scatterSelect(candidates, params)
	if len(picked) != params.NumFeatures {
		t.Fatalf("got %d features, want %d", len(picked), params.NumFeatures)
	}
	// The scatter distance never drops below its feasibility floor of 2.
	for a := 0; a < len(picked); a++ {
		for b := a + 1; b < len(picked); b++ {
			dx := picked[a].x - picked[b].x
			dy := picked[a].y - picked[b].y
			if dx*dx+dy*dy < 2*2 {
				t.Errorf("picks (%d,%d) and (%d,%d) are closer than 2", picked[a].x, picked[a].y, picked[b].x, picked[b].y)
			}
		}
	}
}

func TestExtractInsufficientFeatures(t *testing.T) {
	grad := gradient.Map{
		Rows:      4,
		Cols:      4,
		Magnitude: make([]float32, 16),
		Angle:     make([]float32, 16),
	}
	// Only one pixel above threshold: nowhere near enough candidates.
	grad.Magnitude[5] = 0.9
	grad.Angle[5] = 10

	params := Params{NumFeatures: 50, MagnitudeThreshold: 0.2, NMSKernelSize: 3, ScatterDistance: 2}
	_, err := Extract(grad, nil, params)
	if err == nil {
		t.Fatal("expected InsufficientFeatures error, got nil")
	}
}
