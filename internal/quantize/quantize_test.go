package quantize

import "testing"

func TestAngleToLabelWraps(t *testing.T) {
	cases := []struct {
		angle float64
		want  uint8
	}{
		{0, 0},
		{360, 0},
		{-360, 0},
		{11.25, 1}, // just past the first bin center step
		{180, 0},   // opposite direction folds onto the same label
		{190, 0},
	}
	for _, tc := range cases {
		if got := AngleToLabel(tc.angle); got != tc.want {
			t.Errorf("AngleToLabel(%v) = %d, want %d", tc.angle, got, tc.want)
		}
	}
}

func TestBuildLabelMapBelowThreshold(t *testing.T) {
	mag := []float32{0.1, 0.5}
	ang := []float32{10, 20}
	lm := BuildLabelMap(mag, ang, 1, 2, 0.2)
	if lm.Labels[0] != NoLabel {
		t.Errorf("expected NoLabel for sub-threshold pixel, got %d", lm.Labels[0])
	}
	if lm.Labels[1] == NoLabel {
		t.Errorf("expected a real label for above-threshold pixel")
	}
}

func TestDominantBitmaskMonotonic(t *testing.T) {
	// A uniform 5x5 block all labeled 3 should produce bit 3 set everywhere
	// with a generous threshold count.
	rows, cols := 5, 5
	labels := LabelMap{Rows: rows, Cols: cols, Labels: make([]uint8, rows*cols)}
	for i := range labels.Labels {
		labels.Labels[i] = 3
	}
	mask := DominantBitmask(labels, 3, 1)
	for _, m := range mask {
		if m&(1<<3) == 0 {
			t.Fatalf("expected bit 3 set, got mask %016b", m)
		}
	}
}

func TestDominantBitmaskZeroBelowThresholdCount(t *testing.T) {
	rows, cols := 3, 3
	labels := LabelMap{Rows: rows, Cols: cols, Labels: make([]uint8, rows*cols)}
	labels.Labels[4] = 5 // single pixel label, center
	for i := range labels.Labels {
		if i != 4 {
			labels.Labels[i] = NoLabel
		}
	}
	mask := DominantBitmask(labels, 3, 5)
	for _, m := range mask {
		if m != 0 {
			t.Fatalf("expected zero mask when valid label count below threshold, got %016b", m)
		}
	}
}
