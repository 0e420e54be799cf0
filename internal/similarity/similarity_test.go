package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shapematch/internal/feature"
	"shapematch/internal/linearmem"
	"shapematch/internal/response"
)

func TestComputeFullScoreAtPerfectMatch(t *testing.T) {
	rows, cols, T := 8, 8, 4
	plane := make([]uint8, rows*cols)
	for i := range plane {
		plane[i] = response.MaxResponseValue
	}
	lm, err := linearmem.Linearize(plane, rows, cols, T)
	require.NoError(t, err)

	var memories Memories
	memories[3] = lm

	features := []feature.Feature{{X: 0, Y: 0, Label: 3}}
	m, err := Compute(features, memories)
	require.NoError(t, err)

	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			require.Equalf(t, 100.0, m.At(i, j), "At(%d,%d)", i, j)
		}
	}
}

func TestComputeRejectsEmptyFeatures(t *testing.T) {
	var memories Memories
	_, err := Compute(nil, memories)
	require.Error(t, err)
}

func TestComputeROIOnlyFillsRequestedRegion(t *testing.T) {
	rows, cols, T := 8, 8, 4
	plane := make([]uint8, rows*cols)
	for i := range plane {
		plane[i] = response.MaxResponseValue
	}
	lm, err := linearmem.Linearize(plane, rows, cols, T)
	require.NoError(t, err)
	var memories Memories
	memories[0] = lm

	features := []feature.Feature{{X: 0, Y: 0, Label: 0}}
	m, err := ComputeROI(features, memories, lm.OuterRows, lm.OuterCols, []ROI{{RowLo: 0, RowHi: 0, ColLo: 0, ColHi: 0}})
	require.NoError(t, err)
	require.Equal(t, 100.0, m.At(0, 0))
	require.Equal(t, 0.0, m.At(1, 1), "outside ROI should stay zero")
}
