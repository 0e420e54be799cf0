package linearmem

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLinearizeUnlinearizeRoundTrip(t *testing.T) {
	rows, cols, T := 8, 12, 4
	plane := make([]uint8, rows*cols)
	r := rand.New(rand.NewSource(1))
	for i := range plane {
		plane[i] = uint8(r.Intn(5))
	}

	lm, err := Linearize(plane, rows, cols, T)
	require.NoError(t, err)

	got := lm.Unlinearize()
	if diff := cmp.Diff(plane, got); diff != "" {
		t.Fatalf("Unlinearize round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLinearizeRejectsNonMultipleDims(t *testing.T) {
	plane := make([]uint8, 10*10)
	_, err := Linearize(plane, 10, 10, 3)
	require.Error(t, err)
}

func TestSampleMatchesDirectIndex(t *testing.T) {
	rows, cols, T := 8, 8, 4
	plane := make([]uint8, rows*cols)
	for i := range plane {
		plane[i] = uint8(i % 5)
	}
	lm, err := Linearize(plane, rows, cols, T)
	if err != nil {
		t.Fatalf("Linearize: %v", err)
	}

	// Feature at offset (fx=5, fy=1): tile offset b=(1%4)*4+(5%4)=1*4+1=5,
	// divisor (fx/4, fy/4) = (1, 0).
	fx, fy := 5, 1
	for i := 0; i < lm.OuterRows; i++ {
		for j := 0; j < lm.OuterCols; j++ {
			got := lm.Sample(fx, fy, i, j)
			dx, dy := lm.TileDivisor(fx, fy)
			ii, jj := i+dy, j+dx
			var want uint8
			if ii >= 0 && ii < lm.OuterRows && jj >= 0 && jj < lm.OuterCols {
				srcRow := fy%T + ii*T
				srcCol := fx%T + jj*T
				want = plane[srcRow*cols+srcCol]
			}
			if got != want {
				t.Fatalf("Sample(%d,%d,%d,%d) = %d, want %d", fx, fy, i, j, got, want)
			}
		}
	}
}
