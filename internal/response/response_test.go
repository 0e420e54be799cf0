package response

import "testing"

func TestSimilarityTableRange(t *testing.T) {
	table := SimilarityTable()
	for mask := 0; mask < len(table); mask += 4099 { // sample, full table is 65536 rows
		for k := 0; k < NumOrientations; k++ {
			if table[mask][k] > MaxResponseValue {
				t.Fatalf("table[%d][%d] = %d exceeds MaxResponseValue %d", mask, k, table[mask][k], MaxResponseValue)
			}
		}
	}
}

func TestSimilarityTableSelfMatchIsMax(t *testing.T) {
	table := SimilarityTable()
	for k := 0; k < NumOrientations; k++ {
		mask := uint16(1 << uint(k))
		if table[mask][k] != MaxResponseValue {
			t.Errorf("table[bit %d][%d] = %d, want max %d (cos(0)=1)", k, k, table[mask][k], MaxResponseValue)
		}
	}
}

func TestSpreadIsMonotonic(t *testing.T) {
	rows, cols, T := 4, 4, 2
	bitmask := make([]uint16, rows*cols)
	bitmask[5] = 0b0001 // one bit set at (1,1)

	spread := Spread(bitmask, rows, cols, T)
	for i := range bitmask {
		if BitsSet(spread[i]) < BitsSet(bitmask[i]) {
			t.Fatalf("spread at %d lost bits: %016b -> %016b", i, bitmask[i], spread[i])
		}
	}
	// The spread window starting at (0,0) covers (1,1), so it must pick up the bit.
	if spread[0] == 0 {
		t.Errorf("expected spread[0] to include the bit from (1,1) within its T-window")
	}
}

func TestBuildResponseMapsUsesTable(t *testing.T) {
	rows, cols := 2, 2
	spread := []uint16{0, 1, 1 << 5, 0xFFFF}
	maps := Build(spread, rows, cols)
	table := SimilarityTable()
	for k := 0; k < NumOrientations; k++ {
		for i, mask := range spread {
			if maps.Planes[k][i] != table[mask][k] {
				t.Fatalf("plane %d pixel %d = %d, want %d", k, i, maps.Planes[k][i], table[mask][k])
			}
		}
	}
}
