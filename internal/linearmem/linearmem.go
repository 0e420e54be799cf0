// Package linearmem reorganizes a response map into T^2 interleaved
// buffers (C7), so that scoring a translated template against a grid of
// candidate positions becomes a sequence of aligned additions over
// contiguous memory, instead of a strided gather.
//
// Each linear memory is T^2 row-major buffers, one per tile offset; the
// tile offset for (r,c) is (r%T)*T+(c%T), and its position within that
// buffer is the linear index (r/T)*(cols/T)+(c/T).
package linearmem

import "shapematch/internal/matcherr"

// LinearMemory is the tile-interleaved reorganization of one response map.
type LinearMemory struct {
	T                   int
	OuterRows, OuterCols int // (padded rows)/T, (padded cols)/T
	buffers             [][]uint8 // T*T buffers, each length OuterRows*OuterCols
}

// PadToMultiple returns the smallest n' >= n that is a multiple of T.
func PadToMultiple(n, T int) int {
	if n%T == 0 {
		return n
	}
	return (n/T + 1) * T
}

// Linearize reorganizes plane (rows x cols, row-major, both dimensions
// already multiples of T) into T^2 buffers. Buffer b = dy*T+dx holds the
// samples at positions (dy+i*T, dx+j*T) in row-major order of (i,j).
func Linearize(plane []uint8, rows, cols, T int) (*LinearMemory, error) {
	const op = "linearmem.Linearize"
	if T <= 0 {
		return nil, matcherr.New(matcherr.InvalidInput, op, "tile size T must be positive")
	}
	if rows%T != 0 || cols%T != 0 {
		return nil, matcherr.New(matcherr.InvalidInput, op, "plane dimensions must be multiples of T")
	}

	outerRows, outerCols := rows/T, cols/T
	lm := &LinearMemory{T: T, OuterRows: outerRows, OuterCols: outerCols, buffers: make([][]uint8, T*T)}

	for dy := 0; dy < T; dy++ {
		for dx := 0; dx < T; dx++ {
			b := dy*T + dx
			buf := make([]uint8, outerRows*outerCols)
			for i := 0; i < outerRows; i++ {
				srcRow := dy + i*T
				for j := 0; j < outerCols; j++ {
					srcCol := dx + j*T
					buf[i*outerCols+j] = plane[srcRow*cols+srcCol]
				}
			}
			lm.buffers[b] = buf
		}
	}
	return lm, nil
}

// Unlinearize rebuilds the original (rows x cols) plane. It is the
// inverse of Linearize and is used to verify the linearize/unlinearize
// round trip.
func (lm *LinearMemory) Unlinearize() []uint8 {
	rows, cols := lm.OuterRows*lm.T, lm.OuterCols*lm.T
	plane := make([]uint8, rows*cols)
	for dy := 0; dy < lm.T; dy++ {
		for dx := 0; dx < lm.T; dx++ {
			b := dy*lm.T + dx
			buf := lm.buffers[b]
			for i := 0; i < lm.OuterRows; i++ {
				dstRow := dy + i*lm.T
				for j := 0; j < lm.OuterCols; j++ {
					dstCol := dx + j*lm.T
					plane[dstRow*cols+dstCol] = buf[i*lm.OuterCols+j]
				}
			}
		}
	}
	return plane
}

// TileOffset returns the buffer index b = (fy mod T)*T + (fx mod T) for a
// feature offset (fx, fy).
func (lm *LinearMemory) TileOffset(fx, fy int) int {
	return mod(fy, lm.T)*lm.T + mod(fx, lm.T)
}

// TileDivisor returns (fx div T, fy div T), the whole-tile part of a
// feature offset, used to shift which outer-grid cell a buffer sample
// corresponds to.
func (lm *LinearMemory) TileDivisor(fx, fy int) (int, int) {
	return floordiv(fx, lm.T), floordiv(fy, lm.T)
}

// Buffer returns the raw buffer for tile offset b, addressable in
// row-major (i,j) order over the OuterRows x OuterCols grid.
func (lm *LinearMemory) Buffer(b int) []uint8 { return lm.buffers[b] }

// Sample returns the response value for a feature at offset (fx, fy) as
// seen from outer-grid candidate position (i, j), or 0 if the shifted
// position falls outside the outer grid (the candidate is too close to
// the image border for this feature to apply).
func (lm *LinearMemory) Sample(fx, fy, i, j int) uint8 {
	b := lm.TileOffset(fx, fy)
	dx, dy := lm.TileDivisor(fx, fy)
	ii, jj := i+dy, j+dx
	if ii < 0 || ii >= lm.OuterRows || jj < 0 || jj >= lm.OuterCols {
		return 0
	}
	return lm.buffers[b][ii*lm.OuterCols+jj]
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func floordiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
