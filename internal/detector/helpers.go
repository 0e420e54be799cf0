package detector

import "gocv.io/x/gocv"

// padUint16 copies a (rows x cols) bitmask into the top-left corner of a
// (paddedRows x paddedCols) zero-filled buffer.
func padUint16(src []uint16, rows, cols, paddedRows, paddedCols int) []uint16 {
	if rows == paddedRows && cols == paddedCols {
		return src
	}
	out := make([]uint16, paddedRows*paddedCols)
	for r := 0; r < rows; r++ {
		copy(out[r*paddedCols:r*paddedCols+cols], src[r*cols:r*cols+cols])
	}
	return out
}

// matToByteSlice reads a single-channel 8-bit Mat into a row-major []byte.
func matToByteSlice(m gocv.Mat) []byte {
	rows, cols := m.Rows(), m.Cols()
	out := make([]byte, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = m.GetUCharAt(r, c)
		}
	}
	return out
}
