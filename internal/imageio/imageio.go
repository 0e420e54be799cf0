// Package imageio loads search/template images from disk into gocv.Mat,
// dispatching on file extension (C10). PNG/JPEG go through the standard
// image package; TIFF and DICOM get dedicated decoders, since neither
// format is handled by Go's image.Decode out of the box.
//
// Loads images via image.Decode plus a blank golang.org/x/image/tiff
// import for TIFF support, converting the result to a gocv.Mat by hand.
package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"

	"shapematch/internal/matcherr"
)

// LoadImage decodes path into a gocv.Mat, selecting a decoder by file
// extension. The caller owns the returned Mat and must Close it.
func LoadImage(path string) (gocv.Mat, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".dcm" {
		return loadDICOM(path)
	}
	return loadStdlibImage(path)
}

func loadStdlibImage(path string) (gocv.Mat, error) {
	const op = "imageio.loadStdlibImage"
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	return ImageToMat(img), nil
}

// ImageToMat converts a standard image.Image into a 3-channel BGR
// gocv.Mat via a per-pixel conversion loop.
func ImageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt3(y, x, 0, uint8(b>>8))
			mat.SetUCharAt3(y, x, 1, uint8(g>>8))
			mat.SetUCharAt3(y, x, 2, uint8(r>>8))
		}
	}
	return mat
}

// loadDICOM extracts the first frame's pixel data as an 8-bit grayscale
// Mat. Multi-frame series and photometric interpretations beyond
// MONOCHROME2/RGB are not supported.
func loadDICOM(path string) (gocv.Mat, error) {
	const op = "imageio.loadDICOM"
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, err)
	}

	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, fmt.Errorf("no pixel data element: %w", err))
	}

	pixelInfo, ok := pixelElem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(pixelInfo.Frames) == 0 {
		return gocv.NewMat(), matcherr.New(matcherr.InvalidInput, op, "DICOM file has no frames")
	}

	img, err := pixelInfo.Frames[0].GetImage()
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, fmt.Errorf("decode DICOM frame: %w", err))
	}

	bgr := ImageToMat(img)
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	bgr.Close()
	return gray, nil
}
