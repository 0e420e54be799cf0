package main

import (
	"context"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tdewolff/canvas"
	"gocv.io/x/gocv"

	"shapematch/internal/detector"
	"shapematch/internal/feature"
	"shapematch/internal/imageio"
	"shapematch/internal/matcherr"
	"shapematch/internal/render"
	"shapematch/internal/shapeinfo"
)

// matchTimeout bounds how long a single POST /match request may run.
const matchTimeout = 60 * time.Second

// formMat saves the multipart file at fieldName to a temp file and loads
// it through imageio, so the daemon reuses the exact same decode path as
// the CLI. Returns an empty, non-error Mat if the field is absent.
func formMat(c echo.Context, fieldName string) (gocv.Mat, error) {
	const op = "shapematchd.formMat"
	fh, err := c.FormFile(fieldName)
	if err != nil {
		return gocv.NewMat(), nil
	}

	src, err := fh.Open()
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "shapematchd-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		return gocv.NewMat(), matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	tmp.Close()

	return imageio.LoadImage(tmp.Name())
}

func requireFormMat(c echo.Context, fieldName string) (gocv.Mat, error) {
	const op = "shapematchd.requireFormMat"
	if _, err := c.FormFile(fieldName); err != nil {
		return gocv.NewMat(), matcherr.New(matcherr.InvalidInput, op, "missing required file field "+fieldName)
	}
	return formMat(c, fieldName)
}

func formInt(c echo.Context, name string, def int) int {
	v := c.FormValue(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func formFloat(c echo.Context, name string, def float64) float64 {
	v := c.FormValue(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// handleAddSource implements POST /sources/:id (add_source).
func (s *Server) handleAddSource(c echo.Context) error {
	img, err := requireFormMat(c, "image")
	if err != nil {
		return httpError(err)
	}
	defer img.Close()

	mask, err := formMat(c, "mask")
	if err != nil {
		return httpError(err)
	}
	defer mask.Close()

	levels := formInt(c, "levels", 2)
	params := detector.DefaultPyramidParams()

	if err := s.det.AddSource(c.Param("id"), img, levels, mask, params); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id")})
}

// handleAddTemplate implements POST /templates/:id (add_template).
func (s *Server) handleAddTemplate(c echo.Context) error {
	img, err := requireFormMat(c, "image")
	if err != nil {
		return httpError(err)
	}
	defer img.Close()

	mask, err := formMat(c, "mask")
	if err != nil {
		return httpError(err)
	}
	defer mask.Close()

	levels := formInt(c, "levels", 2)

	producer, err := shapeinfo.NewProducer(img, mask, shapeinfo.Config{
		AngleRange: shapeinfo.Range{
			Lo: formFloat(c, "angle_lo", 0), Hi: formFloat(c, "angle_hi", 0), Step: formFloat(c, "angle_step", 1),
		},
		ScaleRange: shapeinfo.Range{
			Lo: formFloat(c, "scale_lo", 1), Hi: formFloat(c, "scale_hi", 1), Step: formFloat(c, "scale_step", 0.1),
		},
	})
	if err != nil {
		return httpError(err)
	}
	defer producer.Close()

	featureParams := feature.DefaultParams()
	featureParams.NumFeatures = formInt(c, "num_features", featureParams.NumFeatures)
	featureParams.MagnitudeThreshold = float32(formFloat(c, "magnitude_threshold", float64(featureParams.MagnitudeThreshold)))
	featureParams.NMSKernelSize = formInt(c, "nms_kernel_size", featureParams.NMSKernelSize)

	id, err := s.det.AddTemplate(c.Param("id"), img, levels, featureParams, mask, producer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id})
}

// handleMatch implements POST /match (match against class "default").
func (s *Server) handleMatch(c echo.Context) error {
	img, err := requireFormMat(c, "image")
	if err != nil {
		return httpError(err)
	}
	defer img.Close()

	levels := formInt(c, "levels", 2)
	if err := s.det.AddSource("default", img, levels, gocv.NewMat(), detector.DefaultPyramidParams()); err != nil {
		return httpError(err)
	}

	params := detector.MatchParams{
		ScoreThreshold: formFloat(c, "threshold", 80),
		AngleStep:      formFloat(c, "angle_step", 1),
		ScaleStep:      formFloat(c, "scale_step", 0.1),
		SpreadT:        formInt(c, "spread_t", 8),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), matchTimeout)
	defer cancel()
	if err := s.det.Match(ctx, "default", params); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// handleMatchClass implements GET /matches/:id (match_class).
func (s *Server) handleMatchClass(c echo.Context) error {
	pts, err := s.det.MatchClass(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pts)
}

// handleDraw implements GET /templates/:id/draw/:matchIndex (draw),
// returning a PNG of the chosen template outline at the requested match.
func (s *Server) handleDraw(c echo.Context) error {
	const op = "shapematchd.handleDraw"
	idx, err := strconv.Atoi(c.Param("matchIndex"))
	if err != nil {
		return httpError(matcherr.New(matcherr.InvalidInput, op, "matchIndex must be an integer"))
	}

	tmplSet, err := s.det.Template(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	pts, err := s.det.MatchClass(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if idx < 0 || idx >= len(pts) {
		return httpError(matcherr.New(matcherr.InvalidInput, op, "matchIndex out of range"))
	}

	variantIdx := pts[idx].VariantIdx
	if variantIdx < 0 || variantIdx >= len(tmplSet.Variants[0]) {
		return httpError(matcherr.New(matcherr.InvalidInput, op, "match point references an out-of-range template variant"))
	}
	variant := tmplSet.Variants[0][variantIdx]
	if variant == nil {
		return httpError(matcherr.New(matcherr.InsufficientFeatures, op, "matched template variant did not survive at level 0"))
	}

	bg, err := requireFormMat(c, "image")
	if err != nil {
		return httpError(err)
	}
	defer bg.Close()

	canv, err := render.Draw(bg, variant, pts[idx], render.DefaultOptions())
	if err != nil {
		return httpError(err)
	}
	rgba := render.ToRGBA(canv, canvas.DPMM(1.0))

	c.Response().Header().Set(echo.HeaderContentType, "image/png")
	c.Response().WriteHeader(http.StatusOK)
	return png.Encode(c.Response(), rgba)
}
