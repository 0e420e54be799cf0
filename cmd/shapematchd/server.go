package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"shapematch/internal/detector"
	"shapematch/internal/matcherr"
	"shapematch/internal/version"
)

const (
	_defaultAddr            = "127.0.0.1:8090"
	_defaultShutdownTimeout = 5 * time.Second
)

// Server wraps an echo.Echo and the Detector it exposes over HTTP: an
// echo instance plus start/notify/shutdown wiring for graceful lifecycle
// management.
type Server struct {
	echo            *echo.Echo
	addr            string
	notify          chan error
	shutdownTimeout time.Duration
	det             *detector.Detector
	logger          *zap.SugaredLogger
}

// NewServer builds a Server bound to det, listening on addr ("" uses the
// default).
func NewServer(addr string, det *detector.Detector, logger *zap.SugaredLogger) *Server {
	if addr == "" {
		addr = _defaultAddr
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	s := &Server{
		echo:            e,
		addr:            addr,
		notify:          make(chan error, 1),
		shutdownTimeout: _defaultShutdownTimeout,
		det:             det,
		logger:          logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.POST("/sources/:id", s.handleAddSource)
	s.echo.POST("/templates/:id", s.handleAddTemplate)
	s.echo.POST("/match", s.handleMatch)
	s.echo.GET("/matches/:id", s.handleMatchClass)
	s.echo.GET("/templates/:id/draw/:matchIndex", s.handleDraw)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_commit": version.GitCommit,
		"build_time": version.BuildTime,
	})
}

// Start launches the server in a background goroutine; errors (including
// a clean shutdown's http.ErrServerClosed) are delivered on Notify.
func (s *Server) Start() {
	go func() {
		s.notify <- s.echo.Start(s.addr)
		close(s.notify)
	}()
}

// Notify returns the channel Start delivers its terminal error on.
func (s *Server) Notify() <-chan error { return s.notify }

// Shutdown stops the server gracefully within shutdownTimeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// httpError maps a matcherr.Kind to an HTTP status, falling back to 500
// for unrecognized errors.
func httpError(err error) error {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	switch {
	case matcherr.Is(err, matcherr.InvalidInput):
		status = http.StatusBadRequest
	case matcherr.Is(err, matcherr.IdNotFound):
		status = http.StatusNotFound
	case matcherr.Is(err, matcherr.InsufficientFeatures):
		status = http.StatusUnprocessableEntity
	case matcherr.Is(err, matcherr.Cancelled):
		status = 499
	case matcherr.Is(err, matcherr.ShapeInfoExhausted):
		status = http.StatusBadRequest
	}
	return echo.NewHTTPError(status, fmt.Sprintf("%v", err))
}
