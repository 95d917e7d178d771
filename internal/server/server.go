// Package server exposes the face replacement filter over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/menta2k/strangeway"
	"github.com/menta2k/strangeway/internal/utils"
	"github.com/menta2k/strangeway/pkg/overlay"
	"github.com/menta2k/strangeway/pkg/processing"
)

// ErrNoQueryParameters indicates a filter request without an image URL
var ErrNoQueryParameters = errors.New("no query parameters")

// Config holds the HTTP server settings
type Config struct {
	Addr            string
	Scale           float64
	Quality         int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		Scale:           overlay.DefaultScale,
		Quality:         85,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server handles filter requests over HTTP
type Server struct {
	echo   *echo.Echo
	filter *strangeway.Filter
	config Config
}

// New creates a new Server around a configured filter
func New(filter *strangeway.Filter, config Config) *Server {
	e := echo.New()
	e.Logger.SetLevel(log.INFO)
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		filter: filter,
		config: config,
	}

	e.GET("/", s.handleFilter)
	e.GET("/healthz", s.handleHealth)

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the server until an interrupt signal arrives, then shuts it
// down gracefully
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := s.echo.Start(s.config.Addr); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, "OK")
}

// handleFilter fetches the image behind the url query parameter, replaces the
// detected faces and returns the result as a jpeg attachment
func (s *Server) handleFilter(c echo.Context) error {
	imageURL := c.QueryParam("url")
	if imageURL == "" {
		return c.String(http.StatusBadRequest, ErrNoQueryParameters.Error())
	}

	scale := s.config.Scale
	if raw := c.QueryParam("scale"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			return c.String(http.StatusBadRequest, fmt.Sprintf("invalid scale value %q", raw))
		}
		scale = parsed
	}

	img, _, err := s.filter.LoadImageFromURL(imageURL)
	if err != nil {
		return s.errorResponse(c, err)
	}

	if err := s.filter.ValidateImage(img); err != nil {
		return c.String(http.StatusUnprocessableEntity, err.Error())
	}

	result, err := s.filter.ProcessWithScale(img, scale)
	if err != nil {
		return s.errorResponse(c, err)
	}

	data, err := s.filter.EncodeResult(result, "jpg", s.config.Quality)
	if err != nil {
		return s.errorResponse(c, err)
	}

	stem, _ := utils.SplitSource(imageURL)
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.jpg"`, stem))
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

// errorResponse maps pipeline errors onto HTTP status codes with a plain
// text body
func (s *Server) errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, processing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, processing.ErrFetchFailed):
		status = http.StatusBadGateway
	case errors.Is(err, processing.ErrDecodeFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, processing.ErrEncodeFailed):
		status = http.StatusInternalServerError
	}

	c.Logger().Errorf("filter request failed: %v", err)
	return c.String(status, err.Error())
}
