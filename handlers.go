package siteimg

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the image endpoints on an Echo instance: the
// processed-images output directory plus JSON metadata and resize endpoints
// for previewing assets during development.
func (s *Site) RegisterRoutes(e *echo.Echo) {
	e.Static("/processed_images", filepath.Join(s.Config.BasePath, staticDir, "processed_images"))
	e.GET("/images/meta", s.handleMeta)
	e.GET("/images/resize", s.handleResize)
}

func (s *Site) handleMeta(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return c.String(http.StatusBadRequest, "path is required")
	}
	allowMissing := c.QueryParam("allow_missing") == "true"

	meta, err := s.GetImageMetadata(MetadataOptions{Path: path, AllowMissing: allowMissing})
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return c.String(http.StatusNotFound, err.Error())
		}
		return c.String(http.StatusBadRequest, err.Error())
	}
	if meta == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, meta)
}

func (s *Site) handleResize(c echo.Context) error {
	opts := ResizeOptions{
		Path:   c.QueryParam("path"),
		Op:     c.QueryParam("op"),
		Format: c.QueryParam("format"),
	}
	var err error
	if opts.Width, err = queryUint(c, "width"); err != nil {
		return c.String(http.StatusBadRequest, "width must be a non-negative integer")
	}
	if opts.Height, err = queryUint(c, "height"); err != nil {
		return c.String(http.StatusBadRequest, "height must be a non-negative integer")
	}
	if opts.Quality, err = queryUint(c, "quality"); err != nil {
		return c.String(http.StatusBadRequest, "quality must be a number")
	}

	resp, err := s.ResizeImage(opts)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return c.String(http.StatusNotFound, err.Error())
		}
		return c.String(http.StatusBadRequest, err.Error())
	}

	// Materialize the output so the static route can serve it right away.
	if err := s.Process(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func queryUint(c echo.Context, name string) (uint32, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
