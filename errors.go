package siteimg

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds the template functions report.
// Callers match with errors.Is; messages carry the human-readable context.
var (
	// ErrMissingArgument is returned when a required named argument is absent.
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidArgumentType is returned when a named argument has the wrong type.
	ErrInvalidArgumentType = errors.New("invalid argument type")

	// ErrInvalidRange is returned when quality lies outside 1..=100.
	ErrInvalidRange = errors.New("quality must be in range 1-100")

	// ErrFileNotFound is returned when a logical path resolves to no existing file.
	ErrFileNotFound = errors.New("file not found")

	// ErrAbsolutePath is returned for logical paths starting with a path
	// separator; those are never attempted against any root.
	ErrAbsolutePath = errors.New("absolute paths are not supported")

	// ErrUnsupportedImage wraps a raster decode failure.
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")

	// ErrInvalidVectorDimensions is returned when an SVG carries neither an
	// explicit width/height pair nor a usable viewBox.
	ErrInvalidVectorDimensions = errors.New("invalid dimensions: SVG width/height and viewBox not set")
)

// checkQuality enforces the 1..=100 contract. Out-of-range values are
// rejected, never clamped.
func checkQuality(q uint32, present bool) error {
	if !present {
		return nil
	}
	if q == 0 || q > 100 {
		return fmt.Errorf("siteimg: quality %d: %w", q, ErrInvalidRange)
	}
	return nil
}
