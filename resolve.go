package siteimg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	contentDir = "content"
	staticDir  = "static"
)

// resolveAsset maps a logical path from a template onto an existing regular
// file under the site tree. The first existing candidate wins:
//
//	@/rest        -> content/rest
//	content/rest  -> content/rest
//	static/rest   -> static/rest
//	rest          -> content/rest, then static/rest, then rest
//
// Absolute paths are rejected outright. A path that matches no candidate is
// not an error by itself: callers decide whether absence is fatal.
func resolveAsset(basePath, logical string) (string, bool, error) {
	if logical == "" {
		return "", false, nil
	}
	if os.IsPathSeparator(logical[0]) {
		return "", false, fmt.Errorf("siteimg: %s: %w", logical, ErrAbsolutePath)
	}

	var candidates []string
	switch {
	case strings.HasPrefix(logical, "@/"):
		candidates = []string{filepath.Join(basePath, contentDir, logical[2:])}
	case strings.HasPrefix(logical, contentDir+"/"), strings.HasPrefix(logical, staticDir+"/"):
		candidates = []string{filepath.Join(basePath, logical)}
	default:
		candidates = []string{
			filepath.Join(basePath, contentDir, logical),
			filepath.Join(basePath, staticDir, logical),
			filepath.Join(basePath, logical),
		}
	}

	// filepath.Join cleans ".." segments, so a candidate that climbs out of
	// the site root is detectable by prefix and never consulted.
	base := filepath.Clean(basePath) + string(os.PathSeparator)
	for _, c := range candidates {
		if !strings.HasPrefix(c, base) {
			continue
		}
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, true, nil
		}
	}
	return "", false, nil
}
