package siteimg

import (
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageMeta reports an image's intrinsic size. Height comes first: the
// template contract hands back (height, width) pairs in that order.
type ImageMeta struct {
	Height uint32 `json:"height"`
	Width  uint32 `json:"width"`
}

// formatFamily is the closed set of container families the dimension
// extractor dispatches on.
type formatFamily int

const (
	familyRaster formatFamily = iota
	familyVector
)

func familyFor(path string) formatFamily {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return familyVector
	}
	return familyRaster
}

// imageDimensions reads (height, width) from a resolved file. Raster
// formats only need a header decode, never the full pixel data.
func imageDimensions(path string) (uint32, uint32, error) {
	switch familyFor(path) {
	case familyVector:
		return svgDimensions(path)
	default:
		return rasterDimensions(path)
	}
}

func rasterDimensions(path string) (uint32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("siteimg: process image %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("siteimg: process image %s: %w: %w", path, ErrUnsupportedImage, err)
	}
	return uint32(cfg.Height), uint32(cfg.Width), nil
}

// svgDimensions parses just enough of the document to find the root
// element's size. Explicit width and height win when both are present;
// otherwise the viewBox rectangle supplies the dimensions.
func svgDimensions(path string) (uint32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("siteimg: process SVG %s: %w", path, err)
	}
	defer f.Close()

	var width, height, viewBox string
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, 0, fmt.Errorf("siteimg: process SVG %s: no svg element: %w", path, ErrUnsupportedImage)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("siteimg: process SVG %s: %w: %w", path, ErrUnsupportedImage, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return 0, 0, fmt.Errorf("siteimg: process SVG %s: root element is %q: %w", path, se.Name.Local, ErrUnsupportedImage)
		}
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "width":
				width = a.Value
			case "height":
				height = a.Value
			case "viewBox":
				viewBox = a.Value
			}
		}
		break
	}

	if h, hok := svgLength(height); hok {
		if w, wok := svgLength(width); wok {
			return h, w, nil
		}
	}
	if w, h, ok := viewBoxSize(viewBox); ok {
		return h, w, nil
	}
	return 0, 0, fmt.Errorf("siteimg: %s: %w", path, ErrInvalidVectorDimensions)
}

// svgLength parses an SVG length attribute, tolerating a unit suffix
// such as "380px". Percentages carry no absolute size and are rejected.
func svgLength(v string) (uint32, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasSuffix(v, "%") {
		return 0, false
	}
	i := len(v)
	for i > 0 {
		c := v[i-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}
		i--
	}
	f, err := strconv.ParseFloat(v[:i], 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return uint32(f), true
}

// viewBoxSize extracts (width, height) from a "min-x min-y width height"
// viewBox value. Commas are valid separators in SVG.
func viewBoxSize(v string) (uint32, uint32, bool) {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ','
	})
	if len(fields) != 4 {
		return 0, 0, false
	}
	w, werr := strconv.ParseFloat(fields[2], 64)
	h, herr := strconv.ParseFloat(fields[3], 64)
	if werr != nil || herr != nil || w < 0 || h < 0 {
		return 0, 0, false
	}
	return uint32(w), uint32(h), true
}
