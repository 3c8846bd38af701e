package siteimg

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Img returns a templ component rendering an <img> tag with intrinsic
// width and height attributes filled in from the image header, so pages
// don't shift while images load.
func (s *Site) Img(path, alt string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		meta, err := s.GetImageMetadata(MetadataOptions{Path: path})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, `<img src="%s" alt="%s" width="%d" height="%d">`,
			templ.EscapeString(assetURL(path)), templ.EscapeString(alt), meta.Width, meta.Height)
		return err
	})
}

// assetURL maps a logical path to the URL path it is served under. Content
// assets are co-located with their pages; static assets are served from the
// site root.
func assetURL(logical string) string {
	switch {
	case strings.HasPrefix(logical, "@/"):
		return "/" + strings.TrimPrefix(logical, "@/")
	case strings.HasPrefix(logical, staticDir+"/"):
		return "/" + strings.TrimPrefix(logical, staticDir+"/")
	default:
		return "/" + logical
	}
}
