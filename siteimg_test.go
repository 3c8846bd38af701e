package siteimg

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestSite builds a site tree matching the canonical scenarios: the same
// 300x380 image at content/gutenberg.jpg, content/gallery/asset.jpg and
// static/gutenberg.jpg.
func newTestSite(t *testing.T) *Site {
	t.Helper()
	base := t.TempDir()

	for _, dir := range []string{
		filepath.Join(base, "content", "gallery"),
		filepath.Join(base, "static"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	img := encodeJPEG(t, 300, 380)
	for _, p := range []string{
		filepath.Join(base, "content", "gutenberg.jpg"),
		filepath.Join(base, "content", "gallery", "asset.jpg"),
		filepath.Join(base, "static", "gutenberg.jpg"),
	} {
		if err := os.WriteFile(p, img, 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	s, err := New(SiteConfig{BasePath: base, BaseURL: "http://a-website.com"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestResizeImage(t *testing.T) {
	s := newTestSite(t)

	paths := []string{
		"static/gutenberg.jpg",
		"content/gutenberg.jpg",
		"@/gutenberg.jpg",
		"gallery/asset.jpg",
	}
	prefix := filepath.Join("static", "processed_images") + string(os.PathSeparator)
	seen := make(map[string]bool)

	for _, p := range paths {
		opts := ResizeOptions{Path: p, Width: 40, Height: 40}
		resp, err := s.ResizeImage(opts)
		if err != nil {
			t.Fatalf("ResizeImage(%q) failed: %v", p, err)
		}
		if !strings.HasPrefix(resp.StaticPath, prefix) {
			t.Errorf("StaticPath = %q, want prefix %q", resp.StaticPath, prefix)
		}
		if !strings.HasSuffix(resp.StaticPath, ".jpg") {
			t.Errorf("StaticPath = %q, want .jpg output", resp.StaticPath)
		}
		if !strings.HasPrefix(resp.URL, "http://a-website.com/processed_images/") {
			t.Errorf("URL = %q, want processed_images URL", resp.URL)
		}
		if name := filepath.Base(resp.StaticPath); len(name) != len("e49f5bd23ec5007c00.jpg") {
			t.Errorf("output name %q does not follow hash+collision naming", name)
		}
		if seen[resp.StaticPath] {
			t.Errorf("StaticPath %q produced for two different logical paths", resp.StaticPath)
		}
		seen[resp.StaticPath] = true

		// Hashing is stable on logical path and params, so a repeat call
		// lands on the same output.
		again, err := s.ResizeImage(opts)
		if err != nil {
			t.Fatalf("repeat ResizeImage(%q) failed: %v", p, err)
		}
		if again != resp {
			t.Errorf("repeat call = %+v, want %+v", again, resp)
		}
	}
}

func TestResizeImageAbsolutePath(t *testing.T) {
	s := newTestSite(t)

	_, err := s.ResizeImage(ResizeOptions{Path: "/content/gutenberg.jpg", Width: 40, Height: 40})
	if !errors.Is(err, ErrAbsolutePath) {
		t.Fatalf("err = %v, want ErrAbsolutePath", err)
	}
}

func TestResizeImageMissingFile(t *testing.T) {
	s := newTestSite(t)

	_, err := s.ResizeImage(ResizeOptions{Path: "missing.jpg", Width: 40, Height: 40})
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func TestResizeImageQuality(t *testing.T) {
	s := newTestSite(t)

	for _, q := range []uint32{1, 100} {
		if _, err := s.ResizeImage(ResizeOptions{Path: "static/gutenberg.jpg", Width: 40, Height: 40, Quality: q}); err != nil {
			t.Errorf("quality %d: unexpected error: %v", q, err)
		}
	}
	if _, err := s.ResizeImage(ResizeOptions{Path: "static/gutenberg.jpg", Width: 40, Height: 40, Quality: 101}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("quality 101: err = %v, want ErrInvalidRange", err)
	}

	// Through the named-argument boundary an explicit zero is present, and
	// therefore rejected rather than treated as unset.
	_, err := resizeOptionsFromArgs(map[string]any{
		"path": "static/gutenberg.jpg", "width": 40, "height": 40, "quality": 0,
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("quality 0: err = %v, want ErrInvalidRange", err)
	}
}

func TestGetImageMetadata(t *testing.T) {
	s := newTestSite(t)

	for _, p := range []string{"static/gutenberg.jpg", "content/gutenberg.jpg", "@/gutenberg.jpg"} {
		meta, err := s.GetImageMetadata(MetadataOptions{Path: p})
		if err != nil {
			t.Fatalf("GetImageMetadata(%q) failed: %v", p, err)
		}
		if meta.Height != 380 || meta.Width != 300 {
			t.Errorf("GetImageMetadata(%q) = %dx%d, want height 380 width 300", p, meta.Height, meta.Width)
		}
	}

	if _, err := s.GetImageMetadata(MetadataOptions{Path: "/static/gutenberg.jpg"}); !errors.Is(err, ErrAbsolutePath) {
		t.Errorf("absolute path: err = %v, want ErrAbsolutePath", err)
	}
}

func TestGetImageMetadataMissing(t *testing.T) {
	s := newTestSite(t)

	meta, err := s.GetImageMetadata(MetadataOptions{Path: "missing.jpg", AllowMissing: true})
	if err != nil {
		t.Fatalf("allow_missing: unexpected error: %v", err)
	}
	if meta != nil {
		t.Fatalf("allow_missing: meta = %+v, want nil", meta)
	}

	if _, err := s.GetImageMetadata(MetadataOptions{Path: "missing.jpg"}); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("default: err = %v, want ErrFileNotFound", err)
	}
}

func TestFuncs(t *testing.T) {
	s := newTestSite(t)
	funcs := s.Funcs()

	resize, ok := funcs["resize_image"].(func(map[string]any) (ResizeResponse, error))
	if !ok {
		t.Fatal("resize_image has the wrong signature")
	}
	resp, err := resize(map[string]any{"path": "static/gutenberg.jpg", "width": 40, "height": 40})
	if err != nil {
		t.Fatalf("resize_image failed: %v", err)
	}
	if resp.StaticPath == "" || resp.URL == "" {
		t.Errorf("resize_image = %+v, want populated response", resp)
	}

	meta, ok := funcs["get_image_metadata"].(func(map[string]any) (*ImageMeta, error))
	if !ok {
		t.Fatal("get_image_metadata has the wrong signature")
	}
	m, err := meta(map[string]any{"path": "@/gutenberg.jpg"})
	if err != nil {
		t.Fatalf("get_image_metadata failed: %v", err)
	}
	if m.Height != 380 || m.Width != 300 {
		t.Errorf("get_image_metadata = %+v, want height 380 width 300", m)
	}
}

func TestArgDecoding(t *testing.T) {
	if _, err := resizeOptionsFromArgs(map[string]any{"width": 40}); !errors.Is(err, ErrMissingArgument) {
		t.Errorf("missing path: err = %v, want ErrMissingArgument", err)
	}
	if _, err := resizeOptionsFromArgs(map[string]any{"path": 12}); !errors.Is(err, ErrInvalidArgumentType) {
		t.Errorf("numeric path: err = %v, want ErrInvalidArgumentType", err)
	}
	if _, err := resizeOptionsFromArgs(map[string]any{"path": "a.jpg", "width": -1}); !errors.Is(err, ErrInvalidArgumentType) {
		t.Errorf("negative width: err = %v, want ErrInvalidArgumentType", err)
	}
	if _, err := resizeOptionsFromArgs(map[string]any{"path": "a.jpg", "width": 40.5}); !errors.Is(err, ErrInvalidArgumentType) {
		t.Errorf("fractional width: err = %v, want ErrInvalidArgumentType", err)
	}
	if _, err := metadataOptionsFromArgs(map[string]any{"path": "a.jpg", "allow_missing": "yes"}); !errors.Is(err, ErrInvalidArgumentType) {
		t.Errorf("string allow_missing: err = %v, want ErrInvalidArgumentType", err)
	}

	opts, err := resizeOptionsFromArgs(map[string]any{"path": "a.jpg", "width": float64(40)})
	if err != nil {
		t.Fatalf("float width: unexpected error: %v", err)
	}
	if opts.Width != 40 || opts.Op != "fill" || opts.Format != "auto" {
		t.Errorf("opts = %+v, want width 40 with defaults applied", opts)
	}
}

func TestProcessEndToEnd(t *testing.T) {
	s := newTestSite(t)

	resp, err := s.ResizeImage(ResizeOptions{Path: "static/gutenberg.jpg", Width: 40, Height: 40})
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}
	if err := s.Process(); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	out := filepath.Join(s.Config.BasePath, resp.StaticPath)
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 40 {
		t.Errorf("output = %dx%d, want 40x40", cfg.Width, cfg.Height)
	}
}
