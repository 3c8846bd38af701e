// Package siteimg provides the image helpers a publishing engine exposes to
// its page templates: resolving logical asset paths against the site tree,
// reading intrinsic image dimensions, and requesting processed variants from
// the content-addressed image processor.
//
// Templates reference images with a small set of path conventions
// ("@/...", "content/...", "static/...", or a bare relative path) and call
// either resize_image or get_image_metadata; everything else — resolution,
// validation, format dispatch — happens here.
package siteimg

import (
	"fmt"
	"log"
	"sync"

	"github.com/eringen/siteimg/imageproc"
)

// SiteConfig holds all configuration for the image helpers.
type SiteConfig struct {
	BasePath string // Required: site root directory containing content/ and static/
	BaseURL  string // Canonical URL for processed image links (default "http://localhost:3000")

	ManifestPath string // SQLite path for the processor manifest (default "data/processed_images.db" under BasePath)
}

func (c *SiteConfig) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3000"
	}
}

// Option configures additional Site behavior.
type Option func(*Site)

// WithProcessor substitutes the image processor instance, e.g. one sharing
// a manifest with a larger build pipeline.
func WithProcessor(p *imageproc.Processor) Option {
	return func(s *Site) {
		s.proc = p
	}
}

// Site wires the template image functions to a concrete site tree and its
// image processor.
//
// The processor is a single shared instance. All resize requests serialize
// on one mutex held from path resolution through insertion, so the
// processor's cache sees at most one mutation at a time. Metadata lookups
// never touch the processor and run fully in parallel.
type Site struct {
	Config SiteConfig

	mu   sync.Mutex
	proc *imageproc.Processor
}

// New creates a Site for the given configuration.
func New(cfg SiteConfig, opts ...Option) (*Site, error) {
	cfg.setDefaults()
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("siteimg: BasePath is required")
	}

	s := &Site{Config: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.proc == nil {
		proc, err := imageproc.New(cfg.BasePath, cfg.BaseURL, imageproc.WithManifest(cfg.ManifestPath))
		if err != nil {
			return nil, fmt.Errorf("siteimg: init processor: %w", err)
		}
		s.proc = proc
	}
	return s, nil
}

// ResizeResponse is the value resize_image hands back to the template.
type ResizeResponse struct {
	URL        string `json:"url"`
	StaticPath string `json:"static_path"`
}

// ResizeOptions are the arguments to ResizeImage. Width and Height are
// optional; zero means unset (which operations require which dimensions is
// the processor's contract). Quality of zero means encoder default;
// a set quality must lie in 1..=100.
type ResizeOptions struct {
	Path    string
	Width   uint32
	Height  uint32
	Op      string // resize operation (default "fill")
	Format  string // output format (default "auto")
	Quality uint32
}

func (o *ResizeOptions) setDefaults() {
	if o.Op == "" {
		o.Op = defaultOp
	}
	if o.Format == "" {
		o.Format = defaultFormat
	}
}

func (o *ResizeOptions) validate() error {
	if o.Path == "" {
		return fmt.Errorf("siteimg: resize_image requires a path argument: %w", ErrMissingArgument)
	}
	if err := checkQuality(o.Quality, o.Quality != 0); err != nil {
		return err
	}
	return nil
}

// ResizeImage validates opts, resolves the image and registers a resize
// operation with the processor, returning the stable output location.
// Identical inputs always map to the same static path and URL.
func (s *Site) ResizeImage(opts ResizeOptions) (ResizeResponse, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return ResizeResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok, err := resolveAsset(s.Config.BasePath, opts.Path)
	if err != nil {
		return ResizeResponse{}, fmt.Errorf("resize_image: %w", err)
	}
	if !ok {
		return ResizeResponse{}, fmt.Errorf("resize_image: cannot find file: %s: %w", opts.Path, ErrFileNotFound)
	}

	op, err := s.proc.BuildOperation(opts.Path, file, opts.Op, opts.Width, opts.Height, opts.Format, opts.Quality)
	if err != nil {
		return ResizeResponse{}, fmt.Errorf("resize_image: %w", err)
	}
	staticPath, url := s.proc.Insert(op)

	return ResizeResponse{URL: url, StaticPath: staticPath}, nil
}

// MetadataOptions are the arguments to GetImageMetadata.
type MetadataOptions struct {
	Path         string
	AllowMissing bool // return nil instead of an error when the file does not exist
}

// GetImageMetadata resolves path and returns the image's intrinsic
// dimensions. A missing file is an error unless AllowMissing is set, in
// which case the result is nil and a diagnostic is logged — the only place
// absence is ever non-fatal.
func (s *Site) GetImageMetadata(opts MetadataOptions) (*ImageMeta, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("siteimg: get_image_metadata requires a path argument: %w", ErrMissingArgument)
	}

	file, ok, err := resolveAsset(s.Config.BasePath, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("get_image_metadata: %w", err)
	}
	if !ok {
		if opts.AllowMissing {
			log.Printf("siteimg: image at path %s could not be found or loaded", opts.Path)
			return nil, nil
		}
		return nil, fmt.Errorf("get_image_metadata: cannot find path: %s: %w", opts.Path, ErrFileNotFound)
	}

	height, width, err := imageDimensions(file)
	if err != nil {
		return nil, err
	}
	return &ImageMeta{Height: height, Width: width}, nil
}

// Process materializes every resize operation registered so far, writing the
// output files under static/processed_images.
func (s *Site) Process() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Do()
}

// Prune deletes processed images from previous runs that no operation in
// this run references.
func (s *Site) Prune() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Prune()
}

// Close releases the processor's manifest store.
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Close()
}
