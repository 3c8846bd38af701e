// Package imageproc is the content-addressed image processing engine behind
// the template helpers. It turns validated resize requests into stable
// output files under static/processed_images and the URLs that reference
// them: the output name is a hash of the logical path and every resize
// parameter, so identical requests always land on the same file.
//
// The Processor is not safe for concurrent use; the owning Site serializes
// access behind its own mutex.
package imageproc

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	processedSubdir    = "processed_images"
	defaultJPEGQuality = 75
)

// resizeOp is a validated resize operation. The kind is a closed set;
// BuildOperation rejects anything else.
type resizeOp struct {
	kind   string
	width  uint32
	height uint32
}

func resizeOpFromArgs(op string, width, height uint32) (resizeOp, error) {
	switch op {
	case "fill", "fit", "scale":
		if width == 0 {
			return resizeOp{}, fmt.Errorf("imageproc: op %q requires a width argument", op)
		}
		if height == 0 {
			return resizeOp{}, fmt.Errorf("imageproc: op %q requires a height argument", op)
		}
	case "fitwidth":
		if width == 0 {
			return resizeOp{}, fmt.Errorf("imageproc: op %q requires a width argument", op)
		}
	case "fitheight":
		if height == 0 {
			return resizeOp{}, fmt.Errorf("imageproc: op %q requires a height argument", op)
		}
	default:
		return resizeOp{}, fmt.Errorf("imageproc: invalid resize operation %q", op)
	}
	return resizeOp{kind: op, width: width, height: height}, nil
}

// outFormat is the encoding an operation produces. Only jpeg and png can be
// written; "auto" keeps a jpeg source as jpeg and encodes everything else
// (png, gif, webp, bmp, tiff sources) as png.
type outFormat struct {
	ext     string // "jpg" or "png"
	quality uint32 // jpeg only; 0 means defaultJPEGQuality
}

func formatFromArgs(resolvedFile, format string, quality uint32) (outFormat, error) {
	switch format {
	case "auto":
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(resolvedFile), "."))
		switch ext {
		case "jpg", "jpeg":
			return outFormat{ext: "jpg", quality: quality}, nil
		case "png", "gif", "webp", "bmp", "tiff", "tif":
			return outFormat{ext: "png"}, nil
		default:
			return outFormat{}, fmt.Errorf("imageproc: cannot determine output format for %q", resolvedFile)
		}
	case "jpeg", "jpg":
		return outFormat{ext: "jpg", quality: quality}, nil
	case "png":
		return outFormat{ext: "png"}, nil
	case "webp":
		return outFormat{}, fmt.Errorf("imageproc: no webp encoder is available")
	default:
		return outFormat{}, fmt.Errorf("imageproc: invalid image format %q", format)
	}
}

// Operation is one validated resize request bound to a concrete source file.
type Operation struct {
	// Logical is the path as authored in the template; it participates in
	// the output hash so the same file referenced two ways yields two
	// (identical) outputs with distinct names, matching the URL a template
	// author sees.
	Logical string
	// Source is the resolved file on disk.
	Source string

	op     resizeOp
	format outFormat
	hash   uint64
}

// Processor owns the processed-images output directory and the mapping from
// operations to output names.
type Processor struct {
	basePath string
	baseURL  string
	outDir   string

	ops      map[uint64][]Operation
	manifest *manifestStore
}

// ProcOption configures a Processor.
type ProcOption func(*procConfig)

type procConfig struct {
	manifestPath string
}

// WithManifest sets the SQLite path for the manifest store. An empty path
// keeps the default, data/processed_images.db under the base path.
func WithManifest(path string) ProcOption {
	return func(c *procConfig) {
		if path != "" {
			c.manifestPath = path
		}
	}
}

// New creates a Processor rooted at the given site base path. baseURL is the
// site's canonical URL, used to build output links.
func New(basePath, baseURL string, opts ...ProcOption) (*Processor, error) {
	cfg := procConfig{manifestPath: filepath.Join(basePath, "data", "processed_images.db")}
	for _, opt := range opts {
		opt(&cfg)
	}

	manifest, err := newManifestStore(cfg.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("imageproc: init manifest: %w", err)
	}

	return &Processor{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		outDir:   filepath.Join(basePath, "static", processedSubdir),
		ops:      make(map[uint64][]Operation),
		manifest: manifest,
	}, nil
}

// Close releases the manifest store.
func (p *Processor) Close() error {
	return p.manifest.Close()
}

// BuildOperation validates the resize parameters against the resolved file
// and returns an Operation ready for Insert.
func (p *Processor) BuildOperation(logicalPath, resolvedFile, op string, width, height uint32, format string, quality uint32) (Operation, error) {
	rop, err := resizeOpFromArgs(op, width, height)
	if err != nil {
		return Operation{}, err
	}
	of, err := formatFromArgs(resolvedFile, format, quality)
	if err != nil {
		return Operation{}, err
	}

	d := xxhash.New()
	fmt.Fprintf(d, "%s|%s|%d|%d|%s|%d", logicalPath, rop.kind, rop.width, rop.height, of.ext, of.quality)

	return Operation{
		Logical: logicalPath,
		Source:  resolvedFile,
		op:      rop,
		format:  of,
		hash:    d.Sum64(),
	}, nil
}

// Insert registers the operation and returns its static path (relative to
// the site base) and URL. Re-inserting an identical operation returns the
// same pair; two distinct operations sharing a hash get collision-suffixed
// names, so at most one output exists per key.
func (p *Processor) Insert(op Operation) (string, string) {
	name := p.claim(op)
	staticPath := filepath.Join("static", processedSubdir, name)
	url := p.baseURL + "/" + processedSubdir + "/" + name
	return staticPath, url
}

func (p *Processor) claim(op Operation) string {
	existing := p.ops[op.hash]
	for i, e := range existing {
		if e == op {
			return outputName(op.hash, i, op.format.ext)
		}
	}
	p.ops[op.hash] = append(existing, op)
	name := outputName(op.hash, len(existing), op.format.ext)
	if err := p.manifest.SaveEntry(name, op.Logical, op.describe()); err != nil {
		log.Printf("imageproc: record %s in manifest: %v", name, err)
	}
	return name
}

func (o Operation) describe() string {
	return fmt.Sprintf("%s %dx%d %s q%d", o.op.kind, o.op.width, o.op.height, o.format.ext, o.format.quality)
}

func outputName(hash uint64, collision int, ext string) string {
	return fmt.Sprintf("%016x%02x.%s", hash, collision, ext)
}

// Do runs every inserted operation whose output file is missing or older
// than its source.
func (p *Processor) Do() error {
	if len(p.ops) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return fmt.Errorf("imageproc: create output dir: %w", err)
	}
	for hash, ops := range p.ops {
		for i, op := range ops {
			dst := filepath.Join(p.outDir, outputName(hash, i, op.format.ext))
			if upToDate(op.Source, dst) {
				continue
			}
			if err := process(op, dst); err != nil {
				return fmt.Errorf("imageproc: %s: %w", op.Logical, err)
			}
		}
	}
	return nil
}

// Prune deletes files in the output directory that no operation inserted in
// this run references, along with their manifest entries.
func (p *Processor) Prune() error {
	claimed := make(map[string]struct{})
	for hash, ops := range p.ops {
		for i, op := range ops {
			claimed[outputName(hash, i, op.format.ext)] = struct{}{}
		}
	}

	entries, err := os.ReadDir(p.outDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("imageproc: read output dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := claimed[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(p.outDir, name)); err != nil {
			return fmt.Errorf("imageproc: prune %s: %w", name, err)
		}
		if err := p.manifest.DeleteEntry(name); err != nil {
			return fmt.Errorf("imageproc: prune manifest entry %s: %w", name, err)
		}
		log.Printf("imageproc: pruned stale processed image %s", name)
	}
	return nil
}

func upToDate(src, dst string) bool {
	di, err := os.Stat(dst)
	if err != nil {
		return false
	}
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	return !di.ModTime().Before(si.ModTime())
}

func process(op Operation, dst string) error {
	src, err := imaging.Open(op.Source)
	if err != nil {
		return fmt.Errorf("open %s: %w", op.Source, err)
	}

	w, h := int(op.op.width), int(op.op.height)
	var out image.Image
	switch op.op.kind {
	case "scale":
		out = imaging.Resize(src, w, h, imaging.Lanczos)
	case "fitwidth":
		out = imaging.Resize(src, w, 0, imaging.Lanczos)
	case "fitheight":
		out = imaging.Resize(src, 0, h, imaging.Lanczos)
	case "fit":
		out = imaging.Fit(src, w, h, imaging.Lanczos)
	case "fill":
		out = fillCrop(src, w, h)
	default:
		return fmt.Errorf("unknown resize operation %q", op.op.kind)
	}

	quality := int(op.format.quality)
	if quality == 0 {
		quality = defaultJPEGQuality
	}
	if err := imaging.Save(out, dst, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("save %s: %w", dst, err)
	}
	return nil
}

// fillCrop crops the source to the target aspect ratio around its center,
// then scales the crop to exactly width x height.
func fillCrop(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()

	cropW, cropH := srcW, srcH
	if srcW*h > w*srcH {
		// Source is wider than the target shape.
		cropW = srcH * w / h
	} else {
		cropH = srcW * h / w
	}
	cropped := imaging.CropCenter(src, cropW, cropH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
	return dst
}
