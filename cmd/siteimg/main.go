// Command siteimg inspects and processes site images from the command line,
// using the same path conventions page templates use.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/eringen/siteimg"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "meta":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: siteimg meta <path>")
			os.Exit(1)
		}
		if err := runMeta(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "resize":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: siteimg resize <path> <width> <height> [op]")
			os.Exit(1)
		}
		op := ""
		if len(os.Args) > 5 {
			op = os.Args[5]
		}
		if err := runResize(os.Args[2], os.Args[3], os.Args[4], op); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func newSite() (*siteimg.Site, error) {
	base := os.Getenv("SITEIMG_BASE")
	if base == "" {
		var err error
		base, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	return siteimg.New(siteimg.SiteConfig{
		BasePath: base,
		BaseURL:  os.Getenv("SITEIMG_URL"),
	})
}

func runMeta(path string) error {
	s, err := newSite()
	if err != nil {
		return err
	}
	defer s.Close()

	meta, err := s.GetImageMetadata(siteimg.MetadataOptions{Path: path})
	if err != nil {
		return err
	}
	fmt.Printf("height: %d\nwidth: %d\n", meta.Height, meta.Width)
	return nil
}

func runResize(path, width, height, op string) error {
	w, err := strconv.ParseUint(width, 10, 32)
	if err != nil {
		return fmt.Errorf("width must be a non-negative integer")
	}
	h, err := strconv.ParseUint(height, 10, 32)
	if err != nil {
		return fmt.Errorf("height must be a non-negative integer")
	}

	s, err := newSite()
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.ResizeImage(siteimg.ResizeOptions{
		Path:   path,
		Width:  uint32(w),
		Height: uint32(h),
		Op:     op,
	})
	if err != nil {
		return err
	}
	if err := s.Process(); err != nil {
		return err
	}
	fmt.Printf("%s\n%s\n", resp.StaticPath, resp.URL)
	return nil
}

func printUsage() {
	fmt.Println(`siteimg - image helpers for a site tree (content/ and static/)

Usage:
  siteimg <command> [arguments]

Commands:
  meta <path>                          Print an image's height and width
  resize <path> <width> <height> [op]  Produce a processed variant
  help                                 Show this help message

The site root is the working directory, or SITEIMG_BASE if set. SITEIMG_URL
overrides the base URL used in printed links.

Examples:
  siteimg meta @/gutenberg.jpg
  siteimg resize static/gutenberg.jpg 40 40 fill`)
}
