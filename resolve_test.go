package siteimg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, base string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(base, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", f, err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
}

func TestResolveAssetConventions(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base,
		"content/pic.jpg",
		"content/gallery/asset.jpg",
		"static/logo.png",
		"config.toml",
	)

	tests := []struct {
		logical string
		want    string
	}{
		{"@/pic.jpg", "content/pic.jpg"},
		{"content/pic.jpg", "content/pic.jpg"},
		{"static/logo.png", "static/logo.png"},
		{"gallery/asset.jpg", "content/gallery/asset.jpg"},
		{"logo.png", "static/logo.png"},
		{"config.toml", "config.toml"},
	}
	for _, tt := range tests {
		got, ok, err := resolveAsset(base, tt.logical)
		if err != nil {
			t.Errorf("resolveAsset(%q) error: %v", tt.logical, err)
			continue
		}
		if !ok {
			t.Errorf("resolveAsset(%q) not found", tt.logical)
			continue
		}
		want := filepath.Join(base, filepath.FromSlash(tt.want))
		if got != want {
			t.Errorf("resolveAsset(%q) = %q, want %q", tt.logical, got, want)
		}
	}
}

func TestResolveAssetContentBeforeStatic(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, "content/dup.jpg", "static/dup.jpg")

	got, ok, err := resolveAsset(base, "dup.jpg")
	if err != nil || !ok {
		t.Fatalf("resolveAsset failed: ok=%v err=%v", ok, err)
	}
	if want := filepath.Join(base, "content", "dup.jpg"); got != want {
		t.Errorf("resolveAsset = %q, want content copy %q", got, want)
	}
}

func TestResolveAssetAbsolute(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, "content/pic.jpg")

	_, _, err := resolveAsset(base, "/content/pic.jpg")
	if !errors.Is(err, ErrAbsolutePath) {
		t.Fatalf("err = %v, want ErrAbsolutePath", err)
	}
}

func TestResolveAssetNotFound(t *testing.T) {
	base := t.TempDir()

	got, ok, err := resolveAsset(base, "nope.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || got != "" {
		t.Fatalf("resolveAsset = (%q, %v), want not found without error", got, ok)
	}
}

func TestResolveAssetNoTraversal(t *testing.T) {
	parent := t.TempDir()
	base := filepath.Join(parent, "site")
	writeTree(t, parent, "secret.txt")
	writeTree(t, base, "content/pic.jpg")

	got, ok, err := resolveAsset(base, "../secret.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("resolveAsset escaped the site root: %q", got)
	}

	// Every successful resolution stays under the site root.
	for _, p := range []string{"@/pic.jpg", "content/pic.jpg", "pic.jpg"} {
		got, ok, err := resolveAsset(base, p)
		if err != nil || !ok {
			t.Fatalf("resolveAsset(%q) failed: ok=%v err=%v", p, ok, err)
		}
		if !strings.HasPrefix(got, base+string(os.PathSeparator)) {
			t.Errorf("resolveAsset(%q) = %q, outside site root", p, got)
		}
	}
}
