package driver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeUnit(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	results := []*Result{
		{Name: "Foundation", Files: []string{writeUnit(t, dir, "Foundation.go", "package bindings\n")}},
		{Name: "objc/NSObject.h", FileMode: true, Files: []string{writeUnit(t, dir, "objc_NSObject.go", "package bindings\n")}},
		{Name: "AppKit", Dependencies: []string{"Foundation"}, Files: []string{writeUnit(t, dir, "AppKit.go", "package bindings // AppKit\n")}},
	}

	m, err := NewManifest(dir, results)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Frameworks[0]; got.Name != "AppKit" || got.Mode != "framework" || got.Files[0].Path != "AppKit.go" {
		t.Errorf("first entry = %+v, want AppKit sorted first", got)
	}
	if m.Frameworks[2].Mode != "file" {
		t.Errorf("header entry mode = %q", m.Frameworks[2].Mode)
	}
	// Identical content digests identically.
	if m.Frameworks[1].Files[0].Digest != m.Frameworks[2].Files[0].Digest {
		t.Error("equal files digested differently")
	}
	if len(m.Frameworks[0].Files[0].Digest) != 16 {
		t.Errorf("digest %q is not a 64-bit hex hash", m.Frameworks[0].Files[0].Digest)
	}

	path := filepath.Join(dir, ManifestName)
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Compare(loaded); err != nil {
		t.Errorf("reloaded manifest differs: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "xxh3: ") {
		t.Errorf("manifest = %s", data)
	}
}

func TestManifestCompareReportsChanges(t *testing.T) {
	dir := t.TempDir()
	appKit := writeUnit(t, dir, "AppKit.go", "package bindings\n")
	foundation := writeUnit(t, dir, "Foundation.go", "package bindings\n")
	previous, err := NewManifest(dir, []*Result{{Name: "AppKit", Files: []string{appKit}}, {Name: "Foundation", Files: []string{foundation}}})
	if err != nil {
		t.Fatal(err)
	}

	writeUnit(t, dir, "AppKit.go", "package bindings\n\nconst x = 1\n")
	metal := writeUnit(t, dir, "Metal.go", "package bindings\n")
	current, err := NewManifest(dir, []*Result{{Name: "AppKit", Files: []string{appKit}}, {Name: "Metal", Files: []string{metal}}})
	if err != nil {
		t.Fatal(err)
	}

	err = current.Compare(previous)
	if !errors.Is(err, ErrManifestMismatch) {
		t.Fatalf("err = %v, want ErrManifestMismatch", err)
	}
	for _, want := range []string{"changed AppKit.go", "missing Foundation.go", "new file Metal.go"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err = %v lacks %q", err, want)
		}
	}
}

func TestNewManifestMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewManifest(dir, []*Result{{Name: "Gone", Files: []string{filepath.Join(dir, "Gone.go")}}}); err == nil {
		t.Error("missing file digested")
	}
}
