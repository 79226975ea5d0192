package driver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"objcbind/internal"
)

// ManifestName is the manifest file written next to the generated units.
const ManifestName = "objcbind-manifest.yaml"

var ErrManifestMismatch = errors.New("generated output differs from manifest")

// Manifest records what a run generated, so a later run can check it is reproducible.
type Manifest struct {
	Frameworks []ManifestEntry `yaml:"frameworks"`
}

type ManifestEntry struct {
	Name         string       `yaml:"name"`
	Mode         string       `yaml:"mode"`
	Dependencies []string     `yaml:"dependencies,omitempty"`
	Files        []FileDigest `yaml:"files"`
}

type FileDigest struct {
	// Path is relative to the output directory, with forward slashes.
	Path   string `yaml:"path"`
	Digest string `yaml:"xxh3"`
}

// NewManifest digests the files of results. Paths are stored relative to outputDir.
func NewManifest(outputDir string, results []*Result) (*Manifest, error) {
	m := &Manifest{}
	for _, r := range results {
		entry := ManifestEntry{Name: r.Name, Mode: "framework", Dependencies: r.Dependencies}
		if r.FileMode {
			entry.Mode = "file"
		}
		for _, file := range r.Files {
			digest, err := fileHash(file)
			if err != nil {
				return nil, fmt.Errorf("digesting %s: %w", file, err)
			}
			rel := internal.Must(filepath.Rel(outputDir, file))
			entry.Files = append(entry.Files, FileDigest{Path: filepath.ToSlash(rel), Digest: digest})
		}
		m.Frameworks = append(m.Frameworks, entry)
	}
	sort.Slice(m.Frameworks, func(i, j int) bool { return m.Frameworks[i].Name < m.Frameworks[j].Name })
	return m, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Compare reports every file whose digest differs from previous, or that only
// one of the two manifests lists.
func (m *Manifest) Compare(previous *Manifest) error {
	want := previous.digests()
	got := m.digests()

	var diffs []string
	for path, digest := range got {
		prev, ok := want[path]
		switch {
		case !ok:
			diffs = append(diffs, "new file "+path)
		case prev != digest:
			diffs = append(diffs, "changed "+path)
		}
	}
	for path := range want {
		if _, ok := got[path]; !ok {
			diffs = append(diffs, "missing "+path)
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	sort.Strings(diffs)
	return fmt.Errorf("%w: %s", ErrManifestMismatch, strings.Join(diffs, ", "))
}

func (m *Manifest) digests() map[string]string {
	out := make(map[string]string)
	for _, e := range m.Frameworks {
		for _, f := range e.Files {
			out[f.Path] = f.Digest
		}
	}
	return out
}
