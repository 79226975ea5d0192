// Package snapshot serves clang cursors from AST snapshots written as YAML or JSON
// by an external dumper. A snapshot lists the top-level cursors of one translation
// unit; types are inline trees that reference declarations by id.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"objcbind/internal/clang"
)

var snapshotExtensions = []string{".yaml", ".yml", ".json"}

// Index resolves a parse request to the snapshot named after the main header.
type Index struct {
	dir string
}

// NewIndex opens a snapshot directory.
func NewIndex(dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot directory: %w", clang.ErrIndex, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", clang.ErrIndex, dir)
	}
	return &Index{dir: dir}, nil
}

// Parse loads `<dir>/<header stem>.yaml` (or .yml/.json). Compiler arguments are
// ignored since the dumper already applied them.
func (i *Index) Parse(ctx context.Context, mainFile string, _ []string) (clang.TranslationUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(mainFile), filepath.Ext(mainFile))
	for _, ext := range snapshotExtensions {
		path := filepath.Join(i.dir, stem+ext)
		tu, err := Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if tu.main == "" {
			tu.main = mainFile
		}
		return tu, nil
	}
	return nil, fmt.Errorf("%w: no snapshot for %s in %s", clang.ErrParse, mainFile, i.dir)
}

type TranslationUnit struct {
	main string
	root *cursorNode
	ids  map[string]*cursorNode
}

// Load reads a snapshot file.
func Load(path string) (*TranslationUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tu, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tu, nil
}

// Decode parses snapshot bytes and links declaration references.
func Decode(data []byte) (*TranslationUnit, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", clang.ErrParse, err)
	}

	tu := &TranslationUnit{
		main: doc.Main,
		root: &cursorNode{Kind: clang.KindTranslationUnit, Name: doc.Main, File: doc.Main, Children: doc.Cursors},
		ids:  make(map[string]*cursorNode),
	}
	if err := tu.register(tu.root, doc.Main); err != nil {
		return nil, err
	}
	if err := tu.link(tu.root); err != nil {
		return nil, err
	}
	return tu, nil
}

func (tu *TranslationUnit) Root() clang.Cursor {
	return &cursor{node: tu.root, tu: tu}
}

func (tu *TranslationUnit) MainFile() string {
	return tu.main
}

// register assigns inherited files and records ids, including cursors declared
// inline inside type trees.
func (tu *TranslationUnit) register(n *cursorNode, file string) error {
	if n.File == "" {
		n.File = file
	}
	if n.ID != "" {
		if _, dup := tu.ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate cursor id %q", clang.ErrParse, n.ID)
		}
		tu.ids[n.ID] = n
	}
	for _, t := range n.types() {
		if err := tu.registerType(t, n.File); err != nil {
			return err
		}
	}
	for _, arg := range n.Args {
		if err := tu.register(arg, n.File); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if err := tu.register(child, n.File); err != nil {
			return err
		}
	}
	return nil
}

func (tu *TranslationUnit) registerType(t *typeNode, file string) error {
	if t == nil {
		return nil
	}
	if t.Decl != nil && t.Decl.Inline != nil {
		if err := tu.register(t.Decl.Inline, file); err != nil {
			return err
		}
	}
	for _, inner := range t.inner() {
		if err := tu.registerType(inner, file); err != nil {
			return err
		}
	}
	return nil
}

func (tu *TranslationUnit) link(n *cursorNode) error {
	for _, t := range n.types() {
		if err := tu.linkType(t, n.File); err != nil {
			return fmt.Errorf("%s %q: %w", n.Kind, n.Name, err)
		}
	}
	for _, arg := range n.Args {
		if err := tu.link(arg); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if err := tu.link(child); err != nil {
			return err
		}
	}
	return nil
}

func (tu *TranslationUnit) linkType(t *typeNode, file string) error {
	if t == nil {
		return nil
	}
	switch {
	case t.Decl != nil && t.Decl.Inline != nil:
		t.Decl.resolved = t.Decl.Inline
		if err := tu.link(t.Decl.Inline); err != nil {
			return err
		}
	case t.Decl != nil:
		target, ok := tu.ids[t.Decl.ID]
		if !ok {
			return fmt.Errorf("%w: unknown decl id %q", clang.ErrParse, t.Decl.ID)
		}
		t.Decl.resolved = target
	case t.Kind == clang.TypeTypedef:
		// A typedef type without an explicit declaration carries its own.
		t.Decl = &declRef{resolved: &cursorNode{
			Kind:       clang.KindTypedefDecl,
			Name:       t.typedefName(),
			File:       file,
			Underlying: t.Underlying,
		}}
	}
	for _, inner := range t.inner() {
		if err := tu.linkType(inner, file); err != nil {
			return err
		}
	}
	return nil
}

func (n *cursorNode) types() []*typeNode {
	return []*typeNode{n.Type, n.Result, n.Underlying, n.IntegerType}
}

func (t *typeNode) inner() []*typeNode {
	inner := []*typeNode{t.Underlying, t.Pointee, t.Element, t.Modified, t.Named, t.Result, t.Base, t.Canonical}
	inner = append(inner, t.Args...)
	return append(inner, t.TypeArgs...)
}

func (t *typeNode) typedefName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Spelling
}
