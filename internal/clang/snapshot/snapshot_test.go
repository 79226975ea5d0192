package snapshot

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"objcbind/internal/clang"
)

const linked = `
main: /sdk/Kit.h
cursors:
  - id: rect
    kind: StructDecl
    name: Rect
    file: /sdk/Geometry.h
    line: 3
    children:
      - {kind: FieldDecl, name: w, line: 4, type: {kind: Double}}
  - kind: FunctionDecl
    name: area
    line: 9
    result: {kind: Double}
    args:
      - kind: ParmDecl
        name: r
        type: {kind: Elaborated, named: {kind: Record, decl: rect}}
      - kind: ParmDecl
        name: inline
        type: {kind: Pointer, pointee: {kind: Record, decl: {kind: StructDecl, name: Hidden, line: 1}}}
  - kind: TypedefDecl
    name: Width
    line: 10
    underlying: {kind: Typedef, name: CGFloat, underlying: {kind: Double}}
`

func children(c clang.Cursor) []clang.Cursor {
	var out []clang.Cursor
	c.Visit(func(child clang.Cursor) clang.VisitResult {
		out = append(out, child)
		return clang.VisitContinue
	})
	return out
}

func TestDecodeLinksDeclarations(t *testing.T) {
	tu, err := Decode([]byte(linked))
	if err != nil {
		t.Fatal(err)
	}
	if tu.MainFile() != "/sdk/Kit.h" {
		t.Errorf("main = %s", tu.MainFile())
	}

	top := children(tu.Root())
	if len(top) != 3 {
		t.Fatalf("%d top-level cursors", len(top))
	}
	fn := top[1]
	if loc := fn.Location(); loc.File != "/sdk/Kit.h" || loc.Line != 9 {
		t.Errorf("function location = %s, want the main file inherited", loc)
	}

	args := fn.Arguments()
	byID := args[0].Type().Named().Declaration()
	if byID == nil || byID.Name() != "Rect" || byID.Location().File != "/sdk/Geometry.h" {
		t.Errorf("decl by id = %v", byID)
	}
	if got := args[0].Type().Spelling(); got != "elaborated" {
		t.Errorf("elaborated spelling = %q", got)
	}
	if got := args[0].Type().Named().Spelling(); got != "Rect" {
		t.Errorf("record spelling = %q", got)
	}

	inline := args[1].Type().Pointee().Declaration()
	if inline == nil || inline.Name() != "Hidden" || inline.Location().File != "/sdk/Kit.h" {
		t.Errorf("inline decl = %v", inline)
	}

	alias := top[2].TypedefUnderlyingType()
	if alias.TypedefName() != "CGFloat" {
		t.Errorf("typedef name = %q", alias.TypedefName())
	}
	synthesized := alias.Declaration()
	if synthesized == nil || synthesized.Kind() != clang.KindTypedefDecl {
		t.Fatalf("typedef without decl got %v", synthesized)
	}
	if got := synthesized.TypedefUnderlyingType().Kind(); got != clang.TypeDouble {
		t.Errorf("synthesized typedef underlies %s", got)
	}
	if got := alias.Canonical().Kind(); got != clang.TypeDouble {
		t.Errorf("canonical = %s", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"unknown id": `
cursors:
  - {kind: TypedefDecl, name: T, underlying: {kind: Record, decl: nowhere}}
`,
		"duplicate id": `
cursors:
  - {id: a, kind: StructDecl, name: A}
  - {id: a, kind: StructDecl, name: B}
`,
		"malformed": "cursors: [",
		"bad decl":  "cursors:\n  - {kind: TypedefDecl, name: T, underlying: {kind: Record, decl: [1]}}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(doc)); !errors.Is(err, clang.ErrParse) {
				t.Errorf("err = %v, want ErrParse", err)
			}
		})
	}
}

func TestEnumValues(t *testing.T) {
	tu, err := Decode([]byte(`
cursors:
  - kind: EnumDecl
    name: E
    children:
      - {kind: EnumConstantDecl, name: Neg, value: -1}
      - {kind: EnumConstantDecl, name: Max, value: 18446744073709551615}
      - {kind: EnumConstantDecl, name: Zero}
`))
	if err != nil {
		t.Fatal(err)
	}
	constants := children(children(tu.Root())[0])

	if got := constants[0].EnumConstantValue(); got != -1 {
		t.Errorf("Neg = %d", got)
	}
	if got := constants[1].EnumConstantUnsignedValue(); got != math.MaxUint64 {
		t.Errorf("Max = %d", got)
	}
	if got := constants[1].EnumConstantValue(); got != -1 {
		t.Errorf("Max read signed = %d, want the same bits", got)
	}
	if got := constants[2].EnumConstantValue(); got != 0 {
		t.Errorf("Zero = %d", got)
	}

	if _, err := Decode([]byte("cursors:\n  - {kind: EnumConstantDecl, value: 1e99}\n")); err == nil {
		t.Error("non-integer enum value accepted")
	}
}

func TestPropertyAccessorNames(t *testing.T) {
	tu, err := Decode([]byte(`
cursors:
  - kind: ObjCInterfaceDecl
    name: View
    children:
      - {kind: ObjCPropertyDecl, name: hidden, property: {getter: isHidden}}
      - {kind: ObjCPropertyDecl, name: frame, property: {readonly: true, class: true}}
`))
	if err != nil {
		t.Fatal(err)
	}
	props := children(children(tu.Root())[0])

	if got := props[0].GetterName(); got != "isHidden" {
		t.Errorf("getter = %s", got)
	}
	if got := props[0].SetterName(); got != "setHidden:" {
		t.Errorf("setter = %s", got)
	}
	if got := props[1].GetterName(); got != "frame" {
		t.Errorf("default getter = %s", got)
	}
	if attrs := props[1].PropertyAttributes(); !attrs.ReadOnly || !attrs.Class {
		t.Errorf("attributes = %+v", attrs)
	}
}

func TestIndexParse(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Kit.yaml"), []byte("cursors: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Other.json"), []byte(`{"main": "/json/Other.h", "cursors": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	index, err := NewIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tu, err := index.Parse(ctx, "/sdk/Kit.framework/Headers/Kit.h", nil)
	if err != nil {
		t.Fatal(err)
	}
	if tu.(*TranslationUnit).MainFile() != "/sdk/Kit.framework/Headers/Kit.h" {
		t.Errorf("main = %s, want the requested header", tu.(*TranslationUnit).MainFile())
	}

	tu, err = index.Parse(ctx, "/sdk/Other.h", nil)
	if err != nil {
		t.Fatal(err)
	}
	if tu.(*TranslationUnit).MainFile() != "/json/Other.h" {
		t.Errorf("main = %s, want the recorded one", tu.(*TranslationUnit).MainFile())
	}

	if _, err := index.Parse(ctx, "/sdk/Missing.h", nil); !errors.Is(err, clang.ErrParse) {
		t.Errorf("missing snapshot err = %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := index.Parse(canceled, "/sdk/Kit.h", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled parse err = %v", err)
	}
}

func TestNewIndexRejectsFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewIndex(file); !errors.Is(err, clang.ErrIndex) {
		t.Errorf("file err = %v", err)
	}
	if _, err := NewIndex(filepath.Join(t.TempDir(), "absent")); !errors.Is(err, clang.ErrIndex) {
		t.Errorf("absent err = %v", err)
	}
}
