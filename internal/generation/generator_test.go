package generation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRuntime = "example.com/objc"

func source(t *testing.T, b *Binding) string {
	t.Helper()
	generator := NewGenerator("bindings", t.TempDir(), testRuntime)
	src, err := generator.Source(b)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return src
}

func assertContains(t *testing.T, src string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if !strings.Contains(src, f) {
			t.Errorf("source lacks %q", f)
		}
	}
	if t.Failed() {
		t.Log(src)
	}
}

func TestRenderRoot(t *testing.T) {
	src := source(t, bindOf(t, rootUnit, rootSnapshot))

	assertContains(t, src,
		"// Code generated by objcbind. DO NOT EDIT.",
		"package bindings",
		`"example.com/objc"`,
		`objc.RegisterSelector("isProxy")`,
		`objc.RegisterSelector("new")`,
		`classRoot_Root = objc.LinkClass("OBJC_CLASS_$_Root")`,
		"type Root struct {\n\tobjc.Object\n}",
		"func RootFromObject(o *objc.Object) *Root {",
		"return &Root{Object: *o}",
		"func RootNew() *Root {",
		"ret := objc.Send[objc.ID](objc.ID(classRoot_Root), selRoot_new)",
		"return RootFromObject(objc.Adopt(ret))",
		"func (o *Root) IsProxy() bool {",
		"ret := objc.Send[bool](o.ID(), selRoot_isProxy)",
	)
	if strings.Contains(src, "RetainAutoreleasedReturnValue") || strings.Contains(src, "objc.Retain(") {
		t.Error("retained result is retained again")
	}
}

func TestRenderShapes(t *testing.T) {
	src := source(t, bindOf(t, shapesUnit, shapesSnapshot))

	assertContains(t, src,
		"func NewShapeWithSize(size Size) *Shape {",
		"self := objc.AllocWithZone(classShapes_Shape)",
		"ret := objc.Send[objc.ID](self, selShapes_initWithSize_c, size)",
		"ret = objc.RetainAutoreleasedReturnValue(ret)",
		"ret = objc.Retain(ret)",
		"objc.SendFpret[float64](o.ID(), selShapes_area)",
		"objc.SendStret[Size](o.ID(), selShapes_size)",
		"return objc.Borrow(&o.Object, ret)",
		"func (o *Shape) AsDrawable() *DrawableProto {",
		"return DrawableProtoFromObject(o.Clone())",
		"// Deprecated: use area",
		`objc.LinkFunc(libraryShapes, "ShapeMake")`,
		"ret := objc.Call[objc.ID](fnShapes_ShapeMake)",
		"if ret == 0 {",
		"func (o *Shape) AddShapeType(shape *Shape, type_ *Shape) {",
		"objc.Send[struct{}](o.ID(), selShapes_addShape_ctype_c, shape.ID(), type_ID)",
		"func (o *Shape) GetShapeError(out **Shape, error **objc.Object) bool {",
		"*out = ShapeFromObject(objc.Adopt(objc.Retain(outOut)))",
		"*error = objc.Adopt(objc.Retain(errorOut))",
		"func (o *Shape) Kind() objc.Class {",
	)
	for _, absent := range []string{"logv", "take", "registry", "ShapeLog", "NewDrawable"} {
		if strings.Contains(src, absent) {
			t.Errorf("source mentions dropped %s", absent)
		}
	}
}

func TestRenderUnions(t *testing.T) {
	src := source(t, bindOf(t, Unit{Name: "Values", BasePath: "/sdk/include"}, unionSnapshot))

	assertContains(t, src,
		`"unsafe"`,
		"[0]uint64",
		"Data [16]byte",
		"func (u *Value) D() *float64 {",
		"return (*float64)(unsafe.Pointer(&u.Data))",
		"func (u *Value) Tag() *[11]int8 {",
		"[0]uint32",
		"type Shrouded struct{}",
		"type Hidden struct{}",
		"type Pair struct {",
	)
}

func TestRenderImportsAndSubUnits(t *testing.T) {
	unit := Unit{
		Name:      "AppKit",
		Framework: "AppKit",
		BasePath:  appKitHeaders,
		Library:   "/System/Library/Frameworks/AppKit.framework/AppKit",
		SubUnits:  []string{"AppKit_Embedded"},
	}
	index := staticIndex{}
	b := Bind(unit, catalogOf(t, viewSnapshot), index, Options{})
	src := source(t, b)

	assertContains(t, src,
		"// Names used from other units:",
		"//   Foundation: @protocol NSCoding, NSObject, NSString",
		"//   CoreGraphics: CGPoint",
		`const libraryAppKit = "/System/Library/Frameworks/AppKit.framework/AppKit"`,
		`var AppKitSubUnits = []string{"AppKit_Embedded"}`,
		"type NSView struct {\n\tNSObject\n}",
		"return &NSView{NSObject: *NSObjectFromObject(o)}",
		"func (o *NSView) AsNSCoding() *NSCodingProto {",
		"func (o *NSView) Center() CGPoint {",
	)
	if strings.Contains(src, "Layer") || strings.Contains(src, "NSBroken") {
		t.Error("declarations over unknown names were rendered")
	}
}

func TestGenerateWritesUnitFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "bindings")
	generator := NewGenerator("bindings", out, testRuntime)

	path, err := generator.Generate(bindOf(t, rootUnit, rootSnapshot))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if want := filepath.Join(out, "Root.go"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "// Code generated by objcbind. DO NOT EDIT.") {
		t.Errorf("file starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	// Regenerating into an existing directory overwrites the file.
	if _, err := generator.Generate(bindOf(t, rootUnit, rootSnapshot)); err != nil {
		t.Errorf("regenerate: %v", err)
	}
}
