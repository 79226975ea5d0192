package generation

import (
	"reflect"
	"testing"

	"objcbind/internal/clang/snapshot"
	"objcbind/internal/metadata"
)

const appKitHeaders = "/SDK/System/Library/Frameworks/AppKit.framework/Headers"

func catalogOf(t *testing.T, doc string) *metadata.Catalog {
	t.Helper()
	tu, err := snapshot.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	builder := metadata.NewBuilder(metadata.Options{})
	if err := builder.Build(tu.Root()); err != nil {
		t.Fatalf("build: %v", err)
	}
	catalog, err := builder.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return catalog
}

const viewSnapshot = `
main: /SDK/System/Library/Frameworks/AppKit.framework/Headers/AppKit.h
cursors:
  - kind: ObjCInterfaceDecl
    name: NSObject
    file: /SDK/System/Library/Frameworks/Foundation.framework/Headers/NSObject.h
    line: 1
  - kind: ObjCProtocolDecl
    name: NSCoding
    file: /SDK/System/Library/Frameworks/Foundation.framework/Headers/NSObject.h
    line: 5
    children:
      - {kind: ObjCInstanceMethodDecl, name: classForCoder, line: 6, result: {kind: ObjCClass}}
  - kind: StructDecl
    name: CGPoint
    file: /SDK/System/Library/Frameworks/CoreGraphics.framework/Headers/CGGeometry.h
    line: 1
    children:
      - {kind: FieldDecl, name: x, line: 1, type: {kind: Double}}
      - {kind: FieldDecl, name: y, line: 1, type: {kind: Double}}
  - kind: StructDecl
    name: NSEdge
    file: /SDK/System/Library/Frameworks/AppKit.framework/Headers/NSView.h
    line: 2
    children:
      - {kind: FieldDecl, name: origin, line: 2, type: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, name: CGPoint}}}}
  - kind: StructDecl
    name: NSBroken
    file: /SDK/System/Library/Frameworks/AppKit.framework/Headers/NSView.h
    line: 3
    children:
      - {kind: FieldDecl, name: m, line: 3, type: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, name: Mystery}}}}
  - kind: StructDecl
    name: NSStranded
    file: /SDK/System/Library/Frameworks/AppKit.framework/Headers/NSView.h
    line: 4
    children:
      - {kind: FieldDecl, name: b, line: 4, type: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, name: NSBroken}}}}
  - kind: ObjCInterfaceDecl
    name: NSView
    file: /SDK/System/Library/Frameworks/AppKit.framework/Headers/NSView.h
    line: 10
    children:
      - {kind: ObjCSuperClassRef, name: NSObject}
      - {kind: ObjCProtocolRef, name: NSCoding}
      - kind: ObjCInstanceMethodDecl
        name: title
        line: 11
        result: {kind: ObjCObjectPointer, pointee: {kind: ObjCInterface, spelling: NSString}}
      - kind: ObjCInstanceMethodDecl
        name: layer
        line: 12
        result: {kind: ObjCObjectPointer, pointee: {kind: ObjCInterface, spelling: CALayer}}
      - kind: ObjCInstanceMethodDecl
        name: center
        line: 13
        result: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, name: CGPoint}}}
      - kind: ObjCInstanceMethodDecl
        name: broken
        line: 14
        result: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, name: NSBroken}}}
  - kind: StructDecl
    name: NSEmbedded
    file: /SDK/System/Library/Frameworks/AppKit.framework/Frameworks/Embedded.framework/Headers/E.h
    line: 1
    children:
      - {kind: FieldDecl, name: v, line: 1, type: {kind: Int}}
`

type staticIndex map[metadata.ReferencedName]Origin

func (i staticIndex) Origin(name metadata.ReferencedName) (Origin, bool) {
	o, ok := i[name]
	return o, ok
}

func TestResolverPartitionsNames(t *testing.T) {
	catalog := catalogOf(t, viewSnapshot)
	unit := Unit{Name: "AppKit", Framework: "AppKit", BasePath: appKitHeaders}
	index := staticIndex{metadata.TypeName("CALayer"): {Framework: "QuartzCore", Unit: "QuartzCore"}}

	res := NewResolver(unit, catalog, index, nil).Resolve()

	var local []string
	for _, d := range res.Decls {
		local = append(local, d.DeclName())
	}
	if want := []string{"NSEdge", "NSView"}; !reflect.DeepEqual(local, want) {
		t.Errorf("local decls = %v, want %v", local, want)
	}

	wantImports := map[string][]string{
		"CoreGraphics": {"CGPoint"},
		"Foundation":   {"@protocol NSCoding", "NSObject", "NSString"},
		"QuartzCore":   {"CALayer"},
	}
	if !reflect.DeepEqual(res.Imports, wantImports) {
		t.Errorf("imports = %v, want %v", res.Imports, wantImports)
	}
	if want := []string{"CoreGraphics", "Foundation", "QuartzCore"}; !reflect.DeepEqual(res.Dependencies, want) {
		t.Errorf("dependencies = %v, want %v", res.Dependencies, want)
	}

	for _, tt := range []struct {
		name metadata.ReferencedName
		want bool
	}{
		{metadata.TypeName("NSView"), true},
		{metadata.TypeName("NSString"), true},
		{metadata.ProtocolName("NSCoding"), true},
		{metadata.TypeName("NSCoding"), false},
		{metadata.TypeName("Mystery"), false},
		{metadata.TypeName("NSBroken"), false},
		{metadata.TypeName("NSStranded"), false},
	} {
		if got := res.Known(tt.name); got != tt.want {
			t.Errorf("Known(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}

	dropped := map[string]bool{}
	for _, e := range res.Trace {
		if e.Stage == StageDropped {
			dropped[e.Subject] = true
		}
	}
	if !dropped["NSBroken"] || !dropped["NSStranded"] {
		t.Errorf("trace = %v, want NSBroken and the record stranded by it dropped", res.Trace)
	}
}

func TestResolverSubFrameworkImports(t *testing.T) {
	catalog := catalogOf(t, viewSnapshot+`
  - kind: FunctionDecl
    name: NSUseEmbedded
    file: /SDK/System/Library/Frameworks/AppKit.framework/Headers/NSView.h
    line: 20
    result: {kind: Void}
    args:
      - {kind: ParmDecl, name: e, type: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, name: NSEmbedded}}}}
`)
	unit := Unit{Name: "AppKit", Framework: "AppKit", BasePath: appKitHeaders}
	res := NewResolver(unit, catalog, nil, map[string]string{}).Resolve()

	if got := res.Imports["AppKit_Embedded"]; !reflect.DeepEqual(got, []string{"NSEmbedded"}) {
		t.Errorf("sub-framework import = %v", got)
	}
	for _, dep := range res.Dependencies {
		if dep == "AppKit" {
			t.Error("a unit depends on its own framework")
		}
	}
	if res.Known(metadata.TypeName("NSString")) {
		t.Error("NSString known without a fallback")
	}
	if len(res.Functions) != 1 {
		t.Errorf("functions = %v", res.Functions)
	}
}

func TestSharedIndexFirstPublisherWins(t *testing.T) {
	index := NewSharedIndex()
	index.Publish(Origin{Framework: "Foundation", Unit: "Foundation"}, []metadata.ReferencedName{metadata.TypeName("NSString")})
	index.Publish(Origin{Framework: "AppKit", Unit: "AppKit"}, []metadata.ReferencedName{metadata.TypeName("NSString"), metadata.TypeName("NSView")})

	if o, _ := index.Origin(metadata.TypeName("NSString")); o.Framework != "Foundation" {
		t.Errorf("NSString from %s", o.Framework)
	}
	if o, ok := index.Origin(metadata.TypeName("NSView")); !ok || o.Unit != "AppKit" {
		t.Errorf("NSView = %v, %v", o, ok)
	}
	if _, ok := index.Origin(metadata.ProtocolName("NSView")); ok {
		t.Error("protocol namespace shares entries with types")
	}
}

func TestFrameworkChain(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/SDK/System/Library/Frameworks/AppKit.framework/Headers/NSView.h", []string{"AppKit"}},
		{"/SDK/System/Library/Frameworks/CoreServices.framework/Frameworks/LaunchServices.framework/Headers/LS.h", []string{"CoreServices", "LaunchServices"}},
		{"/SDK/usr/include/objc/NSObject.h", nil},
	}
	for _, tt := range tests {
		if got := FrameworkChain(tt.path); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FrameworkChain(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestUnitOwns(t *testing.T) {
	unit := Unit{Name: "AppKit", Framework: "AppKit", BasePath: appKitHeaders}
	tests := []struct {
		file string
		want bool
	}{
		{appKitHeaders + "/NSView.h", true},
		{appKitHeaders + "/Sub/NSCell.h", true},
		{"/SDK/System/Library/Frameworks/AppKit.framework/HeadersExtra/X.h", false},
		{"/SDK/System/Library/Frameworks/AppKit.framework/Frameworks/Embedded.framework/Headers/E.h", false},
	}
	for _, tt := range tests {
		if got := unit.Owns(tt.file); got != tt.want {
			t.Errorf("Owns(%q) = %v, want %v", tt.file, got, tt.want)
		}
	}
}
