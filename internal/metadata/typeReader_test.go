package metadata

import (
	"errors"
	"reflect"
	"testing"

	"objcbind/internal/clang"
	"objcbind/internal/clang/snapshot"
)

// fieldType decodes a snapshot whose first field cursor carries the type under test.
func fieldType(t *testing.T, doc string) clang.Type {
	t.Helper()
	tu, err := snapshot.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, c := range clang.Children(tu.Root()) {
		if c.Kind() == clang.KindFieldDecl {
			return c.Type()
		}
	}
	t.Fatal("snapshot has no field cursor")
	return nil
}

func TestResolveType(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want SemanticType
	}{
		{
			name: "nonnull object pointer",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: Attributed
      nullability: nonnull
      modified: {kind: ObjCObjectPointer, pointee: {kind: ObjCInterface, spelling: NSString}}
`,
			want: Pointer{Inner: ClassRef{Name: "NSString"}, Nonnull: true},
		},
		{
			name: "absent nullability is nullable",
			doc: `
cursors:
  - kind: FieldDecl
    type: {kind: ObjCObjectPointer, pointee: {kind: ObjCInterface, spelling: NSString}}
`,
			want: Pointer{Inner: ClassRef{Name: "NSString"}},
		},
		{
			name: "nullability passes through typedef sugar",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: Attributed
      nullability: nonnull
      modified:
        kind: Typedef
        name: NSStringRef
        underlying: {kind: ObjCObjectPointer, pointee: {kind: ObjCInterface, spelling: NSString}}
`,
			want: Pointer{Inner: ClassRef{Name: "NSString"}, Nonnull: true},
		},
		{
			name: "instancetype",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: Attributed
      nullability: nonnull
      modified: {kind: Typedef, name: instancetype, underlying: {kind: ObjCId}}
`,
			want: Pointer{Inner: InstanceTypeRef{}, Nonnull: true},
		},
		{
			name: "BOOL is boolean",
			doc: `
cursors:
  - kind: FieldDecl
    type: {kind: Typedef, name: BOOL, underlying: {kind: SChar}}
`,
			want: Bool{},
		},
		{
			name: "typedef to builtin elided",
			doc: `
cursors:
  - kind: FieldDecl
    type: {kind: Typedef, name: NSInteger, underlying: {kind: Long}}
`,
			want: PlatformLong{Signed: true},
		},
		{
			name: "generic class splits into base and arguments",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: ObjCObjectPointer
      pointee:
        kind: ObjCObject
        base: {kind: ObjCInterface, spelling: NSArray}
        typeArgs:
          - {kind: ObjCObjectPointer, pointee: {kind: ObjCInterface, spelling: NSString}}
        protocols: [NSFastEnumeration]
`,
			want: Pointer{Inner: ClassRef{
				Name:      "NSArray",
				TypeArgs:  []SemanticType{Pointer{Inner: ClassRef{Name: "NSString"}}},
				Protocols: []string{"NSFastEnumeration"},
			}},
		},
		{
			name: "id with protocol",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: ObjCObjectPointer
      pointee: {kind: ObjCObject, base: {kind: ObjCId}, protocols: [NSCopying]}
`,
			want: Pointer{Inner: IdRef{Protocol: "NSCopying"}},
		},
		{
			name: "Class",
			doc: `
cursors:
  - kind: FieldDecl
    type: {kind: ObjCClass}
`,
			want: Pointer{Inner: ClassRef{Name: "Class"}},
		},
		{
			name: "typedef name overrides record tag",
			doc: `
cursors:
  - id: rect
    kind: StructDecl
    name: CGRect
  - kind: FieldDecl
    type: {kind: Typedef, name: NSRect, underlying: {kind: Elaborated, named: {kind: Record, decl: rect}}}
`,
			want: RecordRef{Name: "NSRect"},
		},
		{
			name: "typedef over pointer to anonymous record survives",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: Typedef
      name: FooRef
      underlying:
        kind: Pointer
        pointee: {kind: Elaborated, named: {kind: Record, decl: {kind: StructDecl, line: 4}}}
`,
			want: TypedefRef{Name: "FooRef"},
		},
		{
			name: "variadic function pointer",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: Pointer
      pointee: {kind: FunctionProto, result: {kind: Void}, args: [{kind: Int}], variadic: true}
`,
			want: Pointer{Inner: FunctionSignature{Args: []SemanticType{Int{Signed: true, Width: 4}}, Result: Void{}, Variadic: true}},
		},
		{
			name: "block",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: BlockPointer
      pointee: {kind: FunctionProto, result: {kind: Bool}}
`,
			want: Pointer{Inner: FunctionSignature{Result: Bool{}, Block: true}},
		},
		{
			name: "type parameter resolves through canonical type",
			doc: `
cursors:
  - kind: FieldDecl
    type:
      kind: ObjCTypeParam
      spelling: ObjectType
      canonical: {kind: ObjCId}
`,
			want: Pointer{Inner: IdRef{}},
		},
		{
			name: "const char pointer",
			doc: `
cursors:
  - kind: FieldDecl
    type: {kind: Pointer, pointee: {kind: Char_S, const: true}}
`,
			want: Pointer{Inner: Int{Signed: true, Width: 1}, Const: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveType(fieldType(t, tt.doc))
			if err != nil {
				t.Fatalf("ResolveType: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolveTypeUnsupported(t *testing.T) {
	_, err := ResolveType(fieldType(t, `
cursors:
  - kind: FieldDecl
    type: {kind: LongDouble}
`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestVaList(t *testing.T) {
	vaList := FixedArray{Inner: RecordRef{Name: "__va_list_tag"}, Len: 1}
	if !IsVaList(vaList) {
		t.Error("va_list not flagged")
	}
	if names := ReferencedNames(vaList); len(names) != 0 {
		t.Errorf("va_list reported references %v", names)
	}
	if IsVaList(FixedArray{Inner: Int{Signed: true, Width: 4}, Len: 1}) {
		t.Error("int array flagged as va_list")
	}
}

func TestReferencedNames(t *testing.T) {
	tests := []struct {
		name string
		in   SemanticType
		want []ReferencedName
	}{
		{
			name: "protocol and class stay distinct",
			in: FunctionSignature{
				Args:   []SemanticType{Pointer{Inner: IdRef{Protocol: "NSObject"}}},
				Result: Pointer{Inner: ClassRef{Name: "NSObject"}},
			},
			want: []ReferencedName{ProtocolName("NSObject"), TypeName("NSObject")},
		},
		{
			name: "builtin classes skipped, type arguments followed",
			in: Pointer{Inner: ClassRef{
				Name:     "Class",
				TypeArgs: []SemanticType{Pointer{Inner: ClassRef{Name: "NSString"}}, RecordRef{Name: "CGRect"}},
			}},
			want: []ReferencedName{TypeName("NSString"), TypeName("CGRect")},
		},
		{
			name: "duplicates collapse",
			in:   FixedArray{Inner: FunctionSignature{Args: []SemanticType{EnumRef{Name: "E"}, EnumRef{Name: "E"}}, Result: TypedefRef{Name: "T"}}},
			want: []ReferencedName{TypeName("E"), TypeName("T")},
		},
		{
			name: "plain id references nothing",
			in:   Pointer{Inner: IdRef{}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReferencedNames(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsObjectPointer(t *testing.T) {
	tests := []struct {
		in   SemanticType
		want bool
	}{
		{Pointer{Inner: IdRef{}}, true},
		{Pointer{Inner: ClassRef{Name: "NSString"}}, true},
		{Pointer{Inner: InstanceTypeRef{}}, true},
		{Pointer{Inner: Void{}}, false},
		{Pointer{Inner: Pointer{Inner: IdRef{}}}, false},
		{ClassRef{Name: "NSString"}, false},
	}
	for _, tt := range tests {
		if got := IsObjectPointer(tt.in); got != tt.want {
			t.Errorf("IsObjectPointer(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
