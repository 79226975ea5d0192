package metadata

import (
	"errors"
	"fmt"

	"objcbind/internal/clang"
)

// ErrUnsupportedType is returned for types the binding model cannot express.
// The declaration that mentions such a type is dropped.
var ErrUnsupportedType = errors.New("unsupported type")

// The map of basic C types to semantic types
var builtInElementTypes = map[clang.TypeKind]SemanticType{
	clang.TypeVoid:      Void{},
	clang.TypeBool:      Bool{},
	clang.TypeCharS:     Int{Signed: true, Width: 1},
	clang.TypeSChar:     Int{Signed: true, Width: 1},
	clang.TypeCharU:     Int{Signed: false, Width: 1},
	clang.TypeUChar:     Int{Signed: false, Width: 1},
	clang.TypeChar16:    Int{Signed: false, Width: 2},
	clang.TypeChar32:    Int{Signed: false, Width: 4},
	clang.TypeWChar:     Int{Signed: true, Width: 4},
	clang.TypeShort:     Int{Signed: true, Width: 2},
	clang.TypeUShort:    Int{Signed: false, Width: 2},
	clang.TypeInt:       Int{Signed: true, Width: 4},
	clang.TypeUInt:      Int{Signed: false, Width: 4},
	clang.TypeLong:      PlatformLong{Signed: true},
	clang.TypeULong:     PlatformLong{Signed: false},
	clang.TypeLongLong:  Int{Signed: true, Width: 8},
	clang.TypeULongLong: Int{Signed: false, Width: 8},
	clang.TypeFloat:     Float{Width: 4},
	clang.TypeDouble:    Float{Width: 8},
	clang.TypeObjCSel:   SelectorHandle{},
}

// The map of typedef names with a fixed meaning regardless of their definition
var builtInTypeDefs = map[string]SemanticType{
	"BOOL": Bool{},
}

const instanceTypeName = "instancetype"

// ResolveType strips typedef, attribute and elaboration sugar from t and returns its shape.
func ResolveType(t clang.Type) (SemanticType, error) {
	return readType(t, "", false)
}

// readType resolves t. name is the typedef name the result is known by, if any;
// nonnull is the nullability of the closest attributed wrapper.
func readType(t clang.Type, name string, nonnull bool) (SemanticType, error) {
	if builtIn, found := builtInElementTypes[t.Kind()]; found {
		return builtIn, nil
	}

	switch t.Kind() {
	case clang.TypeRecord:
		decl := t.Declaration()
		if decl == nil {
			return nil, fmt.Errorf("%w: record %q without declaration", ErrUnsupportedType, t.Spelling())
		}
		ref := RecordRef{Name: name, Union: decl.Kind() == clang.KindUnionDecl}
		if ref.Name == "" {
			ref.Name = decl.Name()
		}
		if ref.Name == "" {
			ref.Site = decl.Location()
		}
		return ref, nil

	case clang.TypeEnum:
		decl := t.Declaration()
		if decl == nil {
			return nil, fmt.Errorf("%w: enum %q without declaration", ErrUnsupportedType, t.Spelling())
		}
		ref := EnumRef{Name: name}
		if ref.Name == "" {
			ref.Name = decl.Name()
		}
		if ref.Name == "" {
			ref.Site = decl.Location()
		}
		return ref, nil

	case clang.TypeConstantArray:
		inner, err := readType(t.Element(), "", false)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return FixedArray{Inner: inner, Len: t.ArraySize()}, nil

	case clang.TypeIncompleteArray:
		inner, err := readType(t.Element(), "", false)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return Pointer{Inner: inner, Nonnull: nonnull}, nil

	case clang.TypeTypedef:
		typedefName := t.TypedefName()
		if typedefName == instanceTypeName {
			return Pointer{Inner: InstanceTypeRef{}, Nonnull: nonnull}, nil
		}
		if builtIn, found := builtInTypeDefs[typedefName]; found {
			return builtIn, nil
		}
		decl := t.Declaration()
		if decl == nil {
			return nil, fmt.Errorf("%w: typedef %q without declaration", ErrUnsupportedType, typedefName)
		}
		inner, err := readType(decl.TypedefUnderlyingType(), typedefName, nonnull)
		if err != nil {
			return nil, fmt.Errorf("typedef %s: %w", typedefName, err)
		}
		// Only a typedef over something still anonymous survives as a name of its own.
		if IsAnonymous(inner) {
			return TypedefRef{Name: typedefName}, nil
		}
		return inner, nil

	case clang.TypeAttributed:
		return readType(t.Modified(), name, t.Nullability() == clang.NullabilityNonNull)

	case clang.TypeElaborated:
		return readType(t.Named(), name, nonnull)

	case clang.TypePointer:
		pointee := t.Pointee()
		inner, err := readType(pointee, "", false)
		if err != nil {
			return nil, fmt.Errorf("pointee: %w", err)
		}
		return Pointer{Inner: inner, Nonnull: nonnull, Const: pointee.IsConst()}, nil

	case clang.TypeBlockPointer:
		inner, err := readType(t.Pointee(), "", false)
		if err != nil {
			return nil, fmt.Errorf("block: %w", err)
		}
		signature, ok := inner.(FunctionSignature)
		if !ok {
			return nil, fmt.Errorf("%w: block pointer to %T", ErrUnsupportedType, inner)
		}
		signature.Block = true
		return Pointer{Inner: signature, Nonnull: nonnull}, nil

	case clang.TypeFunctionProto, clang.TypeFunctionNoProto:
		result, err := readType(t.Result(), "", false)
		if err != nil {
			return nil, fmt.Errorf("function result: %w", err)
		}
		signature := FunctionSignature{Result: result, Variadic: t.IsVariadic()}
		for i, arg := range t.ArgTypes() {
			argType, err := readType(arg, "", false)
			if err != nil {
				return nil, fmt.Errorf("function argument %d: %w", i, err)
			}
			signature.Args = append(signature.Args, argType)
		}
		return signature, nil

	case clang.TypeObjCObjectPointer:
		inner, err := readType(t.Pointee(), "", false)
		if err != nil {
			return nil, fmt.Errorf("object pointee: %w", err)
		}
		return Pointer{Inner: inner, Nonnull: nonnull}, nil

	case clang.TypeObjCInterface:
		return ClassRef{Name: t.Spelling()}, nil

	case clang.TypeObjCId:
		return Pointer{Inner: IdRef{}, Nonnull: nonnull}, nil

	case clang.TypeObjCClass:
		return Pointer{Inner: ClassRef{Name: "Class"}, Nonnull: nonnull}, nil

	case clang.TypeObjCObject:
		return readObjectType(t)

	case clang.TypeObjCTypeParam, clang.TypeUnexposed:
		canonical := t.Canonical()
		if canonical.Kind() == t.Kind() {
			return nil, fmt.Errorf("%w: %s without canonical type", ErrUnsupportedType, t.Kind())
		}
		return readType(canonical, name, nonnull)
	}

	return nil, fmt.Errorf("%w: %q of kind %s", ErrUnsupportedType, t.Spelling(), t.Kind())
}

// readObjectType splits a generic object type into its base class, type
// arguments and protocol list.
func readObjectType(t clang.Type) (SemanticType, error) {
	base := t.ObjCBase()
	protocols := t.ObjCProtocols()

	switch base.Kind() {
	case clang.TypeObjCId:
		ref := IdRef{}
		if len(protocols) > 0 {
			ref.Protocol = protocols[0]
		}
		return ref, nil

	case clang.TypeObjCInterface, clang.TypeObjCClass:
		ref := ClassRef{Name: base.Spelling(), Protocols: protocols}
		for i, arg := range t.ObjCTypeArgs() {
			argType, err := readType(arg, "", false)
			if err != nil {
				return nil, fmt.Errorf("type argument %d of %s: %w", i, ref.Name, err)
			}
			ref.TypeArgs = append(ref.TypeArgs, argType)
		}
		return ref, nil
	}

	return nil, fmt.Errorf("%w: object type with base %s", ErrUnsupportedType, base.Kind())
}
