// Package clang describes the read-only AST query surface the generator consumes.
// It mirrors the subset of libclang's cursor/type API needed to read Objective-C headers.
package clang

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIndex is returned when the AST engine could not be initialized.
	ErrIndex = errors.New("ast index unavailable")
	// ErrParse is returned when a header or framework could not be parsed.
	ErrParse = errors.New("ast parse failed")
)

type CursorKind string

const (
	KindTranslationUnit        CursorKind = "TranslationUnit"
	KindObjCInterfaceDecl      CursorKind = "ObjCInterfaceDecl"
	KindObjCCategoryDecl       CursorKind = "ObjCCategoryDecl"
	KindObjCProtocolDecl       CursorKind = "ObjCProtocolDecl"
	KindObjCSuperClassRef      CursorKind = "ObjCSuperClassRef"
	KindObjCProtocolRef        CursorKind = "ObjCProtocolRef"
	KindObjCClassRef           CursorKind = "ObjCClassRef"
	KindObjCInstanceMethodDecl CursorKind = "ObjCInstanceMethodDecl"
	KindObjCClassMethodDecl    CursorKind = "ObjCClassMethodDecl"
	KindObjCPropertyDecl       CursorKind = "ObjCPropertyDecl"
	KindParmDecl               CursorKind = "ParmDecl"
	KindStructDecl             CursorKind = "StructDecl"
	KindUnionDecl              CursorKind = "UnionDecl"
	KindFieldDecl              CursorKind = "FieldDecl"
	KindEnumDecl               CursorKind = "EnumDecl"
	KindEnumConstantDecl       CursorKind = "EnumConstantDecl"
	KindTypedefDecl            CursorKind = "TypedefDecl"
	KindFunctionDecl           CursorKind = "FunctionDecl"

	// Attribute cursors attached to declarations.
	KindNSReturnsRetained       CursorKind = "NSReturnsRetained"
	KindNSReturnsNotRetained    CursorKind = "NSReturnsNotRetained"
	KindNSReturnsAutoreleased   CursorKind = "NSReturnsAutoreleased"
	KindObjCReturnsInnerPointer CursorKind = "ObjCReturnsInnerPointer"
	KindNSConsumesSelf          CursorKind = "NSConsumesSelf"
	KindFlagEnum                CursorKind = "FlagEnum"
	KindUnexposedAttr           CursorKind = "UnexposedAttr"
)

type TypeKind string

const (
	TypeInvalid           TypeKind = "Invalid"
	TypeUnexposed         TypeKind = "Unexposed"
	TypeVoid              TypeKind = "Void"
	TypeBool              TypeKind = "Bool"
	TypeCharS             TypeKind = "Char_S"
	TypeSChar             TypeKind = "SChar"
	TypeCharU             TypeKind = "Char_U"
	TypeUChar             TypeKind = "UChar"
	TypeChar16            TypeKind = "Char16"
	TypeChar32            TypeKind = "Char32"
	TypeWChar             TypeKind = "WChar"
	TypeShort             TypeKind = "Short"
	TypeUShort            TypeKind = "UShort"
	TypeInt               TypeKind = "Int"
	TypeUInt              TypeKind = "UInt"
	TypeLong              TypeKind = "Long"
	TypeULong             TypeKind = "ULong"
	TypeLongLong          TypeKind = "LongLong"
	TypeULongLong         TypeKind = "ULongLong"
	TypeInt128            TypeKind = "Int128"
	TypeUInt128           TypeKind = "UInt128"
	TypeFloat             TypeKind = "Float"
	TypeDouble            TypeKind = "Double"
	TypeLongDouble        TypeKind = "LongDouble"
	TypeRecord            TypeKind = "Record"
	TypeEnum              TypeKind = "Enum"
	TypeConstantArray     TypeKind = "ConstantArray"
	TypeIncompleteArray   TypeKind = "IncompleteArray"
	TypeTypedef           TypeKind = "Typedef"
	TypeAttributed        TypeKind = "Attributed"
	TypeElaborated        TypeKind = "Elaborated"
	TypePointer           TypeKind = "Pointer"
	TypeBlockPointer      TypeKind = "BlockPointer"
	TypeFunctionProto     TypeKind = "FunctionProto"
	TypeFunctionNoProto   TypeKind = "FunctionNoProto"
	TypeObjCObjectPointer TypeKind = "ObjCObjectPointer"
	TypeObjCSel           TypeKind = "ObjCSel"
	TypeObjCInterface     TypeKind = "ObjCInterface"
	TypeObjCId            TypeKind = "ObjCId"
	TypeObjCClass         TypeKind = "ObjCClass"
	TypeObjCObject        TypeKind = "ObjCObject"
	TypeObjCTypeParam     TypeKind = "ObjCTypeParam"
)

type Nullability string

const (
	NullabilityNone        Nullability = ""
	NullabilityNonNull     Nullability = "nonnull"
	NullabilityNullable    Nullability = "nullable"
	NullabilityUnspecified Nullability = "unspecified"
)

// VisitResult tells a child visitor how to continue.
type VisitResult int

const (
	VisitBreak VisitResult = iota
	VisitContinue
	VisitRecurse
)

type Availability int

const (
	Available Availability = iota
	Deprecated
	NotAvailable
	NotAccessible
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Deprecated:
		return "deprecated"
	case NotAvailable:
		return "unavailable"
	case NotAccessible:
		return "inaccessible"
	default:
		return fmt.Sprintf("Availability(%d)", int(a))
	}
}

// Location identifies a point in a source file. Two declarations are the same
// declaration exactly when their locations are equal.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

func (l Location) IsZero() bool {
	return l == Location{}
}

// PlatformAvailability is one `availability(platform, ...)` attribute.
type PlatformAvailability struct {
	Platform    string
	Introduced  string
	Deprecated  string
	Obsoleted   string
	Unavailable bool
	Message     string
}

// AvailabilityAttributes aggregates the platform attributes of a cursor.
type AvailabilityAttributes struct {
	AlwaysDeprecated   bool
	DeprecatedMessage  string
	AlwaysUnavailable  bool
	UnavailableMessage string
	Platforms          []PlatformAvailability
}

type PropertyAttributes struct {
	ReadOnly bool
	Class    bool
}

type Cursor interface {
	Kind() CursorKind
	Name() string
	Location() Location
	// Visit calls fn for every child in order. Returning VisitRecurse descends into
	// the child before moving on. Visit reports whether the walk was stopped by VisitBreak.
	Visit(fn func(child Cursor) VisitResult) bool
	Type() Type
	ResultType() Type
	Arguments() []Cursor
	Availability() Availability
	AvailabilityAttributes() AvailabilityAttributes
	PropertyAttributes() PropertyAttributes
	GetterName() string
	SetterName() string
	EnumConstantValue() int64
	EnumConstantUnsignedValue() uint64
	EnumIntegerType() Type
	TypedefUnderlyingType() Type
	IsDefinition() bool
	IsVariadic() bool
}

type Type interface {
	Kind() TypeKind
	Spelling() string
	// Declaration returns the declaring cursor, or nil for builtin types.
	Declaration() Cursor
	TypedefName() string
	Canonical() Type
	Pointee() Type
	Element() Type
	ArraySize() int64
	Modified() Type
	Nullability() Nullability
	Named() Type
	Result() Type
	ArgTypes() []Type
	IsVariadic() bool
	IsConst() bool
	ObjCBase() Type
	ObjCTypeArgs() []Type
	ObjCProtocols() []string
}

type TranslationUnit interface {
	Root() Cursor
}

// Index parses headers into translation units.
type Index interface {
	Parse(ctx context.Context, mainFile string, args []string) (TranslationUnit, error)
}

// Children collects the direct children of c.
func Children(c Cursor) []Cursor {
	var children []Cursor
	c.Visit(func(child Cursor) VisitResult {
		children = append(children, child)
		return VisitContinue
	})
	return children
}

// HasChild reports whether c has a direct child of the given kind.
func HasChild(c Cursor, kind CursorKind) bool {
	return c.Visit(func(child Cursor) VisitResult {
		if child.Kind() == kind {
			return VisitBreak
		}
		return VisitContinue
	})
}
