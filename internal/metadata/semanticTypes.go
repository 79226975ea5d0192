package metadata

import (
	"objcbind/internal/clang"
)

// SemanticType is the canonical, sugar-free shape of a C/Objective-C type.
// The variant set is closed; switch over it exhaustively.
type SemanticType interface {
	semanticType()
}

type Void struct{}

type Bool struct{}

// Int is a fixed-width integer. Width is in bytes.
type Int struct {
	Signed bool
	Width  int
}

// PlatformLong is C `long`, whose width follows the platform.
type PlatformLong struct {
	Signed bool
}

// Float is a floating point value. Width is in bytes.
type Float struct {
	Width int
}

type Pointer struct {
	Inner   SemanticType
	Nonnull bool
	Const   bool
}

type FixedArray struct {
	Inner SemanticType
	Len   int64
}

// RecordRef names a struct or union. Site is set only while the record is
// anonymous and identifies its declaration.
type RecordRef struct {
	Name  string
	Union bool
	Site  clang.Location
}

// EnumRef names an enum. Site is set only while the enum is anonymous.
type EnumRef struct {
	Name string
	Site clang.Location
}

type FunctionSignature struct {
	Args     []SemanticType
	Result   SemanticType
	Variadic bool
	Block    bool
}

type TypedefRef struct {
	Name string
}

// InstanceTypeRef is `instancetype`, the dynamic type of the receiver.
type InstanceTypeRef struct{}

// SelectorHandle is `SEL`.
type SelectorHandle struct{}

// IdRef is `id`, optionally constrained to one protocol.
type IdRef struct {
	Protocol string
}

// ClassRef is an interface type with optional generic arguments and protocol list.
// `Class` itself is ClassRef{Name: "Class"}.
type ClassRef struct {
	Name      string
	TypeArgs  []SemanticType
	Protocols []string
}

func (Void) semanticType()              {}
func (Bool) semanticType()              {}
func (Int) semanticType()               {}
func (PlatformLong) semanticType()      {}
func (Float) semanticType()             {}
func (Pointer) semanticType()           {}
func (FixedArray) semanticType()        {}
func (RecordRef) semanticType()         {}
func (EnumRef) semanticType()           {}
func (FunctionSignature) semanticType() {}
func (TypedefRef) semanticType()        {}
func (InstanceTypeRef) semanticType()   {}
func (SelectorHandle) semanticType()    {}
func (IdRef) semanticType()             {}
func (ClassRef) semanticType()          {}

const vaListTag = "__va_list_tag"

// IsObjectPointer reports whether t is a pointer to an Objective-C object.
// Only these values carry ownership.
func IsObjectPointer(t SemanticType) bool {
	p, ok := t.(Pointer)
	if !ok {
		return false
	}
	switch p.Inner.(type) {
	case IdRef, ClassRef, InstanceTypeRef:
		return true
	}
	return false
}

// IsVaList reports whether t is the platform `va_list` array.
func IsVaList(t SemanticType) bool {
	a, ok := t.(FixedArray)
	if !ok {
		return false
	}
	r, ok := a.Inner.(RecordRef)
	return ok && !r.Union && r.Name == vaListTag
}

// IsAnonymous reports whether t still mentions a record or enum without a name.
func IsAnonymous(t SemanticType) bool {
	switch v := t.(type) {
	case Pointer:
		return IsAnonymous(v.Inner)
	case FixedArray:
		return IsAnonymous(v.Inner)
	case RecordRef:
		return v.Name == ""
	case EnumRef:
		return v.Name == ""
	case FunctionSignature:
		for _, a := range v.Args {
			if IsAnonymous(a) {
				return true
			}
		}
		return IsAnonymous(v.Result)
	}
	return false
}

// IsNonnull reports the nullability of a pointer. Non-pointers are never null.
func IsNonnull(t SemanticType) bool {
	if p, ok := t.(Pointer); ok {
		return p.Nonnull
	}
	return true
}

// IsSigned reports whether a numeric backing type is signed.
func IsSigned(t SemanticType) bool {
	switch v := t.(type) {
	case Int:
		return v.Signed
	case PlatformLong:
		return v.Signed
	case Float:
		return true
	}
	return false
}

// IsFloat reports whether values of t are returned in floating point registers.
func IsFloat(t SemanticType) bool {
	_, ok := t.(Float)
	return ok
}

// IsOutPointer reports whether t is a pointer to a pointer, the shape of an out parameter.
func IsOutPointer(t SemanticType) bool {
	p, ok := t.(Pointer)
	if !ok {
		return false
	}
	_, ok = p.Inner.(Pointer)
	return ok
}

type Namespace int

const (
	NamespaceType Namespace = iota
	NamespaceProtocol
)

// ReferencedName is a name a type depends on. Protocol names live in their own
// namespace so `NSObject` the protocol never resolves to `NSObject` the class.
type ReferencedName struct {
	Name      string
	Namespace Namespace
}

func (r ReferencedName) String() string {
	if r.Namespace == NamespaceProtocol {
		return "@protocol " + r.Name
	}
	return r.Name
}

func TypeName(name string) ReferencedName     { return ReferencedName{Name: name} }
func ProtocolName(name string) ReferencedName { return ReferencedName{Name: name, Namespace: NamespaceProtocol} }

// ReferencedNames lists the record, enum, typedef, class and protocol names t
// mentions, transitively and without duplicates.
func ReferencedNames(t SemanticType) []ReferencedName {
	var names []ReferencedName
	seen := make(map[ReferencedName]bool)
	collectReferencedNames(t, func(n ReferencedName) {
		if n.Name == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	})
	return names
}

func collectReferencedNames(t SemanticType, add func(ReferencedName)) {
	if IsVaList(t) {
		return
	}
	switch v := t.(type) {
	case Pointer:
		collectReferencedNames(v.Inner, add)
	case FixedArray:
		collectReferencedNames(v.Inner, add)
	case RecordRef:
		add(TypeName(v.Name))
	case EnumRef:
		add(TypeName(v.Name))
	case TypedefRef:
		add(TypeName(v.Name))
	case IdRef:
		add(ProtocolName(v.Protocol))
	case ClassRef:
		if v.Name != "Class" && v.Name != "Protocol" {
			add(TypeName(v.Name))
		}
		for _, arg := range v.TypeArgs {
			collectReferencedNames(arg, add)
		}
	case FunctionSignature:
		for _, arg := range v.Args {
			collectReferencedNames(arg, add)
		}
		collectReferencedNames(v.Result, add)
	case Void, Bool, Int, PlatformLong, Float, InstanceTypeRef, SelectorHandle, nil:
	}
}

// MapType rebuilds t bottom-up, replacing every node for which fn returns true.
func MapType(t SemanticType, fn func(SemanticType) (SemanticType, bool)) SemanticType {
	switch v := t.(type) {
	case Pointer:
		v.Inner = MapType(v.Inner, fn)
		t = v
	case FixedArray:
		v.Inner = MapType(v.Inner, fn)
		t = v
	case ClassRef:
		if len(v.TypeArgs) > 0 {
			args := make([]SemanticType, len(v.TypeArgs))
			for i, a := range v.TypeArgs {
				args[i] = MapType(a, fn)
			}
			v.TypeArgs = args
		}
		t = v
	case FunctionSignature:
		args := make([]SemanticType, len(v.Args))
		for i, a := range v.Args {
			args[i] = MapType(a, fn)
		}
		v.Args = args
		v.Result = MapType(v.Result, fn)
		t = v
	}
	if replaced, ok := fn(t); ok {
		return replaced
	}
	return t
}
