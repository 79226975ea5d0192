package metadata

import (
	"fmt"
	"math"
	"strings"

	"objcbind/internal/clang"
)

type DeclKind int

const (
	DeclClass DeclKind = iota
	DeclProtocol
	DeclRecord
	DeclEnum
	DeclTypedef
	DeclFunction
)

func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclProtocol:
		return "protocol"
	case DeclRecord:
		return "record"
	case DeclEnum:
		return "enum"
	case DeclTypedef:
		return "typedef"
	case DeclFunction:
		return "function"
	default:
		return fmt.Sprintf("DeclKind(%d)", int(k))
	}
}

// Decl is any catalog entry.
type Decl interface {
	DeclName() string
	DeclKind() DeclKind
	DeclLocation() clang.Location
}

type Availability struct {
	Unavailable bool
	Deprecated  bool
	Message     string
}

type Ownership int

const (
	Autoreleased Ownership = iota
	Retained
	NotRetained
)

func (o Ownership) String() string {
	switch o {
	case Autoreleased:
		return "autoreleased"
	case Retained:
		return "retained"
	case NotRetained:
		return "not-retained"
	default:
		return fmt.Sprintf("Ownership(%d)", int(o))
	}
}

type Arg struct {
	Name string
	Type SemanticType
}

type MethodDecl struct {
	Selector            string
	Location            clang.Location
	Availability        Availability
	Args                []Arg
	Result              SemanticType
	Ownership           Ownership
	ReturnsInnerPointer bool
	ConsumesSelf        bool
	Variadic            bool

	// Synthesized marks accessors created for properties without an explicit method.
	Synthesized bool
}

// IsInitializer reports whether m is a designated initializer exposed as a constructor.
func (m *MethodDecl) IsInitializer() bool {
	return m.ConsumesSelf && strings.HasPrefix(m.Selector, initPrefix)
}

type PropertyDecl struct {
	Name     string
	Location clang.Location
	Type     SemanticType
	Getter   string
	Class    bool

	// Setter is empty for read-only properties.
	Setter       string
	GetterMethod *MethodDecl
	SetterMethod *MethodDecl
}

func (p *PropertyDecl) ReadOnly() bool {
	return p.Setter == ""
}

// ClassDecl describes an interface or a protocol. Member tables keep
// declaration order.
type ClassDecl struct {
	Name               string
	Superclass         string
	Location           clang.Location
	Protocols          []string
	ClassProperties    *Members[*PropertyDecl]
	InstanceProperties *Members[*PropertyDecl]
	ClassMethods       *Members[*MethodDecl]
	InstanceMethods    *Members[*MethodDecl]
	IsProtocol         bool
}

func newClassDecl(name string, location clang.Location, protocol bool) *ClassDecl {
	return &ClassDecl{
		Name:               name,
		Location:           location,
		ClassProperties:    NewMembers[*PropertyDecl](),
		InstanceProperties: NewMembers[*PropertyDecl](),
		ClassMethods:       NewMembers[*MethodDecl](),
		InstanceMethods:    NewMembers[*MethodDecl](),
		IsProtocol:         protocol,
	}
}

func (c *ClassDecl) DeclName() string             { return c.Name }
func (c *ClassDecl) DeclLocation() clang.Location { return c.Location }

func (c *ClassDecl) DeclKind() DeclKind {
	if c.IsProtocol {
		return DeclProtocol
	}
	return DeclClass
}

// EnumConstant stores a value as magnitude and sign so both signed and
// unsigned backings round-trip.
type EnumConstant struct {
	Name      string
	Magnitude uint64
	Negative  bool
}

// SignedConstant splits v without overflowing at math.MinInt64.
func SignedConstant(name string, v int64) EnumConstant {
	if v >= 0 {
		return EnumConstant{Name: name, Magnitude: uint64(v)}
	}
	return EnumConstant{Name: name, Magnitude: uint64(-(v + 1)) + 1, Negative: true}
}

func UnsignedConstant(name string, v uint64) EnumConstant {
	return EnumConstant{Name: name, Magnitude: v}
}

// Int64 reassembles a signed constant. ok is false when the value does not fit.
func (c EnumConstant) Int64() (value int64, ok bool) {
	if !c.Negative {
		if c.Magnitude > math.MaxInt64 {
			return 0, false
		}
		return int64(c.Magnitude), true
	}
	if c.Magnitude == 0 {
		return 0, true
	}
	if c.Magnitude-1 > math.MaxInt64 {
		return 0, false
	}
	return -int64(c.Magnitude-1) - 1, true
}

func (c EnumConstant) String() string {
	if c.Negative {
		return fmt.Sprintf("-%d", c.Magnitude)
	}
	return fmt.Sprintf("%d", c.Magnitude)
}

type EnumDecl struct {
	Name      string
	Location  clang.Location
	Backing   SemanticType
	FlagEnum  bool
	Constants []EnumConstant
}

func (e *EnumDecl) DeclName() string             { return e.Name }
func (e *EnumDecl) DeclKind() DeclKind           { return DeclEnum }
func (e *EnumDecl) DeclLocation() clang.Location { return e.Location }

type Field struct {
	Name string
	Type SemanticType
}

type RecordDecl struct {
	Name     string
	Location clang.Location
	Fields   []Field
	Union    bool

	// Opaque marks a forward declaration; it is replaced by a later definition.
	Opaque bool
}

func (r *RecordDecl) DeclName() string             { return r.Name }
func (r *RecordDecl) DeclKind() DeclKind           { return DeclRecord }
func (r *RecordDecl) DeclLocation() clang.Location { return r.Location }

type TypedefDecl struct {
	Name     string
	Location clang.Location
	Aliased  SemanticType
}

func (t *TypedefDecl) DeclName() string             { return t.Name }
func (t *TypedefDecl) DeclKind() DeclKind           { return DeclTypedef }
func (t *TypedefDecl) DeclLocation() clang.Location { return t.Location }

type FunctionDecl struct {
	Name         string
	Location     clang.Location
	Args         []Arg
	Result       SemanticType
	Variadic     bool
	Availability Availability
}

func (f *FunctionDecl) DeclName() string             { return f.Name }
func (f *FunctionDecl) DeclKind() DeclKind           { return DeclFunction }
func (f *FunctionDecl) DeclLocation() clang.Location { return f.Location }

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityWarning
)

// Diagnostic is a non-fatal per-declaration problem.
type Diagnostic struct {
	Location clang.Location
	Subject  string
	Message  string
	Severity Severity
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Subject, d.Message)
}

// Drop is a declaration or member the catalog left out while reading. Member
// subjects read "Class -selector" or "Class +selector".
type Drop struct {
	Location clang.Location
	Subject  string
	Reason   string
}
