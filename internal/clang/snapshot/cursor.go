package snapshot

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"objcbind/internal/clang"
)

var invalidType = &typeNode{Kind: clang.TypeInvalid}

type cursor struct {
	node *cursorNode
	tu   *TranslationUnit
}

func (c *cursor) Kind() clang.CursorKind { return c.node.Kind }
func (c *cursor) Name() string           { return c.node.Name }

func (c *cursor) Location() clang.Location {
	return clang.Location{File: c.node.File, Line: c.node.Line, Column: c.node.Column}
}

func (c *cursor) Visit(fn func(clang.Cursor) clang.VisitResult) bool {
	return c.visit(c.node, fn)
}

func (c *cursor) visit(n *cursorNode, fn func(clang.Cursor) clang.VisitResult) bool {
	for _, child := range n.Children {
		switch fn(&cursor{node: child, tu: c.tu}) {
		case clang.VisitBreak:
			return true
		case clang.VisitRecurse:
			if c.visit(child, fn) {
				return true
			}
		}
	}
	return false
}

func (c *cursor) Type() clang.Type       { return c.wrap(c.node.Type) }
func (c *cursor) ResultType() clang.Type { return c.wrap(c.node.Result) }

func (c *cursor) Arguments() []clang.Cursor {
	args := make([]clang.Cursor, len(c.node.Args))
	for i, arg := range c.node.Args {
		args[i] = &cursor{node: arg, tu: c.tu}
	}
	return args
}

func (c *cursor) Availability() clang.Availability {
	switch c.node.Availability {
	case "deprecated":
		return clang.Deprecated
	case "unavailable":
		return clang.NotAvailable
	case "inaccessible":
		return clang.NotAccessible
	default:
		return clang.Available
	}
}

func (c *cursor) AvailabilityAttributes() clang.AvailabilityAttributes {
	attrs := clang.AvailabilityAttributes{
		AlwaysDeprecated:   c.node.Deprecated != "",
		DeprecatedMessage:  c.node.Deprecated,
		AlwaysUnavailable:  c.node.Unavailable != "",
		UnavailableMessage: c.node.Unavailable,
	}
	for _, p := range c.node.Platforms {
		attrs.Platforms = append(attrs.Platforms, clang.PlatformAvailability(p))
	}
	return attrs
}

func (c *cursor) PropertyAttributes() clang.PropertyAttributes {
	if c.node.Property == nil {
		return clang.PropertyAttributes{}
	}
	return clang.PropertyAttributes{ReadOnly: c.node.Property.ReadOnly, Class: c.node.Property.Class}
}

func (c *cursor) GetterName() string {
	if p := c.node.Property; p != nil && p.Getter != "" {
		return p.Getter
	}
	return c.node.Name
}

func (c *cursor) SetterName() string {
	if p := c.node.Property; p != nil && p.Setter != "" {
		return p.Setter
	}
	first, size := utf8.DecodeRuneInString(c.node.Name)
	return "set" + string(unicode.ToUpper(first)) + c.node.Name[size:] + ":"
}

func (c *cursor) EnumConstantValue() int64 {
	if c.node.Value == nil {
		return 0
	}
	return int64(c.node.Value.bits)
}

func (c *cursor) EnumConstantUnsignedValue() uint64 {
	if c.node.Value == nil {
		return 0
	}
	return c.node.Value.bits
}

func (c *cursor) EnumIntegerType() clang.Type       { return c.wrap(c.node.IntegerType) }
func (c *cursor) TypedefUnderlyingType() clang.Type { return c.wrap(c.node.Underlying) }
func (c *cursor) IsDefinition() bool                { return !c.node.Forward }
func (c *cursor) IsVariadic() bool                  { return c.node.Variadic }

func (c *cursor) wrap(t *typeNode) clang.Type {
	if t == nil {
		t = invalidType
	}
	return &typ{node: t, tu: c.tu}
}

type typ struct {
	node *typeNode
	tu   *TranslationUnit
}

func (t *typ) wrap(n *typeNode) clang.Type {
	if n == nil {
		n = invalidType
	}
	return &typ{node: n, tu: t.tu}
}

func (t *typ) Kind() clang.TypeKind { return t.node.Kind }

func (t *typ) Spelling() string {
	if t.node.Spelling != "" {
		return t.node.Spelling
	}
	switch t.node.Kind {
	case clang.TypeTypedef:
		return t.node.typedefName()
	case clang.TypeRecord, clang.TypeEnum:
		if decl := t.Declaration(); decl != nil {
			return decl.Name()
		}
	case clang.TypeObjCId:
		return "id"
	case clang.TypeObjCClass:
		return "Class"
	case clang.TypeObjCSel:
		return "SEL"
	}
	return strings.ToLower(string(t.node.Kind))
}

func (t *typ) Declaration() clang.Cursor {
	if t.node.Decl == nil || t.node.Decl.resolved == nil {
		return nil
	}
	return &cursor{node: t.node.Decl.resolved, tu: t.tu}
}

func (t *typ) TypedefName() string {
	if t.node.Kind != clang.TypeTypedef {
		return ""
	}
	return t.node.typedefName()
}

func (t *typ) Canonical() clang.Type {
	if t.node.Canonical != nil {
		return t.wrap(t.node.Canonical)
	}
	switch t.node.Kind {
	case clang.TypeTypedef:
		if decl := t.Declaration(); decl != nil {
			return decl.TypedefUnderlyingType().Canonical()
		}
	case clang.TypeAttributed:
		return t.Modified().Canonical()
	case clang.TypeElaborated:
		return t.Named().Canonical()
	}
	return t
}

func (t *typ) Pointee() clang.Type            { return t.wrap(t.node.Pointee) }
func (t *typ) Element() clang.Type            { return t.wrap(t.node.Element) }
func (t *typ) ArraySize() int64               { return t.node.Size }
func (t *typ) Modified() clang.Type           { return t.wrap(t.node.Modified) }
func (t *typ) Nullability() clang.Nullability { return t.node.Nullability }
func (t *typ) Named() clang.Type              { return t.wrap(t.node.Named) }
func (t *typ) Result() clang.Type             { return t.wrap(t.node.Result) }
func (t *typ) IsVariadic() bool               { return t.node.Variadic }
func (t *typ) IsConst() bool                  { return t.node.Const }
func (t *typ) ObjCBase() clang.Type           { return t.wrap(t.node.Base) }
func (t *typ) ObjCProtocols() []string        { return t.node.Protocols }
func (t *typ) ArgTypes() []clang.Type         { return t.wrapAll(t.node.Args) }
func (t *typ) ObjCTypeArgs() []clang.Type     { return t.wrapAll(t.node.TypeArgs) }

func (t *typ) wrapAll(nodes []*typeNode) []clang.Type {
	types := make([]clang.Type, len(nodes))
	for i, n := range nodes {
		types[i] = t.wrap(n)
	}
	return types
}
