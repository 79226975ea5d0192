package metadata

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/go-version"

	"objcbind/internal/clang"
)

const initPrefix = "init"

// Method families whose results are returned +1 when no attribute says otherwise.
var retainedFamilies = []string{"alloc", "copy", "mutableCopy", "new", "init"}

// familyOwnership applies the Objective-C naming convention to a selector.
func familyOwnership(selector string) Ownership {
	word := strings.TrimLeft(selector, "_")
	for _, family := range retainedFamilies {
		if !strings.HasPrefix(word, family) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(word[len(family):])
		if next == utf8.RuneError || !unicode.IsLower(next) {
			return Retained
		}
	}
	return Autoreleased
}

// availability gates a cursor. Members additionally honour the override platform,
// which marks declarations unusable from bindings while leaving them available in C.
func (b *Builder) availability(c clang.Cursor, member bool) Availability {
	attrs := c.AvailabilityAttributes()
	var avail Availability

	switch c.Availability() {
	case clang.NotAvailable, clang.NotAccessible:
		avail.Unavailable = true
		avail.Message = attrs.UnavailableMessage
	case clang.Deprecated:
		avail.Deprecated = true
		avail.Message = attrs.DeprecatedMessage
	}
	if attrs.AlwaysUnavailable {
		avail.Unavailable = true
		avail.Message = attrs.UnavailableMessage
	}
	if attrs.AlwaysDeprecated && !avail.Deprecated {
		avail.Deprecated = true
		avail.Message = attrs.DeprecatedMessage
	}

	for _, p := range attrs.Platforms {
		switch {
		case member && p.Platform == b.overridePlatform && p.Unavailable:
			avail.Unavailable = true
			avail.Message = p.Message
		case p.Platform == b.platform:
			if p.Unavailable {
				avail.Unavailable = true
				avail.Message = p.Message
			}
			if b.reached(c, p.Obsoleted) {
				avail.Unavailable = true
				avail.Message = fmt.Sprintf("obsoleted in %s %s", p.Platform, p.Obsoleted)
			}
			if b.reached(c, p.Deprecated) && !avail.Deprecated {
				avail.Deprecated = true
				avail.Message = p.Message
				if avail.Message == "" {
					avail.Message = fmt.Sprintf("deprecated in %s %s", p.Platform, p.Deprecated)
				}
			}
		}
	}
	return avail
}

// reached reports whether the deployment target is at or past v.
func (b *Builder) reached(c clang.Cursor, v string) bool {
	if v == "" || b.target == nil {
		return false
	}
	parsed, err := version.NewVersion(v)
	if err != nil {
		b.debug(c.Location(), c.Name(), "unparseable availability version %q", v)
		return false
	}
	return b.target.GreaterThanOrEqual(parsed)
}

func (b *Builder) readArgs(cursors []clang.Cursor) ([]Arg, error) {
	args := make([]Arg, 0, len(cursors))
	for i, arg := range cursors {
		argType, err := ResolveType(arg.Type())
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, arg.Name(), err)
		}
		args = append(args, Arg{Name: arg.Name(), Type: argType})
	}
	return args, nil
}

func (b *Builder) readMethod(c clang.Cursor) (*MethodDecl, error) {
	method := &MethodDecl{
		Selector:     c.Name(),
		Location:     c.Location(),
		Availability: b.availability(c, true),
		Variadic:     c.IsVariadic(),
	}

	args, err := b.readArgs(c.Arguments())
	if err != nil {
		return nil, err
	}
	method.Args = args

	method.Result, err = ResolveType(c.ResultType())
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}

	explicit := false
	c.Visit(func(child clang.Cursor) clang.VisitResult {
		switch child.Kind() {
		case clang.KindNSReturnsRetained:
			method.Ownership, explicit = Retained, true
		case clang.KindNSReturnsNotRetained:
			method.Ownership, explicit = NotRetained, true
		case clang.KindNSReturnsAutoreleased:
			method.Ownership, explicit = Autoreleased, true
		case clang.KindObjCReturnsInnerPointer:
			method.ReturnsInnerPointer = true
		case clang.KindNSConsumesSelf:
			method.ConsumesSelf = true
		}
		return clang.VisitContinue
	})
	if !explicit {
		method.Ownership = familyOwnership(method.Selector)
	}
	return method, nil
}

func (b *Builder) readProperty(c clang.Cursor) (*PropertyDecl, error) {
	propertyType, err := ResolveType(c.Type())
	if err != nil {
		return nil, err
	}
	attrs := c.PropertyAttributes()
	property := &PropertyDecl{
		Name:     c.Name(),
		Location: c.Location(),
		Type:     propertyType,
		Getter:   c.GetterName(),
		Class:    attrs.Class,
	}
	if !attrs.ReadOnly {
		property.Setter = c.SetterName()
	}
	return property, nil
}

// readContainer reads an interface, protocol or category: its superclass and
// protocol references first, then its members.
func (b *Builder) readContainer(c clang.Cursor, name string, protocol bool) *ClassDecl {
	decl := newClassDecl(name, c.Location(), protocol)
	c.Visit(func(child clang.Cursor) clang.VisitResult {
		switch child.Kind() {
		case clang.KindObjCSuperClassRef:
			decl.Superclass = child.Name()
		case clang.KindObjCProtocolRef:
			decl.Protocols = append(decl.Protocols, child.Name())
		}
		return clang.VisitContinue
	})

	c.Visit(func(child clang.Cursor) clang.VisitResult {
		kind := child.Kind()
		if kind != clang.KindObjCClassMethodDecl && kind != clang.KindObjCInstanceMethodDecl && kind != clang.KindObjCPropertyDecl {
			return clang.VisitContinue
		}
		subject := memberSubject(name, child)
		if b.availability(child, true).Unavailable {
			b.drop(child.Location(), subject, "unavailable")
			return clang.VisitContinue
		}

		switch kind {
		case clang.KindObjCClassMethodDecl, clang.KindObjCInstanceMethodDecl:
			method, err := b.readMethod(child)
			if err != nil {
				b.drop(child.Location(), subject, err.Error())
				return clang.VisitContinue
			}
			b.addMethod(decl, method, kind == clang.KindObjCClassMethodDecl)
		case clang.KindObjCPropertyDecl:
			property, err := b.readProperty(child)
			if err != nil {
				b.drop(child.Location(), subject, err.Error())
				return clang.VisitContinue
			}
			b.addProperty(decl, property)
		}
		return clang.VisitContinue
	})
	return decl
}

// memberSubject names a method or property cursor of container name the way
// bindings trace it. Properties go by their getter.
func memberSubject(name string, c clang.Cursor) string {
	sign, sel := " -", c.Name()
	switch c.Kind() {
	case clang.KindObjCClassMethodDecl:
		sign = " +"
	case clang.KindObjCPropertyDecl:
		if c.PropertyAttributes().Class {
			sign = " +"
		}
		if getter := c.GetterName(); getter != "" {
			sel = getter
		}
	}
	return name + sign + sel
}

func (c *ClassDecl) properties(class bool) *Members[*PropertyDecl] {
	if class {
		return c.ClassProperties
	}
	return c.InstanceProperties
}

func (c *ClassDecl) methods(class bool) *Members[*MethodDecl] {
	if class {
		return c.ClassMethods
	}
	return c.InstanceMethods
}

// addProperty records p and absorbs already seen methods named by its accessors.
// A redeclaration keeps the first property and may only contribute missing accessors.
func (b *Builder) addProperty(decl *ClassDecl, p *PropertyDecl) {
	props := decl.properties(p.Class)
	if existing, ok := props.Get(p.Name); ok {
		if existing.Setter == "" && p.Setter != "" {
			existing.Setter = p.Setter
		}
		if existing.GetterMethod == nil {
			existing.GetterMethod = p.GetterMethod
		}
		if existing.SetterMethod == nil && existing.Setter == p.Setter {
			existing.SetterMethod = p.SetterMethod
		}
		b.debug(p.Location, decl.Name+"."+p.Name, "property redeclared, keeping first")
		return
	}

	methods := decl.methods(p.Class)
	if m, ok := methods.Get(p.Getter); ok {
		p.GetterMethod = m
		methods.Delete(p.Getter)
	}
	if p.Setter != "" {
		if m, ok := methods.Get(p.Setter); ok {
			p.SetterMethod = m
			methods.Delete(p.Setter)
		}
	}
	props.Add(p.Name, p)
}

// addMethod folds accessor methods into their property; any other duplicate
// selector keeps the first definition.
func (b *Builder) addMethod(decl *ClassDecl, m *MethodDecl, class bool) {
	props := decl.properties(class)
	if _, p, ok := props.Find(func(p *PropertyDecl) bool { return p.Getter == m.Selector }); ok {
		if p.GetterMethod == nil {
			p.GetterMethod = m
		}
		return
	}
	if _, p, ok := props.Find(func(p *PropertyDecl) bool { return p.Setter != "" && p.Setter == m.Selector }); ok {
		if p.SetterMethod == nil {
			p.SetterMethod = m
		}
		return
	}
	if !decl.methods(class).Add(m.Selector, m) {
		b.warn(m.Location, decl.Name+" "+m.Selector, "duplicate selector, keeping first")
	}
}

func (b *Builder) readEnum(c clang.Cursor, name string) *EnumDecl {
	enum := &EnumDecl{Name: name, Location: c.Location()}
	backing, err := ResolveType(c.EnumIntegerType())
	if err != nil {
		b.debug(c.Location(), name, "enum backing type: %v, using int", err)
		backing = Int{Signed: true, Width: 4}
	}
	enum.Backing = backing
	signed := IsSigned(backing)

	seen := make(map[EnumConstant]string)
	c.Visit(func(child clang.Cursor) clang.VisitResult {
		switch child.Kind() {
		case clang.KindEnumConstantDecl:
			var constant EnumConstant
			if signed {
				constant = SignedConstant(child.Name(), child.EnumConstantValue())
			} else {
				constant = UnsignedConstant(child.Name(), child.EnumConstantUnsignedValue())
			}
			value := EnumConstant{Magnitude: constant.Magnitude, Negative: constant.Negative}
			if first, dup := seen[value]; dup {
				b.debug(child.Location(), name+"."+child.Name(), "duplicate value of %s, skipped", first)
				return clang.VisitContinue
			}
			seen[value] = child.Name()
			enum.Constants = append(enum.Constants, constant)
		case clang.KindFlagEnum:
			enum.FlagEnum = true
		}
		return clang.VisitContinue
	})
	return enum
}

// readRecord reads c under name. Nested records come first in the result,
// the enclosing record last. Anonymous records used by named fields get the
// name `<record>_<field>`.
func (b *Builder) readRecord(c clang.Cursor, name string) ([]*RecordDecl, []*EnumDecl) {
	record := &RecordDecl{
		Name:     name,
		Location: c.Location(),
		Union:    c.Kind() == clang.KindUnionDecl,
		Opaque:   !c.IsDefinition(),
	}
	var nested []*RecordDecl
	var enums []*EnumDecl
	anonymous := make(map[clang.Location]clang.Cursor)

	c.Visit(func(child clang.Cursor) clang.VisitResult {
		switch child.Kind() {
		case clang.KindStructDecl, clang.KindUnionDecl, clang.KindEnumDecl:
			if child.Name() == "" {
				anonymous[child.Location()] = child
				return clang.VisitContinue
			}
			if child.Kind() == clang.KindEnumDecl {
				enums = append(enums, b.readEnum(child, child.Name()))
				return clang.VisitContinue
			}
			records, recordEnums := b.readRecord(child, child.Name())
			nested = append(nested, records...)
			enums = append(enums, recordEnums...)

		case clang.KindFieldDecl:
			subject := name + "." + child.Name()
			if child.Name() == "" {
				b.debug(child.Location(), name, "unnamed field dropped")
				return clang.VisitContinue
			}
			fieldType, err := ResolveType(child.Type())
			if err != nil {
				b.debug(child.Location(), subject, "field dropped: %v", err)
				return clang.VisitContinue
			}
			fieldType = MapType(fieldType, func(t SemanticType) (SemanticType, bool) {
				site, ok := anonymousSite(t)
				if !ok {
					return nil, false
				}
				decl, ok := anonymous[site]
				if !ok {
					return nil, false
				}
				synthesized, known := b.anonNames[site]
				if !known {
					synthesized = name + "_" + child.Name()
					b.anonNames[site] = synthesized
					if decl.Kind() == clang.KindEnumDecl {
						enums = append(enums, b.readEnum(decl, synthesized))
					} else {
						records, recordEnums := b.readRecord(decl, synthesized)
						nested = append(nested, records...)
						enums = append(enums, recordEnums...)
					}
				}
				return withName(t, synthesized), true
			})
			if IsAnonymous(fieldType) {
				b.debug(child.Location(), subject, "field of unnameable anonymous type dropped")
				return clang.VisitContinue
			}
			record.Fields = append(record.Fields, Field{Name: child.Name(), Type: fieldType})
		}
		return clang.VisitContinue
	})
	return append(nested, record), enums
}

func anonymousSite(t SemanticType) (clang.Location, bool) {
	switch v := t.(type) {
	case RecordRef:
		return v.Site, v.Name == ""
	case EnumRef:
		return v.Site, v.Name == ""
	}
	return clang.Location{}, false
}

func withName(t SemanticType, name string) SemanticType {
	switch v := t.(type) {
	case RecordRef:
		return RecordRef{Name: name, Union: v.Union}
	case EnumRef:
		return EnumRef{Name: name}
	}
	return t
}

func (b *Builder) readFunction(c clang.Cursor) (*FunctionDecl, error) {
	args, err := b.readArgs(c.Arguments())
	if err != nil {
		return nil, err
	}
	result, err := ResolveType(c.ResultType())
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	return &FunctionDecl{
		Name:         c.Name(),
		Location:     c.Location(),
		Args:         args,
		Result:       result,
		Variadic:     c.IsVariadic(),
		Availability: b.availability(c, true),
	}, nil
}
