package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"objcbind/internal/clang"
)

// ErrFrozen is returned when a finalized builder is modified.
var ErrFrozen = errors.New("catalog is frozen")

type Options struct {
	Logger *slog.Logger
	// Platform selects the availability attributes that apply. Defaults to "macos".
	Platform string
	// OverridePlatform marks members unusable from bindings when unavailable there.
	// Defaults to "swift".
	OverridePlatform string
	// DeploymentTarget, when set, turns obsoleted or deprecated versions at or below it into exclusions or notes.
	DeploymentTarget *version.Version
}

// Builder collects the declarations of one translation unit. It is owned by a
// single framework run and discarded with it.
type Builder struct {
	log              *slog.Logger
	platform         string
	overridePlatform string
	target           *version.Version

	types     map[string]Decl
	protocols map[string]*ClassDecl
	order     []ReferencedName
	functions map[string]*FunctionDecl

	// Category fragments wait here until every interface has been seen.
	fragments     map[string][]*ClassDecl
	fragmentOrder []string

	// anonNames maps the location of an anonymous record or enum to the name it was given.
	anonNames map[clang.Location]string
	// enumRenames maps an enum tag to the typedef name that supersedes it.
	enumRenames map[string]string

	diagnostics []Diagnostic
	drops       []Drop
	frozen      bool
}

func NewBuilder(opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		log:              logger.With("component", "catalog"),
		platform:         opts.Platform,
		overridePlatform: opts.OverridePlatform,
		target:           opts.DeploymentTarget,
		types:            make(map[string]Decl),
		protocols:        make(map[string]*ClassDecl),
		functions:        make(map[string]*FunctionDecl),
		fragments:        make(map[string][]*ClassDecl),
		anonNames:        make(map[clang.Location]string),
		enumRenames:      make(map[string]string),
	}
	if b.platform == "" {
		b.platform = "macos"
	}
	if b.overridePlatform == "" {
		b.overridePlatform = "swift"
	}
	return b
}

// Frozen reports whether Finalize has run.
func (b *Builder) Frozen() bool {
	return b.frozen
}

// Build adds every top-level cursor under root.
func (b *Builder) Build(root clang.Cursor) error {
	var err error
	root.Visit(func(c clang.Cursor) clang.VisitResult {
		if err = b.Add(c); err != nil {
			return clang.VisitBreak
		}
		return clang.VisitContinue
	})
	return err
}

// Add reads one top-level declaration.
func (b *Builder) Add(c clang.Cursor) error {
	if b.frozen {
		return ErrFrozen
	}
	if b.availability(c, false).Unavailable {
		subject := c.Name()
		if c.Kind() == clang.KindObjCProtocolDecl {
			subject = ProtocolName(subject).String()
		}
		b.drop(c.Location(), subject, "unavailable")
		return nil
	}

	switch c.Kind() {
	case clang.KindObjCInterfaceDecl:
		b.addClass(c)
	case clang.KindObjCCategoryDecl:
		b.addCategory(c)
	case clang.KindObjCProtocolDecl:
		b.addProtocol(c)
	case clang.KindEnumDecl:
		b.addEnum(c)
	case clang.KindStructDecl, clang.KindUnionDecl:
		b.addRecord(c)
	case clang.KindTypedefDecl:
		b.addTypedef(c)
	case clang.KindFunctionDecl:
		b.addFunction(c)
	}
	return nil
}

func (b *Builder) insert(d Decl) {
	b.types[d.DeclName()] = d
	b.order = append(b.order, TypeName(d.DeclName()))
}

func (b *Builder) remove(name ReferencedName) {
	if name.Namespace == NamespaceProtocol {
		delete(b.protocols, name.Name)
	} else {
		delete(b.types, name.Name)
	}
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *Builder) addClass(c clang.Cursor) {
	name := c.Name()
	class := b.readContainer(c, name, false)
	if existing, ok := b.types[name]; ok {
		b.conflict(c, existing)
		return
	}
	b.insert(class)
}

func (b *Builder) addCategory(c clang.Cursor) {
	var target string
	c.Visit(func(child clang.Cursor) clang.VisitResult {
		if child.Kind() == clang.KindObjCClassRef {
			target = child.Name()
			return clang.VisitBreak
		}
		return clang.VisitContinue
	})
	if target == "" {
		b.debug(c.Location(), c.Name(), "category without target class")
		return
	}
	fragment := b.readContainer(c, target, false)
	if _, ok := b.fragments[target]; !ok {
		b.fragmentOrder = append(b.fragmentOrder, target)
	}
	b.fragments[target] = append(b.fragments[target], fragment)
}

func isEmptyContainer(c *ClassDecl) bool {
	return len(c.Protocols) == 0 && c.InstanceMethods.Len() == 0 && c.ClassMethods.Len() == 0 &&
		c.InstanceProperties.Len() == 0 && c.ClassProperties.Len() == 0
}

func (b *Builder) addProtocol(c clang.Cursor) {
	name := c.Name()
	protocol := b.readContainer(c, name, true)
	existing, ok := b.protocols[name]
	switch {
	case !ok:
		b.protocols[name] = protocol
		b.order = append(b.order, ProtocolName(name))
	case isEmptyContainer(protocol):
	case isEmptyContainer(existing):
		b.protocols[name] = protocol
	default:
		b.conflict(c, existing)
	}
}

func (b *Builder) addEnum(c clang.Cursor) {
	name := c.Name()
	if name == "" {
		// Named later by its typedef, if any.
		return
	}
	if !c.IsDefinition() {
		return
	}
	b.insertEnum(b.readEnum(c, name))
}

func (b *Builder) insertEnum(e *EnumDecl) {
	if existing, ok := b.types[e.Name]; ok {
		if existing.DeclLocation() != e.Location {
			b.warn(e.Location, e.Name, "conflicts with %s at %s, keeping first", existing.DeclKind(), existing.DeclLocation())
		}
		return
	}
	b.insert(e)
}

func (b *Builder) addRecord(c clang.Cursor) {
	name := c.Name()
	if name == "" {
		return
	}
	records, enums := b.readRecord(c, name)
	b.insertRecords(records, enums)
}

func (b *Builder) insertRecords(records []*RecordDecl, enums []*EnumDecl) {
	for _, e := range enums {
		b.insertEnum(e)
	}
	for _, r := range records {
		b.insertRecord(r)
	}
}

// insertRecord lets a full definition replace an opaque placeholder in place.
func (b *Builder) insertRecord(r *RecordDecl) {
	existing, ok := b.types[r.Name]
	if !ok {
		b.insert(r)
		return
	}
	prior, isRecord := existing.(*RecordDecl)
	switch {
	case isRecord && prior.Opaque && !r.Opaque:
		b.types[r.Name] = r
	case isRecord && (r.Opaque || prior.Location == r.Location):
	default:
		b.warn(r.Location, r.Name, "conflicts with %s at %s, keeping first", existing.DeclKind(), existing.DeclLocation())
	}
}

// ensureRecord makes sure a named record referenced by a typedef has an entry.
func (b *Builder) ensureRecord(decl clang.Cursor) {
	if _, ok := b.types[decl.Name()]; ok {
		return
	}
	b.insertRecords(b.readRecord(decl, decl.Name()))
}

func (b *Builder) addTypedef(c clang.Cursor) {
	name := c.Name()
	if _, builtIn := builtInTypeDefs[name]; builtIn || name == instanceTypeName {
		return
	}

	underlying := c.TypedefUnderlyingType()
	target := underlying
	if target.Kind() == clang.TypeElaborated {
		target = target.Named()
	}
	switch target.Kind() {
	case clang.TypeRecord:
		if b.typedefRecord(c, target.Declaration()) {
			return
		}
	case clang.TypeEnum:
		if b.typedefEnum(c, target.Declaration()) {
			return
		}
	}

	aliased, err := ResolveType(underlying)
	if err != nil {
		b.debug(c.Location(), name, "typedef dropped: %v", err)
		return
	}
	b.insertTypedef(&TypedefDecl{Name: name, Location: c.Location(), Aliased: aliased})
}

func (b *Builder) insertTypedef(t *TypedefDecl) {
	if existing, ok := b.types[t.Name]; ok {
		if existing.DeclLocation() != t.Location {
			b.warn(t.Location, t.Name, "conflicts with %s at %s, keeping first", existing.DeclKind(), existing.DeclLocation())
		}
		return
	}
	b.insert(t)
}

// typedefRecord names an anonymous record on its first typedef; a second typedef
// of the same declaration, found by location, becomes a plain alias. It reports
// whether the typedef is fully handled.
func (b *Builder) typedefRecord(c clang.Cursor, decl clang.Cursor) bool {
	if decl == nil {
		return false
	}
	name := c.Name()
	if decl.Name() != "" {
		b.ensureRecord(decl)
		return decl.Name() == name
	}

	site := decl.Location()
	if prior, ok := b.anonNames[site]; ok {
		if prior != name {
			b.insertTypedef(&TypedefDecl{
				Name:     name,
				Location: c.Location(),
				Aliased:  RecordRef{Name: prior, Union: decl.Kind() == clang.KindUnionDecl},
			})
		}
		return true
	}
	b.anonNames[site] = name
	b.insertRecords(b.readRecord(decl, name))
	return true
}

// typedefEnum names an anonymous enum, or schedules a rename of a tagged enum
// to the typedef name. Enum typedefs never produce an alias entry of their own.
func (b *Builder) typedefEnum(c clang.Cursor, decl clang.Cursor) bool {
	if decl == nil {
		return false
	}
	name := c.Name()
	if tag := decl.Name(); tag != "" {
		if tag != name {
			b.enumRenames[tag] = name
		}
		return true
	}

	site := decl.Location()
	if prior, ok := b.anonNames[site]; ok {
		if prior != name {
			b.insertTypedef(&TypedefDecl{Name: name, Location: c.Location(), Aliased: EnumRef{Name: prior}})
		}
		return true
	}
	b.anonNames[site] = name
	b.insertEnum(b.readEnum(decl, name))
	return true
}

func (b *Builder) addFunction(c clang.Cursor) {
	fn, err := b.readFunction(c)
	if err != nil {
		b.debug(c.Location(), c.Name(), "function dropped: %v", err)
		return
	}
	if existing, ok := b.functions[fn.Name]; ok {
		if existing.Location != fn.Location {
			b.warn(fn.Location, fn.Name, "function redeclared, keeping first at %s", existing.Location)
		}
		return
	}
	b.functions[fn.Name] = fn
}

func (b *Builder) conflict(c clang.Cursor, existing Decl) {
	b.warn(c.Location(), c.Name(), "conflicts with %s at %s, keeping first", existing.DeclKind(), existing.DeclLocation())
}

// Finalize merges categories, applies deferred names and freezes the catalog.
func (b *Builder) Finalize() (*Catalog, error) {
	if b.frozen {
		return nil, ErrFrozen
	}
	b.mergeFragments()
	b.applyEnumRenames()
	b.resolveAnonymous()
	b.synthesizeAccessors()
	b.frozen = true

	b.log.Debug("catalog finalized",
		"types", len(b.types), "protocols", len(b.protocols), "functions", len(b.functions),
		"diagnostics", len(b.diagnostics))

	return &Catalog{
		types:       b.types,
		protocols:   b.protocols,
		order:       b.order,
		functions:   b.functions,
		diagnostics: b.diagnostics,
		drops:       b.drops,
	}, nil
}

// mergeFragments applies categories after the traversal, so the result does not
// depend on whether a category was seen before its interface.
func (b *Builder) mergeFragments() {
	for _, target := range b.fragmentOrder {
		class, ok := b.types[target].(*ClassDecl)
		if !ok {
			for _, fragment := range b.fragments[target] {
				b.debug(fragment.Location, target, "category on unknown class dropped")
			}
			continue
		}
		for _, fragment := range b.fragments[target] {
			if headerRoot(fragment.Location.File) != headerRoot(class.Location.File) {
				b.debug(fragment.Location, target, "category on a class declared in %s, members merged into it", class.Location.File)
			}
			b.merge(class, fragment)
		}
	}
	b.fragments = nil
}

// headerRoot is the innermost framework directory enclosing file, or the
// directory of file outside frameworks.
func headerRoot(file string) string {
	file = filepath.ToSlash(file)
	if i := strings.LastIndex(file, ".framework/"); i >= 0 {
		return file[:i+len(".framework")]
	}
	return path.Dir(file)
}

func (b *Builder) merge(class *ClassDecl, fragment *ClassDecl) {
	for _, p := range fragment.Protocols {
		if !containsString(class.Protocols, p) {
			class.Protocols = append(class.Protocols, p)
		}
	}
	fragment.ClassProperties.Each(func(_ string, p *PropertyDecl) { b.addProperty(class, p) })
	fragment.InstanceProperties.Each(func(_ string, p *PropertyDecl) { b.addProperty(class, p) })
	fragment.ClassMethods.Each(func(_ string, m *MethodDecl) { b.addMethod(class, m, true) })
	fragment.InstanceMethods.Each(func(_ string, m *MethodDecl) { b.addMethod(class, m, false) })
}

func (b *Builder) applyEnumRenames() {
	for tag, name := range b.enumRenames {
		enum, ok := b.types[tag].(*EnumDecl)
		if !ok {
			continue
		}
		if existing, taken := b.types[name]; taken {
			b.warn(enum.Location, tag, "cannot rename to %s, taken by %s", name, existing.DeclKind())
			delete(b.enumRenames, tag)
			continue
		}
		delete(b.types, tag)
		enum.Name = name
		b.types[name] = enum
		for i, n := range b.order {
			if n == TypeName(tag) {
				b.order[i] = TypeName(name)
			}
		}
	}
}

// fixType applies deferred anonymous names and enum renames. ok is false when
// the type still mentions an anonymous declaration.
func (b *Builder) fixType(t SemanticType) (SemanticType, bool) {
	fixed := MapType(t, func(t SemanticType) (SemanticType, bool) {
		if site, anonymous := anonymousSite(t); anonymous {
			if name, known := b.anonNames[site]; known {
				return withName(t, name), true
			}
			return nil, false
		}
		if e, isEnum := t.(EnumRef); isEnum {
			if name, renamed := b.enumRenames[e.Name]; renamed {
				return EnumRef{Name: name}, true
			}
		}
		return nil, false
	})
	return fixed, !IsAnonymous(fixed)
}

func (b *Builder) fixArgs(args []Arg) bool {
	for i := range args {
		fixed, ok := b.fixType(args[i].Type)
		if !ok {
			return false
		}
		args[i].Type = fixed
	}
	return true
}

func (b *Builder) fixMethod(m *MethodDecl) bool {
	if !b.fixArgs(m.Args) {
		return false
	}
	fixed, ok := b.fixType(m.Result)
	m.Result = fixed
	return ok
}

func (b *Builder) resolveAnonymous() {
	for _, name := range append([]ReferencedName(nil), b.order...) {
		var decl Decl
		if name.Namespace == NamespaceProtocol {
			decl = b.protocols[name.Name]
		} else {
			decl = b.types[name.Name]
		}

		switch d := decl.(type) {
		case *RecordDecl:
			fields := d.Fields[:0]
			for _, f := range d.Fields {
				fixed, ok := b.fixType(f.Type)
				if !ok {
					b.debug(d.Location, d.Name+"."+f.Name, "field of unnameable anonymous type dropped")
					continue
				}
				fields = append(fields, Field{Name: f.Name, Type: fixed})
			}
			d.Fields = fields
		case *TypedefDecl:
			fixed, ok := b.fixType(d.Aliased)
			if !ok {
				b.debug(d.Location, d.Name, "typedef of unnameable anonymous type dropped")
				b.remove(name)
				continue
			}
			d.Aliased = fixed
		case *ClassDecl:
			b.fixContainer(d)
		}
	}

	for name, fn := range b.functions {
		fixed, ok := b.fixType(fn.Result)
		if !ok || !b.fixArgs(fn.Args) {
			b.debug(fn.Location, name, "function with unnameable anonymous type dropped")
			delete(b.functions, name)
			continue
		}
		fn.Result = fixed
	}
}

func (b *Builder) fixContainer(c *ClassDecl) {
	for _, class := range []bool{true, false} {
		methods := c.methods(class)
		for _, sel := range methods.Keys() {
			m, _ := methods.Get(sel)
			if !b.fixMethod(m) {
				b.debug(m.Location, c.Name+" "+sel, "method with unnameable anonymous type dropped")
				methods.Delete(sel)
			}
		}
		props := c.properties(class)
		for _, key := range props.Keys() {
			p, _ := props.Get(key)
			fixed, ok := b.fixType(p.Type)
			if ok && p.GetterMethod != nil {
				ok = b.fixMethod(p.GetterMethod)
			}
			if ok && p.SetterMethod != nil {
				ok = b.fixMethod(p.SetterMethod)
			}
			if !ok {
				b.debug(p.Location, c.Name+"."+key, "property with unnameable anonymous type dropped")
				props.Delete(key)
				continue
			}
			p.Type = fixed
		}
	}
}

// synthesizeAccessors gives every property a getter, and every writable property
// a setter, even when the header declares no explicit method.
func (b *Builder) synthesizeAccessors() {
	each := func(c *ClassDecl) {
		for _, class := range []bool{true, false} {
			c.properties(class).Each(func(_ string, p *PropertyDecl) {
				if p.GetterMethod == nil {
					p.GetterMethod = &MethodDecl{
						Selector:    p.Getter,
						Location:    p.Location,
						Result:      p.Type,
						Ownership:   familyOwnership(p.Getter),
						Synthesized: true,
					}
				}
				if p.Setter != "" && p.SetterMethod == nil {
					p.SetterMethod = &MethodDecl{
						Selector:    p.Setter,
						Location:    p.Location,
						Args:        []Arg{{Name: p.Name, Type: p.Type}},
						Result:      Void{},
						Synthesized: true,
					}
				}
			})
		}
	}
	for _, d := range b.types {
		if c, ok := d.(*ClassDecl); ok {
			each(c)
		}
	}
	for _, p := range b.protocols {
		each(p)
	}
}

func (b *Builder) debug(loc clang.Location, subject string, format string, args ...any) {
	b.report(SeverityDebug, loc, subject, format, args...)
}

func (b *Builder) warn(loc clang.Location, subject string, format string, args ...any) {
	b.report(SeverityWarning, loc, subject, format, args...)
}

// drop records a declaration left out of the catalog along with its debug diagnostic.
func (b *Builder) drop(loc clang.Location, subject string, reason string) {
	b.drops = append(b.drops, Drop{Location: loc, Subject: subject, Reason: reason})
	b.debug(loc, subject, "%s, skipped", reason)
}

func (b *Builder) report(severity Severity, loc clang.Location, subject string, format string, args ...any) {
	d := Diagnostic{Location: loc, Subject: subject, Message: fmt.Sprintf(format, args...), Severity: severity}
	b.diagnostics = append(b.diagnostics, d)
	level := slog.LevelDebug
	if severity == SeverityWarning {
		level = slog.LevelWarn
	}
	b.log.Log(context.Background(), level, d.Message, "subject", subject, "location", loc.String())
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Catalog is the frozen result of a Builder. It is safe for concurrent reads.
type Catalog struct {
	types       map[string]Decl
	protocols   map[string]*ClassDecl
	order       []ReferencedName
	functions   map[string]*FunctionDecl
	diagnostics []Diagnostic
	drops       []Drop
}

// Lookup finds a class, record, enum or typedef.
func (c *Catalog) Lookup(name string) (Decl, bool) {
	d, ok := c.types[name]
	return d, ok
}

func (c *Catalog) Class(name string) (*ClassDecl, bool) {
	d, ok := c.types[name].(*ClassDecl)
	return d, ok
}

func (c *Catalog) Protocol(name string) (*ClassDecl, bool) {
	p, ok := c.protocols[name]
	return p, ok
}

func (c *Catalog) Function(name string) (*FunctionDecl, bool) {
	f, ok := c.functions[name]
	return f, ok
}

// Resolve finds the declaration of a referenced name in its namespace.
func (c *Catalog) Resolve(ref ReferencedName) (Decl, bool) {
	if ref.Namespace == NamespaceProtocol {
		p, ok := c.protocols[ref.Name]
		return p, ok
	}
	return c.Lookup(ref.Name)
}

// Decls returns classes, protocols, records, enums and typedefs in first-seen order.
func (c *Catalog) Decls() []Decl {
	decls := make([]Decl, 0, len(c.order))
	for _, name := range c.order {
		if d, ok := c.Resolve(name); ok {
			decls = append(decls, d)
		}
	}
	return decls
}

// Functions returns the function set sorted by name.
func (c *Catalog) Functions() []*FunctionDecl {
	functions := make([]*FunctionDecl, 0, len(c.functions))
	for _, f := range c.functions {
		functions = append(functions, f)
	}
	sort.Slice(functions, func(i, j int) bool { return functions[i].Name < functions[j].Name })
	return functions
}

func (c *Catalog) Diagnostics() []Diagnostic {
	return c.diagnostics
}

// Dropped lists what was left out while reading, in reading order.
func (c *Catalog) Dropped() []Drop {
	return c.drops
}
