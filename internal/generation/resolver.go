package generation

import (
	"sort"
	"strings"
	"sync"

	"objcbind/internal/metadata"
)

// Origin names where a foreign declaration is emitted.
type Origin struct {
	// Framework is the outermost framework, the unit of dependency tracking.
	Framework string
	// Unit is the unit that defines the name.
	Unit string
}

// NameIndex answers which completed unit defines a name. Implementations must
// be safe for concurrent reads.
type NameIndex interface {
	Origin(name metadata.ReferencedName) (Origin, bool)
}

// SharedIndex is the NameIndex shared between framework runs. Units publish
// their names once they are written.
type SharedIndex struct {
	mu    sync.RWMutex
	names map[metadata.ReferencedName]Origin
}

func NewSharedIndex() *SharedIndex {
	return &SharedIndex{names: make(map[metadata.ReferencedName]Origin)}
}

func (i *SharedIndex) Origin(name metadata.ReferencedName) (Origin, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	o, ok := i.names[name]
	return o, ok
}

// Publish registers names as defined by origin. The first publisher of a name wins.
func (i *SharedIndex) Publish(origin Origin, names []metadata.ReferencedName) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, n := range names {
		if _, exists := i.names[n]; !exists {
			i.names[n] = origin
		}
	}
}

// DefaultFallbacks are names assumed to exist even when no header declares them.
var DefaultFallbacks = map[string]string{
	"NSString": "Foundation",
}

// Resolution is the dependency view of one unit.
type Resolution struct {
	// Decls are the retained local declarations in catalog order.
	Decls []metadata.Decl
	// Functions are the local functions sorted by name.
	Functions []*metadata.FunctionDecl
	// Imports maps a defining unit to the foreign names used from it.
	Imports map[string][]string
	// Dependencies are the foreign frameworks referenced, sorted.
	Dependencies []string

	Trace       []TraceEntry
	Diagnostics []metadata.Diagnostic

	known map[metadata.ReferencedName]bool
}

// Known reports whether generated code may reference name.
func (r *Resolution) Known(name metadata.ReferencedName) bool {
	return r.known[name]
}

// Names lists the local names the unit defines.
func (r *Resolution) Names() []metadata.ReferencedName {
	names := make([]metadata.ReferencedName, 0, len(r.Decls))
	for _, d := range r.Decls {
		names = append(names, declReference(d))
	}
	return names
}

type Resolver struct {
	unit      Unit
	catalog   *metadata.Catalog
	index     NameIndex
	fallbacks map[string]string

	known   map[metadata.ReferencedName]bool
	imports map[string]map[string]bool
	deps    map[string]bool
}

// NewResolver prepares the dependency pass of unit. index may be nil.
func NewResolver(unit Unit, catalog *metadata.Catalog, index NameIndex, fallbacks map[string]string) *Resolver {
	if fallbacks == nil {
		fallbacks = DefaultFallbacks
	}
	return &Resolver{
		unit:      unit,
		catalog:   catalog,
		index:     index,
		fallbacks: fallbacks,
		known:     make(map[metadata.ReferencedName]bool),
		imports:   make(map[string]map[string]bool),
		deps:      make(map[string]bool),
	}
}

func declReference(d metadata.Decl) metadata.ReferencedName {
	if d.DeclKind() == metadata.DeclProtocol {
		return metadata.ProtocolName(d.DeclName())
	}
	return metadata.TypeName(d.DeclName())
}

// Resolve partitions the references of every local declaration into local,
// foreign and unknown names.
func (r *Resolver) Resolve() *Resolution {
	res := &Resolution{known: r.known}

	var local []metadata.Decl
	unknown := make(map[metadata.ReferencedName]bool)
	for _, d := range r.catalog.Decls() {
		if r.unit.Owns(d.DeclLocation().File) {
			local = append(local, d)
			r.known[declReference(d)] = true
		}
	}

	classify := func(d metadata.Decl, refs []metadata.ReferencedName) []metadata.ReferencedName {
		var missing []metadata.ReferencedName
		for _, ref := range refs {
			if !r.classify(ref) {
				missing = append(missing, ref)
				if !unknown[ref] {
					unknown[ref] = true
					res.Diagnostics = append(res.Diagnostics, metadata.Diagnostic{
						Location: d.DeclLocation(),
						Subject:  ref.String(),
						Message:  "unknown name referenced by " + d.DeclName(),
						Severity: metadata.SeverityDebug,
					})
				}
			}
		}
		return missing
	}

	// Records and typedefs cannot be emitted without their references. Dropping
	// one can strand another, so repeat until nothing changes.
	dropped := make(map[metadata.ReferencedName]string)
	for changed := true; changed; {
		changed = false
		for _, d := range local {
			name := declReference(d)
			if _, gone := dropped[name]; gone || !structural(d) {
				continue
			}
			if missing := classify(d, outbound(d)); len(missing) > 0 {
				dropped[name] = "references unknown " + missing[0].String()
				delete(r.known, name)
				changed = true
			}
		}
	}

	for _, d := range local {
		name := declReference(d)
		if reason, gone := dropped[name]; gone {
			res.Trace = append(res.Trace, TraceEntry{Subject: name.String(), Stage: StageDropped, Reason: reason})
			continue
		}
		if !structural(d) {
			// Members referencing unknown names are dropped one by one during emission.
			classify(d, outbound(d))
		}
		res.Decls = append(res.Decls, d)
	}

	for _, f := range r.catalog.Functions() {
		if r.unit.Owns(f.Location.File) {
			classify(f, functionReferences(f))
			res.Functions = append(res.Functions, f)
		}
	}

	res.Imports = make(map[string][]string, len(r.imports))
	for unit, names := range r.imports {
		res.Imports[unit] = sortedKeys(names)
	}
	res.Dependencies = sortedKeys(r.deps)
	return res
}

// classify marks ref known when it is local, foreign or a fallback.
func (r *Resolver) classify(ref metadata.ReferencedName) bool {
	if r.known[ref] {
		return true
	}

	if d, ok := r.catalog.Resolve(ref); ok {
		if r.unit.Owns(d.DeclLocation().File) {
			// Local but dropped.
			return false
		}
		if chain := FrameworkChain(d.DeclLocation().File); len(chain) > 0 {
			r.foreign(ref, Origin{Framework: chain[0], Unit: UnitName(chain)})
			return true
		}
	}
	if r.index != nil {
		if origin, ok := r.index.Origin(ref); ok {
			r.foreign(ref, origin)
			return true
		}
	}
	if ref.Namespace == metadata.NamespaceType {
		if framework, ok := r.fallbacks[ref.Name]; ok {
			r.foreign(ref, Origin{Framework: framework, Unit: framework})
			return true
		}
	}
	return false
}

func (r *Resolver) foreign(ref metadata.ReferencedName, origin Origin) {
	r.known[ref] = true
	if origin.Unit == r.unit.Name {
		return
	}
	if r.imports[origin.Unit] == nil {
		r.imports[origin.Unit] = make(map[string]bool)
	}
	r.imports[origin.Unit][ref.String()] = true
	if origin.Framework != "" && origin.Framework != r.unit.Framework {
		r.deps[origin.Framework] = true
	}
}

func structural(d metadata.Decl) bool {
	switch d.DeclKind() {
	case metadata.DeclRecord, metadata.DeclTypedef:
		return true
	}
	return false
}

// outbound lists every name d depends on, superclass and protocol edges included.
func outbound(d metadata.Decl) []metadata.ReferencedName {
	var refs []metadata.ReferencedName
	add := func(t metadata.SemanticType) {
		refs = append(refs, metadata.ReferencedNames(t)...)
	}

	switch v := d.(type) {
	case *metadata.RecordDecl:
		for _, f := range v.Fields {
			add(f.Type)
		}
	case *metadata.TypedefDecl:
		add(v.Aliased)
	case *metadata.EnumDecl:
		add(v.Backing)
	case *metadata.ClassDecl:
		if v.Superclass != "" {
			refs = append(refs, metadata.TypeName(v.Superclass))
		}
		for _, p := range v.Protocols {
			refs = append(refs, metadata.ProtocolName(p))
		}
		for _, class := range []bool{true, false} {
			methodsOf(v, class).Each(func(_ string, m *metadata.MethodDecl) {
				refs = append(refs, methodReferences(m)...)
			})
			propertiesOf(v, class).Each(func(_ string, p *metadata.PropertyDecl) {
				add(p.Type)
			})
		}
	}
	return dedupe(refs)
}

func methodReferences(m *metadata.MethodDecl) []metadata.ReferencedName {
	refs := metadata.ReferencedNames(m.Result)
	for _, a := range m.Args {
		refs = append(refs, metadata.ReferencedNames(a.Type)...)
	}
	return dedupe(refs)
}

func functionReferences(f *metadata.FunctionDecl) []metadata.ReferencedName {
	refs := metadata.ReferencedNames(f.Result)
	for _, a := range f.Args {
		refs = append(refs, metadata.ReferencedNames(a.Type)...)
	}
	return dedupe(refs)
}

func methodsOf(c *metadata.ClassDecl, class bool) *metadata.Members[*metadata.MethodDecl] {
	if class {
		return c.ClassMethods
	}
	return c.InstanceMethods
}

func propertiesOf(c *metadata.ClassDecl, class bool) *metadata.Members[*metadata.PropertyDecl] {
	if class {
		return c.ClassProperties
	}
	return c.InstanceProperties
}

func dedupe(refs []metadata.ReferencedName) []metadata.ReferencedName {
	seen := make(map[metadata.ReferencedName]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// importComment renders one import group, e.g. "Foundation: NSArray, NSString".
func importComment(unit string, names []string) string {
	return unit + ": " + strings.Join(names, ", ")
}
