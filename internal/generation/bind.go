package generation

import (
	"log/slog"

	"objcbind/internal/metadata"
)

type Options struct {
	// Fallbacks maps names assumed to exist to their framework. Nil selects DefaultFallbacks.
	Fallbacks map[string]string
	Logger    *slog.Logger
}

// ClassBinding is a class or protocol wrapper with its callables.
type ClassBinding struct {
	Decl    *metadata.ClassDecl
	Wrapper string
	// Super is the embedded superclass wrapper, or "" when the class embeds objc.Object.
	Super string
	// Conforms lists the protocols with a conversion method.
	Conforms  []string
	Callables []*Callable
}

// UnionLayout is the storage of a union emitted as aligned bytes.
type UnionLayout struct {
	Size  int64
	Align int64
}

// Binding is everything the writer renders for one unit.
type Binding struct {
	Unit       Unit
	Resolution *Resolution
	Slots      *SelectorSet
	Functions  []*Callable
	Unions     map[string]UnionLayout
	Trace      []TraceEntry

	classes map[*metadata.ClassDecl]*ClassBinding
}

// Decls lists the local declarations in catalog order.
func (b *Binding) Decls() []metadata.Decl {
	return b.Resolution.Decls
}

func (b *Binding) Class(d *metadata.ClassDecl) *ClassBinding {
	return b.classes[d]
}

// Callables lists every callable of the unit, classes in order, then functions.
func (b *Binding) Callables() []*Callable {
	var all []*Callable
	for _, d := range b.Resolution.Decls {
		if c, ok := d.(*metadata.ClassDecl); ok {
			all = append(all, b.classes[c].Callables...)
		}
	}
	return append(all, b.Functions...)
}

// Bind resolves, names and emits every local declaration of unit.
func Bind(unit Unit, catalog *metadata.Catalog, index NameIndex, opts Options) *Binding {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bind", "unit", unit.Name)

	res := NewResolver(unit, catalog, index, opts.Fallbacks).Resolve()
	for _, d := range res.Diagnostics {
		logger.Debug(d.Message, "subject", d.Subject, "location", d.Location.String())
	}

	b := &Binding{
		Unit:       unit,
		Resolution: res,
		Slots:      NewSelectorSet(unit.Name),
		Unions:     make(map[string]UnionLayout),
		classes:    make(map[*metadata.ClassDecl]*ClassBinding),
	}
	emitter := NewEmitter(unit, catalog, res, b.Slots)
	reserveNames(emitter, unit, res.Decls)

	trace := append([]TraceEntry(nil), res.Trace...)
	for _, d := range catalog.Dropped() {
		if unit.Owns(d.Location.File) {
			trace = append(trace, TraceEntry{Subject: d.Subject, Stage: StageDropped, Reason: d.Reason})
		}
	}
	shapes := newLayout(catalog)
	for _, d := range res.Decls {
		switch v := d.(type) {
		case *metadata.ClassDecl:
			b.classes[v] = bindClass(emitter, res, v)
		case *metadata.RecordDecl:
			if v.Union && !v.Opaque {
				size, align, err := shapes.record(v.Name)
				if err != nil {
					logger.Debug("union emitted opaque", "union", v.Name, "error", err)
					trace = append(trace, TraceEntry{Subject: v.Name, Stage: StageEmitted, Reason: "opaque, " + err.Error()})
					continue
				}
				b.Unions[v.Name] = UnionLayout{Size: size, Align: align}
			}
		}
		trace = append(trace, TraceEntry{Subject: declReference(d).String(), Stage: StageEmitted})
	}
	for _, f := range res.Functions {
		if c, ok := emitter.Function(f); ok {
			b.Functions = append(b.Functions, c)
		}
	}

	b.Trace = append(trace, emitter.Trace()...)
	logger.Debug("unit bound",
		"decls", len(res.Decls), "functions", len(b.Functions),
		"selectors", len(b.Slots.Selectors()), "classes", len(b.Slots.Classes()),
		"dependencies", res.Dependencies)
	return b
}

// reserveNames claims every package level name the writer emits for declarations,
// so callables never shadow them.
func reserveNames(e *Emitter, unit Unit, decls []metadata.Decl) {
	if len(unit.SubUnits) > 0 {
		e.Reserve(subUnitsVar(unit))
	}
	e.Reserve(libraryConst(unit))
	for _, d := range decls {
		switch v := d.(type) {
		case *metadata.ClassDecl:
			wrapper := WrapperName(v)
			e.Reserve(wrapper)
			e.Reserve(fromObject(wrapper))
		case *metadata.EnumDecl:
			e.Reserve(v.Name)
			for _, c := range v.Constants {
				e.Reserve(c.Name)
			}
		default:
			e.Reserve(d.DeclName())
		}
	}
}

func bindClass(e *Emitter, res *Resolution, d *metadata.ClassDecl) *ClassBinding {
	cb := &ClassBinding{Decl: d, Wrapper: WrapperName(d)}
	if d.Superclass != "" && res.Known(metadata.TypeName(d.Superclass)) {
		cb.Super = d.Superclass
		e.ReserveMember(cb.Wrapper, d.Superclass)
	}
	for _, p := range d.Protocols {
		if res.Known(metadata.ProtocolName(p)) {
			cb.Conforms = append(cb.Conforms, p)
			e.ReserveMember(cb.Wrapper, conversionMethod(p))
		}
	}

	for _, class := range []bool{true, false} {
		propertiesOf(d, class).Each(func(_ string, p *metadata.PropertyDecl) {
			cb.Callables = append(cb.Callables, e.Property(d, p)...)
		})
	}
	for _, class := range []bool{true, false} {
		methodsOf(d, class).Each(func(_ string, m *metadata.MethodDecl) {
			if c, ok := e.Method(d, m, class); ok {
				cb.Callables = append(cb.Callables, c)
			}
		})
	}
	return cb
}

func fromObject(wrapper string) string {
	return wrapper + "FromObject"
}

func conversionMethod(protocol string) string {
	return "As" + protocol
}

func libraryConst(unit Unit) string {
	return "library" + unit.Name
}

func subUnitsVar(unit Unit) string {
	return unit.Name + "SubUnits"
}
