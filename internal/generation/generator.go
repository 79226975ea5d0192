package generation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/jennifer/jen"

	"objcbind/internal/metadata"
)

const generatedHeader = "Code generated by objcbind. DO NOT EDIT."

type Generator struct {
	PackageName string
	OutputPath  string
	RuntimePath string
}

func NewGenerator(packageName string, outputPath string, runtimePath string) Generator {
	return Generator{
		packageName,
		outputPath,
		runtimePath,
	}
}

// FileName is the output file of a unit.
func (generator *Generator) FileName(unit Unit) string {
	return filepath.Join(generator.OutputPath, unit.Name+".go")
}

// Generate renders b into its unit file and returns the file path.
func (generator *Generator) Generate(b *Binding) (string, error) {
	err := os.MkdirAll(generator.OutputPath, os.ModePerm)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return "", err
	}

	path := generator.FileName(b.Unit)
	if err := generator.Render(b).Save(path); err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}
	return path, nil
}

// Render builds the source file of a unit without writing it.
func (generator *Generator) Render(b *Binding) *jen.File {
	file := jen.NewFile(generator.PackageName)
	file.HeaderComment(generatedHeader)
	file.ImportName(generator.RuntimePath, "objc")

	w := &unitWriter{rt: generator.RuntimePath, b: b, file: file}
	w.writePreamble()
	w.writeSlots()
	for _, d := range b.Decls() {
		switch v := d.(type) {
		case *metadata.ClassDecl:
			w.writeClass(b.Class(v))
		case *metadata.EnumDecl:
			w.writeEnum(v)
		case *metadata.RecordDecl:
			w.writeRecord(v)
		case *metadata.TypedefDecl:
			w.writeTypedef(v)
		}
	}
	for _, c := range b.Functions {
		w.writeCallable(c)
	}
	return file
}

type unitWriter struct {
	rt   string
	b    *Binding
	file *jen.File
}

func (w *unitWriter) objc(name string) *jen.Statement {
	return jen.Qual(w.rt, name)
}

func (w *unitWriter) writePreamble() {
	unit := w.b.Unit
	if len(w.b.Resolution.Imports) > 0 {
		units := make(map[string]bool, len(w.b.Resolution.Imports))
		for u := range w.b.Resolution.Imports {
			units[u] = true
		}
		w.file.Comment("Names used from other units:")
		for _, u := range sortedKeys(units) {
			w.file.Comment("  " + importComment(u, w.b.Resolution.Imports[u]))
		}
		w.file.Line()
	}

	w.file.Const().Id(libraryConst(unit)).Op("=").Lit(unit.Library)
	if len(unit.SubUnits) > 0 {
		w.file.Comment(fmt.Sprintf("%s lists the units of nested frameworks.", subUnitsVar(unit)))
		w.file.Var().Id(subUnitsVar(unit)).Op("=").Index().String().ValuesFunc(func(g *jen.Group) {
			for _, sub := range unit.SubUnits {
				g.Lit(sub)
			}
		})
	}
}

func (w *unitWriter) writeSlots() {
	slots := w.b.Slots
	w.slotBlock(slots.Selectors(), func(s Slot) jen.Code {
		return w.objc("RegisterSelector").Call(jen.Lit(s.Name))
	})
	w.slotBlock(slots.Classes(), func(s Slot) jen.Code {
		return w.objc("LinkClass").Call(jen.Lit("OBJC_CLASS_$_" + s.Name))
	})
	w.slotBlock(slots.Functions(), func(s Slot) jen.Code {
		return w.objc("LinkFunc").Call(jen.Id(libraryConst(w.b.Unit)), jen.Lit(s.Name))
	})
}

func (w *unitWriter) slotBlock(slots []Slot, value func(Slot) jen.Code) {
	if len(slots) == 0 {
		return
	}
	w.file.Var().DefsFunc(func(g *jen.Group) {
		for _, s := range slots {
			g.Id(s.Var).Op("=").Add(value(s))
		}
	})
}

func (w *unitWriter) writeClass(cb *ClassBinding) {
	wrapper := cb.Wrapper
	embedded := w.objc("Object")
	fields := jen.Id("Object").Op(":").Op("*").Id("o")
	if cb.Super != "" {
		embedded = jen.Id(cb.Super)
		fields = jen.Id(cb.Super).Op(":").Op("*").Id(fromObject(cb.Super)).Call(jen.Id("o"))
	}

	if cb.Decl.IsProtocol {
		w.file.Commentf("%s is a reference to an object conforming to @protocol %s.", wrapper, cb.Decl.Name)
	}
	w.file.Type().Id(wrapper).Struct(embedded)
	w.file.Commentf("%s wraps an owned reference.", fromObject(wrapper))
	w.file.Func().Id(fromObject(wrapper)).
		Params(jen.Id("o").Op("*").Add(w.objc("Object"))).
		Op("*").Id(wrapper).
		Block(jen.Return(jen.Op("&").Id(wrapper).Values(fields)))

	for _, p := range cb.Conforms {
		proto := ProtocolWrapper(p)
		w.file.Func().Params(jen.Id("o").Op("*").Id(wrapper)).Id(conversionMethod(p)).Params().
			Op("*").Id(proto).
			Block(jen.Return(jen.Id(fromObject(proto)).Call(jen.Id("o").Dot("Clone").Call())))
	}
	w.file.Line()

	for _, c := range cb.Callables {
		w.writeCallable(c)
	}
}

func (w *unitWriter) writeEnum(e *metadata.EnumDecl) {
	if e.FlagEnum {
		w.file.Commentf("%s is a set of flags.", e.Name)
	}
	w.file.Type().Id(e.Name).Add(w.goType(e.Backing))
	if len(e.Constants) == 0 {
		return
	}
	w.file.Const().DefsFunc(func(g *jen.Group) {
		for _, c := range e.Constants {
			g.Id(c.Name).Id(e.Name).Op("=").Op(c.String())
		}
	})
}

func (w *unitWriter) writeRecord(r *metadata.RecordDecl) {
	layout, hasLayout := w.b.Unions[r.Name]
	switch {
	case r.Opaque || (r.Union && !hasLayout):
		w.file.Type().Id(r.Name).Struct()
	case r.Union:
		w.file.Type().Id(r.Name).Struct(
			jen.Id("_").Index(jen.Lit(0)).Id(alignmentWord(layout.Align)),
			jen.Id("Data").Index(jen.Lit(int(layout.Size))).Byte(),
		)
		names := newScope("Data")
		for _, f := range r.Fields {
			w.file.Func().Params(jen.Id("u").Op("*").Id(r.Name)).Id(names.claim(exported(f.Name))).Params().
				Op("*").Add(w.goType(f.Type)).
				Block(jen.Return(jen.Parens(jen.Op("*").Add(w.goType(f.Type))).
					Call(jen.Qual("unsafe", "Pointer").Call(jen.Op("&").Id("u").Dot("Data")))))
		}
	default:
		names := newScope()
		w.file.Type().Id(r.Name).StructFunc(func(g *jen.Group) {
			for _, f := range r.Fields {
				g.Id(names.claim(exported(f.Name))).Add(w.goType(f.Type))
			}
		})
	}
	w.file.Line()
}

func (w *unitWriter) writeTypedef(t *metadata.TypedefDecl) {
	w.file.Type().Id(t.Name).Op("=").Add(w.goType(t.Aliased))
}

// goType maps a semantic type to its Go spelling.
func (w *unitWriter) goType(t metadata.SemanticType) *jen.Statement {
	switch v := t.(type) {
	case metadata.Void:
		return jen.Struct()
	case metadata.Bool:
		return jen.Bool()
	case metadata.Int:
		return jen.Id(intType(v))
	case metadata.PlatformLong:
		if v.Signed {
			return jen.Int()
		}
		return jen.Uint()
	case metadata.Float:
		if v.Width == 4 {
			return jen.Float32()
		}
		return jen.Float64()
	case metadata.Pointer:
		return w.pointerType(v)
	case metadata.FixedArray:
		return jen.Index(jen.Lit(int(v.Len))).Add(w.goType(v.Inner))
	case metadata.RecordRef:
		return jen.Id(v.Name)
	case metadata.EnumRef:
		return jen.Id(v.Name)
	case metadata.TypedefRef:
		return jen.Id(v.Name)
	case metadata.SelectorHandle:
		return w.objc("SEL")
	case metadata.FunctionSignature:
		return jen.Qual("unsafe", "Pointer")
	}
	return w.objc("Object")
}

func (w *unitWriter) pointerType(p metadata.Pointer) *jen.Statement {
	switch inner := p.Inner.(type) {
	case metadata.IdRef:
		if inner.Protocol == "" {
			return jen.Op("*").Add(w.objc("Object"))
		}
		return jen.Op("*").Id(ProtocolWrapper(inner.Protocol))
	case metadata.ClassRef:
		switch inner.Name {
		case "Class":
			return w.objc("Class")
		case "Protocol":
			return jen.Op("*").Add(w.objc("Object"))
		}
		return jen.Op("*").Id(inner.Name)
	case metadata.FunctionSignature:
		if inner.Block {
			return w.objc("Block")
		}
		return jen.Qual("unsafe", "Pointer")
	case metadata.Void:
		return jen.Qual("unsafe", "Pointer")
	}
	return jen.Op("*").Add(w.goType(p.Inner))
}

func intType(v metadata.Int) string {
	name := fmt.Sprintf("int%d", v.Width*8)
	if !v.Signed {
		name = "u" + name
	}
	return name
}

// rawType is the type dispatch returns before ownership is applied.
func (w *unitWriter) rawType(t metadata.SemanticType) *jen.Statement {
	if isManagedObject(t) {
		return w.objc("ID")
	}
	return w.goType(t)
}

// wrap turns a +1 handle into the wrapper type of the object pointer t.
func (w *unitWriter) wrap(t metadata.SemanticType, id jen.Code) *jen.Statement {
	adopted := w.objc("Adopt").Call(id)
	switch inner := t.(metadata.Pointer).Inner.(type) {
	case metadata.ClassRef:
		if inner.Name != "Protocol" {
			return jen.Id(fromObject(inner.Name)).Call(adopted)
		}
	case metadata.IdRef:
		if inner.Protocol != "" {
			return jen.Id(fromObject(ProtocolWrapper(inner.Protocol))).Call(adopted)
		}
	}
	return adopted
}

func (w *unitWriter) writeCallable(c *Callable) {
	if c.Deprecated {
		note := c.Note
		if note == "" {
			note = "no replacement given."
		}
		w.file.Comment("Deprecated: " + note)
	}

	stmt := w.file.Func()
	if c.Kind == InstanceMethod {
		stmt.Params(jen.Id("o").Op("*").Id(c.Owner))
	}
	stmt.Id(c.Name).ParamsFunc(func(g *jen.Group) {
		for _, p := range c.Params {
			g.Id(p.Name).Add(w.goType(p.Type))
		}
	})
	if _, void := c.Result.(metadata.Void); !void {
		stmt.Add(w.goType(c.Result))
	}
	stmt.BlockFunc(func(g *jen.Group) {
		w.body(g, c)
	})
	w.file.Line()
}

// body renders the steps of a callable in order.
func (w *unitWriter) body(g *jen.Group, c *Callable) {
	_, void := c.Result.(metadata.Void)
	var result jen.Code = jen.Id("ret")

	for _, step := range c.Steps {
		switch step.Kind {
		case StepSetupOut:
			p := c.Params[step.Param]
			g.Var().Id(p.Name + "Out").Add(w.objc("ID"))
			g.Var().Id(p.Name + "Ptr").Op("*").Add(w.objc("ID"))
			g.If(jen.Id(p.Name).Op("!=").Nil()).Block(
				jen.Id(p.Name + "Ptr").Op("=").Op("&").Id(p.Name + "Out"),
			)

		case StepAlloc:
			g.Id("self").Op(":=").Add(w.objc("AllocWithZone")).Call(jen.Id(c.ClassSlot))

		case StepDispatch:
			args := w.arguments(g, c)
			call := w.dispatch(c, args)
			if void {
				g.Add(call)
			} else {
				g.Id("ret").Op(":=").Add(call)
			}

		case StepReadBackOut:
			p := c.Params[step.Param]
			out := jen.Id(p.Name + "Out")
			g.If(jen.Id(p.Name).Op("!=").Nil()).Block(
				jen.Op("*").Id(p.Name).Op("=").Nil(),
				jen.If(out.Clone().Op("!=").Lit(0)).Block(
					jen.Op("*").Id(p.Name).Op("=").Add(w.wrap(p.Type.(metadata.Pointer).Inner, w.objc("Retain").Call(out.Clone()))),
				),
			)

		case StepClaimAutoreleased:
			g.Id("ret").Op("=").Add(w.objc("RetainAutoreleasedReturnValue")).Call(jen.Id("ret"))

		case StepRetain:
			g.Id("ret").Op("=").Add(w.objc("Retain")).Call(jen.Id("ret"))

		case StepWrap:
			if step.Optional {
				g.If(jen.Id("ret").Op("==").Lit(0)).Block(jen.Return(jen.Nil()))
			}
			result = w.wrap(c.Result, jen.Id("ret"))

		case StepBorrow:
			if step.Optional {
				g.If(jen.Id("ret").Op("==").Nil()).Block(jen.Return(jen.Nil()))
			}
			result = w.objc("Borrow").Call(jen.Op("&").Id("o").Dot("Object"), jen.Id("ret"))

		case StepReturn:
			if !void {
				g.Return(result)
			}
		}
	}
}

// arguments declares nullable handle temporaries and returns the call arguments.
func (w *unitWriter) arguments(g *jen.Group, c *Callable) []jen.Code {
	args := make([]jen.Code, 0, len(c.Params))
	for _, p := range c.Params {
		switch p.Marshal {
		case MarshalHandle:
			args = append(args, jen.Id(p.Name).Dot("ID").Call())
		case MarshalNullableHandle:
			handle := p.Name + "ID"
			g.Var().Id(handle).Add(w.objc("ID"))
			g.If(jen.Id(p.Name).Op("!=").Nil()).Block(
				jen.Id(handle).Op("=").Id(p.Name).Dot("ID").Call(),
			)
			args = append(args, jen.Id(handle))
		case MarshalOut:
			args = append(args, jen.Id(p.Name+"Ptr"))
		default:
			args = append(args, jen.Id(p.Name))
		}
	}
	return args
}

func (w *unitWriter) dispatch(c *Callable, args []jen.Code) *jen.Statement {
	raw := w.rawType(c.Result)
	if _, void := c.Result.(metadata.Void); void {
		raw = jen.Struct()
	}

	if c.Entry == EntryDirect {
		return w.objc("Call").Types(raw).Call(append([]jen.Code{jen.Id(c.FuncSlot)}, args...)...)
	}

	var receiver jen.Code
	switch c.Receiver {
	case ReceiverClass:
		receiver = w.objc("ID").Call(jen.Id(c.ClassSlot))
	case ReceiverAllocated:
		receiver = jen.Id("self")
	default:
		receiver = jen.Id("o").Dot("ID").Call()
	}

	entry := "Send"
	switch c.Entry {
	case EntryFloat:
		entry = "SendFpret"
	case EntryStruct:
		entry = "SendStret"
	}
	return w.objc(entry).Types(raw).Call(append([]jen.Code{receiver, jen.Id(c.SelectorSlot)}, args...)...)
}

// Source renders b to Go source text.
func (generator *Generator) Source(b *Binding) (string, error) {
	var sb strings.Builder
	if err := generator.Render(b).Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
