package generation

import (
	"fmt"
	"strings"

	"objcbind/internal/metadata"
)

type CallableKind int

const (
	ClassMethod CallableKind = iota
	InstanceMethod
	Constructor
	Function
)

// Entry is the dispatch entry point. The platform ABI returns each category in
// different registers, so the choice follows the result type.
type Entry int

const (
	EntryDefault Entry = iota
	EntryFloat
	EntryStruct
	EntryDirect
)

func (e Entry) String() string {
	switch e {
	case EntryDefault:
		return "default"
	case EntryFloat:
		return "fpret"
	case EntryStruct:
		return "stret"
	case EntryDirect:
		return "direct"
	default:
		return fmt.Sprintf("Entry(%d)", int(e))
	}
}

type Receiver int

const (
	ReceiverClass Receiver = iota
	ReceiverSelf
	ReceiverAllocated
	ReceiverNone
)

type Marshal int

const (
	// MarshalValue passes the Go value unchanged.
	MarshalValue Marshal = iota
	// MarshalHandle passes the raw handle of a nonnull object.
	MarshalHandle
	// MarshalNullableHandle passes the raw handle, or nil for a nil wrapper.
	MarshalNullableHandle
	// MarshalOut passes a temporary that is read back after the call. Only
	// pointers to object pointers are out parameters; other pointers pass through raw.
	MarshalOut
)

type Param struct {
	Name    string
	Type    metadata.SemanticType
	Marshal Marshal
}

type StepKind int

const (
	StepSetupOut StepKind = iota
	StepAlloc
	StepDispatch
	StepReadBackOut
	StepClaimAutoreleased
	StepRetain
	StepWrap
	StepBorrow
	StepReturn
)

func (k StepKind) String() string {
	switch k {
	case StepSetupOut:
		return "setup-out"
	case StepAlloc:
		return "alloc"
	case StepDispatch:
		return "dispatch"
	case StepReadBackOut:
		return "read-back-out"
	case StepClaimAutoreleased:
		return "claim-autoreleased"
	case StepRetain:
		return "retain"
	case StepWrap:
		return "wrap"
	case StepBorrow:
		return "borrow"
	case StepReturn:
		return "return"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one operation of a callable body, in execution order.
type Step struct {
	Kind StepKind
	// Param indexes the out parameter of SetupOut and ReadBackOut steps.
	Param int
	// Optional marks a Wrap or Borrow whose result may be nil.
	Optional bool
}

// Callable is the binding contract of one method, accessor or function. It
// carries everything the writer needs and nothing it has to look up.
type Callable struct {
	Name     string
	Kind     CallableKind
	Owner    string
	Selector string

	SelectorSlot string
	ClassSlot    string
	FuncSlot     string

	Params   []Param
	Result   metadata.SemanticType
	Entry    Entry
	Receiver Receiver
	Steps    []Step

	Deprecated bool
	Note       string
}

// IsConstructorShaped reports whether the callable yields a new instance of its owner.
func (c *Callable) IsConstructorShaped() bool {
	if c.Kind == Constructor {
		return true
	}
	if c.Kind != ClassMethod {
		return false
	}
	p, ok := c.Result.(metadata.Pointer)
	if !ok {
		return false
	}
	ref, ok := p.Inner.(metadata.ClassRef)
	return ok && ref.Name == c.Owner
}

// Count returns how many steps of kind the body performs.
func (c *Callable) Count(kind StepKind) int {
	n := 0
	for _, s := range c.Steps {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Emitter turns retained declarations of one unit into callables.
type Emitter struct {
	unit       Unit
	catalog    *metadata.Catalog
	resolution *Resolution
	slots      *SelectorSet

	pkg     *scope
	members map[string]*scope
	trace   []TraceEntry
}

func NewEmitter(unit Unit, catalog *metadata.Catalog, resolution *Resolution, slots *SelectorSet) *Emitter {
	return &Emitter{
		unit:       unit,
		catalog:    catalog,
		resolution: resolution,
		slots:      slots,
		pkg:        newScope(),
		members:    make(map[string]*scope),
	}
}

// Reserve claims a package level identifier before any callable is named.
func (e *Emitter) Reserve(name string) {
	e.pkg.reserve(name)
}

// ReserveMember claims a method name on a wrapper type.
func (e *Emitter) ReserveMember(wrapper string, name string) {
	e.memberScope(wrapper).reserve(name)
}

func (e *Emitter) Trace() []TraceEntry {
	return e.trace
}

func (e *Emitter) memberScope(wrapper string) *scope {
	s, ok := e.members[wrapper]
	if !ok {
		s = newScope(objectMethods...)
		e.members[wrapper] = s
	}
	return s
}

// WrapperName is the Go type wrapping objects of a class or protocol.
func WrapperName(c *metadata.ClassDecl) string {
	if c.IsProtocol {
		return ProtocolWrapper(c.Name)
	}
	return c.Name
}

func ProtocolWrapper(name string) string {
	return name + "Proto"
}

func memberSubject(owner *metadata.ClassDecl, sel string, class bool) string {
	sign := "-"
	if class {
		sign = "+"
	}
	return fmt.Sprintf("%s %s%s", owner.Name, sign, sel)
}

func (e *Emitter) drop(subject string, reason string) {
	e.trace = append(e.trace, TraceEntry{Subject: subject, Stage: StageDropped, Reason: reason})
}

func (e *Emitter) emitted(subject string) {
	e.trace = append(e.trace, TraceEntry{Subject: subject, Stage: StageEmitted})
}

// Method emits a method binding. Designated initializers become constructors.
func (e *Emitter) Method(owner *metadata.ClassDecl, m *metadata.MethodDecl, class bool) (*Callable, bool) {
	subject := memberSubject(owner, m.Selector, class)
	if reason := e.rejectMethod(m); reason != "" {
		e.drop(subject, reason)
		return nil, false
	}

	c := &Callable{Owner: WrapperName(owner), Selector: m.Selector}
	switch {
	case m.IsInitializer() && !class:
		if owner.IsProtocol {
			e.drop(subject, "initializer of a protocol")
			return nil, false
		}
		c.Kind = Constructor
		c.Receiver = ReceiverAllocated
		c.Name = e.pkg.claim("New" + owner.Name + selectorName(strings.TrimPrefix(m.Selector, "init")))
	case class:
		if owner.IsProtocol {
			e.drop(subject, "class member of a protocol")
			return nil, false
		}
		c.Kind = ClassMethod
		c.Receiver = ReceiverClass
		c.Name = e.pkg.claim(owner.Name + selectorName(m.Selector))
	default:
		c.Kind = InstanceMethod
		c.Receiver = ReceiverSelf
		c.Name = e.memberScope(c.Owner).claim(selectorName(m.Selector))
	}

	e.fill(c, owner, m)
	e.emitted(subject)
	return c, true
}

// Property emits the getter and, for writable properties, the setter.
func (e *Emitter) Property(owner *metadata.ClassDecl, p *metadata.PropertyDecl) []*Callable {
	var callables []*Callable
	accessors := []struct {
		method *metadata.MethodDecl
		prefix string
	}{
		{p.GetterMethod, ""},
		{p.SetterMethod, "Set"},
	}
	for _, a := range accessors {
		if a.method == nil {
			continue
		}
		m := a.method
		subject := memberSubject(owner, m.Selector, p.Class)
		if reason := e.rejectMethod(m); reason != "" {
			e.drop(subject, reason)
			continue
		}

		c := &Callable{Owner: WrapperName(owner), Selector: m.Selector}
		switch {
		case p.Class && owner.IsProtocol:
			e.drop(subject, "class member of a protocol")
			continue
		case p.Class:
			c.Kind = ClassMethod
			c.Receiver = ReceiverClass
			c.Name = e.pkg.claim(owner.Name + a.prefix + exported(p.Name))
		default:
			c.Kind = InstanceMethod
			c.Receiver = ReceiverSelf
			c.Name = e.memberScope(c.Owner).claim(a.prefix + exported(p.Name))
		}
		e.fill(c, owner, m)
		e.emitted(subject)
		callables = append(callables, c)
	}
	return callables
}

// Function emits a C function binding.
func (e *Emitter) Function(f *metadata.FunctionDecl) (*Callable, bool) {
	if f.Variadic {
		e.drop(f.Name, "variadic")
		return nil, false
	}
	if reason := e.reject(f.Availability, f.Args, f.Result); reason != "" {
		e.drop(f.Name, reason)
		return nil, false
	}

	c := &Callable{
		Name:     e.pkg.claim(exported(f.Name)),
		Kind:     Function,
		Receiver: ReceiverNone,
		Entry:    EntryDirect,
		FuncSlot: e.slots.Function(f.Name),
		Result:   f.Result,
	}
	c.Params = e.params(f.Args, nil)
	c.Deprecated = f.Availability.Deprecated
	c.Note = f.Availability.Message

	c.Steps = append(c.Steps, e.outSteps(c.Params, StepSetupOut)...)
	c.Steps = append(c.Steps, Step{Kind: StepDispatch})
	c.Steps = append(c.Steps, e.outSteps(c.Params, StepReadBackOut)...)
	if isManagedObject(c.Result) {
		c.Steps = append(c.Steps,
			Step{Kind: StepClaimAutoreleased},
			Step{Kind: StepWrap, Optional: !metadata.IsNonnull(c.Result)})
	}
	c.Steps = append(c.Steps, Step{Kind: StepReturn})
	e.emitted(f.Name)
	return c, true
}

func (e *Emitter) rejectMethod(m *metadata.MethodDecl) string {
	if m.Variadic {
		return "variadic"
	}
	return e.reject(m.Availability, m.Args, m.Result)
}

// reject returns why a signature cannot be bound, or "" when it can.
func (e *Emitter) reject(avail metadata.Availability, args []metadata.Arg, result metadata.SemanticType) string {
	if avail.Unavailable {
		return "unavailable"
	}
	types := []metadata.SemanticType{result}
	for _, a := range args {
		if metadata.IsVaList(a.Type) {
			return "va_list parameter"
		}
		types = append(types, a.Type)
	}
	for _, t := range types {
		if sig, ok := blockSignature(t); ok && sig.Variadic {
			return "variadic block"
		}
		for _, ref := range metadata.ReferencedNames(t) {
			if !e.resolution.Known(ref) {
				return "references unknown " + ref.String()
			}
		}
	}
	return ""
}

func blockSignature(t metadata.SemanticType) (metadata.FunctionSignature, bool) {
	p, ok := t.(metadata.Pointer)
	if !ok {
		return metadata.FunctionSignature{}, false
	}
	sig, ok := p.Inner.(metadata.FunctionSignature)
	return sig, ok && sig.Block
}

// fill completes a method callable: slots, parameters, entry and body steps.
func (e *Emitter) fill(c *Callable, owner *metadata.ClassDecl, m *metadata.MethodDecl) {
	self := instanceType(owner)
	c.SelectorSlot = e.slots.Selector(m.Selector)
	if c.Receiver == ReceiverClass || c.Receiver == ReceiverAllocated {
		c.ClassSlot = e.slots.Class(owner.Name)
	}
	c.Params = e.params(m.Args, self)
	c.Result = substitute(m.Result, self)
	c.Entry = e.entry(c.Result)
	c.Deprecated = m.Availability.Deprecated
	c.Note = m.Availability.Message

	if c.Receiver == ReceiverAllocated {
		c.Steps = append(c.Steps, Step{Kind: StepAlloc})
	}
	c.Steps = append(c.Steps, e.outSteps(c.Params, StepSetupOut)...)
	c.Steps = append(c.Steps, Step{Kind: StepDispatch})
	c.Steps = append(c.Steps, e.outSteps(c.Params, StepReadBackOut)...)

	optional := !metadata.IsNonnull(c.Result)
	switch {
	case isManagedObject(c.Result):
		switch m.Ownership {
		case metadata.Autoreleased:
			c.Steps = append(c.Steps, Step{Kind: StepClaimAutoreleased})
		case metadata.NotRetained:
			// The callee kept its reference; take one of our own.
			c.Steps = append(c.Steps, Step{Kind: StepRetain})
		}
		c.Steps = append(c.Steps, Step{Kind: StepWrap, Optional: optional})
	case m.ReturnsInnerPointer && c.Receiver == ReceiverSelf && isPointer(c.Result):
		c.Steps = append(c.Steps, Step{Kind: StepBorrow, Optional: optional})
	}
	c.Steps = append(c.Steps, Step{Kind: StepReturn})
}

func (e *Emitter) params(args []metadata.Arg, self metadata.SemanticType) []Param {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name
	}
	names = paramNames(names)

	params := make([]Param, len(args))
	for i, a := range args {
		t := substitute(a.Type, self)
		p := Param{Name: names[i], Type: t}
		switch {
		case isOutObject(t):
			p.Marshal = MarshalOut
		case isManagedObject(t) && metadata.IsNonnull(t):
			p.Marshal = MarshalHandle
		case isManagedObject(t):
			p.Marshal = MarshalNullableHandle
		}
		params[i] = p
	}
	return params
}

func (e *Emitter) outSteps(params []Param, kind StepKind) []Step {
	var steps []Step
	for i, p := range params {
		if p.Marshal == MarshalOut {
			steps = append(steps, Step{Kind: kind, Param: i})
		}
	}
	return steps
}

func (e *Emitter) entry(result metadata.SemanticType) Entry {
	switch e.underlying(result).(type) {
	case metadata.Float:
		return EntryFloat
	case metadata.RecordRef:
		return EntryStruct
	}
	return EntryDefault
}

// underlying follows typedef references through the catalog.
func (e *Emitter) underlying(t metadata.SemanticType) metadata.SemanticType {
	for i := 0; i < 16; i++ {
		ref, ok := t.(metadata.TypedefRef)
		if !ok {
			return t
		}
		d, ok := e.catalog.Lookup(ref.Name)
		if !ok {
			return t
		}
		alias, ok := d.(*metadata.TypedefDecl)
		if !ok {
			return t
		}
		t = alias.Aliased
	}
	return t
}

// instanceType is what `instancetype` means inside owner.
func instanceType(owner *metadata.ClassDecl) metadata.SemanticType {
	if owner.IsProtocol {
		return metadata.IdRef{Protocol: owner.Name}
	}
	return metadata.ClassRef{Name: owner.Name}
}

func substitute(t metadata.SemanticType, self metadata.SemanticType) metadata.SemanticType {
	if self == nil {
		return t
	}
	return metadata.MapType(t, func(t metadata.SemanticType) (metadata.SemanticType, bool) {
		if _, ok := t.(metadata.InstanceTypeRef); ok {
			return self, true
		}
		return nil, false
	})
}

// isManagedObject reports whether values of t are reference counted. Class
// objects are never released, so they pass as plain values.
func isManagedObject(t metadata.SemanticType) bool {
	if !metadata.IsObjectPointer(t) {
		return false
	}
	if ref, ok := t.(metadata.Pointer).Inner.(metadata.ClassRef); ok && ref.Name == "Class" {
		return false
	}
	return true
}

// isOutObject reports whether t is a pointer to an object pointer, like NSError **.
func isOutObject(t metadata.SemanticType) bool {
	p, ok := t.(metadata.Pointer)
	return ok && isManagedObject(p.Inner)
}

func isPointer(t metadata.SemanticType) bool {
	_, ok := t.(metadata.Pointer)
	return ok
}
