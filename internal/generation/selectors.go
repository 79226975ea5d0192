package generation

import (
	"sort"
	"strings"
)

// SelectorSet collects the selectors and classes a unit dispatches to. Each
// distinct selector or class gets exactly one slot.
type SelectorSet struct {
	unit      string
	selectors map[string]string
	classes   map[string]string
	functions map[string]string
}

func NewSelectorSet(unit string) *SelectorSet {
	return &SelectorSet{
		unit:      unit,
		selectors: make(map[string]string),
		classes:   make(map[string]string),
		functions: make(map[string]string),
	}
}

// Slot is a named package variable and the runtime name it is bound to.
type Slot struct {
	Var  string
	Name string
}

// Selector registers sel and returns its slot variable.
func (s *SelectorSet) Selector(sel string) string {
	if slot, ok := s.selectors[sel]; ok {
		return slot
	}
	slot := "sel" + s.unit + "_" + escapeSelector(sel)
	s.selectors[sel] = slot
	return slot
}

// Class registers a class reference and returns its slot variable.
func (s *SelectorSet) Class(name string) string {
	if slot, ok := s.classes[name]; ok {
		return slot
	}
	slot := "class" + s.unit + "_" + name
	s.classes[name] = slot
	return slot
}

// Function registers a C function symbol and returns its slot variable.
func (s *SelectorSet) Function(name string) string {
	if slot, ok := s.functions[name]; ok {
		return slot
	}
	slot := "fn" + s.unit + "_" + name
	s.functions[name] = slot
	return slot
}

func (s *SelectorSet) Selectors() []Slot { return slots(s.selectors) }
func (s *SelectorSet) Classes() []Slot   { return slots(s.classes) }
func (s *SelectorSet) Functions() []Slot { return slots(s.functions) }

func slots(m map[string]string) []Slot {
	out := make([]Slot, 0, len(m))
	for name, v := range m {
		out = append(out, Slot{Var: v, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// escapeSelector maps a selector to an identifier fragment. '_' becomes "_u"
// and ':' becomes "_c", so distinct selectors never collide.
func escapeSelector(sel string) string {
	var b strings.Builder
	for _, r := range sel {
		switch r {
		case '_':
			b.WriteString("_u")
		case ':':
			b.WriteString("_c")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
