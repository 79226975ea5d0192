package generation

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Identifiers generated bodies use themselves. Parameters with these names are renamed.
var bodyIdentifiers = map[string]bool{
	"objc":   true,
	"unsafe": true,
	"o":      true,
	"ret":    true,
	"self":   true,
	"obj":    true,
}

// Names promoted from objc.Object onto every wrapper.
var objectMethods = []string{"Object", "ID", "Clone"}

func exported(name string) string {
	first, size := utf8.DecodeRuneInString(name)
	if first == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(first)) + name[size:]
}

// selectorName turns "setValue:forKey:" into "SetValueForKey".
func selectorName(sel string) string {
	var b strings.Builder
	for _, part := range strings.Split(sel, ":") {
		b.WriteString(exported(part))
	}
	return b.String()
}

// paramName makes a C argument name usable as a Go parameter.
func paramName(name string, index int) string {
	switch {
	case name == "":
		return "arg" + strconv.Itoa(index)
	case token.IsKeyword(name) || bodyIdentifiers[name]:
		return name + "_"
	}
	return name
}

// Locals a generated body may derive from a parameter name.
var paramLocals = []string{"", "Out", "Ptr", "ID"}

// paramNames renames empty, reserved and duplicate parameter names. A name is
// only handed out when none of its derived locals belong to another parameter.
func paramNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names)*len(paramLocals))
	free := func(name string) bool {
		for _, suffix := range paramLocals {
			if used[name+suffix] {
				return false
			}
		}
		return true
	}
	for i, n := range names {
		base := paramName(n, i)
		name := base
		for suffix := 2; !free(name); suffix++ {
			name = base + strconv.Itoa(suffix)
		}
		for _, local := range paramLocals {
			used[name+local] = true
		}
		out[i] = name
	}
	return out
}

// scope hands out unique identifiers within one Go namespace.
type scope struct {
	taken map[string]bool
}

func newScope(reserved ...string) *scope {
	s := &scope{taken: make(map[string]bool)}
	for _, r := range reserved {
		s.taken[r] = true
	}
	return s
}

func (s *scope) reserve(name string) {
	s.taken[name] = true
}

// claim returns name, or name with trailing underscores when it is taken.
func (s *scope) claim(name string) string {
	for s.taken[name] {
		name += "_"
	}
	s.taken[name] = true
	return name
}
