package generation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Unit is one output file: a framework, a nested sub-framework, or a loose
// system header bound in file mode.
type Unit struct {
	// Name prefixes every slot of the unit and names its file.
	Name string
	// Framework is the outermost framework the unit belongs to. It is empty in file mode.
	Framework string
	// BasePath selects the declarations the unit owns.
	BasePath string
	// Library is the image functions are linked from.
	Library string
	// SubUnits lists the names of nested units declared by this one.
	SubUnits []string
}

func (u Unit) FileMode() bool {
	return u.Framework == ""
}

// Owns reports whether a declaration from file belongs to the unit.
func (u Unit) Owns(file string) bool {
	if file == u.BasePath {
		return true
	}
	return strings.HasPrefix(file, strings.TrimSuffix(u.BasePath, string(filepath.Separator))+string(filepath.Separator))
}

// FrameworkChain lists the frameworks enclosing path, outermost first.
func FrameworkChain(path string) []string {
	var chain []string
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if name, ok := strings.CutSuffix(part, ".framework"); ok && name != "" {
			chain = append(chain, name)
		}
	}
	return chain
}

// UnitName derives the unit name of a framework chain, e.g. "CoreServices_LaunchServices".
func UnitName(chain []string) string {
	return strings.Join(chain, "_")
}

// Stage is the lifecycle state of one declaration inside a unit.
type Stage int

const (
	StageDiscovered Stage = iota
	StageDropped
	StageCatalogued
	StageResolved
	StageEmitted
)

func (s Stage) String() string {
	switch s {
	case StageDiscovered:
		return "discovered"
	case StageDropped:
		return "dropped"
	case StageCatalogued:
		return "catalogued"
	case StageResolved:
		return "resolved"
	case StageEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// TraceEntry records the terminal stage of a declaration or member.
type TraceEntry struct {
	Subject string
	Stage   Stage
	Reason  string
}

func (e TraceEntry) String() string {
	if e.Reason == "" {
		return e.Subject + ": " + e.Stage.String()
	}
	return fmt.Sprintf("%s: %s (%s)", e.Subject, e.Stage, e.Reason)
}
