package snapshot

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"objcbind/internal/clang"
)

type document struct {
	Main    string        `yaml:"main"`
	Cursors []*cursorNode `yaml:"cursors"`
}

type cursorNode struct {
	ID           string           `yaml:"id"`
	Kind         clang.CursorKind `yaml:"kind"`
	Name         string           `yaml:"name"`
	File         string           `yaml:"file"`
	Line         int              `yaml:"line"`
	Column       int              `yaml:"column"`
	Type         *typeNode        `yaml:"type"`
	Result       *typeNode        `yaml:"result"`
	Args         []*cursorNode    `yaml:"args"`
	Underlying   *typeNode        `yaml:"underlying"`
	IntegerType  *typeNode        `yaml:"integerType"`
	Value        *enumValue       `yaml:"value"`
	Availability string           `yaml:"availability"`
	Deprecated   string           `yaml:"deprecatedMessage"`
	Unavailable  string           `yaml:"unavailableMessage"`
	Platforms    []platformNode   `yaml:"platforms"`
	Property     *propertyNode    `yaml:"property"`
	Variadic     bool             `yaml:"variadic"`
	Forward      bool             `yaml:"forward"`
	Children     []*cursorNode    `yaml:"children"`
}

type typeNode struct {
	Kind        clang.TypeKind    `yaml:"kind"`
	Spelling    string            `yaml:"spelling"`
	Name        string            `yaml:"name"`
	Decl        *declRef          `yaml:"decl"`
	Underlying  *typeNode         `yaml:"underlying"`
	Pointee     *typeNode         `yaml:"pointee"`
	Element     *typeNode         `yaml:"element"`
	Size        int64             `yaml:"size"`
	Modified    *typeNode         `yaml:"modified"`
	Nullability clang.Nullability `yaml:"nullability"`
	Named       *typeNode         `yaml:"named"`
	Result      *typeNode         `yaml:"result"`
	Args        []*typeNode       `yaml:"args"`
	Variadic    bool              `yaml:"variadic"`
	Const       bool              `yaml:"const"`
	Base        *typeNode         `yaml:"base"`
	TypeArgs    []*typeNode       `yaml:"typeArgs"`
	Protocols   []string          `yaml:"protocols"`
	Canonical   *typeNode         `yaml:"canonical"`
}

type platformNode struct {
	Platform    string `yaml:"platform"`
	Introduced  string `yaml:"introduced"`
	Deprecated  string `yaml:"deprecated"`
	Obsoleted   string `yaml:"obsoleted"`
	Unavailable bool   `yaml:"unavailable"`
	Message     string `yaml:"message"`
}

type propertyNode struct {
	ReadOnly bool   `yaml:"readonly"`
	Class    bool   `yaml:"class"`
	Getter   string `yaml:"getter"`
	Setter   string `yaml:"setter"`
}

// declRef is either the id of a cursor declared elsewhere in the snapshot or an
// inline cursor.
type declRef struct {
	ID     string
	Inline *cursorNode

	resolved *cursorNode
}

func (d *declRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&d.ID)
	case yaml.MappingNode:
		d.Inline = &cursorNode{}
		return node.Decode(d.Inline)
	default:
		return fmt.Errorf("line %d: decl must be an id or a cursor", node.Line)
	}
}

// enumValue keeps the raw 64 bits of a constant so both signed and unsigned
// readings are lossless.
type enumValue struct {
	bits uint64
}

func (v *enumValue) UnmarshalYAML(node *yaml.Node) error {
	var signed int64
	if err := node.Decode(&signed); err == nil {
		v.bits = uint64(signed)
		return nil
	}
	var unsigned uint64
	if err := node.Decode(&unsigned); err != nil {
		return fmt.Errorf("line %d: enum value %q is not a 64-bit integer", node.Line, node.Value)
	}
	v.bits = unsigned
	return nil
}
