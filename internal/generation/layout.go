package generation

import (
	"fmt"

	"objcbind/internal/metadata"
)

const pointerSize = 8

// layout computes C sizes and alignments for the 64-bit Darwin ABI. Unions
// are emitted as aligned byte storage, which needs both.
type layout struct {
	catalog *metadata.Catalog
	cache   map[string][2]int64
}

func newLayout(catalog *metadata.Catalog) *layout {
	return &layout{catalog: catalog, cache: make(map[string][2]int64)}
}

func (l *layout) sizeAlign(t metadata.SemanticType) (size int64, align int64, err error) {
	switch v := t.(type) {
	case metadata.Bool:
		return 1, 1, nil
	case metadata.Int:
		return int64(v.Width), int64(v.Width), nil
	case metadata.PlatformLong:
		return pointerSize, pointerSize, nil
	case metadata.Float:
		return int64(v.Width), int64(v.Width), nil
	case metadata.Pointer, metadata.SelectorHandle:
		return pointerSize, pointerSize, nil
	case metadata.FixedArray:
		size, align, err := l.sizeAlign(v.Inner)
		return size * v.Len, align, err
	case metadata.EnumRef:
		d, ok := l.catalog.Lookup(v.Name)
		if e, isEnum := d.(*metadata.EnumDecl); ok && isEnum {
			return l.sizeAlign(e.Backing)
		}
		return 4, 4, nil
	case metadata.TypedefRef:
		d, ok := l.catalog.Lookup(v.Name)
		if alias, isTypedef := d.(*metadata.TypedefDecl); ok && isTypedef {
			return l.sizeAlign(alias.Aliased)
		}
	case metadata.RecordRef:
		return l.record(v.Name)
	}
	return 0, 0, fmt.Errorf("no layout for %T", t)
}

func (l *layout) record(name string) (int64, int64, error) {
	if cached, ok := l.cache[name]; ok {
		return cached[0], cached[1], nil
	}
	d, ok := l.catalog.Lookup(name)
	r, isRecord := d.(*metadata.RecordDecl)
	if !ok || !isRecord || r.Opaque {
		return 0, 0, fmt.Errorf("record %s has no definition", name)
	}
	// Guards against self-referencing records by value, which C forbids anyway.
	l.cache[name] = [2]int64{0, 1}

	var size, align int64 = 0, 1
	for _, f := range r.Fields {
		fieldSize, fieldAlign, err := l.sizeAlign(f.Type)
		if err != nil {
			delete(l.cache, name)
			return 0, 0, fmt.Errorf("%s.%s: %w", name, f.Name, err)
		}
		align = max(align, fieldAlign)
		if r.Union {
			size = max(size, fieldSize)
			continue
		}
		size = alignUp(size, fieldAlign) + fieldSize
	}
	size = alignUp(size, align)
	l.cache[name] = [2]int64{size, align}
	return size, align, nil
}

func alignUp(n int64, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// alignmentWord is the Go type whose zero-length array forces an alignment.
func alignmentWord(align int64) string {
	switch align {
	case 8:
		return "uint64"
	case 4:
		return "uint32"
	case 2:
		return "uint16"
	}
	return "uint8"
}
