package metadata

// Members is an insertion-ordered table keyed by selector or property name.
type Members[T any] struct {
	keys   []string
	values map[string]T
}

func NewMembers[T any]() *Members[T] {
	return &Members[T]{values: make(map[string]T)}
}

func (m *Members[T]) Len() int {
	return len(m.keys)
}

func (m *Members[T]) Get(key string) (T, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Add inserts v unless key is already present. The first definition wins.
func (m *Members[T]) Add(key string, v T) bool {
	if _, exists := m.values[key]; exists {
		return false
	}
	m.keys = append(m.keys, key)
	m.values[key] = v
	return true
}

func (m *Members[T]) Delete(key string) {
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Members[T]) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Each visits entries in insertion order.
func (m *Members[T]) Each(fn func(key string, v T)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Find returns the first entry matching pred.
func (m *Members[T]) Find(pred func(T) bool) (string, T, bool) {
	for _, k := range m.keys {
		if v := m.values[k]; pred(v) {
			return k, v, true
		}
	}
	var zero T
	return "", zero, false
}
