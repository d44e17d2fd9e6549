package lock

// Interner hands out stable integer handles for structurally equal values.
// A handle is an index into the interner's own table; it stays valid for
// the life of the interner since entries are never removed.
type Interner[T comparable, ID ~int] struct {
	ids    map[T]ID
	values []T
}

// NewInterner creates an empty interner.
func NewInterner[T comparable, ID ~int]() *Interner[T, ID] {
	return &Interner[T, ID]{
		ids: make(map[T]ID),
	}
}

// Intern returns the handle of v, storing v first if an equal value has
// not been seen yet.
func (in *Interner[T, ID]) Intern(v T) ID {
	if id, ok := in.ids[v]; ok {
		return id
	}
	id := ID(len(in.values))
	in.values = append(in.values, v)
	in.ids[v] = id
	return id
}

// Lookup returns the value behind a handle. It panics on a handle this
// interner did not issue.
func (in *Interner[T, ID]) Lookup(id ID) T {
	return in.values[id]
}

// Len returns the number of distinct values interned so far.
func (in *Interner[T, ID]) Len() int {
	return len(in.values)
}
