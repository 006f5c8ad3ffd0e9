package ir

import (
	"maps"
	"slices"
)

// Attributes maps property URIs to values.
// Use SortedKeys() for deterministic iteration.
type Attributes map[string]Value

// Clone returns a shallow copy. Values are immutable so this is a full copy
// for every variant except List, whose backing array is shared; callers
// never mutate lists in place.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// SortedKeys returns the attribute keys in lexical order.
func (a Attributes) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Equal reports whether both maps hold the same keys with Equal values.
func (a Attributes) Equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// Native converts every value with Native.
func (a Attributes) Native() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = Native(v)
	}
	return out
}
