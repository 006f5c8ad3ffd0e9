// Package diff computes attribute deltas between an entity's in-memory
// state and a store snapshot, and applies them without writing back.
package diff

import (
	"slices"

	"github.com/roach88/linked/internal/ir"
)

// Delta is the change that turns one attribute map into another.
type Delta struct {
	// Set holds the keys whose value is new or different.
	Set ir.Attributes
	// Unset lists removed keys in lexical order.
	Unset []string
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Set) == 0 && len(d.Unset) == 0
}

// Keys returns every key the delta touches, in lexical order.
func (d Delta) Keys() []string {
	keys := append(d.Set.SortedKeys(), d.Unset...)
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Compute returns the delta from current to incoming. Values compare with
// ir.Equal, so list order never produces a change.
func Compute(current, incoming ir.Attributes) Delta {
	d := Delta{Set: ir.Attributes{}}
	for k, v := range incoming {
		if old, ok := current[k]; !ok || !ir.Equal(old, v) {
			d.Set[k] = v
		}
	}
	for k := range current {
		if _, ok := incoming[k]; !ok {
			d.Unset = append(d.Unset, k)
		}
	}
	slices.Sort(d.Unset)
	return d
}

// Target receives remote changes. ApplyRemote must update in-memory state
// only; it never writes to the store.
type Target interface {
	ApplyRemote(set ir.Attributes, unset []string)
}

// Apply hands a non-empty delta to t. Returns false when there was nothing
// to apply.
func Apply(t Target, d Delta) bool {
	if d.Empty() {
		return false
	}
	t.ApplyRemote(d.Set, d.Unset)
	return true
}
