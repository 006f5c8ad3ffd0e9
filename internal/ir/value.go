package ir

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindRef
	KindList
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindTime:   "time",
	KindRef:    "ref",
	KindList:   "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a sealed interface representing an attribute value.
// Only Null, String, Int, Float, Bool, Time, Ref and List implement it.
type Value interface {
	irValue() // Sealed - only these types implement it

	// Kind reports the variant.
	Kind() Kind
}

// Null is the explicit absence of a value. It is stored in the graph as the
// rdf:null sentinel node, so it is distinct from an unset attribute.
type Null struct{}

func (Null) irValue()   {}
func (Null) Kind() Kind { return KindNull }

// String is a plain string literal.
type String string

func (String) irValue()   {}
func (String) Kind() Kind { return KindString }

// Int is an integral number (xsd:integer).
type Int int64

func (Int) irValue()   {}
func (Int) Kind() Kind { return KindInt }

// Float is a non-integral number (xsd:float).
type Float float64

func (Float) irValue()   {}
func (Float) Kind() Kind { return KindFloat }

// Bool is a boolean literal (xsd:boolean).
type Bool bool

func (Bool) irValue()   {}
func (Bool) Kind() Kind { return KindBool }

// Time is an instant (xsd:dateTime). Use NewTime to normalise.
type Time struct {
	t time.Time
}

func (Time) irValue()   {}
func (Time) Kind() Kind { return KindTime }

// NewTime returns a Time truncated to whole seconds in UTC, which is the
// precision the xsd:dateTime encoding carries.
func NewTime(t time.Time) Time {
	return Time{t: t.UTC().Truncate(time.Second)}
}

// Time returns the underlying instant.
func (t Time) Time() time.Time { return t.t }

// Ref is a reference to another graph node by URI.
type Ref string

func (Ref) irValue()   {}
func (Ref) Kind() Kind { return KindRef }

// URI returns the referenced URI.
func (r Ref) URI() string { return string(r) }

// List holds the objects of a multi-valued property.
// Elements are never Lists themselves.
type List []Value

func (List) irValue()   {}
func (List) Kind() Kind { return KindList }

// NewList builds a List, flattening nested lists one level so that the
// no-nesting invariant holds.
func NewList(vals ...Value) List {
	out := make(List, 0, len(vals))
	for _, v := range vals {
		if l, ok := v.(List); ok {
			out = append(out, l...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Values returns the elements of v: the list itself for a List, a
// single-element slice for a scalar, and nil for a nil Value.
func Values(v Value) []Value {
	switch val := v.(type) {
	case nil:
		return nil
	case List:
		return []Value(val)
	default:
		return []Value{v}
	}
}

// Collapse returns the scalar for a one-element slice and a List otherwise.
// An empty slice collapses to nil (no value).
func Collapse(vals []Value) Value {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	default:
		return NewList(vals...)
	}
}

// Key returns a canonical text form of a scalar value, suitable for sorting
// and set membership. Distinct values of distinct kinds never share a key.
func Key(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case Null:
		return "n:"
	case String:
		return "s:" + string(val)
	case Int:
		return "i:" + strconv.FormatInt(int64(val), 10)
	case Float:
		return "f:" + strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return "b:" + strconv.FormatBool(bool(val))
	case Time:
		return "t:" + val.t.Format(time.RFC3339)
	case Ref:
		return "r:" + string(val)
	case List:
		keys := make([]string, len(val))
		for i, elem := range val {
			keys[i] = Key(elem)
		}
		slices.Sort(keys)
		return fmt.Sprintf("l:%q", keys)
	default:
		return fmt.Sprintf("?:%v", v)
	}
}

// Equal reports whether a and b hold the same value. Lists compare as sets
// and a single-element List equals its scalar.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := Values(a), Values(b)
	if len(av) != len(bv) {
		return false
	}
	if len(av) == 1 {
		return Key(av[0]) == Key(bv[0])
	}
	return Key(NewList(av...)) == Key(NewList(bv...))
}

// Contains reports whether v holds elem (as scalar or list element).
func Contains(v Value, elem Value) bool {
	key := Key(elem)
	for _, item := range Values(v) {
		if Key(item) == key {
			return true
		}
	}
	return false
}

// Sorted returns a copy of the list ordered by Key. This is the
// deterministic per-snapshot order used for multi-valued properties.
func (l List) Sorted() List {
	out := slices.Clone(l)
	slices.SortStableFunc(out, func(a, b Value) int {
		ka, kb := Key(a), Key(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Validate checks the structural invariants of v: no nested lists and no
// non-finite floats.
func Validate(v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("nil value")
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("non-finite float %v", float64(val))
		}
	case List:
		for i, elem := range val {
			if _, nested := elem.(List); nested {
				return fmt.Errorf("list[%d]: nested lists are not allowed", i)
			}
			if err := Validate(elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Native converts a Value into plain Go values: nil, string, int64, float64,
// bool, time.Time, map[string]any{"@id": uri} for references, []any for lists.
func Native(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return val.t
	case Ref:
		return map[string]any{"@id": string(val)}
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	default:
		return nil
	}
}
