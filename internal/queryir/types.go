package queryir

import (
	"slices"

	"github.com/cayleygraph/quad"
)

// Query represents a read query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Term is one slot of a triple pattern: a variable or a constant.
//
// This is a sealed interface - only Var and Const implement it.
type Term interface {
	termNode() // Marker method - seals interface to this package
}

// Var is a query variable, named without the leading '?'.
type Var string

func (Var) termNode() {}

// Const is a ground term (IRI, blank node or literal).
type Const struct {
	Value quad.Value
}

func (Const) termNode() {}

// IRI is shorthand for a constant IRI term.
func IRI(uri string) Const {
	return Const{Value: quad.IRI(uri)}
}

// TriplePattern matches triples whose slots unify with the given terms.
// A variable occurring in several slots (or patterns) must bind to the
// same term everywhere.
type TriplePattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Vars returns the variables of the pattern in slot order.
func (p TriplePattern) Vars() []Var {
	var out []Var
	for _, t := range []Term{p.Subject, p.Predicate, p.Object} {
		if v, ok := t.(Var); ok {
			out = append(out, v)
		}
	}
	return out
}

// OrderKey is one ORDER BY key.
type OrderKey struct {
	Var  Var
	Desc bool
}

// Select is a basic graph pattern query.
//
// Semantics:
//
//	SELECT <Vars | *> WHERE { <Where> } ORDER BY <Order> LIMIT <Limit> OFFSET <Offset>
//
// The result is a list of Bindings, one per distinct solution. Without
// ORDER BY the order is unspecified but stable for an unchanged store.
// Limit 0 means no limit.
type Select struct {
	Vars   []Var // nil = SELECT *
	Where  []TriplePattern
	Order  []OrderKey
	Limit  int
	Offset int
}

func (*Select) queryNode() {}

// Projection returns the projected variables: Vars when explicit, otherwise
// every variable of Where in order of first appearance.
func (s *Select) Projection() []Var {
	if len(s.Vars) > 0 {
		return slices.Clone(s.Vars)
	}
	var out []Var
	seen := make(map[Var]bool)
	for _, p := range s.Where {
		for _, v := range p.Vars() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// Clone returns a deep copy of the slices of s.
func (s *Select) Clone() *Select {
	return &Select{
		Vars:   slices.Clone(s.Vars),
		Where:  slices.Clone(s.Where),
		Order:  slices.Clone(s.Order),
		Limit:  s.Limit,
		Offset: s.Offset,
	}
}

// Binding maps projected variables to the terms of one solution.
type Binding map[Var]quad.Value
