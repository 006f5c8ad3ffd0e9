package queryir

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"
)

// ValidationError lists every problem found in a query or update.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// Validate checks that a Select is executable:
//  1. At least one triple pattern
//  2. Every slot is a Var or a non-nil Const
//  3. Projected and ORDER BY variables occur in the pattern
//  4. LIMIT and OFFSET are not negative
//
// Validate is a pure function with no side effects.
func Validate(s *Select) error {
	v := &validator{}
	if s == nil {
		v.addProblem("nil query")
		return v.err()
	}
	if len(s.Where) == 0 {
		v.addProblem("empty graph pattern")
	}

	bound := make(map[Var]bool)
	for i, p := range s.Where {
		v.validateTerm(fmt.Sprintf("pattern[%d].subject", i), p.Subject)
		v.validateTerm(fmt.Sprintf("pattern[%d].predicate", i), p.Predicate)
		v.validateTerm(fmt.Sprintf("pattern[%d].object", i), p.Object)
		for _, name := range p.Vars() {
			bound[name] = true
		}
	}
	for _, name := range s.Vars {
		if !bound[name] {
			v.addProblem("projected variable %s is not bound by the pattern", name)
		}
	}
	for _, k := range s.Order {
		if !bound[k.Var] {
			v.addProblem("ORDER BY variable %s is not bound by the pattern", k.Var)
		}
	}
	if s.Limit < 0 {
		v.addProblem("negative LIMIT %d", s.Limit)
	}
	if s.Offset < 0 {
		v.addProblem("negative OFFSET %d", s.Offset)
	}
	return v.err()
}

func (v *validator) validateTerm(where string, t Term) {
	switch term := t.(type) {
	case Var:
		if term == "" {
			v.addProblem("%s: empty variable name", where)
		}
	case Const:
		if term.Value == nil {
			v.addProblem("%s: nil constant", where)
		}
	case nil:
		v.addProblem("%s: missing term", where)
	default:
		v.addProblem("%s: unknown term type %T", where, t)
	}
}

// ValidateUpdate checks that every statement carries the terms it needs.
func ValidateUpdate(u Update) error {
	v := &validator{}
	for i, st := range u.Statements {
		where := fmt.Sprintf("statement[%d]", i)
		switch s := st.(type) {
		case *InsertData:
			v.validateQuads(where, s.Quads)
		case *DeleteData:
			v.validateQuads(where, s.Quads)
		case *DeleteProperties:
			if s.Subject == nil {
				v.addProblem("%s: missing subject", where)
			}
		case *Modify:
			if s.Subject == nil {
				v.addProblem("%s: missing subject", where)
			}
			v.validateQuads(where, s.Insert)
		case *Unlink:
			if s.Node == nil {
				v.addProblem("%s: missing node", where)
			}
		case *Rename:
			if s.Old == nil || s.New == nil {
				v.addProblem("%s: rename needs old and new terms", where)
			}
			if s.Position != PositionSubject && s.Position != PositionObject {
				v.addProblem("%s: unknown position %q", where, s.Position)
			}
		case nil:
			v.addProblem("%s: nil statement", where)
		default:
			v.addProblem("%s: unknown statement type %T", where, st)
		}
	}
	return v.err()
}

func (v *validator) validateQuads(where string, qs []quad.Quad) {
	for j, q := range qs {
		if q.Subject == nil || q.Predicate == nil || q.Object == nil {
			v.addProblem("%s: triple[%d] has an empty slot", where, j)
		}
	}
}
