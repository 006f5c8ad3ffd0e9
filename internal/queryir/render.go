package queryir

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"
)

// String renders the variable as ?name.
func (v Var) String() string { return "?" + string(v) }

// String renders the constant in N-Triples form.
func (c Const) String() string { return termString(c.Value) }

func termString(v quad.Value) string {
	if v == nil {
		return "[]"
	}
	return v.String()
}

func patternTermString(t Term) string {
	switch term := t.(type) {
	case Var:
		return term.String()
	case Const:
		return term.String()
	default:
		return "[]"
	}
}

// String renders the pattern as "s p o".
func (p TriplePattern) String() string {
	return patternTermString(p.Subject) + " " + patternTermString(p.Predicate) + " " + patternTermString(p.Object)
}

// String renders the query in SPARQL syntax.
func (s *Select) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(s.Vars) == 0 {
		b.WriteString("*")
	} else {
		for i, v := range s.Vars {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(v.String())
		}
	}
	b.WriteString(" WHERE { ")
	for _, p := range s.Where {
		b.WriteString(p.String())
		b.WriteString(" . ")
	}
	b.WriteString("}")
	if len(s.Order) > 0 {
		b.WriteString(" ORDER BY")
		for _, k := range s.Order {
			if k.Desc {
				fmt.Fprintf(&b, " DESC(%s)", k.Var)
			} else {
				fmt.Fprintf(&b, " %s", k.Var)
			}
		}
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	if s.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", s.Offset)
	}
	return b.String()
}

// String renders the update in SPARQL Update syntax, one statement per
// line, joined with " ;".
func (u Update) String() string {
	parts := make([]string, 0, len(u.Statements))
	for _, st := range u.Statements {
		parts = append(parts, StatementString(st))
	}
	return strings.Join(parts, " ;\n")
}

// StatementString renders a single statement.
func StatementString(st Statement) string {
	switch s := st.(type) {
	case *InsertData:
		return "INSERT DATA { " + quadsString(s.Quads) + "}"
	case *DeleteData:
		return "DELETE DATA { " + quadsString(s.Quads) + "}"
	case *DeleteProperties:
		return "DELETE WHERE { " + termString(s.Subject) + " ?p ?o . FILTER(?p IN (" + irisString(s.Predicates) + ")) }"
	case *Modify:
		return "DELETE { " + termString(s.Subject) + " ?p ?o } INSERT { " + quadsString(s.Insert) +
			"} WHERE { " + termString(s.Subject) + " ?p ?o . FILTER(?p IN (" + irisString(s.Predicates) + ")) }"
	case *Unlink:
		n := termString(s.Node)
		return "DELETE WHERE { " + n + " ?p ?o } ; DELETE WHERE { ?s ?p " + n + " }"
	case *Rename:
		o, n := termString(s.Old), termString(s.New)
		if s.Position == PositionObject {
			return fmt.Sprintf("DELETE { ?s ?p %s } INSERT { ?s ?p %s } WHERE { ?s ?p %s }", o, n, o)
		}
		return fmt.Sprintf("DELETE { %s ?p ?o } INSERT { %s ?p ?o } WHERE { %s ?p ?o }", o, n, o)
	default:
		return fmt.Sprintf("# unknown statement %T", st)
	}
}

func quadsString(qs []quad.Quad) string {
	var b strings.Builder
	for _, q := range qs {
		b.WriteString(termString(q.Subject))
		b.WriteByte(' ')
		b.WriteString(termString(q.Predicate))
		b.WriteByte(' ')
		b.WriteString(termString(q.Object))
		b.WriteString(" . ")
	}
	return b.String()
}

func irisString(iris []quad.IRI) string {
	parts := make([]string, len(iris))
	for i, iri := range iris {
		parts[i] = iri.String()
	}
	return strings.Join(parts, ", ")
}
