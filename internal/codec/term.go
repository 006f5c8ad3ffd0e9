package codec

import (
	"fmt"

	"github.com/cayleygraph/quad"
)

// TermKind classifies how a triple term is stored.
type TermKind string

const (
	KindIRI     TermKind = "iri"
	KindBNode   TermKind = "bnode"
	KindLiteral TermKind = "literal"
)

// Term is the flattened, column-friendly form of a quad.Value.
// Plain literals have empty Datatype and Lang.
type Term struct {
	Kind     TermKind
	Lexical  string
	Datatype string
	Lang     string
}

// TermOf flattens a quad.Value. Values outside IRI, blank node and the
// string literal family are rejected.
func TermOf(v quad.Value) (Term, error) {
	switch val := v.(type) {
	case quad.IRI:
		return Term{Kind: KindIRI, Lexical: string(val)}, nil
	case quad.BNode:
		return Term{Kind: KindBNode, Lexical: string(val)}, nil
	case quad.String:
		return Term{Kind: KindLiteral, Lexical: string(val)}, nil
	case quad.TypedString:
		return Term{Kind: KindLiteral, Lexical: string(val.Value), Datatype: string(val.Type)}, nil
	case quad.LangString:
		return Term{Kind: KindLiteral, Lexical: string(val.Value), Lang: val.Lang}, nil
	case nil:
		return Term{}, fmt.Errorf("nil term")
	default:
		return Term{}, fmt.Errorf("unsupported term type %T", v)
	}
}

// Value rebuilds the quad.Value.
func (t Term) Value() quad.Value {
	switch t.Kind {
	case KindIRI:
		return quad.IRI(t.Lexical)
	case KindBNode:
		return quad.BNode(t.Lexical)
	}
	switch {
	case t.Datatype != "":
		return quad.TypedString{Value: quad.String(t.Lexical), Type: quad.IRI(t.Datatype)}
	case t.Lang != "":
		return quad.LangString{Value: quad.String(t.Lexical), Lang: t.Lang}
	default:
		return quad.String(t.Lexical)
	}
}

// Key is a canonical text form of the term, used for ordering list values
// and comparing result sets.
func (t Term) Key() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Lexical + ">"
	case KindBNode:
		return "_:" + t.Lexical
	}
	switch {
	case t.Datatype != "":
		return fmt.Sprintf("%q^^<%s>", t.Lexical, t.Datatype)
	case t.Lang != "":
		return fmt.Sprintf("%q@%s", t.Lexical, t.Lang)
	default:
		return fmt.Sprintf("%q", t.Lexical)
	}
}

// IRIOf returns the raw IRI text of v, or "" when v is not an IRI.
func IRIOf(v quad.Value) string {
	if iri, ok := v.(quad.IRI); ok {
		return string(iri)
	}
	return ""
}
