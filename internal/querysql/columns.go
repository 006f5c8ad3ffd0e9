package querysql

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/roach88/linked/internal/codec"
)

// ObjectColumns is the stored form of a triple object.
//
// IRIs keep their text, blank nodes are stored as "_:id" so that they
// compare equal to the same node in subject position, literals store
// their lexical form with datatype and language.
type ObjectColumns struct {
	Object   string
	Kind     codec.TermKind
	Datatype string
	Lang     string
}

// NodeText is the stored text of a subject or predicate term.
func NodeText(v quad.Value) (string, error) {
	switch val := v.(type) {
	case quad.IRI:
		return string(val), nil
	case quad.BNode:
		return "_:" + string(val), nil
	default:
		return "", fmt.Errorf("%T cannot be a subject or predicate", v)
	}
}

// NodeKind is the kind recorded for a subject term.
func NodeKind(v quad.Value) codec.TermKind {
	if _, ok := v.(quad.BNode); ok {
		return codec.KindBNode
	}
	return codec.KindIRI
}

// ObjectColumnsOf flattens an object term for storage.
func ObjectColumnsOf(v quad.Value) (ObjectColumns, error) {
	t, err := codec.TermOf(v)
	if err != nil {
		return ObjectColumns{}, err
	}
	obj := t.Lexical
	if t.Kind == codec.KindBNode {
		obj = "_:" + obj
	}
	return ObjectColumns{Object: obj, Kind: t.Kind, Datatype: t.Datatype, Lang: t.Lang}, nil
}

// ValueOf rebuilds a term from its stored columns.
func ValueOf(lex, kind, datatype, lang string) quad.Value {
	t := codec.Term{Kind: codec.TermKind(kind), Lexical: lex, Datatype: datatype, Lang: lang}
	if t.Kind == codec.KindBNode {
		t.Lexical = strings.TrimPrefix(lex, "_:")
	}
	return t.Value()
}
