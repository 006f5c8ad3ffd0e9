package queryir

import "github.com/cayleygraph/quad"

// Statement is one update operation.
//
// This is a sealed interface - only types in this package implement it.
// The store executes each Statement in its own transaction and produces at
// most one round of change notifications per Statement.
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// Update is an ordered list of statements, executed one after another.
// A failing statement stops execution; earlier statements stay applied.
type Update struct {
	Statements []Statement
}

// NewUpdate builds an Update from statements.
func NewUpdate(stmts ...Statement) Update {
	return Update{Statements: stmts}
}

// Empty reports whether the update has nothing to execute.
func (u Update) Empty() bool {
	return len(u.Statements) == 0
}

// InsertData adds ground triples (set semantics: existing triples are kept
// once).
//
//	INSERT DATA { <Quads> }
type InsertData struct {
	Quads []quad.Quad
}

func (*InsertData) statementNode() {}

// DeleteData removes ground triples. Missing triples are ignored.
//
//	DELETE DATA { <Quads> }
type DeleteData struct {
	Quads []quad.Quad
}

func (*DeleteData) statementNode() {}

// DeleteProperties removes every triple of Subject whose predicate is one
// of Predicates.
//
//	DELETE WHERE { <Subject> ?p ?o . FILTER(?p IN (<Predicates>)) }
type DeleteProperties struct {
	Subject    quad.Value
	Predicates []quad.IRI
}

func (*DeleteProperties) statementNode() {}

// Modify is DeleteProperties followed by InsertData as one statement: no
// observer can see the state between the two halves.
type Modify struct {
	Subject    quad.Value
	Predicates []quad.IRI
	Insert     []quad.Quad
}

func (*Modify) statementNode() {}

// Unlink removes every triple in which Node is the subject or the object.
type Unlink struct {
	Node quad.Value
}

func (*Unlink) statementNode() {}

// Position selects which triple slot a Rename rewrites.
type Position string

const (
	PositionSubject Position = "subject"
	PositionObject  Position = "object"
)

// Rename rewrites Old to New in one triple position, keeping every other
// slot of the affected triples.
type Rename struct {
	Old      quad.Value
	New      quad.Value
	Position Position
}

func (*Rename) statementNode() {}
