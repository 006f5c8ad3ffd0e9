package sparql

import (
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/queryir"
)

func testResolver() *namespace.Resolver {
	r := namespace.NewResolver()
	r.Register("http://example.org/", "ex")
	return r
}

func TestParseQuery_Basic(t *testing.T) {
	q, err := ParseQuery(`SELECT * { ?s ex:num_pages ?p } ORDER BY ?s`, testResolver())
	require.NoError(t, err)

	assert.Nil(t, q.Vars)
	require.Len(t, q.Where, 1)
	assert.Equal(t, queryir.Var("s"), q.Where[0].Subject)
	assert.Equal(t, queryir.IRI("http://example.org/num_pages"), q.Where[0].Predicate)
	assert.Equal(t, queryir.Var("p"), q.Where[0].Object)
	assert.Equal(t, []queryir.OrderKey{{Var: "s"}}, q.Order)
}

func TestParseQuery_Shorthand(t *testing.T) {
	q, err := ParseQuery(`
		PREFIX todo: <http://example.org/todo#>
		select ?id where {
			?id a todo:Todo ;
			    ex:tag "a", "b"@en ;
			    ex:count 3 ;
			    ex:ratio 1.50 ;
			    ex:done false ;
			    ex:when "2020-01-01T00:00:00Z"^^xsd:dateTime .
		}
		ORDER BY DESC(?id) LIMIT 10 OFFSET 5`, testResolver())
	require.NoError(t, err)

	assert.Equal(t, []queryir.Var{"id"}, q.Vars)
	require.Len(t, q.Where, 7)
	assert.Equal(t, queryir.IRI(namespace.RDF+"type"), q.Where[0].Predicate)
	assert.Equal(t, queryir.IRI("http://example.org/todo#Todo"), q.Where[0].Object)
	assert.Equal(t, queryir.Const{Value: quad.String("a")}, q.Where[1].Object)
	assert.Equal(t, queryir.Const{Value: quad.LangString{Value: "b", Lang: "en"}}, q.Where[2].Object)
	assert.Equal(t, queryir.Const{Value: quad.TypedString{Value: "3", Type: codec.XSDInteger}}, q.Where[3].Object)
	assert.Equal(t, queryir.Const{Value: quad.TypedString{Value: "1.5", Type: codec.XSDFloat}}, q.Where[4].Object)
	assert.Equal(t, queryir.Const{Value: quad.TypedString{Value: "false", Type: codec.XSDBoolean}}, q.Where[5].Object)
	assert.Equal(t, queryir.Const{Value: quad.TypedString{Value: "2020-01-01T00:00:00Z", Type: codec.XSDDateTime}}, q.Where[6].Object)
	assert.Equal(t, []queryir.OrderKey{{Var: "id", Desc: true}}, q.Order)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 5, q.Offset)
}

func TestParseQuery_RoundTripsThroughString(t *testing.T) {
	r := testResolver()
	q, err := ParseQuery(`SELECT ?s WHERE { ?s ex:p "x\"y" . ?s ex:q <http://example.org/o> } ORDER BY ?s LIMIT 2`, r)
	require.NoError(t, err)

	again, err := ParseQuery(q.String(), r)
	require.NoError(t, err)
	assert.Equal(t, q, again)
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		offset int
	}{
		{"unknown prefix", `SELECT * { ?s nope:p ?o }`, 14},
		{"missing brace", `SELECT * ?s ex:p ?o }`, 9},
		{"literal subject", `SELECT * { "x" ex:p ?o }`, 11},
		{"trailing garbage", `SELECT * { ?s ex:p ?o } garbage`, 24},
		{"unterminated string", `SELECT * { ?s ex:p "abc }`, 19},
		{"bad limit", `SELECT * { ?s ex:p ?o } LIMIT x`, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.text, testResolver())
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.offset, pe.Offset)
		})
	}
}

func TestParseQuery_UnboundOrderVariable(t *testing.T) {
	_, err := ParseQuery(`SELECT * { ?s ex:p ?o } ORDER BY ?missing`, testResolver())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "?missing")
}

func TestParseUpdate(t *testing.T) {
	u, err := ParseUpdate(`
		INSERT DATA { ex:book ex:title "book1" ; ex:num_pages 122 . } ;
		DELETE DATA { ex:book ex:tag _:b1 }`, testResolver())
	require.NoError(t, err)
	require.Len(t, u.Statements, 2)

	ins, ok := u.Statements[0].(*queryir.InsertData)
	require.True(t, ok)
	assert.Equal(t, []quad.Quad{
		{Subject: quad.IRI("http://example.org/book"), Predicate: quad.IRI("http://example.org/title"), Object: quad.String("book1")},
		{Subject: quad.IRI("http://example.org/book"), Predicate: quad.IRI("http://example.org/num_pages"), Object: quad.TypedString{Value: "122", Type: codec.XSDInteger}},
	}, ins.Quads)

	del, ok := u.Statements[1].(*queryir.DeleteData)
	require.True(t, ok)
	assert.Equal(t, quad.BNode("b1"), del.Quads[0].Object)
}

func TestParseUpdate_Errors(t *testing.T) {
	tests := map[string]string{
		"variables in data": `INSERT DATA { ?s ex:p "x" }`,
		"unknown operation": `LOAD <http://example.org/>`,
		"missing DATA":      `INSERT { ex:a ex:p "x" }`,
		"empty":             ``,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUpdate(text, testResolver())
			assert.Error(t, err)
		})
	}
}

func TestParseOrder(t *testing.T) {
	keys, err := ParseOrder("ORDER BY ?s DESC(?n)")
	require.NoError(t, err)
	assert.Equal(t, []queryir.OrderKey{{Var: "s"}, {Var: "n", Desc: true}}, keys)

	keys, err = ParseOrder("ASC(?title)")
	require.NoError(t, err)
	assert.Equal(t, []queryir.OrderKey{{Var: "title"}}, keys)

	_, err = ParseOrder("?s LIMIT 3")
	assert.Error(t, err)
}

func TestParseStandingQuery_WrapsPattern(t *testing.T) {
	q, err := ParseStandingQuery(`{ ?id ex:tag "a" }`, testResolver())
	require.NoError(t, err)
	assert.Nil(t, q.Vars)
	assert.Equal(t, []queryir.Var{"id"}, q.Projection())

	q, err = ParseStandingQuery(`  select ?id { ?id ex:tag "a" }`, testResolver())
	require.NoError(t, err)
	assert.Equal(t, []queryir.Var{"id"}, q.Vars)
}
