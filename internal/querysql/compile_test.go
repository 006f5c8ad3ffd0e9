package querysql

import (
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/queryir"
)

const ex = "http://example.org/"

func TestCompile_GoldenSQL(t *testing.T) {
	g := goldie.New(t)
	compiler := NewSQLCompiler()

	t.Run("book_pages_by_subject", func(t *testing.T) {
		q := &queryir.Select{
			Where: []queryir.TriplePattern{{Subject: queryir.Var("s"), Predicate: queryir.IRI(ex + "num_pages"), Object: queryir.Var("p")}},
			Order: []queryir.OrderKey{{Var: "s"}},
		}
		compiled, err := compiler.Compile(q)
		require.NoError(t, err)
		g.Assert(t, "book_pages_by_subject", []byte(compiled.SQL))
		assert.Equal(t, []any{ex + "num_pages"}, compiled.Params)
		assert.Equal(t, []queryir.Var{"s", "p"}, compiled.Vars)
		assert.Equal(t, 2, compiled.Projected)
	})

	t.Run("titles_by_pages_desc", func(t *testing.T) {
		q := &queryir.Select{
			Vars: []queryir.Var{"title"},
			Where: []queryir.TriplePattern{
				{Subject: queryir.Var("b"), Predicate: queryir.IRI(ex + "num_pages"), Object: queryir.Var("n")},
				{Subject: queryir.Var("b"), Predicate: queryir.IRI(ex + "title"), Object: queryir.Var("title")},
			},
			Order: []queryir.OrderKey{{Var: "n", Desc: true}},
			Limit: 2,
		}
		compiled, err := compiler.Compile(q)
		require.NoError(t, err)
		g.Assert(t, "titles_by_pages_desc", []byte(compiled.SQL))
		assert.Equal(t, []any{ex + "num_pages", ex + "title", 2, 0}, compiled.Params)
		assert.Equal(t, []queryir.Var{"title", "n"}, compiled.Vars)
		assert.Equal(t, 1, compiled.Projected)
	})
}

func TestCompile_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler()
	q := &queryir.Select{
		Where: []queryir.TriplePattern{{Subject: queryir.Var("s"), Predicate: queryir.Var("p"), Object: queryir.Var("o")}},
	}

	compiled, err := compiler.Compile(q)
	require.NoError(t, err)

	// CRITICAL: Every query MUST have ORDER BY
	assert.Contains(t, compiled.SQL, "ORDER BY")
	assert.Contains(t, compiled.SQL, "COLLATE BINARY")
	assert.NotContains(t, compiled.SQL, "LIMIT")
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler()
	dangerousValue := "'; DROP TABLE triples; --"

	q := &queryir.Select{
		Where: []queryir.TriplePattern{{
			Subject:   queryir.Var("s"),
			Predicate: queryir.IRI(ex + "title"),
			Object:    queryir.Const{Value: quad.String(dangerousValue)},
		}},
	}

	compiled, err := compiler.Compile(q)
	require.NoError(t, err)

	assert.NotContains(t, compiled.SQL, dangerousValue,
		"Value MUST NOT be interpolated into SQL (SQL injection risk)")
	assert.Contains(t, compiled.Params, dangerousValue)
}

func TestCompile_ConstObjectMatchesAllColumns(t *testing.T) {
	compiler := NewSQLCompiler()
	q := &queryir.Select{
		Where: []queryir.TriplePattern{{
			Subject:   queryir.Var("s"),
			Predicate: queryir.IRI(ex + "num_pages"),
			Object:    queryir.Const{Value: quad.TypedString{Value: "122", Type: codec.XSDInteger}},
		}},
	}

	compiled, err := compiler.Compile(q)
	require.NoError(t, err)

	assert.Contains(t, compiled.SQL, "t0.object = ? AND t0.object_kind = ? AND t0.datatype = ? AND t0.lang = ?")
	assert.Equal(t, []any{ex + "num_pages", "122", "literal", codec.XSDInteger, ""}, compiled.Params)
}

func TestCompile_SubjectObjectJoinExcludesLiterals(t *testing.T) {
	compiler := NewSQLCompiler()
	q := &queryir.Select{
		Where: []queryir.TriplePattern{
			{Subject: queryir.Var("a"), Predicate: queryir.IRI(ex + "knows"), Object: queryir.Var("b")},
			{Subject: queryir.Var("b"), Predicate: queryir.IRI(ex + "name"), Object: queryir.Var("n")},
		},
	}

	compiled, err := compiler.Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "t0.object = t1.subject AND t0.object_kind <> 'literal'")
}

func TestCompile_OffsetWithoutLimit(t *testing.T) {
	compiler := NewSQLCompiler()
	q := &queryir.Select{
		Where:  []queryir.TriplePattern{{Subject: queryir.Var("s"), Predicate: queryir.Var("p"), Object: queryir.Var("o")}},
		Offset: 3,
	}

	compiled, err := compiler.Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LIMIT -1 OFFSET ?")
	assert.Equal(t, []any{3}, compiled.Params)
}

func TestCompile_Invalid(t *testing.T) {
	compiler := NewSQLCompiler()

	_, err := compiler.Compile(nil)
	assert.Error(t, err)

	_, err = compiler.Compile(&queryir.Select{})
	assert.Error(t, err)
}
