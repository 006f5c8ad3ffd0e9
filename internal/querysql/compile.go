// Package querysql compiles queryir queries and update statements to
// parameterised SQL over the store's triples table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/queryir"
)

// Columns selected per variable: lexical form, kind, datatype, language.
const ColumnsPerVar = 4

// numericDatatypes are ordered by value rather than by text.
var numericDatatypes = []string{
	codec.XSDInteger, codec.XSDInt, codec.XSDLong,
	codec.XSDFloat, codec.XSDDouble, codec.XSDDecimal,
}

// CompiledQuery is the SQL form of a queryir.Select.
//
// The result rows carry ColumnsPerVar columns for each entry of Vars, in
// order. The first Projected entries of Vars are the query's projection;
// the rest are ORDER BY variables that are not projected.
type CompiledQuery struct {
	SQL       string
	Params    []any
	Vars      []queryir.Var
	Projected int
}

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	// Table is the triples table name.
	Table string
}

// NewSQLCompiler creates a new SQLCompiler for the "triples" table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "triples"}
}

// occurrence is where a variable appears: pattern alias and slot.
type occurrence struct {
	alias string
	slot  string // "subject", "predicate" or "object"
}

// Compile converts a Select to SQL.
//
// Each triple pattern becomes one alias of the triples table; constants
// become equality filters and repeated variables become join conditions.
// The inner SELECT DISTINCT gives set semantics; the outer query applies
// ORDER BY (numeric datatypes by value), a stable tiebreaker on every
// selected column, then LIMIT and OFFSET.
func (c *SQLCompiler) Compile(q *queryir.Select) (*CompiledQuery, error) {
	if q == nil {
		return nil, fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}

	var (
		from   []string
		where  []string
		params []any
		first  = make(map[queryir.Var]occurrence)
	)

	for i, p := range q.Where {
		alias := fmt.Sprintf("t%d", i)
		from = append(from, c.Table+" AS "+alias)

		slots := []struct {
			name string
			term queryir.Term
		}{
			{"subject", p.Subject},
			{"predicate", p.Predicate},
			{"object", p.Object},
		}
		for _, s := range slots {
			here := occurrence{alias: alias, slot: s.name}
			switch term := s.term.(type) {
			case queryir.Const:
				sql, ps, err := constFilter(here, term.Value)
				if err != nil {
					return nil, fmt.Errorf("pattern %d %s: %w", i, s.name, err)
				}
				where = append(where, sql...)
				params = append(params, ps...)
			case queryir.Var:
				prev, seen := first[term]
				if !seen {
					first[term] = here
					continue
				}
				where = append(where, joinFilter(prev, here)...)
			default:
				return nil, fmt.Errorf("pattern %d %s: unsupported term %T", i, s.name, s.term)
			}
		}
	}

	vars := q.Projection()
	projected := len(vars)
	for _, k := range q.Order {
		if !containsVar(vars, k.Var) {
			vars = append(vars, k.Var)
		}
	}

	var cols []string
	for i, v := range vars {
		cols = append(cols, varColumns(first[v], i)...)
	}

	inner := "SELECT DISTINCT " + strings.Join(cols, ", ") + " FROM " + strings.Join(from, ", ")
	if len(where) > 0 {
		inner += " WHERE " + strings.Join(where, " AND ")
	}

	var order []string
	for _, k := range q.Order {
		idx := indexOfVar(vars, k.Var)
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		order = append(order,
			fmt.Sprintf("%s %s", numericKey(idx), dir),
			fmt.Sprintf("v%d_lex %s COLLATE BINARY", idx, dir))
	}
	// MANDATORY: stable tiebreaker on every selected column.
	for i := range vars {
		order = append(order,
			fmt.Sprintf("v%d_kind ASC COLLATE BINARY", i),
			fmt.Sprintf("v%d_lex ASC COLLATE BINARY", i),
			fmt.Sprintf("v%d_dt ASC COLLATE BINARY", i),
			fmt.Sprintf("v%d_lang ASC COLLATE BINARY", i))
	}

	sql := "SELECT * FROM (" + inner + ")"
	if len(order) > 0 {
		sql += " ORDER BY " + strings.Join(order, ", ")
	}
	switch {
	case q.Limit > 0:
		sql += " LIMIT ? OFFSET ?"
		params = append(params, q.Limit, q.Offset)
	case q.Offset > 0:
		sql += " LIMIT -1 OFFSET ?"
		params = append(params, q.Offset)
	}

	return &CompiledQuery{SQL: sql, Params: params, Vars: vars, Projected: projected}, nil
}

// constFilter restricts one slot to a ground term.
func constFilter(at occurrence, v quad.Value) ([]string, []any, error) {
	col := at.alias + "." + at.slot
	if at.slot != "object" {
		text, err := NodeText(v)
		if err != nil {
			return nil, nil, err
		}
		return []string{col + " = ?"}, []any{text}, nil
	}
	obj, err := ObjectColumnsOf(v)
	if err != nil {
		return nil, nil, err
	}
	return []string{
			col + " = ?",
			at.alias + ".object_kind = ?",
			at.alias + ".datatype = ?",
			at.alias + ".lang = ?",
		},
		[]any{obj.Object, string(obj.Kind), obj.Datatype, obj.Lang},
		nil
}

// joinFilter equates a repeated variable with its first occurrence.
func joinFilter(prev, here occurrence) []string {
	a, b := prev.alias+"."+prev.slot, here.alias+"."+here.slot
	switch {
	case prev.slot == "object" && here.slot == "object":
		return []string{
			a + " = " + b,
			prev.alias + ".object_kind = " + here.alias + ".object_kind",
			prev.alias + ".datatype = " + here.alias + ".datatype",
			prev.alias + ".lang = " + here.alias + ".lang",
		}
	case prev.slot == "object":
		return []string{a + " = " + b, prev.alias + ".object_kind <> 'literal'"}
	case here.slot == "object":
		return []string{a + " = " + b, here.alias + ".object_kind <> 'literal'"}
	default:
		return []string{a + " = " + b}
	}
}

// varColumns selects the four columns of variable i from its first occurrence.
func varColumns(at occurrence, i int) []string {
	switch at.slot {
	case "object":
		return []string{
			fmt.Sprintf("%s.object AS v%d_lex", at.alias, i),
			fmt.Sprintf("%s.object_kind AS v%d_kind", at.alias, i),
			fmt.Sprintf("%s.datatype AS v%d_dt", at.alias, i),
			fmt.Sprintf("%s.lang AS v%d_lang", at.alias, i),
		}
	case "subject":
		return []string{
			fmt.Sprintf("%s.subject AS v%d_lex", at.alias, i),
			fmt.Sprintf("%s.subject_kind AS v%d_kind", at.alias, i),
			fmt.Sprintf("'' AS v%d_dt", i),
			fmt.Sprintf("'' AS v%d_lang", i),
		}
	default:
		return []string{
			fmt.Sprintf("%s.predicate AS v%d_lex", at.alias, i),
			fmt.Sprintf("'iri' AS v%d_kind", i),
			fmt.Sprintf("'' AS v%d_dt", i),
			fmt.Sprintf("'' AS v%d_lang", i),
		}
	}
}

// numericKey orders numeric literals by value; other terms sort as NULL.
func numericKey(i int) string {
	quoted := make([]string, len(numericDatatypes))
	for j, dt := range numericDatatypes {
		quoted[j] = "'" + dt + "'"
	}
	return fmt.Sprintf("CASE WHEN v%d_dt IN (%s) THEN CAST(v%d_lex AS REAL) END",
		i, strings.Join(quoted, ", "), i)
}

func containsVar(vars []queryir.Var, v queryir.Var) bool {
	return indexOfVar(vars, v) >= 0
}

func indexOfVar(vars []queryir.Var, v queryir.Var) int {
	for i, x := range vars {
		if x == v {
			return i
		}
	}
	return -1
}
