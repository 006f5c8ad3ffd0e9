package querysql

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/roach88/linked/internal/queryir"
)

// Exec is one SQL statement with its parameters.
type Exec struct {
	SQL    string
	Params []any
}

// CompileStatement converts an update statement into the SQL statements
// that implement it. The store runs them in one transaction.
//
// seq stamps inserted rows with the logical clock; it may be nil in tests.
func (c *SQLCompiler) CompileStatement(st queryir.Statement, seq func() int64) ([]Exec, error) {
	if seq == nil {
		seq = func() int64 { return 0 }
	}
	switch s := st.(type) {
	case *queryir.InsertData:
		return c.compileInserts(s.Quads, seq)
	case *queryir.DeleteData:
		return c.compileDeletes(s.Quads)
	case *queryir.DeleteProperties:
		return c.compileDeleteProperties(s.Subject, s.Predicates)
	case *queryir.Modify:
		del, err := c.compileDeleteProperties(s.Subject, s.Predicates)
		if err != nil {
			return nil, err
		}
		ins, err := c.compileInserts(s.Insert, seq)
		if err != nil {
			return nil, err
		}
		return append(del, ins...), nil
	case *queryir.Unlink:
		node, err := NodeText(s.Node)
		if err != nil {
			return nil, fmt.Errorf("unlink: %w", err)
		}
		return []Exec{
			{SQL: "DELETE FROM " + c.Table + " WHERE subject = ?", Params: []any{node}},
			{SQL: "DELETE FROM " + c.Table + " WHERE object = ? AND object_kind <> 'literal'", Params: []any{node}},
		}, nil
	case *queryir.Rename:
		return c.compileRename(s)
	case nil:
		return nil, fmt.Errorf("cannot compile nil statement")
	default:
		return nil, fmt.Errorf("unsupported statement type: %T", st)
	}
}

func (c *SQLCompiler) compileInserts(qs []quad.Quad, seq func() int64) ([]Exec, error) {
	out := make([]Exec, 0, len(qs))
	for i, q := range qs {
		subj, pred, obj, err := tripleColumns(q)
		if err != nil {
			return nil, fmt.Errorf("insert triple %d: %w", i, err)
		}
		out = append(out, Exec{
			SQL: "INSERT OR IGNORE INTO " + c.Table +
				" (subject, subject_kind, predicate, object, object_kind, datatype, lang, seq)" +
				" VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			Params: []any{subj, string(NodeKind(q.Subject)), pred, obj.Object, string(obj.Kind), obj.Datatype, obj.Lang, seq()},
		})
	}
	return out, nil
}

func (c *SQLCompiler) compileDeletes(qs []quad.Quad) ([]Exec, error) {
	out := make([]Exec, 0, len(qs))
	for i, q := range qs {
		subj, pred, obj, err := tripleColumns(q)
		if err != nil {
			return nil, fmt.Errorf("delete triple %d: %w", i, err)
		}
		out = append(out, Exec{
			SQL: "DELETE FROM " + c.Table +
				" WHERE subject = ? AND predicate = ? AND object = ? AND object_kind = ? AND datatype = ? AND lang = ?",
			Params: []any{subj, pred, obj.Object, string(obj.Kind), obj.Datatype, obj.Lang},
		})
	}
	return out, nil
}

func (c *SQLCompiler) compileDeleteProperties(subject quad.Value, preds []quad.IRI) ([]Exec, error) {
	if len(preds) == 0 {
		return nil, nil
	}
	subj, err := NodeText(subject)
	if err != nil {
		return nil, fmt.Errorf("delete properties: %w", err)
	}
	params := []any{subj}
	marks := make([]string, len(preds))
	for i, p := range preds {
		marks[i] = "?"
		params = append(params, string(p))
	}
	return []Exec{{
		SQL:    "DELETE FROM " + c.Table + " WHERE subject = ? AND predicate IN (" + strings.Join(marks, ", ") + ")",
		Params: params,
	}}, nil
}

func (c *SQLCompiler) compileRename(r *queryir.Rename) ([]Exec, error) {
	oldText, err := NodeText(r.Old)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	newText, err := NodeText(r.New)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	kind := string(NodeKind(r.New))
	switch r.Position {
	case queryir.PositionSubject:
		return []Exec{{
			SQL:    "UPDATE OR REPLACE " + c.Table + " SET subject = ?, subject_kind = ? WHERE subject = ?",
			Params: []any{newText, kind, oldText},
		}}, nil
	case queryir.PositionObject:
		return []Exec{{
			SQL:    "UPDATE OR REPLACE " + c.Table + " SET object = ?, object_kind = ? WHERE object = ? AND object_kind <> 'literal'",
			Params: []any{newText, kind, oldText},
		}}, nil
	default:
		return nil, fmt.Errorf("rename: unknown position %q", r.Position)
	}
}

func tripleColumns(q quad.Quad) (string, string, ObjectColumns, error) {
	subj, err := NodeText(q.Subject)
	if err != nil {
		return "", "", ObjectColumns{}, fmt.Errorf("subject: %w", err)
	}
	if _, ok := q.Predicate.(quad.IRI); !ok {
		return "", "", ObjectColumns{}, fmt.Errorf("predicate must be an IRI, got %T", q.Predicate)
	}
	pred, _ := NodeText(q.Predicate)
	obj, err := ObjectColumnsOf(q.Object)
	if err != nil {
		return "", "", ObjectColumns{}, fmt.Errorf("object: %w", err)
	}
	return subj, pred, obj, nil
}
