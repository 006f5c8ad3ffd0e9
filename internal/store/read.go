package store

import (
	"context"
	"database/sql"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/queryir"
	"github.com/roach88/linked/internal/querysql"
	"github.com/roach88/linked/internal/sparql"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const tripleColumns = "subject, subject_kind, predicate, object, object_kind, datatype, lang"

// Select evaluates a basic graph pattern query.
// Results are ordered by the query's ORDER BY, then by every selected term.
func (s *Store) Select(ctx context.Context, q *queryir.Select) ([]queryir.Binding, error) {
	return s.selectWith(ctx, s.db, q)
}

// SelectString parses query text against the store's resolver and
// evaluates it.
func (s *Store) SelectString(ctx context.Context, text string) ([]queryir.Binding, error) {
	q, err := sparql.ParseQuery(text, s.resolver)
	if err != nil {
		return nil, err
	}
	return s.Select(ctx, q)
}

func (s *Store) selectWith(ctx context.Context, db queryer, q *queryir.Select) ([]queryir.Binding, error) {
	compiled, err := s.compiler.Compile(q)
	if err != nil {
		return nil, errors.Wrap(err, "compile query")
	}

	rows, err := db.QueryContext(ctx, compiled.SQL, compiled.Params...)
	if err != nil {
		return nil, errors.Wrap(err, "select")
	}
	defer rows.Close()

	width := len(compiled.Vars) * querysql.ColumnsPerVar
	var out []queryir.Binding
	for rows.Next() {
		cols := make([]string, width)
		ptrs := make([]any, width)
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan binding")
		}
		b := make(queryir.Binding, compiled.Projected)
		for i := 0; i < compiled.Projected; i++ {
			base := i * querysql.ColumnsPerVar
			b[compiled.Vars[i]] = querysql.ValueOf(cols[base], cols[base+1], cols[base+2], cols[base+3])
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate bindings")
	}
	return out, nil
}

// Node returns the triples whose subject is uri, ordered by predicate and
// object.
func (s *Store) Node(ctx context.Context, uri string) ([]quad.Quad, error) {
	return s.nodeWith(ctx, s.db, uri)
}

func (s *Store) nodeWith(ctx context.Context, db queryer, uri string) ([]quad.Quad, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+tripleColumns+" FROM triples WHERE subject = ?"+
			" ORDER BY predicate ASC COLLATE BINARY, object_kind ASC, object ASC COLLATE BINARY, datatype ASC, lang ASC",
		uri)
	if err != nil {
		return nil, errors.Wrapf(err, "read node %s", uri)
	}
	return scanQuads(rows)
}

// Triples returns every triple in insertion order.
func (s *Store) Triples(ctx context.Context) ([]quad.Quad, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+tripleColumns+" FROM triples ORDER BY seq ASC, id ASC")
	if err != nil {
		return nil, errors.Wrap(err, "read triples")
	}
	return scanQuads(rows)
}

// Count returns the number of triples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM triples").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count triples")
	}
	return n, nil
}

// Objects returns the objects of (subject, predicate), ordered like Node.
func (s *Store) Objects(ctx context.Context, subject, predicate string) ([]quad.Value, error) {
	quads, err := s.Node(ctx, subject)
	if err != nil {
		return nil, err
	}
	var out []quad.Value
	for _, q := range quads {
		if iri, ok := q.Predicate.(quad.IRI); ok && string(iri) == predicate {
			out = append(out, q.Object)
		}
	}
	return out, nil
}

func scanQuads(rows *sql.Rows) ([]quad.Quad, error) {
	defer rows.Close()
	var out []quad.Quad
	for rows.Next() {
		var subj, subjKind, pred, obj, objKind, dt, lang string
		if err := rows.Scan(&subj, &subjKind, &pred, &obj, &objKind, &dt, &lang); err != nil {
			return nil, errors.Wrap(err, "scan triple")
		}
		out = append(out, quad.Quad{
			Subject:   querysql.ValueOf(subj, subjKind, "", ""),
			Predicate: quad.IRI(pred),
			Object:    querysql.ValueOf(obj, objKind, dt, lang),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate triples")
	}
	return out, nil
}
