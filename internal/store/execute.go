package store

import (
	"context"
	"database/sql"
	"slices"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/queryir"
	"github.com/roach88/linked/internal/querysql"
	"github.com/roach88/linked/internal/sparql"
)

// Execute applies the statements of u in order, each in its own SQL
// transaction. After each statement the observers whose state changed are
// queued for notification; the queue is drained before Execute returns
// unless Execute was called from inside a callback.
//
// A failing statement stops execution. Statements already applied stay
// applied and their notifications are still delivered.
func (s *Store) Execute(ctx context.Context, u queryir.Update) error {
	if err := queryir.ValidateUpdate(u); err != nil {
		return err
	}

	var execErr error
	for i, st := range u.Statements {
		if err := s.executeStatement(ctx, st); err != nil {
			execErr = errors.Wrapf(err, "statement %d (%s)", i, statementKind(st))
			break
		}
	}

	s.drain()
	return execErr
}

// ExecuteString parses INSERT DATA / DELETE DATA text against the store's
// resolver and executes it.
func (s *Store) ExecuteString(ctx context.Context, text string) error {
	u, err := sparql.ParseUpdate(text, s.resolver)
	if err != nil {
		return err
	}
	return s.Execute(ctx, u)
}

func (s *Store) executeStatement(ctx context.Context, st queryir.Statement) error {
	execs, err := s.compiler.CompileStatement(st, s.clock.Next)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() // No-op if committed

	subjects, err := s.affectedSubjects(ctx, tx, st)
	if err != nil {
		return err
	}

	var changed int64
	for _, ex := range execs {
		res, err := tx.ExecContext(ctx, ex.SQL, ex.Params...)
		if err != nil {
			return errors.Wrap(err, "exec")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		changed += n
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}

	kind := statementKind(st)
	s.metrics.Statements.WithLabelValues(kind).Inc()
	if n, err := s.Count(ctx); err == nil {
		s.metrics.Triples.Set(float64(n))
	}
	s.log.Debugw("statement executed", "kind", kind, "rows", changed, "subjects", len(subjects))

	if changed == 0 {
		return nil
	}
	s.detectChanges(ctx, subjects)
	return nil
}

// affectedSubjects lists the subjects whose triple sets st may change.
// It runs inside the statement's transaction, before the change.
func (s *Store) affectedSubjects(ctx context.Context, tx *sql.Tx, st queryir.Statement) ([]string, error) {
	set := make(map[string]bool)
	addNode := func(v quad.Value) {
		if text, err := querysql.NodeText(v); err == nil {
			set[text] = true
		}
	}
	referrers := func(v quad.Value) error {
		text, err := querysql.NodeText(v)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			"SELECT DISTINCT subject FROM triples WHERE object = ? AND object_kind <> 'literal'", text)
		if err != nil {
			return errors.Wrap(err, "find referrers")
		}
		defer rows.Close()
		for rows.Next() {
			var subj string
			if err := rows.Scan(&subj); err != nil {
				return errors.Wrap(err, "scan referrer")
			}
			set[subj] = true
		}
		return rows.Err()
	}

	switch x := st.(type) {
	case *queryir.InsertData:
		for _, q := range x.Quads {
			addNode(q.Subject)
		}
	case *queryir.DeleteData:
		for _, q := range x.Quads {
			addNode(q.Subject)
		}
	case *queryir.DeleteProperties:
		addNode(x.Subject)
	case *queryir.Modify:
		addNode(x.Subject)
		for _, q := range x.Insert {
			addNode(q.Subject)
		}
	case *queryir.Unlink:
		addNode(x.Node)
		if err := referrers(x.Node); err != nil {
			return nil, err
		}
	case *queryir.Rename:
		if x.Position == queryir.PositionSubject {
			addNode(x.Old)
			addNode(x.New)
		} else if err := referrers(x.Old); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(set))
	for subj := range set {
		out = append(out, subj)
	}
	slices.Sort(out)
	return out, nil
}

func statementKind(st queryir.Statement) string {
	switch st.(type) {
	case *queryir.InsertData:
		return "insert_data"
	case *queryir.DeleteData:
		return "delete_data"
	case *queryir.DeleteProperties:
		return "delete_properties"
	case *queryir.Modify:
		return "modify"
	case *queryir.Unlink:
		return "unlink"
	case *queryir.Rename:
		return "rename"
	default:
		return "unknown"
	}
}
