// Package mutation translates entity-level writes into store updates.
//
// Every operation encodes its values before touching the store, so an
// unsupported value fails without any mutation. Store errors are returned
// wrapped; nothing is retried or rolled back.
package mutation

import (
	"context"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/queryir"
)

// Executor is the write side of the store.
type Executor interface {
	Execute(ctx context.Context, u queryir.Update) error
}

// ModifyMode selects how ModifyNode replaces properties.
type ModifyMode string

const (
	// Atomic replaces properties with a single statement: one store
	// transaction and one notification.
	Atomic ModifyMode = "atomic"
	// TwoPhase deletes, then inserts in a second update. Observers see the
	// intermediate state, and a failed insert leaves the properties deleted.
	TwoPhase ModifyMode = "two-phase"
)

// ParseModifyMode parses "atomic" or "two-phase". Empty means Atomic.
func ParseModifyMode(s string) (ModifyMode, error) {
	switch ModifyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Atomic:
		return Atomic, nil
	case TwoPhase, "two_phase", "twophase":
		return TwoPhase, nil
	default:
		return "", errors.Newf("unknown modify mode %q (want %q or %q)", s, Atomic, TwoPhase)
	}
}

// Translator builds and executes updates for node-level writes.
type Translator struct {
	exec  Executor
	codec *codec.Codec
	mode  ModifyMode
	log   *zap.SugaredLogger
}

// Option configures a Translator.
type Option func(*Translator)

// WithModifyMode sets the ModifyNode strategy.
func WithModifyMode(m ModifyMode) Option {
	return func(t *Translator) { t.mode = m }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *Translator) { t.log = logger.Component(log, "mutation") }
}

// New creates a Translator.
func New(exec Executor, c *codec.Codec, opts ...Option) *Translator {
	t := &Translator{exec: exec, codec: c, mode: Atomic, log: logger.Component(nil, "mutation")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mode returns the configured ModifyNode strategy.
func (t *Translator) Mode() ModifyMode { return t.mode }

// WriteNewNode inserts every attribute of a node that is not yet stored.
func (t *Translator) WriteNewNode(ctx context.Context, uri string, attrs ir.Attributes) error {
	quads, err := t.encode(uri, attrs)
	if err != nil {
		return err
	}
	if len(quads) == 0 {
		return nil
	}
	return t.execute(ctx, "write node", uri, &queryir.InsertData{Quads: quads})
}

// ModifyNode replaces the stored values of the keys of attrs.
func (t *Translator) ModifyNode(ctx context.Context, uri string, attrs ir.Attributes) error {
	quads, err := t.encode(uri, attrs)
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return nil
	}
	subject := t.subject(uri)
	preds := t.predicates(attrs.SortedKeys())

	if t.mode == TwoPhase {
		if err := t.execute(ctx, "modify node (delete)", uri,
			&queryir.DeleteProperties{Subject: subject, Predicates: preds}); err != nil {
			return err
		}
		return t.execute(ctx, "modify node (insert)", uri, &queryir.InsertData{Quads: quads})
	}
	return t.execute(ctx, "modify node", uri,
		&queryir.Modify{Subject: subject, Predicates: preds, Insert: quads})
}

// RemovePropertiesFromNode deletes every value of keys.
func (t *Translator) RemovePropertiesFromNode(ctx context.Context, uri string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return t.execute(ctx, "remove properties", uri,
		&queryir.DeleteProperties{Subject: t.subject(uri), Predicates: t.predicates(keys)})
}

// UnlinkNode deletes every triple with uri as subject or object.
func (t *Translator) UnlinkNode(ctx context.Context, uri string) error {
	return t.execute(ctx, "unlink node", uri, &queryir.Unlink{Node: t.subject(uri)})
}

// ChangeNodeURI rewrites oldURI to newURI in subject and object position.
// Other triples are untouched.
func (t *Translator) ChangeNodeURI(ctx context.Context, oldURI, newURI string) error {
	from, to := t.subject(oldURI), t.subject(newURI)
	return t.execute(ctx, "change node uri", oldURI,
		&queryir.Rename{Old: from, New: to, Position: queryir.PositionSubject},
		&queryir.Rename{Old: from, New: to, Position: queryir.PositionObject},
	)
}

// AddValues inserts the values of v under key, leaving other values of the
// key in place.
func (t *Translator) AddValues(ctx context.Context, uri, key string, v ir.Value) error {
	quads, err := t.encode(uri, ir.Attributes{key: v})
	if err != nil {
		return err
	}
	return t.execute(ctx, "add values", uri, &queryir.InsertData{Quads: quads})
}

// RemoveValues deletes the values of v under key.
func (t *Translator) RemoveValues(ctx context.Context, uri, key string, v ir.Value) error {
	quads, err := t.encode(uri, ir.Attributes{key: v})
	if err != nil {
		return err
	}
	return t.execute(ctx, "remove values", uri, &queryir.DeleteData{Quads: quads})
}

// Execute runs a prepared update, such as a generator's membership edit.
func (t *Translator) Execute(ctx context.Context, u queryir.Update) error {
	if len(u.Statements) == 0 {
		return nil
	}
	if err := t.exec.Execute(ctx, u); err != nil {
		return errors.Wrap(err, "execute update")
	}
	return nil
}

func (t *Translator) execute(ctx context.Context, op, uri string, sts ...queryir.Statement) error {
	t.log.Debugw(op, "uri", uri, "statements", len(sts))
	if err := t.exec.Execute(ctx, queryir.NewUpdate(sts...)); err != nil {
		return errors.Wrapf(err, "%s %s", op, uri)
	}
	return nil
}

// encode converts attrs to triples about uri, sorted by key.
func (t *Translator) encode(uri string, attrs ir.Attributes) ([]quad.Quad, error) {
	subject := t.subject(uri)
	var out []quad.Quad
	for _, key := range attrs.SortedKeys() {
		terms, err := t.codec.ToTerms(attrs[key])
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", key)
		}
		pred := quad.IRI(t.codec.Resolver().SafeResolve(key))
		for _, term := range terms {
			out = append(out, quad.Quad{Subject: subject, Predicate: pred, Object: term})
		}
	}
	return out, nil
}

func (t *Translator) subject(uri string) quad.Value {
	return codec.SubjectTerm(t.codec.Resolver().SafeResolve(uri))
}

func (t *Translator) predicates(keys []string) []quad.IRI {
	out := make([]quad.IRI, len(keys))
	for i, k := range keys {
		out[i] = quad.IRI(t.codec.Resolver().SafeResolve(k))
	}
	return out
}
