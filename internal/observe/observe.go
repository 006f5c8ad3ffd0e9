// Package observe keeps id-keyed subscriptions against a triple store and
// converts store notifications into attribute maps and result tuples.
//
// Each listener id owns at most one live subscription. Starting an id that
// is already registered stops the previous subscription in the same call.
package observe

import (
	"context"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/queryir"
	"github.com/roach88/linked/internal/sparql"
	"github.com/roach88/linked/internal/store"
)

// Backend is the subscription side of the store.
type Backend interface {
	ObserveNode(ctx context.Context, uri string, cb store.NodeCallback) (store.Handle, error)
	StopObservingNode(h store.Handle)
	ObserveQuery(ctx context.Context, q *queryir.Select, cb store.QueryCallback) (store.Handle, error)
	StopObservingQuery(h store.Handle)
}

// Tuple is one query solution with decoded values, keyed by variable name.
type Tuple map[string]ir.Value

// QueryOptions are applied on top of the query's own modifiers.
// Order is ORDER BY text such as "?s" or "DESC(?n) ?s". Zero Limit and
// Offset leave the query's values in place.
type QueryOptions struct {
	Order  string
	Limit  int
	Offset int
}

type registration struct {
	target string
	handle store.Handle
	gen    uint64
}

// Observer manages node and query subscriptions by listener id.
type Observer struct {
	backend Backend
	codec   *codec.Codec
	log     *zap.SugaredLogger

	nodes   map[string]registration
	queries map[string]registration
	gen     uint64
}

// New creates an Observer. A nil log means no logging.
func New(backend Backend, c *codec.Codec, log *zap.SugaredLogger) *Observer {
	return &Observer{
		backend: backend,
		codec:   c,
		log:     logger.Component(log, "observe"),
		nodes:   make(map[string]registration),
		queries: make(map[string]registration),
	}
}

// StartObservingNode subscribes id to the node uri (CURIEs allowed). cb
// receives the node's attributes now and after every change to them.
func (o *Observer) StartObservingNode(ctx context.Context, id, uri string, cb func(ir.Attributes)) error {
	uri = o.codec.Resolver().SafeResolve(uri)
	o.StopObservingNode(id)

	o.gen++
	gen := o.gen
	o.nodes[id] = registration{target: uri, gen: gen}

	h, err := o.backend.ObserveNode(ctx, uri, func(quads []quad.Quad) {
		attrs, err := o.codec.NodeToAttributes(uri, quads)
		if err != nil {
			o.log.Warnw("dropping node notification", "id", id, "uri", uri, "error", err)
			return
		}
		cb(attrs)
	})
	if err != nil {
		if reg, ok := o.nodes[id]; ok && reg.gen == gen {
			delete(o.nodes, id)
		}
		return errors.Wrapf(err, "observe node %s", uri)
	}

	// The initial callback may have re-registered id; the newer
	// subscription wins.
	reg, ok := o.nodes[id]
	if !ok || reg.gen != gen {
		o.backend.StopObservingNode(h)
		return nil
	}
	reg.handle = h
	o.nodes[id] = reg
	o.log.Debugw("observing node", "id", id, "uri", uri, "handle", h)
	return nil
}

// StopObservingNode cancels the node subscription of id, if any.
func (o *Observer) StopObservingNode(id string) {
	reg, ok := o.nodes[id]
	if !ok {
		return
	}
	delete(o.nodes, id)
	if reg.handle != 0 {
		o.backend.StopObservingNode(reg.handle)
	}
	o.log.Debugw("stopped observing node", "id", id, "uri", reg.target)
}

// ObservedNode returns the URI that id observes.
func (o *Observer) ObservedNode(id string) (string, bool) {
	reg, ok := o.nodes[id]
	return reg.target, ok
}

// StartObservingQuery subscribes id to a standing query. query is either
// a *queryir.Select or query text; text that does not start with SELECT is
// taken as a group graph pattern and wrapped as "SELECT * <pattern>".
func (o *Observer) StartObservingQuery(ctx context.Context, id string, query any, opts QueryOptions, cb func([]Tuple)) error {
	q, err := o.BuildQuery(query, opts)
	if err != nil {
		return err
	}
	o.StopObservingQuery(id)

	o.gen++
	gen := o.gen
	text := q.String()
	o.queries[id] = registration{target: text, gen: gen}

	h, err := o.backend.ObserveQuery(ctx, q, func(bindings []queryir.Binding) {
		tuples, err := o.tuples(bindings)
		if err != nil {
			o.log.Warnw("dropping query notification", "id", id, "error", err)
			return
		}
		cb(tuples)
	})
	if err != nil {
		if reg, ok := o.queries[id]; ok && reg.gen == gen {
			delete(o.queries, id)
		}
		return errors.Wrapf(err, "observe query %s", text)
	}

	reg, ok := o.queries[id]
	if !ok || reg.gen != gen {
		o.backend.StopObservingQuery(h)
		return nil
	}
	reg.handle = h
	o.queries[id] = reg
	o.log.Debugw("observing query", "id", id, "query", text, "handle", h)
	return nil
}

// StopObservingQuery cancels the query subscription of id, if any.
func (o *Observer) StopObservingQuery(id string) {
	reg, ok := o.queries[id]
	if !ok {
		return
	}
	delete(o.queries, id)
	if reg.handle != 0 {
		o.backend.StopObservingQuery(reg.handle)
	}
	o.log.Debugw("stopped observing query", "id", id)
}

// StopAll cancels every subscription.
func (o *Observer) StopAll() {
	for id := range o.nodes {
		o.StopObservingNode(id)
	}
	for id := range o.queries {
		o.StopObservingQuery(id)
	}
}

// Len returns the number of registered node and query listeners.
func (o *Observer) Len() (nodes, queries int) {
	return len(o.nodes), len(o.queries)
}

// BuildQuery turns query text or a *queryir.Select into the standing query
// with opts applied.
func (o *Observer) BuildQuery(query any, opts QueryOptions) (*queryir.Select, error) {
	var q *queryir.Select
	switch v := query.(type) {
	case *queryir.Select:
		if v == nil {
			return nil, errors.Wrap(generator.ErrUnsupportedQueryForm, "nil query")
		}
		q = v.Clone()
	case string:
		parsed, err := sparql.ParseStandingQuery(v, o.codec.Resolver())
		if err != nil {
			return nil, errors.Wrap(err, "parse standing query")
		}
		q = parsed
	default:
		return nil, errors.Wrapf(generator.ErrUnsupportedQueryForm, "query of type %T", query)
	}

	if err := ApplyOptions(q, opts); err != nil {
		return nil, err
	}
	return q, nil
}

// ApplyOptions sets the ORDER BY, LIMIT and OFFSET of q from opts and
// validates the result.
func ApplyOptions(q *queryir.Select, opts QueryOptions) error {
	if opts.Order != "" {
		keys, err := sparql.ParseOrder(opts.Order)
		if err != nil {
			return errors.Wrap(err, "parse order")
		}
		q.Order = keys
	}
	if opts.Limit > 0 {
		q.Limit = opts.Limit
	}
	if opts.Offset > 0 {
		q.Offset = opts.Offset
	}
	return queryir.Validate(q)
}

func (o *Observer) tuples(bindings []queryir.Binding) ([]Tuple, error) {
	out := make([]Tuple, 0, len(bindings))
	for i, b := range bindings {
		t := make(Tuple, len(b))
		for v, term := range b {
			val, err := o.codec.ToValue(term)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d ?%s", i, v)
			}
			t[string(v)] = val
		}
		out = append(out, t)
	}
	return out, nil
}
