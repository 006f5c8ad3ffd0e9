package store

import (
	"context"
	"slices"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/queryir"
)

// Handle identifies a subscription.
type Handle int64

// NodeCallback receives the triples of an observed subject.
type NodeCallback func(quads []quad.Quad)

// QueryCallback receives the ordered result of an observed query.
type QueryCallback func(bindings []queryir.Binding)

type nodeObserver struct {
	uri  string
	cb   NodeCallback
	last string
}

type queryObserver struct {
	query *queryir.Select
	cb    QueryCallback
	last  string
}

// ObserveNode subscribes cb to the triples of uri. cb runs once with the
// current triples (possibly none) and again whenever they change.
func (s *Store) ObserveNode(ctx context.Context, uri string, cb NodeCallback) (Handle, error) {
	quads, err := s.Node(ctx, uri)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.nextHandle++
	h := s.nextHandle
	s.nodes[h] = &nodeObserver{uri: uri, cb: cb, last: quadsKey(quads)}
	s.mu.Unlock()

	s.log.Debugw("observe node", "handle", h, "uri", uri)
	s.queue.Enqueue(notification{kind: notifyNode, handle: h, quads: quads})
	s.drain()
	return h, nil
}

// StopObservingNode cancels a node subscription. Pending notifications
// for h are dropped. Unknown handles are ignored.
func (s *Store) StopObservingNode(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[h]; ok {
		delete(s.nodes, h)
		s.log.Debugw("stop observing node", "handle", h)
	}
}

// ObserveQuery subscribes cb to the result of q. cb runs once with the
// current result and again whenever the result changes.
func (s *Store) ObserveQuery(ctx context.Context, q *queryir.Select, cb QueryCallback) (Handle, error) {
	bindings, err := s.Select(ctx, q)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.nextHandle++
	h := s.nextHandle
	s.queries[h] = &queryObserver{query: q.Clone(), cb: cb, last: bindingsKey(bindings)}
	s.mu.Unlock()

	s.log.Debugw("observe query", "handle", h, "query", q.String())
	s.queue.Enqueue(notification{kind: notifyQuery, handle: h, bindings: bindings})
	s.drain()
	return h, nil
}

// StopObservingQuery cancels a query subscription. Pending notifications
// for h are dropped. Unknown handles are ignored.
func (s *Store) StopObservingQuery(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[h]; ok {
		delete(s.queries, h)
		s.log.Debugw("stop observing query", "handle", h)
	}
}

// Observers returns the number of live node and query subscriptions.
func (s *Store) Observers() (nodes, queries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), len(s.queries)
}

// detectChanges queues notifications for node observers of subjects and
// for every query observer whose result changed.
func (s *Store) detectChanges(ctx context.Context, subjects []string) {
	type nodeCheck struct {
		h   Handle
		obs *nodeObserver
	}
	type queryCheck struct {
		h   Handle
		obs *queryObserver
	}

	s.mu.Lock()
	var nodes []nodeCheck
	for h, obs := range s.nodes {
		if _, hit := slices.BinarySearch(subjects, obs.uri); hit {
			nodes = append(nodes, nodeCheck{h, obs})
		}
	}
	queries := make([]queryCheck, 0, len(s.queries))
	for h, obs := range s.queries {
		queries = append(queries, queryCheck{h, obs})
	}
	s.mu.Unlock()

	// Handles grow with subscription order, which keeps delivery order
	// stable between observers of the same change.
	slices.SortFunc(nodes, func(a, b nodeCheck) int { return int(a.h - b.h) })
	slices.SortFunc(queries, func(a, b queryCheck) int { return int(a.h - b.h) })

	for _, c := range nodes {
		quads, err := s.Node(ctx, c.obs.uri)
		if err != nil {
			s.log.Warnw("node observer refresh failed", "handle", c.h, "uri", c.obs.uri, "error", err)
			continue
		}
		key := quadsKey(quads)
		if key == c.obs.last {
			continue
		}
		c.obs.last = key
		s.queue.Enqueue(notification{kind: notifyNode, handle: c.h, quads: quads})
	}

	for _, c := range queries {
		bindings, err := s.Select(ctx, c.obs.query)
		if err != nil {
			s.log.Warnw("query observer refresh failed", "handle", c.h, "error", err)
			continue
		}
		key := bindingsKey(bindings)
		if key == c.obs.last {
			continue
		}
		c.obs.last = key
		s.queue.Enqueue(notification{kind: notifyQuery, handle: c.h, bindings: bindings})
	}
}

// drain delivers queued notifications in FIFO order. Only the outermost
// caller drains; calls made from inside a callback return immediately and
// their notifications are delivered by the running loop.
func (s *Store) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}()

	for {
		n, ok := s.queue.TryDequeue()
		if !ok {
			return
		}
		s.deliver(n)
	}
}

func (s *Store) deliver(n notification) {
	s.mu.Lock()
	var nodeCB NodeCallback
	var queryCB QueryCallback
	switch n.kind {
	case notifyNode:
		if obs, ok := s.nodes[n.handle]; ok {
			nodeCB = obs.cb
		}
	case notifyQuery:
		if obs, ok := s.queries[n.handle]; ok {
			queryCB = obs.cb
		}
	}
	s.mu.Unlock()

	switch {
	case nodeCB != nil:
		s.metrics.Notifications.WithLabelValues(n.kind.String()).Inc()
		nodeCB(n.quads)
	case queryCB != nil:
		s.metrics.Notifications.WithLabelValues(n.kind.String()).Inc()
		queryCB(n.bindings)
	}
}

func quadsKey(quads []quad.Quad) string {
	keys := make([]string, 0, len(quads))
	for _, q := range quads {
		keys = append(keys, termKey(q.Subject)+" "+termKey(q.Predicate)+" "+termKey(q.Object))
	}
	slices.Sort(keys)
	return strings.Join(keys, "\n")
}

func bindingsKey(bindings []queryir.Binding) string {
	var b strings.Builder
	for _, binding := range bindings {
		vars := make([]string, 0, len(binding))
		for v := range binding {
			vars = append(vars, string(v))
		}
		slices.Sort(vars)
		for _, v := range vars {
			b.WriteString(v)
			b.WriteByte('=')
			b.WriteString(termKey(binding[queryir.Var(v)]))
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func termKey(v quad.Value) string {
	t, err := codec.TermOf(v)
	if err != nil {
		return "?"
	}
	return t.Key()
}
