package linked

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/observe"
)

// ViewState is the membership synchronization state of a view.
type ViewState int

const (
	ViewUninitialized ViewState = iota
	// ViewPopulating: the standing query is registered and the first
	// result has not arrived.
	ViewPopulating
	ViewLive
	// ViewAwaitingOwnEcho: a membership edit is in flight; results are
	// buffered (latest wins) until it returns.
	ViewAwaitingOwnEcho
)

func (s ViewState) String() string {
	switch s {
	case ViewPopulating:
		return "populating"
	case ViewLive:
		return "live"
	case ViewAwaitingOwnEcho:
		return "awaiting-own-echo"
	default:
		return "uninitialized"
	}
}

// View is an entity whose members are the result of a standing query.
type View struct {
	*Entity

	gen     *generator.Compiled
	opts    observe.QueryOptions
	queryID string

	members     []*Entity
	hooks       map[*Entity]string
	viewState   ViewState
	populated   bool
	edits       int
	pendingRows []string
	hasRows     bool
}

// ViewOption configures Binding.View.
type ViewOption func(*viewConfig)

type viewConfig struct {
	uri        string
	idVariable string
	query      observe.QueryOptions
	initial    []any
}

// WithViewURI sets the view's URI. Without it a URI is generated.
func WithViewURI(uri string) ViewOption {
	return func(c *viewConfig) { c.uri = uri }
}

// WithIDVariable names the query variable bound to member URIs.
func WithIDVariable(name string) ViewOption {
	return func(c *viewConfig) { c.idVariable = strings.TrimPrefix(name, "?") }
}

// WithOrder sets ORDER BY keys, e.g. "DESC(?n) ?id".
func WithOrder(order string) ViewOption {
	return func(c *viewConfig) { c.query.Order = order }
}

// WithLimit bounds the number of members.
func WithLimit(n int) ViewOption {
	return func(c *viewConfig) { c.query.Limit = n }
}

// WithOffset skips the first n results.
func WithOffset(n int) ViewOption {
	return func(c *viewConfig) { c.query.Offset = n }
}

// WithInitialMembers adds members once the view is populated. Members are
// URIs, entities or attribute maps; see View.Add.
func WithInitialMembers(members ...any) ViewOption {
	return func(c *viewConfig) { c.initial = append(c.initial, members...) }
}

// View returns a live view for generator, which is query text, a
// generator.Template or a {subject, predicate, object} map.
func (b *Binding) View(ctx context.Context, gen any, opts ...ViewOption) (*View, error) {
	if b.closed {
		return nil, errors.New("binding is closed")
	}
	cfg := viewConfig{idVariable: b.idVariable}
	for _, opt := range opts {
		opt(&cfg)
	}

	pattern, err := generator.Parse(gen)
	if err != nil {
		return nil, classify(err, cfg.uri)
	}

	var uri string
	if cfg.uri != "" {
		uri = b.resolver.SafeResolve(cfg.uri)
	} else if uri, err = b.anonURI(ctx); err != nil {
		return nil, err
	}
	if e, ok := b.entities.Fetch(uri); ok && e.view != nil {
		return e.view, nil
	}

	compiled, err := generator.Compile(pattern, uri, b.resolver, generator.WithIDVariable(cfg.idVariable))
	if err != nil {
		return nil, classify(err, uri)
	}
	if len(cfg.initial) > 0 && compiled.ReadOnly() {
		return nil, newBindingError(ErrCodeReadOnlyMutation, uri, generator.ErrReadOnlyMutation,
			"initial members need a template generator")
	}

	e, err := b.Entity(ctx, uri)
	if err != nil {
		return nil, err
	}
	v := &View{
		Entity:    e,
		gen:       compiled,
		opts:      cfg.query,
		queryID:   "query:" + b.newID(),
		hooks:     make(map[*Entity]string),
		viewState: ViewUninitialized,
	}
	e.view = v
	b.views = append(b.views, v)

	v.viewState = ViewPopulating
	if err := v.observeQuery(ctx); err != nil {
		v.detachView()
		e.view = nil
		return nil, err
	}
	b.log.Debugw("view bound", "uri", uri, "generator", compiled.String())

	if len(cfg.initial) > 0 {
		if err := v.Add(ctx, cfg.initial...); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Generator returns the compiled generator.
func (v *View) Generator() *generator.Compiled { return v.gen }

// ReadWrite reports whether Add and Remove are allowed.
func (v *View) ReadWrite() bool { return !v.gen.ReadOnly() }

// ViewState returns the membership synchronization state.
func (v *View) ViewState() ViewState { return v.viewState }

// Members returns the members in result order.
func (v *View) Members() []*Entity { return slices.Clone(v.members) }

// Len returns the number of members.
func (v *View) Len() int { return len(v.members) }

// At returns the i-th member, or nil when i is out of range.
func (v *View) At(i int) *Entity {
	if i < 0 || i >= len(v.members) {
		return nil
	}
	return v.members[i]
}

// Contains reports whether uri (URI or CURIE) is a member.
func (v *View) Contains(uri string) bool {
	uri = v.b.resolver.SafeResolve(uri)
	return slices.ContainsFunc(v.members, func(m *Entity) bool { return m.uri == uri })
}

// MemberURIs returns the member URIs in result order.
func (v *View) MemberURIs() []string {
	out := make([]string, len(v.members))
	for i, m := range v.members {
		out[i] = m.uri
	}
	return out
}

// Add makes members part of the view. A member is a URI or CURIE, an
// *Entity, a *View, or an attribute map (map[string]any or ir.Attributes)
// for a new entity. The store write happens first; membership follows from
// the query result it produces.
func (v *View) Add(ctx context.Context, members ...any) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	uris, err := v.memberURIs(ctx, members, true)
	if err != nil {
		return err
	}
	if len(uris) == 0 {
		return nil
	}
	u, err := v.gen.AddStatements(uris)
	if err != nil {
		return classify(err, v.uri)
	}
	return v.edit(ctx, func(ctx context.Context) error { return v.b.translator.Execute(ctx, u) })
}

// Remove takes members out of the view. Members that do not belong to the
// view are ignored. The member entities themselves are left in place.
func (v *View) Remove(ctx context.Context, members ...any) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	uris, err := v.memberURIs(ctx, members, false)
	if err != nil {
		return err
	}
	uris = slices.DeleteFunc(uris, func(uri string) bool { return !v.Contains(uri) })
	if len(uris) == 0 {
		return nil
	}
	u, err := v.gen.RemoveStatements(uris)
	if err != nil {
		return classify(err, v.uri)
	}
	return v.edit(ctx, func(ctx context.Context) error { return v.b.translator.Execute(ctx, u) })
}

// Create builds a new entity from data, adds it to the view and, when a
// Syncer is configured, saves it remotely.
func (v *View) Create(ctx context.Context, data map[string]any) (*Entity, error) {
	if err := v.checkWritable(); err != nil {
		return nil, err
	}
	m, err := v.b.NewEntity(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := v.Add(ctx, m); err != nil {
		return m, err
	}
	if v.b.syncer != nil {
		if err := m.Save(ctx); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (v *View) checkWritable() error {
	if v.detached {
		return errors.Newf("view %s is destroyed", v.uri)
	}
	if v.gen.ReadOnly() {
		return newBindingError(ErrCodeReadOnlyMutation, v.uri, generator.ErrReadOnlyMutation,
			"view membership is defined by a query")
	}
	return nil
}

// memberURIs resolves member arguments. Argument types are checked before
// any entity is created.
func (v *View) memberURIs(ctx context.Context, members []any, create bool) ([]string, error) {
	for i, m := range members {
		switch m.(type) {
		case string, *Entity, *View:
		case map[string]any, ir.Attributes:
			if !create {
				return nil, newBindingError(ErrCodeUnknownMember, v.uri, nil, "member %d: attribute maps can only be added", i)
			}
		default:
			return nil, newBindingError(ErrCodeUnknownMember, v.uri, nil, "member %d has unsupported type %T", i, m)
		}
	}

	out := make([]string, 0, len(members))
	for _, m := range members {
		var uri string
		switch mv := m.(type) {
		case string:
			uri = v.b.resolver.SafeResolve(mv)
		case *Entity:
			uri = mv.uri
		case *View:
			uri = mv.uri
		case map[string]any:
			e, err := v.b.NewEntity(ctx, mv)
			if err != nil {
				return nil, err
			}
			uri = e.uri
		case ir.Attributes:
			data := make(map[string]any, len(mv))
			for k, val := range mv {
				data[k] = val
			}
			e, err := v.b.NewEntity(ctx, data)
			if err != nil {
				return nil, err
			}
			uri = e.uri
		}
		if uri != "" && !slices.Contains(out, uri) {
			out = append(out, uri)
		}
	}
	return out, nil
}

func (v *View) edit(ctx context.Context, op func(context.Context) error) error {
	v.edits++
	v.viewState = ViewAwaitingOwnEcho
	err := op(ctx)
	v.edits--
	v.settleView()
	return classify(err, v.uri)
}

func (v *View) settleView() {
	if v.edits > 0 || v.b.suspended > 0 {
		return
	}
	if v.populated {
		v.viewState = ViewLive
	} else if v.viewState == ViewAwaitingOwnEcho {
		v.viewState = ViewPopulating
	}
	if v.hasRows {
		uris := v.pendingRows
		v.pendingRows, v.hasRows = nil, false
		v.reconcileMembers(uris)
	}
}

func (v *View) observeQuery(ctx context.Context) error {
	return v.b.observer.StartObservingQuery(ctx, v.queryID, v.gen.Query, v.opts, v.onRows)
}

// rebind recompiles the generator for the view's new URI and re-registers
// the standing query under the same listener id.
func (v *View) rebind(ctx context.Context) error {
	gen, err := v.gen.Rebind(v.uri, v.b.resolver)
	if err != nil {
		return classify(err, v.uri)
	}
	v.gen = gen
	return v.observeQuery(ctx)
}

// onRows receives the standing query's results.
func (v *View) onRows(rows []observe.Tuple) {
	if v.detached {
		return
	}
	uris := make([]string, 0, len(rows))
	for _, row := range rows {
		ref, ok := row[v.gen.IDVariable].(ir.Ref)
		if !ok {
			v.b.log.Warnw("skipping row without member reference", "view", v.uri, "variable", v.gen.IDVariable)
			continue
		}
		if uri := string(ref); !slices.Contains(uris, uri) {
			uris = append(uris, uri)
		}
	}
	if v.edits > 0 || v.b.suspended > 0 {
		v.pendingRows, v.hasRows = uris, true
		return
	}
	v.reconcileMembers(uris)
}

// reconcileMembers replaces membership with uris, keeping the entities of
// URIs that stay.
func (v *View) reconcileMembers(uris []string) {
	first := !v.populated
	current := make(map[string]*Entity, len(v.members))
	for _, m := range v.members {
		current[m.uri] = m
	}

	next := make([]*Entity, 0, len(uris))
	var added []*Entity
	for _, uri := range uris {
		if m, ok := current[uri]; ok {
			next = append(next, m)
			delete(current, uri)
			continue
		}
		m, err := v.b.Entity(v.b.ctx, uri)
		if err != nil {
			v.b.log.Warnw("cannot bind member", "view", v.uri, "member", uri, "error", err)
			continue
		}
		next = append(next, m)
		added = append(added, m)
	}

	var removed []*Entity
	for _, m := range v.members {
		if _, gone := current[m.uri]; gone {
			removed = append(removed, m)
		}
	}
	v.members = next

	for _, m := range removed {
		v.unhook(m)
		if !first {
			v.emitter.Emit(events.Remove, m, v)
		}
	}
	for _, m := range added {
		v.hook(m)
		if !first {
			v.emitter.Emit(events.Add, m, v)
		}
	}
	if first {
		v.populated = true
		if v.edits == 0 {
			v.viewState = ViewLive
		}
		v.emitter.Emit(events.Reset, v)
	}
	if len(added) > 0 || len(removed) > 0 {
		v.b.log.Debugw("view membership changed", "view", v.uri, "added", len(added), "removed", len(removed), "members", len(next))
	}
}

// hook re-emits the member's change events on the view.
func (v *View) hook(m *Entity) {
	if _, ok := v.hooks[m]; ok {
		return
	}
	v.hooks[m] = m.emitter.On(events.All, func(ev events.Event) {
		if ev.Name == events.ChangeID {
			return
		}
		if ev.Name == events.Change || strings.HasPrefix(ev.Name, events.Change+":") {
			v.emitter.Emit(ev.Name, ev.Args...)
		}
	})
}

func (v *View) unhook(m *Entity) {
	if id, ok := v.hooks[m]; ok {
		m.emitter.Off(events.All, id)
		delete(v.hooks, m)
	}
}

// detachView stops the standing query and member forwarding.
func (v *View) detachView() {
	v.b.observer.StopObservingQuery(v.queryID)
	for m := range v.hooks {
		v.unhook(m)
	}
	v.members = nil
	v.b.views = slices.DeleteFunc(v.b.views, func(x *View) bool { return x == v })
}

// flushViews reconciles results buffered while a rename was in progress.
func (b *Binding) flushViews() {
	if b.suspended > 0 {
		return
	}
	for _, v := range slices.Clone(b.views) {
		v.settleView()
	}
}
