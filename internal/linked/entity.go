package linked

import (
	"context"
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/diff"
	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/ir"
)

// State is the synchronization state of an entity.
type State int

const (
	// Idle: no store snapshot received yet and no write in flight.
	Idle State = iota
	// AwaitingOwnEcho: a local write is in flight; store notifications are
	// buffered until it returns.
	AwaitingOwnEcho
	// Live: in sync with the store.
	Live
)

func (s State) String() string {
	switch s {
	case AwaitingOwnEcho:
		return "awaiting-own-echo"
	case Live:
		return "live"
	default:
		return "idle"
	}
}

// Entity is the in-memory object for one graph node.
type Entity struct {
	b   *Binding
	uri string

	attrs    ir.Attributes
	previous ir.Attributes
	changed  map[string]bool

	initialized bool
	state       State
	writes      int
	pending     ir.Attributes
	hasPending  bool

	listenerID string
	emitter    *events.Emitter
	detached   bool
	view       *View
}

func newEntity(b *Binding, uri string, attrs ir.Attributes) *Entity {
	return &Entity{
		b:          b,
		uri:        uri,
		attrs:      attrs.Clone(),
		previous:   ir.Attributes{},
		changed:    map[string]bool{},
		state:      Idle,
		listenerID: "node:" + b.newID(),
		emitter:    b.emitterFor(),
	}
}

// URI returns the entity's current URI.
func (e *Entity) URI() string { return e.uri }

// Initialized reports whether the first store snapshot has been applied.
func (e *Entity) Initialized() bool { return e.initialized }

// State returns the synchronization state.
func (e *Entity) State() State { return e.state }

// IsNew reports whether the entity still has a generated anonymous URI.
func (e *Entity) IsNew() bool { return e.b.IsAnonymous(e.uri) }

// Destroyed reports whether the entity was destroyed or its binding closed.
func (e *Entity) Destroyed() bool { return e.detached }

// Get returns the value of key (URI or CURIE), or nil when unset.
func (e *Entity) Get(key string) ir.Value {
	return e.attrs[e.b.resolver.SafeResolve(key)]
}

// Has reports whether key is set.
func (e *Entity) Has(key string) bool {
	_, ok := e.attrs[e.b.resolver.SafeResolve(key)]
	return ok
}

// Attributes returns a copy of the current attributes.
func (e *Entity) Attributes() ir.Attributes { return e.attrs.Clone() }

// HasChanged reports whether key changed in the last change set. Without
// a key it reports whether anything changed.
func (e *Entity) HasChanged(key ...string) bool {
	if len(key) == 0 {
		return len(e.changed) > 0
	}
	return e.changed[e.b.resolver.SafeResolve(key[0])]
}

// Previous returns the value key had before the last change set.
func (e *Entity) Previous(key string) ir.Value {
	return e.previous[e.b.resolver.SafeResolve(key)]
}

// On registers fn for the named event and returns the listener id.
func (e *Entity) On(name string, fn events.Handler) string { return e.emitter.On(name, fn) }

// Once registers fn for the next named event.
func (e *Entity) Once(name string, fn events.Handler) string { return e.emitter.Once(name, fn) }

// Off removes listeners; see events.Emitter.Off.
func (e *Entity) Off(name, id string) { e.emitter.Off(name, id) }

// Set writes one attribute. value is an ir.Value or a plain Go value.
func (e *Entity) Set(ctx context.Context, key string, value any) error {
	return e.SetAttributes(ctx, map[string]any{key: value})
}

// SetAttributes writes several attributes in one store update.
func (e *Entity) SetAttributes(ctx context.Context, data map[string]any) error {
	attrs := make(ir.Attributes, len(data))
	for k, v := range data {
		val, err := e.b.codec.FromNative(v)
		if err != nil {
			return classify(errors.Wrapf(err, "attribute %s", k), e.uri)
		}
		attrs[e.b.resolver.SafeResolve(k)] = val
	}
	return e.setAll(ctx, attrs)
}

func (e *Entity) setAll(ctx context.Context, attrs ir.Attributes) error {
	if err := e.checkLive(); err != nil {
		return err
	}
	set := ir.Attributes{}
	var unset []string
	for _, k := range attrs.SortedKeys() {
		v := e.b.codec.Canonical(attrs[k])
		cur, present := e.attrs[k]
		// An empty list has no triples, so it is stored as an absent key.
		if l, ok := v.(ir.List); ok && len(l) == 0 {
			if present {
				unset = append(unset, k)
			}
			continue
		}
		if _, err := e.b.codec.ToTerms(v); err != nil {
			return classify(errors.Wrapf(err, "attribute %s", k), e.uri)
		}
		if present && ir.Equal(cur, v) {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 && len(unset) == 0 {
		return nil
	}
	// The node may hold values not yet seen here, as for a view member
	// bound during a notification drain, so set keys are replaced.
	return e.write(ctx, set, unset, func(ctx context.Context) error {
		if len(set) > 0 {
			if err := e.b.translator.ModifyNode(ctx, e.uri, set); err != nil {
				return err
			}
		}
		return e.b.translator.RemovePropertiesFromNode(ctx, e.uri, unset)
	})
}

// Unset removes attributes. Keys that are not set are ignored.
func (e *Entity) Unset(ctx context.Context, keys ...string) error {
	if err := e.checkLive(); err != nil {
		return err
	}
	var unset []string
	for _, k := range keys {
		k = e.b.resolver.SafeResolve(k)
		if _, ok := e.attrs[k]; ok && !slices.Contains(unset, k) {
			unset = append(unset, k)
		}
	}
	if len(unset) == 0 {
		return nil
	}
	slices.Sort(unset)
	return e.write(ctx, nil, unset, func(ctx context.Context) error {
		return e.b.translator.RemovePropertiesFromNode(ctx, e.uri, unset)
	})
}

// AddValue adds value (or each element of a list) to a multi-valued
// attribute.
func (e *Entity) AddValue(ctx context.Context, key string, value any) error {
	if err := e.checkLive(); err != nil {
		return err
	}
	key = e.b.resolver.SafeResolve(key)
	v, err := e.b.codec.FromNative(value)
	if err != nil {
		return classify(errors.Wrapf(err, "attribute %s", key), e.uri)
	}
	if _, err := e.b.codec.ToTerms(v); err != nil {
		return classify(err, e.uri)
	}

	cur := e.attrs[key]
	merged := ir.Values(cur)
	var added []ir.Value
	for _, elem := range ir.Values(v) {
		if !ir.Contains(cur, elem) && !ir.Contains(ir.List(added), elem) {
			added = append(added, elem)
		}
	}
	if len(added) == 0 {
		return nil
	}
	merged = append(slices.Clone(merged), added...)
	newVal := ir.Collapse(merged)
	if l, ok := newVal.(ir.List); ok {
		newVal = l.Sorted()
	}
	return e.write(ctx, ir.Attributes{key: newVal}, nil, func(ctx context.Context) error {
		return e.b.translator.AddValues(ctx, e.uri, key, ir.Collapse(added))
	})
}

// RemoveValue removes value (or each element of a list) from an attribute.
func (e *Entity) RemoveValue(ctx context.Context, key string, value any) error {
	if err := e.checkLive(); err != nil {
		return err
	}
	key = e.b.resolver.SafeResolve(key)
	v, err := e.b.codec.FromNative(value)
	if err != nil {
		return classify(errors.Wrapf(err, "attribute %s", key), e.uri)
	}

	cur := e.attrs[key]
	var kept, removed []ir.Value
	for _, elem := range ir.Values(cur) {
		if ir.Contains(v, elem) {
			removed = append(removed, elem)
		} else {
			kept = append(kept, elem)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	op := func(ctx context.Context) error {
		return e.b.translator.RemoveValues(ctx, e.uri, key, ir.Collapse(removed))
	}
	if len(kept) == 0 {
		return e.write(ctx, nil, []string{key}, op)
	}
	return e.write(ctx, ir.Attributes{key: ir.Collapse(kept)}, nil, op)
}

// Unlink removes every triple that mentions the entity. The entity stays
// bound and observed; see Destroy.
func (e *Entity) Unlink(ctx context.Context) error {
	if err := e.checkLive(); err != nil {
		return err
	}
	return e.write(ctx, nil, e.attrs.SortedKeys(), func(ctx context.Context) error {
		return e.b.translator.UnlinkNode(ctx, e.uri)
	})
}

// Destroy deletes the entity remotely (when a Syncer is configured and the
// entity was saved), unlinks it from the store, stops observing it and
// drops it from the binding.
func (e *Entity) Destroy(ctx context.Context) error {
	if e.detached {
		return nil
	}
	if e.b.syncer != nil && !e.IsNew() {
		if _, err := e.b.syncer.Sync(ctx, MethodDelete, e.resource(nil), SyncOptions{}); err != nil {
			return errors.Wrapf(err, "sync delete %s", e.uri)
		}
	}
	if err := e.Unlink(ctx); err != nil {
		return err
	}
	e.emitter.Emit(events.Destroy, e)
	e.detach()
	e.b.log.Debugw("entity destroyed", "uri", e.uri)
	return nil
}

func (e *Entity) detach() {
	e.b.observer.StopObservingNode(e.listenerID)
	if cached, ok := e.b.entities.Fetch(e.uri); ok && cached == e {
		e.b.entities.Remove(e.uri)
	}
	if e.view != nil {
		e.view.detachView()
	}
	e.detached = true
	e.emitter.Off("", "")
}

func (e *Entity) checkLive() error {
	if e.detached {
		return errors.Newf("entity %s is destroyed", e.uri)
	}
	return nil
}

func (e *Entity) observe(ctx context.Context) error {
	return e.b.observer.StartObservingNode(ctx, e.listenerID, e.uri, e.onNode)
}

// onNode receives store snapshots of the node.
func (e *Entity) onNode(attrs ir.Attributes) {
	if e.detached {
		return
	}
	if e.writes > 0 {
		e.pending, e.hasPending = attrs, true
		e.b.log.Debugw("buffered own echo", "uri", e.uri)
		return
	}
	e.reconcile(attrs)
}

func (e *Entity) reconcile(attrs ir.Attributes) {
	delta := diff.Compute(e.attrs, attrs)
	if diff.Apply(e, delta) {
		e.b.log.Debugw("applied remote change", "uri", e.uri, "keys", delta.Keys())
	}
	if !e.initialized {
		e.initialized = true
		e.state = Live
		e.emitter.Emit(events.Initialized, e)
	}
}

// ApplyRemote updates attributes without writing to the store and emits
// change events.
func (e *Entity) ApplyRemote(set ir.Attributes, unset []string) {
	e.applyChanges(set, unset)
}

func (e *Entity) applyChanges(set ir.Attributes, unset []string) {
	e.previous = e.attrs.Clone()
	e.changed = make(map[string]bool, len(set)+len(unset))
	maps.Copy(e.attrs, set)
	for _, k := range unset {
		delete(e.attrs, k)
	}
	keys := diff.Delta{Set: set, Unset: unset}.Keys()
	for _, k := range keys {
		e.changed[k] = true
	}
	for _, k := range keys {
		e.emitter.Emit(events.ChangeKey(k), e, e.attrs[k])
	}
	e.emitter.Emit(events.Change, e)
}

// write applies a local change optimistically, runs op with store
// notifications for this entity buffered, then reconciles the buffered
// snapshot once.
func (e *Entity) write(ctx context.Context, set ir.Attributes, unset []string, op func(context.Context) error) error {
	if len(set) > 0 || len(unset) > 0 {
		e.applyChanges(set, unset)
	}
	e.writes++
	e.state = AwaitingOwnEcho
	err := op(ctx)
	e.writes--
	e.settle()
	return classify(err, e.uri)
}

// settle leaves AwaitingOwnEcho once no write is in flight and applies the
// latest buffered snapshot.
func (e *Entity) settle() {
	if e.writes > 0 {
		return
	}
	if e.initialized {
		e.state = Live
	} else {
		e.state = Idle
	}
	if e.hasPending {
		pending := e.pending
		e.pending, e.hasPending = nil, false
		e.reconcile(pending)
	}
}

func (e *Entity) resource(keys []string) Resource {
	if keys == nil {
		return Resource{URI: e.uri, Attributes: e.attrs.Clone()}
	}
	attrs := make(ir.Attributes, len(keys))
	for _, k := range keys {
		k = e.b.resolver.SafeResolve(k)
		if v, ok := e.attrs[k]; ok {
			attrs[k] = v
		}
	}
	return Resource{URI: e.uri, Attributes: attrs}
}

// String returns the entity's URI.
func (e *Entity) String() string { return e.uri }

var _ diff.Target = (*Entity)(nil)
