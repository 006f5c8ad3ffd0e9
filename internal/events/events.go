// Package events provides a synchronous event emitter whose event names
// may contain CURIEs. "change:foaf:name" and
// "change:http://xmlns.com/foaf/0.1/name" name the same event.
package events

import (
	"slices"

	"github.com/google/uuid"

	"github.com/roach88/linked/internal/namespace"
)

// Well-known event names.
const (
	Change      = "change"
	Initialized = "rdf:initialized"
	Add         = "add"
	Remove      = "remove"
	Reset       = "reset"
	Destroy     = "destroy"
	// ChangeID is emitted when an entity's URI changes.
	ChangeID = "change:@id"
	// All receives every event.
	All = "all"
)

// ChangeKey returns the per-attribute change event name.
func ChangeKey(key string) string {
	return Change + ":" + key
}

// Event is one emitted event.
type Event struct {
	Name string
	Args []any
}

// Arg returns the i-th argument or nil.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Handler receives events.
type Handler func(Event)

type listener struct {
	id   string
	fn   Handler
	once bool
}

// Emitter dispatches events to handlers in registration order.
// It is not safe for concurrent use.
type Emitter struct {
	resolver *namespace.Resolver
	handlers map[string][]listener
	newID    func() string
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithIDGenerator replaces the listener id source (uuid by default).
func WithIDGenerator(gen func() string) Option {
	return func(e *Emitter) { e.newID = gen }
}

// New creates an Emitter. A nil resolver leaves event names unresolved.
func New(resolver *namespace.Resolver, opts ...Option) *Emitter {
	e := &Emitter{
		resolver: resolver,
		handlers: make(map[string][]listener),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the canonical form of an event name.
func (e *Emitter) Name(name string) string {
	if e.resolver == nil {
		return name
	}
	return e.resolver.ResolveEventName(name)
}

// On registers fn for name and returns the listener id.
func (e *Emitter) On(name string, fn Handler) string {
	return e.add(name, fn, false)
}

// Once registers fn for the next name event only.
func (e *Emitter) Once(name string, fn Handler) string {
	return e.add(name, fn, true)
}

func (e *Emitter) add(name string, fn Handler, once bool) string {
	id := e.newID()
	name = e.Name(name)
	e.handlers[name] = append(e.handlers[name], listener{id: id, fn: fn, once: once})
	return id
}

// Off removes listeners. An empty name matches every event and an empty id
// matches every listener, so Off("", "") removes everything.
func (e *Emitter) Off(name, id string) {
	if name == "" {
		for n := range e.handlers {
			e.removeFrom(n, id)
		}
		return
	}
	e.removeFrom(e.Name(name), id)
}

func (e *Emitter) removeFrom(name, id string) {
	if id == "" {
		delete(e.handlers, name)
		return
	}
	kept := slices.DeleteFunc(e.handlers[name], func(l listener) bool { return l.id == id })
	if len(kept) == 0 {
		delete(e.handlers, name)
		return
	}
	e.handlers[name] = kept
}

// Emit calls the handlers of name, then the handlers of All. Handlers
// added during Emit are not called for this event.
func (e *Emitter) Emit(name string, args ...any) {
	ev := Event{Name: e.Name(name), Args: args}
	e.dispatch(ev.Name, ev)
	if ev.Name != All {
		e.dispatch(All, ev)
	}
}

func (e *Emitter) dispatch(key string, ev Event) {
	current := slices.Clone(e.handlers[key])
	for _, l := range current {
		if l.once {
			e.removeFrom(key, l.id)
		}
		l.fn(ev)
	}
}

// Has reports whether name has any listener.
func (e *Emitter) Has(name string) bool {
	return len(e.handlers[e.Name(name)]) > 0
}

// Len returns the total number of listeners.
func (e *Emitter) Len() int {
	n := 0
	for _, ls := range e.handlers {
		n += len(ls)
	}
	return n
}
