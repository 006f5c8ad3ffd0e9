package linked

import (
	"context"
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/cache"
	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/mutation"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/observe"
)

// DefaultAnonBase prefixes generated URIs of entities created without one.
const DefaultAnonBase = "http://linked.backbone.org/models/anon#"

// IDKey is the attribute key that carries an entity's URI in inline data.
const IDKey = "@id"

// Store is the store boundary a Binding needs.
type Store interface {
	observe.Backend
	mutation.Executor
	Resolver() *namespace.Resolver
	Node(ctx context.Context, uri string) ([]quad.Quad, error)
}

// Binding is the context entities and views live in.
type Binding struct {
	store      Store
	resolver   *namespace.Resolver
	codec      *codec.Codec
	observer   *observe.Observer
	translator *mutation.Translator
	entities   *cache.Cache[*Entity]
	views      []*View
	syncer     Syncer
	log        *zap.SugaredLogger

	// ctx is used for work triggered by store notifications, which carry
	// no context of their own.
	ctx context.Context

	anonBase   string
	anonSeq    int
	modifyMode mutation.ModifyMode
	idVariable string
	newID      func() string
	closed     bool

	// suspended > 0 while a node is being renamed; views buffer their
	// results until the identity cache agrees with the store again.
	suspended int
}

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the logger. The binding names it "linked".
func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Binding) { b.log = log }
}

// WithSyncer enables remote persistence.
func WithSyncer(s Syncer) Option {
	return func(b *Binding) { b.syncer = s }
}

// WithModifyMode selects how attribute updates replace stored values.
func WithModifyMode(m mutation.ModifyMode) Option {
	return func(b *Binding) { b.modifyMode = m }
}

// WithAnonBase sets the prefix of generated entity URIs.
func WithAnonBase(base string) Option {
	return func(b *Binding) { b.anonBase = base }
}

// WithDefaultIDVariable sets the member variable of views (default "id").
func WithDefaultIDVariable(name string) Option {
	return func(b *Binding) { b.idVariable = strings.TrimPrefix(name, "?") }
}

// WithIDGenerator replaces the listener id source (uuid by default).
func WithIDGenerator(gen func() string) Option {
	return func(b *Binding) { b.newID = gen }
}

// WithContext sets the context used for notification-driven work.
func WithContext(ctx context.Context) Option {
	return func(b *Binding) { b.ctx = ctx }
}

// New creates a Binding over st.
func New(st Store, opts ...Option) *Binding {
	b := &Binding{
		store:      st,
		resolver:   st.Resolver(),
		entities:   cache.New[*Entity](),
		ctx:        context.Background(),
		anonBase:   DefaultAnonBase,
		modifyMode: mutation.Atomic,
		idVariable: generator.DefaultIDVariable,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = namespace.NewResolver()
	}
	base := b.log
	b.log = logger.Component(base, "linked")
	b.codec = codec.New(b.resolver)
	b.observer = observe.New(st, b.codec, base)
	b.translator = mutation.New(st, b.codec, mutation.WithModifyMode(b.modifyMode), mutation.WithLogger(base))
	return b
}

// Close stops every observation and clears the identity cache.
func (b *Binding) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.observer.StopAll()
	for _, uri := range b.entities.Keys() {
		if e, ok := b.entities.Fetch(uri); ok {
			e.detached = true
		}
	}
	b.entities.Clear()
	b.log.Debugw("binding closed")
	return nil
}

// Resolver returns the namespace resolver.
func (b *Binding) Resolver() *namespace.Resolver { return b.resolver }

// Codec returns the value codec.
func (b *Binding) Codec() *codec.Codec { return b.codec }

// Lookup returns the cached entity for uri without creating one.
func (b *Binding) Lookup(uri string) (*Entity, bool) {
	return b.entities.Fetch(b.resolver.SafeResolve(uri))
}

// URIs returns the URIs of every live entity.
func (b *Binding) URIs() []string {
	return b.entities.Keys()
}

// IsAnonymous reports whether uri was generated by this binding.
func (b *Binding) IsAnonymous(uri string) bool {
	return strings.HasPrefix(uri, b.anonBase)
}

// anonURI returns the next generated URI that is neither bound nor
// already the subject of stored triples.
func (b *Binding) anonURI(ctx context.Context) (string, error) {
	for {
		b.anonSeq++
		uri := fmt.Sprintf("%s%d", b.anonBase, b.anonSeq)
		if _, taken := b.entities.Fetch(uri); taken {
			continue
		}
		quads, err := b.store.Node(ctx, uri)
		if err != nil {
			return "", errors.Wrap(err, "allocate anonymous uri")
		}
		if len(quads) == 0 {
			return uri, nil
		}
	}
}

// EntityOption configures entity construction.
type EntityOption func(*entityConfig)

type entityConfig struct {
	merge bool
}

// WithMerge merges inline data into an already cached entity instead of
// returning it unchanged.
func WithMerge() EntityOption {
	return func(c *entityConfig) { c.merge = true }
}

// Entity returns the entity for an existing node. The same *Entity is
// returned for the same URI until it is destroyed.
func (b *Binding) Entity(ctx context.Context, uri string, opts ...EntityOption) (*Entity, error) {
	if b.closed {
		return nil, errors.New("binding is closed")
	}
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("entity URI is empty")
	}
	uri = b.resolver.SafeResolve(uri)
	if e, ok := b.entities.Fetch(uri); ok {
		return e, nil
	}

	e := newEntity(b, uri, nil)
	b.entities.Store(uri, e)
	if err := e.observe(ctx); err != nil {
		b.entities.Remove(uri)
		return nil, err
	}
	b.log.Debugw("entity bound", "uri", uri)
	return e, nil
}

// NewEntity creates an entity from inline data and writes it to the store.
// The URI comes from the "@id" key, or is generated under the anonymous
// base. Values may be ir.Values or plain Go values.
func (b *Binding) NewEntity(ctx context.Context, data map[string]any, opts ...EntityOption) (*Entity, error) {
	if b.closed {
		return nil, errors.New("binding is closed")
	}
	var cfg entityConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	uri, attrs, err := b.decodeData(data)
	if err != nil {
		return nil, err
	}

	if uri != "" {
		if e, ok := b.entities.Fetch(uri); ok {
			if cfg.merge && len(attrs) > 0 {
				if err := e.setAll(ctx, attrs); err != nil {
					return nil, err
				}
			}
			return e, nil
		}
	} else if uri, err = b.anonURI(ctx); err != nil {
		return nil, err
	}

	e := newEntity(b, uri, attrs)
	b.entities.Store(uri, e)
	if err := b.translator.WriteNewNode(ctx, uri, attrs); err != nil {
		b.entities.Remove(uri)
		return nil, classify(err, uri)
	}
	if err := e.observe(ctx); err != nil {
		b.entities.Remove(uri)
		return nil, err
	}
	b.log.Debugw("entity created", "uri", uri, "attributes", len(attrs))
	return e, nil
}

// decodeData splits inline data into the URI and resolved attributes.
func (b *Binding) decodeData(data map[string]any) (string, ir.Attributes, error) {
	var uri string
	attrs := make(ir.Attributes, len(data))
	for k, v := range data {
		if k == IDKey {
			switch id := v.(type) {
			case string:
				uri = b.resolver.SafeResolve(id)
			case ir.Ref:
				uri = b.resolver.SafeResolve(string(id))
			default:
				return "", nil, newBindingError(ErrCodeUnresolvedValue, "", nil, "%s must be a string, got %T", IDKey, v)
			}
			continue
		}
		val, err := b.codec.FromNative(v)
		if err != nil {
			return "", nil, classify(errors.Wrapf(err, "attribute %s", k), uri)
		}
		if l, ok := val.(ir.List); ok && len(l) == 0 {
			continue
		}
		attrs[b.resolver.SafeResolve(k)] = val
	}
	return uri, attrs, nil
}

// emitterFor builds an entity's event emitter.
func (b *Binding) emitterFor() *events.Emitter {
	return events.New(b.resolver, events.WithIDGenerator(b.newID))
}
