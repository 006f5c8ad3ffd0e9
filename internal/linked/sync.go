package linked

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/ir"
)

// SyncMethod names a remote persistence operation.
type SyncMethod string

const (
	MethodCreate SyncMethod = "create"
	MethodUpdate SyncMethod = "update"
	MethodPatch  SyncMethod = "patch"
	MethodDelete SyncMethod = "delete"
	MethodRead   SyncMethod = "read"
)

// Resource is an entity as sent to a Syncer.
type Resource struct {
	URI        string
	Attributes ir.Attributes
}

// SyncOptions qualify a sync request.
type SyncOptions struct {
	// Keys limits a patch to these attributes.
	Keys []string
}

// SyncResult is the remote answer. A create returns the assigned absolute
// URI. Attributes, when present, are written back to the entity.
type SyncResult struct {
	URI        string
	Attributes ir.Attributes
}

// Syncer persists entities to a remote service.
type Syncer interface {
	Sync(ctx context.Context, method SyncMethod, res Resource, opts SyncOptions) (SyncResult, error)
}

func (e *Entity) syncer() (Syncer, error) {
	if e.b.syncer == nil {
		return nil, newBindingError(ErrCodeNoSyncer, e.uri, nil, "no syncer configured")
	}
	if e.detached {
		return nil, errors.Newf("entity %s is destroyed", e.uri)
	}
	return e.b.syncer, nil
}

// Save creates the entity remotely when it is new, and updates it
// otherwise. A URI assigned by the remote side replaces the anonymous one.
func (e *Entity) Save(ctx context.Context) error {
	s, err := e.syncer()
	if err != nil {
		return err
	}
	method := MethodUpdate
	if e.IsNew() {
		method = MethodCreate
	}
	res, err := s.Sync(ctx, method, e.resource(nil), SyncOptions{})
	if err != nil {
		return errors.Wrapf(err, "sync %s %s", method, e.uri)
	}
	return e.applySyncResult(ctx, res)
}

// Patch sends only keys to the remote side.
func (e *Entity) Patch(ctx context.Context, keys ...string) error {
	s, err := e.syncer()
	if err != nil {
		return err
	}
	resolved := make([]string, len(keys))
	for i, k := range keys {
		resolved[i] = e.b.resolver.SafeResolve(k)
	}
	res, err := s.Sync(ctx, MethodPatch, e.resource(resolved), SyncOptions{Keys: resolved})
	if err != nil {
		return errors.Wrapf(err, "sync patch %s", e.uri)
	}
	return e.applySyncResult(ctx, res)
}

// Fetch reads the entity from the remote side and writes the result to
// the store.
func (e *Entity) Fetch(ctx context.Context) error {
	s, err := e.syncer()
	if err != nil {
		return err
	}
	res, err := s.Sync(ctx, MethodRead, Resource{URI: e.uri}, SyncOptions{})
	if err != nil {
		return errors.Wrapf(err, "sync read %s", e.uri)
	}
	return e.applySyncResult(ctx, res)
}

func (e *Entity) applySyncResult(ctx context.Context, res SyncResult) error {
	if res.URI != "" {
		uri := e.b.resolver.SafeResolve(res.URI)
		if uri != e.uri {
			if err := e.changeURI(ctx, uri); err != nil {
				return err
			}
		}
	}
	if len(res.Attributes) == 0 {
		return nil
	}
	attrs := make(ir.Attributes, len(res.Attributes))
	for k, v := range res.Attributes {
		attrs[e.b.resolver.SafeResolve(k)] = v
	}
	return e.setAll(ctx, attrs)
}

// changeURI moves the entity to uri: the store node is renamed in subject
// and object position, the cache is rekeyed, the node is re-observed under
// the same listener id and change:@id is emitted.
func (e *Entity) changeURI(ctx context.Context, uri string) error {
	if other, ok := e.b.entities.Fetch(uri); ok && other != e {
		return errors.Newf("cannot move %s to %s: URI is bound to another entity", e.uri, uri)
	}
	old := e.uri

	e.b.suspended++
	defer func() {
		e.b.suspended--
		e.b.flushViews()
	}()

	e.writes++
	e.state = AwaitingOwnEcho
	if err := e.b.translator.ChangeNodeURI(ctx, old, uri); err != nil {
		e.writes--
		e.settle()
		return classify(err, old)
	}

	e.b.entities.Rekey(old, uri)
	e.uri = uri
	// Snapshots buffered so far describe the old node.
	e.pending, e.hasPending = nil, false
	err := e.observe(ctx)
	e.writes--
	e.settle()
	if err != nil {
		return err
	}

	if e.view != nil {
		if err := e.view.rebind(ctx); err != nil {
			return err
		}
	}
	e.b.log.Debugw("entity uri changed", "old", old, "new", uri)
	e.emitter.Emit(events.ChangeID, e, old, uri)
	return nil
}
