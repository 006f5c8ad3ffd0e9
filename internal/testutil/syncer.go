package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/linked"
)

// DefaultRemoteBase prefixes URIs assigned by MemorySyncer on create.
const DefaultRemoteBase = "http://remote.example.org/items/"

// SyncCall records one request made to a MemorySyncer.
type SyncCall struct {
	Method linked.SyncMethod
	URI    string
	Keys   []string
}

// MemorySyncer is an in-memory remote service implementing linked.Syncer.
//
// Create assigns "<base><n>", update and patch replace stored attributes,
// read returns them and delete forgets the resource. Every request is
// recorded in Calls.
type MemorySyncer struct {
	mu        sync.Mutex
	base      string
	seq       int
	resources map[string]ir.Attributes
	calls     []SyncCall
	failures  map[linked.SyncMethod]error
	extra     ir.Attributes
}

// NewMemorySyncer creates a syncer. An empty base means DefaultRemoteBase.
func NewMemorySyncer(base string) *MemorySyncer {
	if base == "" {
		base = DefaultRemoteBase
	}
	return &MemorySyncer{
		base:      base,
		resources: make(map[string]ir.Attributes),
		failures:  make(map[linked.SyncMethod]error),
	}
}

// FailOn makes every request with method return err. A nil err clears it.
func (s *MemorySyncer) FailOn(method linked.SyncMethod, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// ReturnAttributes makes create and update answer with attrs merged into
// the stored resource, the way a server fills in generated fields.
func (s *MemorySyncer) ReturnAttributes(attrs ir.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = attrs.Clone()
}

// Put seeds a remote resource.
func (s *MemorySyncer) Put(uri string, attrs ir.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[uri] = attrs.Clone()
}

// Resource returns the stored attributes of uri.
func (s *MemorySyncer) Resource(uri string) (ir.Attributes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.resources[uri]
	return attrs.Clone(), ok
}

// Calls returns the recorded requests in order.
func (s *MemorySyncer) Calls() []SyncCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Sync implements linked.Syncer.
func (s *MemorySyncer) Sync(_ context.Context, method linked.SyncMethod, res linked.Resource, opts linked.SyncOptions) (linked.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, SyncCall{Method: method, URI: res.URI, Keys: slices.Clone(opts.Keys)})
	if err := s.failures[method]; err != nil {
		return linked.SyncResult{}, err
	}

	switch method {
	case linked.MethodCreate:
		s.seq++
		uri := fmt.Sprintf("%s%d", s.base, s.seq)
		s.resources[uri] = s.merge(res.Attributes)
		return linked.SyncResult{URI: uri, Attributes: s.extra.Clone()}, nil
	case linked.MethodUpdate:
		s.resources[res.URI] = s.merge(res.Attributes)
		return linked.SyncResult{URI: res.URI, Attributes: s.extra.Clone()}, nil
	case linked.MethodPatch:
		stored := s.resources[res.URI].Clone()
		for k, v := range res.Attributes {
			stored[k] = v
		}
		s.resources[res.URI] = stored
		return linked.SyncResult{URI: res.URI}, nil
	case linked.MethodRead:
		stored, ok := s.resources[res.URI]
		if !ok {
			return linked.SyncResult{}, errors.Newf("remote resource %s not found", res.URI)
		}
		return linked.SyncResult{URI: res.URI, Attributes: stored.Clone()}, nil
	case linked.MethodDelete:
		delete(s.resources, res.URI)
		return linked.SyncResult{}, nil
	default:
		return linked.SyncResult{}, errors.Newf("unknown sync method %q", method)
	}
}

func (s *MemorySyncer) merge(attrs ir.Attributes) ir.Attributes {
	out := attrs.Clone()
	for k, v := range s.extra {
		out[k] = v
	}
	return out
}

var _ linked.Syncer = (*MemorySyncer)(nil)
