// Package namespace resolves CURIEs (prefix:local) to canonical URIs and back.
//
// A Resolver never fails on input it cannot resolve: SafeResolve returns the
// input unchanged. Event names are resolved pairwise so that a CURIE embedded
// after an event namespace (change:foaf:title) expands while the namespace
// itself (change) is kept literally.
package namespace

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Well-known namespaces registered by NewResolver.
const (
	RDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS = "http://www.w3.org/2000/01/rdf-schema#"
	XSD  = "http://www.w3.org/2001/XMLSchema#"
	OWL  = "http://www.w3.org/2002/07/owl#"
	FOAF = "http://xmlns.com/foaf/0.1/"
	LDP  = "http://www.w3.org/ns/ldp#"
	DC   = "http://purl.org/dc/elements/1.1/"
)

// DefaultPrefixes is the prefix table a new Resolver starts with.
var DefaultPrefixes = map[string]string{
	"rdf":  RDF,
	"rdfs": RDFS,
	"xsd":  XSD,
	"owl":  OWL,
	"foaf": FOAF,
	"ldp":  LDP,
	"dc":   DC,
}

// Resolver maps prefixes to namespace URIs.
//
// Thread-safety: Resolver is safe for concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	prefixes map[string]string
}

// NewResolver returns a Resolver seeded with DefaultPrefixes.
func NewResolver() *Resolver {
	return &Resolver{prefixes: maps.Clone(DefaultPrefixes)}
}

// NewEmptyResolver returns a Resolver with no prefixes.
func NewEmptyResolver() *Resolver {
	return &Resolver{prefixes: map[string]string{}}
}

// Register binds prefix to the namespace uri, replacing any previous binding.
func (r *Resolver) Register(uri, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = uri
}

// RegisterAll registers every prefix → uri pair of m.
func (r *Resolver) RegisterAll(m map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for prefix, uri := range m {
		r.prefixes[prefix] = uri
	}
}

// Unregister removes prefix. Unknown prefixes are ignored.
func (r *Resolver) Unregister(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prefixes, prefix)
}

// Namespace returns the URI bound to prefix.
func (r *Resolver) Namespace(prefix string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uri, ok := r.prefixes[prefix]
	return uri, ok
}

// Prefixes returns a copy of the prefix table.
func (r *Resolver) Prefixes() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.prefixes)
}

// IsAbsolute reports whether s is already an absolute URI rather than a CURIE.
func IsAbsolute(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "urn:") || strings.HasPrefix(s, "_:")
}

// Resolve expands a CURIE against the prefix table. ok is false when s is
// not a CURIE with a registered prefix.
func (r *Resolver) Resolve(s string) (string, bool) {
	if IsAbsolute(s) {
		return s, false
	}
	prefix, local, found := strings.Cut(s, ":")
	if !found {
		return s, false
	}
	r.mu.RLock()
	ns, ok := r.prefixes[prefix]
	r.mu.RUnlock()
	if !ok {
		return s, false
	}
	return ns + local, true
}

// SafeResolve expands s when it is a known CURIE and otherwise returns s
// unchanged.
func (r *Resolver) SafeResolve(s string) string {
	uri, _ := r.Resolve(s)
	return uri
}

// Shrink returns the CURIE for uri using the longest matching namespace,
// or uri itself when no namespace matches.
func (r *Resolver) Shrink(uri string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best, bestNS := "", ""
	// Sorted for a stable pick between prefixes bound to the same namespace.
	for _, prefix := range slices.Sorted(maps.Keys(r.prefixes)) {
		ns := r.prefixes[prefix]
		if strings.HasPrefix(uri, ns) && len(ns) > len(bestNS) {
			best, bestNS = prefix, ns
		}
	}
	if bestNS == "" {
		return uri
	}
	return best + ":" + strings.TrimPrefix(uri, bestNS)
}

// ResolveEventName expands CURIEs embedded in a ':'-delimited event name.
// Adjacent segments are tried as prefix:local; a match consumes both
// segments, otherwise the first segment is kept literally.
//
//	change:foaf:title → change:http://xmlns.com/foaf/0.1/title
func (r *Resolver) ResolveEventName(name string) string {
	if !strings.Contains(name, ":") {
		return name
	}
	parts := strings.Split(name, ":")
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		if i+1 < len(parts) {
			if uri, ok := r.Resolve(parts[i] + ":" + parts[i+1]); ok {
				out = append(out, uri)
				i++
				continue
			}
		}
		out = append(out, parts[i])
	}
	return strings.Join(out, ":")
}
