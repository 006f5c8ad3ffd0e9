// Package generator turns a view's membership pattern into a standing
// query and, for template patterns, into the triples that add or remove a
// member.
//
// A pattern is either query text (read-only) or a Template with subject,
// predicate and object slots. Each slot holds a URI or CURIE, the self
// marker "<>" (the view's own URI), or the member wildcard
// (ldp:MemberSubject or a ?variable). An omitted subject means self and an
// omitted object means member.
//
// Two template shapes are writable:
//
//	Hub:   { <> p ?member }   membership is a multi-valued property of the view
//	Spoke: { ?member p o }    each member points at o (a URI or the view)
package generator

import (
	"fmt"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/queryir"
	"github.com/roach88/linked/internal/sparql"
)

var (
	// ErrReadOnlyMutation is returned when membership edits are requested
	// for a query-text generator.
	ErrReadOnlyMutation = errors.New("generator is read-only")

	// ErrUnsupportedQueryForm is returned for patterns that are neither
	// query text nor a writable template.
	ErrUnsupportedQueryForm = errors.New("unsupported query form")
)

const (
	// SelfMarker stands for the view's own URI.
	SelfMarker = "<>"
	// MemberSubject is the member wildcard IRI.
	MemberSubject = namespace.LDP + "MemberSubject"
	// DefaultIDVariable names the query variable bound to member URIs.
	DefaultIDVariable = "id"
)

// Kind classifies a compiled generator.
type Kind int

const (
	ReadOnly Kind = iota
	Hub
	Spoke
)

func (k Kind) String() string {
	switch k {
	case Hub:
		return "hub"
	case Spoke:
		return "spoke"
	default:
		return "read-only"
	}
}

// Pattern is a parsed generator.
//
// This is a sealed interface - only Query and Template implement it.
type Pattern interface {
	pattern()
}

// Query is query text: a full SELECT or a bare group graph pattern.
type Query string

func (Query) pattern() {}

// Template is a triple pattern with one member slot.
type Template struct {
	Subject   string `yaml:"subject,omitempty" json:"subject,omitempty"`
	Predicate string `yaml:"predicate" json:"predicate"`
	Object    string `yaml:"object,omitempty" json:"object,omitempty"`
}

func (Template) pattern() {}

// Parse accepts query text, a Template (or *Template), or a map with
// "subject", "predicate" and "object" string entries.
func Parse(v any) (Pattern, error) {
	switch g := v.(type) {
	case string:
		if strings.TrimSpace(g) == "" {
			return nil, errors.Wrap(ErrUnsupportedQueryForm, "empty query")
		}
		return Query(g), nil
	case Query:
		return Parse(string(g))
	case Template:
		return g, nil
	case *Template:
		if g == nil {
			return nil, errors.Wrap(ErrUnsupportedQueryForm, "nil template")
		}
		return *g, nil
	case map[string]any:
		return templateFromMap(g)
	case map[string]string:
		m := make(map[string]any, len(g))
		for k, s := range g {
			m[k] = s
		}
		return templateFromMap(m)
	default:
		return nil, errors.Wrapf(ErrUnsupportedQueryForm, "generator of type %T", v)
	}
}

func templateFromMap(m map[string]any) (Template, error) {
	var t Template
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return Template{}, errors.Wrapf(ErrUnsupportedQueryForm, "%s: expected string, got %T", k, v)
		}
		switch k {
		case "subject":
			t.Subject = s
		case "predicate":
			t.Predicate = s
		case "object":
			t.Object = s
		default:
			return Template{}, errors.Wrapf(ErrUnsupportedQueryForm, "unknown template key %q", k)
		}
	}
	return t, nil
}

// Compiled is a generator bound to a view URI.
type Compiled struct {
	// Query is the standing query whose IDVariable bindings are the members.
	Query      *queryir.Select
	IDVariable string

	pattern   Pattern
	kind      Kind
	self      string
	predicate string
	// subject is the node holding a Hub's membership property.
	subject string
	// object is the fixed object of a Spoke.
	object string
}

// Option configures Compile.
type Option func(*Compiled)

// WithIDVariable sets the member variable name (default "id").
func WithIDVariable(name string) Option {
	return func(c *Compiled) {
		if name = strings.TrimPrefix(name, "?"); name != "" {
			c.IDVariable = name
		}
	}
}

// Compile binds pattern to the view URI self.
func Compile(pattern Pattern, self string, resolver *namespace.Resolver, opts ...Option) (*Compiled, error) {
	if resolver == nil {
		resolver = namespace.NewResolver()
	}
	c := &Compiled{pattern: pattern, self: self, IDVariable: DefaultIDVariable}
	for _, opt := range opts {
		opt(c)
	}

	switch p := pattern.(type) {
	case Query:
		q, err := sparql.ParseStandingQuery(string(p), resolver)
		if err != nil {
			return nil, errors.Wrap(err, "parse generator query")
		}
		if !hasVar(q.Projection(), queryir.Var(c.IDVariable)) {
			return nil, errors.Wrapf(ErrUnsupportedQueryForm, "query does not bind ?%s", c.IDVariable)
		}
		c.Query = q
		c.kind = ReadOnly
		return c, nil
	case Template:
		if err := c.compileTemplate(p, resolver); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedQueryForm, "pattern of type %T", pattern)
	}
}

type slotKind int

const (
	slotURI slotKind = iota
	slotSelf
	slotMember
)

func classify(s string, resolver *namespace.Resolver) (slotKind, string) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == SelfMarker:
		return slotSelf, ""
	case strings.HasPrefix(s, "?"):
		return slotMember, ""
	}
	uri := resolver.SafeResolve(strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">"))
	if uri == MemberSubject {
		return slotMember, ""
	}
	return slotURI, uri
}

func (c *Compiled) compileTemplate(t Template, resolver *namespace.Resolver) error {
	if strings.TrimSpace(t.Predicate) == "" {
		return errors.Wrap(ErrUnsupportedQueryForm, "template has no predicate")
	}
	predKind, pred := classify(t.Predicate, resolver)
	if t.Predicate == "a" {
		predKind, pred = slotURI, namespace.RDF+"type"
	}
	if predKind != slotURI {
		return errors.Wrap(ErrUnsupportedQueryForm, "member or self in predicate position")
	}

	subjKind, subj := classify(t.Subject, resolver)
	objKind, obj := classify(t.Object, resolver)
	if t.Object == "" {
		objKind = slotMember
	}

	member := queryir.Var(c.IDVariable)
	c.predicate = pred
	switch {
	case subjKind == slotMember && objKind == slotMember:
		return errors.Wrap(ErrUnsupportedQueryForm, "member in both subject and object position")
	case objKind == slotMember:
		// A fixed subject other than the view still forms a hub.
		c.subject = c.self
		if subjKind == slotURI {
			c.subject = subj
		}
		c.kind = Hub
		c.Query = &queryir.Select{
			Vars:  []queryir.Var{member},
			Where: []queryir.TriplePattern{{Subject: nodeConst(c.subject), Predicate: queryir.IRI(pred), Object: member}},
			Order: []queryir.OrderKey{{Var: member}},
		}
	case subjKind == slotMember:
		c.kind = Spoke
		c.object = c.self
		if objKind == slotURI {
			c.object = obj
		}
		c.Query = &queryir.Select{
			Vars:  []queryir.Var{member},
			Where: []queryir.TriplePattern{{Subject: member, Predicate: queryir.IRI(pred), Object: nodeConst(c.object)}},
			Order: []queryir.OrderKey{{Var: member}},
		}
	default:
		return errors.Wrap(ErrUnsupportedQueryForm, "template has no member slot")
	}
	return nil
}

func nodeConst(uri string) queryir.Const {
	return queryir.Const{Value: codec.SubjectTerm(uri)}
}

func hasVar(vars []queryir.Var, v queryir.Var) bool {
	for _, x := range vars {
		if x == v {
			return true
		}
	}
	return false
}

// Pattern returns the pattern the generator was compiled from.
func (c *Compiled) Pattern() Pattern { return c.pattern }

// Kind reports the membership shape.
func (c *Compiled) Kind() Kind { return c.kind }

// ReadOnly reports whether membership edits are rejected.
func (c *Compiled) ReadOnly() bool { return c.kind == ReadOnly }

// Self returns the view URI the generator is bound to.
func (c *Compiled) Self() string { return c.self }

// Predicate returns the membership predicate of a template generator.
func (c *Compiled) Predicate() string { return c.predicate }

// Rebind compiles the same pattern for a new view URI.
func (c *Compiled) Rebind(self string, resolver *namespace.Resolver) (*Compiled, error) {
	return Compile(c.pattern, self, resolver, WithIDVariable(c.IDVariable))
}

// AddStatements returns the update that makes members part of the view.
func (c *Compiled) AddStatements(members []string) (queryir.Update, error) {
	quads, err := c.membershipQuads(members)
	if err != nil {
		return queryir.Update{}, err
	}
	return queryir.NewUpdate(&queryir.InsertData{Quads: quads}), nil
}

// RemoveStatements returns the update that removes members from the view.
func (c *Compiled) RemoveStatements(members []string) (queryir.Update, error) {
	quads, err := c.membershipQuads(members)
	if err != nil {
		return queryir.Update{}, err
	}
	return queryir.NewUpdate(&queryir.DeleteData{Quads: quads}), nil
}

func (c *Compiled) membershipQuads(members []string) ([]quad.Quad, error) {
	if c.ReadOnly() {
		return nil, ErrReadOnlyMutation
	}
	pred := quad.IRI(c.predicate)
	out := make([]quad.Quad, 0, len(members))
	for _, m := range members {
		if m == "" {
			return nil, errors.New("empty member URI")
		}
		switch c.kind {
		case Hub:
			out = append(out, quad.Quad{Subject: codec.SubjectTerm(c.subject), Predicate: pred, Object: codec.SubjectTerm(m)})
		case Spoke:
			out = append(out, quad.Quad{Subject: codec.SubjectTerm(m), Predicate: pred, Object: codec.SubjectTerm(c.object)})
		}
	}
	return out, nil
}

// String renders the generator for logs.
func (c *Compiled) String() string {
	return fmt.Sprintf("%s %s", c.kind, c.Query.String())
}
