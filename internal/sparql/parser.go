// Package sparql parses the SPARQL subset the binding layer speaks.
//
// Supported query form:
//
//	[PREFIX p: <uri>]* SELECT (* | ?v ...) [WHERE] { triples } [ORDER BY key ...] [LIMIT n] [OFFSET n]
//
// where a key is ?v, ASC(?v) or DESC(?v), and triples use ';' and ','
// shorthand. Supported updates are INSERT DATA { ... } and DELETE DATA
// { ... } over ground triples, separated by ';'.
//
// Numeric literals are normalised to the encodings of package codec:
// integers become xsd:integer and decimals xsd:float, so a literal in a
// query matches the value an entity wrote.
package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/queryir"
)

// ParseError reports a syntax error and the byte offset where it occurred.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sparql: offset %d: %s", e.Offset, e.Message)
}

func errorAt(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}

type parser struct {
	lex      *lexer
	tok      token
	peeked   bool
	resolver *namespace.Resolver
	prefixes map[string]string
}

func newParser(text string, resolver *namespace.Resolver) *parser {
	if resolver == nil {
		resolver = namespace.NewResolver()
	}
	return &parser{lex: &lexer{src: text}, resolver: resolver, prefixes: map[string]string{}}
}

func (p *parser) peek() (token, error) {
	if !p.peeked {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.tok, p.peeked = t, true
	}
	return p.tok, nil
}

func (p *parser) advance() (token, error) {
	t, err := p.peek()
	p.peeked = false
	return t, err
}

func (p *parser) isKeyword(t token, kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

func (p *parser) isPunct(t token, s string) bool {
	return t.kind == tokPunct && t.text == s
}

func (p *parser) expectKeyword(kw string) error {
	t, err := p.advance()
	if err != nil {
		return err
	}
	if !p.isKeyword(t, kw) {
		return errorAt(t.pos, "expected %s, found %q", kw, t.text)
	}
	return nil
}

func (p *parser) expectPunct(s string) error {
	t, err := p.advance()
	if err != nil {
		return err
	}
	if !p.isPunct(t, s) {
		return errorAt(t.pos, "expected %q, found %q", s, t.text)
	}
	return nil
}

// ParseQuery parses a SELECT query. CURIEs resolve against PREFIX
// declarations first and then resolver.
func ParseQuery(text string, resolver *namespace.Resolver) (*queryir.Select, error) {
	p := newParser(text, resolver)
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	q, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind != tokEOF {
		return nil, errorAt(t.pos, "unexpected %q after query", t.text)
	}
	return q, nil
}

// ParseStandingQuery parses a full SELECT query, or a bare group graph
// pattern which it wraps as "SELECT * <pattern>".
func ParseStandingQuery(text string, resolver *namespace.Resolver) (*queryir.Select, error) {
	text = strings.TrimSpace(text)
	upper := strings.ToUpper(text)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "PREFIX") {
		text = "SELECT * " + text
	}
	return ParseQuery(text, resolver)
}

// ParseOrder parses the keys of an ORDER BY clause, with or without the
// leading "ORDER BY": "?s DESC(?n)".
func ParseOrder(text string) ([]queryir.OrderKey, error) {
	p := newParser(text, nil)
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if p.isKeyword(t, "ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
	}
	keys, err := p.parseOrderKeys()
	if err != nil {
		return nil, err
	}
	t, err = p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind != tokEOF {
		return nil, errorAt(t.pos, "unexpected %q after ORDER BY keys", t.text)
	}
	return keys, nil
}

// ParseUpdate parses INSERT DATA / DELETE DATA operations separated by ';'.
func ParseUpdate(text string, resolver *namespace.Resolver) (queryir.Update, error) {
	p := newParser(text, resolver)
	var u queryir.Update
	for {
		if err := p.parsePrologue(); err != nil {
			return queryir.Update{}, err
		}
		t, err := p.advance()
		if err != nil {
			return queryir.Update{}, err
		}
		if t.kind == tokEOF {
			break
		}
		var insert bool
		switch {
		case p.isKeyword(t, "INSERT"):
			insert = true
		case p.isKeyword(t, "DELETE"):
		default:
			return queryir.Update{}, errorAt(t.pos, "expected INSERT DATA or DELETE DATA, found %q", t.text)
		}
		if err := p.expectKeyword("DATA"); err != nil {
			return queryir.Update{}, err
		}
		quads, err := p.parseGroundBlock()
		if err != nil {
			return queryir.Update{}, err
		}
		if insert {
			u.Statements = append(u.Statements, &queryir.InsertData{Quads: quads})
		} else {
			u.Statements = append(u.Statements, &queryir.DeleteData{Quads: quads})
		}

		t, err = p.peek()
		if err != nil {
			return queryir.Update{}, err
		}
		if p.isPunct(t, ";") {
			p.advance()
			continue
		}
		if t.kind != tokEOF {
			return queryir.Update{}, errorAt(t.pos, "expected ';' or end of update, found %q", t.text)
		}
	}
	if u.Empty() {
		return queryir.Update{}, errorAt(0, "empty update")
	}
	return u, nil
}

// parsePrologue consumes PREFIX declarations.
func (p *parser) parsePrologue() error {
	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		if !p.isKeyword(t, "PREFIX") {
			return nil
		}
		p.advance()
		name, err := p.advance()
		if err != nil {
			return err
		}
		if name.kind != tokPName || !strings.HasSuffix(name.text, ":") {
			return errorAt(name.pos, "expected prefix name, found %q", name.text)
		}
		iri, err := p.advance()
		if err != nil {
			return err
		}
		if iri.kind != tokIRI {
			return errorAt(iri.pos, "expected IRI, found %q", iri.text)
		}
		p.prefixes[strings.TrimSuffix(name.text, ":")] = iri.text
	}
}

func (p *parser) parseSelect() (*queryir.Select, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	q := &queryir.Select{}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if p.isPunct(t, "*") {
		p.advance()
	} else {
		for {
			t, err := p.peek()
			if err != nil {
				return nil, err
			}
			if t.kind != tokVar {
				break
			}
			p.advance()
			q.Vars = append(q.Vars, queryir.Var(t.text))
		}
		if len(q.Vars) == 0 {
			return nil, errorAt(t.pos, "expected '*' or variables after SELECT")
		}
	}

	if t, err = p.peek(); err != nil {
		return nil, err
	}
	if p.isKeyword(t, "WHERE") {
		p.advance()
	}
	where, err := p.parsePatternBlock()
	if err != nil {
		return nil, err
	}
	q.Where = where

	if err := p.parseModifiers(q); err != nil {
		return nil, err
	}
	if err := queryir.Validate(q); err != nil {
		return nil, errorAt(0, "%s", err.Error())
	}
	return q, nil
}

func (p *parser) parseModifiers(q *queryir.Select) error {
	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		switch {
		case p.isKeyword(t, "ORDER"):
			p.advance()
			if err := p.expectKeyword("BY"); err != nil {
				return err
			}
			keys, err := p.parseOrderKeys()
			if err != nil {
				return err
			}
			q.Order = append(q.Order, keys...)
		case p.isKeyword(t, "LIMIT"):
			p.advance()
			n, err := p.parseCount()
			if err != nil {
				return err
			}
			q.Limit = n
		case p.isKeyword(t, "OFFSET"):
			p.advance()
			n, err := p.parseCount()
			if err != nil {
				return err
			}
			q.Offset = n
		default:
			return nil
		}
	}
}

func (p *parser) parseOrderKeys() ([]queryir.OrderKey, error) {
	var keys []queryir.OrderKey
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokVar:
			p.advance()
			keys = append(keys, queryir.OrderKey{Var: queryir.Var(t.text)})
		case p.isKeyword(t, "ASC") || p.isKeyword(t, "DESC"):
			p.advance()
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			v, err := p.advance()
			if err != nil {
				return nil, err
			}
			if v.kind != tokVar {
				return nil, errorAt(v.pos, "expected variable in ORDER BY, found %q", v.text)
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			keys = append(keys, queryir.OrderKey{Var: queryir.Var(v.text), Desc: p.isKeyword(t, "DESC")})
		default:
			if len(keys) == 0 {
				return nil, errorAt(t.pos, "expected ORDER BY key, found %q", t.text)
			}
			return keys, nil
		}
	}
}

func (p *parser) parseCount() (int, error) {
	t, err := p.advance()
	if err != nil {
		return 0, err
	}
	if t.kind != tokInteger {
		return 0, errorAt(t.pos, "expected integer, found %q", t.text)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, errorAt(t.pos, "invalid count %q", t.text)
	}
	return n, nil
}

// parsePatternBlock parses { s p o ; p o , o . ... } allowing variables.
func (p *parser) parsePatternBlock() ([]queryir.TriplePattern, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var out []queryir.TriplePattern
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if p.isPunct(t, "}") {
			p.advance()
			return out, nil
		}
		if p.isPunct(t, ".") {
			p.advance()
			continue
		}
		subj, err := p.parseTerm(slotSubject)
		if err != nil {
			return nil, err
		}
		if err := p.parsePredicateObjectList(subj, &out); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parsePredicateObjectList(subj queryir.Term, out *[]queryir.TriplePattern) error {
	for {
		pred, err := p.parseTerm(slotPredicate)
		if err != nil {
			return err
		}
		for {
			obj, err := p.parseTerm(slotObject)
			if err != nil {
				return err
			}
			*out = append(*out, queryir.TriplePattern{Subject: subj, Predicate: pred, Object: obj})
			t, err := p.peek()
			if err != nil {
				return err
			}
			if !p.isPunct(t, ",") {
				break
			}
			p.advance()
		}
		t, err := p.peek()
		if err != nil {
			return err
		}
		if !p.isPunct(t, ";") {
			return nil
		}
		p.advance()
		// A trailing ';' before '.' or '}' is allowed.
		if t, err = p.peek(); err != nil {
			return err
		}
		if p.isPunct(t, ".") || p.isPunct(t, "}") {
			return nil
		}
	}
}

func (p *parser) parseGroundBlock() ([]quad.Quad, error) {
	patterns, err := p.parsePatternBlock()
	if err != nil {
		return nil, err
	}
	quads := make([]quad.Quad, 0, len(patterns))
	for _, tp := range patterns {
		s, sok := tp.Subject.(queryir.Const)
		pr, pok := tp.Predicate.(queryir.Const)
		o, ook := tp.Object.(queryir.Const)
		if !sok || !pok || !ook {
			return nil, errorAt(0, "variables are not allowed in DATA blocks: %s", tp)
		}
		quads = append(quads, quad.Quad{Subject: s.Value, Predicate: pr.Value, Object: o.Value})
	}
	return quads, nil
}

type slot int

const (
	slotSubject slot = iota
	slotPredicate
	slotObject
)

func (p *parser) parseTerm(pos slot) (queryir.Term, error) {
	t, err := p.advance()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tokVar:
		return queryir.Var(t.text), nil
	case tokIRI:
		return p.iriTerm(t.text, pos), nil
	case tokPName:
		uri, err := p.resolvePName(t)
		if err != nil {
			return nil, err
		}
		return p.iriTerm(uri, pos), nil
	case tokWord:
		switch {
		case pos == slotPredicate && t.text == "a":
			return queryir.IRI(namespace.RDF + "type"), nil
		case pos == slotObject && (t.text == "true" || t.text == "false"):
			return queryir.Const{Value: typed(t.text, codec.XSDBoolean)}, nil
		}
		return nil, errorAt(t.pos, "unexpected %q", t.text)
	case tokInteger, tokDecimal:
		if pos != slotObject {
			return nil, errorAt(t.pos, "literal not allowed in this position")
		}
		return numericTerm(t)
	case tokString:
		if pos != slotObject {
			return nil, errorAt(t.pos, "literal not allowed in this position")
		}
		return p.literalTerm(t)
	case tokEOF:
		return nil, errorAt(t.pos, "unexpected end of input")
	default:
		return nil, errorAt(t.pos, "unexpected %q", t.text)
	}
}

func (p *parser) iriTerm(uri string, pos slot) queryir.Const {
	if id, ok := strings.CutPrefix(uri, "_:"); ok && pos != slotPredicate {
		return queryir.Const{Value: quad.BNode(id)}
	}
	return queryir.IRI(uri)
}

func (p *parser) resolvePName(t token) (string, error) {
	prefix, local, _ := strings.Cut(t.text, ":")
	if prefix == "_" {
		return t.text, nil
	}
	if ns, ok := p.prefixes[prefix]; ok {
		return ns + local, nil
	}
	if ns, ok := p.resolver.Namespace(prefix); ok {
		return ns + local, nil
	}
	return "", errorAt(t.pos, "unknown prefix %q", prefix)
}

func (p *parser) literalTerm(t token) (queryir.Term, error) {
	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch next.kind {
	case tokLangTag:
		p.advance()
		return queryir.Const{Value: quad.LangString{Value: quad.String(t.text), Lang: next.text}}, nil
	case tokDatatype:
		p.advance()
		dt, err := p.advance()
		if err != nil {
			return nil, err
		}
		var uri string
		switch dt.kind {
		case tokIRI:
			uri = dt.text
		case tokPName:
			if uri, err = p.resolvePName(dt); err != nil {
				return nil, err
			}
		default:
			return nil, errorAt(dt.pos, "expected datatype IRI, found %q", dt.text)
		}
		return queryir.Const{Value: typed(t.text, uri)}, nil
	}
	return queryir.Const{Value: quad.String(t.text)}, nil
}

func numericTerm(t token) (queryir.Term, error) {
	if t.kind == tokInteger {
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, errorAt(t.pos, "invalid integer %q", t.text)
		}
		return queryir.Const{Value: typed(strconv.FormatInt(n, 10), codec.XSDInteger)}, nil
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, errorAt(t.pos, "invalid number %q", t.text)
	}
	return queryir.Const{Value: typed(strconv.FormatFloat(f, 'g', -1, 64), codec.XSDFloat)}, nil
}

func typed(lex, datatype string) quad.TypedString {
	return quad.TypedString{Value: quad.String(lex), Type: quad.IRI(datatype)}
}
