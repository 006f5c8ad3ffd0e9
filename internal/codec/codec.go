// Package codec converts between triple terms and attribute values.
//
// Encoding rules:
//   - Null       → IRI rdf:null (the store has no native null)
//   - Ref        → IRI, or blank node for "_:" references
//   - Time       → "YYYY-MM-DDThh:mm:ssZ"^^xsd:dateTime
//   - Int        → xsd:integer
//   - Float      → xsd:float (shortest round-trip form)
//   - Bool       → xsd:boolean
//   - String     → plain literal, NFC-normalised
//   - List       → one term per element
//
// Strings are also the input boundary for two markers: "@id:<uri>" denotes
// a reference and "\"lex\"^^<datatype>" (or "\"lex\"@lang") denotes a typed
// literal. Decoding a literal with a datatype this package does not model
// yields that escaped form, so it survives a write back unchanged.
package codec

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/cockroachdb/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/namespace"
)

// Datatype and sentinel IRIs.
const (
	NullIRI     = namespace.RDF + "null"
	XSDString   = namespace.XSD + "string"
	XSDInteger  = namespace.XSD + "integer"
	XSDInt      = namespace.XSD + "int"
	XSDLong     = namespace.XSD + "long"
	XSDFloat    = namespace.XSD + "float"
	XSDDouble   = namespace.XSD + "double"
	XSDDecimal  = namespace.XSD + "decimal"
	XSDBoolean  = namespace.XSD + "boolean"
	XSDDateTime = namespace.XSD + "dateTime"
)

// RefMarker prefixes a string that denotes a reference.
const RefMarker = "@id:"

// ErrUnsupportedValue reports a value outside the closed attribute value set.
var ErrUnsupportedValue = errors.New("unsupported attribute value")

// ErrUnresolvedValue is the name the binding layer uses for ErrUnsupportedValue.
var ErrUnresolvedValue = ErrUnsupportedValue

var (
	typedLiteralRE = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"\^\^<([^>]+)>$`)
	langLiteralRE  = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"@([A-Za-z]+(?:-[A-Za-z0-9]+)*)$`)
)

// Codec converts values using a namespace resolver for CURIE references.
type Codec struct {
	resolver *namespace.Resolver
}

// New returns a Codec. A nil resolver means NewResolver().
func New(resolver *namespace.Resolver) *Codec {
	if resolver == nil {
		resolver = namespace.NewResolver()
	}
	return &Codec{resolver: resolver}
}

// Resolver returns the namespace resolver used for references.
func (c *Codec) Resolver() *namespace.Resolver {
	return c.resolver
}

// ToTerms encodes v as the triple objects it stands for. A List yields one
// term per element; every other value yields exactly one.
func (c *Codec) ToTerms(v ir.Value) ([]quad.Value, error) {
	if l, ok := v.(ir.List); ok {
		out := make([]quad.Value, 0, len(l))
		for i, elem := range l {
			if _, nested := elem.(ir.List); nested {
				return nil, errors.Wrapf(ErrUnsupportedValue, "list[%d]: nested list", i)
			}
			t, err := c.ToTerm(elem)
			if err != nil {
				return nil, errors.Wrapf(err, "list[%d]", i)
			}
			out = append(out, t)
		}
		return out, nil
	}
	t, err := c.ToTerm(v)
	if err != nil {
		return nil, err
	}
	return []quad.Value{t}, nil
}

// ToTerm encodes a scalar value.
func (c *Codec) ToTerm(v ir.Value) (quad.Value, error) {
	switch val := v.(type) {
	case ir.Null:
		return quad.IRI(NullIRI), nil
	case ir.Ref:
		uri := c.resolver.SafeResolve(string(val))
		if id, ok := strings.CutPrefix(uri, "_:"); ok {
			return quad.BNode(id), nil
		}
		return quad.IRI(uri), nil
	case ir.Time:
		return typed(val.Time().Format(time.RFC3339), XSDDateTime), nil
	case ir.Int:
		return typed(strconv.FormatInt(int64(val), 10), XSDInteger), nil
	case ir.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.Wrapf(ErrUnsupportedValue, "non-finite float %v", f)
		}
		return typed(strconv.FormatFloat(f, 'g', -1, 64), XSDFloat), nil
	case ir.Bool:
		return typed(strconv.FormatBool(bool(val)), XSDBoolean), nil
	case ir.String:
		return c.stringTerm(string(val)), nil
	case ir.List:
		return nil, errors.Wrap(ErrUnsupportedValue, "list is not a scalar")
	case nil:
		return nil, errors.Wrap(ErrUnsupportedValue, "nil value")
	default:
		return nil, errors.Wrapf(ErrUnsupportedValue, "%T", v)
	}
}

func (c *Codec) stringTerm(s string) quad.Value {
	if ref, ok := strings.CutPrefix(s, RefMarker); ok {
		return quad.IRI(c.resolver.SafeResolve(ref))
	}
	if m := typedLiteralRE.FindStringSubmatch(s); m != nil {
		return typed(unescape(m[1]), c.resolver.SafeResolve(m[2]))
	}
	if m := langLiteralRE.FindStringSubmatch(s); m != nil {
		return quad.LangString{Value: quad.String(unescape(m[1])), Lang: m[2]}
	}
	return quad.String(norm.NFC.String(s))
}

// ToValue decodes a triple object.
func (c *Codec) ToValue(t quad.Value) (ir.Value, error) {
	switch val := t.(type) {
	case quad.IRI:
		if string(val) == NullIRI {
			return ir.Null{}, nil
		}
		return ir.Ref(string(val)), nil
	case quad.BNode:
		return ir.Ref("_:" + string(val)), nil
	case quad.String:
		return ir.String(string(val)), nil
	case quad.LangString:
		return ir.String(escapeLiteral(string(val.Value)) + "@" + val.Lang), nil
	case quad.TypedString:
		return decodeTyped(string(val.Value), string(val.Type))
	case nil:
		return nil, errors.Wrap(ErrUnsupportedValue, "nil term")
	default:
		return nil, errors.Wrapf(ErrUnsupportedValue, "term %T", t)
	}
}

func decodeTyped(lex, datatype string) (ir.Value, error) {
	switch datatype {
	case XSDString:
		return ir.String(lex), nil
	case XSDInteger, XSDInt, XSDLong:
		n, err := strconv.ParseInt(strings.TrimSpace(lex), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s literal %q", datatype, lex)
		}
		return ir.Int(n), nil
	case XSDFloat, XSDDouble, XSDDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(lex), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s literal %q", datatype, lex)
		}
		return ir.Float(f), nil
	case XSDBoolean:
		switch strings.TrimSpace(lex) {
		case "true", "1":
			return ir.Bool(true), nil
		case "false", "0":
			return ir.Bool(false), nil
		}
		return nil, errors.Newf("decode boolean literal %q", lex)
	case XSDDateTime:
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(lex))
		if err != nil {
			return nil, errors.Wrapf(err, "decode dateTime literal %q", lex)
		}
		return ir.NewTime(ts), nil
	default:
		return ir.String(escapeLiteral(lex) + "^^<" + datatype + ">"), nil
	}
}

// FromNative converts plain Go values, as produced by JSON, YAML or CUE
// decoding, into attribute values. Whole floats become Int.
func (c *Codec) FromNative(v any) (ir.Value, error) {
	switch val := v.(type) {
	case nil:
		return ir.Null{}, nil
	case ir.Value:
		if err := ir.Validate(val); err != nil {
			return nil, errors.Wrap(ErrUnsupportedValue, err.Error())
		}
		if s, ok := val.(ir.String); ok {
			return c.FromNative(string(s))
		}
		return c.Canonical(val), nil
	case string:
		return c.ParseString(val)
	case bool:
		return ir.Bool(val), nil
	case int:
		return ir.Int(val), nil
	case int32:
		return ir.Int(val), nil
	case int64:
		return ir.Int(val), nil
	case uint:
		return c.fromUint(uint64(val))
	case uint32:
		return ir.Int(val), nil
	case uint64:
		return c.fromUint(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case time.Time:
		return ir.NewTime(val), nil
	case []string:
		out := make(ir.List, 0, len(val))
		for _, s := range val {
			elem, err := c.ParseString(s)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case []any:
		out := make(ir.List, 0, len(val))
		for i, elem := range val {
			if _, nested := elem.([]any); nested {
				return nil, errors.Wrapf(ErrUnsupportedValue, "list[%d]: nested list", i)
			}
			conv, err := c.FromNative(elem)
			if err != nil {
				return nil, errors.Wrapf(err, "list[%d]", i)
			}
			if _, nested := conv.(ir.List); nested {
				return nil, errors.Wrapf(ErrUnsupportedValue, "list[%d]: nested list", i)
			}
			out = append(out, conv)
		}
		return out, nil
	case map[string]any:
		if id, ok := val["@id"].(string); ok && len(val) == 1 {
			return ir.Ref(c.resolver.SafeResolve(id)), nil
		}
		return nil, errors.Wrap(ErrUnsupportedValue, "object values other than {\"@id\": uri}")
	default:
		return nil, errors.Wrapf(ErrUnsupportedValue, "%T", v)
	}
}

// Canonical resolves CURIE references in v, including list elements.
func (c *Codec) Canonical(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Ref:
		return ir.Ref(c.resolver.SafeResolve(string(val)))
	case ir.List:
		out := make(ir.List, len(val))
		for i, elem := range val {
			out[i] = c.Canonical(elem)
		}
		return out
	default:
		return v
	}
}

func (c *Codec) fromUint(u uint64) (ir.Value, error) {
	if u > math.MaxInt64 {
		return nil, errors.Wrapf(ErrUnsupportedValue, "integer %d overflows int64", u)
	}
	return ir.Int(int64(u)), nil
}

func fromFloat(f float64) (ir.Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Wrapf(ErrUnsupportedValue, "non-finite float %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return ir.Int(int64(f)), nil
	}
	return ir.Float(f), nil
}

// ParseString applies the input-boundary markers: "@id:" references and
// escaped typed literals. Anything else is a plain String.
func (c *Codec) ParseString(s string) (ir.Value, error) {
	if ref, ok := strings.CutPrefix(s, RefMarker); ok {
		return ir.Ref(c.resolver.SafeResolve(ref)), nil
	}
	if m := typedLiteralRE.FindStringSubmatch(s); m != nil {
		return decodeTyped(unescape(m[1]), c.resolver.SafeResolve(m[2]))
	}
	return ir.String(s), nil
}

// NodeToAttributes groups the triples of subject by predicate. A predicate
// with one object maps to a scalar; several objects map to a List ordered
// by term text. Triples about other subjects are ignored.
func (c *Codec) NodeToAttributes(subject string, quads []quad.Quad) (ir.Attributes, error) {
	grouped := make(map[string][]ir.Value)
	for _, q := range quads {
		if !sameSubject(q.Subject, subject) {
			continue
		}
		pred := IRIOf(q.Predicate)
		if pred == "" {
			return nil, errors.Newf("predicate %v is not an IRI", q.Predicate)
		}
		v, err := c.ToValue(q.Object)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", pred)
		}
		grouped[pred] = append(grouped[pred], v)
	}

	attrs := make(ir.Attributes, len(grouped))
	for pred, vals := range grouped {
		if len(vals) == 1 {
			attrs[pred] = vals[0]
			continue
		}
		attrs[pred] = ir.NewList(vals...).Sorted()
	}
	return attrs, nil
}

func sameSubject(v quad.Value, subject string) bool {
	switch val := v.(type) {
	case quad.IRI:
		return string(val) == subject
	case quad.BNode:
		return "_:"+string(val) == subject
	default:
		return false
	}
}

// SubjectTerm returns the term for a subject URI, which may be a blank node.
func SubjectTerm(uri string) quad.Value {
	if id, ok := strings.CutPrefix(uri, "_:"); ok {
		return quad.BNode(id)
	}
	return quad.IRI(uri)
}

func typed(lex, datatype string) quad.TypedString {
	return quad.TypedString{Value: quad.String(lex), Type: quad.IRI(datatype)}
}

func escapeLiteral(s string) string {
	return strconv.Quote(s)
}

func unescape(s string) string {
	if out, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return out
	}
	return s
}
