package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/linked"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/observe"
)

// ViewSpec is a view declared in CUE.
//
//	view: Shelf: {
//		uri:       "ex:shelf"
//		generator: {predicate: "ex:holds"}
//		order:     "?id"
//	}
type ViewSpec struct {
	Name       string              `json:"name"`
	URI        string              `json:"uri,omitempty"`
	Query      string              `json:"query,omitempty"`
	Generator  *generator.Template `json:"generator,omitempty"`
	Order      string              `json:"order,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
	Offset     int                 `json:"offset,omitempty"`
	IDVariable string              `json:"id_variable,omitempty"`

	Pos token.Pos `json:"-"`
}

// Pattern returns the generator in the form linked.Binding.View accepts.
func (s *ViewSpec) Pattern() any {
	if s.Generator != nil {
		return *s.Generator
	}
	return s.Query
}

// QueryOptions returns the declared result modifiers.
func (s *ViewSpec) QueryOptions() observe.QueryOptions {
	return observe.QueryOptions{Order: s.Order, Limit: s.Limit, Offset: s.Offset}
}

// ViewOptions returns the options that bind the declared view.
func (s *ViewSpec) ViewOptions() []linked.ViewOption {
	var opts []linked.ViewOption
	if s.URI != "" {
		opts = append(opts, linked.WithViewURI(s.URI))
	}
	if s.IDVariable != "" {
		opts = append(opts, linked.WithIDVariable(s.IDVariable))
	}
	if s.Order != "" {
		opts = append(opts, linked.WithOrder(s.Order))
	}
	if s.Limit > 0 {
		opts = append(opts, linked.WithLimit(s.Limit))
	}
	if s.Offset > 0 {
		opts = append(opts, linked.WithOffset(s.Offset))
	}
	return opts
}

// CompileView parses a CUE value into a ViewSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the view struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`view: Shelf: {generator: {predicate: "ex:holds"}}`)
//	spec, err := CompileView(v.LookupPath(cue.ParsePath("view.Shelf")))
func CompileView(v cue.Value) (*ViewSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ViewSpec{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.URI, err = optionalString(v, "uri"); err != nil {
		return nil, err
	}
	if spec.Query, err = optionalString(v, "query"); err != nil {
		return nil, err
	}

	genVal := v.LookupPath(cue.ParsePath("generator"))
	switch {
	case spec.Query != "" && genVal.Exists():
		return nil, &CompileError{
			Field:   "generator",
			Message: "query and generator are mutually exclusive",
			Pos:     genVal.Pos(),
		}
	case spec.Query == "" && !genVal.Exists():
		return nil, &CompileError{
			Field:   "query",
			Message: "either query or generator is required",
			Pos:     v.Pos(),
		}
	case genVal.Exists():
		tmpl, err := parseTemplate(genVal)
		if err != nil {
			return nil, err
		}
		spec.Generator = tmpl
	}

	if spec.Order, err = optionalString(v, "order"); err != nil {
		return nil, err
	}
	if spec.IDVariable, err = optionalString(v, "idVariable"); err != nil {
		return nil, err
	}
	if spec.Limit, err = optionalCount(v, "limit"); err != nil {
		return nil, err
	}
	if spec.Offset, err = optionalCount(v, "offset"); err != nil {
		return nil, err
	}
	return spec, nil
}

// parseTemplate reads {subject?, predicate, object?}.
func parseTemplate(v cue.Value) (*generator.Template, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	t := &generator.Template{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "generator." + iter.Label(),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		switch iter.Label() {
		case "subject":
			t.Subject = s
		case "predicate":
			t.Predicate = s
		case "object":
			t.Object = s
		default:
			return nil, &CompileError{
				Field:   "generator." + iter.Label(),
				Message: "unknown generator field (want subject, predicate or object)",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	if t.Predicate == "" {
		return nil, &CompileError{
			Field:   "generator.predicate",
			Message: "predicate is required",
			Pos:     v.Pos(),
		}
	}
	return t, nil
}

// CompileNamespaces parses a {prefix: uri} struct.
func CompileNamespaces(v cue.Value) (map[string]string, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]string)
	for iter.Next() {
		uri, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "namespaces." + iter.Label(),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		if !namespace.IsAbsolute(uri) {
			return nil, &CompileError{
				Field:   "namespaces." + iter.Label(),
				Message: fmt.Sprintf("%q is not an absolute URI", uri),
				Pos:     iter.Value().Pos(),
			}
		}
		out[iter.Label()] = uri
	}
	return out, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: val.Pos()}
	}
	return s, nil
}

func optionalCount(v cue.Value, field string) (int, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return 0, nil
	}
	n, err := val.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be an integer", Pos: val.Pos()}
	}
	if n < 0 {
		return 0, &CompileError{Field: field, Message: "must not be negative", Pos: val.Pos()}
	}
	return int(n), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
