package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/observe"
	"github.com/roach88/linked/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	ErrViewNameEmpty        = "E101" // view has no name
	ErrUnsupportedGenerator = "E102" // generator cannot be compiled
	ErrInvalidModifiers     = "E103" // order, limit or offset rejected
	ErrDuplicateURI         = "E104" // two views declare the same URI
)

// placeholderSelf stands in for the view URI while checking generators.
const placeholderSelf = "urn:linked:view"

// ValidationError represents a schema validation error.
type ValidationError struct {
	View    string `json:"view"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: view %s: %s: %s", e.Code, e.Line, e.View, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] view %s: %s: %s", e.Code, e.View, e.Field, e.Message)
}

// StandingQuery compiles the view's generator and applies its modifiers.
// Template generators are bound to the view's URI, or to a placeholder when
// the view has none.
func StandingQuery(spec *ViewSpec, resolver *namespace.Resolver) (*generator.Compiled, *queryir.Select, error) {
	pattern, err := generator.Parse(spec.Pattern())
	if err != nil {
		return nil, nil, err
	}
	self := placeholderSelf
	if spec.URI != "" {
		self = resolver.SafeResolve(spec.URI)
	}
	var opts []generator.Option
	if spec.IDVariable != "" {
		opts = append(opts, generator.WithIDVariable(spec.IDVariable))
	}
	compiled, err := generator.Compile(pattern, self, resolver, opts...)
	if err != nil {
		return nil, nil, err
	}
	q := compiled.Query.Clone()
	if err := observe.ApplyOptions(q, spec.QueryOptions()); err != nil {
		return compiled, nil, err
	}
	return compiled, q, nil
}

// Validate checks every view against resolver.
// Returns all errors found (does not fail-fast).
func Validate(specs []ViewSpec, resolver *namespace.Resolver) []ValidationError {
	var errs []ValidationError
	uris := make(map[string]string)
	for i := range specs {
		spec := &specs[i]
		line := 0
		if spec.Pos.IsValid() {
			line = spec.Pos.Line()
		}
		if strings.TrimSpace(spec.Name) == "" {
			errs = append(errs, ValidationError{
				View: fmt.Sprintf("#%d", i), Field: "name", Message: "view name is required",
				Code: ErrViewNameEmpty, Line: line,
			})
		}

		compiled, _, err := StandingQuery(spec, resolver)
		switch {
		case compiled == nil && err != nil:
			errs = append(errs, ValidationError{
				View: spec.Name, Field: generatorField(spec), Message: err.Error(),
				Code: ErrUnsupportedGenerator, Line: line,
			})
		case err != nil:
			errs = append(errs, ValidationError{
				View: spec.Name, Field: "order", Message: err.Error(),
				Code: ErrInvalidModifiers, Line: line,
			})
		}

		if spec.URI != "" {
			uri := resolver.SafeResolve(spec.URI)
			if other, dup := uris[uri]; dup {
				errs = append(errs, ValidationError{
					View: spec.Name, Field: "uri", Message: fmt.Sprintf("URI %s is already used by view %s", uri, other),
					Code: ErrDuplicateURI, Line: line,
				})
			} else {
				uris[uri] = spec.Name
			}
		}
	}
	return errs
}

func generatorField(spec *ViewSpec) string {
	if spec.Generator != nil {
		return "generator"
	}
	return "query"
}
