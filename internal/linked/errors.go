package linked

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/generator"
)

// BindingError represents an error detected by the binding layer before or
// instead of a store write.
//
// Binding errors include:
//   - Unresolved value: an attribute value has no triple encoding
//   - Read-only mutation: membership edit on a query-text view
//   - Unsupported query form: generator is neither query text nor a
//     writable template
//   - Unknown member: a view member is not a URI, entity or attribute map
//   - No syncer: remote persistence requested without a Syncer
type BindingError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// URI identifies the affected entity or view, when known.
	URI string

	// Err is the underlying error, if any.
	Err error
}

// ErrorCode categorizes binding errors.
type ErrorCode string

const (
	// ErrCodeUnresolvedValue indicates a value outside the attribute value set.
	ErrCodeUnresolvedValue ErrorCode = "UNRESOLVED_VALUE"

	// ErrCodeReadOnlyMutation indicates a membership edit on a read-only view.
	ErrCodeReadOnlyMutation ErrorCode = "READ_ONLY_MUTATION"

	// ErrCodeUnsupportedQueryForm indicates an unusable generator.
	ErrCodeUnsupportedQueryForm ErrorCode = "UNSUPPORTED_QUERY_FORM"

	// ErrCodeUnknownMember indicates a member argument of unknown type.
	ErrCodeUnknownMember ErrorCode = "UNKNOWN_MEMBER"

	// ErrCodeNoSyncer indicates remote persistence without a Syncer.
	ErrCodeNoSyncer ErrorCode = "NO_SYNCER"
)

// Error implements the error interface.
func (e *BindingError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.URI != "" {
		msg += fmt.Sprintf(" (uri=%s)", e.URI)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *BindingError) Unwrap() error {
	return e.Err
}

func newBindingError(code ErrorCode, uri string, err error, format string, args ...any) *BindingError {
	return &BindingError{Code: code, Message: fmt.Sprintf(format, args...), URI: uri, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var be *BindingError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsUnresolvedValue reports whether err is an unresolved value error.
// Matches both BindingError with ErrCodeUnresolvedValue and
// codec.ErrUnsupportedValue.
func IsUnresolvedValue(err error) bool {
	return hasCode(err, ErrCodeUnresolvedValue) || errors.Is(err, codec.ErrUnsupportedValue)
}

// IsReadOnlyMutation reports whether err is a read-only mutation error.
func IsReadOnlyMutation(err error) bool {
	return hasCode(err, ErrCodeReadOnlyMutation) || errors.Is(err, generator.ErrReadOnlyMutation)
}

// IsUnsupportedQueryForm reports whether err is an unsupported generator error.
func IsUnsupportedQueryForm(err error) bool {
	return hasCode(err, ErrCodeUnsupportedQueryForm) || errors.Is(err, generator.ErrUnsupportedQueryForm)
}

// IsUnknownMember reports whether err is an unknown member error.
func IsUnknownMember(err error) bool {
	return hasCode(err, ErrCodeUnknownMember)
}

// IsNoSyncer reports whether err is a missing syncer error.
func IsNoSyncer(err error) bool {
	return hasCode(err, ErrCodeNoSyncer)
}

// classify wraps sentinel errors from lower layers in a BindingError.
// Other errors are returned unchanged.
func classify(err error, uri string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, codec.ErrUnsupportedValue):
		return newBindingError(ErrCodeUnresolvedValue, uri, err, "value cannot be stored")
	case errors.Is(err, generator.ErrReadOnlyMutation):
		return newBindingError(ErrCodeReadOnlyMutation, uri, err, "view membership is read-only")
	case errors.Is(err, generator.ErrUnsupportedQueryForm):
		return newBindingError(ErrCodeUnsupportedQueryForm, uri, err, "unsupported generator")
	default:
		return err
	}
}
