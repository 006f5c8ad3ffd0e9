package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/linked/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}
	return buf.String()
}

// evaluateAssertions checks every assertion and returns the failure
// messages.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertAttribute:
			err = h.assertAttribute(a)
		case AssertMembership:
			err = h.assertMembership(a)
		case AssertQueryCount:
			err = h.assertQueryCount(ctx, a)
		case AssertEventCount:
			err = h.assertEventCount(a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertAttribute compares the target's current value of Key with Value.
// Values go through the same conversion as Set, so "@id:ex:x" and
// {"@id": "ex:x"} expect a reference.
func (h *Harness) assertAttribute(a Assertion) error {
	t, err := h.target(a.Target)
	if err != nil {
		return err
	}
	got := t.entity.Get(a.Key)
	if a.Absent {
		if got == nil {
			return nil
		}
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%s %s unset", a.Target, a.Key),
			Actual:   h.renderValue(got),
			Trace:    h.result.Trace,
		}
	}

	want, err := h.binding.Codec().FromNative(a.Value)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	if ir.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertAttribute,
		Expected: fmt.Sprintf("%s %s = %s", a.Target, a.Key, h.renderValue(want)),
		Actual:   h.renderValue(got),
		Trace:    h.result.Trace,
	}
}

// assertMembership compares the view's members, in order, with Members.
func (h *Harness) assertMembership(a Assertion) error {
	t, err := h.target(a.Target)
	if err != nil {
		return err
	}
	if t.view == nil {
		return fmt.Errorf("%s is not a view", a.Target)
	}

	want := make([]string, len(a.Members))
	for i, m := range a.Members {
		if mt, ok := h.targets[m]; ok {
			want[i] = mt.entity.URI()
			continue
		}
		want[i] = h.resolver.SafeResolve(m)
	}
	got := t.view.MemberURIs()
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertMembership,
		Expected: fmt.Sprintf("%s members %v", a.Target, h.shrinkAll(want)),
		Actual:   fmt.Sprintf("%v", h.shrinkAll(got)),
		Trace:    h.result.Trace,
	}
}

// assertQueryCount runs Query against the store and checks the row count.
func (h *Harness) assertQueryCount(ctx context.Context, a Assertion) error {
	rows, err := h.store.SelectString(ctx, a.Query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if len(rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertQueryCount,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(rows)),
	}
}

// assertEventCount counts trace events named Event, on Target when given.
// The name may use CURIEs in any segment.
func (h *Harness) assertEventCount(a Assertion) error {
	name := h.eventName(h.resolver.ResolveEventName(a.Event))
	n := h.result.Count(name, a.Target)
	if n == a.Count {
		return nil
	}
	where := ""
	if a.Target != "" {
		where = " on " + a.Target
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s events%s", a.Count, name, where),
		Actual:   fmt.Sprintf("%d", n),
		Trace:    h.result.Trace,
	}
}

func (h *Harness) shrinkAll(uris []string) []string {
	out := make([]string, len(uris))
	for i, u := range uris {
		out[i] = h.shrink(u)
	}
	return out
}
