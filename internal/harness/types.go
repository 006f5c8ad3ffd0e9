package harness

import (
	"strconv"
	"strings"
)

// Trace entry kinds.
const (
	KindStep  = "step"
	KindEvent = "event"
)

// TraceEvent is one line of a scenario trace: a step as it starts, or an
// event emitted by a watched entity or view.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Kind string `json:"kind"`
	// Name is the step operation or the event name, with URIs shrunk to
	// CURIEs.
	Name string `json:"name"`
	// Target is the alias of the entity or view involved.
	Target string   `json:"target,omitempty"`
	Args   []string `json:"args,omitempty"`
	// Error is set on steps that failed.
	Error string `json:"error,omitempty"`
}

// String renders the event as one trace line:
//
//	7 event add shelf ex:dune ex:shelf
func (e TraceEvent) String() string {
	parts := []string{strconv.Itoa(e.Seq), e.Kind, e.Name}
	if e.Target != "" {
		parts = append(parts, e.Target)
	}
	parts = append(parts, e.Args...)
	if e.Error != "" {
		parts = append(parts, "error="+e.Error)
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace holds steps and events in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step failures and assertion messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var buf strings.Builder
	for _, ev := range r.Trace {
		buf.WriteString(ev.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

// Count returns the number of events named name, restricted to target
// when target is not empty.
func (r *Result) Count(name, target string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Kind != KindEvent || ev.Name != name {
			continue
		}
		if target != "" && ev.Target != target {
			continue
		}
		n++
	}
	return n
}
