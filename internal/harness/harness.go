package harness

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/compiler"
	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/linked"
	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/mutation"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/store"
	"github.com/roach88/linked/internal/testutil"
)

// Harness executes one scenario. Each run gets a private in-memory store
// and binding; listener ids are sequential so traces are reproducible.
type Harness struct {
	store    *store.Store
	binding  *linked.Binding
	resolver *namespace.Resolver
	views    map[string]*compiler.ViewSpec
	targets  map[string]*target
	watched  map[*linked.Entity]bool
	result   *Result
	seq      int
	log      *zap.SugaredLogger
}

// target is an aliased entity; view is set when the entity is a view.
type target struct {
	entity *linked.Entity
	view   *linked.View
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	log *zap.SugaredLogger
}

// WithLogger sets the base logger handed to the store and binding.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *runConfig) { c.log = log }
}

// Run executes a scenario and returns its result. A non-nil error means the
// scenario could not be set up; step and assertion failures are reported
// in Result.Errors.
//
// Execution flow:
//  1. Open a fresh in-memory store and register namespaces
//  2. Load the CUE specs and validate their views
//  3. Run the steps, recording each step and every event of bound targets
//  4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{log: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	decls, err := loadSpecs(scenario.Specs)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithLogger(cfg.log))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-memory store")
	}
	defer st.Close()

	resolver := st.Resolver()
	resolver.RegisterAll(decls.Namespaces)
	resolver.RegisterAll(scenario.Namespaces)

	if errs := compiler.Validate(decls.Views, resolver); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, errors.Newf("invalid view declarations: %s", strings.Join(msgs, "; "))
	}

	mode := mutation.Atomic
	if scenario.ModifyMode != "" {
		if mode, err = mutation.ParseModifyMode(scenario.ModifyMode); err != nil {
			return nil, err
		}
	}

	ids := testutil.NewSequentialIDs("listener")
	b := linked.New(st,
		linked.WithLogger(cfg.log),
		linked.WithModifyMode(mode),
		linked.WithIDGenerator(ids.Next),
		linked.WithContext(ctx),
	)
	defer b.Close()

	h := &Harness{
		store:    st,
		binding:  b,
		resolver: resolver,
		views:    make(map[string]*compiler.ViewSpec, len(decls.Views)),
		targets:  make(map[string]*target),
		watched:  make(map[*linked.Entity]bool),
		result:   NewResult(),
		log:      logger.Component(cfg.log, "harness"),
	}
	for i := range decls.Views {
		h.views[decls.Views[i].Name] = &decls.Views[i]
	}

	for i := range scenario.Steps {
		if !h.runStep(ctx, i, &scenario.Steps[i]) {
			break
		}
	}
	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		h.result.AddError(msg)
	}
	h.log.Debugw("scenario finished", "name", scenario.Name, "pass", h.result.Pass, "events", len(h.result.Trace))
	return h.result, nil
}

// loadSpecs compiles every spec file and merges their declarations.
func loadSpecs(paths []string) (*compiler.Declarations, error) {
	merged := &compiler.Declarations{Namespaces: map[string]string{}}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read spec %s", path)
		}
		decls, errs := compiler.LoadSource(path, string(src), compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, errors.Wrapf(errs[0], "failed to load spec %s", path)
		}
		maps.Copy(merged.Namespaces, decls.Namespaces)
		merged.Views = append(merged.Views, decls.Views...)
		merged.FileCount++
	}
	return merged, nil
}

// runStep executes one step and reports whether the run should continue.
func (h *Harness) runStep(ctx context.Context, index int, step *Step) bool {
	op, err := step.Op()
	if err != nil {
		h.result.AddError(fmt.Sprintf("steps[%d]: %v", index, err))
		return false
	}

	at := h.record(TraceEvent{Kind: KindStep, Name: op})
	alias, args, err := h.execute(ctx, op, step)
	h.result.Trace[at].Target = alias
	h.result.Trace[at].Args = args

	switch {
	case err == nil && step.ExpectError == "":
		h.log.Debugw("step completed", "step", index, "op", op, "target", alias)
		return true
	case err == nil:
		h.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got none", index, op, step.ExpectError))
		return false
	case step.ExpectError != "" && matchesError(err, step.ExpectError):
		h.result.Trace[at].Error = errorLabel(err)
		h.log.Debugw("step failed as expected", "step", index, "op", op, "error", err)
		return true
	default:
		h.result.Trace[at].Error = errorLabel(err)
		h.result.AddError(fmt.Sprintf("steps[%d] (%s): %v", index, op, err))
		return false
	}
}

// execute performs op and returns the alias and rendered arguments of the
// trace line.
func (h *Harness) execute(ctx context.Context, op string, step *Step) (string, []string, error) {
	switch op {
	case OpExecute:
		return "", nil, h.store.ExecuteString(ctx, step.Execute)

	case OpEntity:
		uri := h.resolver.SafeResolve(step.Entity)
		e, err := h.binding.Entity(ctx, uri)
		if err != nil {
			return step.As, []string{h.shrink(uri)}, err
		}
		alias := h.bind(step.As, e, nil)
		return alias, []string{h.shrink(e.URI())}, nil

	case OpNewEntity:
		e, err := h.binding.NewEntity(ctx, step.NewEntity)
		if err != nil {
			return step.As, nil, err
		}
		alias := h.bind(step.As, e, nil)
		return alias, []string{h.shrink(e.URI())}, nil

	case OpView:
		v, err := h.view(ctx, step.View)
		if err != nil {
			return step.As, nil, err
		}
		alias := h.bind(step.As, v.Entity, v)
		return alias, []string{h.shrink(v.URI())}, nil

	case OpSet:
		t, err := h.target(step.Set.Target)
		if err != nil {
			return step.Set.Target, nil, err
		}
		args := []string{h.shrink(h.resolver.SafeResolve(step.Set.Key)), h.renderNative(step.Set.Value)}
		return step.Set.Target, args, t.entity.Set(ctx, step.Set.Key, step.Set.Value)

	case OpUnset:
		t, err := h.target(step.Unset.Target)
		if err != nil {
			return step.Unset.Target, nil, err
		}
		args := make([]string, len(step.Unset.Keys))
		for i, k := range step.Unset.Keys {
			args[i] = h.shrink(h.resolver.SafeResolve(k))
		}
		return step.Unset.Target, args, t.entity.Unset(ctx, step.Unset.Keys...)

	case OpAdd, OpRemove:
		ms := step.Add
		if op == OpRemove {
			ms = step.Remove
		}
		t, err := h.target(ms.Target)
		if err != nil {
			return ms.Target, nil, err
		}
		if t.view == nil {
			return ms.Target, nil, errors.Newf("%s is not a view", ms.Target)
		}
		members := h.members(ms.Members)
		args := h.renderMembers(members)
		if op == OpAdd {
			return ms.Target, args, t.view.Add(ctx, members...)
		}
		return ms.Target, args, t.view.Remove(ctx, members...)

	case OpDestroy:
		t, err := h.target(step.Destroy)
		if err != nil {
			return step.Destroy, nil, err
		}
		return step.Destroy, nil, t.entity.Destroy(ctx)
	}
	return "", nil, errors.Newf("unknown operation %q", op)
}

// view binds a declared or inline view.
func (h *Harness) view(ctx context.Context, vs *ViewStep) (*linked.View, error) {
	var pattern any
	var opts []linked.ViewOption
	if vs.Name != "" {
		spec, ok := h.views[vs.Name]
		if !ok {
			return nil, errors.Newf("no view named %s in specs", vs.Name)
		}
		pattern = spec.Pattern()
		opts = spec.ViewOptions()
	} else if vs.Query != "" {
		pattern = vs.Query
	} else {
		pattern = vs.Generator
	}

	if vs.URI != "" {
		opts = append(opts, linked.WithViewURI(vs.URI))
	}
	if vs.IDVariable != "" {
		opts = append(opts, linked.WithIDVariable(vs.IDVariable))
	}
	if vs.Order != "" {
		opts = append(opts, linked.WithOrder(vs.Order))
	}
	if vs.Limit > 0 {
		opts = append(opts, linked.WithLimit(vs.Limit))
	}
	if vs.Offset > 0 {
		opts = append(opts, linked.WithOffset(vs.Offset))
	}
	if len(vs.Members) > 0 {
		opts = append(opts, linked.WithInitialMembers(h.members(vs.Members)...))
	}
	return h.binding.View(ctx, pattern, opts...)
}

// bind registers e under alias (its CURIE when alias is empty) and starts
// recording its events.
func (h *Harness) bind(alias string, e *linked.Entity, v *linked.View) string {
	if alias == "" {
		alias = h.shrink(e.URI())
	}
	h.targets[alias] = &target{entity: e, view: v}
	if !h.watched[e] {
		h.watched[e] = true
		e.On(events.All, func(ev events.Event) {
			h.record(TraceEvent{
				Kind:   KindEvent,
				Name:   h.eventName(ev.Name),
				Target: alias,
				Args:   h.renderArgs(ev.Args),
			})
		})
	}
	return alias
}

func (h *Harness) target(alias string) (*target, error) {
	t, ok := h.targets[alias]
	if !ok {
		return nil, errors.Newf("unknown target %q", alias)
	}
	return t, nil
}

// members maps aliases to their entities or views. Other values pass
// through for the view to interpret.
func (h *Harness) members(raw []any) []any {
	out := make([]any, len(raw))
	for i, m := range raw {
		out[i] = m
		s, ok := m.(string)
		if !ok {
			continue
		}
		if t, ok := h.targets[s]; ok {
			if t.view != nil {
				out[i] = t.view
			} else {
				out[i] = t.entity
			}
		}
	}
	return out
}

// record appends ev with the next sequence number and returns its index.
func (h *Harness) record(ev TraceEvent) int {
	h.seq++
	ev.Seq = h.seq
	h.result.Trace = append(h.result.Trace, ev)
	return len(h.result.Trace) - 1
}

func (h *Harness) shrink(uri string) string {
	return h.resolver.Shrink(uri)
}

// eventName shrinks the URIs of a canonical event name:
// change:http://example.org/title becomes change:ex:title.
func (h *Harness) eventName(name string) string {
	if key, ok := strings.CutPrefix(name, events.Change+":"); ok && name != events.ChangeID {
		return events.ChangeKey(h.shrink(key))
	}
	return h.shrink(name)
}

func (h *Harness) renderArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = h.renderArg(a)
	}
	return out
}

func (h *Harness) renderArg(a any) string {
	switch v := a.(type) {
	case nil:
		return "-"
	case *linked.View:
		return h.shrink(v.URI())
	case *linked.Entity:
		return h.shrink(v.URI())
	case ir.Value:
		return h.renderValue(v)
	case string:
		return h.shrink(v)
	default:
		return fmt.Sprint(v)
	}
}

// renderValue prints references as <curie> and every other value in its
// canonical JSON form.
func (h *Harness) renderValue(v ir.Value) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case ir.Ref:
		return "<" + h.shrink(val.URI()) + ">"
	case ir.List:
		sorted := val.Sorted()
		parts := make([]string, len(sorted))
		for i, elem := range sorted {
			parts[i] = h.renderValue(elem)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		b, err := ir.MarshalCanonical(v)
		if err != nil {
			return fmt.Sprint(ir.Native(v))
		}
		return string(b)
	}
}

func (h *Harness) renderNative(v any) string {
	val, err := h.binding.Codec().FromNative(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return h.renderValue(val)
}

func (h *Harness) renderMembers(members []any) []string {
	out := make([]string, len(members))
	for i, m := range members {
		switch mv := m.(type) {
		case string:
			out[i] = h.shrink(h.resolver.SafeResolve(mv))
		case map[string]any:
			out[i] = "{}"
		default:
			out[i] = h.renderArg(mv)
		}
	}
	return out
}

// matchesError reports whether err carries the binding error code want or
// mentions it.
func matchesError(err error, want string) bool {
	var be *linked.BindingError
	if errors.As(err, &be) && string(be.Code) == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}

func errorLabel(err error) string {
	var be *linked.BindingError
	if errors.As(err, &be) {
		return string(be.Code)
	}
	return "error"
}
