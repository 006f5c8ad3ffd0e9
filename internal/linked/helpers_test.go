package linked_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/linked"
	"github.com/roach88/linked/internal/store"
	"github.com/roach88/linked/internal/testutil"
)

const ex = "http://example.org/"

// newBinding opens an in-memory store with the ex: prefix and binds it.
func newBinding(t *testing.T, opts ...linked.Option) (*store.Store, *linked.Binding) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	st, err := store.Open(":memory:", store.WithLogger(log))
	require.NoError(t, err)
	st.Resolver().Register(ex, "ex")

	ids := testutil.NewSequentialIDs("listener")
	opts = append([]linked.Option{linked.WithLogger(log), linked.WithIDGenerator(ids.Next)}, opts...)
	b := linked.New(st, opts...)
	t.Cleanup(func() {
		b.Close()
		st.Close()
	})
	return st, b
}

// exec runs INSERT DATA / DELETE DATA text against the store directly.
func exec(t *testing.T, st *store.Store, text string) {
	t.Helper()
	require.NoError(t, st.ExecuteString(context.Background(), text))
}

func count(t *testing.T, st *store.Store) int {
	t.Helper()
	n, err := st.Count(context.Background())
	require.NoError(t, err)
	return n
}

// changes records the value argument of every name event on e.
func changes(e *linked.Entity, name string) *[]ir.Value {
	var got []ir.Value
	e.On(name, func(ev events.Event) {
		v, _ := ev.Arg(1).(ir.Value)
		got = append(got, v)
	})
	return &got
}

// members records the URI of the member argument of every name event.
func members(v *linked.View, name string) *[]string {
	var got []string
	v.On(name, func(ev events.Event) {
		got = append(got, ev.Arg(0).(*linked.Entity).URI())
	})
	return &got
}
