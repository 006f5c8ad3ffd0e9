package linked_test

import (
	"context"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/events"
	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/linked"
)

var holds = map[string]any{"predicate": "ex:holds"}

func TestView_HubAddAndRemove(t *testing.T) {
	st, b := newBinding(t)
	ctx := context.Background()

	v, err := b.View(ctx, holds)
	require.NoError(t, err)
	assert.Equal(t, generator.Hub, v.Generator().Kind())
	assert.True(t, v.ReadWrite())
	assert.Equal(t, linked.ViewLive, v.ViewState())
	assert.Zero(t, v.Len())

	require.NoError(t, v.Add(ctx, map[string]any{}, map[string]any{}, map[string]any{}))
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 3, count(t, st))

	removed := v.At(0)
	require.NoError(t, v.Remove(ctx, removed))
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 2, count(t, st))
	assert.False(t, v.Contains(removed.URI()))
	assert.False(t, removed.Destroyed(), "removing a member leaves the entity alone")
	assert.Equal(t, linked.ViewLive, v.ViewState())
}

func TestView_MembershipEvents(t *testing.T) {
	st, b := newBinding(t)
	ctx := context.Background()

	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	added := members(v, events.Add)
	gone := members(v, events.Remove)

	require.NoError(t, v.Add(ctx, "ex:b1", "ex:b2"))
	assert.Equal(t, []string{ex + "b1", ex + "b2"}, *added)

	exec(t, st, `DELETE DATA { ex:shelf ex:holds ex:b1 }`)
	assert.Equal(t, []string{ex + "b1"}, *gone)
	assert.Equal(t, []string{ex + "b2"}, v.MemberURIs())

	exec(t, st, `INSERT DATA { ex:shelf ex:holds ex:b3 }`)
	assert.Equal(t, []string{ex + "b1", ex + "b2", ex + "b3"}, *added)
}

func TestView_ForwardsMemberChanges(t *testing.T) {
	_, b := newBinding(t)
	ctx := context.Background()

	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	require.NoError(t, v.Add(ctx, "ex:b1"))
	titles := changes(v.Entity, "change:ex:title")

	m := v.At(0)
	require.NotNil(t, m)
	require.NoError(t, m.Set(ctx, "ex:title", "Dune"))
	assert.Equal(t, []ir.Value{ir.String("Dune")}, *titles)

	require.NoError(t, v.Remove(ctx, "ex:b1"))
	require.NoError(t, m.Set(ctx, "ex:title", "Emma"))
	assert.Len(t, *titles, 1, "removed members are no longer forwarded")
}

func TestView_SetFromAddHandlerReplacesStoredValue(t *testing.T) {
	st, b := newBinding(t)
	exec(t, st, `INSERT DATA { ex:b1 ex:read false }`)
	ctx := context.Background()

	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	v.On(events.Add, func(ev events.Event) {
		m := ev.Arg(0).(*linked.Entity)
		assert.NoError(t, m.Set(ctx, "ex:read", true))
	})

	exec(t, st, `INSERT DATA { ex:shelf ex:holds ex:b1 }`)

	objects, err := st.Objects(ctx, ex+"b1", ex+"read")
	require.NoError(t, err)
	assert.Equal(t, []quad.Value{quad.TypedString{Value: "true", Type: quad.IRI(codec.XSDBoolean)}}, objects)

	m, ok := b.Lookup("ex:b1")
	require.True(t, ok)
	assert.Equal(t, ir.Bool(true), m.Get("ex:read"))
	assert.True(t, m.Initialized())
}

func TestView_SpokeFromExistingData(t *testing.T) {
	st, b := newBinding(t)
	exec(t, st, `INSERT DATA { ex:b1 ex:author ex:alice . ex:b2 ex:author ex:alice . ex:b9 ex:author ex:bob }`)
	ctx := context.Background()

	spoke := map[string]string{"subject": "?id", "predicate": "ex:author", "object": "<>"}
	v, err := b.View(ctx, spoke, linked.WithViewURI("ex:alice"), linked.WithInitialMembers("ex:b3"))
	require.NoError(t, err)

	assert.Equal(t, generator.Spoke, v.Generator().Kind())
	assert.Equal(t, []string{ex + "b1", ex + "b2", ex + "b3"}, v.MemberURIs())
	assert.Equal(t, 4, count(t, st))
	for _, m := range v.Members() {
		assert.True(t, m.Initialized(), m.URI())
	}

	again, err := b.View(ctx, spoke, linked.WithViewURI("ex:alice"))
	require.NoError(t, err)
	assert.Same(t, v, again)
}

func TestView_ResetOnFirstPopulation(t *testing.T) {
	st, b := newBinding(t)
	exec(t, st, `INSERT DATA { ex:shelf ex:holds ex:b1 }`)
	ctx := context.Background()

	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "b1"}, v.MemberURIs())

	m, ok := b.Lookup("ex:b1")
	require.True(t, ok)
	assert.Same(t, m, v.At(0), "members share identity with the binding")
	assert.Nil(t, v.At(5))
}

func TestView_ReadOnlyQuery(t *testing.T) {
	st, b := newBinding(t)
	exec(t, st, `INSERT DATA { ex:b1 ex:pages 10 . ex:b2 ex:pages 30 . ex:b3 ex:pages 20 }`)
	ctx := context.Background()

	v, err := b.View(ctx, "{ ?id ex:pages ?n }", linked.WithOrder("DESC(?n)"), linked.WithLimit(2))
	require.NoError(t, err)
	assert.False(t, v.ReadWrite())
	assert.Equal(t, []string{ex + "b2", ex + "b3"}, v.MemberURIs())

	added := members(v, events.Add)
	gone := members(v, events.Remove)
	exec(t, st, `INSERT DATA { ex:b4 ex:pages 40 }`)
	assert.Equal(t, []string{ex + "b4", ex + "b2"}, v.MemberURIs())
	assert.Equal(t, []string{ex + "b4"}, *added)
	assert.Equal(t, []string{ex + "b3"}, *gone)

	before := count(t, st)
	err = v.Add(ctx, "ex:b5")
	require.Error(t, err)
	assert.True(t, linked.IsReadOnlyMutation(err))
	err = v.Remove(ctx, "ex:b4")
	assert.True(t, linked.IsReadOnlyMutation(err))
	assert.Equal(t, before, count(t, st))
}

func TestView_ReadOnlyRejectsInitialMembers(t *testing.T) {
	st, b := newBinding(t)
	ctx := context.Background()

	_, err := b.View(ctx, "SELECT ?id WHERE { ?id ex:pages ?n }", linked.WithInitialMembers(map[string]any{"ex:pages": 1}))
	require.Error(t, err)
	assert.True(t, linked.IsReadOnlyMutation(err))
	assert.Zero(t, count(t, st))
}

func TestView_UnsupportedGenerators(t *testing.T) {
	_, b := newBinding(t)
	ctx := context.Background()

	tests := []struct {
		name string
		gen  any
	}{
		{"number", 42},
		{"empty text", "  "},
		{"no member slot", map[string]any{"subject": "ex:a", "predicate": "ex:p", "object": "ex:b"}},
		{"two member slots", map[string]any{"subject": "?id", "predicate": "ex:p", "object": "?x"}},
		{"missing id variable", "SELECT ?s WHERE { ?s ex:p ?o }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.View(ctx, tt.gen)
			require.Error(t, err)
			assert.True(t, linked.IsUnsupportedQueryForm(err), err.Error())
		})
	}
}

func TestView_CustomIDVariable(t *testing.T) {
	st, b := newBinding(t)
	exec(t, st, `INSERT DATA { ex:b1 ex:pages 10 }`)

	v, err := b.View(context.Background(), "SELECT ?book WHERE { ?book ex:pages ?n }", linked.WithIDVariable("?book"))
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "b1"}, v.MemberURIs())
}

func TestView_UnknownMemberWritesNothing(t *testing.T) {
	st, b := newBinding(t)
	ctx := context.Background()
	v, err := b.View(ctx, holds)
	require.NoError(t, err)

	err = v.Add(ctx, map[string]any{"ex:title": "new"}, 42)
	require.Error(t, err)
	assert.True(t, linked.IsUnknownMember(err))
	assert.Zero(t, count(t, st), "no entity is created when any member is invalid")

	err = v.Remove(ctx, map[string]any{"ex:title": "new"})
	assert.True(t, linked.IsUnknownMember(err))
}

func TestView_RemoveIgnoresNonMembers(t *testing.T) {
	st, b := newBinding(t)
	exec(t, st, `INSERT DATA { ex:other ex:holds ex:b1 }`)
	ctx := context.Background()
	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)

	require.NoError(t, v.Remove(ctx, "ex:b1"))
	assert.Equal(t, 1, count(t, st))
}

func TestView_AddEntitiesAndViews(t *testing.T) {
	_, b := newBinding(t)
	ctx := context.Background()
	v, err := b.View(ctx, holds, linked.WithViewURI("ex:library"))
	require.NoError(t, err)
	shelf, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	book, err := b.Entity(ctx, "ex:b1")
	require.NoError(t, err)

	require.NoError(t, v.Add(ctx, book, shelf, "ex:b1"))
	assert.Equal(t, []string{ex + "b1", ex + "shelf"}, v.MemberURIs())
	assert.Same(t, shelf.Entity, v.At(1))
}

func TestView_DestroyedMemberLeaves(t *testing.T) {
	_, b := newBinding(t)
	ctx := context.Background()
	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	require.NoError(t, v.Add(ctx, "ex:b1", "ex:b2"))
	gone := members(v, events.Remove)

	m := v.At(0)
	require.NoError(t, m.Destroy(ctx))
	assert.Equal(t, []string{ex + "b1"}, *gone)
	assert.Equal(t, []string{ex + "b2"}, v.MemberURIs())
}

func TestView_DestroyStopsQuery(t *testing.T) {
	st, b := newBinding(t)
	ctx := context.Background()
	v, err := b.View(ctx, holds, linked.WithViewURI("ex:shelf"))
	require.NoError(t, err)
	require.NoError(t, v.Add(ctx, "ex:b1"))

	require.NoError(t, v.Destroy(ctx))
	_, queries := st.Observers()
	assert.Zero(t, queries)
	assert.Error(t, v.Add(ctx, "ex:b2"))
}
