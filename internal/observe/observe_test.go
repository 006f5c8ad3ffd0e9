package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/ir"
	"github.com/roach88/linked/internal/queryir"
	"github.com/roach88/linked/internal/store"
)

const ex = "http://example.org/"

func newObserver(t *testing.T) (*store.Store, *Observer) {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	st, err := store.Open(":memory:", store.WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	st.Resolver().Register(ex, "ex")
	return st, New(st, codec.New(st.Resolver()), log)
}

func exec(t *testing.T, st *store.Store, text string) {
	t.Helper()
	require.NoError(t, st.ExecuteString(context.Background(), text))
}

func TestStartObservingNode_DecodesAttributes(t *testing.T) {
	st, o := newObserver(t)
	exec(t, st, `INSERT DATA { ex:b1 ex:title "Dune" ; ex:pages 412 }`)

	var got []ir.Attributes
	require.NoError(t, o.StartObservingNode(context.Background(), "n1", "ex:b1", func(a ir.Attributes) {
		got = append(got, a)
	}))

	require.Len(t, got, 1)
	assert.Equal(t, ir.Attributes{ex + "title": ir.String("Dune"), ex + "pages": ir.Int(412)}, got[0])

	uri, ok := o.ObservedNode("n1")
	require.True(t, ok)
	assert.Equal(t, ex+"b1", uri)

	exec(t, st, `INSERT DATA { ex:b1 ex:tag "sf" }`)
	require.Len(t, got, 2)
	assert.Equal(t, ir.String("sf"), got[1][ex+"tag"])
}

func TestStartObservingNode_BeforeInsert(t *testing.T) {
	st, o := newObserver(t)

	var got []ir.Attributes
	require.NoError(t, o.StartObservingNode(context.Background(), "n1", "ex:book1", func(a ir.Attributes) {
		got = append(got, a)
	}))
	require.Len(t, got, 1)
	assert.Empty(t, got[0])

	exec(t, st, `INSERT DATA { ex:book1 ex:title "book1" ; ex:num_pages 122 }`)
	require.Len(t, got, 2)
	assert.Equal(t, ir.Attributes{ex + "title": ir.String("book1"), ex + "num_pages": ir.Int(122)}, got[1])
}

func TestStartObservingNode_ReplacesSameID(t *testing.T) {
	st, o := newObserver(t)
	ctx := context.Background()

	var first, second int
	require.NoError(t, o.StartObservingNode(ctx, "n1", "ex:b1", func(ir.Attributes) { first++ }))
	require.NoError(t, o.StartObservingNode(ctx, "n1", "ex:b2", func(ir.Attributes) { second++ }))

	nodes, _ := st.Observers()
	assert.Equal(t, 1, nodes)

	exec(t, st, `INSERT DATA { ex:b1 ex:title "a" . ex:b2 ex:title "b" }`)
	assert.Equal(t, 1, first, "only the initial callback")
	assert.Equal(t, 2, second)
}

func TestStartObservingNode_ReRegisteredDuringInitialCallback(t *testing.T) {
	st, o := newObserver(t)
	ctx := context.Background()

	var inner int
	require.NoError(t, o.StartObservingNode(ctx, "n1", "ex:b1", func(ir.Attributes) {
		if inner == 0 {
			require.NoError(t, o.StartObservingNode(ctx, "n1", "ex:b2", func(ir.Attributes) { inner++ }))
		}
	}))

	nodes, _ := st.Observers()
	assert.Equal(t, 1, nodes)
	uri, _ := o.ObservedNode("n1")
	assert.Equal(t, ex+"b2", uri)
}

func TestStopObservingNode(t *testing.T) {
	st, o := newObserver(t)
	ctx := context.Background()

	var calls int
	require.NoError(t, o.StartObservingNode(ctx, "n1", "ex:b1", func(ir.Attributes) { calls++ }))
	o.StopObservingNode("n1")
	o.StopObservingNode("unknown")

	exec(t, st, `INSERT DATA { ex:b1 ex:title "a" }`)
	assert.Equal(t, 1, calls)
	nodes, queries := o.Len()
	assert.Zero(t, nodes)
	assert.Zero(t, queries)
}

func TestStartObservingQuery_Tuples(t *testing.T) {
	st, o := newObserver(t)
	exec(t, st, `INSERT DATA { ex:b1 ex:pages 10 . ex:b2 ex:pages 30 }`)

	var got [][]Tuple
	err := o.StartObservingQuery(context.Background(), "q1", "{ ?id ex:pages ?n }", QueryOptions{Order: "DESC(?n)"}, func(rows []Tuple) {
		got = append(got, rows)
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []Tuple{
		{"id": ir.Ref(ex + "b2"), "n": ir.Int(30)},
		{"id": ir.Ref(ex + "b1"), "n": ir.Int(10)},
	}, got[0])

	exec(t, st, `INSERT DATA { ex:b3 ex:pages 20 }`)
	require.Len(t, got, 2)
	assert.Len(t, got[1], 3)
}

func TestStartObservingQuery_FollowsInsertBatches(t *testing.T) {
	st, o := newObserver(t)

	var got [][]Tuple
	err := o.StartObservingQuery(context.Background(), "q1", "{ ?s ex:num_pages ?p }", QueryOptions{Order: "?s"}, func(rows []Tuple) {
		got = append(got, rows)
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0])

	pages := func(rows []Tuple) []ir.Value {
		out := make([]ir.Value, len(rows))
		for i, r := range rows {
			out[i] = r["p"]
		}
		return out
	}

	exec(t, st, `INSERT DATA { ex:b1 ex:num_pages 10 . ex:b2 ex:num_pages 15 . ex:b3 ex:num_pages 20 }`)
	require.Len(t, got, 2)
	assert.Equal(t, []ir.Value{ir.Int(10), ir.Int(15), ir.Int(20)}, pages(got[1]))

	exec(t, st, `INSERT DATA { ex:b4 ex:num_pages 25 }`)
	require.Len(t, got, 3)
	assert.Equal(t, []ir.Value{ir.Int(10), ir.Int(15), ir.Int(20), ir.Int(25)}, pages(got[2]))
	assert.Equal(t, ir.Ref(ex+"b4"), got[2][3]["s"])
}

func TestStartObservingQuery_StopAll(t *testing.T) {
	st, o := newObserver(t)
	ctx := context.Background()
	require.NoError(t, o.StartObservingNode(ctx, "n1", "ex:b1", func(ir.Attributes) {}))
	require.NoError(t, o.StartObservingQuery(ctx, "q1", "SELECT ?s WHERE { ?s ex:p ?o }", QueryOptions{}, func([]Tuple) {}))

	o.StopAll()
	nodes, queries := st.Observers()
	assert.Zero(t, nodes)
	assert.Zero(t, queries)
}

func TestBuildQuery(t *testing.T) {
	_, o := newObserver(t)

	q, err := o.BuildQuery("SELECT ?s WHERE { ?s ex:p ?o } LIMIT 5", QueryOptions{Order: "?s", Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 2, q.Offset)
	assert.Equal(t, []queryir.OrderKey{{Var: "s"}}, q.Order)

	q, err = o.BuildQuery("{ ?s ex:p ?o }", QueryOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Limit)

	_, err = o.BuildQuery(42, QueryOptions{})
	assert.ErrorIs(t, err, generator.ErrUnsupportedQueryForm)

	_, err = o.BuildQuery("{ ?s ex:p ?o }", QueryOptions{Order: "?missing"})
	assert.Error(t, err)
}

func TestBuildQuery_ClonesSelect(t *testing.T) {
	_, o := newObserver(t)
	orig := &queryir.Select{
		Vars:  []queryir.Var{"s"},
		Where: []queryir.TriplePattern{{Subject: queryir.Var("s"), Predicate: queryir.IRI(ex + "p"), Object: queryir.Var("o")}},
	}

	q, err := o.BuildQuery(orig, QueryOptions{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Limit)
	assert.Zero(t, orig.Limit)
}
