package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/linked/internal/codec"
	"github.com/roach88/linked/internal/queryir"
)

const ex = "http://example.org/"

// createTestStore opens a file-backed store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.Resolver().Register(ex, "ex")
	return s
}

// createMemoryStore opens an in-memory store.
func createMemoryStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	s, err := Open(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.Resolver().Register(ex, "ex")
	return s
}

func triple(s, p string, o quad.Value) quad.Quad {
	return quad.Quad{Subject: quad.IRI(ex + s), Predicate: quad.IRI(ex + p), Object: o}
}

func integer(n string) quad.Value {
	return quad.TypedString{Value: quad.String(n), Type: codec.XSDInteger}
}

func insert(t *testing.T, s *Store, quads ...quad.Quad) {
	t.Helper()
	require.NoError(t, s.Execute(context.Background(), queryir.NewUpdate(&queryir.InsertData{Quads: quads})))
}
