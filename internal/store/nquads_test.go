package store

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNQuads = `<http://example.org/b1> <http://example.org/title> "Dune" .
<http://example.org/b1> <http://example.org/pages> "412"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://example.org/b1> <http://example.org/label> "Düne"@de <http://example.org/g> .
<http://example.org/b2> <http://example.org/cites> <http://example.org/b1> .
`

func TestImportExport_RoundTrip(t *testing.T) {
	src := createMemoryStore(t)
	ctx := context.Background()

	n, err := src.ImportNQuads(ctx, strings.NewReader(sampleNQuads))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	objs, err := src.Objects(ctx, ex+"b1", ex+"pages")
	require.NoError(t, err)
	assert.Equal(t, []quad.Value{integer("412")}, objs)

	var buf bytes.Buffer
	written, err := src.ExportNQuads(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	dst := createMemoryStore(t)
	_, err = dst.ImportNQuads(ctx, &buf)
	require.NoError(t, err)

	want, err := src.Triples(ctx)
	require.NoError(t, err)
	got, err := dst.Triples(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestImport_Malformed(t *testing.T) {
	s := createMemoryStore(t)
	_, err := s.ImportNQuads(context.Background(), strings.NewReader("<http://example.org/a> broken\n"))
	assert.Error(t, err)
}
