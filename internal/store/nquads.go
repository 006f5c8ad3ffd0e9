package store

import (
	"context"
	"io"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"github.com/cockroachdb/errors"

	"github.com/roach88/linked/internal/queryir"
)

// importBatch bounds the size of a single INSERT DATA statement on import.
const importBatch = 500

// ImportNQuads reads N-Quads (or N-Triples) from r and inserts them. Graph
// labels are ignored: the store holds one default graph. Literals are read
// raw so typed literals reach the codec with their datatype intact.
// Returns the number of quads read.
func (s *Store) ImportNQuads(ctx context.Context, r io.Reader) (int, error) {
	reader := nquads.NewReader(r, true)
	defer reader.Close()

	var (
		batch []quad.Quad
		total int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.Execute(ctx, queryir.NewUpdate(&queryir.InsertData{Quads: batch}))
		batch = nil
		return err
	}

	for {
		q, err := reader.ReadQuad()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, errors.Wrapf(err, "read quad %d", total+1)
		}
		q.Label = nil
		batch = append(batch, q)
		total++
		if len(batch) >= importBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	s.log.Infow("imported n-quads", "count", total)
	return total, nil
}

// ExportNQuads writes every triple to w as N-Quads in insertion order.
// Returns the number of quads written.
func (s *Store) ExportNQuads(ctx context.Context, w io.Writer) (int, error) {
	quads, err := s.Triples(ctx)
	if err != nil {
		return 0, err
	}
	writer := nquads.NewWriter(w)
	for i, q := range quads {
		if err := writer.WriteQuad(q); err != nil {
			return i, errors.Wrapf(err, "write quad %d", i+1)
		}
	}
	if err := writer.Close(); err != nil {
		return len(quads), errors.Wrap(err, "close writer")
	}
	return len(quads), nil
}
