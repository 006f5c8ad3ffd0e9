package store

import (
	"context"
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := createMemoryStore(t, WithRegisterer(reg))
	ctx := context.Background()

	_, err := s.ObserveNode(ctx, ex+"a", func([]quad.Quad) {})
	require.NoError(t, err)
	insert(t, s, triple("a", "p", quad.String("x")), triple("a", "q", quad.String("y")))

	m := s.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statements.WithLabelValues("insert_data")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Notifications.WithLabelValues("node")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Triples))

	count, err := testutil.GatherAndCount(reg, "linked_store_statements_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
