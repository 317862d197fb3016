package community

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/graph"
)

func buildStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.New(core.DefaultConfig(), core.NewFakeClock(0))

	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/1", Keywords: []string{"golang", "concurrency"}, Timestamp: 1}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/2", Keywords: []string{"golang", "channels"}, Timestamp: 2}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/1", Keywords: []string{"baking", "sourdough"}, Timestamp: 3}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/2", Keywords: []string{"baking", "yeast"}, Timestamp: 4}))
	return s
}

func TestPartitionEmptyGraph(t *testing.T) {
	s := graph.New(core.DefaultConfig(), core.NewFakeClock(0))
	p := Partition(s, 1.0, 42)
	require.Empty(t, p.Members)
}

func TestPartitionIsDeterministic(t *testing.T) {
	s := buildStore(t)

	p1 := Partition(s, 1.0, 42)
	p2 := Partition(s, 1.0, 42)

	require.Equal(t, p1.Assignment, p2.Assignment)
	require.Equal(t, p1.Labels, p2.Labels)
}

func TestPartitionSeparatesUnrelatedTopics(t *testing.T) {
	s := buildStore(t)
	p := Partition(s, 1.0, 42)

	golangPage := core.PageID("https://a.com/1")
	bakingPage := core.PageID("https://b.com/1")

	require.NotEqual(t, p.Assignment[golangPage], p.Assignment[bakingPage],
		"two topically disjoint clusters should land in different communities")
}
