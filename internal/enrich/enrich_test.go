package enrich

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/contextengine/internal/community"
	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/graph"
	"github.com/systemshift/contextengine/internal/inferrer"
)

func TestEnrichDegradesOnFewPages(t *testing.T) {
	cfg := core.DefaultConfig()
	s := graph.New(cfg, core.NewFakeClock(0))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/1", Keywords: []string{"golang"}, Timestamp: 1}))

	p := community.Partition(s, 1.0, 42)
	inf := inferrer.Infer(s, p, []string{"golang"}, cfg)

	doc := Enrich(s, p, inf, 100, cfg)

	require.Nil(t, doc.Cluster)
	require.Empty(t, doc.AllTasks)
	require.Empty(t, doc.Bridges)
}

func TestEnrichColdStartProducesExploringWithNoCluster(t *testing.T) {
	cfg := core.DefaultConfig()
	s := graph.New(cfg, core.NewFakeClock(0))
	p := core.NewPartition()
	inf := inferrer.Infer(s, p, nil, cfg)

	doc := Enrich(s, p, inf, 0, cfg)

	require.Equal(t, "Exploring", doc.ActiveTask.Label)
	require.Nil(t, doc.Cluster)
}

func TestEnrichColdStartOmitsActiveTaskKeywordsEvenWithCommunities(t *testing.T) {
	// Same multi-community fixture as TestEnrichPopulatesClusterWithEnoughPages,
	// but with an unreachable ConfidenceColdStart (mirroring
	// inferrer_test.go's TestInferColdStartBelowThresholdReportsExploring) so
	// Infer reports ColdStart despite a non-empty partition existing.
	// ActiveTask.Keywords must stay empty regardless of which community
	// bestCommunity's fallback would otherwise resolve to.
	cfg := core.DefaultConfig()
	cfg.ConfidenceColdStart = 1.1
	s := graph.New(cfg, core.NewFakeClock(0))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/1", Keywords: []string{"golang", "concurrency"}, Timestamp: 1}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/2", Keywords: []string{"golang", "channels"}, Timestamp: 2}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/1", Keywords: []string{"baking", "sourdough"}, Timestamp: 3}))

	p := community.Partition(s, 1.0, 42)
	inf := inferrer.Infer(s, p, []string{"golang"}, cfg)
	require.True(t, inf.ColdStart)

	doc := Enrich(s, p, inf, 100, cfg)

	require.Equal(t, "Exploring", doc.ActiveTask.Label)
	require.Empty(t, doc.ActiveTask.Keywords)
	require.Nil(t, doc.Cluster)
}

func TestEnrichPopulatesClusterWithEnoughPages(t *testing.T) {
	// Two distinct topic clusters (so the partition yields >= 2
	// communities, a precondition for a non-cold-start result) and at
	// least 3 pages total (enrich's own degrade threshold).
	cfg := core.DefaultConfig()
	s := graph.New(cfg, core.NewFakeClock(0))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/1", Keywords: []string{"golang", "concurrency"}, Timestamp: 1}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/2", Keywords: []string{"golang", "channels"}, Timestamp: 2}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/1", Keywords: []string{"baking", "sourdough"}, Timestamp: 3}))

	p := community.Partition(s, 1.0, 42)
	inf := inferrer.Infer(s, p, []string{"golang"}, cfg)
	require.False(t, inf.ColdStart)

	doc := Enrich(s, p, inf, 100, cfg)

	require.NotNil(t, doc.Cluster)
	require.NotEmpty(t, doc.Trajectory)
}
