package inferrer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/contextengine/internal/community"
	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/graph"
)

func TestInferOnEmptyPartitionIsExploringColdStart(t *testing.T) {
	cfg := core.DefaultConfig()
	s := graph.New(cfg, core.NewFakeClock(0))
	p := core.NewPartition()

	res := Infer(s, p, nil, cfg)

	require.Equal(t, exploringLabel, res.ActiveTask)
	require.Equal(t, 0.0, res.Confidence)
	require.True(t, res.ColdStart)
}

func TestInferPosteriorSumsToOne(t *testing.T) {
	cfg := core.DefaultConfig()
	s := graph.New(cfg, core.NewFakeClock(0))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/1", Keywords: []string{"golang", "concurrency"}, Timestamp: 1}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/2", Keywords: []string{"golang", "channels"}, Timestamp: 2}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/1", Keywords: []string{"baking", "sourdough"}, Timestamp: 3}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/2", Keywords: []string{"baking", "yeast"}, Timestamp: 4}))

	p := community.Partition(s, 1.0, 42)
	res := Infer(s, p, []string{"golang"}, cfg)

	var total float64
	for _, prob := range res.Posterior {
		total += prob
	}
	require.InDelta(t, 1.0, total, 1e-9)
}

func TestInferColdStartBelowThresholdReportsExploring(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.ConfidenceColdStart = 1.1 // unreachable threshold forces cold start regardless of posterior shape
	s := graph.New(cfg, core.NewFakeClock(0))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://a.com/1", Keywords: []string{"golang"}, Timestamp: 1}))
	require.NoError(t, s.Ingest(graph.Visit{URL: "https://b.com/1", Keywords: []string{"baking"}, Timestamp: 2}))

	p := community.Partition(s, 1.0, 42)
	res := Infer(s, p, []string{"golang"}, cfg)

	require.True(t, res.ColdStart)
	require.Equal(t, exploringLabel, res.ActiveTask)
	require.Equal(t, 0.0, res.Confidence)
	require.NotEmpty(t, res.Posterior, "posterior must survive for telemetry even under cold start")
}
