package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/contextengine/internal/core"
)

func newTestStore(t *testing.T, mutate func(*core.Config)) *Store {
	t.Helper()
	cfg := core.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, core.NewFakeClock(0))
}

func TestIngestRejectsMalformedVisit(t *testing.T) {
	s := newTestStore(t, nil)

	err := s.Ingest(Visit{URL: "", Timestamp: 1})
	require.Error(t, err)
	require.IsType(t, &core.ValidationError{}, err)
	require.Equal(t, 0, s.NodeCount())
}

func TestIngestCreatesPageAndKeywordNodes(t *testing.T) {
	s := newTestStore(t, nil)

	err := s.Ingest(Visit{
		URL:       "https://example.com/a",
		Title:     "A",
		Keywords:  []string{"go", "graphs", "go"},
		Timestamp: 1000,
	})
	require.NoError(t, err)

	require.Equal(t, 3, s.NodeCount()) // 1 page + 2 distinct keywords
	require.Equal(t, 3, s.EdgeCount()) // 2 page-keyword + 1 keyword-keyword

	pageID := core.PageID("https://example.com/a")
	n, ok := s.Node(pageID)
	require.True(t, ok)
	require.Equal(t, core.NodeKindPage, n.Kind)
	require.Equal(t, 1, n.Page.VisitCount)
}

func TestIngestReinforcesRepeatedVisit(t *testing.T) {
	s := newTestStore(t, nil)
	v := Visit{URL: "https://example.com/a", Keywords: []string{"go"}, Timestamp: 1000}

	require.NoError(t, s.Ingest(v))
	v.Timestamp = 2000
	require.NoError(t, s.Ingest(v))

	n, ok := s.Node(core.PageID(v.URL))
	require.True(t, ok)
	require.Equal(t, 2, n.Page.VisitCount)
	require.Equal(t, float64(2000), n.Page.LastVisited)
}

func TestDecaySweepPrunesWeakEdges(t *testing.T) {
	s := newTestStore(t, func(c *core.Config) {
		c.DecayRatePerHour = 10 // aggressive decay for a fast test
		c.EdgePruneThreshold = 0.5
	})
	require.NoError(t, s.Ingest(Visit{URL: "https://example.com/a", Keywords: []string{"go"}, Timestamp: 0}))
	require.Equal(t, 1, s.EdgeCount())

	s.DecaySweep(3600 * 5) // five hours of aggressive decay

	require.Equal(t, 0, s.EdgeCount())
	require.Equal(t, 0, s.NodeCount()) // orphaned nodes removed too
	require.Greater(t, s.PrunedTotal(), 0)
}

func TestEnforceCapRemovesWeakestNodesFirst(t *testing.T) {
	s := newTestStore(t, func(c *core.Config) { c.MaxGraphNodes = 2 })

	require.NoError(t, s.Ingest(Visit{URL: "https://example.com/weak", Keywords: []string{"weak"}, Timestamp: 0}))
	require.NoError(t, s.Ingest(Visit{URL: "https://example.com/strong", Keywords: []string{"strong"}, Timestamp: 100}))

	require.LessOrEqual(t, s.NodeCount(), 2)
	_, ok := s.Node(core.PageID("https://example.com/strong"))
	require.True(t, ok, "most recently touched page should survive cap enforcement")
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Ingest(Visit{URL: "https://example.com/a", Keywords: []string{"go", "graphs"}, Timestamp: 1000}))

	data, err := s.Snapshot()
	require.NoError(t, err)

	dst := newTestStore(t, nil)
	require.NoError(t, dst.Hydrate(data))
	require.Equal(t, s.NodeCount(), dst.NodeCount())
	require.Equal(t, s.EdgeCount(), dst.EdgeCount())
}
