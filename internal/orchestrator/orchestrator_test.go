package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/graph"
	"github.com/systemshift/contextengine/internal/observe"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.MinIntervalMS = 1
	cfg.DebounceMS = 0
	store := graph.New(cfg, core.SystemClock{})
	o := New(cfg, core.SystemClock{}, store, nil, nil, observe.NewTestLogger(t), nil)
	o.Bootstrap()
	t.Cleanup(o.Shutdown)
	return o
}

func waitForContext(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := o.GetContext()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitRejectsInternalScheme(t *testing.T) {
	o := newTestOrchestrator(t)
	err := o.Submit(Visit{URL: "chrome://settings", Timestamp: 1})
	require.Error(t, err)
	require.IsType(t, &core.ValidationError{}, err)
}

func TestSubmitDebouncesRepeatedVisit(t *testing.T) {
	o := newTestOrchestrator(t)
	o.cfg.DebounceMS = 60_000

	require.NoError(t, o.Submit(Visit{URL: "https://example.com/a", Timestamp: 1}))
	err := o.Submit(Visit{URL: "https://example.com/a", Timestamp: 2})
	require.ErrorIs(t, err, ErrDebounced)
}

func TestSubmitRunsPipelineAndPublishesContext(t *testing.T) {
	o := newTestOrchestrator(t)

	require.NoError(t, o.Submit(Visit{
		URL:       "https://example.com/a",
		Title:     "Example",
		Text:      "go concurrency patterns channels goroutines",
		Timestamp: 1,
	}))

	waitForContext(t, o)

	doc, ok := o.GetContext()
	require.True(t, ok)
	require.NotEmpty(t, doc.ActiveTask.Label)

	events := o.GetPipelineEvents()
	require.NotEmpty(t, events)
	require.Equal(t, StepCompleted, events[0].Status)
}

func TestSubscribeReceivesPublishedDocument(t *testing.T) {
	o := newTestOrchestrator(t)
	id, ch := o.Subscribe()
	defer o.Unsubscribe(id)

	require.NoError(t, o.Submit(Visit{
		URL:       "https://example.com/a",
		Title:     "Example",
		Text:      "go concurrency patterns channels goroutines",
		Timestamp: 1,
	}))

	select {
	case doc := <-ch:
		require.NotEmpty(t, doc.ActiveTask.Label)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive a published document")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	o := newTestOrchestrator(t)
	id, ch := o.Subscribe()
	o.Unsubscribe(id)

	_, ok := <-ch
	require.False(t, ok)
}

func TestGetGraphLimitTruncatesNodesAndFiltersEdges(t *testing.T) {
	o := newTestOrchestrator(t)
	require.NoError(t, o.Submit(Visit{URL: "https://example.com/a", Text: "go channels concurrency", Timestamp: 1}))
	waitForContext(t, o)

	full := o.GetGraph(0)
	require.Greater(t, len(full.Nodes), 1)

	limited := o.GetGraph(1)
	require.Len(t, limited.Nodes, 1)
	kept := map[string]struct{}{limited.Nodes[0].ID: {}}
	for _, e := range limited.Edges {
		_, aOK := kept[e.Source]
		_, bOK := kept[e.Target]
		require.True(t, aOK && bOK, "edge %+v references a node outside the truncated set", e)
	}
}

func TestResetGraphClearsContext(t *testing.T) {
	o := newTestOrchestrator(t)
	require.NoError(t, o.Submit(Visit{URL: "https://example.com/a", Text: "go channels", Timestamp: 1}))
	waitForContext(t, o)

	o.ResetGraph()

	_, ok := o.GetContext()
	require.False(t, ok)
	require.Equal(t, 0, o.Store().NodeCount())
}
