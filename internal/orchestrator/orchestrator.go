// Package orchestrator implements C6, the pipeline orchestrator: the
// strictly-serial visit pipeline, its FIFO coalescing admission queue,
// the chat-context re-enrichment path, and pipeline telemetry.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/systemshift/contextengine/internal/community"
	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/enrich"
	"github.com/systemshift/contextengine/internal/extractor"
	"github.com/systemshift/contextengine/internal/graph"
	"github.com/systemshift/contextengine/internal/inferrer"
	"github.com/systemshift/contextengine/internal/observe"
)

// ErrDebounced is returned by Submit when a visit for the same URL was
// accepted too recently (spec §5 "Debouncing / admission").
var ErrDebounced = errors.New("orchestrator: visit debounced")

// internalSchemes are rejected upstream, before ever entering the
// pipeline (spec §5).
var internalSchemes = []string{"chrome://", "chrome-extension://", "about:", "file://", "edge://", "brave://"}

// Visit is the public input to Submit (spec §4.6 step 1).
type Visit struct {
	URL              string
	Title            string
	Text             string
	Timestamp        float64
	ExternalKeywords []string
}

// Orchestrator owns the graph, the last-published context document, the
// admission queue, and pipeline telemetry. It is a process-wide
// singleton created by Bootstrap and torn down by Shutdown.
type Orchestrator struct {
	cfg   core.Config
	clock core.Clock
	log   observe.Logger
	metr  *observe.Metrics

	store    *graph.Store
	snapshot core.SnapshotStore
	ext      *extractor.Breaker

	queue    *visitQueue
	wake     chan struct{}
	limiter  *rate.Limiter
	telem    *telemetryBuffer
	notifier *notifier

	chatGroup singleflight.Group

	mu            sync.RWMutex
	lastAccepted  map[string]float64
	cachedDoc     *enrich.Document
	lastPartition *core.Partition
	lastInfer     inferrer.Result
	shuttingDown  bool

	shutdownOnce sync.Once
	eg           *errgroup.Group
	egCtx        context.Context
	cancel       context.CancelFunc
}

// New constructs an Orchestrator over an existing store. Call Bootstrap
// before accepting visits.
func New(cfg core.Config, clock core.Clock, store *graph.Store, snap core.SnapshotStore, ext core.ExternalExtractor, log observe.Logger, metr *observe.Metrics) *Orchestrator {
	if log == nil {
		log = observe.NoopLogger{}
	}
	interval := time.Duration(cfg.MinIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}
	o := &Orchestrator{
		cfg:          cfg,
		clock:        clock,
		log:          log,
		metr:         metr,
		store:        store,
		snapshot:     snap,
		ext:          extractor.NewBreaker(ext, cfg.ExternalExtractorTimeout),
		queue:        newVisitQueue(),
		wake:         make(chan struct{}, 1),
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		telem:        newTelemetryBuffer(),
		notifier:     newNotifier(),
		lastAccepted: make(map[string]float64),
	}
	return o
}

// Bootstrap hydrates the graph from the snapshot store (never fatal on
// failure) and starts the background worker.
func (o *Orchestrator) Bootstrap() {
	if o.snapshot != nil {
		if data, err := o.snapshot.Read(); err != nil {
			o.log.Warn("snapshot read failed, starting empty", "error", err)
		} else if data != nil {
			if err := o.store.Hydrate(data); err != nil {
				o.log.Warn("snapshot hydrate failed, starting empty", "error", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	eg, egCtx := errgroup.WithContext(ctx)
	o.eg = eg
	o.egCtx = egCtx
	eg.Go(func() error {
		o.runWorker(egCtx)
		return nil
	})
}

// Shutdown rejects new visits immediately, drains the queue for up to
// cfg.ShutdownDrainTimeout, then writes a final snapshot.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		o.mu.Lock()
		o.shuttingDown = true
		o.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			deadline := time.Now().Add(o.cfg.ShutdownDrainTimeout)
			for o.queue.Len() > 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			close(drained)
		}()
		<-drained

		o.cancel()
		_ = o.eg.Wait()
		if o.snapshot != nil {
			data, err := o.store.Snapshot()
			if err != nil {
				o.log.Warn("final snapshot serialize failed", "error", err)
			} else if err := o.snapshot.Write(data); err != nil {
				o.log.Warn("final snapshot write failed", "error", err)
			}
		}
	})
}

// Submit admits a visit into the pipeline, subject to debounce and
// internal-scheme rejection. Acceptance is asynchronous: Submit returns
// once the visit is queued, not once it has been applied.
func (o *Orchestrator) Submit(v Visit) error {
	o.mu.RLock()
	shuttingDown := o.shuttingDown
	o.mu.RUnlock()
	if shuttingDown {
		if o.metr != nil {
			o.metr.VisitsRejected.Inc()
		}
		return &core.ShutdownInProgress{}
	}

	if isInternalScheme(v.URL) {
		if o.metr != nil {
			o.metr.VisitsRejected.Inc()
		}
		return core.NewValidationError("url", "internal scheme rejected")
	}

	o.mu.Lock()
	last, seen := o.lastAccepted[v.URL]
	debounceSeconds := float64(o.cfg.DebounceMS) / 1000.0
	if seen && v.Timestamp-last < debounceSeconds {
		o.mu.Unlock()
		if o.metr != nil {
			o.metr.VisitsDebounced.Inc()
		}
		return ErrDebounced
	}
	o.lastAccepted[v.URL] = v.Timestamp
	o.mu.Unlock()

	o.queue.Enqueue(v)
	if o.metr != nil {
		o.metr.VisitsAccepted.Inc()
	}
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func isInternalScheme(url string) bool {
	lower := strings.ToLower(url)
	for _, scheme := range internalSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) runWorker(ctx context.Context) {
	for {
		v, ok := o.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-o.wake:
				continue
			}
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return
		}
		o.runVisit(v)
	}
}

// runVisit executes the full C2->C1->C3->C4->C5 pipeline for one visit
// and publishes the result. It never partially commits: either every
// step from extract through publish succeeds and the cached document is
// replaced, or the run is recorded as failed and nothing is published.
func (o *Orchestrator) runVisit(v Visit) {
	runID := uuid.NewString()
	startedAt := o.clock.NowSeconds()
	run := Run{ID: runID, URL: v.URL, Title: v.Title, StartedAt: startedAt, Status: StepCompleted}

	keywords, extracted, step := o.stepExtract(v)
	run.Steps = append(run.Steps, step)

	if err := o.stepUpdateGraph(v, keywords, extracted, &run); err != nil {
		o.finishFailedRun(&run)
		return
	}

	partition, step := o.stepPartition()
	run.Steps = append(run.Steps, step)

	infResult, step := o.stepInfer(partition, keywords)
	run.Steps = append(run.Steps, step)

	doc, step := o.stepEnrich(partition, infResult)
	run.Steps = append(run.Steps, step)

	o.stepPublish(doc, partition, infResult, &run)

	completed := o.clock.NowSeconds()
	run.CompletedAt = &completed
	o.recordStepMetrics(run.Steps)
	o.telem.append(run)
}

func (o *Orchestrator) recordStepMetrics(steps []Step) {
	if o.metr == nil {
		return
	}
	for _, s := range steps {
		o.metr.PipelineStepDur.WithLabelValues(s.Name).Observe(s.DurationMS / 1000)
	}
}

// stepExtract resolves the visit's keywords (external first, then the
// breaker-guarded external extractor, then C2's heuristic) and always
// runs C2 for summary + snippet (spec §4.6 step 2).
func (o *Orchestrator) stepExtract(v Visit) ([]string, extractor.Result, Step) {
	started := o.clock.NowSeconds()
	extracted := extractor.Extract(v.Title, v.Text, o.cfg)

	var keywords []string
	switch {
	case len(v.ExternalKeywords) > 0:
		keywords = normalizeExternalKeywords(v.ExternalKeywords, o.cfg.MaxKeywordsPerPage)
	default:
		if kws, ok := o.ext.Extract(v.Title, v.Text); ok {
			keywords = kws
		} else {
			keywords = extracted.Keywords
		}
	}

	completed := o.clock.NowSeconds()
	return keywords, extracted, Step{
		Name: "extract", StartedAt: started, CompletedAt: completed,
		DurationMS: (completed - started) * 1000, Status: StepCompleted,
		OutputPreview: truncatePreview(strings.Join(keywords, ",")),
	}
}

func normalizeExternalKeywords(raw []string, limit int) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		n := core.NormalizeLabel(k)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (o *Orchestrator) stepUpdateGraph(v Visit, keywords []string, extracted extractor.Result, run *Run) error {
	started := o.clock.NowSeconds()
	prunedBefore := o.store.PrunedTotal()
	err := o.store.Ingest(graph.Visit{
		URL:            v.URL,
		Title:          v.Title,
		Summary:        extracted.Summary,
		ContentSnippet: extracted.Snippet,
		Keywords:       keywords,
		Timestamp:      v.Timestamp,
	})
	completed := o.clock.NowSeconds()
	status := StepCompleted
	if err != nil {
		status = StepFailed
	}
	if o.metr != nil {
		o.metr.IngestDuration.Observe(completed - started)
		o.metr.DecayDuration.Observe(o.store.LastDecaySweepSeconds())
		o.metr.GraphNodeGauge.Set(float64(o.store.NodeCount()))
		o.metr.GraphEdgeGauge.Set(float64(o.store.EdgeCount()))
		if delta := o.store.PrunedTotal() - prunedBefore; delta > 0 {
			o.metr.PrunedNodesTotal.Add(float64(delta))
		}
	}
	run.Steps = append(run.Steps, Step{
		Name: "update_graph", StartedAt: started, CompletedAt: completed,
		DurationMS: (completed - started) * 1000, Status: status,
	})
	return err
}

func (o *Orchestrator) stepPartition() (*core.Partition, Step) {
	started := o.clock.NowSeconds()
	p := community.Partition(o.store, o.cfg.CommunityResolution, o.cfg.CommunitySeed)
	completed := o.clock.NowSeconds()
	return p, Step{
		Name: "partition", StartedAt: started, CompletedAt: completed,
		DurationMS: (completed - started) * 1000, Status: StepCompleted,
		OutputPreview: truncatePreview(strings.Join(p.CommunityIDs(), ",")),
	}
}

func (o *Orchestrator) stepInfer(p *core.Partition, keywords []string) (inferrer.Result, Step) {
	started := o.clock.NowSeconds()
	res := inferrer.Infer(o.store, p, keywords, o.cfg)
	completed := o.clock.NowSeconds()
	return res, Step{
		Name: "infer", StartedAt: started, CompletedAt: completed,
		DurationMS: (completed - started) * 1000, Status: StepCompleted,
		OutputPreview: truncatePreview(res.ActiveTask),
	}
}

func (o *Orchestrator) stepEnrich(p *core.Partition, inf inferrer.Result) (enrich.Document, Step) {
	started := o.clock.NowSeconds()
	doc := enrich.Enrich(o.store, p, inf, o.clock.NowSeconds(), o.cfg)
	completed := o.clock.NowSeconds()
	return doc, Step{
		Name: "enrich", StartedAt: started, CompletedAt: completed,
		DurationMS: (completed - started) * 1000, Status: StepCompleted,
		OutputPreview: truncatePreview(doc.ActiveTask.Label),
	}
}

func (o *Orchestrator) stepPublish(doc enrich.Document, p *core.Partition, inf inferrer.Result, run *Run) {
	started := o.clock.NowSeconds()
	o.mu.Lock()
	o.cachedDoc = &doc
	o.lastPartition = p
	o.lastInfer = inf
	o.mu.Unlock()
	o.notifier.Publish(doc)
	completed := o.clock.NowSeconds()
	run.Steps = append(run.Steps, Step{
		Name: "publish", StartedAt: started, CompletedAt: completed,
		DurationMS: (completed - started) * 1000, Status: StepCompleted,
	})
}

func (o *Orchestrator) finishFailedRun(run *Run) {
	run.Status = StepFailed
	completed := o.clock.NowSeconds()
	run.CompletedAt = &completed
	o.telem.append(*run)
}

// Subscribe registers a new subscriber to published context documents
// (spec.md: Publish "notifies subscribers") and returns its id plus a
// receive-only channel of every document published from here on. Call
// Unsubscribe with the returned id once the caller is done listening.
func (o *Orchestrator) Subscribe() (string, <-chan enrich.Document) {
	return o.notifier.Subscribe()
}

// Unsubscribe removes a subscriber registered by Subscribe and closes
// its channel.
func (o *Orchestrator) Unsubscribe(id string) {
	o.notifier.Unsubscribe(id)
}

// GetContext returns the last published context document, if any.
func (o *Orchestrator) GetContext() (enrich.Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.cachedDoc == nil {
		return enrich.Document{}, false
	}
	return *o.cachedDoc, true
}

// ChatContext re-enriches the cached context against the current graph
// state (spec §4.6 "Chat-context pipeline"), collapsing concurrent calls
// via singleflight so a burst of chat requests triggers one recompute.
func (o *Orchestrator) ChatContext(ctx context.Context) (enrich.Document, bool) {
	v, err, _ := o.chatGroup.Do("chat", func() (interface{}, error) {
		o.mu.RLock()
		p := o.lastPartition
		inf := o.lastInfer
		hasContext := o.cachedDoc != nil
		o.mu.RUnlock()
		if !hasContext || p == nil {
			return enrich.Document{}, errNoContext
		}
		doc := enrich.Enrich(o.store, p, inf, o.clock.NowSeconds(), o.cfg)
		return doc, nil
	})
	if err != nil {
		return enrich.Document{}, false
	}
	return v.(enrich.Document), true
}

var errNoContext = errors.New("orchestrator: no published context yet")

// Stats is the get_stats response shape (spec §6).
type Stats struct {
	NodeCount      int  `json:"node_count"`
	EdgeCount      int  `json:"edge_count"`
	CommunityCount int  `json:"community_count"`
	MaxNodes       int  `json:"max_nodes"`
	ExtractorOK    bool `json:"extractor_healthy"`
}

// GetStats reports current graph and extractor health.
func (o *Orchestrator) GetStats() Stats {
	o.mu.RLock()
	var communityCount int
	if o.lastPartition != nil {
		communityCount = len(o.lastPartition.CommunityIDs())
	}
	o.mu.RUnlock()
	return Stats{
		NodeCount:      o.store.NodeCount(),
		EdgeCount:      o.store.EdgeCount(),
		CommunityCount: communityCount,
		MaxNodes:       o.cfg.MaxGraphNodes,
		ExtractorOK:    o.ext.Healthy(),
	}
}

// GetPipelineEvents returns the retained pipeline run records.
func (o *Orchestrator) GetPipelineEvents() []Run {
	return o.telem.snapshot()
}

// ResetGraph empties the graph and the cached context.
func (o *Orchestrator) ResetGraph() {
	o.store.Reset()
	o.mu.Lock()
	o.cachedDoc = nil
	o.lastPartition = nil
	o.lastInfer = inferrer.Result{}
	o.mu.Unlock()
}

// Store exposes the underlying graph store for read-only query access.
// internal/api's get_graph goes through GetGraph, not through Store.
func (o *Orchestrator) Store() *graph.Store { return o.store }

// GraphNode is one row of the get_graph response (spec §6).
type GraphNode struct {
	ID        string
	Type      string
	Label     string
	Community string
	Frequency int
	Summary   string
	Snippet   string
	URL       string
	PageRefs  []string
}

// GraphEdge is one row of the get_graph response (spec §6).
type GraphEdge struct {
	Source, Target     string
	Weight, BaseWeight float64
}

// GraphSnapshot is the full get_graph response.
type GraphSnapshot struct {
	Nodes          []GraphNode
	Edges          []GraphEdge
	CommunityCount int
}

// GetGraph renders the current graph plus the last computed partition's
// community labels (spec §6 get_graph). limit caps the number of nodes
// returned (debug dump truncation, SPEC_FULL.md's "Supplemented
// Features" #3); limit <= 0 means unbounded, the full graph. Edges are
// filtered to the ones whose endpoints both survive the truncation, so
// the response never references a node it didn't include.
func (o *Orchestrator) GetGraph(limit int) GraphSnapshot {
	o.mu.RLock()
	p := o.lastPartition
	o.mu.RUnlock()

	var assignment map[string]string
	var communityCount int
	if p != nil {
		assignment = p.Assignment
		communityCount = len(p.CommunityIDs())
	}

	ids := o.store.AllNodeIDs()
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	kept := make(map[string]struct{}, len(ids))
	nodes := make([]GraphNode, 0, len(ids))
	for _, id := range ids {
		n, ok := o.store.Node(id)
		if !ok {
			continue
		}
		kept[id] = struct{}{}
		gn := GraphNode{ID: id, Community: communityLabel(p, assignment, id)}
		switch n.Kind {
		case core.NodeKindPage:
			gn.Type = "page"
			gn.Label = n.Page.Title
			gn.Frequency = n.Page.VisitCount
			gn.Summary = n.Page.Summary
			gn.Snippet = n.Page.ContentSnippet
			gn.URL = n.Page.URL
		case core.NodeKindKeyword:
			gn.Type = "keyword"
			gn.Label = n.Keyword.Label
			gn.Frequency = n.Keyword.Frequency
			gn.PageRefs = n.Keyword.PageRefs
		}
		nodes = append(nodes, gn)
	}

	var edges []GraphEdge
	o.store.EachEdge(func(e core.Edge) {
		if _, ok := kept[e.A]; !ok {
			return
		}
		if _, ok := kept[e.B]; !ok {
			return
		}
		edges = append(edges, GraphEdge{Source: e.A, Target: e.B, Weight: e.Weight, BaseWeight: e.BaseWeight})
	})

	return GraphSnapshot{Nodes: nodes, Edges: edges, CommunityCount: communityCount}
}

func communityLabel(p *core.Partition, assignment map[string]string, id string) string {
	if p == nil {
		return ""
	}
	commID, ok := assignment[id]
	if !ok {
		return ""
	}
	return p.Labels[commID]
}
