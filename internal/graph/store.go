// Package graph implements C1, the Graph Store: the heterogeneous
// weighted graph of pages and keywords, its decay and pruning
// invariants, and its snapshot persistence.
//
// The store is id-keyed maps guarded by a single RWMutex, the "single
// logical mutex over the graph" of spec §5 — rather than the dense
// arena+index table sketched in spec §9's design notes. That sketch
// optimizes for cache locality at a scale this engine never reaches
// (N_max defaults to 500 nodes); a map keeps every operation's
// correctness obvious against the invariants in spec §3 without a
// separate compaction pass, at the cost of the cache-friendliness the
// design note was chasing. No caller ever retains a node pointer across
// a lock release, so there is still no long-lived object-identity
// entanglement.
package graph

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/systemshift/contextengine/internal/core"
)

// Store owns the graph: nodes, edges, and adjacency. All mutation goes
// through Store methods, which serialize writers behind mu and let
// readers share a consistent view.
type Store struct {
	mu sync.RWMutex

	cfg   core.Config
	clock core.Clock

	nodes map[string]*core.Node
	edges map[core.EdgeKey]*core.Edge
	adj   map[string]map[string]struct{} // node id -> set of neighbor ids

	prunedTotal         int     // cumulative nodes removed by decay-orphaning or cap enforcement
	lastDecaySweepSecs  float64 // wall time of the most recent decay sweep
}

// LastDecaySweepSeconds returns how long the most recent decay sweep took.
func (s *Store) LastDecaySweepSeconds() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDecaySweepSecs
}

// PrunedTotal returns the cumulative count of nodes removed by orphan
// removal or cap enforcement since the store was created.
func (s *Store) PrunedTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prunedTotal
}

// New creates an empty Store.
func New(cfg core.Config, clock core.Clock) *Store {
	return &Store{
		cfg:   cfg,
		clock: clock,
		nodes: make(map[string]*core.Node),
		edges: make(map[core.EdgeKey]*core.Edge),
		adj:   make(map[string]map[string]struct{}),
	}
}

// NodeCount returns the current number of nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the current number of edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Visit is the input to Ingest: a page-visit event plus its extracted
// keywords.
type Visit struct {
	URL            string
	Title          string
	Summary        string // non-empty replaces the page's stored summary; empty keeps it
	ContentSnippet string // non-empty replaces the page's stored snippet; empty keeps it
	Keywords       []string
	Timestamp      float64
}

// Validate rejects the malformed inputs spec §4.1 calls out: empty URL and
// non-finite timestamp. Keywords are not checked here (a non-string
// keyword cannot occur in Go's type system); empty or whitespace-only
// keywords are dropped by Ingest's normalization instead of rejected.
func (v *Visit) Validate() error {
	if v.URL == "" {
		return core.NewValidationError("url", "must not be empty")
	}
	if math.IsNaN(v.Timestamp) || math.IsInf(v.Timestamp, 0) {
		return core.NewValidationError("timestamp", "must be finite")
	}
	return nil
}

// Ingest atomically applies a visit: upserts the page node, upserts each
// distinct keyword node, reinforces page-keyword and keyword-keyword
// edges, then runs a decay sweep and cap enforcement. Ingest is total
// over legal inputs; on a validation error nothing is mutated.
//
// The mutation runs against a cloned copy of the graph first (spec §7:
// a detected invariant violation must abort the in-flight visit and
// leave published state untouched). Only once the clone passes
// checkInvariantsLocked does Ingest swap it in as the live state; a
// violation discards the clone and returns an InternalInvariantError,
// with s never having been touched.
func (s *Store) Ingest(v Visit) error {
	if err := v.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.cloneLocked()

	keywords := dedupeNormalized(v.Keywords)

	pageID := staged.upsertPage(v, keywords)
	for _, kw := range keywords {
		staged.upsertKeyword(kw, v.URL, v.Timestamp)
	}
	for _, kw := range keywords {
		staged.upsertEdge(pageID, core.KeywordID(kw), core.EdgeKindPageKeyword, v.Timestamp)
	}
	for i := 0; i < len(keywords); i++ {
		for j := i + 1; j < len(keywords); j++ {
			staged.upsertEdge(core.KeywordID(keywords[i]), core.KeywordID(keywords[j]), core.EdgeKindKeywordKeyword, v.Timestamp)
		}
	}

	staged.decaySweepLocked(v.Timestamp)
	staged.enforceCapLocked()

	if err := staged.checkInvariantsLocked(); err != nil {
		return err
	}

	s.nodes = staged.nodes
	s.edges = staged.edges
	s.adj = staged.adj
	s.prunedTotal = staged.prunedTotal
	s.lastDecaySweepSecs = staged.lastDecaySweepSecs
	return nil
}

// cloneLocked returns a deep copy of the graph: fresh node/edge/adjacency
// maps, and fresh Page/Keyword/Edge values so mutating the clone in
// place (as upsertPage/upsertKeyword/upsertEdge do) never touches s.
func (s *Store) cloneLocked() *Store {
	staged := &Store{
		cfg:                s.cfg,
		clock:              s.clock,
		nodes:              make(map[string]*core.Node, len(s.nodes)),
		edges:              make(map[core.EdgeKey]*core.Edge, len(s.edges)),
		adj:                make(map[string]map[string]struct{}, len(s.adj)),
		prunedTotal:        s.prunedTotal,
		lastDecaySweepSecs: s.lastDecaySweepSecs,
	}
	for id, n := range s.nodes {
		cp := *n
		if n.Page != nil {
			page := *n.Page
			cp.Page = &page
		}
		if n.Keyword != nil {
			kw := *n.Keyword
			kw.PageRefs = append([]string(nil), n.Keyword.PageRefs...)
			cp.Keyword = &kw
		}
		staged.nodes[id] = &cp
	}
	for key, e := range s.edges {
		cp := *e
		staged.edges[key] = &cp
	}
	for id, set := range s.adj {
		cpSet := make(map[string]struct{}, len(set))
		for nb := range set {
			cpSet[nb] = struct{}{}
		}
		staged.adj[id] = cpSet
	}
	return staged
}

func dedupeNormalized(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		n := core.NormalizeLabel(k)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (s *Store) upsertPage(v Visit, keywords []string) string {
	id := core.PageID(v.URL)
	n, ok := s.nodes[id]
	if !ok {
		n = &core.Node{
			ID:   id,
			Kind: core.NodeKindPage,
			Page: &core.PageAttrs{
				URL:          v.URL,
				FirstVisited: v.Timestamp,
				LastVisited:  v.Timestamp,
				VisitCount:   0,
			},
		}
		s.nodes[id] = n
		s.adj[id] = make(map[string]struct{})
	}
	p := n.Page
	p.VisitCount++
	if v.Timestamp > p.LastVisited {
		p.LastVisited = v.Timestamp
	}
	if v.Title != "" {
		p.Title = v.Title
	}
	if v.Summary != "" {
		p.Summary = core.TruncateUTF8(v.Summary, s.cfg.MaxSummaryLength)
	}
	if v.ContentSnippet != "" {
		p.ContentSnippet = core.TruncateUTF8(v.ContentSnippet, s.cfg.MaxContextSnippet)
	}
	return id
}

func (s *Store) upsertKeyword(label, url string, ts float64) {
	id := core.KeywordID(label)
	n, ok := s.nodes[id]
	if !ok {
		n = &core.Node{
			ID:   id,
			Kind: core.NodeKindKeyword,
			Keyword: &core.KeywordAttrs{
				Label:     label,
				FirstSeen: ts,
				LastSeen:  ts,
			},
		}
		s.nodes[id] = n
		s.adj[id] = make(map[string]struct{})
	}
	k := n.Keyword
	k.Frequency++
	if ts > k.LastSeen {
		k.LastSeen = ts
	}
	k.PageRefs = pushPageRef(k.PageRefs, url)
}

// pushPageRef pushes url to the front of refs, deduplicating by exact
// match and keeping at most MaxPageRefs entries (invariant I5).
func pushPageRef(refs []string, url string) []string {
	out := make([]string, 0, len(refs)+1)
	out = append(out, url)
	for _, r := range refs {
		if r == url {
			continue
		}
		out = append(out, r)
	}
	if len(out) > core.MaxPageRefs {
		out = out[:core.MaxPageRefs]
	}
	return out
}

func (s *Store) upsertEdge(a, b string, kind core.EdgeKind, ts float64) {
	if a == b {
		return // no self-loops (invariant I4)
	}
	key := core.MakeEdgeKey(a, b)
	e, ok := s.edges[key]
	if !ok {
		e = &core.Edge{
			A:          key.A,
			B:          key.B,
			Kind:       kind,
			BaseWeight: 0,
			Created:    ts,
			LastActive: ts,
		}
		s.edges[key] = e
		s.linkAdjacency(key.A, key.B)
	}
	e.BaseWeight++
	e.Weight = e.BaseWeight
	if ts > e.LastActive {
		e.LastActive = ts
	}
}

func (s *Store) linkAdjacency(a, b string) {
	if s.adj[a] == nil {
		s.adj[a] = make(map[string]struct{})
	}
	if s.adj[b] == nil {
		s.adj[b] = make(map[string]struct{})
	}
	s.adj[a][b] = struct{}{}
	s.adj[b][a] = struct{}{}
}

func (s *Store) unlinkAdjacency(a, b string) {
	if m, ok := s.adj[a]; ok {
		delete(m, b)
	}
	if m, ok := s.adj[b]; ok {
		delete(m, a)
	}
}

// removeEdgeLocked deletes an edge and its adjacency entries.
func (s *Store) removeEdgeLocked(key core.EdgeKey) {
	delete(s.edges, key)
	s.unlinkAdjacency(key.A, key.B)
}

// removeNodeLocked deletes a node and every edge touching it.
func (s *Store) removeNodeLocked(id string) {
	for nb := range s.adj[id] {
		s.removeEdgeLocked(core.MakeEdgeKey(id, nb))
	}
	delete(s.adj, id)
	delete(s.nodes, id)
	s.prunedTotal++
}

// checkInvariantsLocked returns a *core.InternalInvariantError the moment
// it finds a violated invariant, so callers can report it with
// errors.As and Ingest can roll back the staged mutation that produced
// it.
func (s *Store) checkInvariantsLocked() error {
	for key, e := range s.edges {
		if e.Weight < 0 || e.Weight > e.BaseWeight+1e-9 {
			return core.NewInvariantError("I1", fmt.Sprintf("edge %v weight=%f base=%f", key, e.Weight, e.BaseWeight))
		}
		if _, ok := s.nodes[e.A]; !ok {
			return core.NewInvariantError("I3", fmt.Sprintf("edge endpoint %s missing", e.A))
		}
		if _, ok := s.nodes[e.B]; !ok {
			return core.NewInvariantError("I3", fmt.Sprintf("edge endpoint %s missing", e.B))
		}
		if e.A == e.B {
			return core.NewInvariantError("I4", fmt.Sprintf("self loop on %s", e.A))
		}
		na, nb := s.nodes[e.A], s.nodes[e.B]
		if na.Kind == core.NodeKindPage && nb.Kind == core.NodeKindPage {
			return core.NewInvariantError("I4", fmt.Sprintf("page-page edge %s-%s", e.A, e.B))
		}
	}
	if len(s.nodes) > s.cfg.MaxGraphNodes {
		return core.NewInvariantError("I2", fmt.Sprintf("%d nodes exceeds max %d", len(s.nodes), s.cfg.MaxGraphNodes))
	}
	for id, n := range s.nodes {
		if n.Kind == core.NodeKindKeyword && len(n.Keyword.PageRefs) > core.MaxPageRefs {
			return core.NewInvariantError("I5", fmt.Sprintf("%s has %d page refs", id, len(n.Keyword.PageRefs)))
		}
	}
	return nil
}

// sortedNodeIDs returns every node id in lexicographic order, the stable
// ordering spec §4.1 requires for anything externally visible.
func (s *Store) sortedNodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
