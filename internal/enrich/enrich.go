// Package enrich implements C5, the context enricher: it assembles the
// structured context document from graph state, the current partition,
// and the inferrer's output.
package enrich

import (
	"sort"

	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/inferrer"
)

const maxTaskKeywords = 8
const maxBridges = 10
const maxClusterKeyPages = 6
const maxClusterRelationships = 10

// GraphView is the read-only surface C5 needs from C1.
type GraphView interface {
	Node(id string) (core.Node, bool)
	Neighbors(id string) []string
	WeightedDegree(id string) float64
	RecentPages(limit int) []core.PageAttrs
	SubgraphInduced(members []string) (nodeIDs []string, edges []core.Edge)
	KStrongestKeywordKeywordEdges(members []string, k int) []core.Edge
	BridgingKeywords(assignment map[string]string) []string
}

// ActiveTask is context document section 1.
type ActiveTask struct {
	Label      string
	Confidence float64
	Entropy    float64
	Keywords   []string
}

// TrajectoryPage is one entry of section 2.
type TrajectoryPage struct {
	Title      string
	URL        string
	Summary    string
	Snippet    *string
	Topics     []string
	AgeSeconds float64
}

// ClusterPage is a key_pages entry of section 3.
type ClusterPage struct {
	Title      string
	URL        string
	VisitCount int
	Summary    string
	Snippet    *string
}

// KeywordRelationship is a key_relationships entry of section 3.
type KeywordRelationship struct {
	A      string
	B      string
	Weight float64
}

// Cluster is context document section 3.
type Cluster struct {
	PageCount         int
	KeywordCount      int
	InternalEdgeCount int
	KeyPages          []ClusterPage
	KeyRelationships  []KeywordRelationship
}

// TaskProbability is an all_tasks entry of section 4.
type TaskProbability struct {
	Label       string
	Probability float64
}

// Bridge is a bridges entry of section 5.
type Bridge struct {
	Keyword      string
	Communities  []string
}

// Document is the full structured context document, spec §4.5.
type Document struct {
	ActiveTask ActiveTask
	Trajectory []TrajectoryPage
	Cluster    *Cluster
	AllTasks   []TaskProbability
	Bridges    []Bridge
}

// Enrich assembles a Document from the current graph, partition, and
// inferrer result, applying the graceful-degradation rule: with fewer
// than 3 pages or a cold-start result, sections 3-5 are left empty.
func Enrich(gv GraphView, p *core.Partition, inf inferrer.Result, now float64, cfg core.Config) Document {
	doc := Document{
		ActiveTask: buildActiveTask(gv, p, inf),
		Trajectory: buildTrajectory(gv, now, cfg),
	}

	pageCount := countPages(gv, cfg)
	degraded := pageCount < 3 || inf.ColdStart
	if degraded {
		return doc
	}

	cStar, ok := bestCommunity(p, inf)
	if ok {
		doc.Cluster = buildCluster(gv, p, cStar, cfg)
	}
	doc.AllTasks = buildAllTasks(p, inf)
	doc.Bridges = buildBridges(gv, p)
	return doc
}

func countPages(gv GraphView, cfg core.Config) int {
	return len(gv.RecentPages(cfg.MaxGraphNodes))
}

func bestCommunity(p *core.Partition, inf inferrer.Result) (string, bool) {
	var matches []string
	for _, id := range p.CommunityIDs() {
		if p.Labels[id] == inf.ActiveTask {
			matches = append(matches, id)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	// Fall back to the highest-posterior community id directly, in case
	// two communities share a label (or none carries it).
	best, bestP, found := "", -1.0, false
	for _, id := range p.CommunityIDs() {
		if v := inf.Posterior[id]; v > bestP {
			best, bestP, found = id, v, true
		}
	}
	return best, found
}

func buildActiveTask(gv GraphView, p *core.Partition, inf inferrer.Result) ActiveTask {
	at := ActiveTask{
		Label:      inf.ActiveTask,
		Confidence: inf.Confidence,
		Entropy:    inf.Entropy,
	}
	if inf.ColdStart {
		// _cold_start_context's keywords: [] (original_source/backend/bayesian.py)
		// — no community is trustworthy yet, so none gets credited here.
		return at
	}
	cStar, ok := bestCommunity(p, inf)
	if !ok {
		return at
	}
	at.Keywords = topKeywordsByDegree(gv, p.Members[cStar], maxTaskKeywords)
	return at
}

func topKeywordsByDegree(gv GraphView, members []string, limit int) []string {
	type cand struct {
		label  string
		degree float64
	}
	var cands []cand
	for _, id := range members {
		n, ok := gv.Node(id)
		if !ok || n.Kind != core.NodeKindKeyword {
			continue
		}
		cands = append(cands, cand{label: n.Keyword.Label, degree: gv.WeightedDegree(id)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].degree != cands[j].degree {
			return cands[i].degree > cands[j].degree
		}
		return cands[i].label < cands[j].label
	})
	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.label)
	}
	return out
}

func buildTrajectory(gv GraphView, now float64, cfg core.Config) []TrajectoryPage {
	pages := gv.RecentPages(cfg.MaxTrajectoryPages)
	out := make([]TrajectoryPage, 0, len(pages))
	for i, p := range pages {
		tp := TrajectoryPage{
			Title:      p.Title,
			URL:        p.URL,
			Summary:    p.Summary,
			Topics:     neighborKeywordLabels(gv, core.PageID(p.URL), 8),
			AgeSeconds: now - p.LastVisited,
		}
		if i < cfg.MaxDeepContentPages {
			snippet := p.ContentSnippet
			tp.Snippet = &snippet
		}
		out = append(out, tp)
	}
	return out
}

func neighborKeywordLabels(gv GraphView, pageID string, limit int) []string {
	var labels []string
	for _, nb := range gv.Neighbors(pageID) {
		n, ok := gv.Node(nb)
		if !ok || n.Kind != core.NodeKindKeyword {
			continue
		}
		labels = append(labels, n.Keyword.Label)
		if len(labels) >= limit {
			break
		}
	}
	return labels
}

func buildCluster(gv GraphView, p *core.Partition, cStar string, cfg core.Config) *Cluster {
	members := p.Members[cStar]
	nodeIDs, edges := gv.SubgraphInduced(members)

	var pageCount, keywordCount int
	var pages []core.PageAttrs
	for _, id := range nodeIDs {
		n, ok := gv.Node(id)
		if !ok {
			continue
		}
		switch n.Kind {
		case core.NodeKindPage:
			pageCount++
			pages = append(pages, *n.Page)
		case core.NodeKindKeyword:
			keywordCount++
		}
	}

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].VisitCount != pages[j].VisitCount {
			return pages[i].VisitCount > pages[j].VisitCount
		}
		if pages[i].LastVisited != pages[j].LastVisited {
			return pages[i].LastVisited > pages[j].LastVisited
		}
		return pages[i].URL < pages[j].URL
	})
	if len(pages) > maxClusterKeyPages {
		pages = pages[:maxClusterKeyPages]
	}

	keyPages := make([]ClusterPage, 0, len(pages))
	for i, pg := range pages {
		cp := ClusterPage{Title: pg.Title, URL: pg.URL, VisitCount: pg.VisitCount, Summary: pg.Summary}
		if i < cfg.MaxDeepContentPagesCluster {
			snippet := pg.ContentSnippet
			cp.Snippet = &snippet
		}
		keyPages = append(keyPages, cp)
	}

	kk := gv.KStrongestKeywordKeywordEdges(members, maxClusterRelationships)
	rels := make([]KeywordRelationship, 0, len(kk))
	for _, e := range kk {
		rels = append(rels, KeywordRelationship{A: keywordLabel(gv, e.A), B: keywordLabel(gv, e.B), Weight: e.Weight})
	}

	return &Cluster{
		PageCount:         pageCount,
		KeywordCount:      keywordCount,
		InternalEdgeCount: len(edges),
		KeyPages:          keyPages,
		KeyRelationships:  rels,
	}
}

func keywordLabel(gv GraphView, id string) string {
	n, ok := gv.Node(id)
	if !ok || n.Keyword == nil {
		return id
	}
	return n.Keyword.Label
}

func buildAllTasks(p *core.Partition, inf inferrer.Result) []TaskProbability {
	ids := p.CommunityIDs()
	out := make([]TaskProbability, 0, len(ids))
	for _, id := range ids {
		out = append(out, TaskProbability{Label: p.Labels[id], Probability: inf.Posterior[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

func buildBridges(gv GraphView, p *core.Partition) []Bridge {
	keywordIDs := gv.BridgingKeywords(p.Assignment)
	out := make([]Bridge, 0, len(keywordIDs))
	for _, id := range keywordIDs {
		comms := make(map[string]struct{})
		for _, nb := range gv.Neighbors(id) {
			if c, ok := p.CommunityOf(nb); ok {
				comms[p.Labels[c]] = struct{}{}
			}
		}
		labels := make([]string, 0, len(comms))
		for l := range comms {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		out = append(out, Bridge{Keyword: keywordLabel(gv, id), Communities: labels})
		if len(out) >= maxBridges {
			break
		}
	}
	return out
}
