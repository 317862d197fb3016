package graph

import (
	"sort"

	"github.com/systemshift/contextengine/internal/core"
)

// Node returns a copy of the node with the given id, and whether it exists.
func (s *Store) Node(id string) (core.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return core.Node{}, false
	}
	return cloneNode(n), true
}

func cloneNode(n *core.Node) core.Node {
	out := core.Node{ID: n.ID, Kind: n.Kind}
	if n.Page != nil {
		p := *n.Page
		out.Page = &p
	}
	if n.Keyword != nil {
		k := *n.Keyword
		k.PageRefs = append([]string(nil), n.Keyword.PageRefs...)
		out.Keyword = &k
	}
	return out
}

// Neighbors returns the ids of every node adjacent to id, lexicographically sorted.
func (s *Store) Neighbors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.adj[id]))
	for nb := range s.adj[id] {
		out = append(out, nb)
	}
	sort.Strings(out)
	return out
}

// EdgeWeight returns the current decayed weight between a and b, and
// whether an edge exists between them.
func (s *Store) EdgeWeight(a, b string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[core.MakeEdgeKey(a, b)]
	if !ok {
		return 0, false
	}
	return e.Weight, true
}

// AllNodeIDs returns every node id, lexicographically sorted.
func (s *Store) AllNodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedNodeIDs()
}

// EachEdge calls fn once per edge in a stable order (sorted by endpoint
// pair), for snapshotting and export.
func (s *Store) EachEdge(fn func(e core.Edge)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]core.EdgeKey, 0, len(s.edges))
	for k := range s.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})
	for _, k := range keys {
		fn(*s.edges[k])
	}
}

// RecentPages returns up to limit pages, most-recently-visited first,
// ties broken lexicographically by URL.
func (s *Store) RecentPages(limit int) []core.PageAttrs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]core.PageAttrs, 0)
	for _, n := range s.nodes {
		if n.Kind == core.NodeKindPage {
			pages = append(pages, *n.Page)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].LastVisited != pages[j].LastVisited {
			return pages[i].LastVisited > pages[j].LastVisited
		}
		return pages[i].URL < pages[j].URL
	})
	if limit >= 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages
}

// SubgraphInduced returns the node ids and edges whose both endpoints lie
// in the given member set.
func (s *Store) SubgraphInduced(members []string) (nodeIDs []string, edges []core.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, ok := s.nodes[m]; ok {
			set[m] = struct{}{}
			nodeIDs = append(nodeIDs, m)
		}
	}
	sort.Strings(nodeIDs)
	for key, e := range s.edges {
		if _, ok := set[key.A]; !ok {
			continue
		}
		if _, ok := set[key.B]; !ok {
			continue
		}
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return nodeIDs, edges
}

// KStrongestKeywordKeywordEdges returns up to k keyword-keyword edges
// strictly inside the given community members, sorted by decayed weight
// descending then by endpoint pair lexicographically.
func (s *Store) KStrongestKeywordKeywordEdges(members []string, k int) []core.Edge {
	_, edges := s.SubgraphInduced(members)
	var kk []core.Edge
	for _, e := range edges {
		if e.Kind == core.EdgeKindKeywordKeyword {
			kk = append(kk, e)
		}
	}
	sort.Slice(kk, func(i, j int) bool {
		if kk[i].Weight != kk[j].Weight {
			return kk[i].Weight > kk[j].Weight
		}
		if kk[i].A != kk[j].A {
			return kk[i].A < kk[j].A
		}
		return kk[i].B < kk[j].B
	})
	if len(kk) > k {
		kk = kk[:k]
	}
	return kk
}

// BridgingKeywords returns every keyword node whose neighbor set
// intersects two or more communities, given the partition's assignment.
func (s *Store) BridgingKeywords(assignment map[string]string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bridges []string
	for id, n := range s.nodes {
		if n.Kind != core.NodeKindKeyword {
			continue
		}
		seen := make(map[string]struct{})
		for nb := range s.adj[id] {
			if c, ok := assignment[nb]; ok {
				seen[c] = struct{}{}
			}
		}
		if len(seen) >= 2 {
			bridges = append(bridges, id)
		}
	}
	sort.Strings(bridges)
	return bridges
}

// Reset empties the graph.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*core.Node)
	s.edges = make(map[core.EdgeKey]*core.Edge)
	s.adj = make(map[string]map[string]struct{})
}

// WeightedDegree returns the sum of decayed edge weights incident on id.
func (s *Store) WeightedDegree(id string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weightedDegreeLocked(id)
}
