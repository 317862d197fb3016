package graph

import (
	"sort"

	"github.com/systemshift/contextengine/internal/core"
)

// NodeKind reports the kind of node id, and whether it exists. Part of
// community.GraphView.
func (s *Store) NodeKind(id string) (core.NodeKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return 0, false
	}
	return n.Kind, true
}

// EachEdgeWeight calls fn once per edge with its decayed weight, in a
// stable order. Part of community.GraphView.
func (s *Store) EachEdgeWeight(fn func(a, b string, weight float64)) {
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
		e := s.edges[k]
		fn(e.A, e.B, e.Weight)
	}
}

// WeightedDegreeOf is an alias for WeightedDegree, named to satisfy
// community.GraphView.
func (s *Store) WeightedDegreeOf(id string) float64 {
	return s.WeightedDegree(id)
}
