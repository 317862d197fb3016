package graph

import (
	"math"
	"sort"
	"time"

	"github.com/systemshift/contextengine/internal/core"
)

// DecaySweep applies exponential decay to every edge at the given time
// and removes edges (and then orphan nodes) that fall below ε. Exported
// for callers that want to force a sweep outside an Ingest (tests,
// idle-graph maintenance).
func (s *Store) DecaySweep(now float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decaySweepLocked(now)
}

func (s *Store) decaySweepLocked(now float64) {
	started := time.Now()
	lambda := s.cfg.DecayRatePerHour
	var toRemove []core.EdgeKey
	for key, e := range s.edges {
		dtHours := math.Max(0, (now-e.LastActive)/3600)
		e.Weight = e.BaseWeight * math.Exp(-lambda*dtHours)
		if e.Weight < s.cfg.EdgePruneThreshold {
			toRemove = append(toRemove, key)
		}
	}
	for _, key := range toRemove {
		s.removeEdgeLocked(key)
	}
	s.removeOrphansLocked()
	s.lastDecaySweepSecs = time.Since(started).Seconds()
}

func (s *Store) removeOrphansLocked() {
	var orphans []string
	for id := range s.nodes {
		if len(s.adj[id]) == 0 {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		delete(s.nodes, id)
		delete(s.adj, id)
		s.prunedTotal++
	}
}

// recencyFactor computes exp(-lambda * hours_since_last_touch) for the
// node's last_visited (pages) or last_seen (keywords).
func (s *Store) recencyFactor(n *core.Node, now float64) float64 {
	var lastTouch float64
	switch n.Kind {
	case core.NodeKindPage:
		lastTouch = n.Page.LastVisited
	case core.NodeKindKeyword:
		lastTouch = n.Keyword.LastSeen
	}
	hours := math.Max(0, (now-lastTouch)/3600)
	return math.Exp(-s.cfg.DecayRatePerHour * hours)
}

// weightedDegreeLocked sums the decayed weight of every edge incident on id.
func (s *Store) weightedDegreeLocked(id string) float64 {
	var sum float64
	for nb := range s.adj[id] {
		if e, ok := s.edges[core.MakeEdgeKey(id, nb)]; ok {
			sum += e.Weight
		}
	}
	return sum
}

// EnforceCap ranks nodes by s(v) = weighted_degree(v) * recency_factor(v)
// and removes the lowest-scoring nodes until |nodes| <= N_max, then
// re-runs orphan removal (invariants I2, I4).
func (s *Store) EnforceCap(now float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enforceCapAt(now)
}

func (s *Store) enforceCapLocked() {
	// Ingest always calls decaySweepLocked first, so "now" is the
	// timestamp of the most recent edge touch; use the latest activity
	// across all edges (LastActive) and nodes (LastVisited/LastSeen) as a
	// stand-in for "now" when called from within Ingest (no now parameter
	// is threaded through).
	now := s.latestActivityLocked()
	s.enforceCapAt(now)
}

func (s *Store) latestActivityLocked() float64 {
	var max float64
	for _, e := range s.edges {
		if e.LastActive > max {
			max = e.LastActive
		}
	}
	for _, n := range s.nodes {
		switch n.Kind {
		case core.NodeKindPage:
			if n.Page.LastVisited > max {
				max = n.Page.LastVisited
			}
		case core.NodeKindKeyword:
			if n.Keyword.LastSeen > max {
				max = n.Keyword.LastSeen
			}
		}
	}
	return max
}

type scoredNode struct {
	id    string
	score float64
}

func (s *Store) enforceCapAt(now float64) {
	if len(s.nodes) <= s.cfg.MaxGraphNodes {
		return
	}
	scored := make([]scoredNode, 0, len(s.nodes))
	for id, n := range s.nodes {
		score := s.weightedDegreeLocked(id) * s.recencyFactor(n, now)
		scored = append(scored, scoredNode{id: id, score: score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score < scored[j].score
		}
		return scored[i].id < scored[j].id // stable tie-break by id
	})

	excess := len(s.nodes) - s.cfg.MaxGraphNodes
	for i := 0; i < excess; i++ {
		s.removeNodeLocked(scored[i].id)
	}
	s.removeOrphansLocked()
}
