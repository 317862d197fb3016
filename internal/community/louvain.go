// Package community implements C3, a deterministic modularity-optimizing
// partition over the current graph, equivalent to the Louvain method
// (spec §4.3).
package community

import (
	"math/rand"
	"sort"

	"github.com/systemshift/contextengine/internal/core"
)

// GraphView is the read-only surface C3 needs from C1. graph.Store
// satisfies this (see graph/partition_adapter.go); kept as an interface
// here so the algorithm has no import-time dependency on the storage
// representation.
type GraphView interface {
	AllNodeIDs() []string
	NodeKind(id string) (core.NodeKind, bool)
	EachEdgeWeight(fn func(a, b string, weight float64))
	WeightedDegreeOf(id string) float64
}

// internal working graph: dense integer ids over the node set at the
// current contraction level.
type workGraph struct {
	n        int
	degree   []float64     // weighted degree, self-loops counted twice
	adjacent []map[int]float64 // adjacency weight, symmetric
	m2       float64       // 2 * total edge weight (including self-loop weight once per loop, counted twice in degree)
}

func newWorkGraph(n int) *workGraph {
	adj := make([]map[int]float64, n)
	for i := range adj {
		adj[i] = make(map[int]float64)
	}
	return &workGraph{n: n, degree: make([]float64, n), adjacent: adj}
}

func (g *workGraph) addEdge(i, j int, w float64) {
	if i == j {
		g.adjacent[i][i] += w
		g.degree[i] += 2 * w
		g.m2 += 2 * w
		return
	}
	g.adjacent[i][j] += w
	g.adjacent[j][i] += w
	g.degree[i] += w
	g.degree[j] += w
	g.m2 += 2 * w
}

// Partition computes the modularity-optimizing partition of the graph
// visible through gv, using resolution gamma and the given seed. Degenerate
// inputs (empty graph, or fewer than two nodes) short-circuit per spec §4.3.
func Partition(gv GraphView, gamma float64, seed int64) *core.Partition {
	ids := gv.AllNodeIDs()
	sort.Strings(ids)

	if len(ids) == 0 {
		return core.NewPartition()
	}
	if len(ids) < 2 {
		return singleCommunity(ids, gv)
	}

	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}

	g := newWorkGraph(len(ids))
	gv.EachEdgeWeight(func(a, b string, weight float64) {
		ai, aok := idx[a]
		bi, bok := idx[b]
		if !aok || !bok || weight <= 0 {
			return
		}
		g.addEdge(ai, bi, weight)
	})

	if g.m2 == 0 {
		return singleCommunity(ids, gv)
	}

	rng := rand.New(rand.NewSource(seed))

	// leafToCurrent[i] is which super-node at the *current* level
	// original leaf i belongs to; composed across levels as we contract.
	leafToCurrent := make([]int, len(ids))
	for i := range leafToCurrent {
		leafToCurrent[i] = i
	}

	current := g
	for {
		localComm, improved := localMovingPhase(current, gamma, rng)
		if !improved {
			break
		}
		// compose: leafToCurrent[i] = dense(localComm[leafToCurrent[i]]),
		// where dense is the same first-appearance renumbering contract
		// applies, so the result indexes the next level's super-nodes.
		dense := make(map[int]int)
		for _, c := range localComm {
			if _, ok := dense[c]; !ok {
				dense[c] = len(dense)
			}
		}
		for i := range leafToCurrent {
			leafToCurrent[i] = dense[localComm[leafToCurrent[i]]]
		}
		current = contract(current, localComm)
		if current.n == 1 {
			break
		}
	}

	return buildPartition(ids, leafToCurrent, gv)
}

func singleCommunity(ids []string, gv GraphView) *core.Partition {
	p := core.NewPartition()
	if len(ids) == 0 {
		return p
	}
	commID := "c0"
	members := append([]string(nil), ids...)
	sort.Strings(members)
	p.Members[commID] = members
	for _, id := range members {
		p.Assignment[id] = commID
	}
	p.Labels[commID] = labelFor(members, gv)
	return p
}

// localMovingPhase runs phase 1 of Louvain: repeated passes over nodes in
// a seeded-random order, moving each node into the neighboring community
// that maximizes positive modularity gain, until a full pass yields no
// move. Returns the community assignment (dense ids, possibly with gaps)
// and whether any move occurred across all passes.
func localMovingPhase(g *workGraph, gamma float64, rng *rand.Rand) ([]int, bool) {
	comm := make([]int, g.n)
	commTotal := make([]float64, g.n)
	for i := range comm {
		comm[i] = i
		commTotal[i] = g.degree[i]
	}

	order := make([]int, g.n)
	for i := range order {
		order[i] = i
	}

	anyMoveEver := false
	for {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		movedThisPass := false
		for _, v := range order {
			cOld := comm[v]
			commTotal[cOld] -= g.degree[v]

			neighborGain := make(map[int]float64)
			for nb, w := range g.adjacent[v] {
				if nb == v {
					continue
				}
				neighborGain[comm[nb]] += w
			}

			bestScore := neighborGain[cOld] - gamma*g.degree[v]*commTotal[cOld]/g.m2
			tied := []int{cOld}

			candidates := make([]int, 0, len(neighborGain))
			for c := range neighborGain {
				if c != cOld {
					candidates = append(candidates, c)
				}
			}
			sort.Ints(candidates)

			for _, c := range candidates {
				score := neighborGain[c] - gamma*g.degree[v]*commTotal[c]/g.m2
				switch {
				case score > bestScore+1e-9:
					bestScore = score
					tied = []int{c}
				case approxEqual(score, bestScore):
					tied = append(tied, c)
				}
			}

			// tied[0] == cOld means no candidate beats staying put, so the
			// node stays; the seeded choice only breaks ties among moves.
			bestComm := tied[0]
			if len(tied) > 1 && tied[0] != cOld {
				bestComm = tied[rng.Intn(len(tied))]
			}

			commTotal[bestComm] += g.degree[v]
			if bestComm != cOld {
				comm[v] = bestComm
				movedThisPass = true
				anyMoveEver = true
			}
		}
		if !movedThisPass {
			break
		}
	}
	return comm, anyMoveEver
}

func approxEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

// contract builds the next-level graph where each distinct community in
// comm becomes a single super-node. Intra-community weight becomes a
// self-loop; inter-community weight becomes an edge between super-nodes.
func contract(g *workGraph, comm []int) *workGraph {
	remap := make(map[int]int)
	for _, c := range comm {
		if _, ok := remap[c]; !ok {
			remap[c] = len(remap)
		}
	}
	next := newWorkGraph(len(remap))
	for i := 0; i < g.n; i++ {
		ci := remap[comm[i]]
		neighbors := make([]int, 0, len(g.adjacent[i]))
		for j := range g.adjacent[i] {
			neighbors = append(neighbors, j)
		}
		sort.Ints(neighbors)
		for _, j := range neighbors {
			if j < i {
				continue // each unordered pair (including the i==j self-loop) visited once
			}
			cj := remap[comm[j]]
			next.addEdge(ci, cj, g.adjacent[i][j])
		}
	}
	return next
}
