// Package core holds the tagged node/edge model shared by every component
// of the browsing context engine, plus the configuration and error
// taxonomy they all depend on.
package core

import "fmt"

// NodeKind distinguishes the two node variants. There is no shared base
// type: a Node carries exactly one of PageAttrs or KeywordAttrs depending
// on Kind.
type NodeKind uint8

const (
	NodeKindPage NodeKind = iota
	NodeKindKeyword
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindPage:
		return "page"
	case NodeKindKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// PageIDPrefix and KeywordIDPrefix form the external id of a node: the id
// string is an external-interface artifact, never used for in-memory
// identity beyond map keys.
const (
	PageIDPrefix    = "page:"
	KeywordIDPrefix = "kw:"
)

// PageID returns the node id for a page with the given URL.
func PageID(url string) string { return PageIDPrefix + url }

// KeywordID returns the node id for a keyword with the given normalized label.
func KeywordID(label string) string { return KeywordIDPrefix + label }

// MaxPageRefs is the bound on a keyword's page_refs sequence (spec I5).
const MaxPageRefs = 10

// PageAttrs holds the attributes of a Page node.
type PageAttrs struct {
	URL            string
	Title          string
	Summary        string // <= MaxSummaryLength chars
	ContentSnippet string // <= MaxContextSnippet chars
	VisitCount     int    // >= 1
	FirstVisited   float64
	LastVisited    float64 // >= FirstVisited
}

// KeywordAttrs holds the attributes of a Keyword node.
type KeywordAttrs struct {
	Label     string
	Frequency int      // >= 1
	PageRefs  []string // <= MaxPageRefs, newest first, unique by exact URL match
	FirstSeen float64
	LastSeen  float64 // >= FirstSeen
}

// Node is a tagged union of Page/Keyword. Exactly one of Page or Keyword is
// non-nil depending on Kind.
type Node struct {
	ID      string
	Kind    NodeKind
	Page    *PageAttrs
	Keyword *KeywordAttrs
}

// WeightedDegree returns the sum of decayed weights of edges incident on
// this node, given a lookup of those edges. Callers pass the edge slice
// already resolved by the graph store.
func WeightedDegree(edges []*Edge) float64 {
	var sum float64
	for _, e := range edges {
		sum += e.Weight
	}
	return sum
}

// EdgeKind distinguishes the two legal edge shapes. Page-page edges never
// exist (invariant I4).
type EdgeKind uint8

const (
	EdgeKindPageKeyword EdgeKind = iota
	EdgeKindKeywordKeyword
)

// Edge is an undirected edge between two distinct nodes. A and B are
// stored in a canonical order (A < B lexicographically) so that a pair of
// endpoints always maps to the same EdgeKey regardless of visit order.
type Edge struct {
	A, B       string
	Kind       EdgeKind
	BaseWeight float64 // > 0, monotonically non-decreasing
	Weight     float64 // decayed, 0 <= Weight <= BaseWeight
	Created    float64
	LastActive float64 // >= Created
}

// Other returns the endpoint of the edge that isn't id. Panics if id is
// not an endpoint; callers only invoke this after confirming membership.
func (e *Edge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	if e.B == id {
		return e.A
	}
	panic(fmt.Sprintf("edge %s-%s does not touch %s", e.A, e.B, id))
}

// EdgeKey canonically identifies the (unordered) pair of endpoints of an edge.
type EdgeKey struct{ A, B string }

// MakeEdgeKey returns the canonical key for an edge between a and b,
// ordering the pair so (a,b) and (b,a) collide.
func MakeEdgeKey(a, b string) EdgeKey {
	if a <= b {
		return EdgeKey{A: a, B: b}
	}
	return EdgeKey{A: b, B: a}
}
