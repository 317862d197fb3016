package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/systemshift/contextengine/internal/core"
)

// SnapshotMagic tags the start of a graph snapshot, the same role
// common.FileMagic plays in the teacher's own node/link file format.
const SnapshotMagic uint32 = 0x43584731 // "CXG1"

// SnapshotVersion is the 1-byte format tag spec §6 requires ("1-byte
// version tag + payload") so future migrations are possible.
const SnapshotVersion byte = 1

const (
	nodeKindPageByte    byte = 0
	nodeKindKeywordByte byte = 1
)

// Snapshot serializes the full graph to a binary payload.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte(SnapshotVersion)
	writeUint32(&buf, SnapshotMagic)

	ids := s.sortedNodeIDs()
	writeUint32(&buf, uint32(len(ids)))
	for _, id := range ids {
		writeNode(&buf, s.nodes[id])
	}

	writeUint32(&buf, uint32(len(s.edges)))
	for _, key := range sortedEdgeKeysSlice(s.edges) {
		writeEdge(&buf, s.edges[key])
	}

	return buf.Bytes(), nil
}

func sortedEdgeKeysSlice(m map[core.EdgeKey]*core.Edge) []core.EdgeKey {
	keys := make([]core.EdgeKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortEdgeKeys(keys)
	return keys
}

// Hydrate replaces the graph's contents with the decoded payload. A
// corrupt or unrecognized payload resets to empty rather than failing
// the caller (spec §4.1: "never fatal").
func (s *Store) Hydrate(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	nodes, edges, err := decodeSnapshot(data)
	if err != nil {
		s.mu.Lock()
		s.nodes = make(map[string]*core.Node)
		s.edges = make(map[core.EdgeKey]*core.Edge)
		s.adj = make(map[string]map[string]struct{})
		s.mu.Unlock()
		return &core.TransientIOError{Op: "hydrate", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
	s.edges = edges
	s.adj = make(map[string]map[string]struct{})
	for id := range s.nodes {
		s.adj[id] = make(map[string]struct{})
	}
	for key := range s.edges {
		s.linkAdjacency(key.A, key.B)
	}
	return nil
}

func decodeSnapshot(data []byte) (map[string]*core.Node, map[core.EdgeKey]*core.Edge, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	version, err := r.ReadByte()
	if err != nil {
		return nil, nil, fmt.Errorf("reading version: %w", err)
	}
	if version != SnapshotVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot version %d", version)
	}
	magic, err := readUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != SnapshotMagic {
		return nil, nil, fmt.Errorf("bad snapshot magic")
	}

	nodeCount, err := readUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading node count: %w", err)
	}
	nodes := make(map[string]*core.Node, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		n, err := readNode(r)
		if err != nil {
			return nil, nil, fmt.Errorf("reading node %d: %w", i, err)
		}
		nodes[n.ID] = n
	}

	edgeCount, err := readUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading edge count: %w", err)
	}
	edges := make(map[core.EdgeKey]*core.Edge, edgeCount)
	for i := uint32(0); i < edgeCount; i++ {
		e, err := readEdge(r)
		if err != nil {
			return nil, nil, fmt.Errorf("reading edge %d: %w", i, err)
		}
		edges[core.MakeEdgeKey(e.A, e.B)] = e
	}

	return nodes, edges, nil
}

func writeNode(w io.Writer, n *core.Node) {
	switch n.Kind {
	case core.NodeKindPage:
		writeByte(w, nodeKindPageByte)
		writeString(w, n.ID)
		p := n.Page
		writeString(w, p.URL)
		writeString(w, p.Title)
		writeString(w, p.Summary)
		writeString(w, p.ContentSnippet)
		writeUint32(w, uint32(p.VisitCount))
		writeFloat64(w, p.FirstVisited)
		writeFloat64(w, p.LastVisited)
	case core.NodeKindKeyword:
		writeByte(w, nodeKindKeywordByte)
		writeString(w, n.ID)
		k := n.Keyword
		writeString(w, k.Label)
		writeUint32(w, uint32(k.Frequency))
		writeUint32(w, uint32(len(k.PageRefs)))
		for _, ref := range k.PageRefs {
			writeString(w, ref)
		}
		writeFloat64(w, k.FirstSeen)
		writeFloat64(w, k.LastSeen)
	}
}

func readNode(r *bufio.Reader) (*core.Node, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	id, err := readString(r)
	if err != nil {
		return nil, err
	}
	switch kindByte {
	case nodeKindPageByte:
		url, err := readString(r)
		if err != nil {
			return nil, err
		}
		title, err := readString(r)
		if err != nil {
			return nil, err
		}
		summary, err := readString(r)
		if err != nil {
			return nil, err
		}
		snippet, err := readString(r)
		if err != nil {
			return nil, err
		}
		visitCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		firstVisited, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		lastVisited, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		return &core.Node{
			ID:   id,
			Kind: core.NodeKindPage,
			Page: &core.PageAttrs{
				URL:            url,
				Title:          title,
				Summary:        summary,
				ContentSnippet: snippet,
				VisitCount:     int(visitCount),
				FirstVisited:   firstVisited,
				LastVisited:    lastVisited,
			},
		}, nil
	case nodeKindKeywordByte:
		label, err := readString(r)
		if err != nil {
			return nil, err
		}
		frequency, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		refCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		refs := make([]string, 0, refCount)
		for i := uint32(0); i < refCount; i++ {
			ref, err := readString(r)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		firstSeen, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		lastSeen, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		return &core.Node{
			ID:   id,
			Kind: core.NodeKindKeyword,
			Keyword: &core.KeywordAttrs{
				Label:     label,
				Frequency: int(frequency),
				PageRefs:  refs,
				FirstSeen: firstSeen,
				LastSeen:  lastSeen,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown node kind byte %d", kindByte)
	}
}

func writeEdge(w io.Writer, e *core.Edge) {
	writeString(w, e.A)
	writeString(w, e.B)
	writeByte(w, byte(e.Kind))
	writeFloat64(w, e.BaseWeight)
	writeFloat64(w, e.Weight)
	writeFloat64(w, e.Created)
	writeFloat64(w, e.LastActive)
}

func readEdge(r *bufio.Reader) (*core.Edge, error) {
	a, err := readString(r)
	if err != nil {
		return nil, err
	}
	b, err := readString(r)
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	baseWeight, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	weight, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	created, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	lastActive, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	return &core.Edge{
		A: a, B: b,
		Kind:       core.EdgeKind(kindByte),
		BaseWeight: baseWeight,
		Weight:     weight,
		Created:    created,
		LastActive: lastActive,
	}, nil
}

// --- low-level binary helpers, in the teacher's WriteUint32/ReadUint32 style ---

func writeByte(w io.Writer, b byte) { w.Write([]byte{b}) }

func writeUint32(w io.Writer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeFloat64(w io.Writer, v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.Write(b[:])
}

func readFloat64(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

func writeString(w io.Writer, s string) {
	writeUint32(w, uint32(len(s)))
	io.WriteString(w, s)
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func sortEdgeKeys(keys []core.EdgeKey) {
	// Insertion sort by (A, B), in the style of the teacher's own small,
	// hand-rolled index helpers. The rest of this package orders edge keys
	// with sort.Slice and the same comparator.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && edgeKeyLess(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func edgeKeyLess(a, b core.EdgeKey) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

// Persistence to a file path is handled by internal/snapshotio.FileStore,
// which wraps Snapshot/Hydrate behind core.SnapshotStore and does its own
// atomic temp-file-then-rename write (see snapshotio.FileStore.Write).
// graph.Store previously carried a second, unused SaveToPath/LoadFromPath
// pair that duplicated that logic; cmd/contextd never called it, so it
// was removed rather than kept as a second path-based entry point.
