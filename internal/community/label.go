package community

import (
	"fmt"
	"sort"

	"github.com/systemshift/contextengine/internal/core"
)

// buildPartition turns the dense leaf->community assignment into a
// core.Partition keyed by stable, sorted community ids, and computes each
// community's label per spec §4.3: the keyword node with the highest
// weighted degree (on the original, uncontracted graph), ties broken
// lexicographically; communities with no keyword nodes are labeled
// "(pages)".
func buildPartition(ids []string, leafToCommunity []int, gv GraphView) *core.Partition {
	membersByRaw := make(map[int][]string)
	for i, id := range ids {
		c := leafToCommunity[i]
		membersByRaw[c] = append(membersByRaw[c], id)
	}

	// Assign stable string community ids in order of each raw community's
	// lexicographically-smallest member, so relabeling a rerun with the
	// same seed/graph produces identical ids.
	type rawComm struct {
		raw     int
		members []string
	}
	raws := make([]rawComm, 0, len(membersByRaw))
	for raw, members := range membersByRaw {
		sort.Strings(members)
		raws = append(raws, rawComm{raw: raw, members: members})
	}
	sort.Slice(raws, func(i, j int) bool {
		return raws[i].members[0] < raws[j].members[0]
	})

	p := core.NewPartition()
	for i, rc := range raws {
		commID := fmt.Sprintf("c%d", i)
		p.Members[commID] = rc.members
		for _, id := range rc.members {
			p.Assignment[id] = commID
		}
	}

	for commID, members := range p.Members {
		p.Labels[commID] = labelFor(members, gv)
	}

	return p
}

func labelFor(members []string, gv GraphView) string {
	type candidate struct {
		id     string
		degree float64
	}
	var best candidate
	found := false
	for _, id := range members {
		kind, ok := gv.NodeKind(id)
		if !ok || kind != core.NodeKindKeyword {
			continue
		}
		deg := gv.WeightedDegreeOf(id)
		if !found || deg > best.degree || (deg == best.degree && id < best.id) {
			best = candidate{id: id, degree: deg}
			found = true
		}
	}
	if !found {
		return "(pages)"
	}
	return keywordLabelOf(best.id)
}

// keywordLabelOf strips the "kw:" prefix to recover the display label.
func keywordLabelOf(id string) string {
	if len(id) > len(core.KeywordIDPrefix) && id[:len(core.KeywordIDPrefix)] == core.KeywordIDPrefix {
		return id[len(core.KeywordIDPrefix):]
	}
	return id
}
