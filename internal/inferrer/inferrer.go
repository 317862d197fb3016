// Package inferrer implements C4, the Bayesian task inferrer: a posterior
// distribution over communities given the current visit's keyword
// evidence, with Laplace smoothing and a cold-start guard.
package inferrer

import (
	"math"
	"sort"

	"github.com/systemshift/contextengine/internal/core"
)

const exploringLabel = "Exploring"

// GraphView is the read-only surface C4 needs from C1.
type GraphView interface {
	Neighbors(id string) []string
	EdgeWeight(a, b string) (float64, bool)
}

// Result is the output of Infer.
type Result struct {
	ActiveTask string
	Confidence float64
	Entropy    float64
	Posterior  map[string]float64 // community id -> probability
	ColdStart  bool
}

// Infer computes the posterior over the communities in p given evidence
// keywords E, under the graph gv, per spec §4.4.
func Infer(gv GraphView, p *core.Partition, evidence []string, cfg core.Config) Result {
	ids := p.CommunityIDs()

	if len(ids) == 0 {
		return Result{ActiveTask: exploringLabel, Confidence: 0, Entropy: 0, Posterior: map[string]float64{}, ColdStart: true}
	}

	prior := computePrior(gv, p, ids, cfg.LaplaceSmoothing)
	likelihood := computeLikelihood(gv, p, ids, evidence, cfg.LaplaceSmoothing)

	posterior := make(map[string]float64, len(ids))
	var total float64
	for _, id := range ids {
		v := likelihood[id] * prior[id]
		posterior[id] = v
		total += v
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(ids))
		for _, id := range ids {
			posterior[id] = uniform
		}
	} else {
		for _, id := range ids {
			posterior[id] /= total
		}
	}

	best, confidence := argmaxByLabelThenID(posterior, p)
	entropy := shannonEntropy(posterior)

	coldStart := len(ids) < 2 || confidence < cfg.ConfidenceColdStart
	if coldStart {
		return Result{
			ActiveTask: exploringLabel,
			Confidence: 0,
			Entropy:    entropy,
			Posterior:  posterior,
			ColdStart:  true,
		}
	}

	return Result{
		ActiveTask: p.Labels[best],
		Confidence: confidence,
		Entropy:    entropy,
		Posterior:  posterior,
		ColdStart:  false,
	}
}

// computePrior returns P(C_i) for each community, from the sum of decayed
// intra-community edge weights, Laplace-smoothed.
func computePrior(gv GraphView, p *core.Partition, ids []string, alpha float64) map[string]float64 {
	w := make(map[string]float64, len(ids))
	for _, id := range ids {
		w[id] = intraCommunityWeight(gv, p.Members[id])
	}
	return smoothedNormalize(w, ids, alpha)
}

func intraCommunityWeight(gv GraphView, members []string) float64 {
	inCommunity := make(map[string]struct{}, len(members))
	for _, m := range members {
		inCommunity[m] = struct{}{}
	}
	var total float64
	for _, m := range members {
		for _, nb := range gv.Neighbors(m) {
			if nb <= m {
				continue // count each unordered pair once, using id order
			}
			if _, ok := inCommunity[nb]; !ok {
				continue
			}
			if w, ok := gv.EdgeWeight(m, nb); ok {
				total += w
			}
		}
	}
	return total
}

// computeLikelihood returns P(E | C_i) for each community.
func computeLikelihood(gv GraphView, p *core.Partition, ids []string, evidence []string, alpha float64) map[string]float64 {
	overlap := make(map[string]float64, len(ids))
	for _, id := range ids {
		overlap[id] = overlapScore(gv, p, id, evidence)
	}
	return smoothedNormalize(overlap, ids, alpha)
}

// overlapScore sums, over the evidence keywords, each keyword's
// contribution to community c per spec §4.4.
func overlapScore(gv GraphView, p *core.Partition, c string, evidence []string) float64 {
	members := make(map[string]struct{}, len(p.Members[c]))
	for _, m := range p.Members[c] {
		members[m] = struct{}{}
	}

	var score float64
	for _, kw := range evidence {
		id := core.KeywordID(core.NormalizeLabel(kw))
		if _, ok := members[id]; ok {
			score += 3.0
			continue
		}
		neighbors := gv.Neighbors(id)
		if len(neighbors) == 0 {
			continue // keyword absent from the graph, or isolated: contributes 0
		}
		for _, nb := range neighbors {
			if _, ok := members[nb]; !ok {
				continue
			}
			if w, ok := gv.EdgeWeight(id, nb); ok {
				score += w
			}
		}
	}
	return score
}

// smoothedNormalize applies Laplace smoothing and normalizes raw[id]+alpha
// over the sum across all ids.
func smoothedNormalize(raw map[string]float64, ids []string, alpha float64) map[string]float64 {
	out := make(map[string]float64, len(ids))
	var total float64
	for _, id := range ids {
		v := raw[id] + alpha
		out[id] = v
		total += v
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(ids))
		for _, id := range ids {
			out[id] = uniform
		}
		return out
	}
	for _, id := range ids {
		out[id] /= total
	}
	return out
}

// argmaxByLabelThenID returns the community id with the highest posterior,
// ties broken by community label lexicographically, and its probability.
func argmaxByLabelThenID(posterior map[string]float64, p *core.Partition) (string, float64) {
	ids := make([]string, 0, len(posterior))
	for id := range posterior {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ids[0]
	bestP := posterior[best]
	for _, id := range ids[1:] {
		v := posterior[id]
		switch {
		case v > bestP+1e-12:
			best, bestP = id, v
		case math.Abs(v-bestP) <= 1e-12:
			if p.Labels[id] < p.Labels[best] {
				best, bestP = id, v
			}
		}
	}
	return best, bestP
}

func shannonEntropy(posterior map[string]float64) float64 {
	var h float64
	for _, v := range posterior {
		if v <= 0 {
			continue // 0*log0 = 0
		}
		h -= v * math.Log2(v)
	}
	return h
}
