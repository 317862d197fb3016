// Package extractor implements C2, the deterministic heuristic
// keyword/summary/snippet extractor, plus a breaker-guarded wrapper
// around the out-of-scope ExternalExtractor collaborator.
package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/systemshift/contextengine/internal/core"
)

// MaxKeywords bounds the result of Extract (spec §4.2: "up to 12").
const MaxKeywords = 12

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Result is the output of Extract.
type Result struct {
	Keywords []string
	Summary  string
	Snippet  string
}

// Extract is pure: identical (title, text) inputs always produce an
// identical Result (spec §8, "Extraction determinism").
func Extract(title, text string, cfg core.Config) Result {
	return Result{
		Keywords: extractKeywords(title, text, cfg.MaxKeywordsPerPage),
		Summary:  generateSummary(text, cfg.MaxSummaryLength),
		Snippet:  core.TruncateUTF8(text, cfg.MaxContextSnippet),
	}
}

func extractKeywords(title, text string, limit int) []string {
	if limit <= 0 || limit > MaxKeywords {
		limit = MaxKeywords
	}
	titleTokens := tokenize(title)
	inTitle := make(map[string]struct{}, len(titleTokens))
	for _, t := range titleTokens {
		inTitle[t] = struct{}{}
	}

	counts := make(map[string]int)
	for _, t := range tokenize(title) {
		counts[t]++
	}
	for _, t := range tokenize(text) {
		counts[t]++
	}

	type scored struct {
		token string
		score int
	}
	scoredTokens := make([]scored, 0, len(counts))
	for token, count := range counts {
		presence := 0
		if _, ok := inTitle[token]; ok {
			presence = 1
		}
		scoredTokens = append(scoredTokens, scored{token: token, score: count + 3*presence})
	}

	sort.Slice(scoredTokens, func(i, j int) bool {
		if scoredTokens[i].score != scoredTokens[j].score {
			return scoredTokens[i].score > scoredTokens[j].score
		}
		return scoredTokens[i].token < scoredTokens[j].token
	})

	out := make([]string, 0, limit)
	for _, st := range scoredTokens {
		if len(out) >= limit {
			break
		}
		out = append(out, st.token)
	}
	return out
}

// tokenize lowercases, splits on non-letter/non-digit runs, and drops
// stopwords.
func tokenize(s string) []string {
	lowered := strings.ToLower(s)
	raw := tokenRe.FindAllString(lowered, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if isStopword(t) {
			continue
		}
		if isAllDigits(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// generateSummary splits text into sentences and concatenates them in
// order until the accumulated length is >= 1000 or the next sentence
// would push it past maxLen, matching spec §4.2's deterministic rule.
func generateSummary(text string, maxLen int) string {
	sentences := splitSentences(text)
	var b strings.Builder
	for _, sent := range sentences {
		if b.Len() >= 1000 {
			break
		}
		candidateLen := b.Len() + len(sent)
		if b.Len() > 0 {
			candidateLen++ // separating space
		}
		if candidateLen > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sent)
	}
	out := b.String()
	if len(out) > maxLen {
		out = core.TruncateUTF8(out, maxLen)
	}
	return out
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
