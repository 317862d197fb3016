package extractor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/systemshift/contextengine/internal/core"
)

// breakerState is the three-state circuit breaker the original prototype
// (SPEC_FULL.md "Supplemented Features" #1) uses to track external
// extractor health across calls, rather than a single last-call flag.
// Hand-rolled rather than adding sony/gobreaker: the whole machine is
// three states and two counters, and every field it needs to expose
// (get_stats.extractor_healthy) is simpler to read off a plain struct
// than to adapt from a generic breaker's callback-based API.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

const (
	breakerFailureThreshold = 3
	breakerOpenDuration     = 30 * time.Second
)

// Breaker wraps a core.ExternalExtractor with a soft per-call timeout and
// a circuit breaker that opens after consecutive failures.
type Breaker struct {
	mu        sync.Mutex
	underlying core.ExternalExtractor
	timeout   time.Duration
	state     breakerState
	failures  int
	openUntil time.Time
}

// NewBreaker wraps extractor with a soft timeout. extractor may be nil,
// in which case Extract always reports unavailable.
func NewBreaker(ext core.ExternalExtractor, timeout time.Duration) *Breaker {
	return &Breaker{underlying: ext, timeout: timeout}
}

// Healthy reports whether the breaker is presently allowing calls
// through (closed or half-open), surfaced as get_stats.extractor_healthy.
func (b *Breaker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked(time.Now())
	return b.state != breakerOpen
}

func (b *Breaker) maybeHalfOpenLocked(now time.Time) {
	if b.state == breakerOpen && now.After(b.openUntil) {
		b.state = breakerHalfOpen
	}
}

// Extract calls the underlying extractor with a soft timeout (default
// 3s, spec §5). On timeout, error, an empty result, or an open breaker it
// returns (nil, false) so the caller falls back to the heuristic
// extractor (spec §4.2's ExternalExtractor.extract contract: non-empty
// preferred, any error means "not available").
func (b *Breaker) Extract(title, text string) ([]string, bool) {
	if b.underlying == nil {
		return nil, false
	}

	b.mu.Lock()
	b.maybeHalfOpenLocked(time.Now())
	if b.state == breakerOpen {
		b.mu.Unlock()
		return nil, false
	}
	b.mu.Unlock()

	type callResult struct {
		kws []string
		err error
	}
	resultCh := make(chan callResult, 1)
	go func() {
		kws, err := b.underlying.Extract(title, text)
		resultCh <- callResult{kws: []string(kws), err: err}
	}()

	var res callResult
	select {
	case res = <-resultCh:
	case <-time.After(b.timeout):
		res = callResult{err: context.DeadlineExceeded}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if res.err != nil || len(res.kws) == 0 {
		b.failures++
		if b.state == breakerHalfOpen || b.failures >= breakerFailureThreshold {
			b.state = breakerOpen
			b.openUntil = time.Now().Add(breakerOpenDuration)
		}
		return nil, false
	}

	b.failures = 0
	b.state = breakerClosed
	return normalizeExternal(res.kws), true
}

// normalizeExternal lowercases, trims, dedupes, and caps at MaxKeywords
// the keywords accepted from an external extractor (spec §4.6 step 2).
func normalizeExternal(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		norm := strings.TrimSpace(strings.ToLower(kw))
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
		if len(out) >= MaxKeywords {
			break
		}
	}
	return out
}
