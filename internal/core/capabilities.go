package core

import (
	"context"
	"time"
)

// Clock is the wall-clock capability consumed by the engine (§6). Real
// code uses SystemClock; tests substitute a FakeClock for determinism.
type Clock interface {
	NowSeconds() float64
}

// SystemClock implements Clock against the operating system's wall clock.
type SystemClock struct{}

func (SystemClock) NowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// FakeClock implements Clock with a caller-controlled value, for
// deterministic tests and replaying end-to-end scenarios from spec §8.
type FakeClock struct {
	seconds float64
}

// NewFakeClock returns a FakeClock starting at t seconds.
func NewFakeClock(t float64) *FakeClock { return &FakeClock{seconds: t} }

func (c *FakeClock) NowSeconds() float64 { return c.seconds }

// Set pins the clock to t seconds.
func (c *FakeClock) Set(t float64) { c.seconds = t }

// Advance moves the clock forward by delta seconds.
func (c *FakeClock) Advance(delta float64) { c.seconds += delta }

// SnapshotStore is the byte-level persistence capability consumed by C1
// (§6). Both Read and Write may fail non-fatally.
type SnapshotStore interface {
	// Read returns the stored bytes, or (nil, nil) if nothing has ever
	// been written.
	Read() ([]byte, error)
	Write(data []byte) error
}

// ExternalKeywords is the result of an ExternalExtractor.Extract call.
// A nil slice (as opposed to an empty, non-nil one) means "not available".
type ExternalKeywords []string

// ExternalExtractor is the out-of-scope keyword-extraction collaborator
// (§4.2, §6). Any error is treated as "not available" by the caller.
type ExternalExtractor interface {
	Extract(title, text string) (ExternalKeywords, error)
}

// ChatBackend is the out-of-scope conversational-model collaborator
// (§6). The engine only produces the context document it consumes; its
// prompt templating and transport are not specified here.
type ChatBackend interface {
	// Respond sends the assembled context document alongside a user
	// query and returns the model's reply text.
	Respond(ctx context.Context, contextDocument any, query string) (string, error)
}
