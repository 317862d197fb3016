package orchestrator

import (
	"sync"

	"github.com/systemshift/contextengine/internal/core"
)

const maxRetainedRuns = 20
const maxOutputPreviewBytes = 512

// StepStatus is the outcome of one pipeline step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// Step is one step-level telemetry record (spec §4.6 "Pipeline telemetry").
type Step struct {
	Name          string
	StartedAt     float64
	CompletedAt   float64
	DurationMS    float64
	Status        StepStatus
	OutputPreview string
}

// Run is one pipeline-run record, retained in a capped in-memory buffer.
type Run struct {
	ID          string
	URL         string
	Title       string
	StartedAt   float64
	CompletedAt *float64
	Status      StepStatus
	Steps       []Step
}

// telemetryBuffer is the pipeline's own short-critical-section lock
// (spec §5 "Shared resource policy"), independent of the graph lock.
type telemetryBuffer struct {
	mu   sync.Mutex
	runs []Run // oldest first, capped at maxRetainedRuns
}

func newTelemetryBuffer() *telemetryBuffer {
	return &telemetryBuffer{}
}

func (b *telemetryBuffer) append(r Run) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs = append(b.runs, r)
	if len(b.runs) > maxRetainedRuns {
		b.runs = b.runs[len(b.runs)-maxRetainedRuns:]
	}
}

func (b *telemetryBuffer) snapshot() []Run {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Run, len(b.runs))
	copy(out, b.runs)
	return out
}

// truncatePreview bounds output_preview to maxOutputPreviewBytes on a
// UTF-8 boundary, independent of the 20-run cap, so telemetry memory
// stays bounded even with verbose step outputs.
func truncatePreview(s string) string {
	return core.TruncateUTF8(s, maxOutputPreviewBytes)
}
