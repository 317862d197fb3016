package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/systemshift/contextengine/internal/enrich"
)

// notifier broadcasts published context documents to in-process
// subscribers, adapted from the teacher's subscriptions.Notifier: the
// teacher delivers over webhooks/WebSockets, but this engine forbids
// network I/O (spec.md Non-goals), so delivery is a buffered channel per
// subscriber instead of an HTTP POST or a WS frame.
type notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan enrich.Document
}

func newNotifier() *notifier {
	return &notifier{subscribers: make(map[string]chan enrich.Document)}
}

// Subscribe registers a new subscriber and returns its id plus a channel
// that receives every subsequently published document. The channel is
// buffered by 1 and never blocks publish: a slow subscriber misses
// intermediate updates but always eventually sees the latest.
func (n *notifier) Subscribe() (string, <-chan enrich.Document) {
	id := uuid.NewString()
	ch := make(chan enrich.Document, 1)
	n.mu.Lock()
	n.subscribers[id] = ch
	n.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subscribers[id]; ok {
		close(ch)
		delete(n.subscribers, id)
	}
}

// Publish delivers doc to every current subscriber, dropping the oldest
// buffered value for any subscriber that hasn't drained it yet.
func (n *notifier) Publish(doc enrich.Document) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subscribers {
		select {
		case ch <- doc:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- doc:
			default:
			}
		}
	}
}
