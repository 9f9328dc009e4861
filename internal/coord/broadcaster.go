// ABOUTME: In-memory fan-out of stream frames to bounded subscriber queues.
// ABOUTME: Publish never blocks; a full subscriber queue drops that subscriber's copy.

package coord

import (
	"log/slog"
	"sync"

	"github.com/raikyr/mazewarden/internal/event"
)

// SubscriberBuffer is the queue depth of each subscriber's private
// channel. A subscriber that falls further behind than this loses
// frames; other subscribers are unaffected.
const SubscriberBuffer = 2048

// broadcaster fans frames out to every connected subscriber. There is a
// single stream, so subscriptions are flat rather than keyed.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[string]chan event.Frame
	logger *slog.Logger
}

func newBroadcaster(logger *slog.Logger) *broadcaster {
	return &broadcaster{
		subs:   make(map[string]chan event.Frame),
		logger: logger.With("component", "broadcaster"),
	}
}

// add registers a subscriber channel created (and possibly pre-seeded)
// by the caller.
func (b *broadcaster) add(id string, ch chan event.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = ch
	b.logger.Debug("subscriber added", "sub_id", id, "total", len(b.subs))
}

// publish delivers a frame to every subscriber without blocking.
func (b *broadcaster) publish(frame event.Frame) {
	b.mu.Lock()
	targets := make([]chan event.Frame, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- frame:
		default:
			// Subscriber queue full; drop this frame for this subscriber.
		}
	}
}

// remove drops a subscription and closes its channel.
func (b *broadcaster) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
	b.logger.Debug("subscriber removed", "sub_id", id, "total", len(b.subs))
}

// close shuts every subscriber channel.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
