package app

import (
	"sync"

	"deepresearch/internal/logging"
	"deepresearch/internal/observability"
	"deepresearch/internal/research"
)

// subscriberBuffer is the channel depth handed to each subscriber. Slow
// consumers fall behind rather than blocking the workflow.
const subscriberBuffer = 64

// StreamBroadcaster fans research events out to every live subscriber of a
// session. The workflow is the only broadcaster for a given session, so
// per-channel ordering follows Broadcast call order.
type StreamBroadcaster struct {
	mu      sync.RWMutex
	clients map[string][]chan research.StreamEvent

	metrics *observability.Metrics
	logger  logging.Logger
}

// NewStreamBroadcaster creates an empty broadcaster.
func NewStreamBroadcaster(metrics *observability.Metrics) *StreamBroadcaster {
	return &StreamBroadcaster{
		clients: make(map[string][]chan research.StreamEvent),
		metrics: metrics,
		logger:  logging.NewComponentLogger("StreamBroadcaster"),
	}
}

// Attach registers a subscriber channel for a session. The channel is closed
// by the broadcaster on Detach, CloseSession, or terminal snapshot delivery.
func (b *StreamBroadcaster) Attach(sessionID string, ch chan research.StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clients[sessionID] = append(b.clients[sessionID], ch)
	b.metrics.SubscriberAttached()
	b.logger.Info("Subscriber attached to session %s (total: %d)", sessionID, len(b.clients[sessionID]))
}

// AttachTerminal delivers exactly one terminal snapshot to a late subscriber
// of an already-finished session and closes the channel. The subscriber is
// never registered, so it can never receive progress or message events.
func (b *StreamBroadcaster) AttachTerminal(ch chan research.StreamEvent, event research.StreamEvent) {
	ch <- event
	close(ch)
	b.logger.Info("Late subscriber to session %s served terminal snapshot %s", event.SessionID, event.Name)
}

// Detach removes one subscriber channel and closes it. Detaching a channel
// that was already removed (for example by CloseSession) is a no-op. When the
// subscriber set becomes empty the session key itself is pruned.
func (b *StreamBroadcaster) Detach(sessionID string, ch chan research.StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.clients[sessionID]
	for i, client := range clients {
		if client == ch {
			b.clients[sessionID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			b.metrics.SubscriberDetached()
			b.logger.Info("Subscriber detached from session %s (remaining: %d)", sessionID, len(b.clients[sessionID]))

			if len(b.clients[sessionID]) == 0 {
				delete(b.clients, sessionID)
			}
			return
		}
	}
}

// Broadcast delivers the event to every subscriber of its session. A full
// subscriber buffer drops the event for that subscriber only; delivery to the
// remaining subscribers continues.
func (b *StreamBroadcaster) Broadcast(event research.StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clients, ok := b.clients[event.SessionID]
	if !ok {
		b.logger.Debug("No subscribers for session %s (event: %s)", event.SessionID, event.Name)
		return
	}

	for i, ch := range clients {
		select {
		case ch <- event:
			b.metrics.EventSent()
		default:
			b.logger.Warn("Subscriber buffer full for session %s, dropping %s (client %d/%d)",
				event.SessionID, event.Name, i+1, len(clients))
			b.metrics.EventDropped()
		}
	}
}

// CloseSession closes and removes every subscriber of a session. Called after
// a terminal event has been broadcast, and on session deletion.
func (b *StreamBroadcaster) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[sessionID]
	if !ok {
		return
	}
	for _, ch := range clients {
		close(ch)
		b.metrics.SubscriberDetached()
	}
	delete(b.clients, sessionID)
	b.logger.Info("Closed %d subscriber(s) for session %s", len(clients), sessionID)
}

// SubscriberCount reports the number of subscribers attached to a session.
func (b *StreamBroadcaster) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[sessionID])
}
