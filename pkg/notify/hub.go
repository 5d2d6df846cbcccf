// Package notify fans deployment progress out to users: live messages for
// connected sessions, durable notifications for everyone else, and an
// optional webhook event stream for external listeners.
package notify

import (
	"log/slog"
	"sync"
)

// Message is one live notification delivered to a connected session.
type Message struct {
	Type              string            `json:"type"`
	RequestIdentifier string            `json:"request_identifier"`
	Status            string            `json:"status"`
	Title             string            `json:"title"`
	Message           string            `json:"message"`
	Details           map[string]string `json:"details,omitempty"`
}

const hubBuffer = 16

// Hub routes live messages to connected users by email. Delivery is
// best-effort: no listener or a full buffer drops the message, the durable
// notification store is the record.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]chan Message
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]chan Message)}
}

// Register attaches a listener for a user and returns its channel plus an
// unregister func. A second registration for the same email replaces the
// first.
func (h *Hub) Register(email string) (<-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.sessions[email]; ok {
		close(old)
	}

	ch := make(chan Message, hubBuffer)
	h.sessions[email] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.sessions[email] == ch {
			delete(h.sessions, email)
			close(ch)
		}
	}
}

// Send delivers a message to a connected user. Returns false when the user
// has no listener or its buffer is full. The send happens under the lock so
// it cannot race a close in Register or unregister; it never blocks because
// the channel is buffered and the full case falls through.
func (h *Hub) Send(email string, msg Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.sessions[email]
	if !ok {
		return false
	}

	select {
	case ch <- msg:
		return true
	default:
		slog.Warn("notify_hub_buffer_full", "user_email", email, "type", msg.Type)
		return false
	}
}
