package sandbox

import (
	"sync"

	"github.com/bnema/notifications-feed-cli/internal/domain"
)

const subscriberBuffer = 16

// Hub fans published notifications out to the open streams of their
// recipient. A subscriber that falls behind loses events instead of
// blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan domain.Notification]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.Notification]struct{})}
}

func (h *Hub) Subscribe(userID string) (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan domain.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if _, ok := h.subs[userID][ch]; !ok {
				return
			}
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Publish returns how many streams received n.
func (h *Hub) Publish(n domain.Notification) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs[n.TargetUserID] {
		select {
		case ch <- n:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs[userID])
}

// Close ends every open stream.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for userID, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, userID)
	}
}
