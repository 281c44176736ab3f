// Package events fans follow state changes out to in-process listeners.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	Logger "github.com/peek4c/peek4c/utils/log"
)

// FollowEvent is published after a follow toggle commits.
type FollowEvent struct {
	ThreadNo    int64  `json:"threadNo"`
	Board       string `json:"board"`
	IsFollowing bool   `json:"isFollowing"`
}

type Listener func(FollowEvent)

// FollowBroadcaster delivers follow changes to subscribers. Subscribe returns
// a token for Unsubscribe.
type FollowBroadcaster interface {
	NotifyFollowChanged(ev FollowEvent)
	Subscribe(listener Listener) string
	Unsubscribe(token string) bool
}

const connectionBuffer = 16

// FollowHub is the FollowBroadcaster of a running process. Listeners run
// synchronously on the notifying goroutine, in subscription order; a
// panicking listener is logged and the rest still run.
type FollowHub struct {
	// Subscribe and Unsubscribe take the write lock, notifying takes a read
	// lock only long enough to snapshot the listeners.
	mu          sync.RWMutex
	order       []string
	listeners   map[string]Listener
	connections map[string]struct{}
}

func NewFollowHub() *FollowHub {
	return &FollowHub{
		listeners:   make(map[string]Listener),
		connections: make(map[string]struct{}),
	}
}

func (h *FollowHub) Subscribe(listener Listener) string {
	token := "follow_listener_" + uuid.New().String()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, token)
	h.listeners[token] = listener
	return token
}

// Unsubscribe removes the listener and reports whether token was subscribed.
func (h *FollowHub) Unsubscribe(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[token]; !ok {
		return false
	}
	delete(h.listeners, token)
	delete(h.connections, token)
	for i, t := range h.order {
		if t == token {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

func (h *FollowHub) NotifyFollowChanged(ev FollowEvent) {
	h.mu.RLock()
	snapshot := make([]Listener, 0, len(h.order))
	for _, token := range h.order {
		snapshot = append(snapshot, h.listeners[token])
	}
	h.mu.RUnlock()

	for _, l := range snapshot {
		callListener(l, ev)
	}
}

func callListener(l Listener, ev FollowEvent) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Log.WithField("event", ev).Errorf("follow listener panicked: %v", r)
		}
	}()
	l(ev)
}

// AddNewConnection subscribes a buffered channel that lives until ctx is
// done. Events that find the buffer full are dropped for that connection.
func (h *FollowHub) AddNewConnection(ctx context.Context) (<-chan FollowEvent, string) {
	ch := make(chan FollowEvent, connectionBuffer)
	token := h.Subscribe(func(ev FollowEvent) {
		select {
		case ch <- ev:
		default:
			Logger.Log.WithField("event", ev).Warn("follow connection is full, dropping event")
		}
	})

	h.mu.Lock()
	h.connections[token] = struct{}{}
	h.mu.Unlock()

	go h.cleanUp(ctx, token)
	return ch, token
}

func (h *FollowHub) cleanUp(ctx context.Context, token string) {
	<-ctx.Done()
	h.Unsubscribe(token)
}

func (h *FollowHub) ActiveConnectionsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
