package backend

import "sync"

type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// Handler receives auth events. The session is nil on sign-out.
type Handler func(event AuthEvent, s *Session)

type Subscription interface {
	Unsubscribe()
}

// Hub fans auth events out to every subscriber of the same browser
// session key. Handlers run on their own goroutine.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]Handler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Handler)}
}

func (h *Hub) Subscribe(key string, fn Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]Handler)
	}
	h.subs[key][id] = fn
	return &subscription{hub: h, key: key, id: id}
}

func (h *Hub) Publish(key string, event AuthEvent, s *Session) {
	h.mu.Lock()
	handlers := make([]Handler, 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		go fn(event, s)
	}
}

// Subscribers counts live subscriptions for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

type subscription struct {
	hub  *Hub
	key  string
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		delete(s.hub.subs[s.key], s.id)
		if len(s.hub.subs[s.key]) == 0 {
			delete(s.hub.subs, s.key)
		}
	})
}
