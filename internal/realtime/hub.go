package realtime

import "sync"

// Session is one realtime subscriber. *Connection is the production
// implementation.
type Session interface {
	ID() string
	Send(payload []byte) error
}

// Hub tracks sessions and per-conversation topics and fans published
// payloads out to every session subscribed to the topic. Delivery is
// at-most-once: a session that fails to accept a payload is dropped from
// the hub.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]Session
	topics       map[uint64]map[string]Session
	sessionTopic map[string]map[uint64]struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]Session),
		topics:       make(map[uint64]map[string]Session),
		sessionTopic: make(map[string]map[uint64]struct{}),
	}
}

// Register adds a session to the hub. It must be called before Subscribe.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
}

// Unregister removes a session and all of its subscriptions.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(sessionID)
}

// Subscribe adds the session to the conversation's topic.
func (h *Hub) Subscribe(convID uint64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	room := h.topics[convID]
	if room == nil {
		room = make(map[string]Session)
		h.topics[convID] = room
	}
	room[sessionID] = s
	memberships := h.sessionTopic[sessionID]
	if memberships == nil {
		memberships = make(map[uint64]struct{})
		h.sessionTopic[sessionID] = memberships
	}
	memberships[convID] = struct{}{}
}

// Unsubscribe removes the session from the conversation's topic.
func (h *Hub) Unsubscribe(convID uint64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(convID, sessionID)
}

// Publish delivers payload to every session subscribed to the conversation.
// Sessions whose send fails are evicted.
func (h *Hub) Publish(convID uint64, payload []byte) {
	h.mu.RLock()
	room := h.topics[convID]
	targets := make([]Session, 0, len(room))
	for _, s := range room {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var failed []string
	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			failed = append(failed, s.ID())
		}
	}
	if len(failed) > 0 {
		h.mu.Lock()
		for _, id := range failed {
			h.detachLocked(id)
		}
		h.mu.Unlock()
	}
}

// Close clears all hub state. Closing the underlying connections is the
// owner's responsibility.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = make(map[string]Session)
	h.topics = make(map[uint64]map[string]Session)
	h.sessionTopic = make(map[string]map[uint64]struct{})
}

func (h *Hub) detachLocked(sessionID string) {
	if _, ok := h.sessions[sessionID]; !ok {
		return
	}
	delete(h.sessions, sessionID)
	for convID := range h.sessionTopic[sessionID] {
		h.leaveLocked(convID, sessionID)
	}
	delete(h.sessionTopic, sessionID)
}

func (h *Hub) leaveLocked(convID uint64, sessionID string) {
	room := h.topics[convID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.topics, convID)
	}
	if memberships, ok := h.sessionTopic[sessionID]; ok {
		delete(memberships, convID)
		if len(memberships) == 0 {
			delete(h.sessionTopic, sessionID)
		}
	}
}
