package gateway

import "sync"

// Subscriptions maps conversation ids to the set of connections currently
// interested in them. Purely in-memory: clients re-join after reconnect.
// Authorization of conversation access is the caller's problem; by the time
// Join is called the connection is already vetted.
//
// Invariant: a conversation entry exists only while at least one connection
// subscribes to it.
type Subscriptions struct {
	mu     sync.RWMutex
	byConv map[string]map[string]struct{} // conversationID -> set of connIDs
	byConn map[string]map[string]struct{} // connID -> set of conversationIDs
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		byConv: make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent.
func (s *Subscriptions) Join(connID, conversationID string) {
	if connID == "" || conversationID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byConv[conversationID] == nil {
		s.byConv[conversationID] = make(map[string]struct{})
	}
	s.byConv[conversationID][connID] = struct{}{}
	if s.byConn[connID] == nil {
		s.byConn[connID] = make(map[string]struct{})
	}
	s.byConn[connID][conversationID] = struct{}{}
}

// Leave removes connID from the conversation; leaving one never joined is a
// no-op. Empty conversations are deleted immediately.
func (s *Subscriptions) Leave(connID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked(connID, conversationID)
}

func (s *Subscriptions) leaveLocked(connID, conversationID string) {
	if set := s.byConv[conversationID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(s.byConv, conversationID)
		}
	}
	if set := s.byConn[connID]; set != nil {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(s.byConn, connID)
		}
	}
}

// DropConn removes the connection from every conversation it joined.
// Idempotent; called from Unregister.
func (s *Subscriptions) DropConn(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conversationID := range s.byConn[connID] {
		s.leaveLocked(connID, conversationID)
	}
}

// SubscribersOf returns a snapshot of the connection ids subscribed to the
// conversation.
func (s *Subscriptions) SubscribersOf(conversationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byConv[conversationID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Conversations returns a snapshot of the conversations connID subscribes to.
func (s *Subscriptions) Conversations(connID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byConn[connID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
