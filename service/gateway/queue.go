package gateway

import (
	"sync"

	"PlayGrid/logger"
)

// QueuedPayload is one store-and-forward item: the conversation routing key
// plus the already-persisted message.
type QueuedPayload struct {
	ConversationID string
	Message        *DirectMessage
}

// OfflineQueue buffers payloads for users with no live authenticated
// connection and replays them, in enqueue order, on the next authentication.
// Per-user depth is capped with drop-oldest: a dropped payload is still
// durable in the message store and recoverable through a history fetch.
// The queue itself is not persisted; a restart loses buffered (but not the
// underlying) messages.
type OfflineQueue struct {
	mu     sync.Mutex
	byUser map[string][]QueuedPayload
	cap    int
}

func NewOfflineQueue(perUserCap int) *OfflineQueue {
	if perUserCap <= 0 {
		perUserCap = 512
	}
	return &OfflineQueue{
		byUser: make(map[string][]QueuedPayload),
		cap:    perUserCap,
	}
}

func (q *OfflineQueue) Enqueue(userID string, p QueuedPayload) {
	if userID == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.byUser[userID]
	if len(list) >= q.cap {
		dropped := list[0]
		list = list[1:]
		logger.Warnf("[gateway] offline queue full user=%s dropped msg=%s", userID, dropped.Message.ID)
	}
	q.byUser[userID] = append(list, p)
}

// Drain returns the buffered payloads in enqueue order and clears the entry,
// so a second authentication replays nothing.
func (q *OfflineQueue) Drain(userID string) []QueuedPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.byUser[userID]
	if list == nil {
		return nil
	}
	delete(q.byUser, userID)
	return list
}

// Len reports the buffered count for one user.
func (q *OfflineQueue) Len(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byUser[userID])
}
