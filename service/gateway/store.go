package gateway

import (
	"context"
	"time"

	"PlayGrid/tools/security"
)

// DirectMessage is the persisted chat entity. The gateway never deletes
// messages; deletion is a data-layer concern.
type DirectMessage struct {
	ID         string    `json:"id" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"sender_id"`
	ReceiverID string    `json:"receiverId" bson:"receiver_id"`
	Content    string    `json:"content" bson:"content"`
	Read       bool      `json:"read" bson:"read"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// MessageStore is the persistence collaborator consumed by the gateway. The
// write in CreateMessage is the durability point for the broadcast pipeline.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *DirectMessage) (*DirectMessage, error)
	GetMessages(ctx context.Context, userA, userB string) ([]*DirectMessage, error)
	MarkMessagesAsRead(ctx context.Context, fromUserID, toUserID string) error
}

// TokenVerifier is the auth collaborator: maps a presented token to the
// identity it was issued for, or fails.
type TokenVerifier interface {
	VerifyToken(token string) (*security.Identity, error)
}

// TokenVerifierFunc adapts a bare function to TokenVerifier.
type TokenVerifierFunc func(token string) (*security.Identity, error)

func (f TokenVerifierFunc) VerifyToken(token string) (*security.Identity, error) {
	return f(token)
}

// EventSink receives post-persistence notifications (activity stats,
// achievement triggers). Implementations must not block the pipeline.
type EventSink interface {
	MessageStored(m *DirectMessage)
}

// PresenceSink mirrors online state for the rest of the platform. Advisory
// only; the in-process identity binding stays authoritative for delivery.
type PresenceSink interface {
	Online(ctx context.Context, userID, connID string) error
	Touch(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID, connID string) error
}
