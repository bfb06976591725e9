package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"PlayGrid/service/gateway"
	errs "PlayGrid/tools/errs"
	"PlayGrid/tools/ids"
)

const messagesCollection = "direct_messages"

// MessageStore is the Mongo-backed implementation of the gateway's
// persistence collaborator.
type MessageStore struct {
	coll *mongo.Collection
}

// NewMessageStore prepares the collection and its query indexes.
func NewMessageStore(ctx context.Context, db *mongo.Database) (*MessageStore, error) {
	coll := db.Collection(messagesCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read", Value: 1}}},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "create message indexes")
	}
	return &MessageStore{coll: coll}, nil
}

// CreateMessage assigns the server-side id and timestamp and inserts. The
// returned message is what the pipeline fans out.
func (s *MessageStore) CreateMessage(ctx context.Context, m *gateway.DirectMessage) (*gateway.DirectMessage, error) {
	if m.SenderID == "" || m.ReceiverID == "" {
		return nil, errs.New("sender/receiver required")
	}
	stored := *m
	if stored.ID == "" {
		stored.ID = ids.GenerateString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, &stored); err != nil {
		return nil, errs.WrapMsg(err, "insert message", "sender", m.SenderID, "receiver", m.ReceiverID)
	}
	return &stored, nil
}

// GetMessages returns the full conversation between two users, oldest first.
func (s *MessageStore) GetMessages(ctx context.Context, userA, userB string) ([]*gateway.DirectMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find messages", "a", userA, "b", userB)
	}
	defer cur.Close(ctx)

	var out []*gateway.DirectMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

// MarkMessagesAsRead flips the read flag on everything fromUserID sent to
// toUserID that is still unread.
func (s *MessageStore) MarkMessagesAsRead(ctx context.Context, fromUserID, toUserID string) error {
	_, err := s.coll.UpdateMany(ctx,
		bson.M{"sender_id": fromUserID, "receiver_id": toUserID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return errs.WrapMsg(err, "mark read", "from", fromUserID, "to", toUserID)
	}
	return nil
}
