package gateway

import (
	"context"
	"time"

	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
)

// Pipeline is the broadcast & persistence path for inbound message frames:
// validate, persist (durability point), fan out to live subscribers, queue
// for the offline recipient.
type Pipeline struct {
	store        MessageStore
	mgr          *Manager
	subs         *Subscriptions
	queue        *OfflineQueue
	events       EventSink // optional
	storeTimeout time.Duration
}

func NewPipeline(store MessageStore, mgr *Manager, subs *Subscriptions, queue *OfflineQueue, events EventSink, storeTimeout time.Duration) *Pipeline {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Pipeline{
		store:        store,
		mgr:          mgr,
		subs:         subs,
		queue:        queue,
		events:       events,
		storeTimeout: storeTimeout,
	}
}

// HandleInbound processes one message frame from sender connection c. The
// returned error is meant for the sender: persistence failures mean the
// message was never sent and the client should retry.
func (p *Pipeline) HandleInbound(ctx context.Context, c *Conn, frame *MessagePayload) error {
	if c.State() != StateAuthenticated {
		return errs.ErrNotAuthorized.Wrap()
	}
	if frame.Message.SenderID != c.UserID() {
		return errs.ErrNotAuthorized.WrapMsg("sender mismatch",
			"declared", frame.Message.SenderID, "bound", c.UserID())
	}
	if frame.ConversationID == "" || frame.Message.ReceiverID == "" || frame.Message.Content == "" {
		return errs.ErrMalformedFrame.WrapMsg("missing conversationId/receiverId/content")
	}

	// Durability point. Runs outside any registry lock so storage latency
	// never serializes gateway traffic; bounded so a hung store surfaces as
	// a persistence failure instead of a silent drop.
	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	stored, err := p.store.CreateMessage(sctx, &DirectMessage{
		SenderID:   frame.Message.SenderID,
		ReceiverID: frame.Message.ReceiverID,
		Content:    frame.Message.Content,
		Read:       false,
	})
	if err != nil {
		return errs.ErrPersistence.WrapMsg("create message", "err", err)
	}

	if p.events != nil {
		p.events.MessageStored(stored)
	}

	// Fan out to every subscribed connection, the sender's own sessions
	// included so multi-tab clients stay in sync. A failed subscriber is
	// dropped from the topic and never aborts the rest.
	payload := BuildMessage(frame.ConversationID, stored)
	for _, connID := range p.subs.SubscribersOf(frame.ConversationID) {
		sub, ok := p.mgr.Get(connID)
		if !ok {
			p.subs.Leave(connID, frame.ConversationID)
			continue
		}
		if serr := sub.Send(payload); serr != nil {
			logger.Warnf("[gateway] fan-out drop conn=%s conv=%s err=%v", connID, frame.ConversationID, serr)
			p.subs.Leave(connID, frame.ConversationID)
		}
	}

	// Store-and-forward: only when the recipient has no live authenticated
	// connection at all. An online-but-unsubscribed recipient catches up via
	// history fetch on conversation open.
	if _, online := p.mgr.Bound(frame.Message.ReceiverID); !online {
		p.queue.Enqueue(frame.Message.ReceiverID, QueuedPayload{
			ConversationID: frame.ConversationID,
			Message:        stored,
		})
	}
	return nil
}
