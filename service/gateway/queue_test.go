package gateway

import (
	"fmt"
	"testing"
)

func qp(id string) QueuedPayload {
	return QueuedPayload{
		ConversationID: "1-2",
		Message:        &DirectMessage{ID: id, SenderID: "1", ReceiverID: "2", Content: "hi " + id},
	}
}

func TestOfflineQueueOrderPreserved(t *testing.T) {
	q := NewOfflineQueue(16)
	for i := 0; i < 5; i++ {
		q.Enqueue("2", qp(fmt.Sprintf("m%d", i)))
	}
	got := q.Drain("2")
	if len(got) != 5 {
		t.Fatalf("want 5 payloads, got %d", len(got))
	}
	for i, p := range got {
		if want := fmt.Sprintf("m%d", i); p.Message.ID != want {
			t.Fatalf("position %d: want %s, got %s", i, want, p.Message.ID)
		}
	}
}

func TestOfflineQueueDrainClears(t *testing.T) {
	q := NewOfflineQueue(16)
	q.Enqueue("2", qp("m1"))
	if got := q.Drain("2"); len(got) != 1 {
		t.Fatalf("first drain: want 1, got %d", len(got))
	}
	if got := q.Drain("2"); got != nil {
		t.Fatalf("second drain must be empty, got %v", got)
	}
	if q.Len("2") != 0 {
		t.Fatalf("len after drain: %d", q.Len("2"))
	}
}

func TestOfflineQueueCapDropsOldest(t *testing.T) {
	q := NewOfflineQueue(3)
	for i := 0; i < 5; i++ {
		q.Enqueue("2", qp(fmt.Sprintf("m%d", i)))
	}
	got := q.Drain("2")
	if len(got) != 3 {
		t.Fatalf("want 3 payloads at cap, got %d", len(got))
	}
	// m0 and m1 were dropped
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Message.ID != want {
			t.Fatalf("position %d: want %s, got %s", i, want, got[i].Message.ID)
		}
	}
}

func TestOfflineQueueUsersIsolated(t *testing.T) {
	q := NewOfflineQueue(16)
	q.Enqueue("2", qp("m1"))
	q.Enqueue("3", qp("m2"))
	if got := q.Drain("2"); len(got) != 1 || got[0].Message.ID != "m1" {
		t.Fatalf("user 2: got %v", got)
	}
	if q.Len("3") != 1 {
		t.Fatalf("user 3 queue disturbed: %d", q.Len("3"))
	}
}

func TestOfflineQueueIgnoresEmptyUser(t *testing.T) {
	q := NewOfflineQueue(16)
	q.Enqueue("", qp("m1"))
	if q.Len("") != 0 {
		t.Fatal("empty user id must not be queued")
	}
}
