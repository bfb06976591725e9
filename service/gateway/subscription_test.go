package gateway

import (
	"sort"
	"testing"
)

func TestSubscriptionsJoinIdempotent(t *testing.T) {
	s := NewSubscriptions()
	s.Join("c1", "1-2")
	s.Join("c1", "1-2")
	s.Join("c2", "1-2")

	subs := s.SubscribersOf("1-2")
	sort.Strings(subs)
	if len(subs) != 2 || subs[0] != "c1" || subs[1] != "c2" {
		t.Fatalf("want [c1 c2], got %v", subs)
	}
}

func TestSubscriptionsLeaveUnknownIsNoop(t *testing.T) {
	s := NewSubscriptions()
	s.Leave("c1", "never-joined")
	s.Join("c1", "1-2")
	s.Leave("c1", "other")
	if got := s.SubscribersOf("1-2"); len(got) != 1 {
		t.Fatalf("membership disturbed: %v", got)
	}
}

func TestSubscriptionsEmptyConversationRemoved(t *testing.T) {
	s := NewSubscriptions()
	s.Join("c1", "1-2")
	s.Leave("c1", "1-2")
	if got := s.SubscribersOf("1-2"); got != nil {
		t.Fatalf("expected conversation gone, got %v", got)
	}
	if got := s.Conversations("c1"); got != nil {
		t.Fatalf("expected reverse index gone, got %v", got)
	}
}

func TestSubscriptionsDropConn(t *testing.T) {
	s := NewSubscriptions()
	s.Join("c1", "1-2")
	s.Join("c1", "1-3")
	s.Join("c2", "1-2")

	s.DropConn("c1")
	s.DropConn("c1") // second drop is a no-op

	if got := s.SubscribersOf("1-3"); got != nil {
		t.Fatalf("conversation 1-3 should be empty, got %v", got)
	}
	if got := s.SubscribersOf("1-2"); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("want [c2], got %v", got)
	}
	if got := s.Conversations("c1"); got != nil {
		t.Fatalf("dropped conn still tracked: %v", got)
	}
}

func TestSubscribersOfSnapshotIsolated(t *testing.T) {
	s := NewSubscriptions()
	s.Join("c1", "1-2")
	snap := s.SubscribersOf("1-2")
	snap[0] = "mutated"
	if got := s.SubscribersOf("1-2"); got[0] != "c1" {
		t.Fatalf("snapshot leaked into registry: %v", got)
	}
}
