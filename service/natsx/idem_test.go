package natsx

import (
	"testing"
	"time"
)

func TestMemIdemSeenOnce(t *testing.T) {
	s := NewMemIdem(time.Minute)
	if seen, err := s.SeenOnce("msg-1", 0); err != nil || seen {
		t.Fatalf("first sighting: seen=%v err=%v", seen, err)
	}
	if seen, _ := s.SeenOnce("msg-1", 0); !seen {
		t.Fatal("second sighting must report seen")
	}
	if seen, _ := s.SeenOnce("msg-2", 0); seen {
		t.Fatal("different key must not be seen")
	}
}

func TestMemIdemExpiry(t *testing.T) {
	s := NewMemIdem(time.Minute)
	if seen, _ := s.SeenOnce("msg-1", time.Second); seen {
		t.Fatal("fresh key reported seen")
	}
	// expiry is tracked at second granularity
	time.Sleep(1100 * time.Millisecond)
	if seen, _ := s.SeenOnce("msg-1", time.Second); seen {
		t.Fatal("expired key still reported seen")
	}
}
