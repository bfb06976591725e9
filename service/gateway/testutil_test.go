package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"PlayGrid/tools/security"
)

// fakeSocket is an in-memory socket implementation so lifecycle tests run
// without a network.
type fakeSocket struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte

	closed    chan struct{}
	closeOnce sync.Once

	pongHandler func(string) error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// push simulates the client sending a text frame.
func (f *fakeSocket) push(data []byte) { f.inbound <- data }

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("fake socket closed")
	}
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("fake socket closed")
	default:
	}
	if messageType == websocket.TextMessage {
		f.mu.Lock()
		cp := make([]byte, len(data))
		copy(cp, data)
		f.written = append(f.written, cp)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	select {
	case <-f.closed:
		return errors.New("fake socket closed")
	default:
		return nil
	}
}

func (f *fakeSocket) SetReadLimit(int64)                  {}
func (f *fakeSocket) SetReadDeadline(time.Time) error     { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error    { return nil }
func (f *fakeSocket) SetPongHandler(h func(string) error) { f.pongHandler = h }

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// frames returns the decoded text frames written so far.
func (f *fakeSocket) frames() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.written))
	for _, raw := range f.written {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

// waitFrame polls until a frame of the wanted type shows up.
func (f *fakeSocket) waitFrame(t *testing.T, frameType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, fr := range f.frames() {
			if fr["type"] == frameType {
				return fr
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q frame within deadline, got %v", frameType, f.frames())
	return nil
}

// countFrames counts written frames of one type.
func (f *fakeSocket) countFrames(frameType string) int {
	n := 0
	for _, fr := range f.frames() {
		if fr["type"] == frameType {
			n++
		}
	}
	return n
}

func waitClosed(t *testing.T, f *fakeSocket) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.isClosed() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("socket not closed within deadline")
}

// fakeStore is an in-memory MessageStore.
type fakeStore struct {
	mu         sync.Mutex
	msgs       []*DirectMessage
	failCreate bool
	marked     [][2]string
}

func (s *fakeStore) CreateMessage(_ context.Context, m *DirectMessage) (*DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return nil, errors.New("store unavailable")
	}
	stored := *m
	stored.ID = fmt.Sprintf("m%d", len(s.msgs)+1)
	stored.CreatedAt = time.Now().UTC()
	s.msgs = append(s.msgs, &stored)
	return &stored, nil
}

func (s *fakeStore) GetMessages(_ context.Context, userA, userB string) ([]*DirectMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*DirectMessage
	for _, m := range s.msgs {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkMessagesAsRead(_ context.Context, fromUserID, toUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, [2]string{fromUserID, toUserID})
	for _, m := range s.msgs {
		if m.SenderID == fromUserID && m.ReceiverID == toUserID {
			m.Read = true
		}
	}
	return nil
}

// waitStored polls until the store holds n messages.
func waitStored(t *testing.T, s *fakeStore, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.count() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store never reached %d messages, has %d", n, s.count())
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// fakeVerifier accepts tokens of the form "user:<id>:<name>".
var fakeVerifier = TokenVerifierFunc(func(token string) (*security.Identity, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] != "user" || parts[1] == "" {
		return nil, errors.New("bad token")
	}
	return &security.Identity{UserID: parts[1], Username: parts[2]}, nil
})

func testConf() Conf {
	return Conf{
		NodeID:          "gw-test",
		AuthDeadline:    150 * time.Millisecond,
		PingInterval:    50 * time.Millisecond,
		PongWait:        time.Second,
		WriteWait:       100 * time.Millisecond,
		SendBuffer:      64,
		QueueCapPerUser: 4,
		StoreTimeout:    time.Second,
	}
}

// newTestServer builds a server over fakes with fast timers.
func newTestServer(t *testing.T, store MessageStore, opts ...Option) *Server {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	s := NewServer(testConf(), store, fakeVerifier, opts...)
	t.Cleanup(s.Close)
	return s
}

// startConn runs serve for a fake socket and returns it plus a done channel.
func startConn(t *testing.T, s *Server) (*fakeSocket, chan struct{}) {
	t.Helper()
	fs := newFakeSocket()
	done := make(chan struct{})
	go func() {
		s.serve(fs)
		close(done)
	}()
	fs.waitFrame(t, "connected")
	return fs, done
}

// authAs pushes an auth frame and waits for success.
func authAs(t *testing.T, fs *fakeSocket, userID string) {
	t.Helper()
	fs.push([]byte(fmt.Sprintf(`{"type":"auth","token":"user:%s:tester"}`, userID)))
	fr := fs.waitFrame(t, "auth_success")
	if fr["userId"] != userID {
		t.Fatalf("auth bound wrong user: %v", fr)
	}
}
