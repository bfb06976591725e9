package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
)

// ConnState is the lifecycle state of one client connection.
type ConnState int32

const (
	StateUnauthenticated ConnState = iota
	StateAuthenticated
	StateClosing
)

// socket is the slice of *websocket.Conn the gateway relies on; tests swap in
// an in-memory implementation.
type socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Conn is the registry entry for one live socket. All writes to the peer go
// through the send queue and the writer pump; the read loop in HandleWS is
// the only reader. State fields are guarded by mu.
type Conn struct {
	ID string

	ws   socket
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	state      ConnState
	userID     string
	username   string
	lastActive time.Time
	authTimer  *time.Timer
}

func newConn(id string, ws socket, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Conn{
		ID:         id,
		ws:         ws,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		state:      StateUnauthenticated,
		lastActive: time.Now(),
	}
}

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the bound user id; empty until authenticated.
func (c *Conn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Conn) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Conn) setAuthenticated(userID, username string) {
	c.mu.Lock()
	c.state = StateAuthenticated
	c.userID = userID
	c.username = username
	c.lastActive = time.Now()
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
	c.mu.Unlock()
}

func (c *Conn) setAuthTimer(t *time.Timer) {
	c.mu.Lock()
	c.authTimer = t
	c.mu.Unlock()
}

// stopTimers cancels the pending auth deadline; always called from
// Unregister so no timer outlives its connection.
func (c *Conn) stopTimers() {
	c.mu.Lock()
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
	c.mu.Unlock()
}

// Send queues a frame for the writer pump. It never blocks: a full queue
// means the peer is too slow and the send is refused so the caller can drop
// the subscriber.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return errs.ErrDelivery.WithDetail("connection closing")
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errs.ErrDelivery.WithDetail("connection closing")
	default:
		return errs.ErrDelivery.WithDetail("send queue full")
	}
}

// Close signals the writer pump to flush, send a close frame and close the
// socket. Safe to call any number of times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosing
		c.mu.Unlock()
		close(c.done)
	})
}

// writePump owns every write on the socket: queued frames, periodic pings
// and the final close frame. One goroutine per connection.
func (c *Conn) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		// flush whatever was queued before the close was requested, the
		// auth-timeout error frame arrives this way
		for {
			select {
			case payload := <-c.send:
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.ws.WriteMessage(websocket.TextMessage, payload)
				continue
			default:
			}
			break
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[gateway] write err conn=%s user=%s err=%v", c.ID, c.UserID(), err)
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Debugf("[gateway] ping err conn=%s user=%s err=%v", c.ID, c.UserID(), err)
				return
			}
		}
	}
}
