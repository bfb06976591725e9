package gateway

import (
	"sync"
	"time"

	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
	"PlayGrid/tools/ids"
)

// ManagerConf tunes the connection registry.
type ManagerConf struct {
	AuthDeadline time.Duration    // close unauthenticated connections after this
	SweepEvery   time.Duration    // stale sweep cadence
	StaleAfter   time.Duration    // reap connections idle longer than this
	SendBuffer   int              // per-connection outbound queue depth
	Clock        func() time.Time // injectable clock for tests; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.AuthDeadline <= 0 {
		c.AuthDeadline = 15 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 120 * time.Second
	}
}

// Manager is the connection registry: every live connection from register to
// close, plus the one-connection-per-user identity binding. Subscriptions
// cleanup is wired in so Unregister leaves no dangling topic membership.
type Manager struct {
	mu     sync.RWMutex
	byID   map[string]*Conn
	byUser map[string]*Conn // identity binding: at most one conn per user

	subs *Subscriptions
	conf ManagerConf

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewManager(conf ManagerConf, subs *Subscriptions) *Manager {
	conf.norm()
	m := &Manager{
		byID:   make(map[string]*Conn),
		byUser: make(map[string]*Conn),
		subs:   subs,
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

// Register creates an unauthenticated entry and arms its auth deadline. The
// caller still has to start the writer pump and read loop.
func (m *Manager) Register(ws socket) *Conn {
	c := newConn(ids.GenerateString(), ws, m.conf.SendBuffer)

	m.mu.Lock()
	m.byID[c.ID] = c
	m.mu.Unlock()

	c.setAuthTimer(time.AfterFunc(m.conf.AuthDeadline, func() {
		m.expireAuth(c.ID)
	}))
	return c
}

// MarkAuthenticated binds userID to the connection, cancels the auth
// deadline and supersedes any previous binding for the same user. The
// superseded connection (if any) is returned already unbound; the caller
// decides how to close it.
func (m *Manager) MarkAuthenticated(connID, userID, username string) (prev *Conn, err error) {
	if connID == "" || userID == "" {
		return nil, errs.New("connID/userID empty")
	}
	m.mu.Lock()
	c, ok := m.byID[connID]
	if !ok {
		m.mu.Unlock()
		return nil, errs.New("connection not registered", "conn_id", connID)
	}
	if old := m.byUser[userID]; old != nil && old.ID != connID {
		prev = old
	}
	m.byUser[userID] = c
	m.mu.Unlock()

	c.setAuthenticated(userID, username)
	return prev, nil
}

// Unregister tears down registry state for connID: auth timer, subscription
// membership, identity binding, the entry itself. Idempotent because both
// the error path and the close path call it.
func (m *Manager) Unregister(connID string) {
	m.mu.Lock()
	c, ok := m.byID[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byID, connID)
	if uid := c.UserID(); uid != "" && m.byUser[uid] == c {
		delete(m.byUser, uid)
	}
	m.mu.Unlock()

	c.stopTimers()
	if m.subs != nil {
		m.subs.DropConn(connID)
	}
	c.Close()
}

// Get returns the registry entry for connID.
func (m *Manager) Get(connID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[connID]
	return c, ok
}

// Bound returns the authenticated connection currently bound to userID.
func (m *Manager) Bound(userID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byUser[userID]
	return c, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Heartbeat refreshes the liveness clock for connID.
func (m *Manager) Heartbeat(connID string) {
	if c, ok := m.Get(connID); ok {
		c.touch()
	}
}

// Close shuts the sweeper and every live connection down.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.byID = make(map[string]*Conn)
	m.byUser = make(map[string]*Conn)
	m.mu.Unlock()

	for _, c := range conns {
		c.stopTimers()
		if m.subs != nil {
			m.subs.DropConn(c.ID)
		}
		c.Close()
	}
}

// expireAuth fires when the auth deadline passes before MarkAuthenticated.
func (m *Manager) expireAuth(connID string) {
	c, ok := m.Get(connID)
	if !ok || c.State() != StateUnauthenticated {
		return
	}
	logger.Infof("[gateway] auth timeout conn=%s", connID)
	_ = c.Send(BuildError(errs.ErrAuthTimeout))
	m.Unregister(connID)
}

func (m *Manager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

// sweepOnce reaps connections that stopped answering pings; collect under
// the lock, close outside it.
func (m *Manager) sweepOnce(now time.Time) {
	var stale []*Conn
	m.mu.RLock()
	for _, c := range m.byID {
		if now.Sub(c.LastActive()) > m.conf.StaleAfter {
			stale = append(stale, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range stale {
		logger.Infof("[gateway] reaping stale conn=%s user=%s", c.ID, c.UserID())
		m.Unregister(c.ID)
	}
}
