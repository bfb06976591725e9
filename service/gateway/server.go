package gateway

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
	"PlayGrid/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// cross-origin policy is enforced by the Origin middleware upstream
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conf tunes the gateway server.
type Conf struct {
	NodeID string

	AuthDeadline time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int

	QueueCapPerUser int
	StoreTimeout    time.Duration
}

func (c *Conf) norm() {
	if c.NodeID == "" {
		c.NodeID = "rt_gw-1"
	}
	if c.AuthDeadline <= 0 {
		c.AuthDeadline = 15 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
}

// Server is the realtime gateway: it owns the connection registry, the
// subscription registry, the store-and-forward queue and the broadcast
// pipeline, and dispatches inbound frames from each connection's read loop.
type Server struct {
	conf Conf

	mgr   *Manager
	subs  *Subscriptions
	queue *OfflineQueue
	pipe  *Pipeline

	store    MessageStore
	verifier TokenVerifier
	presence PresenceSink // optional
}

// Option customizes optional collaborators.
type Option func(*Server)

// WithEvents wires a post-persistence event sink (Kafka in production).
func WithEvents(sink EventSink) Option {
	return func(s *Server) {
		s.pipe.events = sink
	}
}

// WithPresence wires the advisory online-state mirror (Redis in production).
func WithPresence(p PresenceSink) Option {
	return func(s *Server) {
		s.presence = p
	}
}

func NewServer(conf Conf, store MessageStore, verifier TokenVerifier, opts ...Option) *Server {
	conf.norm()
	subs := NewSubscriptions()
	mgr := NewManager(ManagerConf{
		AuthDeadline: conf.AuthDeadline,
		StaleAfter:   2 * conf.PongWait,
		SendBuffer:   conf.SendBuffer,
	}, subs)
	queue := NewOfflineQueue(conf.QueueCapPerUser)

	s := &Server{
		conf:     conf,
		mgr:      mgr,
		subs:     subs,
		queue:    queue,
		store:    store,
		verifier: verifier,
	}
	s.pipe = NewPipeline(store, mgr, subs, queue, nil, conf.StoreTimeout)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Manager exposes the connection registry (stats endpoints, tests).
func (s *Server) Manager() *Manager { return s.mgr }

// Close tears down every live connection.
func (s *Server) Close() { s.mgr.Close() }

// HandleWS upgrades the HTTP request and runs the connection until it dies.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[gateway] upgrade failed: %v", err)
		return
	}
	s.serve(ws)
}

// serve runs the full lifecycle for one socket: register, handshake window,
// read loop, teardown. Blocks until the connection is gone.
func (s *Server) serve(ws socket) {
	conn := s.mgr.Register(ws)
	logger.Infof("[gateway] connected conn=%s", conn.ID)

	ws.SetReadLimit(1 << 20) // 1MB
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
		conn.touch()
		return nil
	})

	_ = conn.Send(BuildConnected(conn.ID))
	safe.Go(func() { conn.writePump(s.conf.PingInterval, s.conf.WriteWait) })

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[gateway] peer closed conn=%s", conn.ID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[gateway] read timeout conn=%s", conn.ID)
			} else {
				logger.Debugf("[gateway] read err conn=%s err=%v", conn.ID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.dispatch(conn, data)
	}

	s.teardown(conn)
}

// dispatch handles one inbound frame. Runs in the connection's read
// goroutine; recovers from panics so one bad frame never takes the gateway
// down or leaks across connections.
func (s *Server) dispatch(conn *Conn, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[gateway] handler panic conn=%s: %v", conn.ID, r)
			_ = conn.Send(BuildError(errs.ErrServerInternal))
		}
	}()
	conn.touch()

	ft, body, err := ParseFrame(raw)
	if err != nil {
		// malformed frames are logged and ignored, the connection stays up
		logger.Warnf("[gateway] malformed frame conn=%s err=%v", conn.ID, err)
		return
	}

	ctx := context.Background()

	switch ft {
	case FrameAuth:
		p, perr := DecodePayload[AuthPayload](body)
		if perr != nil || p.Token == "" {
			_ = conn.Send(BuildError(errs.ErrAuthInvalid.WithDetail("missing token")))
			return
		}
		s.handleAuth(ctx, conn, p.Token)

	case FrameJoin:
		if conn.State() != StateAuthenticated {
			_ = conn.Send(BuildError(errs.ErrNotAuthorized))
			return
		}
		p, perr := DecodePayload[ConversationPayload](body)
		if perr != nil || p.ConversationID == "" {
			logger.Warnf("[gateway] bad join conn=%s err=%v", conn.ID, perr)
			return
		}
		s.subs.Join(conn.ID, p.ConversationID)

	case FrameLeave:
		p, perr := DecodePayload[ConversationPayload](body)
		if perr != nil || p.ConversationID == "" {
			logger.Warnf("[gateway] bad leave conn=%s err=%v", conn.ID, perr)
			return
		}
		s.subs.Leave(conn.ID, p.ConversationID)

	case FrameMessage:
		p, perr := DecodePayload[MessagePayload](body)
		if perr != nil {
			logger.Warnf("[gateway] bad message frame conn=%s err=%v", conn.ID, perr)
			return
		}
		if herr := s.pipe.HandleInbound(ctx, conn, p); herr != nil {
			logger.Warnf("[gateway] inbound message rejected conn=%s err=%v", conn.ID, herr)
			_ = conn.Send(BuildError(herr))
		}

	case FramePing:
		s.touchPresence(ctx, conn)
		_ = conn.Send(BuildPong())

	case FrameMarkRead:
		if conn.State() != StateAuthenticated {
			_ = conn.Send(BuildError(errs.ErrNotAuthorized))
			return
		}
		p, perr := DecodePayload[MarkReadPayload](body)
		if perr != nil || p.FromUserID == "" {
			logger.Warnf("[gateway] bad mark_read conn=%s err=%v", conn.ID, perr)
			return
		}
		sctx, cancel := context.WithTimeout(ctx, s.conf.StoreTimeout)
		defer cancel()
		if merr := s.store.MarkMessagesAsRead(sctx, p.FromUserID, conn.UserID()); merr != nil {
			_ = conn.Send(BuildError(errs.ErrPersistence.WrapMsg("mark read", "err", merr)))
		}

	case FrameHistory:
		if conn.State() != StateAuthenticated {
			_ = conn.Send(BuildError(errs.ErrNotAuthorized))
			return
		}
		p, perr := DecodePayload[HistoryPayload](body)
		if perr != nil || p.WithUserID == "" {
			logger.Warnf("[gateway] bad history conn=%s err=%v", conn.ID, perr)
			return
		}
		sctx, cancel := context.WithTimeout(ctx, s.conf.StoreTimeout)
		defer cancel()
		msgs, gerr := s.store.GetMessages(sctx, conn.UserID(), p.WithUserID)
		if gerr != nil {
			_ = conn.Send(BuildError(errs.ErrPersistence.WrapMsg("history", "err", gerr)))
			return
		}
		_ = conn.Send(BuildHistory(p.WithUserID, msgs))

	default:
		logger.Warnf("[gateway] unknown frame type=%q conn=%s", ft, conn.ID)
	}
}

// handleAuth runs the authentication handshake: verify the token, bind the
// identity, supersede any previous session for the user, replay the offline
// queue. Verification failure leaves the connection open so the client can
// retry before the deadline.
func (s *Server) handleAuth(ctx context.Context, conn *Conn, token string) {
	id, err := s.verifier.VerifyToken(token)
	if err != nil {
		logger.Infof("[gateway] auth failed conn=%s err=%v", conn.ID, err)
		_ = conn.Send(BuildError(errs.ErrAuthInvalid))
		return
	}

	prev, err := s.mgr.MarkAuthenticated(conn.ID, id.UserID, id.Username)
	if err != nil {
		_ = conn.Send(BuildError(errs.ErrServerInternal))
		return
	}
	if prev != nil {
		// one live session per user: the older connection is told and closed
		logger.Infof("[gateway] superseding session user=%s old=%s new=%s", id.UserID, prev.ID, conn.ID)
		_ = prev.Send(BuildError(errs.ErrSessionReplaced))
		s.mgr.Unregister(prev.ID)
	}

	if s.presence != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if perr := s.presence.Online(pctx, id.UserID, conn.ID); perr != nil {
			logger.Warnf("[gateway] presence online failed user=%s err=%v", id.UserID, perr)
		}
	}

	_ = conn.Send(BuildAuthSuccess(id.UserID, id.Username))
	logger.Infof("[gateway] authenticated conn=%s user=%s", conn.ID, id.UserID)

	// store-and-forward replay, in enqueue order; Drain clears the entry so
	// a later authentication replays nothing twice
	for _, qp := range s.queue.Drain(id.UserID) {
		_ = conn.Send(BuildMessage(qp.ConversationID, qp.Message))
	}
}

func (s *Server) touchPresence(ctx context.Context, conn *Conn) {
	if s.presence == nil || conn.State() != StateAuthenticated {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.presence.Touch(pctx, conn.UserID()); err != nil {
		logger.Debugf("[gateway] presence touch failed user=%s err=%v", conn.UserID(), err)
	}
}

// teardown runs when the read loop exits for any reason.
func (s *Server) teardown(conn *Conn) {
	uid := conn.UserID()
	s.mgr.Unregister(conn.ID)

	if s.presence != nil && uid != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.presence.Offline(ctx, uid, conn.ID); err != nil {
			logger.Warnf("[gateway] presence offline failed user=%s err=%v", uid, err)
		}
	}
	logger.Infof("[gateway] closed conn=%s user=%s", conn.ID, uid)
}

// SendToUser pushes a pre-built frame to the connection currently bound to
// userID. This is the direct-send primitive used by sibling subsystems
// (availability notifier etc.); it bypasses conversation subscriptions.
func (s *Server) SendToUser(userID string, payload []byte) bool {
	c, ok := s.mgr.Bound(userID)
	if !ok {
		return false
	}
	if err := c.Send(payload); err != nil {
		logger.Warnf("[gateway] direct send failed user=%s err=%v", userID, err)
		return false
	}
	return true
}
