package natsx

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
	"PlayGrid/tools/safe"
)

// Config for the NATS connection.
type Config struct {
	Servers []string
	Name    string
}

// Handler consumes one delivered message.
type Handler func(subject string, data []byte)

// Client is a thin wrapper over a core NATS connection with optional
// duplicate suppression keyed on the Nats-Msg-Id header.
type Client struct {
	nc      *nats.Conn
	idem    IdemStore
	idemTTL time.Duration
}

type Option func(*Client)

// WithIdem enables at-most-once handling per Nats-Msg-Id within ttl.
func WithIdem(store IdemStore, ttl time.Duration) Option {
	return func(c *Client) {
		c.idem = store
		c.idemTTL = ttl
	}
}

func Connect(cfg Config, opts ...Option) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.New("nats servers is empty")
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","),
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, derr error) {
			logger.Warnf("[natsx] disconnected: %v", derr)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Infof("[natsx] reconnected to %s", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", cfg.Servers)
	}
	c := &Client{nc: nc}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Subscribe delivers matching messages to h, skipping duplicates when idem
// suppression is configured.
func (c *Client) Subscribe(subject string, h Handler) error {
	_, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		if c.idem != nil {
			if id := m.Header.Get(nats.MsgIdHdr); id != "" {
				seen, serr := c.idem.SeenOnce(id, c.idemTTL)
				if serr != nil {
					logger.Warnf("[natsx] idem check failed id=%s err=%v", id, serr)
				} else if seen {
					return
				}
			}
		}
		safe.Run(func() { h(m.Subject, m.Data) })
	})
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	return nil
}

// Publish sends data on subject, stamping msgID (when non-empty) so
// consumers can deduplicate.
func (c *Client) Publish(subject string, data []byte, msgID string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if msgID != "" {
		msg.Header.Set(nats.MsgIdHdr, msgID)
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", subject)
	}
	return nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}
