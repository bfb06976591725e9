package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
)

// Config for the MongoDB connection.
type Config struct {
	URI            string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
	MaxRetry       int
}

func (c *Config) norm() {
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 20
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 3
	}
}

// Connect dials MongoDB with bounded retries and exponential backoff and
// returns the configured database handle.
func Connect(ctx context.Context, cfg Config) (*mongo.Database, error) {
	cfg.norm()
	if cfg.URI == "" {
		return nil, errs.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errs.New("mongo database is required")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize))

	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetry; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		cli, err := mongo.Connect(cctx, opts)
		if err == nil {
			err = cli.Ping(cctx, readpref.Primary())
			if err == nil {
				cancel()
				return cli.Database(cfg.Database), nil
			}
			_ = cli.Disconnect(cctx)
		}
		cancel()
		lastErr = err
		logger.Warnf("[mongo] connect attempt %d failed: %v", attempt+1, err)

		select {
		case <-ctx.Done():
			return nil, errs.WrapMsg(ctx.Err(), "mongo connect canceled")
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
	return nil, errs.WrapMsg(lastErr, "mongo connect exhausted retries", "uri", cfg.URI)
}
