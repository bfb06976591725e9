package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence mirrors online state into Redis so sibling subsystems can answer
// "is user online" without asking the gateway. The in-process identity
// binding stays authoritative for delivery; these keys are advisory and
// self-expire when a node dies without cleaning up.
type Presence struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

// Offline must only clear the key when it still belongs to the connection
// going away, otherwise a reconnect racing a disconnect would flip the new
// session to offline.
const luaOfflineIfMatch = `
local cur = redis.call("GET", KEYS[1])
if cur == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var offlineScript = redis.NewScript(luaOfflineIfMatch)

func NewPresence(rdb *redis.Client, nodeID string, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Presence{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

func onlineKey(userID string) string { return "rt:online:" + userID }

// Online records the user's live connection. Value is node:conn so Offline
// can be conditional.
func (p *Presence) Online(ctx context.Context, userID, connID string) error {
	return p.rdb.Set(ctx, onlineKey(userID), p.nodeID+":"+connID, p.ttl).Err()
}

// Touch extends the TTL; called on client pings.
func (p *Presence) Touch(ctx context.Context, userID string) error {
	return p.rdb.Expire(ctx, onlineKey(userID), p.ttl).Err()
}

// Offline clears the mirror entry if it still points at connID.
func (p *Presence) Offline(ctx context.Context, userID, connID string) error {
	return offlineScript.Run(ctx, p.rdb, []string{onlineKey(userID)}, p.nodeID+":"+connID).Err()
}

// IsOnline answers the advisory presence question for other subsystems.
func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.rdb.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
