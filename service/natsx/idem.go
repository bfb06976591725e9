package natsx

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdemStore answers "have I seen this key within its TTL" exactly once per
// key.
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// ---- in-memory, single process ----

type memIdem struct {
	mu  sync.Mutex
	m   map[string]int64 // key -> expiry unix
	ttl time.Duration
}

func NewMemIdem(defaultTTL time.Duration) IdemStore {
	mi := &memIdem{m: make(map[string]int64), ttl: defaultTTL}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for range t.C {
			now := time.Now().Unix()
			mi.mu.Lock()
			for k, exp := range mi.m {
				if exp <= now {
					delete(mi.m, k)
				}
			}
			mi.mu.Unlock()
		}
	}()
	return mi
}

func (mi *memIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := time.Now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if exp, ok := mi.m[key]; ok && exp > now.Unix() {
		return true, nil
	}
	mi.m[key] = now.Add(ttl).Unix()
	return false, nil
}

// ---- redis-backed, survives restarts ----

type redisIdem struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdem(rdb *redis.Client, defaultTTL time.Duration) IdemStore {
	return &redisIdem{rdb: rdb, ttl: defaultTTL}
}

func (ri *redisIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = ri.ttl
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := ri.rdb.SetNX(ctx, "natsx:idem:"+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
