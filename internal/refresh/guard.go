package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard lets a single refresh run at a time. Acquire reports ok=false when
// another holder has it; release must be called once after a successful
// acquire.
type Guard interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalGuard serializes refreshes within one process.
type LocalGuard struct {
	busy atomic.Bool
}

func (g *LocalGuard) Acquire(context.Context) (func(), bool, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { g.busy.Store(false) }, true, nil
}

// releaseScript deletes the lock only while it still holds the caller's
// token, so a holder whose lock expired cannot drop a successor's lock.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// redisLocker is the part of the go-redis client the guard needs.
type redisLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisGuard serializes refreshes across replicas sharing a Redis server.
// The lock expires after ttl so a crashed holder cannot block others. Each
// acquire stores a fresh token and release only deletes a lock carrying it.
type RedisGuard struct {
	client redisLocker
	key    string
	ttl    time.Duration
}

// NewRedisGuard creates a guard on key. client is usually a *redis.Client.
func NewRedisGuard(client redisLocker, key string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, key: key, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		// The refresh context may already be done; release on a fresh one.
		g.client.Eval(context.Background(), releaseScript, []string{g.key}, token)
	}, true, nil
}
