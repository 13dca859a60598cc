package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"parking-system/internal/logging"
)

const (
	defaultKeyPrefix     = "parking:exit-lock:"
	defaultRetryInterval = 50 * time.Millisecond
)

// Deletes the key only while it still carries our token, so an expired lock
// taken over by another gate is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// RedisLocker shares exit locks between service instances.
type RedisLocker struct {
	client        redisClient
	ttl           time.Duration
	retryInterval time.Duration
	prefix        string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return newRedisLocker(client, ttl)
}

func newRedisLocker(client redisClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
		prefix:        defaultKeyPrefix,
	}
}

// NewRedisClient opens a client the way the rest of the service configures Redis.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retryInterval)
	defer ticker.Stop()

	for {
		acquired, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if acquired {
			return func() { r.unlock(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *RedisLocker) unlock(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := unlockScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
		logging.Warn(ctx).Err(err).Str("key", redisKey).Msg("failed to release exit lock")
	}
}
