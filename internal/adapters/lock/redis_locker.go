package lock

import (
	"context"
	"fmt"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still holds our token, so a lease that
// expired and was re-acquired by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Same token check as releaseScript; ARGV[2] is the new TTL in milliseconds.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds per-route leases in Redis so every server instance
// shares the same exclusion.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "route-lease:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, routeID string, ttl time.Duration) (ports.Lease, error) {
	key := l.prefix + routeID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire route lease %s: %w", routeID, err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}

	return &redisLease{client: l.client, routeID: routeID, key: key, token: token}, nil
}

type redisLease struct {
	client  redis.UniversalClient
	routeID string
	key     string
	token   string
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend route lease %s: %w", l.routeID, err)
	}
	if n == 0 {
		return fmt.Errorf("extend route lease %s: %w", l.routeID, domain.ErrLeaseLost)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release route lease %s: %w", l.routeID, err)
	}
	return nil
}
