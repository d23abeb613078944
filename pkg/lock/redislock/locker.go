// Package redislock keeps recurring rule execution leases in Redis, for
// deployments where several schedulers share one rule store.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "pipefy:rule-lock:"

// releaseScript deletes the lease only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements scheduler.Locker with SET NX PX.
type Locker struct {
	client redis.UniversalClient
	prefix string
}

var _ scheduler.Locker = (*Locker)(nil)

func New(client redis.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Locker{client: client, prefix: prefix}
}

// NewFromURL connects to the Redis server at a redis:// URL.
func NewFromURL(ctx context.Context, url string) (*Locker, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client, ""), nil
}

func (l *Locker) key(ruleID string) string {
	return l.prefix + ruleID
}

func (l *Locker) Acquire(ctx context.Context, ruleID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	err := l.client.SetArgs(ctx, l.key(ruleID), token, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()

	switch {
	case errors.Is(err, redis.Nil):
		return "", scheduler.ErrAlreadyExecuting
	case err != nil:
		return "", fmt.Errorf("failed to acquire lease for rule %s: %w", ruleID, err)
	}

	return token, nil
}

func (l *Locker) Release(ctx context.Context, ruleID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(ruleID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lease for rule %s: %w", ruleID, err)
	}

	return nil
}

func (l *Locker) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Locker) Close() error {
	return l.client.Close()
}
