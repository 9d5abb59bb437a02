package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-payment-notify/internal/domain"
	"github.com/go-payment-notify/internal/pkg/id"
	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client.
type Client struct {
	*redis.Client
}

// New connects to url. Returns nil if the URL is empty (Redis not configured).
func New(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived exclusive locks shared by every replica.
type Locker struct {
	client *Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewLocker(client *Client, ttl time.Duration) *Locker {
	return &Locker{client: client, prefix: "payment-notify:lock:", ttl: ttl, wait: 5 * time.Second, retry: 50 * time.Millisecond}
}

// Lock blocks until key is free or the wait budget runs out, in which case the
// error wraps domain.ErrConflict. The lock expires on its own after ttl.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := id.New()
	full := l.prefix + key
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// Unlock must run even when the request context is already done.
				_ = unlockScript.Run(context.Background(), l.client, []string{full}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s busy: %w", key, domain.ErrConflict)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), domain.ErrConflict)
		case <-time.After(l.retry):
		}
	}
}
