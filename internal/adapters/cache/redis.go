package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tiergate:log:"

// RedisProvider implements Provider on Redis.
type RedisProvider struct {
	client *redis.Client
}

var _ Provider = (*RedisProvider)(nil)

// NewRedisProvider connects and pings the server at addr.
func NewRedisProvider(ctx context.Context, addr, password string) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
	}
	return &RedisProvider{client: client}, nil
}

func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := p.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := p.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}
