// Package cache stores raw log documents so repeated validations of the
// same permalink skip the log source.
package cache

import (
	"context"
	"time"
)

// Provider is a byte cache with per-entry expiry.
type Provider interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Noop never stores anything.
type Noop struct{}

var _ Provider = Noop{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Close() error { return nil }
