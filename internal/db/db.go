package db

import (
	"context"
	"time"
)

// Store is the key-value facade behind the similar-tracks cache and the request quota.
type Store interface {
	Pinger
	KVStore
	CounterStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CounterStore provides atomic counters for quota tracking.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	// Expire sets a TTL. nx=true only sets it when the key has none yet.
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}
