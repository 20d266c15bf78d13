package ratelimit

import (
	"context"
	"time"
)

// Backend names reported by stores.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Bucket is the state of one fixed window.
type Bucket struct {
	Count     uint64    `json:"count"`
	ResetTime time.Time `json:"resetTime"`
}

// Store keeps fixed-window counters.
//
// Increment is atomic per key: concurrent increments of the same live window
// observe distinct consecutive counts. A window that has reached its ResetTime
// is gone, and the next Increment starts a new one at count 1.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (Bucket, error)
	// Get returns the live bucket for key. ok is false when it is missing or expired.
	Get(ctx context.Context, key string) (bucket Bucket, ok bool, err error)
	Close() error
}

// StoreHealth describes the backend currently serving a store.
type StoreHealth struct {
	Backend  string `json:"backend"`
	Degraded bool   `json:"degraded"`
	Detail   string `json:"detail,omitempty"`
}

// HealthReporter is implemented by stores that can describe their backend.
type HealthReporter interface {
	Health(ctx context.Context) StoreHealth
}
