package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one durable cache row. The (Key, Type) pair is unique; Payload is
// opaque JSON owned by the caller.
type Entry struct {
	Key       string          `json:"key"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Stale reports whether the entry consumed more than half of its TTL and
// should be refreshed in the background.
func (e Entry) Stale(now time.Time) bool {
	ttl := e.ExpiresAt.Sub(e.UpdatedAt)
	if ttl <= 0 {
		return true
	}
	return now.Sub(e.UpdatedAt) > ttl/2
}

// FetchFn produces a fresh payload for a cache key, typically by calling the
// remote directory API.
type FetchFn func(ctx context.Context) (json.RawMessage, error)

type TypeStats struct {
	Entries   int    `json:"entries"`
	TotalSize int64  `json:"total_size"`
	HumanSize string `json:"human_size"`
}

type CacheStats struct {
	Entries   int                  `json:"entries"`
	TotalSize int64                `json:"total_size"`
	HumanSize string               `json:"human_size"`
	ByType    map[string]TypeStats `json:"by_type"`
	QueueLen  int                  `json:"refresh_queue_len"`
}

// ErrMiss is returned by Get for absent or expired entries.
type ErrMiss struct{}

func (ErrMiss) Error() string { return "cache miss" }

type ICacheUsecase interface {
	// Get returns the payload of a non-expired entry, or ErrMiss.
	Get(ctx context.Context, key, cacheType string) (json.RawMessage, error)
	// Set upserts an entry. ttl == 0 uses the default TTL for cacheType.
	Set(ctx context.Context, key, cacheType string, payload json.RawMessage, ttl time.Duration) error
	// Invalidate deletes one entry (key+type), a whole type (type only), or
	// everything (both empty).
	Invalidate(ctx context.Context, key, cacheType string) error
	// GetOrFetch serves a stored non-expired payload immediately, scheduling a
	// background refresh when the entry is past half of its TTL. On miss the
	// fetch runs synchronously and its result is stored and returned.
	GetOrFetch(ctx context.Context, key, cacheType string, fetchFn FetchFn) (json.RawMessage, error)

	Stats(ctx context.Context) (CacheStats, error)

	// Start spawns the background refresh worker and the expiry sweep loop.
	// Both stop when ctx is cancelled or Stop is called.
	Start(ctx context.Context)
	Stop()
}
