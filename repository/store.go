package repository

import (
	"context"
	"time"

	domainCache "github.com/AzielCF/az-audit/domains/cache"
	domainDetection "github.com/AzielCF/az-audit/domains/detection"
)

// TypeCount is one row of the per-type cache stats breakdown.
type TypeCount struct {
	Type    string
	Entries int
	Bytes   int64
}

// ICacheStore is the persistence backend behind the cache usecase. Get
// returns (nil, nil) for an absent entry; expiry is decided by the caller.
type ICacheStore interface {
	Get(ctx context.Context, key, cacheType string) (*domainCache.Entry, error)
	Upsert(ctx context.Context, entry *domainCache.Entry) error
	// Delete removes one entry (key+type), a whole type (type only), or
	// everything (both empty).
	Delete(ctx context.Context, key, cacheType string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	Stats(ctx context.Context) ([]TypeCount, error)
}

// IDetectionStore persists aggregated detection records.
type IDetectionStore interface {
	// ReplaceCategory upserts the given records by id and removes stale rows
	// of the same category that the latest run no longer produced.
	ReplaceCategory(ctx context.Context, category string, records []domainDetection.Record) error
	GetAll(ctx context.Context) ([]domainDetection.Record, error)
}
