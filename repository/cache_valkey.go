package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainCache "github.com/AzielCF/az-audit/domains/cache"
	"github.com/AzielCF/az-audit/infrastructure/valkey"
)

// CacheValkeyStore implements ICacheStore on Valkey. Entries are stored as
// JSON with a server-side TTL slightly past ExpiresAt so Valkey itself acts
// as the expiry sweep; a per-type index set supports type-wide invalidation
// and stats.
type CacheValkeyStore struct {
	client *valkey.Client
	prefix string
}

func NewCacheValkeyStore(client *valkey.Client) *CacheValkeyStore {
	return &CacheValkeyStore{
		client: client,
		prefix: client.Key("cache") + ":",
	}
}

func (s *CacheValkeyStore) entryKey(key, cacheType string) string {
	return s.prefix + cacheType + ":" + key
}

func (s *CacheValkeyStore) indexKey(cacheType string) string {
	return s.prefix + "index:" + cacheType
}

func (s *CacheValkeyStore) typesKey() string {
	return s.prefix + "types"
}

func (s *CacheValkeyStore) Get(ctx context.Context, key, cacheType string) (*domainCache.Entry, error) {
	cmd := s.client.Inner().B().Get().Key(s.entryKey(key, cacheType)).Build()
	data, err := s.client.Inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry from valkey: %w", err)
	}

	var entry domainCache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

func (s *CacheValkeyStore) Upsert(ctx context.Context, entry *domainCache.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// Logical expiry is decided by the caller; the server-side TTL only
	// garbage-collects, so hold the row a full TTL past ExpiresAt.
	grace := entry.ExpiresAt.Sub(entry.UpdatedAt)
	if grace <= 0 {
		grace = time.Minute
	}
	holdUntil := entry.ExpiresAt.Add(grace)
	ttl := time.Until(holdUntil)
	if ttl <= 0 {
		ttl = time.Minute
	}

	inner := s.client.Inner()
	setCmd := inner.B().Set().Key(s.entryKey(entry.Key, entry.Type)).Value(string(data)).Px(ttl).Build()
	if err := inner.Do(ctx, setCmd).Error(); err != nil {
		return fmt.Errorf("failed to save cache entry to valkey: %w", err)
	}

	addIdx := inner.B().Sadd().Key(s.indexKey(entry.Type)).Member(entry.Key).Build()
	if err := inner.Do(ctx, addIdx).Error(); err != nil {
		return fmt.Errorf("failed to index cache entry: %w", err)
	}
	addType := inner.B().Sadd().Key(s.typesKey()).Member(entry.Type).Build()
	return inner.Do(ctx, addType).Error()
}

func (s *CacheValkeyStore) Delete(ctx context.Context, key, cacheType string) error {
	switch {
	case key != "" && cacheType != "":
		return s.deleteOne(ctx, key, cacheType)
	case cacheType != "":
		return s.deleteType(ctx, cacheType)
	default:
		types, err := s.types(ctx)
		if err != nil {
			return err
		}
		for _, t := range types {
			if err := s.deleteType(ctx, t); err != nil {
				return err
			}
		}
		delTypes := s.client.Inner().B().Del().Key(s.typesKey()).Build()
		return s.client.Inner().Do(ctx, delTypes).Error()
	}
}

func (s *CacheValkeyStore) deleteOne(ctx context.Context, key, cacheType string) error {
	inner := s.client.Inner()
	del := inner.B().Del().Key(s.entryKey(key, cacheType)).Build()
	if err := inner.Do(ctx, del).Error(); err != nil {
		return err
	}
	rem := inner.B().Srem().Key(s.indexKey(cacheType)).Member(key).Build()
	return inner.Do(ctx, rem).Error()
}

func (s *CacheValkeyStore) deleteType(ctx context.Context, cacheType string) error {
	keys, err := s.members(ctx, cacheType)
	if err != nil {
		return err
	}
	inner := s.client.Inner()
	for _, k := range keys {
		del := inner.B().Del().Key(s.entryKey(k, cacheType)).Build()
		if err := inner.Do(ctx, del).Error(); err != nil {
			return err
		}
	}
	delIdx := inner.B().Del().Key(s.indexKey(cacheType)).Build()
	return inner.Do(ctx, delIdx).Error()
}

// DeleteExpired prunes index members whose entry key already evaporated.
// Valkey expires the entry values on its own.
func (s *CacheValkeyStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	types, err := s.types(ctx)
	if err != nil {
		return 0, err
	}

	var pruned int64
	inner := s.client.Inner()
	for _, t := range types {
		keys, err := s.members(ctx, t)
		if err != nil {
			return pruned, err
		}
		for _, k := range keys {
			exists := inner.B().Exists().Key(s.entryKey(k, t)).Build()
			n, err := inner.Do(ctx, exists).AsInt64()
			if err != nil {
				return pruned, err
			}
			if n == 0 {
				rem := inner.B().Srem().Key(s.indexKey(t)).Member(k).Build()
				if err := inner.Do(ctx, rem).Error(); err != nil {
					return pruned, err
				}
				pruned++
			}
		}
	}
	return pruned, nil
}

func (s *CacheValkeyStore) Stats(ctx context.Context) ([]TypeCount, error) {
	types, err := s.types(ctx)
	if err != nil {
		return nil, err
	}

	inner := s.client.Inner()
	rows := make([]TypeCount, 0, len(types))
	for _, t := range types {
		keys, err := s.members(ctx, t)
		if err != nil {
			return nil, err
		}
		row := TypeCount{Type: t}
		for _, k := range keys {
			strlen := inner.B().Strlen().Key(s.entryKey(k, t)).Build()
			n, err := inner.Do(ctx, strlen).AsInt64()
			if err != nil {
				return nil, err
			}
			if n == 0 {
				continue
			}
			row.Entries++
			row.Bytes += n
		}
		if row.Entries > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *CacheValkeyStore) types(ctx context.Context) ([]string, error) {
	cmd := s.client.Inner().B().Smembers().Key(s.typesKey()).Build()
	types, err := s.client.Inner().Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return types, nil
}

func (s *CacheValkeyStore) members(ctx context.Context, cacheType string) ([]string, error) {
	cmd := s.client.Inner().B().Smembers().Key(s.indexKey(cacheType)).Build()
	keys, err := s.client.Inner().Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}
