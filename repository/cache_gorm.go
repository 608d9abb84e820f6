package repository

import (
	"context"
	"time"

	domainCache "github.com/AzielCF/az-audit/domains/cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Model ---

type cacheEntryModel struct {
	Key       string    `gorm:"primaryKey"`
	Type      string    `gorm:"primaryKey;index:idx_cache_entries_type"`
	Payload   []byte    `gorm:"type:blob"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index:idx_cache_entries_expires"`
}

func (cacheEntryModel) TableName() string {
	return "cache_entries"
}

// --- Repository Implementation ---

type CacheGormStore struct {
	db *gorm.DB
}

func NewCacheGormStore(db *gorm.DB) *CacheGormStore {
	return &CacheGormStore{db: db}
}

func (r *CacheGormStore) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&cacheEntryModel{})
}

func (r *CacheGormStore) Get(ctx context.Context, key, cacheType string) (*domainCache.Entry, error) {
	var m cacheEntryModel
	err := r.db.WithContext(ctx).Where("key = ? AND type = ?", key, cacheType).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	entry := fromCacheModel(m)
	return &entry, nil
}

func (r *CacheGormStore) Upsert(ctx context.Context, entry *domainCache.Entry) error {
	m := toCacheModel(entry)
	// Primary-keyed upsert keeps the write atomic: a row is never half new.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at", "expires_at"}),
	}).Create(&m).Error
}

func (r *CacheGormStore) Delete(ctx context.Context, key, cacheType string) error {
	tx := r.db.WithContext(ctx)
	switch {
	case key != "" && cacheType != "":
		return tx.Where("key = ? AND type = ?", key, cacheType).Delete(&cacheEntryModel{}).Error
	case cacheType != "":
		return tx.Where("type = ?", cacheType).Delete(&cacheEntryModel{}).Error
	default:
		return tx.Where("1 = 1").Delete(&cacheEntryModel{}).Error
	}
}

func (r *CacheGormStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&cacheEntryModel{})
	return result.RowsAffected, result.Error
}

func (r *CacheGormStore) Stats(ctx context.Context) ([]TypeCount, error) {
	var rows []TypeCount
	err := r.db.WithContext(ctx).
		Model(&cacheEntryModel{}).
		Select("type, COUNT(*) AS entries, COALESCE(SUM(LENGTH(payload)), 0) AS bytes").
		Group("type").
		Scan(&rows).Error
	return rows, err
}

func toCacheModel(e *domainCache.Entry) cacheEntryModel {
	return cacheEntryModel{
		Key:       e.Key,
		Type:      e.Type,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		ExpiresAt: e.ExpiresAt,
	}
}

func fromCacheModel(m cacheEntryModel) domainCache.Entry {
	return domainCache.Entry{
		Key:       m.Key,
		Type:      m.Type,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
