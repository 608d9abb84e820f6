package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AzielCF/az-audit/config"
	domainCache "github.com/AzielCF/az-audit/domains/cache"
	"github.com/AzielCF/az-audit/repository"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// CacheOptions tunes the cache service. Zero values fall back to the global
// configuration defaults.
type CacheOptions struct {
	DefaultTTL    time.Duration
	TypeTTLs      map[string]time.Duration
	RefreshDelay  time.Duration
	SweepInterval time.Duration
	QueueSize     int
}

type refreshTask struct {
	key       string
	cacheType string
	fetchFn   domainCache.FetchFn
}

type cacheService struct {
	store repository.ICacheStore

	defaultTTL    time.Duration
	typeTTLs      map[string]time.Duration
	refreshDelay  time.Duration
	sweepInterval time.Duration

	queue      chan refreshTask
	inflightMu sync.Mutex
	inflight   map[string]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewCacheService(store repository.ICacheStore, opts CacheOptions) domainCache.ICacheUsecase {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = config.CacheDefaultTTL
	}
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = config.CacheRefreshDelay
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = config.CacheSweepInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = config.CacheRefreshQueueSize
	}
	if opts.TypeTTLs == nil {
		opts.TypeTTLs = map[string]time.Duration{}
	}

	return &cacheService{
		store:         store,
		defaultTTL:    opts.DefaultTTL,
		typeTTLs:      opts.TypeTTLs,
		refreshDelay:  opts.RefreshDelay,
		sweepInterval: opts.SweepInterval,
		queue:         make(chan refreshTask, opts.QueueSize),
		inflight:      make(map[string]struct{}),
	}
}

func (s *cacheService) ttlFor(cacheType string) time.Duration {
	if ttl, ok := s.typeTTLs[cacheType]; ok && ttl > 0 {
		return ttl
	}
	return s.defaultTTL
}

func (s *cacheService) Get(ctx context.Context, key, cacheType string) (json.RawMessage, error) {
	entry, err := s.store.Get(ctx, key, cacheType)
	if err != nil {
		// A broken store must not take reads down; treat as a miss.
		logrus.WithError(err).Warnf("[CACHE] Read failed for %s/%s, treating as miss", cacheType, key)
		return nil, domainCache.ErrMiss{}
	}
	if entry == nil || entry.Expired(time.Now().UTC()) {
		return nil, domainCache.ErrMiss{}
	}
	return entry.Payload, nil
}

func (s *cacheService) Set(ctx context.Context, key, cacheType string, payload json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttlFor(cacheType)
	}
	now := time.Now().UTC()
	entry := &domainCache.Entry{
		Key:       key,
		Type:      cacheType,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		logrus.WithError(err).Warnf("[CACHE] Failed to persist %s/%s", cacheType, key)
		return err
	}
	return nil
}

func (s *cacheService) Invalidate(ctx context.Context, key, cacheType string) error {
	return s.store.Delete(ctx, key, cacheType)
}

func (s *cacheService) GetOrFetch(ctx context.Context, key, cacheType string, fetchFn domainCache.FetchFn) (json.RawMessage, error) {
	entry, err := s.store.Get(ctx, key, cacheType)
	if err != nil {
		logrus.WithError(err).Warnf("[CACHE] Read failed for %s/%s, falling through to fetch", cacheType, key)
		entry = nil
	}

	now := time.Now().UTC()
	if entry != nil && !entry.Expired(now) {
		if entry.Stale(now) {
			s.enqueueRefresh(key, cacheType, fetchFn)
		}
		return entry.Payload, nil
	}

	// Miss: fetch synchronously, the caller needs a value now.
	payload, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}
	// A failed store still returns the fresh value to the caller.
	_ = s.Set(ctx, key, cacheType, payload, 0)
	return payload, nil
}

// enqueueRefresh schedules a background refresh, deduplicating keys already
// queued or running so a hot entry cannot flood the worker.
func (s *cacheService) enqueueRefresh(key, cacheType string, fetchFn domainCache.FetchFn) {
	mapKey := cacheType + "|" + key

	s.inflightMu.Lock()
	if _, busy := s.inflight[mapKey]; busy {
		s.inflightMu.Unlock()
		return
	}
	s.inflight[mapKey] = struct{}{}
	s.inflightMu.Unlock()

	select {
	case s.queue <- refreshTask{key: key, cacheType: cacheType, fetchFn: fetchFn}:
		logrus.Debugf("[CACHE] Queued background refresh for %s/%s", cacheType, key)
	default:
		s.clearInflight(mapKey)
		logrus.Warnf("[CACHE] Refresh queue full, skipping refresh for %s/%s", cacheType, key)
	}
}

func (s *cacheService) clearInflight(mapKey string) {
	s.inflightMu.Lock()
	delete(s.inflight, mapKey)
	s.inflightMu.Unlock()
}

func (s *cacheService) Stats(ctx context.Context) (domainCache.CacheStats, error) {
	rows, err := s.store.Stats(ctx)
	if err != nil {
		return domainCache.CacheStats{}, err
	}

	stats := domainCache.CacheStats{
		ByType:   make(map[string]domainCache.TypeStats, len(rows)),
		QueueLen: len(s.queue),
	}
	for _, row := range rows {
		stats.Entries += row.Entries
		stats.TotalSize += row.Bytes
		stats.ByType[row.Type] = domainCache.TypeStats{
			Entries:   row.Entries,
			TotalSize: row.Bytes,
			HumanSize: humanize.Bytes(uint64(row.Bytes)),
		}
	}
	stats.HumanSize = humanize.Bytes(uint64(stats.TotalSize))
	return stats, nil
}

func (s *cacheService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel

		s.wg.Add(2)
		go s.refreshWorker(runCtx)
		go s.sweepLoop(runCtx)

		logrus.Infof("[CACHE] Started (refresh delay: %v, sweep interval: %v)", s.refreshDelay, s.sweepInterval)
	})
}

func (s *cacheService) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		logrus.Info("[CACHE] Stopped")
	})
}

// refreshWorker drains the queue strictly in order, one task at a time, with
// a small delay between tasks so refreshes never burst the upstream API.
func (s *cacheService) refreshWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.queue:
			s.runRefresh(ctx, task)

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.refreshDelay):
			}
		}
	}
}

func (s *cacheService) runRefresh(ctx context.Context, task refreshTask) {
	mapKey := task.cacheType + "|" + task.key
	defer s.clearInflight(mapKey)
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[CACHE] Refresh panic for %s/%s: %v", task.cacheType, task.key, r)
		}
	}()

	payload, err := task.fetchFn(ctx)
	if err != nil {
		// The entry already served stays valid; a failed refresh only logs.
		logrus.WithError(err).Warnf("[CACHE] Background refresh failed for %s/%s", task.cacheType, task.key)
		return
	}
	if err := s.Set(ctx, task.key, task.cacheType, payload, 0); err != nil {
		return
	}
	logrus.Debugf("[CACHE] Refreshed %s/%s", task.cacheType, task.key)
}

func (s *cacheService) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				logrus.WithError(err).Warn("[CACHE] Expiry sweep failed")
				continue
			}
			if deleted > 0 {
				logrus.Infof("[CACHE] Expiry sweep removed %d entries", deleted)
			}
		}
	}
}
