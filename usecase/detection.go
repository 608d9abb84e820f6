package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-audit/config"
	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	"github.com/AzielCF/az-audit/pkg/scanmonitor"
	"github.com/AzielCF/az-audit/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry holds the pluggable detectors, keyed by category.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string]domainDetection.Detector
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]domainDetection.Detector)}
}

func (r *Registry) Add(d domainDetection.Detector) error {
	if d == nil {
		return fmt.Errorf("detector required")
	}
	category := d.Category()
	if category == "" {
		return fmt.Errorf("detector category required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.detectors[category]; exists {
		return fmt.Errorf("detector %s already registered", category)
	}
	r.detectors[category] = d
	r.order = append(r.order, category)
	return nil
}

func (r *Registry) All() []domainDetection.Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domainDetection.Detector, 0, len(r.order))
	for _, category := range r.order {
		out = append(out, r.detectors[category])
	}
	return out
}

func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

type detectionService struct {
	registry *Registry
	store    repository.IDetectionStore
	cacheTTL time.Duration

	runMu sync.Mutex // one RunAll at a time

	listMu     sync.RWMutex
	listCache  []domainDetection.Record
	listLoaded time.Time
	listValid  bool
}

func NewDetectionService(registry *Registry, store repository.IDetectionStore, cacheTTL time.Duration) domainDetection.IDetectionUsecase {
	if cacheTTL <= 0 {
		cacheTTL = config.DetectionCacheTTL
	}
	return &detectionService{
		registry: registry,
		store:    store,
		cacheTTL: cacheTTL,
	}
}

type detectorResult struct {
	category string
	findings []domainDetection.Finding
	err      error
	elapsed  time.Duration
}

func (s *detectionService) RunAll(ctx context.Context) ([]domainDetection.Record, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	detectors := s.registry.All()
	runID := uuid.New().String()
	runStart := time.Now()

	scanmonitor.Record(scanmonitor.Event{RunID: runID, Stage: "run_start", Status: "ok"})
	logrus.Infof("[DETECTION] Run %s started with %d detectors", runID, len(detectors))

	// Fan-out: one goroutine per detector, each isolated. A panicking or
	// failing detector contributes nothing, the rest still report.
	results := make([]detectorResult, len(detectors))
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d domainDetection.Detector) {
			defer wg.Done()
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					results[i] = detectorResult{
						category: d.Category(),
						err:      fmt.Errorf("detector panic: %v", r),
						elapsed:  time.Since(start),
					}
				}
			}()

			findings, err := d.Detect(ctx)
			results[i] = detectorResult{
				category: d.Category(),
				findings: findings,
				err:      err,
				elapsed:  time.Since(start),
			}
		}(i, d)
	}
	wg.Wait()

	// Fan-in: stamp, persist per category, tolerate partial failure.
	now := time.Now().UTC()
	var records []domainDetection.Record
	for _, res := range results {
		event := scanmonitor.Event{
			RunID:      runID,
			Category:   res.category,
			Stage:      "detector",
			Status:     "ok",
			Findings:   len(res.findings),
			DurationMs: res.elapsed.Milliseconds(),
		}

		if res.err != nil {
			event.Status = "error"
			event.Error = res.err.Error()
			scanmonitor.Record(event)
			logrus.WithError(res.err).Errorf("[DETECTION] Detector %s failed, contributing no findings", res.category)
			continue
		}
		scanmonitor.Record(event)

		categoryRecords := make([]domainDetection.Record, 0, len(res.findings))
		for _, f := range res.findings {
			if f.ID == "" {
				f.ID = uuid.New().String()
			}
			categoryRecords = append(categoryRecords, domainDetection.Record{
				Finding:    f,
				Category:   res.category,
				DetectedAt: now,
			})
		}

		if err := s.store.ReplaceCategory(ctx, res.category, categoryRecords); err != nil {
			// Persistence failure never discards computed findings.
			logrus.WithError(err).Errorf("[DETECTION] Failed to persist findings for %s", res.category)
		}
		records = append(records, categoryRecords...)
	}

	// The read cache is rebuilt lazily on the next GetAll.
	s.invalidateListCache()

	sortRecords(records)
	scanmonitor.Record(scanmonitor.Event{
		RunID:      runID,
		Stage:      "run_end",
		Status:     "ok",
		Findings:   len(records),
		DurationMs: time.Since(runStart).Milliseconds(),
	})
	logrus.Infof("[DETECTION] Run %s finished: %d findings in %v", runID, len(records), time.Since(runStart))
	return records, nil
}

func (s *detectionService) GetAll(ctx context.Context, forceRefresh bool) ([]domainDetection.Record, error) {
	if !forceRefresh {
		s.listMu.RLock()
		if s.listValid && time.Since(s.listLoaded) < s.cacheTTL {
			cached := append([]domainDetection.Record(nil), s.listCache...)
			s.listMu.RUnlock()
			return cached, nil
		}
		s.listMu.RUnlock()
	}

	records, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sortRecords(records)

	s.listMu.Lock()
	s.listCache = records
	s.listLoaded = time.Now()
	s.listValid = true
	s.listMu.Unlock()

	return append([]domainDetection.Record(nil), records...), nil
}

func (s *detectionService) GetByCategory(ctx context.Context, category string) ([]domainDetection.Record, error) {
	all, err := s.GetAll(ctx, false)
	if err != nil {
		return nil, err
	}

	filtered := make([]domainDetection.Record, 0)
	for _, rec := range all {
		if rec.Category == category {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// GetSummary is computed from the already-loaded GetAll view: one storage
// read regardless of how many categories exist.
func (s *detectionService) GetSummary(ctx context.Context) (map[string]domainDetection.CategorySummary, error) {
	all, err := s.GetAll(ctx, false)
	if err != nil {
		return nil, err
	}

	summary := make(map[string]domainDetection.CategorySummary)
	for _, rec := range all {
		entry, ok := summary[rec.Category]
		if !ok {
			entry = domainDetection.CategorySummary{
				Category: rec.Category,
				Counts:   make(map[domainDetection.Severity]int),
			}
		}
		entry.Total++
		entry.Counts[rec.Severity]++
		summary[rec.Category] = entry
	}
	return summary, nil
}

func (s *detectionService) Categories() []string {
	return s.registry.Categories()
}

func (s *detectionService) StartPeriodicScans(ctx context.Context) {
	interval := time.Duration(config.DetectionScanIntervalMin) * time.Minute
	logrus.Infof("[DETECTION] Starting periodic scan loop (interval: %v)", interval)
	ticker := time.NewTicker(interval)

	// Run once at start
	go func() {
		logrus.Info("[DETECTION] Performing initial scan")
		if _, err := s.RunAll(ctx); err != nil {
			logrus.WithError(err).Error("[DETECTION] Initial scan failed")
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logrus.Info("[DETECTION] Performing scheduled scan")
				if _, err := s.RunAll(ctx); err != nil {
					logrus.WithError(err).Error("[DETECTION] Scheduled scan failed")
				}
				// Pick up interval changes made through the settings API.
				ticker.Reset(time.Duration(config.DetectionScanIntervalMin) * time.Minute)
			}
		}
	}()
}

func (s *detectionService) invalidateListCache() {
	s.listMu.Lock()
	s.listValid = false
	s.listMu.Unlock()
}

// sortRecords orders by severity rank, then newest first, then id for a
// stable order across runs.
func sortRecords(records []domainDetection.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if ri, rj := records[i].Severity.Rank(), records[j].Severity.Rank(); ri != rj {
			return ri < rj
		}
		if !records[i].DetectedAt.Equal(records[j].DetectedAt) {
			return records[i].DetectedAt.After(records[j].DetectedAt)
		}
		return records[i].ID < records[j].ID
	})
}
