package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	category string
	findings []domainDetection.Finding
	err      error
	panics   bool
	calls    int
}

func (d *fakeDetector) Category() string { return d.category }

func (d *fakeDetector) Detect(_ context.Context) ([]domainDetection.Finding, error) {
	d.calls++
	if d.panics {
		panic("detector blew up")
	}
	return d.findings, d.err
}

type fakeDetectionStore struct {
	mu       sync.Mutex
	records  map[string][]domainDetection.Record // by category
	failFor  map[string]bool
	replaces []string
}

func newFakeDetectionStore() *fakeDetectionStore {
	return &fakeDetectionStore{
		records: make(map[string][]domainDetection.Record),
		failFor: make(map[string]bool),
	}
}

func (f *fakeDetectionStore) ReplaceCategory(_ context.Context, category string, records []domainDetection.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces = append(f.replaces, category)
	if f.failFor[category] {
		return errors.New("database locked")
	}
	f.records[category] = append([]domainDetection.Record(nil), records...)
	return nil
}

func (f *fakeDetectionStore) GetAll(_ context.Context) ([]domainDetection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domainDetection.Record
	for _, recs := range f.records {
		out = append(out, recs...)
	}
	return out, nil
}

func finding(id string, severity domainDetection.Severity) domainDetection.Finding {
	return domainDetection.Finding{
		ID:       id,
		Kind:     "test",
		Severity: severity,
		Title:    id,
	}
}

func TestRegistry_AddRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Add(&fakeDetector{category: "inactive-accounts"}))
	err := registry.Add(&fakeDetector{category: "inactive-accounts"})
	assert.ErrorContains(t, err, "already registered")

	assert.Error(t, registry.Add(nil))
	assert.Error(t, registry.Add(&fakeDetector{category: ""}))

	assert.Equal(t, []string{"inactive-accounts"}, registry.Categories())
}

func TestRegistry_PreservesInsertionOrder(t *testing.T) {
	registry := NewRegistry()
	for _, category := range []string{"c-third", "a-first", "b-second"} {
		require.NoError(t, registry.Add(&fakeDetector{category: category}))
	}
	assert.Equal(t, []string{"c-third", "a-first", "b-second"}, registry.Categories())
}

func TestDetection_RunAllAggregatesAcrossDetectors(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)},
	}))
	require.NoError(t, registry.Add(&fakeDetector{
		category: "inactive-accounts",
		findings: []domainDetection.Finding{
			finding("inactive-accounts/members", domainDetection.SeverityLow),
			finding("inactive-accounts/admins", domainDetection.SeverityHigh),
		},
	}))

	store := newFakeDetectionStore()
	svc := NewDetectionService(registry, store, time.Minute)

	records, err := svc.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Ordered by severity rank
	assert.Equal(t, domainDetection.SeverityCritical, records[0].Severity)
	assert.Equal(t, domainDetection.SeverityHigh, records[1].Severity)
	assert.Equal(t, domainDetection.SeverityLow, records[2].Severity)

	for _, rec := range records {
		assert.False(t, rec.DetectedAt.IsZero())
	}
	assert.ElementsMatch(t, []string{"admin-mfa", "inactive-accounts"}, store.replaces)
}

func TestDetection_FailingDetectorIsIsolated(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)},
	}))
	require.NoError(t, registry.Add(&fakeDetector{
		category: "license-capacity",
		err:      errors.New("directory unreachable"),
	}))

	store := newFakeDetectionStore()
	svc := NewDetectionService(registry, store, time.Minute)

	records, err := svc.RunAll(context.Background())
	require.NoError(t, err, "one failing detector must not fail the run")
	require.Len(t, records, 1)
	assert.Equal(t, "admin-mfa", records[0].Category)

	// The failed category was never written, so prior findings would survive.
	assert.NotContains(t, store.replaces, "license-capacity")
}

func TestDetection_PanickingDetectorIsIsolated(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{category: "disabled-licensed", panics: true}))
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)},
	}))

	store := newFakeDetectionStore()
	svc := NewDetectionService(registry, store, time.Minute)

	records, err := svc.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "admin-mfa", records[0].Category)
	assert.NotContains(t, store.replaces, "disabled-licensed")
}

func TestDetection_EmptyFindingIDGetsGenerated(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("", domainDetection.SeverityMedium)},
	}))

	svc := NewDetectionService(registry, newFakeDetectionStore(), time.Minute)

	records, err := svc.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
}

func TestDetection_PersistFailureKeepsFindingsInResult(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "license-capacity",
		findings: []domainDetection.Finding{finding("license-capacity/sku", domainDetection.SeverityHigh)},
	}))

	store := newFakeDetectionStore()
	store.failFor["license-capacity"] = true
	svc := NewDetectionService(registry, store, time.Minute)

	records, err := svc.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1, "a persistence failure must not discard computed findings")
}

func TestDetection_GetAllUsesReadCache(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)},
	}))

	store := newFakeDetectionStore()
	svc := NewDetectionService(registry, store, time.Minute)

	_, err := svc.RunAll(context.Background())
	require.NoError(t, err)

	first, err := svc.GetAll(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Mutate storage behind the cache's back: the cached view still serves.
	store.mu.Lock()
	store.records["admin-mfa"] = nil
	store.mu.Unlock()

	cached, err := svc.GetAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	refreshed, err := svc.GetAll(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, refreshed)
}

func TestDetection_RunAllInvalidatesReadCache(t *testing.T) {
	registry := NewRegistry()
	detector := &fakeDetector{category: "admin-mfa"}
	require.NoError(t, registry.Add(detector))

	store := newFakeDetectionStore()
	svc := NewDetectionService(registry, store, time.Minute)

	_, err := svc.GetAll(context.Background(), false)
	require.NoError(t, err)

	detector.findings = []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)}
	_, err = svc.RunAll(context.Background())
	require.NoError(t, err)

	all, err := svc.GetAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 1, "a run must invalidate the read cache")
}

func TestDetection_GetByCategoryFilters(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)},
	}))
	require.NoError(t, registry.Add(&fakeDetector{
		category: "inactive-accounts",
		findings: []domainDetection.Finding{finding("inactive-accounts/members", domainDetection.SeverityLow)},
	}))

	svc := NewDetectionService(registry, newFakeDetectionStore(), time.Minute)
	_, err := svc.RunAll(context.Background())
	require.NoError(t, err)

	records, err := svc.GetByCategory(context.Background(), "admin-mfa")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "admin-mfa", records[0].Category)

	none, err := svc.GetByCategory(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDetection_GetSummaryCountsBySeverity(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Add(&fakeDetector{
		category: "inactive-accounts",
		findings: []domainDetection.Finding{
			finding("inactive-accounts/admins", domainDetection.SeverityHigh),
			finding("inactive-accounts/members", domainDetection.SeverityLow),
		},
	}))
	require.NoError(t, registry.Add(&fakeDetector{
		category: "admin-mfa",
		findings: []domainDetection.Finding{finding("admin-mfa/unregistered", domainDetection.SeverityCritical)},
	}))

	svc := NewDetectionService(registry, newFakeDetectionStore(), time.Minute)
	_, err := svc.RunAll(context.Background())
	require.NoError(t, err)

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)

	inactive := summary["inactive-accounts"]
	assert.Equal(t, 2, inactive.Total)
	assert.Equal(t, 1, inactive.Counts[domainDetection.SeverityHigh])
	assert.Equal(t, 1, inactive.Counts[domainDetection.SeverityLow])

	admin := summary["admin-mfa"]
	assert.Equal(t, 1, admin.Total)
	assert.Equal(t, 1, admin.Counts[domainDetection.SeverityCritical])
}

func TestSeverity_Ranking(t *testing.T) {
	assert.Less(t, domainDetection.SeverityCritical.Rank(), domainDetection.SeverityHigh.Rank())
	assert.Less(t, domainDetection.SeverityHigh.Rank(), domainDetection.SeverityMedium.Rank())
	assert.Less(t, domainDetection.SeverityMedium.Rank(), domainDetection.SeverityLow.Rank())

	assert.True(t, domainDetection.SeverityCritical.Valid())
	assert.False(t, domainDetection.Severity("bogus").Valid())
}
