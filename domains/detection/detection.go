package detection

import (
	"context"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities for sorting, lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

func (s Severity) Valid() bool {
	return s.Rank() < 4
}

type AffectedResource struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Details string `json:"details,omitempty"`
}

// Finding is the raw output of a single detector run. Findings are immutable
// once returned; the orchestrator stamps category and timestamp.
type Finding struct {
	ID                string             `json:"id"`
	Kind              string             `json:"kind"`
	Severity          Severity           `json:"severity"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	AffectedResources []AffectedResource `json:"affected_resources"`
	RemediationHint   string             `json:"remediation_hint"`
	Automatable       bool               `json:"automatable"`
}

// Record is the persisted form of a Finding, owned by the orchestrator.
type Record struct {
	Finding
	Category   string    `json:"category"`
	DetectedAt time.Time `json:"detected_at"`
}

type CategorySummary struct {
	Category string           `json:"category"`
	Total    int              `json:"total"`
	Counts   map[Severity]int `json:"counts"`
}

// Detector is the single capability every pluggable check implements.
// Returning an empty slice is success; an error marks the whole detector as
// failed for this run.
type Detector interface {
	Category() string
	Detect(ctx context.Context) ([]Finding, error)
}

type IDetectionUsecase interface {
	// RunAll executes every registered detector concurrently, aggregates and
	// persists the findings, and returns the resulting records. A failing
	// detector contributes nothing but never aborts the run.
	RunAll(ctx context.Context) ([]Record, error)
	GetAll(ctx context.Context, forceRefresh bool) ([]Record, error)
	GetByCategory(ctx context.Context, category string) ([]Record, error)
	GetSummary(ctx context.Context) (map[string]CategorySummary, error)
	Categories() []string
	// StartPeriodicScans schedules RunAll on the configured interval until
	// ctx is cancelled. The first run fires immediately.
	StartPeriodicScans(ctx context.Context)
}
