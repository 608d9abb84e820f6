package scanmonitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_CountsByStage(t *testing.T) {
	m := New(10)

	m.Record(Event{RunID: "r1", Stage: "run_start", Status: "ok"})
	m.Record(Event{RunID: "r1", Stage: "detector", Category: "admin-mfa", Status: "ok", Findings: 2})
	m.Record(Event{RunID: "r1", Stage: "detector", Category: "license-capacity", Status: "error", Error: "boom"})
	m.Record(Event{RunID: "r1", Stage: "run_end", Status: "ok", Findings: 2})

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(2), stats.TotalDetectorRuns)
	assert.Equal(t, int64(2), stats.TotalFindings)
	assert.Equal(t, int64(1), stats.TotalDetectorFails)
	require.Len(t, stats.RecentEvents, 4)
	assert.False(t, stats.RecentEvents[0].Timestamp.IsZero())
}

func TestMonitor_RingKeepsNewestEvents(t *testing.T) {
	m := New(3)

	for i := 0; i < 5; i++ {
		m.Record(Event{RunID: fmt.Sprintf("r%d", i), Stage: "run_start", Status: "ok"})
	}

	stats := m.GetStats()
	require.Len(t, stats.RecentEvents, 3)
	assert.Equal(t, "r2", stats.RecentEvents[0].RunID)
	assert.Equal(t, "r4", stats.RecentEvents[2].RunID)
}
