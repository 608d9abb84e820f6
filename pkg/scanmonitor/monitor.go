package scanmonitor

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Category   string    `json:"category"`
	Stage      string    `json:"stage"`  // run_start | detector | aggregate | run_end
	Status     string    `json:"status"` // ok | error | skipped
	Error      string    `json:"error,omitempty"`
	Findings   int       `json:"findings"`
	DurationMs int64     `json:"duration_ms"`
}

type Stats struct {
	TotalRuns          int64   `json:"total_runs"`
	TotalDetectorRuns  int64   `json:"total_detector_runs"`
	TotalFindings      int64   `json:"total_findings"`
	TotalDetectorFails int64   `json:"total_detector_fails"`
	RecentEvents       []Event `json:"recent_events"`
}

// Monitor keeps a fixed-size ring of recent scan events plus running
// counters. It exists so operators can see what the orchestrator did lately
// without grepping logs.
type Monitor struct {
	eventsMu sync.Mutex
	events   []Event
	idx      int
	count    int

	totalRuns          int64
	totalDetectorRuns  int64
	totalFindings      int64
	totalDetectorFails int64
}

func New(size int) *Monitor {
	if size <= 0 {
		size = 200
	}
	return &Monitor{events: make([]Event, size)}
}

func (m *Monitor) Record(e Event) {
	e.Timestamp = time.Now().UTC()

	switch e.Stage {
	case "run_end":
		atomic.AddInt64(&m.totalRuns, 1)
	case "detector":
		atomic.AddInt64(&m.totalDetectorRuns, 1)
		atomic.AddInt64(&m.totalFindings, int64(e.Findings))
		if e.Status == "error" {
			atomic.AddInt64(&m.totalDetectorFails, 1)
		}
	}

	m.eventsMu.Lock()
	m.events[m.idx] = e
	m.idx = (m.idx + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	m.eventsMu.Unlock()
}

func (m *Monitor) GetStats() Stats {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()

	res := make([]Event, 0, m.count)
	start := (m.idx - m.count) % len(m.events)
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		res = append(res, m.events[(start+i)%len(m.events)])
	}

	return Stats{
		TotalRuns:          atomic.LoadInt64(&m.totalRuns),
		TotalDetectorRuns:  atomic.LoadInt64(&m.totalDetectorRuns),
		TotalFindings:      atomic.LoadInt64(&m.totalFindings),
		TotalDetectorFails: atomic.LoadInt64(&m.totalDetectorFails),
		RecentEvents:       res,
	}
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

var defaultMonitor = New(envInt("SCAN_MONITOR_BUFFER", 200))

func Record(e Event) {
	defaultMonitor.Record(e)
}

func GetStats() Stats {
	return defaultMonitor.GetStats()
}
