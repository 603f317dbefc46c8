// Package metrics provides runtime statistics: an in-memory timing
// collector for the stats endpoint and Prometheus counters for scraping.
package metrics

import (
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names for the collector.
const (
	OpLLMGenerate = "llm_generate"
	OpLLMClassify = "llm_classify"
	OpDBQuery     = "db_query"
	OpJobRun      = "job_run"
	OpSweep       = "detection_sweep"
)

// Job outcomes reported through RecordJob.
const (
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobMisfired  = "misfired"
	JobPanicked  = "panicked"
)

// OperationMetrics holds aggregated timings for one operation.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the collector state at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
	Jobs          map[string]int64             `json:"jobs"`
	Detections    map[string]int64             `json:"detections"`
	ProbeResults  map[string]int64             `json:"probe_results"`
}

// Collector aggregates runtime statistics. All methods are thread-safe and
// a nil *Collector is a valid no-op receiver.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	jobs      map[string]int64
	detects   map[string]int64
	probes    map[string]int64

	registry   *prometheus.Registry
	opSeconds  *prometheus.HistogramVec
	jobsTotal  *prometheus.CounterVec
	detections *prometheus.CounterVec
	probeTotal *prometheus.CounterVec
}

// NewCollector creates a collector with its own Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		jobs:      make(map[string]int64),
		detects:   make(map[string]int64),
		probes:    make(map[string]int64),
		registry:  prometheus.NewRegistry(),
		opSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: "honeytrap", Name: "operation_seconds", Help: "Duration of internal operations."},
			[]string{"op"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "honeytrap", Subsystem: "scheduler", Name: "jobs_total", Help: "Scheduled job executions by action and outcome."},
			[]string{"action", "outcome"},
		),
		detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "honeytrap", Subsystem: "detection", Name: "flags_total", Help: "Accounts flagged by analyzer reason."},
			[]string{"reason"},
		),
		probeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "honeytrap", Subsystem: "probe", Name: "results_total", Help: "Completed probe sessions by classification."},
			[]string{"result"},
		),
	}
	c.registry.MustRegister(c.opSeconds, c.jobsTotal, c.detections, c.probeTotal)
	return c
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.opSeconds.WithLabelValues(op).Observe(duration.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordJob counts one scheduler execution.
func (c *Collector) RecordJob(action, outcome string) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(action, outcome).Inc()

	c.mu.Lock()
	c.jobs[outcome]++
	c.mu.Unlock()
}

// RecordDetection counts one newly recorded reason.
func (c *Collector) RecordDetection(reason string) {
	if c == nil {
		return
	}
	c.detections.WithLabelValues(reason).Inc()

	c.mu.Lock()
	c.detects[reason]++
	c.mu.Unlock()
}

// RecordProbeResult counts one completed conversation.
func (c *Collector) RecordProbeResult(result string) {
	if c == nil {
		return
	}
	c.probeTotal.WithLabelValues(result).Inc()

	c.mu.Lock()
	c.probes[result]++
	c.mu.Unlock()
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func snapshotOp(m *OperationMetrics) OperationSnapshot {
	return OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
		Jobs:          copyCounts(c.jobs),
		Detections:    copyCounts(c.detects),
		ProbeResults:  copyCounts(c.probes),
	}
	for op, m := range c.ops {
		if m.Count > 0 {
			snap.Operations[op] = snapshotOp(m)
		}
	}
	return snap
}

// OperationNames returns the recorded operation names in sorted order.
func (s Snapshot) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for name := range s.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
