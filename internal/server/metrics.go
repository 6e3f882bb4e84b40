package server

import (
	"sort"
	"sync"
	"time"
)

// Metrics holds service counters. One instance per Server.
type Metrics struct {
	mu sync.RWMutex

	// Domain metrics
	greetingsTotal           int64
	logAppendsTotal          int64
	frequencyIncrementsTotal int64

	// Side-channel metrics
	auditWritesTotal      int64
	auditFailuresTotal    int64
	snapshotsTotal        int64
	snapshotFailuresTotal int64

	// HTTP metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
	routes           map[string]*routeStats
}

type routeStats struct {
	count    int64
	duration time.Duration
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[string]*routeStats)}
}

func (m *Metrics) RecordGreeting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.greetingsTotal++
}

func (m *Metrics) RecordLogAppend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logAppendsTotal++
}

func (m *Metrics) RecordFrequencyIncrement() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frequencyIncrementsTotal++
}

// RecordAudit records the outcome of one audit insert.
func (m *Metrics) RecordAudit(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.auditWritesTotal++
	} else {
		m.auditFailuresTotal++
	}
}

// RecordSnapshot records the outcome of one snapshot export.
func (m *Metrics) RecordSnapshot(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.snapshotsTotal++
	} else {
		m.snapshotFailuresTotal++
	}
}

// RecordRequest records an HTTP request against its route pattern.
func (m *Metrics) RecordRequest(route string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}

	rs, ok := m.routes[route]
	if !ok {
		rs = &routeStats{}
		m.routes[route] = rs
	}
	rs.count++
	rs.duration += duration
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]RouteMetrics, 0, len(m.routes))
	for route, rs := range m.routes {
		routes = append(routes, RouteMetrics{
			Route:         route,
			RequestsTotal: rs.count,
			AvgDurationMs: avgDuration(rs.duration, rs.count),
		})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Route < routes[j].Route })

	return MetricsSnapshot{
		GreetingsTotal:           m.greetingsTotal,
		LogAppendsTotal:          m.logAppendsTotal,
		FrequencyIncrementsTotal: m.frequencyIncrementsTotal,
		AuditWritesTotal:         m.auditWritesTotal,
		AuditFailuresTotal:       m.auditFailuresTotal,
		SnapshotsTotal:           m.snapshotsTotal,
		SnapshotFailuresTotal:    m.snapshotFailuresTotal,
		RequestsTotal:            m.requestsTotal,
		RequestErrors5xx:         m.requestErrors5xx,
		RequestErrors4xx:         m.requestErrors4xx,
		Routes:                   routes,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	GreetingsTotal           int64 `json:"greetings_total"`
	LogAppendsTotal          int64 `json:"log_appends_total"`
	FrequencyIncrementsTotal int64 `json:"frequency_increments_total"`

	AuditWritesTotal      int64 `json:"audit_writes_total"`
	AuditFailuresTotal    int64 `json:"audit_failures_total"`
	SnapshotsTotal        int64 `json:"snapshots_total"`
	SnapshotFailuresTotal int64 `json:"snapshot_failures_total"`

	RequestsTotal    int64          `json:"requests_total"`
	RequestErrors5xx int64          `json:"request_errors_5xx"`
	RequestErrors4xx int64          `json:"request_errors_4xx"`
	Routes           []RouteMetrics `json:"routes"`
}

// RouteMetrics is the per-route slice of a MetricsSnapshot.
type RouteMetrics struct {
	Route         string  `json:"route"`
	RequestsTotal int64   `json:"requests_total"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
