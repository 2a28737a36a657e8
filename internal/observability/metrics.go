package observability

import (
	"strconv"
	"sync"
	"time"
)

type requestStats struct {
	Count         int64
	TotalDuration time.Duration
}

// Metrics keeps in-process request and error counters, keyed by
// path|method|status. Safe for concurrent use; all methods are nil-safe so
// components can run without metrics wired.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]*requestStats
	errors   map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]*requestStats),
		errors:   make(map[string]int64),
	}
}

// RecordRequest counts a completed request and accumulates its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.requests[key]
	if !ok {
		stats = &requestStats{}
		m.requests[key] = stats
	}
	stats.Count++
	stats.TotalDuration += duration
}

// RecordError counts a request that surfaced an application error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[path+"|"+method+"|"+code]++
}

// ErrorCounts returns a copy of the error counters.
func (m *Metrics) ErrorCounts() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.errors))
	for k, v := range m.errors {
		out[k] = v
	}
	return out
}
