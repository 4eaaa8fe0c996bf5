package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	requestMillis map[string]int64
	errorCount    map[string]int64
	notifications map[string]int64
	droppedEvents map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		requestMillis: make(map[string]int64),
		errorCount:    make(map[string]int64),
		notifications: make(map[string]int64),
		droppedEvents: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := join(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestMillis[key] += duration.Milliseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[join(path, method, code)]++
}

// RecordNotification counts a notification attempt by event type and outcome
// ("sent", "failed", "skipped").
func (m *Metrics) RecordNotification(eventType, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[join(eventType, outcome)]++
}

// RecordDroppedEvent counts events discarded because the dispatch queue was full.
func (m *Metrics) RecordDroppedEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedEvents[eventType]++
}

// Snapshot returns a flat copy of every counter, keyed "<family>|<labels>".
func (m *Metrics) Snapshot() map[string]int64 {
	out := map[string]int64{}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copyInto(out, "requests", m.requestCount)
	copyInto(out, "request_ms", m.requestMillis)
	copyInto(out, "errors", m.errorCount)
	copyInto(out, "notifications", m.notifications)
	copyInto(out, "dropped_events", m.droppedEvents)
	return out
}

// Keys lists snapshot keys in stable order.
func Keys(snapshot map[string]int64) []string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyInto(dst map[string]int64, family string, src map[string]int64) {
	for k, v := range src {
		dst[family+"|"+k] = v
	}
}

func join(parts ...string) string {
	return strings.Join(parts, "|")
}
