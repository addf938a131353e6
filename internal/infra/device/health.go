package device

import (
	"sync"
	"time"
)

// Health is a snapshot of link quality.
type Health struct {
	Connected     bool          `json:"connected"`
	Version       string        `json:"version,omitempty"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// healthTracker accumulates probe results for one link.
type healthTracker struct {
	mu           sync.RWMutex
	health       Health
	totalLatency time.Duration
	successCount int
	failureCount int
	probeCount   int
}

func (h *healthTracker) get() Health {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.health
}

func (h *healthTracker) setConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health.Connected = connected
}

func (h *healthTracker) recordSuccess(version string, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.successCount++
	h.probeCount++
	h.totalLatency += latency
	h.health.LastSuccessAt = time.Now()
	h.health.Version = version
	h.health.ErrorRate = float64(h.failureCount) / float64(h.probeCount)
	h.health.Latency = h.totalLatency / time.Duration(h.successCount)
}

func (h *healthTracker) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failureCount++
	h.probeCount++
	h.health.LastFailureAt = time.Now()
	h.health.Connected = false
	h.health.ErrorRate = float64(h.failureCount) / float64(h.probeCount)
}
