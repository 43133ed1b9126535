package build

import (
	"sync"
	"time"
)

// Metrics tracks build counts and durations.
type Metrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	// CoalescedRequests counts requests folded into an already owed follow-up.
	CoalescedRequests int64
	AverageDuration   time.Duration
	TotalDuration     time.Duration
	LastDuration      time.Duration
	mutex             sync.RWMutex
}

// NewMetrics creates a new build metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordBuild records a build outcome in the metrics
func (m *Metrics) RecordBuild(outcome Outcome) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalBuilds++
	m.TotalDuration += outcome.Duration
	m.LastDuration = outcome.Duration

	if outcome.Success {
		m.SuccessfulBuilds++
	} else {
		m.FailedBuilds++
	}

	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalBuilds)
}

// RecordCoalesced records a request that did not start a build of its own.
func (m *Metrics) RecordCoalesced() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.CoalescedRequests++
}

// Snapshot returns a copy of the current metrics
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return Metrics{
		TotalBuilds:       m.TotalBuilds,
		SuccessfulBuilds:  m.SuccessfulBuilds,
		FailedBuilds:      m.FailedBuilds,
		CoalescedRequests: m.CoalescedRequests,
		AverageDuration:   m.AverageDuration,
		TotalDuration:     m.TotalDuration,
		LastDuration:      m.LastDuration,
	}
}

// SuccessRate returns the success rate as a percentage
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalBuilds == 0 {
		return 0.0
	}

	return float64(m.SuccessfulBuilds) / float64(m.TotalBuilds) * 100.0
}
