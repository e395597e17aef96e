package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricPasswordHashed counts successful Hash calls.
	MetricPasswordHashed MetricID = iota
	// MetricPasswordVerifyFailure counts verifications that did not match.
	MetricPasswordVerifyFailure
	// MetricAccessIssued counts issued access tokens.
	MetricAccessIssued
	// MetricAccessVerifyFailure counts rejected access tokens.
	MetricAccessVerifyFailure
	// MetricRefreshMinted counts minted refresh tokens.
	MetricRefreshMinted
	// MetricRefreshRotated counts successful rotations.
	MetricRefreshRotated
	// MetricRefreshReuseDetected counts rotations that presented an
	// already-revoked token. Each one is a possible replay.
	MetricRefreshReuseDetected
	// MetricLockoutRejected counts logins rejected by the brute-force guard.
	MetricLockoutRejected
	// MetricRateLimited counts requests rejected by the rate limiter.
	MetricRateLimited
	// MetricResetMinted counts minted password reset tokens.
	MetricResetMinted
	// MetricResetConsumed counts consumed password reset tokens.
	MetricResetConsumed

	metricIDCount
)

const cacheLineSize = 64

// paddedCounter keeps each counter on its own cache line so hot counters
// don't false-share under concurrent load.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a dependency-free atomic counter set. All methods are safe for
// concurrent use.
type Metrics struct {
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies all counters. Not atomic across counters; each individual
// read is.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.Get(id)
	}
	return snap
}
