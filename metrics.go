package ah

import (
	"sync/atomic"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s log-spaced, the same ladder the teacher's Metrics
// uses for I/O-op latency.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks completion-dispatch statistics for a Loop, generalizing
// the teacher's per-I/O-op counters to per-completion-kind counters.
type Metrics struct {
	Dispatched    atomic.Uint64 // total completions dispatched
	Cancelled     atomic.Uint64 // completions delivered with KindCancelled
	Errors        atomic.Uint64 // completions with a non-Ok, non-Cancelled kind
	InFlight      atomic.Int64  // currently submitted, not yet completed
	MaxInFlight   atomic.Int64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordSubmit marks one more operation as in flight.
func (m *Metrics) RecordSubmit() {
	n := m.InFlight.Add(1)
	for {
		cur := m.MaxInFlight.Load()
		if n <= cur {
			break
		}
		if m.MaxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
}

// RecordCompletion records a dispatched completion of the given kind and
// latency (time from submission to dispatch, in nanoseconds).
func (m *Metrics) RecordCompletion(kind Kind, latencyNs uint64) {
	m.Dispatched.Add(1)
	m.InFlight.Add(-1)
	switch kind {
	case KindCancelled:
		m.Cancelled.Add(1)
	case KindOk:
	default:
		m.Errors.Add(1)
	}
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// racing further updates.
type MetricsSnapshot struct {
	Dispatched    uint64
	Cancelled     uint64
	Errors        uint64
	InFlight      int64
	MaxInFlight   int64
	AvgLatencyNs  uint64
	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64
}

// Snapshot takes a point-in-time copy of the metrics, computing derived
// percentile estimates via linear interpolation across LatencyBuckets, the
// same technique the teacher's Metrics.calculatePercentile uses.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Dispatched:  m.Dispatched.Load(),
		Cancelled:   m.Cancelled.Load(),
		Errors:      m.Errors.Load(),
		InFlight:    m.InFlight.Load(),
		MaxInFlight: m.MaxInFlight.Load(),
	}
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
		snap.LatencyP50Ns = m.percentile(0.50)
		snap.LatencyP99Ns = m.percentile(0.99)
		snap.LatencyP999Ns = m.percentile(0.999)
	}
	return snap
}

func (m *Metrics) percentile(p float64) uint64 {
	total := m.OpCount.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)
	prevBucket, prevCount := uint64(0), uint64(0)
	for i, bucket := range LatencyBuckets {
		count := m.LatencyBuckets[i].Load()
		if count >= target {
			if count == prevCount {
				return bucket
			}
			frac := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(frac*float64(bucket-prevBucket))
		}
		prevBucket, prevCount = bucket, count
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer receives per-completion-kind notifications, allowing pluggable
// metrics collection distinct from the built-in Metrics type.
type Observer interface {
	ObserveCompletion(kind Kind, latencyNs uint64)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCompletion(Kind, uint64) {}

// MetricsObserver routes observations into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCompletion(kind Kind, latencyNs uint64) {
	o.metrics.RecordCompletion(kind, latencyNs)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
