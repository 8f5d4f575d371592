package astaauth

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one counter or latency histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginInvalidInput
	MetricTokenIssued
	MetricGateAllowed
	MetricGateDenied
	MetricTokenMalformed
	MetricTokenBadSignature
	MetricTokenExpired
	MetricIdentityNotFound
	MetricIdentityInactive
	MetricStoreUnavailable
	MetricRegistrationSuccess
	MetricRegistrationDuplicate
	// MetricValidateLatency observes token validation time inside the gate.
	MetricValidateLatency
	// MetricHashLatency observes password hash and verify time, including
	// the wait for a hashing slot.
	MetricHashLatency
)

// counterCount is the number of plain counters; the latency IDs follow them.
const counterCount = int(MetricValidateLatency)

// LatencyBounds are the inclusive upper bounds of the first seven buckets.
// The eighth bucket takes everything slower.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(LatencyBounds) + 1

// Each counter sits on its own cache line so hot counters updated from many
// goroutines do not contend.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

type latencyHistogram struct {
	buckets [latencyBucketCount]atomic.Uint64
	sumNS   atomic.Uint64
}

// Metrics is a fixed set of lock-free counters and latency histograms.
// Inc and Observe never allocate.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [counterCount]counterSlot
	validate      latencyHistogram
	hash          latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and, when
// latency histograms are on, the per-bucket counts and total observed time
// of each histogram.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns counters configured by cfg. A disabled Metrics ignores
// writes and snapshots as empty.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id. Latency IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || int(id) >= counterCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d in histogram id. Counter IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() {
		return
	}
	h := m.histogram(id)
	if h == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	h.buckets[latencyBucket(d)].Add(1)
	h.sumNS.Add(uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || int(id) >= counterCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies the current counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for i := range m.counters {
		s.Counters[MetricID(i)] = m.counters[i].n.Load()
	}
	if !m.enableLatency {
		return s
	}

	for _, id := range [...]MetricID{MetricValidateLatency, MetricHashLatency} {
		h := m.histogram(id)
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = h.buckets[i].Load()
		}
		s.Histograms[id] = buckets
		s.HistogramSums[id] = time.Duration(h.sumNS.Load())
	}
	return s
}

func (m *Metrics) histogram(id MetricID) *latencyHistogram {
	switch id {
	case MetricValidateLatency:
		return &m.validate
	case MetricHashLatency:
		return &m.hash
	default:
		return nil
	}
}

func latencyBucket(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
