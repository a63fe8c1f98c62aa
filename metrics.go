package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricIdentifierKnown counts Entry submissions routed to Password.
	MetricIdentifierKnown MetricID = iota
	// MetricIdentifierUnknown counts Entry submissions routed to registration.
	MetricIdentifierUnknown
	// MetricOTPSendSuccess counts successful code issuances, including resends.
	MetricOTPSendSuccess
	// MetricOTPSendFailure counts issuances rejected by the backend.
	MetricOTPSendFailure
	// MetricOTPVerifySuccess counts accepted codes.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts rejected codes.
	MetricOTPVerifyFailure
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts registrations rejected by the backend.
	MetricRegisterFailure
	// MetricProfileIncomplete counts registrations whose profile insert failed.
	MetricProfileIncomplete
	// MetricPasswordResetSuccess counts completed password resets.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts resets rejected by the backend.
	MetricPasswordResetFailure
	// MetricValidationRejected counts submissions blocked before any backend call.
	MetricValidationRejected
	// MetricTransportError counts backend calls that failed unexpectedly.
	MetricTransportError
	// MetricSessionRestored counts startups that found a usable session.
	MetricSessionRestored
	// MetricSignOut counts sign-outs.
	MetricSignOut
	// MetricBackendLatency is the backend call latency histogram.
	MetricBackendLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the latency buckets. A
// final overflow bucket catches everything slower.
var latencyBounds = [...]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

// counterSlot keeps each counter on its own cache line so parallel flows do
// not contend on neighbouring counters.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled bool
	latency bool
	slots   [metricIDCount]counterSlot
	buckets [len(latencyBounds) + 1]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters according to cfg. When cfg.Enabled is false
// every operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricBackendLatency {
		return
	}
	m.slots[id].n.Add(1)
}

// Observe records d in the histogram id. Only [MetricBackendLatency] has a
// histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricBackendLatency {
		return
	}
	m.buckets[latencyBucket(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].n.Load()
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < MetricBackendLatency; id++ {
		s.Counters[id] = m.slots[id].n.Load()
	}
	if m.latency {
		hist := make([]uint64, len(m.buckets))
		for i := range m.buckets {
			hist[i] = m.buckets[i].Load()
		}
		s.Histograms[MetricBackendLatency] = hist
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
