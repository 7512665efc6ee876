package goTodo

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricRequest counts requests passed to the refresh coordinator.
	MetricRequest MetricID = iota
	// MetricRequestSuccess counts requests ending in a 200.
	MetricRequestSuccess
	// MetricRequestFailure counts requests ending in any other outcome.
	MetricRequestFailure
	// MetricRefreshSuccess counts successful token refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed token refreshes.
	MetricRefreshFailure
	// MetricReplay counts requests replayed after a refresh.
	MetricReplay
	// MetricRetryGuardTripped counts 401s not retried because the request had
	// already spent its retry budget.
	MetricRetryGuardTripped
	// MetricInvalidAuth counts 401s tagged as "no session at all".
	MetricInvalidAuth
	// MetricSessionExpired counts sessions ended by a failed refresh.
	MetricSessionExpired
	// MetricForbidden counts 403 outcomes.
	MetricForbidden
	// MetricNetworkError counts transport and store failures.
	MetricNetworkError
	// MetricUnauthenticated counts requests ending in an unrecovered 401.
	MetricUnauthenticated
	// MetricOtherFailure counts requests ending in any other non-200 status
	// or an undecodable payload.
	MetricOtherFailure
	// MetricLoginSuccess counts successful sign-ins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected sign-ins.
	MetricLoginFailure
	// MetricLogout counts logouts, both explicit and forced.
	MetricLogout
	// MetricPromoteSuccess counts successful promotions.
	MetricPromoteSuccess
	// MetricRequestLatency is the latency histogram of individual HTTP round
	// trips, refresh calls excluded.
	MetricRequestLatency
	metricIDCount
)

// outcomeMetrics holds, per outcome, the counter of requests that finished
// with it. The counters partition [MetricRequest].
var outcomeMetrics = [...]MetricID{
	OutcomeSuccess:         MetricRequestSuccess,
	OutcomeUnauthenticated: MetricUnauthenticated,
	OutcomeForbidden:       MetricForbidden,
	OutcomeOther:           MetricOtherFailure,
	OutcomeNetworkError:    MetricNetworkError,
}

// OutcomeMetric returns the counter of requests finishing with k.
func OutcomeMetric(k OutcomeKind) (MetricID, bool) {
	if int(k) >= len(outcomeMetrics) {
		return 0, false
	}
	return outcomeMetrics[k], true
}

// Outcomes lists every outcome kind in declaration order.
func Outcomes() []OutcomeKind {
	out := make([]OutcomeKind, len(outcomeMetrics))
	for i := range out {
		out[i] = OutcomeKind(i)
	}
	return out
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
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

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricRequestLatency]
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRequestLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

// Upper bounds: 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
