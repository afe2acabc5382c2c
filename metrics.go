package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that established a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected by the gateway.
	MetricLoginFailure
	// MetricResetRequestSuccess counts accepted password reset requests.
	MetricResetRequestSuccess
	// MetricResetRequestFailure counts password reset requests rejected by the gateway.
	MetricResetRequestFailure
	// MetricOTPVerifySuccess counts verifications that established a session.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts verifications rejected by the gateway.
	MetricOTPVerifyFailure
	// MetricOTPResendSuccess counts accepted resend requests.
	MetricOTPResendSuccess
	// MetricOTPResendFailure counts resend requests rejected by the gateway.
	MetricOTPResendFailure
	// MetricOTPResendSuppressed counts resend calls ignored because the cooldown was counting.
	MetricOTPResendSuppressed
	// MetricOTPEntryRejected counts entries into the verification step without an email.
	MetricOTPEntryRejected
	// MetricValidationRejected counts submissions rejected locally before any network call.
	MetricValidationRejected
	// MetricRequestSkipped counts submissions ignored because a request was already in flight.
	MetricRequestSkipped
	// MetricOutcomeDiscarded counts responses that arrived after their controller was disposed.
	MetricOutcomeDiscarded
	// MetricSessionCreated counts sessions written to the session store.
	MetricSessionCreated
	// MetricSessionWriteFailure counts failed session store writes.
	MetricSessionWriteFailure
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricLoginSkipped counts login submissions ignored while one was in flight.
	MetricLoginSkipped
	// MetricLoginDiscarded counts login responses that arrived after disposal.
	MetricLoginDiscarded
	// MetricResetRequestSkipped counts reset submissions ignored while one was in flight.
	MetricResetRequestSkipped
	// MetricResetRequestDiscarded counts reset responses that arrived after disposal.
	MetricResetRequestDiscarded
	// MetricOTPVerifySkipped counts code submissions ignored while busy or verified.
	MetricOTPVerifySkipped
	// MetricOTPVerifyDiscarded counts verify responses that arrived after disposal.
	MetricOTPVerifyDiscarded
	// MetricOTPResendSkipped counts resend calls ignored while busy or verified.
	MetricOTPResendSkipped
	// MetricOTPResendDiscarded counts resend responses that arrived after disposal.
	MetricOTPResendDiscarded
	// MetricGatewayLatency is the gateway round-trip latency histogram.
	MetricGatewayLatency
	metricIDCount
)

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

// Metrics is a fixed set of lock-free counters, one latency histogram and a
// gauge of running resend cooldowns.
type Metrics struct {
	enabled         bool
	enableLatency   bool
	counters        [metricIDCount]paddedCounter
	histograms      [metricIDCount]metricHistogram
	activeCooldowns atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters        map[MetricID]uint64
	Histograms      map[MetricID][]uint64
	ActiveCooldowns int64
}

// Outcome labels shared by the per-flow counter groups.
const (
	OutcomeLabelSucceeded  = "succeeded"
	OutcomeLabelFailed     = "failed"
	OutcomeLabelSkipped    = "skipped"
	OutcomeLabelDiscarded  = "discarded"
	OutcomeLabelSuppressed = "suppressed"
)

// FlowOutcome pairs an outcome label with the counter that tracks it.
type FlowOutcome struct {
	Outcome string
	ID      MetricID
}

// FlowMetrics groups the outcome counters of one controller operation.
type FlowMetrics struct {
	Flow     string
	Outcomes []FlowOutcome
}

type flowCounters struct {
	flow      string
	succeeded MetricID
	failed    MetricID
	skipped   MetricID
	discarded MetricID
}

var (
	loginCounters = flowCounters{
		flow:      "login",
		succeeded: MetricLoginSuccess,
		failed:    MetricLoginFailure,
		skipped:   MetricLoginSkipped,
		discarded: MetricLoginDiscarded,
	}
	resetCounters = flowCounters{
		flow:      "password_reset",
		succeeded: MetricResetRequestSuccess,
		failed:    MetricResetRequestFailure,
		skipped:   MetricResetRequestSkipped,
		discarded: MetricResetRequestDiscarded,
	}
	verifyCounters = flowCounters{
		flow:      "otp_verify",
		succeeded: MetricOTPVerifySuccess,
		failed:    MetricOTPVerifyFailure,
		skipped:   MetricOTPVerifySkipped,
		discarded: MetricOTPVerifyDiscarded,
	}
	resendCounters = flowCounters{
		flow:      "otp_resend",
		succeeded: MetricOTPResendSuccess,
		failed:    MetricOTPResendFailure,
		skipped:   MetricOTPResendSkipped,
		discarded: MetricOTPResendDiscarded,
	}
)

func (fc flowCounters) group() FlowMetrics {
	return FlowMetrics{
		Flow: fc.flow,
		Outcomes: []FlowOutcome{
			{Outcome: OutcomeLabelSucceeded, ID: fc.succeeded},
			{Outcome: OutcomeLabelFailed, ID: fc.failed},
			{Outcome: OutcomeLabelSkipped, ID: fc.skipped},
			{Outcome: OutcomeLabelDiscarded, ID: fc.discarded},
		},
	}
}

// FlowMetricGroups lists the per-flow outcome counters in export order. The
// resend flow also reports calls suppressed by a counting cooldown.
func FlowMetricGroups() []FlowMetrics {
	resend := resendCounters.group()
	resend.Outcomes = append(resend.Outcomes, FlowOutcome{Outcome: OutcomeLabelSuppressed, ID: MetricOTPResendSuppressed})
	return []FlowMetrics{
		loginCounters.group(),
		resetCounters.group(),
		verifyCounters.group(),
		resend,
	}
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counting is on.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is on.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the gateway latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGatewayLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) cooldownStarted() {
	if m == nil || !m.enabled {
		return
	}
	m.activeCooldowns.Add(1)
}

func (m *Metrics) cooldownStopped() {
	if m == nil || !m.enabled {
		return
	}
	m.activeCooldowns.Add(-1)
}

// ActiveCooldowns returns the number of resend cooldowns currently counting.
func (m *Metrics) ActiveCooldowns() int64 {
	if m == nil {
		return 0
	}
	return m.activeCooldowns.Load()
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGatewayLatency].buckets[i])
		}
		s.Histograms[MetricGatewayLatency] = buckets
	}
	s.ActiveCooldowns = m.activeCooldowns.Load()

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
