package internaldefs

import (
	"github.com/MrEthical07/authflow"
)

// RequestsFamily is the counter family carrying every per-flow outcome.
const (
	RequestsFamily     = "authflow_requests_total"
	RequestsFamilyHelp = "Controller operations by flow and outcome."
	FlowLabel          = "flow"
	OutcomeLabel       = "outcome"
)

// Standalone gauges and counters that do not belong to a flow.
const (
	ActiveCooldownsName = "authflow_otp_cooldowns_active"
	ActiveCooldownsHelp = "Resend cooldowns currently counting down."
	AuditDroppedName    = "authflow_audit_dropped_total"
	AuditDroppedHelp    = "Audit events lost to backpressure or an expired drain."
)

// FlowSample is one labelled series of RequestsFamily.
type FlowSample struct {
	Flow    string
	Outcome string
	ID      authflow.MetricID
}

// CounterDef names one unlabelled counter.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// FlowSamples flattens the client's flow groups into render order.
var FlowSamples = flatten(authflow.FlowMetricGroups())

func flatten(groups []authflow.FlowMetrics) []FlowSample {
	var out []FlowSample
	for _, g := range groups {
		for _, o := range g.Outcomes {
			out = append(out, FlowSample{Flow: g.Flow, Outcome: o.Outcome, ID: o.ID})
		}
	}
	return out
}

// CounterDefs lists the counters outside RequestsFamily. The aggregate skipped
// and discarded counters are left out because the family already splits them
// by flow.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricValidationRejected, Name: "authflow_validation_rejected_total", Help: "Submissions rejected before any network call."},
	{ID: authflow.MetricOTPEntryRejected, Name: "authflow_otp_entry_rejected_total", Help: "Verification steps entered without an email."},
	{ID: authflow.MetricSessionCreated, Name: "authflow_session_created_total", Help: "Sessions written to the session store."},
	{ID: authflow.MetricSessionWriteFailure, Name: "authflow_session_write_failure_total", Help: "Failed session store writes."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Explicit logouts."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricGatewayLatency, Name: "authflow_gateway_latency_seconds", Help: "Backend round-trip latency."},
}

// HistogramBounds are the upper bounds of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// CumulativeBuckets turns raw per-bucket counts into running totals, zero
// filling missing buckets.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
