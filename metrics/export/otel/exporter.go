package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

type flowSeries struct {
	id   authflow.MetricID
	attr metric.ObserveOption
}

type counterSeries struct {
	id         authflow.MetricID
	instrument metric.Int64ObservableCounter
}

type histogramSeries struct {
	id      authflow.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  []metric.ObserveOption
}

// OTelExporter owns the callback registration for one source.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	requests     metric.Int64ObservableCounter
	flows        []flowSeries
	counters     []counterSeries
	histograms   []histogramSeries
	cooldowns    metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter observes client on every collection.
func NewOTelExporter(meter metric.Meter, client *authflow.Client) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource observes source on every collection. Per-flow
// outcomes share one counter distinguished by flow and outcome attributes.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	requests, err := meter.Int64ObservableCounter(internaldefs.RequestsFamily,
		metric.WithDescription(internaldefs.RequestsFamilyHelp))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", internaldefs.RequestsFamily, err)
	}
	e.requests = requests
	observables = append(observables, requests)
	for _, s := range internaldefs.FlowSamples {
		e.flows = append(e.flows, flowSeries{
			id: s.ID,
			attr: metric.WithAttributeSet(attribute.NewSet(
				attribute.String(internaldefs.FlowLabel, s.Flow),
				attribute.String(internaldefs.OutcomeLabel, s.Outcome),
			)),
		})
	}

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterSeries{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription("Cumulative count per latency bucket, keyed by le."))
		if err != nil {
			return nil, fmt.Errorf("create %s_bucket: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create %s_count: %w", def.Name, err)
		}
		h := histogramSeries{id: def.ID, buckets: buckets, count: count}
		for _, le := range internaldefs.HistogramBounds {
			h.bounds = append(h.bounds, metric.WithAttributes(attribute.String("le", le)))
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, buckets, count)
	}

	e.cooldowns, err = meter.Int64ObservableGauge(internaldefs.ActiveCooldownsName,
		metric.WithDescription(internaldefs.ActiveCooldownsHelp))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", internaldefs.ActiveCooldownsName, err)
	}
	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", internaldefs.AuditDroppedName, err)
	}
	observables = append(observables, e.cooldowns, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, f := range e.flows {
		o.ObserveInt64(e.requests, int64(snap.Counters[f.id]), f.attr)
	}
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(snap.Histograms[h.id])
		for i, opt := range h.bounds {
			o.ObserveInt64(h.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.cooldowns, snap.ActiveCooldowns)
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
