package otel

import (
	"context"
	"errors"
	"fmt"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goTodo.MetricsSnapshot
	AuditDropped() uint64
}

// observedSeries is one client counter reported on a family instrument. The
// attribute set is built once at registration.
type observedSeries struct {
	id    goTodo.MetricID
	attrs metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

// OTelExporter publishes client metrics as observable instruments on a
// caller-owned meter. Each counter family is one instrument; labelled series
// are told apart by attributes, e.g. gotodo_requests_total{outcome}.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	families     []observedFamily
	buckets      metric.Int64ObservableGauge
	bucketAttrs  []metric.ObserveOption
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments observing client.
func NewOTelExporter(meter metric.Meter, client *goTodo.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers instruments observing source. One
// callback reads a single snapshot per collection.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, f := range internaldefs.CounterFamilies {
		ins, err := meter.Int64ObservableCounter(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", f.Name, err)
		}
		of := observedFamily{instrument: ins}
		for _, s := range f.Series {
			var attrs []attribute.KeyValue
			if f.Label != "" {
				attrs = append(attrs, attribute.String(f.Label, s.Value))
			}
			of.series = append(of.series, observedSeries{
				id:    s.ID,
				attrs: metric.WithAttributeSet(attribute.NewSet(attrs...)),
			})
		}
		e.families = append(e.families, of)
		observables = append(observables, ins)
	}

	bucketName := internaldefs.LatencyName + "_bucket"
	buckets, err := meter.Int64ObservableGauge(bucketName,
		metric.WithDescription("Cumulative round trip latency bucket counts by upper bound."))
	if err != nil {
		return nil, fmt.Errorf("create histogram bucket gauge %s: %w", bucketName, err)
	}
	e.buckets = buckets
	for _, le := range internaldefs.HistogramBounds {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", le)))
	}

	countName := internaldefs.LatencyName + "_count"
	count, err := meter.Int64ObservableGauge(countName, metric.WithDescription(internaldefs.LatencyHelp))
	if err != nil {
		return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
	}
	e.count = count

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, buckets, count, auditDropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, s := range f.series {
			o.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.attrs)
		}
	}

	cumulative := internaldefs.CumulativeBuckets(snapshot.Histograms[internaldefs.LatencyID])
	for i, attrs := range e.bucketAttrs {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
