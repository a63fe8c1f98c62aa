package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/metrics/export/internaldefs"
)

// Instrument names.
const (
	EventsName         = "authflow.flow.events"
	LatencyBucketsName = "authflow.backend.latency.buckets"
	LatencyCountName   = "authflow.backend.latency.count"
	AuditDroppedName   = "authflow.audit.dropped"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

type eventSeries struct {
	id    authflow.MetricID
	attrs metric.ObserveOption
}

// Exporter holds the registered instruments. Flow counters share one
// instrument and are told apart by the "event" attribute; latency buckets
// carry an "le" attribute.
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	events       metric.Int64ObservableCounter
	series       []eventSeries
	buckets      metric.Int64ObservableGauge
	bucketAttrs  []metric.ObserveOption
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// New registers instruments on meter that read from flow.
func New(meter metric.Meter, flow *authflow.Flow) (*Exporter, error) {
	if flow == nil {
		return nil, ErrNilSource
	}
	return NewFromSource(meter, flow)
}

// NewFromSource registers instruments over any snapshot source.
func NewFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var err error

	if e.events, err = meter.Int64ObservableCounter(EventsName,
		metric.WithDescription("Flow outcomes by event."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", EventsName, err)
	}
	for _, def := range internaldefs.CounterDefs {
		e.series = append(e.series, eventSeries{
			id:    def.ID,
			attrs: metric.WithAttributes(attribute.String("event", eventName(def.Name))),
		})
	}

	if e.buckets, err = meter.Int64ObservableGauge(LatencyBucketsName,
		metric.WithDescription("Cumulative backend latency samples at or below le seconds."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyBucketsName, err)
	}
	for _, bound := range internaldefs.HistogramBounds {
		e.bucketAttrs = append(e.bucketAttrs, metric.WithAttributes(attribute.String("le", bound)))
	}
	if e.count, err = meter.Int64ObservableGauge(LatencyCountName,
		metric.WithDescription("Backend latency samples."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", LatencyCountName, err)
	}

	if e.auditDropped, err = meter.Int64ObservableCounter(AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."),
	); err != nil {
		return nil, fmt.Errorf("create %s: %w", AuditDroppedName, err)
	}

	e.registration, err = meter.RegisterCallback(e.observe, e.events, e.buckets, e.count, e.auditDropped)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, s := range e.series {
		o.ObserveInt64(e.events, int64(snapshot.Counters[s.id]), s.attrs)
	}

	cumulative := internaldefs.CumulativeBuckets(
		internaldefs.NormalizeBuckets(snapshot.Histograms[authflow.MetricBackendLatency]),
	)
	for i, attrs := range e.bucketAttrs {
		o.ObserveInt64(e.buckets, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// eventName turns "authflow_login_success_total" into "login_success".
func eventName(counter string) string {
	return strings.TrimSuffix(strings.TrimPrefix(counter, "authflow_"), "_total")
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
