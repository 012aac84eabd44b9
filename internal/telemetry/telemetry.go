// Package telemetry records dealflow counters through OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope of every dealflow instrument.
const ScopeName = "github.com/fentz26/dealflow"

// Metrics holds the engine's instruments. A nil *Metrics records nothing.
type Metrics struct {
	instantiations metric.Int64Counter
	tasksCreated   metric.Int64Counter
	transitions    metric.Int64Counter
	conflicts      metric.Int64Counter
	overdue        metric.Int64Gauge
	requests       metric.Int64Counter
	duration       metric.Float64Histogram
}

// New creates the instruments on meter, or on the global meter provider
// when meter is nil.
func New(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(ScopeName)
	}
	m := &Metrics{}
	var err error

	if m.instantiations, err = meter.Int64Counter("dealflow.checklist.instantiations",
		metric.WithDescription("Checklists instantiated from a template"),
		metric.WithUnit("{checklist}"),
	); err != nil {
		return nil, err
	}
	if m.tasksCreated, err = meter.Int64Counter("dealflow.tasks.created",
		metric.WithDescription("Task records created"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("dealflow.tasks.transitions",
		metric.WithDescription("Task status changes"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}
	if m.conflicts, err = meter.Int64Counter("dealflow.tasks.conflicts",
		metric.WithDescription("Writes rejected for a stale version"),
		metric.WithUnit("{conflict}"),
	); err != nil {
		return nil, err
	}
	if m.overdue, err = meter.Int64Gauge("dealflow.tasks.overdue",
		metric.WithDescription("Overdue tasks per deal at the last sweep"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Int64Counter("dealflow.http.requests",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("dealflow.http.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Instantiated records a checklist created with n tasks.
func (m *Metrics) Instantiated(ctx context.Context, dealType string, n int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("deal_type", dealType))
	m.instantiations.Add(ctx, 1, attrs)
	m.tasksCreated.Add(ctx, int64(n), attrs)
}

// TaskCreated records a manual task.
func (m *Metrics) TaskCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.tasksCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("deal_type", "manual")))
}

// Transitioned records a status change into status.
func (m *Metrics) Transitioned(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// Conflict records a write rejected by optimistic concurrency.
func (m *Metrics) Conflict(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// Overdue records the overdue count observed for a deal.
func (m *Metrics) Overdue(ctx context.Context, dealID string, n int) {
	if m == nil {
		return
	}
	m.overdue.Record(ctx, int64(n), metric.WithAttributes(attribute.String("deal_id", dealID)))
}

// Request records one served HTTP request.
func (m *Metrics) Request(ctx context.Context, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("route", route), attribute.Int("status", status))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
