package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"canteenadvisor"
)

// NewInstrumentedAdvisor wires an Advisor that uses the given tracer and also
// records request, stage and outcome metrics on meter.
func NewInstrumentedAdvisor(deps Deps, tracer trace.Tracer, meter metric.Meter) (*Advisor, error) {
	a, err := NewAdvisor(deps)
	if err != nil {
		return nil, err
	}
	m, err := newAdvisorMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create advisor metrics: %w", err)
	}
	a.tracer = tracer
	a.metrics = m
	return a, nil
}

// advisorMetrics is nil for an uninstrumented Advisor; every method is a no-op then.
type advisorMetrics struct {
	requests        metric.Int64Counter
	failures        metric.Int64Counter
	emptyResults    metric.Int64Counter
	fallbacks       metric.Int64Counter
	candidatesHist  metric.Int64Histogram
	survivorsHist   metric.Int64Histogram
	durationHist    metric.Float64Histogram
	stageLatency    metric.Float64Histogram
}

func newAdvisorMetrics(meter metric.Meter) (*advisorMetrics, error) {
	var (
		m    advisorMetrics
		err  error
		errs []error
	)

	m.requests, err = meter.Int64Counter("advisor_requests_total",
		metric.WithDescription("Total number of recommendation requests"))
	errs = append(errs, err)
	m.failures, err = meter.Int64Counter("advisor_requests_failed_total",
		metric.WithDescription("Total number of recommendation requests that failed"))
	errs = append(errs, err)
	m.emptyResults, err = meter.Int64Counter("advisor_empty_results_total",
		metric.WithDescription("Total number of requests where no candidate survived filtering"))
	errs = append(errs, err)
	m.fallbacks, err = meter.Int64Counter("advisor_fallback_selections_total",
		metric.WithDescription("Total number of requests answered with top ranked candidates"))
	errs = append(errs, err)
	m.candidatesHist, err = meter.Int64Histogram("advisor_candidates",
		metric.WithDescription("Number of candidates returned by retrieval"))
	errs = append(errs, err)
	m.survivorsHist, err = meter.Int64Histogram("advisor_survivors",
		metric.WithDescription("Number of candidates surviving the constraint filter"))
	errs = append(errs, err)
	m.durationHist, err = meter.Float64Histogram("advisor_request_duration_seconds",
		metric.WithDescription("Duration of recommendation requests in seconds"),
		metric.WithUnit("s"))
	errs = append(errs, err)
	m.stageLatency, err = meter.Float64Histogram("advisor_stage_duration_seconds",
		metric.WithDescription("Duration of individual pipeline stages in seconds"),
		metric.WithUnit("s"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *advisorMetrics) request(ctx context.Context, intent canteenadvisor.UserIntent) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("meal_slot", string(intent.MealSlot)),
		attribute.String("goal", string(intent.Goal)),
	))
}

func (m *advisorMetrics) failure(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
}

func (m *advisorMetrics) empty(ctx context.Context) {
	if m == nil {
		return
	}
	m.emptyResults.Add(ctx, 1)
}

func (m *advisorMetrics) fallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1)
}

func (m *advisorMetrics) candidates(ctx context.Context, retrieved, survived int) {
	if m == nil {
		return
	}
	m.candidatesHist.Record(ctx, int64(retrieved))
	m.survivorsHist.Record(ctx, int64(survived))
}

func (m *advisorMetrics) duration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.durationHist.Record(ctx, d.Seconds())
}

func (m *advisorMetrics) stage(ctx context.Context, name string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", name)))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, canteenadvisor.ErrInvalidIntent):
		return "invalid_intent"
	case errors.Is(err, canteenadvisor.ErrRetrievalUnavailable):
		return "retrieval_unavailable"
	case errors.Is(err, canteenadvisor.ErrGenerationUnavailable):
		return "generation_unavailable"
	default:
		return "other"
	}
}
