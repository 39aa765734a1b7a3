// Package advisor turns a user intent into a structured meal recommendation.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"canteenadvisor"
)

const (
	// EmptyReasoning is returned when no candidate survives filtering.
	EmptyReasoning = "no matching items"
	// EmptyTips accompanies EmptyReasoning.
	EmptyTips = "Try relaxing your preferences or choosing another meal."

	defaultCandidateCount = 20
	defaultFallbackCount  = 3
)

// CandidateRetriever fetches an oversized candidate set for an intent.
type CandidateRetriever interface {
	Retrieve(ctx context.Context, intent canteenadvisor.UserIntent, n int) ([]canteenadvisor.FoodItem, error)
}

// Deps are the collaborators of an Advisor. Retriever and Generator are required;
// the rest default to the package implementations.
type Deps struct {
	Retriever  CandidateRetriever
	Generator  canteenadvisor.Completer
	Filter     Filterer
	Ranker     Ranker
	Reconciler Reconciler
	Logger     canteenadvisor.StageLogger

	// CandidateCount is how many ranked candidates are handed to generation.
	CandidateCount int
	// FallbackCount is how many ranked candidates are used when the answer names none.
	FallbackCount int
}

// Advisor runs retrieve, filter, rank, generate and reconcile for each request.
// It holds no per-request state and is safe for concurrent use.
type Advisor struct {
	retriever      CandidateRetriever
	generator      canteenadvisor.Completer
	filter         Filterer
	ranker         Ranker
	reconciler     Reconciler
	logger         canteenadvisor.StageLogger
	candidateCount int
	fallbackCount  int
	tracer         trace.Tracer
	metrics        *advisorMetrics
}

// NewAdvisor wires an Advisor using the global tracer provider.
func NewAdvisor(deps Deps) (*Advisor, error) {
	if deps.Retriever == nil {
		return nil, errors.New("advisor: retriever is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("advisor: generator is required")
	}

	a := &Advisor{
		retriever:      deps.Retriever,
		generator:      deps.Generator,
		filter:         deps.Filter,
		ranker:         deps.Ranker,
		reconciler:     deps.Reconciler,
		logger:         deps.Logger,
		candidateCount: deps.CandidateCount,
		fallbackCount:  deps.FallbackCount,
		tracer:         otel.Tracer(canteenadvisor.TracerNameAdvisor),
	}
	if a.filter == nil {
		a.filter = ConstraintFilter{}
	}
	if a.ranker == nil {
		a.ranker = GoalRanker{}
	}
	if a.reconciler == nil {
		a.reconciler = ResponseReconciler{}
	}
	if a.logger == nil {
		a.logger = canteenadvisor.NewNoOpStageLogger()
	}
	if a.candidateCount <= 0 {
		a.candidateCount = defaultCandidateCount
	}
	if a.fallbackCount <= 0 {
		a.fallbackCount = defaultFallbackCount
	}
	return a, nil
}

// Recommend produces a recommendation for one intent. history overrides
// intent.RecentHistory when non-empty.
func (a *Advisor) Recommend(ctx context.Context, intent canteenadvisor.UserIntent, history []string) (canteenadvisor.RecommendationResult, error) {
	requestID := uuid.NewString()
	ctx, span := a.tracer.Start(ctx, "Advisor.Recommend", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("intent.meal_slot", string(intent.MealSlot)),
		attribute.String("intent.goal", string(intent.Goal)),
	))
	defer span.End()

	start := time.Now()
	a.metrics.request(ctx, intent)
	defer func() { a.metrics.duration(ctx, time.Since(start)) }()

	slog.Info("ADVISOR: Starting recommendation", "request_id", requestID, "meal_slot", intent.MealSlot, "goal", intent.Goal)

	result, err := a.recommend(ctx, requestID, intent, history)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		a.metrics.failure(ctx, err)
		slog.Error("ADVISOR: Recommendation failed", "request_id", requestID, "error", err)
		return canteenadvisor.RecommendationResult{}, err
	}

	span.SetAttributes(attribute.Int("result.items", len(result.Items)))
	slog.Info("RESULT: Recommendation ready", "request_id", requestID, "items", len(result.Items), "calories", result.Nutrition.Calories)
	return result, nil
}

func (a *Advisor) recommend(ctx context.Context, requestID string, intent canteenadvisor.UserIntent, history []string) (canteenadvisor.RecommendationResult, error) {
	if err := intent.Validate(); err != nil {
		return canteenadvisor.RecommendationResult{}, err
	}

	// retrieve
	stageCtx, stage := a.startStage(ctx, requestID, canteenadvisor.StageRetrieve)
	candidates, err := a.retriever.Retrieve(stageCtx, intent, a.candidateCount)
	stage.end(len(candidates), err)
	if err != nil {
		if !errors.Is(err, canteenadvisor.ErrRetrievalUnavailable) {
			err = fmt.Errorf("%w: %w", canteenadvisor.ErrRetrievalUnavailable, err)
		}
		return canteenadvisor.RecommendationResult{}, err
	}

	// filter
	_, stage = a.startStage(ctx, requestID, canteenadvisor.StageFilter)
	stage.in = len(candidates)
	survivors := a.filter.Filter(candidates, intent)
	stage.end(len(survivors), nil)

	// rank
	_, stage = a.startStage(ctx, requestID, canteenadvisor.StageRank)
	stage.in = len(survivors)
	ranked := a.ranker.Rank(survivors, intent)
	stage.end(len(ranked), nil)

	a.metrics.candidates(ctx, len(candidates), len(survivors))

	top := ranked[:min(a.candidateCount, len(ranked))]
	if len(top) == 0 {
		slog.Info("ADVISOR: No candidates survived filtering", "request_id", requestID, "retrieved", len(candidates))
		a.metrics.empty(ctx)
		return emptyResult(), nil
	}

	// generate
	if len(history) == 0 {
		history = intent.RecentHistory
	}
	msgs := BuildMessages(intent, top, history)
	stageCtx, stage = a.startStage(ctx, requestID, canteenadvisor.StageGenerate)
	stage.in = len(msgs)
	text, err := a.generator.Complete(stageCtx, msgs)
	stage.end(len(text), err)
	if err != nil {
		return canteenadvisor.RecommendationResult{}, fmt.Errorf("%w: %w", canteenadvisor.ErrGenerationUnavailable, err)
	}

	// reconcile
	_, stage = a.startStage(ctx, requestID, canteenadvisor.StageReconcile)
	stage.in = len(top)
	rec := a.reconciler.Reconcile(text, top)
	items, reasoning := rec.Items, rec.Reasoning
	if len(items) == 0 {
		items = top[:min(a.fallbackCount, len(top))]
		reasoning = text
		stage.detail = "fallback"
		a.metrics.fallback(ctx)
		slog.Warn("ADVISOR: Generated answer named no candidate, using top ranked", "request_id", requestID, "fallback", len(items))
	}
	stage.end(len(items), nil)

	return canteenadvisor.RecommendationResult{
		Items:     items,
		Nutrition: canteenadvisor.Aggregate(items),
		Reasoning: reasoning,
		Tips:      rec.Tips,
	}, nil
}

func emptyResult() canteenadvisor.RecommendationResult {
	return canteenadvisor.RecommendationResult{
		Items:     []canteenadvisor.FoodItem{},
		Reasoning: EmptyReasoning,
		Tips:      EmptyTips,
	}
}

// stageRun tracks one timed pipeline stage.
type stageRun struct {
	a         *Advisor
	ctx       context.Context
	span      trace.Span
	requestID string
	name      string
	start     time.Time
	in        int
	detail    string
}

func (a *Advisor) startStage(ctx context.Context, requestID, name string) (context.Context, *stageRun) {
	ctx, span := a.tracer.Start(ctx, "Advisor."+name)
	return ctx, &stageRun{a: a, ctx: ctx, span: span, requestID: requestID, name: name, start: time.Now()}
}

func (s *stageRun) end(out int, err error) {
	elapsed := time.Since(s.start)
	entry := canteenadvisor.StageLog{
		RequestID: s.requestID,
		Stage:     s.name,
		Timestamp: s.start,
		Duration:  elapsed,
		InputLen:  s.in,
		OutputLen: out,
		Detail:    s.detail,
	}
	s.span.SetAttributes(attribute.Int("stage.input", s.in), attribute.Int("stage.output", out))
	if err != nil {
		entry.Error = err.Error()
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)
	}
	s.span.End()

	s.a.metrics.stage(s.ctx, s.name, elapsed)
	if lerr := s.a.logger.LogStage(entry); lerr != nil {
		slog.Warn("ADVISOR: Failed to log stage", "stage", s.name, "error", lerr)
	}
}
