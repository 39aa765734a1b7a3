package advisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"canteenadvisor"
)

type mockRetriever struct {
	items []canteenadvisor.FoodItem
	err   error
	calls int
	lastN int
}

func (m *mockRetriever) Retrieve(ctx context.Context, intent canteenadvisor.UserIntent, n int) ([]canteenadvisor.FoodItem, error) {
	m.calls++
	m.lastN = n
	return m.items, m.err
}

type mockGenerator struct {
	text     string
	err      error
	calls    int
	messages []canteenadvisor.Message
}

func (m *mockGenerator) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	m.calls++
	m.messages = messages
	return m.text, m.err
}

type recordingLogger struct {
	mu     sync.Mutex
	stages []canteenadvisor.StageLog
}

func (r *recordingLogger) LogStage(stage canteenadvisor.StageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	return nil
}

func fiber(v float64) *float64 { return &v }

func catalogFixture() []canteenadvisor.FoodItem {
	return []canteenadvisor.FoodItem{
		{
			ID: "f1", Name: "Chicken Salad", Canteen: "Central",
			Nutrition:      canteenadvisor.NutritionProfile{Calories: 350, Protein: 30, Carbs: 10, Fat: 8, Fiber: fiber(4)},
			Ingredients:    []string{"chicken", "lettuce"},
			AvailableMeals: lunchDinner,
		},
		{
			ID: "f2", Name: "Satay Noodles", Canteen: "Central",
			Nutrition:      canteenadvisor.NutritionProfile{Calories: 650, Protein: 20, Carbs: 80, Fat: 25},
			Ingredients:    []string{"noodles", "peanut sauce"},
			AvailableMeals: lunchOnly,
		},
		{
			ID: "f3", Name: "Steamed Fish", Canteen: "North",
			Nutrition:      canteenadvisor.NutritionProfile{Calories: 280, Protein: 35, Carbs: 2, Fat: 6},
			Ingredients:    []string{"fish", "ginger"},
			AvailableMeals: lunchOnly,
		},
		{
			ID: "f4", Name: "Brown Rice", Canteen: "North",
			Nutrition:      canteenadvisor.NutritionProfile{Calories: 220, Protein: 5, Carbs: 45, Fat: 2},
			Ingredients:    []string{"rice"},
			AvailableMeals: lunchDinner,
		},
	}
}

func newTestAdvisor(t *testing.T, r *mockRetriever, g *mockGenerator, opts ...func(*Deps)) *Advisor {
	t.Helper()
	deps := Deps{Retriever: r, Generator: g}
	for _, o := range opts {
		o(&deps)
	}
	a, err := NewAdvisor(deps)
	require.NoError(t, err)
	return a
}

func TestNewAdvisor_RequiresCollaborators(t *testing.T) {
	_, err := NewAdvisor(Deps{Generator: &mockGenerator{}})
	assert.Error(t, err)
	_, err = NewAdvisor(Deps{Retriever: &mockRetriever{}})
	assert.Error(t, err)
}

func TestAdvisor_Recommend(t *testing.T) {
	intent := canteenadvisor.UserIntent{
		MealSlot:  canteenadvisor.Lunch,
		Goal:      canteenadvisor.GoalReduceFat,
		Allergies: []string{"peanut"},
	}

	t.Run("reconciled selection", func(t *testing.T) {
		r := &mockRetriever{items: catalogFixture()}
		g := &mockGenerator{text: "**Recommended dishes:**\n1. Steamed Fish - North\n2. Brown Rice - North\n**Reasoning:** Lean and filling.\n**Tips:** Drink water."}
		logger := &recordingLogger{}
		a := newTestAdvisor(t, r, g, func(d *Deps) { d.Logger = logger; d.CandidateCount = 5 })

		res, err := a.Recommend(context.Background(), intent, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"f3", "f4"}, ids(res.Items))
		assert.Equal(t, "Lean and filling.", res.Reasoning)
		assert.Equal(t, "Drink water.", res.Tips)
		assert.Equal(t, canteenadvisor.Aggregate(res.Items), res.Nutrition)
		assert.Equal(t, 500.0, res.Nutrition.Calories)
		assert.Nil(t, res.Nutrition.Fiber)

		assert.Equal(t, 1, r.calls)
		assert.Equal(t, 5, r.lastN)
		assert.Equal(t, 1, g.calls)

		// the peanut dish never reaches generation
		assert.NotContains(t, g.messages[2].Content, "Satay Noodles")
		// candidates are handed over in ranked order
		assert.Less(t, strings.Index(g.messages[2].Content, "[Steamed Fish]"), strings.Index(g.messages[2].Content, "[Chicken Salad]"))

		require.Len(t, logger.stages, 5)
		stages := make([]string, 0, 5)
		for _, s := range logger.stages {
			stages = append(stages, s.Stage)
			assert.Equal(t, logger.stages[0].RequestID, s.RequestID)
		}
		assert.Equal(t, []string{
			canteenadvisor.StageRetrieve,
			canteenadvisor.StageFilter,
			canteenadvisor.StageRank,
			canteenadvisor.StageGenerate,
			canteenadvisor.StageReconcile,
		}, stages)
		assert.Equal(t, 4, logger.stages[1].InputLen)
		assert.Equal(t, 3, logger.stages[1].OutputLen)
	})

	t.Run("fallback to top ranked when nothing matches", func(t *testing.T) {
		r := &mockRetriever{items: catalogFixture()}
		g := &mockGenerator{text: "I suggest pizza.\n**Tips:** Walk after eating."}
		logger := &recordingLogger{}
		a := newTestAdvisor(t, r, g, func(d *Deps) { d.Logger = logger })

		res, err := a.Recommend(context.Background(), canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, Goal: canteenadvisor.GoalReduceFat}, nil)
		require.NoError(t, err)

		// reduce-fat order: fish 127, salad 93, rice 91, noodles 2.5
		assert.Equal(t, []string{"f3", "f1", "f4"}, ids(res.Items))
		assert.Equal(t, g.text, res.Reasoning)
		assert.Equal(t, "Walk after eating.", res.Tips)
		assert.Equal(t, canteenadvisor.Aggregate(res.Items), res.Nutrition)
		require.NotNil(t, res.Nutrition.Fiber)
		assert.Equal(t, 4.0, *res.Nutrition.Fiber)
		assert.Equal(t, "fallback", logger.stages[4].Detail)
	})

	t.Run("fallback count is configurable", func(t *testing.T) {
		r := &mockRetriever{items: catalogFixture()}
		g := &mockGenerator{text: "nothing useful"}
		a := newTestAdvisor(t, r, g, func(d *Deps) { d.FallbackCount = 1 })

		res, err := a.Recommend(context.Background(), canteenadvisor.UserIntent{MealSlot: canteenadvisor.Dinner}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"f1"}, ids(res.Items))
	})

	t.Run("empty survivors short-circuit generation", func(t *testing.T) {
		r := &mockRetriever{items: catalogFixture()}
		g := &mockGenerator{}
		a := newTestAdvisor(t, r, g)

		res, err := a.Recommend(context.Background(), canteenadvisor.UserIntent{MealSlot: canteenadvisor.Breakfast}, nil)
		require.NoError(t, err)

		assert.Empty(t, res.Items)
		assert.NotNil(t, res.Items)
		assert.Equal(t, canteenadvisor.NutritionProfile{}, res.Nutrition)
		assert.Equal(t, EmptyReasoning, res.Reasoning)
		assert.NotEmpty(t, res.Tips)
		assert.Equal(t, 0, g.calls)
	})

	t.Run("empty retrieval", func(t *testing.T) {
		a := newTestAdvisor(t, &mockRetriever{}, &mockGenerator{})
		res, err := a.Recommend(context.Background(), intent, nil)
		require.NoError(t, err)
		assert.Equal(t, EmptyReasoning, res.Reasoning)
	})

	t.Run("candidate count caps what generation sees", func(t *testing.T) {
		r := &mockRetriever{items: catalogFixture()}
		g := &mockGenerator{text: "1. Brown Rice - North"}
		a := newTestAdvisor(t, r, g, func(d *Deps) { d.CandidateCount = 1 })

		res, err := a.Recommend(context.Background(), canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, Goal: canteenadvisor.GoalReduceFat}, nil)
		require.NoError(t, err)
		// Brown Rice is not among the top 1, so the fallback applies
		assert.Equal(t, []string{"f3"}, ids(res.Items))
		assert.NotContains(t, g.messages[2].Content, "Brown Rice")
	})
}

func TestAdvisor_History(t *testing.T) {
	intent := canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, RecentHistory: []string{"from-intent"}}

	t.Run("parameter wins over intent", func(t *testing.T) {
		g := &mockGenerator{text: "1. Brown Rice - North"}
		a := newTestAdvisor(t, &mockRetriever{items: catalogFixture()}, g)
		_, err := a.Recommend(context.Background(), intent, []string{"from-store"})
		require.NoError(t, err)
		assert.Contains(t, g.messages[1].Content, "- from-store")
		assert.NotContains(t, g.messages[1].Content, "from-intent")
	})

	t.Run("intent history used when parameter empty", func(t *testing.T) {
		g := &mockGenerator{text: "1. Brown Rice - North"}
		a := newTestAdvisor(t, &mockRetriever{items: catalogFixture()}, g)
		_, err := a.Recommend(context.Background(), intent, nil)
		require.NoError(t, err)
		assert.Contains(t, g.messages[1].Content, "- from-intent")
	})
}

func TestAdvisor_Errors(t *testing.T) {
	tests := []struct {
		name      string
		intent    canteenadvisor.UserIntent
		retriever *mockRetriever
		generator *mockGenerator
		target    error
		retrieved int
		generated int
	}{
		{
			name:      "missing meal slot",
			intent:    canteenadvisor.UserIntent{Goal: canteenadvisor.GoalMaintain},
			retriever: &mockRetriever{items: catalogFixture()},
			generator: &mockGenerator{},
			target:    canteenadvisor.ErrInvalidIntent,
		},
		{
			name:      "unknown goal",
			intent:    canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, Goal: "bulk"},
			retriever: &mockRetriever{items: catalogFixture()},
			generator: &mockGenerator{},
			target:    canteenadvisor.ErrInvalidIntent,
		},
		{
			name:      "retrieval unavailable",
			intent:    canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch},
			retriever: &mockRetriever{err: errors.New("index offline")},
			generator: &mockGenerator{},
			target:    canteenadvisor.ErrRetrievalUnavailable,
			retrieved: 1,
		},
		{
			name:      "generation unavailable",
			intent:    canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch},
			retriever: &mockRetriever{items: catalogFixture()},
			generator: &mockGenerator{err: errors.New("throttled")},
			target:    canteenadvisor.ErrGenerationUnavailable,
			retrieved: 1,
			generated: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdvisor(t, tt.retriever, tt.generator)
			_, err := a.Recommend(context.Background(), tt.intent, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Equal(t, tt.retrieved, tt.retriever.calls)
			assert.Equal(t, tt.generated, tt.generator.calls)
		})
	}
}

func TestInstrumentedAdvisor_Recommend(t *testing.T) {
	r := &mockRetriever{items: catalogFixture()}
	g := &mockGenerator{text: "1. Chicken Salad - Central"}

	a, err := NewInstrumentedAdvisor(Deps{Retriever: r, Generator: g},
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, a.metrics)

	res, err := a.Recommend(context.Background(), canteenadvisor.UserIntent{MealSlot: canteenadvisor.Dinner}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids(res.Items))

	_, err = a.Recommend(context.Background(), canteenadvisor.UserIntent{}, nil)
	assert.ErrorIs(t, err, canteenadvisor.ErrInvalidIntent)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "invalid_intent", failureReason(canteenadvisor.ErrInvalidIntent))
	assert.Equal(t, "generation_unavailable", failureReason(errors.Join(errors.New("x"), canteenadvisor.ErrGenerationUnavailable)))
	assert.Equal(t, "other", failureReason(errors.New("boom")))
}
