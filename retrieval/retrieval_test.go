package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteenadvisor"
)

type mockSearcher struct {
	items     []canteenadvisor.FoodItem
	err       error
	lastQuery string
	lastN     int
}

func (m *mockSearcher) Search(ctx context.Context, query string, n int) ([]canteenadvisor.FoodItem, error) {
	m.lastQuery = query
	m.lastN = n
	return m.items, m.err
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		intent   canteenadvisor.UserIntent
		expected string
	}{
		{
			name:     "slot only",
			intent:   canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch},
			expected: "lunch",
		},
		{
			name: "reduce fat with restriction and extra",
			intent: canteenadvisor.UserIntent{
				MealSlot:            canteenadvisor.Lunch,
				Goal:                canteenadvisor.GoalReduceFat,
				DietaryRestrictions: []string{"vegetarian"},
				ExtraRequirement:    "something warm",
			},
			expected: "lunch reduce-fat vegetarian low-calorie high-protein low-fat something warm",
		},
		{
			name:     "build muscle boost",
			intent:   canteenadvisor.UserIntent{MealSlot: canteenadvisor.Dinner, Goal: canteenadvisor.GoalBuildMuscle},
			expected: "dinner build-muscle high-protein high-calorie",
		},
		{
			name:     "balanced diet boost",
			intent:   canteenadvisor.UserIntent{MealSlot: canteenadvisor.Breakfast, Goal: canteenadvisor.GoalBalancedDiet},
			expected: "breakfast balanced-diet balanced healthy",
		},
		{
			name: "restriction terms pass through unmodified and blanks are dropped",
			intent: canteenadvisor.UserIntent{
				MealSlot:            canteenadvisor.Lunch,
				DietaryRestrictions: []string{"Halal Friendly", "", "  ", "gluten-free"},
				ExtraRequirement:    " ",
			},
			expected: "lunch Halal Friendly gluten-free",
		},
		{
			name:     "maintain adds no boost",
			intent:   canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, Goal: canteenadvisor.GoalMaintain},
			expected: "lunch maintain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildQuery(tt.intent))
		})
	}
}

func TestRetriever_Retrieve(t *testing.T) {
	intent := canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch, Goal: canteenadvisor.GoalReduceFat}

	t.Run("over-fetches twice the requested count", func(t *testing.T) {
		s := &mockSearcher{items: []canteenadvisor.FoodItem{{ID: "a"}, {ID: "b"}}}
		items, err := NewRetriever(s).Retrieve(context.Background(), intent, 5)
		require.NoError(t, err)
		assert.Len(t, items, 2)
		assert.Equal(t, 10, s.lastN)
		assert.Equal(t, BuildQuery(intent), s.lastQuery)
	})

	t.Run("default count", func(t *testing.T) {
		s := &mockSearcher{}
		_, err := NewRetriever(s).Retrieve(context.Background(), intent, 0)
		require.NoError(t, err)
		assert.Equal(t, 2*DefaultResults, s.lastN)
	})

	t.Run("zero matches is not an error", func(t *testing.T) {
		items, err := NewRetriever(&mockSearcher{}).Retrieve(context.Background(), intent, 3)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("capability failure", func(t *testing.T) {
		_, err := NewRetriever(&mockSearcher{err: errors.New("connection refused")}).Retrieve(context.Background(), intent, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, canteenadvisor.ErrRetrievalUnavailable))
		assert.Contains(t, err.Error(), "connection refused")
	})
}
