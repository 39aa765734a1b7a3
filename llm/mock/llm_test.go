package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteenadvisor"
	"canteenadvisor/advisor"
)

func TestLLMClient_Complete(t *testing.T) {
	candidates := []canteenadvisor.FoodItem{
		{ID: "1", Name: "Steamed Fish", Canteen: "North"},
		{ID: "2", Name: "Chicken Salad", Canteen: "Central"},
		{ID: "3", Name: "Brown Rice", Canteen: "North"},
		{ID: "4", Name: "Tofu Soup", Canteen: "South"},
	}
	msgs := advisor.BuildMessages(canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch}, candidates, nil)

	text, err := NewLLMClient(0).Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Contains(t, text, "1. Steamed Fish - North")
	assert.Contains(t, text, "3. Brown Rice - North")
	assert.NotContains(t, text, "Tofu Soup")

	// the answer round-trips through the reconciler
	rec := advisor.ResponseReconciler{}.Reconcile(text, candidates)
	assert.Len(t, rec.Items, 3)
	assert.NotEmpty(t, rec.Reasoning)
	assert.Equal(t, "Eat slowly and drink enough water.", rec.Tips)
}

func TestLLMClient_OnlyReadsDishList(t *testing.T) {
	candidates := []canteenadvisor.FoodItem{{ID: "1", Name: "Steamed Fish", Canteen: "North"}}
	msgs := advisor.BuildMessages(canteenadvisor.UserIntent{MealSlot: canteenadvisor.Lunch}, candidates, nil)

	text, err := NewLLMClient(3).Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Contains(t, text, "1. Steamed Fish - North")
	assert.NotContains(t, text, "2.")
}

func TestLLMClient_NoDishes(t *testing.T) {
	text, err := NewLLMClient(2).Complete(context.Background(), []canteenadvisor.Message{
		{Role: canteenadvisor.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.NotContains(t, text, "1.")
	assert.Contains(t, text, `"hello"`)
}

func TestLLMClient_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLLMClient(1).Complete(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
