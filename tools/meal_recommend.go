package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"canteenadvisor"
	"canteenadvisor/history"
)

// HistoryStore is the part of the history store the tools need.
type HistoryStore interface {
	Summaries(ctx context.Context, userID string, limit int) ([]string, error)
	RecordSelection(ctx context.Context, userID string, slot canteenadvisor.MealSlot, items []canteenadvisor.FoodItem) error
}

type MealRecommend struct {
	recommender      canteenadvisor.Recommender
	history          HistoryStore
	recordSelections bool
}

// NewMealRecommend builds the tool. store may be nil, in which case user_id is
// not offered. When recordSelections is set, recommended dishes are also logged
// as eaten; otherwise history only grows through meal_log.
func NewMealRecommend(r canteenadvisor.Recommender, store HistoryStore, recordSelections bool) *MealRecommend {
	return &MealRecommend{recommender: r, history: store, recordSelections: recordSelections}
}

func (t *MealRecommend) Name() string  { return "meal_recommend" }
func (t *MealRecommend) Title() string { return "Recommend a canteen meal" }
func (t *MealRecommend) Description() string {
	desc := "Recommends 2-4 canteen dishes for a meal slot and fitness goal, with total nutrition, reasoning and tips."
	if t.history != nil {
		desc += " Pass user_id to take the student's logged meals into account."
	}
	return desc
}

func (t *MealRecommend) InputSchema() *jsonschema.Schema {
	if t.history == nil {
		return intentSchema(nil)
	}
	return intentSchema(map[string]*jsonschema.Schema{
		"user_id": {Type: "string", Description: "Student id for meal history."},
	})
}

func (t *MealRecommend) OutputSchema() *jsonschema.Schema {
	nutrition := foodItemSchema().Properties["nutrition"]
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"food_items":      {Type: "array", Items: foodItemSchema()},
			"total_nutrition": nutrition,
			"reasoning":       {Type: "string"},
			"tips":            {Type: "string"},
		},
		Required: []string{"food_items", "total_nutrition", "reasoning"},
	}
}

func (t *MealRecommend) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	in, err := decodeIntent(input)
	if err != nil {
		return nil, err
	}

	if in.UserID != "" && t.history == nil {
		slog.Warn("TOOLS: No history store configured, ignoring user_id", "user_id", in.UserID)
	}

	var summaries []string
	if in.UserID != "" && t.history != nil {
		summaries, err = t.history.Summaries(ctx, in.UserID, history.DefaultSummaryLimit)
		if err != nil {
			// history only enriches the prompt
			slog.Warn("TOOLS: Failed to load history", "user_id", in.UserID, "error", err)
			summaries = nil
		}
	}

	res, err := t.recommender.Recommend(ctx, in.UserIntent, summaries)
	if err != nil {
		return nil, err
	}

	if in.UserID != "" && t.history != nil && t.recordSelections {
		if err := t.history.RecordSelection(ctx, in.UserID, in.MealSlot, res.Items); err != nil {
			slog.Warn("TOOLS: Failed to record selection", "user_id", in.UserID, "error", err)
		}
	}

	return toMap(res)
}
