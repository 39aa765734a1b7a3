package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"canteenadvisor"
	"canteenadvisor/history"
)

// EntryRecorder stores one explicit history entry.
type EntryRecorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// DishLookup resolves catalog items by id.
type DishLookup interface {
	Lookup(id string) (canteenadvisor.FoodItem, bool)
}

type mealLogInput struct {
	UserID   string                  `json:"user_id"`
	FoodID   string                  `json:"food_id"`
	MealSlot canteenadvisor.MealSlot `json:"meal_slot"`
	Rating   *int                    `json:"rating,omitempty"`
	Notes    string                  `json:"notes,omitempty"`
}

// MealLog records a dish the student actually ate, with an optional rating.
type MealLog struct {
	dishes   DishLookup
	recorder EntryRecorder
}

func NewMealLog(dishes DishLookup, recorder EntryRecorder) *MealLog {
	return &MealLog{dishes: dishes, recorder: recorder}
}

func (t *MealLog) Name() string  { return "meal_log" }
func (t *MealLog) Title() string { return "Log an eaten dish" }
func (t *MealLog) Description() string {
	return "Records that a student ate a catalog dish, optionally with a 1-5 rating and notes. Logged meals inform later recommendations."
}

func (t *MealLog) InputSchema() *jsonschema.Schema {
	minRating, maxRating := 1.0, 5.0
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"user_id":   {Type: "string", Description: "Student id."},
			"food_id":   {Type: "string", Description: "Catalog dish id."},
			"meal_slot": {Type: "string", Description: "Meal the dish was eaten at, e.g. lunch."},
			"rating":    {Type: "integer", Minimum: &minRating, Maximum: &maxRating},
			"notes":     {Type: "string"},
		},
		Required: []string{"user_id", "food_id", "meal_slot"},
	}
}

func (t *MealLog) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":        {Type: "integer"},
			"food_name": {Type: "string"},
			"summary":   {Type: "string"},
		},
		Required: []string{"id", "food_name", "summary"},
	}
}

func (t *MealLog) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	var in mealLogInput
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("invalid meal log input: %w", err)
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("invalid meal log input: %w", err)
	}

	dish, ok := t.dishes.Lookup(in.FoodID)
	if !ok {
		return nil, fmt.Errorf("food %q not found in catalog", in.FoodID)
	}

	entry, err := t.recorder.Record(ctx, history.Entry{
		UserID:   in.UserID,
		FoodID:   dish.ID,
		FoodName: dish.Name,
		Canteen:  dish.Canteen,
		MealSlot: in.MealSlot,
		Rating:   in.Rating,
		Notes:    in.Notes,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":        entry.ID,
		"food_name": entry.FoodName,
		"summary":   entry.Summary(),
	}, nil
}
