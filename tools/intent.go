package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"canteenadvisor"
)

// intentInput is the tool-facing shape of a request.
type intentInput struct {
	canteenadvisor.UserIntent
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func decodeIntent(input map[string]any) (intentInput, error) {
	var in intentInput
	b, err := json.Marshal(input)
	if err != nil {
		return in, fmt.Errorf("%w: %v", canteenadvisor.ErrInvalidIntent, err)
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return in, fmt.Errorf("%w: %v", canteenadvisor.ErrInvalidIntent, err)
	}
	return in, in.UserIntent.Validate()
}

func stringList(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: desc, Items: &jsonschema.Schema{Type: "string"}}
}

// intentSchema describes the fields shared by every advisor tool.
func intentSchema(extra map[string]*jsonschema.Schema) *jsonschema.Schema {
	minCal, maxCal := 0.0, 10000.0
	props := map[string]*jsonschema.Schema{
		"meal_slot": {
			Type:        "string",
			Description: "Meal to recommend for, e.g. breakfast, lunch or dinner.",
		},
		"goal": {
			Type:        "string",
			Description: "Fitness goal driving the ranking.",
			Enum: []any{
				string(canteenadvisor.GoalReduceFat),
				string(canteenadvisor.GoalBuildMuscle),
				string(canteenadvisor.GoalMaintain),
				string(canteenadvisor.GoalBalancedDiet),
			},
		},
		"daily_calories_target": {Type: "integer", Minimum: &minCal, Maximum: &maxCal},
		"dietary_restrictions":  stringList("Soft preferences such as vegetarian or halal."),
		"allergies":             stringList("Ingredients that must not appear."),
		"disliked_foods":        stringList("Dish name fragments to avoid."),
		"preferred_canteens":    stringList("Only recommend from these canteens."),
		"extra_requirement":     {Type: "string", Description: "Free-text request."},
	}
	for k, v := range extra {
		props[k] = v
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   []string{"meal_slot"},
	}
}

func foodItemSchema() *jsonschema.Schema {
	minZero := 0.0
	num := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number", Minimum: &minZero} }
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":       {Type: "string"},
			"name":     {Type: "string"},
			"canteen":  {Type: "string"},
			"category": {Type: "string"},
			"price":    num(),
			"nutrition": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"calories": num(),
					"protein":  num(),
					"carbs":    num(),
					"fat":      num(),
					"fiber":    num(),
					"sodium":   num(),
				},
				Required: []string{"calories", "protein", "carbs", "fat"},
			},
			"ingredients":     stringList(""),
			"tags":            stringList(""),
			"available_meals": stringList(""),
		},
		Required: []string{"id", "name"},
	}
}
