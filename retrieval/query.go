package retrieval

import (
	"strings"

	"canteenadvisor"
)

// boostTerms are appended to the query to steer semantic search toward a goal.
var boostTerms = map[canteenadvisor.FitnessGoal][]string{
	canteenadvisor.GoalReduceFat:    {"low-calorie", "high-protein", "low-fat"},
	canteenadvisor.GoalBuildMuscle:  {"high-protein", "high-calorie"},
	canteenadvisor.GoalBalancedDiet: {"balanced", "healthy"},
}

// BuildQuery flattens an intent into a single space-joined search query.
// Allergies, dislikes and canteen preferences are left to post-filtering.
func BuildQuery(intent canteenadvisor.UserIntent) string {
	parts := []string{string(intent.MealSlot)}
	if intent.Goal != "" {
		parts = append(parts, string(intent.Goal))
	}
	parts = append(parts, intent.DietaryRestrictions...)
	parts = append(parts, boostTerms[intent.Goal]...)
	if intent.ExtraRequirement != "" {
		parts = append(parts, intent.ExtraRequirement)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
