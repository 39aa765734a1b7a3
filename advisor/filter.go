package advisor

import (
	"slices"
	"strings"

	"canteenadvisor"
)

// Filterer removes candidates that violate an intent's hard constraints.
type Filterer interface {
	Filter(candidates []canteenadvisor.FoodItem, intent canteenadvisor.UserIntent) []canteenadvisor.FoodItem
}

// ConstraintFilter applies meal slot, allergen, dislike and canteen rules in that order.
// Dietary restrictions are not enforced; they only bias the retrieval query and the prompt.
type ConstraintFilter struct{}

// Filter keeps candidate order and never adds items.
func (ConstraintFilter) Filter(candidates []canteenadvisor.FoodItem, intent canteenadvisor.UserIntent) []canteenadvisor.FoodItem {
	allergens := lowerTerms(intent.Allergies)
	dislikes := lowerTerms(intent.DislikedFoods)

	out := make([]canteenadvisor.FoodItem, 0, len(candidates))
	for _, it := range candidates {
		if admits(it, intent, allergens, dislikes) {
			out = append(out, it)
		}
	}
	return out
}

func admits(it canteenadvisor.FoodItem, intent canteenadvisor.UserIntent, allergens, dislikes []string) bool {
	if !it.ServedAt(intent.MealSlot) {
		return false
	}
	for _, ing := range it.Ingredients {
		if containsAny(strings.ToLower(ing), allergens) {
			return false
		}
	}
	if containsAny(strings.ToLower(it.Name), dislikes) {
		return false
	}
	if len(intent.PreferredCanteens) > 0 && !slices.Contains(intent.PreferredCanteens, it.Canteen) {
		return false
	}
	return true
}

// lowerTerms lowercases terms and drops blanks, which would otherwise match everything.
func lowerTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
