package advisor

import (
	"math"
	"sort"

	"canteenadvisor"
)

// Ranker orders survivors best first for an intent's goal.
type Ranker interface {
	Rank(survivors []canteenadvisor.FoodItem, intent canteenadvisor.UserIntent) []canteenadvisor.FoodItem
}

// GoalRanker scores items with one objective function per fitness goal.
type GoalRanker struct{}

// Rank returns a new slice sorted by descending score. Equal scores keep input order.
// Without a goal the survivors are returned as is.
func (GoalRanker) Rank(survivors []canteenadvisor.FoodItem, intent canteenadvisor.UserIntent) []canteenadvisor.FoodItem {
	if intent.Goal == "" {
		return survivors
	}

	type scored struct {
		item  canteenadvisor.FoodItem
		score float64
	}
	ranked := make([]scored, len(survivors))
	for i, it := range survivors {
		ranked[i] = scored{item: it, score: Score(it.Nutrition, intent.Goal)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]canteenadvisor.FoodItem, len(ranked))
	for i, s := range ranked {
		out[i] = s.item
	}
	return out
}

// Score evaluates a single nutrition profile against a goal. Higher is better.
func Score(n canteenadvisor.NutritionProfile, goal canteenadvisor.FitnessGoal) float64 {
	switch goal {
	case canteenadvisor.GoalReduceFat:
		return math.Max(0, 500-n.Calories)*0.3 + n.Protein*2 - n.Fat*1.5
	case canteenadvisor.GoalBuildMuscle:
		return n.Protein*3 + math.Min(n.Calories, 800)*0.2
	case canteenadvisor.GoalBalancedDiet:
		return balanceScore(n)
	case canteenadvisor.GoalMaintain:
		return 0
	default:
		return 0
	}
}

// balanceScore penalizes distance from a 30/50/20 protein/carb/fat calorie split.
func balanceScore(n canteenadvisor.NutritionProfile) float64 {
	total := n.Protein*4 + n.Carbs*4 + n.Fat*9
	if total == 0 {
		return 0
	}
	p := n.Protein * 4 / total
	c := n.Carbs * 4 / total
	f := n.Fat * 9 / total
	return -100 * (math.Abs(p-0.30) + math.Abs(c-0.50) + math.Abs(f-0.20))
}
