package canteenadvisor

import (
	"context"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Recommender is implemented by the advisor pipeline.
type Recommender interface {
	Recommend(ctx context.Context, intent UserIntent, history []string) (RecommendationResult, error)
}

// Searcher is the similarity-search capability over the food catalog.
// It may return fewer items than requested and must not fail for zero matches.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]FoodItem, error)
}

// Completer is the text-generation capability.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Message is a single chat entry handed to a Completer.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MealSlot labels the time of day a dish is served. Catalogs may use labels
// beyond the three constants, such as "snack".
type MealSlot string

const (
	Breakfast MealSlot = "breakfast"
	Lunch     MealSlot = "lunch"
	Dinner    MealSlot = "dinner"
)

// FitnessGoal is the objective driving ranking weights. The zero value means no goal.
type FitnessGoal string

const (
	GoalReduceFat    FitnessGoal = "reduce-fat"
	GoalBuildMuscle  FitnessGoal = "build-muscle"
	GoalMaintain     FitnessGoal = "maintain"
	GoalBalancedDiet FitnessGoal = "balanced-diet"
)

// NutritionProfile holds per-serving nutrition. Fiber and Sodium are optional.
type NutritionProfile struct {
	Calories float64  `json:"calories" validate:"min=0"`
	Protein  float64  `json:"protein" validate:"min=0"`
	Carbs    float64  `json:"carbs" validate:"min=0"`
	Fat      float64  `json:"fat" validate:"min=0"`
	Fiber    *float64 `json:"fiber,omitempty" validate:"omitempty,min=0"`
	Sodium   *float64 `json:"sodium,omitempty" validate:"omitempty,min=0"`
}

// Add returns the field-wise sum of two profiles. An optional field stays
// absent only when both operands lack it.
func (n NutritionProfile) Add(o NutritionProfile) NutritionProfile {
	return NutritionProfile{
		Calories: n.Calories + o.Calories,
		Protein:  n.Protein + o.Protein,
		Carbs:    n.Carbs + o.Carbs,
		Fat:      n.Fat + o.Fat,
		Fiber:    addOptional(n.Fiber, o.Fiber),
		Sodium:   addOptional(n.Sodium, o.Sodium),
	}
}

func addOptional(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	var sum float64
	if a != nil {
		sum += *a
	}
	if b != nil {
		sum += *b
	}
	return &sum
}

// Aggregate sums the nutrition of every item. An empty slice yields the zero profile.
func Aggregate(items []FoodItem) NutritionProfile {
	var total NutritionProfile
	for _, it := range items {
		total = total.Add(it.Nutrition)
	}
	return total
}

// FoodItem is a dish served by a canteen.
type FoodItem struct {
	ID             string           `json:"id" validate:"required"`
	Name           string           `json:"name" validate:"required"`
	Canteen        string           `json:"canteen"`
	Category       string           `json:"category"`
	Price          float64          `json:"price" validate:"min=0"`
	Nutrition      NutritionProfile `json:"nutrition"`
	Ingredients    []string         `json:"ingredients"`
	Tags           []string         `json:"tags"`
	AvailableMeals []MealSlot       `json:"available_meals"`
	Description    string           `json:"description,omitempty"`
}

// ServedAt reports whether the item is available for the given slot.
func (f FoodItem) ServedAt(slot MealSlot) bool {
	for _, m := range f.AvailableMeals {
		if m == slot {
			return true
		}
	}
	return false
}

// UserIntent describes what the student wants from a single meal.
type UserIntent struct {
	MealSlot            MealSlot    `json:"meal_slot" validate:"required"`
	Goal                FitnessGoal `json:"goal,omitempty" validate:"omitempty,oneof=reduce-fat build-muscle maintain balanced-diet"`
	DailyCaloriesTarget int         `json:"daily_calories_target,omitempty" validate:"omitempty,min=0,max=10000"`
	DietaryRestrictions []string    `json:"dietary_restrictions,omitempty"`
	Allergies           []string    `json:"allergies,omitempty"`
	DislikedFoods       []string    `json:"disliked_foods,omitempty"`
	PreferredCanteens   []string    `json:"preferred_canteens,omitempty"`
	ExtraRequirement    string      `json:"extra_requirement,omitempty"`
	// RecentHistory is most-recent-first and only feeds the generation context.
	RecentHistory []string `json:"recent_history,omitempty"`
}

// RecommendationResult is the structured answer for one request.
type RecommendationResult struct {
	Items     []FoodItem       `json:"food_items"`
	Nutrition NutritionProfile `json:"total_nutrition"`
	Reasoning string           `json:"reasoning"`
	Tips      string           `json:"tips,omitempty"`
}
