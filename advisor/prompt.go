package advisor

import (
	"fmt"
	"strings"

	"canteenadvisor"
)

// MaxHistoryLines caps how many history entries reach the prompt.
const MaxHistoryLines = 10

const systemPrompt = `You are a campus nutrition advisor. Recommend dishes to students from the real menus of the canteens around campus, based on their health goal and dietary preferences.

You must:
1. Understand the student's health goal (reduce fat, build muscle, balanced diet, ...)
2. Respect their dietary restrictions and allergies
3. Recommend only from the menu data provided
4. Give a clear nutrition analysis and the reasoning behind the recommendation
5. Offer practical eating tips

Principles:
- Every recommended dish must come from the provided menu. Never invent dishes.
- Favour balanced, healthy meals.
- Keep a student budget in mind.
- Be specific in reasoning and tips.`

const formatPrompt = `Recommend 2-4 dishes from the list above that together make one balanced meal.

Reply in exactly this format:

**Recommended dishes:**
1. [Dish name] - [Canteen]
2. [Dish name] - [Canteen]
...

**Nutrition analysis:**
- Total calories: XXX kcal
- Total protein: XX g
- Total carbs: XX g
- Total fat: XX g

**Reasoning:**
[Why these dishes fit the student's goal]

**Tips:**
[Practical eating advice]`

// BuildMessages assembles the generation request: system instruction, intent
// context, candidate list, optional extra requirement, then the answer format.
func BuildMessages(intent canteenadvisor.UserIntent, candidates []canteenadvisor.FoodItem, history []string) []canteenadvisor.Message {
	msgs := []canteenadvisor.Message{
		{Role: canteenadvisor.RoleSystem, Content: systemPrompt},
		{Role: canteenadvisor.RoleUser, Content: userContext(intent, history)},
		{Role: canteenadvisor.RoleUser, Content: FormatCandidates(candidates)},
	}
	if extra := strings.TrimSpace(intent.ExtraRequirement); extra != "" {
		msgs = append(msgs, canteenadvisor.Message{Role: canteenadvisor.RoleUser, Content: "Extra requirement: " + extra})
	}
	return append(msgs, canteenadvisor.Message{Role: canteenadvisor.RoleUser, Content: formatPrompt})
}

// ChatMessages assembles a free-form nutrition chat: the advisor's system
// instruction, the prior conversation, then the new message. System entries and
// blank turns in history are dropped.
func ChatMessages(history []canteenadvisor.Message, message string) []canteenadvisor.Message {
	msgs := make([]canteenadvisor.Message, 0, len(history)+2)
	msgs = append(msgs, canteenadvisor.Message{Role: canteenadvisor.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		if m.Role == canteenadvisor.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	return append(msgs, canteenadvisor.Message{Role: canteenadvisor.RoleUser, Content: message})
}

func userContext(intent canteenadvisor.UserIntent, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meal: %s\n\n", intent.MealSlot)

	if intent.Goal != "" {
		fmt.Fprintf(&b, "Health goal: %s\n", intent.Goal)
	}
	if intent.DailyCaloriesTarget > 0 {
		fmt.Fprintf(&b, "Daily calorie target: %dkcal\n", intent.DailyCaloriesTarget)
	}
	writeList(&b, "Dietary restrictions", intent.DietaryRestrictions)
	writeList(&b, "Allergies", intent.Allergies)
	writeList(&b, "Preferred canteens", intent.PreferredCanteens)
	writeList(&b, "Disliked foods", intent.DislikedFoods)

	if len(history) > 0 {
		b.WriteString("\nRecent meals (for eating habits):\n")
		for i, h := range history {
			if i == MaxHistoryLines {
				break
			}
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}

// FormatCandidates renders the candidate list. Each dish starts with a "[Name]" line.
func FormatCandidates(candidates []canteenadvisor.FoodItem) string {
	var b strings.Builder
	b.WriteString("Available dishes:\n")
	for _, f := range candidates {
		n := f.Nutrition
		fmt.Fprintf(&b, "\n[%s]\n", f.Name)
		fmt.Fprintf(&b, "- Canteen: %s\n", f.Canteen)
		fmt.Fprintf(&b, "- Category: %s\n", f.Category)
		fmt.Fprintf(&b, "- Price: %.2f\n", f.Price)
		fmt.Fprintf(&b, "- Nutrition: %gkcal, protein %gg, carbs %gg, fat %gg\n", n.Calories, n.Protein, n.Carbs, n.Fat)
		fmt.Fprintf(&b, "- Ingredients: %s\n", strings.Join(f.Ingredients, ", "))
		fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(f.Tags, ", "))
		b.WriteString("---\n")
	}
	return b.String()
}
