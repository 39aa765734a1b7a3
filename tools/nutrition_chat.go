package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"canteenadvisor"
	"canteenadvisor/advisor"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type chatInput struct {
	Message             string     `json:"message" validate:"required"`
	ConversationHistory []chatTurn `json:"conversation_history,omitempty" validate:"dive"`
}

type chatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// NutritionChat answers free-form diet and nutrition questions.
type NutritionChat struct {
	completer canteenadvisor.Completer
}

// NewNutritionChat builds the tool. completer should already be capped to a
// short answer length.
func NewNutritionChat(completer canteenadvisor.Completer) *NutritionChat {
	return &NutritionChat{completer: completer}
}

func (t *NutritionChat) Name() string  { return "nutrition_chat" }
func (t *NutritionChat) Title() string { return "Ask the nutrition advisor" }
func (t *NutritionChat) Description() string {
	return "Answers a free-form question about diet, nutrition or health. Pass the earlier turns in conversation_history to continue a conversation."
}

func (t *NutritionChat) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"message": {Type: "string", Description: "The student's question."},
			"conversation_history": {
				Type:        "array",
				Description: "Earlier turns, oldest first.",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"role":    {Type: "string", Enum: []any{canteenadvisor.RoleUser, canteenadvisor.RoleAssistant}},
						"content": {Type: "string"},
					},
					Required: []string{"role", "content"},
				},
			},
		},
		Required: []string{"message"},
	}
}

func (t *NutritionChat) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"response": {Type: "string"},
		},
		Required: []string{"response"},
	}
}

func (t *NutritionChat) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	var in chatInput
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("invalid chat input: %w", err)
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("invalid chat input: %w", err)
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid chat input: %w", err)
	}

	history := make([]canteenadvisor.Message, len(in.ConversationHistory))
	for i, turn := range in.ConversationHistory {
		history[i] = canteenadvisor.Message{Role: turn.Role, Content: turn.Content}
	}

	text, err := t.completer.Complete(ctx, advisor.ChatMessages(history, in.Message))
	if err != nil {
		slog.Error("TOOLS: Chat generation failed", "error", err)
		return nil, fmt.Errorf("%w: %w", canteenadvisor.ErrGenerationUnavailable, err)
	}
	return map[string]any{"response": text}, nil
}
