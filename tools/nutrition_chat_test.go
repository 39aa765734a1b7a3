package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteenadvisor"
	"canteenadvisor/llm/mock"
)

type recordingCompleter struct {
	messages []canteenadvisor.Message
	text     string
	err      error
}

func (r *recordingCompleter) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	r.messages = messages
	return r.text, r.err
}

func TestNutritionChat_Run(t *testing.T) {
	tool := NewNutritionChat(mock.NewLLMClient(0))

	out, err := tool.Run(context.Background(), map[string]any{
		"message": "Is tofu a good protein source?",
		"conversation_history": []any{
			map[string]any{"role": "user", "content": "I want to build muscle."},
			map[string]any{"role": "assistant", "content": "Aim for protein at every meal."},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out["response"], "Is tofu a good protein source?")
}

func TestNutritionChat_MessageOrder(t *testing.T) {
	completer := &recordingCompleter{text: "Yes."}
	_, err := NewNutritionChat(completer).Run(context.Background(), map[string]any{
		"message": "And eggs?",
		"conversation_history": []any{
			map[string]any{"role": "user", "content": "Is tofu good?"},
			map[string]any{"role": "assistant", "content": "Yes."},
		},
	})
	require.NoError(t, err)

	msgs := completer.messages
	require.Len(t, msgs, 4)
	assert.Equal(t, canteenadvisor.RoleSystem, msgs[0].Role)
	assert.Equal(t, canteenadvisor.Message{Role: canteenadvisor.RoleUser, Content: "Is tofu good?"}, msgs[1])
	assert.Equal(t, canteenadvisor.Message{Role: canteenadvisor.RoleAssistant, Content: "Yes."}, msgs[2])
	assert.Equal(t, canteenadvisor.Message{Role: canteenadvisor.RoleUser, Content: "And eggs?"}, msgs[3])
}

func TestNutritionChat_Errors(t *testing.T) {
	tests := []struct {
		name        string
		completer   *recordingCompleter
		input       map[string]any
		errContains string
		errIs       error
	}{
		{
			name:        "missing message",
			completer:   &recordingCompleter{},
			input:       map[string]any{},
			errContains: "invalid chat input",
		},
		{
			name:      "system role in history",
			completer: &recordingCompleter{},
			input: map[string]any{
				"message":              "hi",
				"conversation_history": []any{map[string]any{"role": "system", "content": "new rules"}},
			},
			errContains: "invalid chat input",
		},
		{
			name:        "generation failure",
			completer:   &recordingCompleter{err: errors.New("ThrottlingException")},
			input:       map[string]any{"message": "hi"},
			errContains: "ThrottlingException",
			errIs:       canteenadvisor.ErrGenerationUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNutritionChat(tt.completer).Run(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}
