// Package mock provides a deterministic completer for offline runs and tests.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"canteenadvisor"
)

const (
	defaultPicks = 3
	// dishListHeader opens the candidate message built by the advisor.
	dishListHeader = "Available dishes:"
)

type dish struct {
	name    string
	canteen string
}

// LLMClient answers in the advisor's expected format by picking the first
// dishes listed in the prompt. Real models may not be so kind :)
type LLMClient struct {
	picks int
}

func NewLLMClient(picks int) *LLMClient {
	if picks <= 0 {
		picks = defaultPicks
	}
	return &LLMClient{picks: picks}
}

func (m *LLMClient) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(messages))
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var dishes []dish
	for _, msg := range messages {
		if msg.Role != canteenadvisor.RoleUser || !strings.HasPrefix(msg.Content, dishListHeader) {
			continue
		}
		dishes = append(dishes, parseDishes(msg.Content)...)
	}

	if len(dishes) == 0 {
		slog.Info("LLM_CLIENT: No dishes in prompt, returning free text")
		return chatReply(messages), nil
	}
	if len(dishes) > m.picks {
		dishes = dishes[:m.picks]
	}

	var b strings.Builder
	b.WriteString("**Recommended dishes:**\n")
	for i, d := range dishes {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, d.name, d.canteen)
	}
	b.WriteString("\n**Reasoning:**\n")
	fmt.Fprintf(&b, "These %d dishes ranked highest for your goal among the available options.\n", len(dishes))
	b.WriteString("\n**Tips:**\n")
	b.WriteString("Eat slowly and drink enough water.\n")

	slog.Info("LLM_CLIENT: Returning mock recommendation", "dishes", len(dishes))
	return b.String(), nil
}

// parseDishes reads "[Name]" header lines and the "- Canteen:" line that follows each.
func parseDishes(content string) []dish {
	var out []dish
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) > 2 && strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			out = append(out, dish{name: line[1 : len(line)-1]})
			continue
		}
		if len(out) > 0 && strings.HasPrefix(line, "- Canteen:") {
			out[len(out)-1].canteen = strings.TrimSpace(strings.TrimPrefix(line, "- Canteen:"))
		}
	}
	return out
}

// chatReply answers the last user message with canned advice.
func chatReply(messages []canteenadvisor.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == canteenadvisor.RoleUser {
			return fmt.Sprintf("About %q: aim for lean protein, whole grains and vegetables at every meal.", messages[i].Content)
		}
	}
	return "I could not find dishes that fit your request."
}
