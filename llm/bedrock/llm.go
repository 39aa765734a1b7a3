// Package bedrock implements generation and embeddings on Amazon Bedrock.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"canteenadvisor"
)

const (
	// defaultModelID is the default model ID for Bedrock Claude.
	// It's an inference profile ID or ARN, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Enough for a 2-4 dish answer with analysis, reasoning and tips.
	defaultMaxTokens = 1000

	defaultTemperature = 0.7

	defaultTopP = 0.9
)

// ErrMaxTokens is returned when the token limit was hit before any text was produced.
var ErrMaxTokens = errors.New("model hit MaxTokens limit")

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LLMClient completes chat messages with the Bedrock Converse API.
type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Complete sends the messages in one Converse call and returns the answer text.
func (c *LLMClient) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(messages))

	sys, msgs := buildConversation(messages)
	if len(msgs) == 0 {
		return "", errors.New("no user messages to send")
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  &c.opts.ModelID,
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock Claude invoke failed", "error", err, "model_id", c.opts.ModelID)
		return "", err
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("LLM_CLIENT: Bedrock Claude invoke succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return "", fmt.Errorf("model response blocked by Bedrock safety filters")
	}

	text := textFromOutput(out)
	if strings.TrimSpace(text) == "" {
		if out.StopReason == types.StopReasonMaxTokens {
			slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MaxTokens")
			return "", ErrMaxTokens
		}
		return "", errors.New("model returned no text")
	}
	if out.StopReason == types.StopReasonMaxTokens {
		// the dish list comes first, so a truncated answer is still usable
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; returning partial text", "text_len", len(text))
	}
	slog.Info("LLM_CLIENT: Extracted final text", "text_len", len(text))
	return text, nil
}

// buildConversation moves system messages into system blocks and merges
// consecutive same-role messages, since Converse requires alternating turns.
func buildConversation(messages []canteenadvisor.Message) ([]types.SystemContentBlock, []types.Message) {
	var (
		sys  []types.SystemContentBlock
		msgs []types.Message
	)
	for _, m := range messages {
		if m.Role == canteenadvisor.RoleSystem {
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == canteenadvisor.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		block := &types.ContentBlockMemberText{Value: m.Content}

		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			continue
		}
		msgs = append(msgs, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}
	return sys, msgs
}

// textFromOutput joins all assistant text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}
