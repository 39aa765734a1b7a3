// Package ollama implements generation and embeddings against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"canteenadvisor"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

// Client completes chat messages with Ollama's /api/chat endpoint.
type Client struct {
	endpoint   string
	model      string
	httpClient canteenadvisor.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   canteenadvisor.HTTPClient
	Temperature  float64
	TopP         float64
	MaxTokens    int
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.ModelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.TopP == 0 {
		opts.TopP = 0.9
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: 1.05,
			NumCtx:        8192,
			NumPredict:    opts.MaxTokens,
		},
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options,omitempty"`
}

type wireResponse struct {
	Message    wireMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason,omitempty"`
}

// Complete sends the messages in one non-streaming chat request.
func (c *Client) Complete(ctx context.Context, messages []canteenadvisor.Message) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(messages))

	reqBody := wireRequest{
		Model:    c.model,
		Messages: buildMessages(messages),
		Stream:   false,
		Options:  c.options,
	}

	var wr wireResponse
	if err := postJSON(ctx, c.httpClient, c.endpoint, reqBody, &wr); err != nil {
		return "", err
	}
	if wr.DoneReason == "length" {
		slog.Warn("LLM_CLIENT: Model stopped at token limit", "model", c.model)
	}
	if strings.TrimSpace(wr.Message.Content) == "" {
		return "", fmt.Errorf("model returned no content")
	}

	slog.Info("LLM_CLIENT: Ollama chat succeeded", "model", c.model, "text_len", len(wr.Message.Content))
	return wr.Message.Content, nil
}

// buildMessages keeps system, user and assistant roles and coerces anything else to user.
func buildMessages(messages []canteenadvisor.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case canteenadvisor.RoleSystem, canteenadvisor.RoleUser, canteenadvisor.RoleAssistant:
			out = append(out, wireMessage{Role: m.Role, Content: m.Content})
		default:
			slog.Warn("ollama: unknown role, coercing to user", "role", m.Role)
			out = append(out, wireMessage{Role: canteenadvisor.RoleUser, Content: m.Content})
		}
	}
	return out
}

func postJSON(ctx context.Context, client canteenadvisor.HTTPClient, endpoint string, in, out any) error {
	reqBytes, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LLM_CLIENT: %s: %s", resp.Status, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return nil
}
