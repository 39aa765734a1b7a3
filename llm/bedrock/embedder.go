package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	defaultEmbeddingModelID = "amazon.titan-embed-text-v2:0"
	defaultDimensions       = 512
)

type invokeModelClient interface {
	InvokeModel(context.Context, *bedrockruntime.InvokeModelInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embedder produces Titan text embeddings, one InvokeModel call per text.
type Embedder struct {
	client     invokeModelClient
	modelID    string
	dimensions int
}

func NewEmbedder(client invokeModelClient, modelID string, dimensions int) *Embedder {
	if modelID == "" {
		modelID = defaultEmbeddingModelID
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &Embedder{client: client, modelID: modelID, dimensions: dimensions}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	tokens := 0
	for i, text := range texts {
		body, err := json.Marshal(titanRequest{InputText: text, Dimensions: e.dimensions, Normalize: true})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
		}

		resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(e.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}

		var tr titanResponse
		if err := json.Unmarshal(resp.Body, &tr); err != nil {
			return nil, fmt.Errorf("failed to decode embedding response: %w", err)
		}
		if len(tr.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for text %d", i)
		}
		tokens += tr.InputTextTokenCount
		out = append(out, tr.Embedding)
	}
	slog.Debug("LLM_CLIENT: Titan embeddings created", "texts", len(texts), "input_tokens", tokens)
	return out, nil
}
