package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"canteenadvisor"
)

// Embedder calls Ollama's /api/embed endpoint with all texts in one request.
type Embedder struct {
	endpoint   string
	model      string
	httpClient canteenadvisor.HTTPClient
}

func NewEmbedder(baseEndpoint, model string, httpClient canteenadvisor.HTTPClient) *Embedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Embedder{
		endpoint:   strings.TrimRight(baseEndpoint, "/") + "/api/embed",
		model:      model,
		httpClient: httpClient,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var er embedResponse
	if err := postJSON(ctx, e.httpClient, e.endpoint, embedRequest{Model: e.model, Input: texts}, &er); err != nil {
		return nil, err
	}
	if len(er.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(er.Embeddings), len(texts))
	}
	return er.Embeddings, nil
}
