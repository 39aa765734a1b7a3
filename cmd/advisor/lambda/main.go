package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"canteenadvisor"
	"canteenadvisor/advisor"
	"canteenadvisor/catalog"
	"canteenadvisor/llm"
	"canteenadvisor/llm/bedrock"
	"canteenadvisor/retrieval"
	"canteenadvisor/tools"
)

type Params struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

type Results struct {
	Output map[string]any `json:"output"`
}

func main() {
	var (
		once     sync.Once
		registry *tools.Registry
		setupErr error
	)

	fn := func(ctx context.Context, params Params) (Results, error) {
		// the catalog index is built once per execution environment
		once.Do(func() { registry, setupErr = setup(ctx) })
		if setupErr != nil {
			return Results{}, setupErr
		}

		if params.Tool == "" {
			params.Tool = "meal_recommend"
		}
		output, err := registry.Run(ctx, tools.Call{Name: params.Tool, Input: params.Input})
		if err != nil {
			slog.Error("RESULT: Error handling tool call", "tool", params.Tool, "error", err)
			return Results{}, err
		}
		return Results{Output: output}, nil
	}

	lambda.Start(fn)
}

func setup(ctx context.Context) (*tools.Registry, error) {
	var modelConfig canteenadvisor.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		return nil, fmt.Errorf("failed to decode model config: %w", err)
	}
	var embeddingConfig canteenadvisor.EmbeddingConfig
	if err := envdecode.Decode(&embeddingConfig); err != nil {
		return nil, fmt.Errorf("failed to decode embedding config: %w", err)
	}
	var advisorConfig canteenadvisor.AdvisorConfig
	if err := envdecode.Decode(&advisorConfig); err != nil {
		return nil, fmt.Errorf("failed to decode advisor config: %w", err)
	}
	var breakerConfig canteenadvisor.BreakerConfig
	if err := envdecode.Decode(&breakerConfig); err != nil {
		return nil, fmt.Errorf("failed to decode breaker config: %w", err)
	}

	if advisorConfig.CatalogS3Bucket == "" || advisorConfig.CatalogS3Key == "" {
		return nil, fmt.Errorf("missing S3 config: ADVISOR_CATALOG_S3_BUCKET and ADVISOR_CATALOG_S3_KEY must be set")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	items, err := catalog.Load(ctx, catalog.NewS3State(s3.NewFromConfig(awsCfg), advisorConfig.CatalogS3Bucket, advisorConfig.CatalogS3Key))
	if err != nil {
		slog.Error("SETUP: Failed to load catalog from S3", "error", err)
		return nil, err
	}

	brc := bedrockruntime.NewFromConfig(awsCfg)

	var embedder retrieval.Embedder = retrieval.NewHashEmbedder(embeddingConfig.Dimensions)
	if embeddingConfig.Provider == "bedrock" {
		embedder = bedrock.NewEmbedder(brc, embeddingConfig.ModelID, embeddingConfig.Dimensions)
	}
	index := retrieval.NewIndex(embedder)
	if err := index.Build(ctx, items); err != nil {
		slog.Error("SETUP: Failed to build catalog index", "error", err)
		return nil, err
	}
	retriever := retrieval.NewRetriever(index)

	completer := bedrock.NewLLMClient(brc, bedrock.LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	chatCompleter := bedrock.NewLLMClient(brc, bedrock.LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   advisorConfig.ChatMaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	adv, err := advisor.NewAdvisor(advisor.Deps{
		Retriever:      retriever,
		Generator:      llm.NewBreakerCompleter("bedrock", completer, breakerConfig),
		Logger:         canteenadvisor.NewStdoutStageLogger(),
		CandidateCount: advisorConfig.CandidateCount,
		FallbackCount:  advisorConfig.FallbackCount,
	})
	if err != nil {
		return nil, err
	}

	// history lives on local disk, which Lambda does not keep between
	// invocations, so user_id and meal_log are not offered here
	registry, err := tools.NewRegistry(
		tools.NewMealRecommend(adv, nil, false),
		tools.NewCatalogSearch(retriever),
		tools.NewNutritionChat(llm.NewBreakerCompleter("bedrock-chat", chatCompleter, breakerConfig)),
	)
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return nil, err
	}
	slog.Info("SETUP: Catalog index and tools initialized", "items", index.Len())
	return registry, nil
}
