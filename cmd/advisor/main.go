package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"canteenadvisor"
	"canteenadvisor/advisor"
	"canteenadvisor/catalog"
	"canteenadvisor/history"
	"canteenadvisor/llm"
	"canteenadvisor/llm/bedrock"
	"canteenadvisor/llm/mock"
	"canteenadvisor/llm/ollama"
	"canteenadvisor/retrieval"
	"canteenadvisor/slack"
	"canteenadvisor/tools"
)

func main() {
	slot := flag.String("slot", "lunch", "meal slot: breakfast, lunch or dinner")
	goal := flag.String("goal", "", "fitness goal: reduce-fat, build-muscle, maintain or balanced-diet")
	calories := flag.Int("calories", 0, "daily calorie target")
	restrictions := flag.String("restrictions", "", "comma-separated dietary restrictions")
	allergies := flag.String("allergies", "", "comma-separated allergens")
	dislikes := flag.String("dislikes", "", "comma-separated disliked foods")
	canteens := flag.String("canteens", "", "comma-separated preferred canteens")
	extra := flag.String("extra", "", "free-text extra requirement")
	user := flag.String("user", "", "user id for meal history")
	chat := flag.String("chat", "", "ask the nutrition advisor a free-form question instead of recommending")
	logFood := flag.String("log", "", "catalog dish id to log as eaten by -user at -slot instead of recommending")
	rating := flag.Int("rating", 0, "1-5 rating for -log")
	notes := flag.String("notes", "", "notes for -log")
	dump := flag.Bool("dump", false, "dump the full result")
	flag.Parse()

	ctx := context.Background()

	var modelConfig canteenadvisor.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var embeddingConfig canteenadvisor.EmbeddingConfig
	if err := envdecode.Decode(&embeddingConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var advisorConfig canteenadvisor.AdvisorConfig
	if err := envdecode.Decode(&advisorConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var breakerConfig canteenadvisor.BreakerConfig
	if err := envdecode.Decode(&breakerConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	intent := canteenadvisor.UserIntent{
		MealSlot:            canteenadvisor.MealSlot(*slot),
		Goal:                canteenadvisor.FitnessGoal(*goal),
		DailyCaloriesTarget: *calories,
		DietaryRestrictions: splitList(*restrictions),
		Allergies:           splitList(*allergies),
		DislikedFoods:       splitList(*dislikes),
		PreferredCanteens:   splitList(*canteens),
		ExtraRequirement:    *extra,
	}
	if err := intent.Validate(); err != nil {
		slog.Error("SETUP: Invalid request", "error", err)
		os.Exit(2)
	}

	tracerProvider, meterProvider, otelShutdown, err := canteenadvisor.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	var awsCfg *aws.Config
	if needsAWS(modelConfig, embeddingConfig, advisorConfig) {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			slog.Error("SETUP: Failed to load AWS config", "error", err)
			return
		}
		awsCfg = &cfg
	}

	items, err := catalog.Load(ctx, catalogState(advisorConfig, awsCfg))
	if err != nil {
		slog.Error("SETUP: Failed to load catalog", "error", err)
		return
	}

	embedder, err := newEmbedder(embeddingConfig, advisorConfig, awsCfg)
	if err != nil {
		slog.Error("SETUP: Failed to create embedder", "error", err)
		return
	}
	index := retrieval.NewIndex(embedder)
	if err := index.Build(ctx, items); err != nil {
		slog.Error("SETUP: Failed to build catalog index", "error", err)
		return
	}

	completer, err := newCompleter(modelConfig, advisorConfig, awsCfg)
	if err != nil {
		slog.Error("SETUP: Failed to create LLM client", "error", err)
		return
	}
	generator := llm.NewBreakerCompleter(modelConfig.Provider, completer, breakerConfig)

	chatModelConfig := modelConfig
	chatModelConfig.MaxTokens = advisorConfig.ChatMaxTokens
	chatCompleter, err := newCompleter(chatModelConfig, advisorConfig, awsCfg)
	if err != nil {
		slog.Error("SETUP: Failed to create chat LLM client", "error", err)
		return
	}

	logger, cleanup, err := newStageLogger(modelConfig.Provider + "_" + modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create stage logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush stage log", "error", err)
		}
	}()

	adv, err := advisor.NewInstrumentedAdvisor(advisor.Deps{
		Retriever:      retrieval.NewRetriever(index),
		Generator:      generator,
		Logger:         logger,
		CandidateCount: advisorConfig.CandidateCount,
		FallbackCount:  advisorConfig.FallbackCount,
	}, tracerProvider.Tracer(canteenadvisor.TracerNameAdvisor), meterProvider.Meter(canteenadvisor.MeterNameAdvisor))
	if err != nil {
		slog.Error("SETUP: Failed to create advisor", "error", err)
		return
	}

	var store *history.SQLiteStore
	if *user != "" {
		store, err = history.NewSQLiteStore(advisorConfig.HistoryDBPath)
		if err != nil {
			slog.Error("SETUP: Failed to open history store", "error", err)
			return
		}
		defer store.Close()
	}

	registry, err := newRegistry(adv, index, items, store, advisorConfig.RecordSelections,
		llm.NewBreakerCompleter(modelConfig.Provider+"-chat", chatCompleter, breakerConfig))
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return
	}

	tracer := tracerProvider.Tracer(canteenadvisor.TracerNameAdvisor)
	ctx, span := tracer.Start(ctx, "cli", trace.WithAttributes(
		attribute.String("model.provider", modelConfig.Provider),
		attribute.String("model.id", modelConfig.ModelID),
		attribute.String("embedding.provider", embeddingConfig.Provider),
		attribute.Int("catalog.items", index.Len()),
	))
	defer span.End()

	switch {
	case *chat != "":
		runTool(ctx, registry, "nutrition_chat", map[string]any{"message": *chat}, *dump)
		return
	case *logFood != "" && *user == "":
		slog.Error("SETUP: -log requires -user")
		return
	case *logFood != "":
		input := map[string]any{"user_id": *user, "food_id": *logFood, "meal_slot": *slot, "notes": *notes}
		if *rating > 0 {
			input["rating"] = *rating
		}
		runTool(ctx, registry, "meal_log", input, *dump)
		return
	}

	input, err := toolInput(intent, *user)
	if err != nil {
		slog.Error("SETUP: Failed to encode request", "error", err)
		return
	}
	out, err := registry.Run(ctx, tools.Call{Name: "meal_recommend", Input: input})
	if err != nil {
		slog.Error("RESULT: Error handling request", "error", err)
		return
	}
	var res canteenadvisor.RecommendationResult
	if err := decodeOutput(out, &res); err != nil {
		slog.Error("RESULT: Failed to decode recommendation", "error", err)
		return
	}

	fmt.Println(slack.FormatRecommendation(intent, res))
	if *dump {
		canteenadvisor.Dump(res)
	}

	webhookURL := advisorConfig.SlackWebhookURL
	if webhookURL == "" {
		testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := new(bytes.Buffer)
			body.ReadFrom(r.Body) // nolint: errcheck
			slog.Info("FINAL: Received request",
				"method", r.Method,
				"path", r.URL.Path,
				"body", body.String(),
			)
			w.WriteHeader(http.StatusOK)
		}))
		defer testServer.Close()
		webhookURL = testServer.URL
	}

	slackClient := slack.NewClient(webhookURL, http.DefaultClient)
	if err := slack.PostRecommendation(ctx, slackClient, advisorConfig.SlackChannel, intent, res); err != nil {
		slog.Error("Failed to post result to Slack", "error", err)
	}
}

func newRegistry(
	adv canteenadvisor.Recommender,
	index *retrieval.Index,
	items []canteenadvisor.FoodItem,
	store *history.SQLiteStore,
	recordSelections bool,
	chat canteenadvisor.Completer,
) (*tools.Registry, error) {
	all := []tools.Tool{
		tools.NewCatalogSearch(retrieval.NewRetriever(index)),
		tools.NewNutritionChat(chat),
	}
	if store != nil {
		all = append(all,
			tools.NewMealRecommend(adv, store, recordSelections),
			tools.NewMealLog(catalog.NewDishes(items), store),
		)
	} else {
		all = append(all, tools.NewMealRecommend(adv, nil, false))
	}
	return tools.NewRegistry(all...)
}

func runTool(ctx context.Context, registry *tools.Registry, name string, input map[string]any, dump bool) {
	out, err := registry.Run(ctx, tools.Call{Name: name, Input: input})
	if err != nil {
		slog.Error("RESULT: Error handling request", "tool", name, "error", err)
		return
	}
	if dump {
		canteenadvisor.Dump(out)
		return
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		slog.Error("RESULT: Failed to encode output", "error", err)
		return
	}
	fmt.Println(string(data))
}

func toolInput(intent canteenadvisor.UserIntent, user string) (map[string]any, error) {
	data, err := json.Marshal(intent)
	if err != nil {
		return nil, err
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	if user != "" {
		input["user_id"] = user
	}
	return input, nil
}

func decodeOutput(out map[string]any, v any) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func needsAWS(m canteenadvisor.ModelConfig, e canteenadvisor.EmbeddingConfig, a canteenadvisor.AdvisorConfig) bool {
	return m.Provider == "bedrock" || e.Provider == "bedrock" || a.CatalogS3Bucket != ""
}

func catalogState(cfg canteenadvisor.AdvisorConfig, awsCfg *aws.Config) catalog.State {
	if cfg.CatalogS3Bucket != "" && awsCfg != nil {
		return catalog.NewS3State(s3.NewFromConfig(*awsCfg), cfg.CatalogS3Bucket, cfg.CatalogS3Key)
	}
	return catalog.NewFileState(cfg.CatalogPath)
}

func newEmbedder(cfg canteenadvisor.EmbeddingConfig, a canteenadvisor.AdvisorConfig, awsCfg *aws.Config) (retrieval.Embedder, error) {
	switch cfg.Provider {
	case "hash", "":
		return retrieval.NewHashEmbedder(cfg.Dimensions), nil
	case "bedrock":
		return bedrock.NewEmbedder(bedrockruntime.NewFromConfig(*awsCfg), cfg.ModelID, cfg.Dimensions), nil
	case "ollama":
		return ollama.NewEmbedder(a.BaseOllamaEndpoint, cfg.ModelID, http.DefaultClient), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newCompleter(cfg canteenadvisor.ModelConfig, a canteenadvisor.AdvisorConfig, awsCfg *aws.Config) (canteenadvisor.Completer, error) {
	switch cfg.Provider {
	case "bedrock":
		return bedrock.NewLLMClient(bedrockruntime.NewFromConfig(*awsCfg), bedrock.LLMOptions{
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		}), nil
	case "ollama":
		return ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: a.BaseOllamaEndpoint,
			ModelID:      cfg.ModelID,
			HTTPClient:   http.DefaultClient,
			Temperature:  float64(cfg.Temperature),
			TopP:         float64(cfg.TopP),
			MaxTokens:    int(cfg.MaxTokens),
		})
	case "mock":
		return mock.NewLLMClient(0), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func newStageLogger(model string) (*canteenadvisor.FileStageLogger, func() error, error) {
	logFilePath := canteenadvisor.NewStageLogFilePath(model)
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := canteenadvisor.NewFileStageLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
