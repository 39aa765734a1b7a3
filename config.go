package canteenadvisor

import "time"

type ModelConfig struct {
	Provider    string  `env:"LLM_PROVIDER,default=bedrock"`
	ModelID     string  `env:"MODEL_ID"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1000"`
	Temperature float32 `env:"TEMPERATURE,default=0.7"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type EmbeddingConfig struct {
	Provider   string `env:"EMBEDDING_PROVIDER,default=hash"`
	ModelID    string `env:"EMBEDDING_MODEL_ID"`
	Dimensions int    `env:"EMBEDDING_DIMENSIONS,default=256"`
}

type AdvisorConfig struct {
	CatalogPath        string `env:"ADVISOR_CATALOG_PATH,default=artifacts/menu.json"`
	CatalogS3Bucket    string `env:"ADVISOR_CATALOG_S3_BUCKET"`
	CatalogS3Key       string `env:"ADVISOR_CATALOG_S3_KEY"`
	HistoryDBPath      string `env:"ADVISOR_HISTORY_DB,default=artifacts/history.db"`
	RecordSelections   bool   `env:"ADVISOR_RECORD_SELECTIONS,default=false"`
	ChatMaxTokens      int32  `env:"ADVISOR_CHAT_MAX_TOKENS,default=500"`
	CandidateCount     int    `env:"ADVISOR_CANDIDATE_COUNT,default=20"`
	FallbackCount      int    `env:"ADVISOR_FALLBACK_COUNT,default=3"`
	BaseOllamaEndpoint string `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	SlackWebhookURL    string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel       string `env:"SLACK_CHANNEL,default=#canteen"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `env:"LLM_BREAKER_FAILURES,default=5"`
	Timeout          time.Duration `env:"LLM_BREAKER_TIMEOUT,default=30s"`
	HalfOpenRequests uint32        `env:"LLM_BREAKER_HALF_OPEN_REQUESTS,default=1"`
}
