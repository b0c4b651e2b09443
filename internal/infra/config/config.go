package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Embedding provider: "openai", "jina" or "none".
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	JinaAPIKey          string
	JinaBaseURL         string

	// Model router for all completion calls.
	ModelRouterURL   string
	GenerationModel  string
	UtilityModel     string
	GenerationTokens int

	// Retrieval tuning.
	TopK            int
	LexicalWeight   float64
	SemanticWeight  float64
	BM25K1          float64
	BM25B           float64
	Tier2Threshold  float64
	Tier3Threshold  float64
	CandidatePool   int
	AnswerCacheSize int

	// Context generation throttle, calls per minute. 0 disables the LLM
	// contextualizer entirely.
	ContextLLMRateLimit int

	WorkerPollIntervalMs int
	OTelEnabled          bool
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "rag-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "rag_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
		DBName:     getEnv("DB_NAME", "rag_db"),

		EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "none"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		OpenAIAPIKey:        getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		JinaAPIKey:          getSecret("JINA_API_KEY", "JINA_API_KEY_FILE", ""),
		JinaBaseURL:         getEnv("JINA_BASE_URL", "https://api.jina.ai/v1"),

		ModelRouterURL:   getEnvWithAlt("MODEL_ROUTER_URL", "LLM_ROUTER_URL", "http://model-router:8080"),
		GenerationModel:  getEnv("GENERATION_MODEL", "gpt-4o"),
		UtilityModel:     getEnv("UTILITY_MODEL", "gpt-4o-mini"),
		GenerationTokens: getEnvInt("GENERATION_MAX_TOKENS", 1024),

		TopK:            getEnvInt("RAG_TOP_K", 10),
		LexicalWeight:   getEnvFloat("RAG_LEXICAL_WEIGHT", 0.4),
		SemanticWeight:  getEnvFloat("RAG_SEMANTIC_WEIGHT", 0.6),
		BM25K1:          getEnvFloat("RAG_BM25_K1", 1.5),
		BM25B:           getEnvFloat("RAG_BM25_B", 0.75),
		Tier2Threshold:  getEnvFloat("RAG_TIER2_THRESHOLD", 0.70),
		Tier3Threshold:  getEnvFloat("RAG_TIER3_THRESHOLD", 0.70),
		CandidatePool:   getEnvInt("RAG_CANDIDATE_POOL", 2000),
		AnswerCacheSize: getEnvInt("RAG_ANSWER_CACHE_SIZE", 256),

		ContextLLMRateLimit: getEnvInt("CONTEXT_LLM_RATE_LIMIT", 50),

		WorkerPollIntervalMs: getEnvInt("WORKER_POLL_INTERVAL_MS", 100),
		OTelEnabled:          getEnvBool("OTEL_ENABLED", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
