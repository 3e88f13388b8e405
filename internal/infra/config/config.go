package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RedisAddr selects the shared cache backend; empty falls back to
	// the in-process cache.
	RedisAddr     string
	RedisPassword string
	CacheSize     int

	OllamaURL       string
	EmbeddingModel  string
	GenerationModel string
	RerankerURL     string
	RerankerModel   string
	TokenEncoding   string

	EnableOTel bool

	RAG RAGConfig
}

// RAGConfig holds the pipeline tuning parameters.
type RAGConfig struct {
	TopK                int
	MinSimilarity       float64
	OverfetchMultiplier int
	MinConfidence       float64
	CompressionBudget   int
	MaxAnswerTokens     int
	RerankingEnabled    bool
	CompressionEnabled  bool
	AnalysisEnabled     bool
	AnalysisCacheTTL    time.Duration
	RetrievalCacheTTL   time.Duration
	RerankCacheTTL      time.Duration
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "docvault-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "docvault_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "docvault_password"),
		DBName:     getEnv("DB_NAME", "docvault_db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getSecret("REDIS_PASSWORD", "REDIS_PASSWORD_FILE", ""),
		CacheSize:     getEnvInt("CACHE_SIZE", 1024),

		OllamaURL:       getEnv("OLLAMA_URL", "http://ollama:11434"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		GenerationModel: getEnv("GENERATION_MODEL", "gemma3"),
		RerankerURL:     getEnv("RERANKER_URL", ""),
		RerankerModel:   getEnv("RERANKER_MODEL", "bge-reranker-v2-m3"),
		TokenEncoding:   getEnv("TOKEN_ENCODING", "cl100k_base"),

		EnableOTel: getEnvBool("ENABLE_OTEL", false),

		RAG: RAGConfig{
			TopK:                getEnvInt("RAG_TOP_K", 5),
			MinSimilarity:       getEnvFloat("RAG_MIN_SIMILARITY", 0.7),
			OverfetchMultiplier: getEnvInt("RAG_OVERFETCH_MULTIPLIER", 3),
			MinConfidence:       getEnvFloat("RAG_EXPANSION_MIN_CONFIDENCE", 0.6),
			CompressionBudget:   getEnvInt("RAG_COMPRESSION_BUDGET", 1000),
			MaxAnswerTokens:     getEnvInt("RAG_MAX_ANSWER_TOKENS", 768),
			RerankingEnabled:    getEnvBool("RAG_RERANKING_ENABLED", true),
			CompressionEnabled:  getEnvBool("RAG_COMPRESSION_ENABLED", true),
			AnalysisEnabled:     getEnvBool("RAG_ANALYSIS_ENABLED", true),
			AnalysisCacheTTL:    getEnvDuration("RAG_ANALYSIS_CACHE_TTL", 30*time.Minute),
			RetrievalCacheTTL:   getEnvDuration("RAG_RETRIEVAL_CACHE_TTL", 10*time.Minute),
			RerankCacheTTL:      getEnvDuration("RAG_RERANK_CACHE_TTL", 10*time.Minute),
		},
	}
}

// DSN renders the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret reads envKey directly, then the file named by fileEnvKey,
// then the fallback.
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
