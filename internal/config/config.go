package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultChatModel     = "gpt-4o-mini"
	defaultEmbedModel    = "text-embedding-3-large"
	defaultTopK          = 6
	defaultSnippetChars  = 700
	defaultTimeoutSecs   = 60
	defaultPort          = 8080
	defaultFeedbackHours = 72
)

type Config struct {
	Host            string
	Port            int
	StaticDir       string
	CORSOrigins     []string
	RateLimitWindow time.Duration
	AI              AIConfig
	Vector          VectorConfig
	RAG             RAGConfig
	Feedback        FeedbackConfig
	Log             LogConfig
}

type AIConfig struct {
	Provider   string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
}

type VectorConfig struct {
	Backend  string
	Qdrant   QdrantConfig
	PGVector PGVectorConfig
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type PGVectorConfig struct {
	DSN   string
	Table string
}

type RAGConfig struct {
	TopK         int
	SnippetChars int
}

type FeedbackConfig struct {
	KeepHours int
}

type LogConfig struct {
	File      string
	Level     string
	FileCount int
	FileSize  int
	KeepDays  int
	Console   bool
}

// ProviderArgs returns the provider factory arguments for the active
// chat/embedding provider.
func (c AIConfig) ProviderArgs() interface{} {
	switch c.Provider {
	case "gemini":
		return map[string]interface{}{
			"api_key": c.Gemini.APIKey,
		}
	default:
		return map[string]interface{}{
			"api_key":  c.OpenAI.APIKey,
			"base_url": c.OpenAI.BaseURL,
		}
	}
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnvAsInt("PORT", defaultPort),
		StaticDir:       os.Getenv("STATIC_DIR"),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
		RateLimitWindow: time.Duration(getEnvAsInt("RATE_LIMIT_MS", 0)) * time.Millisecond,
		AI: AIConfig{
			Provider:   strings.ToLower(getEnv("AI_PROVIDER", "openai")),
			ChatModel:  getEnv("OPENAI_CHAT_MODEL", defaultChatModel),
			EmbedModel: getEnv("EMBED_MODEL", defaultEmbedModel),
			Timeout:    time.Duration(getEnvAsInt("AI_TIMEOUT_SECONDS", defaultTimeoutSecs)) * time.Second,
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: getEnv("OPENAI_BASE_URL", defaultOpenAIBaseURL),
			},
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
			},
		},
		Vector: VectorConfig{
			Backend: strings.ToLower(getEnv("VECTOR_BACKEND", "qdrant")),
			Qdrant: QdrantConfig{
				URL:        os.Getenv("QDRANT_URL"),
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				Collection: os.Getenv("QDRANT_COLLECTION"),
			},
			PGVector: PGVectorConfig{
				DSN:   os.Getenv("PG_DSN"),
				Table: getEnv("PG_CHUNK_TABLE", "doc_chunks"),
			},
		},
		RAG: RAGConfig{
			TopK:         getEnvAsInt("RAG_TOP_K", defaultTopK),
			SnippetChars: getEnvAsInt("RAG_SNIPPET_CHARS", defaultSnippetChars),
		},
		Feedback: FeedbackConfig{
			KeepHours: getEnvAsInt("FEEDBACK_KEEP_HOURS", defaultFeedbackHours),
		},
		Log: LogConfig{
			File:      os.Getenv("LOG_FILE"),
			Level:     getEnv("LOG_LEVEL", "info"),
			FileCount: getEnvAsInt("LOG_FILE_COUNT", 5),
			FileSize:  getEnvAsInt("LOG_FILE_SIZE_MB", 50),
			KeepDays:  getEnvAsInt("LOG_KEEP_DAYS", 7),
			Console:   getEnvAsBool("LOG_CONSOLE", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be openai or gemini")
	}
	switch c.Vector.Backend {
	case "qdrant":
		if c.Vector.Qdrant.URL == "" {
			return fmt.Errorf("QDRANT_URL is required")
		}
		if c.Vector.Qdrant.Collection == "" {
			return fmt.Errorf("QDRANT_COLLECTION is required")
		}
	case "pgvector":
		if c.Vector.PGVector.DSN == "" {
			return fmt.Errorf("PG_DSN is required")
		}
	default:
		return fmt.Errorf("VECTOR_BACKEND must be qdrant or pgvector")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid tcp port")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("RAG_TOP_K must be positive")
	}
	if c.RAG.SnippetChars <= 0 {
		return fmt.Errorf("RAG_SNIPPET_CHARS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
