package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Completion
	CompletionProvider string
	CompletionTimeout  time.Duration
	RelayURL           string
	ModelName          string
	MaxTokens          int
	Temperature        float64
	APIKeyName         string
	HistoryTokenBudget int
	TokenizerEncoding  string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// OpenAI-compatible endpoint
	OpenAIBaseURL string
	OpenAIAPIKey  string

	// Catalog
	CatalogSource string

	// Selection slot
	SlotBackend  string
	SlotKey      string
	SlotFilePath string
	SQLitePath   string
	DatabaseURL  string
	RedisURL     string

	// Chat rate limit per client, requests per minute
	ChatRequestsPerMin int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		CompletionProvider:   getEnvOrDefault("COMPLETION_PROVIDER", "relay"),
		CompletionTimeout:    getEnvAsDurationOrDefault("COMPLETION_TIMEOUT", 60*time.Second),
		RelayURL:             getEnvOrDefault("RELAY_URL", "https://steep-band-6628.er2682.workers.dev"),
		ModelName:            getEnvOrDefault("MODEL_NAME", "mistral-medium-2505"),
		MaxTokens:            getEnvAsIntOrDefault("MAX_TOKENS", 500),
		Temperature:          getEnvAsFloatOrDefault("TEMPERATURE", 0.7),
		APIKeyName:           getEnvOrDefault("API_KEY_NAME", "Mistral_API_KEY"),
		HistoryTokenBudget:   getEnvAsIntOrDefault("HISTORY_TOKEN_BUDGET", 0),
		TokenizerEncoding:    getEnvOrDefault("TOKENIZER_ENCODING", "cl100k_base"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OpenAIBaseURL:        getEnvOrDefault("OPENAI_BASE_URL", "http://localhost:8080/v1"),
		CatalogSource:        getEnvOrDefault("CATALOG_SOURCE", "products.json"),
		SlotBackend:          getEnvOrDefault("SLOT_BACKEND", "file"),
		SlotKey:              getEnvOrDefault("SLOT_KEY", "lorealSelectedProducts"),
		SlotFilePath:         getEnvOrDefault("SLOT_FILE_PATH", "./data/selection.json"),
		SQLitePath:           getEnvOrDefault("SQLITE_PATH", "./data/advisor.db"),
		ChatRequestsPerMin:   getEnvAsIntOrDefault("CHAT_REQUESTS_PER_MINUTE", 20),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// Credentials are only required by the backends that use them.
	switch cfg.CompletionProvider {
	case "gemini":
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	case "openai":
		cfg.OpenAIAPIKey = getEnvOrDefault("OPENAI_API_KEY", "dummy")
	}
	switch cfg.SlotBackend {
	case "postgres":
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	case "redis":
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	}

	return cfg
}

// Validate rejects backend names the service cannot wire.
func (c *Config) Validate() error {
	switch c.CompletionProvider {
	case "relay", "gemini", "openai":
	default:
		return fmt.Errorf("unknown COMPLETION_PROVIDER %q", c.CompletionProvider)
	}
	switch c.SlotBackend {
	case "redis", "postgres", "sqlite", "file", "memory":
	default:
		return fmt.Errorf("unknown SLOT_BACKEND %q", c.SlotBackend)
	}
	if c.SlotKey == "" {
		return fmt.Errorf("SLOT_KEY must not be empty")
	}
	if c.ChatRequestsPerMin <= 0 {
		return fmt.Errorf("CHAT_REQUESTS_PER_MINUTE must be positive, got %d", c.ChatRequestsPerMin)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
