// Package bootstrap builds the configured backends shared by the server and
// the terminal front end.
package bootstrap

import (
	"fmt"
	"log"

	"advisor-backend/internal/config"
	"advisor-backend/internal/conversation"
	"advisor-backend/internal/database"
	"advisor-backend/internal/repository"
	"advisor-backend/internal/services"
)

// OpenSlot connects the selection slot named by SLOT_BACKEND. The returned
// close func releases the connection.
func OpenSlot(cfg *config.Config) (repository.Slot, func(), error) {
	switch cfg.SlotBackend {
	case "redis":
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return repository.NewRedisSlot(client, cfg.SlotKey), func() { client.Close() }, nil

	case "postgres":
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		if err := database.RunMigrations(pool, database.Migrations()); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
		return repository.NewPostgresSlot(pool, cfg.SlotKey), pool.Close, nil

	case "sqlite":
		db, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		if err := database.RunSQLiteMigrations(db, database.Migrations()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
		return repository.NewSQLiteSlot(db, cfg.SlotKey), func() { db.Close() }, nil

	case "memory":
		return repository.NewMemorySlot(), func() {}, nil

	case "file":
		return repository.NewFileSlot(cfg.SlotFilePath), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown slot backend %q", cfg.SlotBackend)
}

// NewCompleter builds the completion backend named by COMPLETION_PROVIDER.
func NewCompleter(cfg *config.Config) (services.Completer, func(), error) {
	params := services.CompletionParams{
		Model:       cfg.ModelName,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}

	switch cfg.CompletionProvider {
	case "relay":
		return services.NewRelayClient(cfg.RelayURL, cfg.APIKeyName, params, cfg.CompletionTimeout), func() {}, nil

	case "gemini":
		gemini, err := services.NewGeminiCompleter(cfg.GeminiAPIKey, cfg.GeminiModel, params, cfg.GeminiConcurrentReqs)
		if err != nil {
			return nil, nil, err
		}
		return gemini, gemini.Close, nil

	case "openai":
		return services.NewOpenAICompleter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, params), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown completion provider %q", cfg.CompletionProvider)
}

// ControllerOptions applies the timeout and prompt window settings. The
// tokenizer is only loaded when a budget is set; a missing encoding falls
// back to word counts.
func ControllerOptions(cfg *config.Config) conversation.ControllerOptions {
	opts := conversation.ControllerOptions{
		Timeout:     cfg.CompletionTimeout,
		TokenBudget: cfg.HistoryTokenBudget,
	}
	if cfg.HistoryTokenBudget <= 0 {
		return opts
	}

	counter, err := conversation.NewTiktokenCounter(cfg.TokenizerEncoding)
	if err != nil {
		log.Printf("✗ Tokenizer unavailable, counting words instead: %v", err)
		opts.Counter = conversation.WordCounter{}
		return opts
	}
	opts.Counter = counter
	return opts
}
