package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advisor-backend/internal/bootstrap"
	"advisor-backend/internal/catalog"
	"advisor-backend/internal/config"
	"advisor-backend/internal/conversation"
	"advisor-backend/internal/handlers"
	"advisor-backend/internal/middleware"
	"advisor-backend/internal/router"
	"advisor-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Beauty Advisor Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Open Selection Slot ────
	slot, closeSlot, err := bootstrap.OpenSlot(cfg)
	if err != nil {
		log.Fatalf("✗ Selection slot unavailable: %v", err)
	}
	defer closeSlot()
	log.Printf("✓ Selection slot ready (%s, key %s)", cfg.SlotBackend, cfg.SlotKey)

	// ──── Step 3: Initialize Completion Backend ────
	completer, closeCompleter, err := bootstrap.NewCompleter(cfg)
	if err != nil {
		log.Fatalf("✗ Completion client initialization failed: %v", err)
	}
	defer closeCompleter()
	log.Printf("✓ Completion client initialized (%s, model %s)", cfg.CompletionProvider, cfg.ModelName)

	// ──── Step 4: Restore Conversation State ────
	wsHub := websocket.NewHub()
	transcript := conversation.NewTranscript()
	renderer := conversation.Fanout{transcript, wsHub}

	store := conversation.NewStore(slot, renderer)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	store.LoadPersisted(loadCtx)
	cancelLoad()
	log.Printf("✓ Selection restored (%d products)", len(store.Selection()))

	controller := conversation.NewController(store, completer, renderer, bootstrap.ControllerOptions(cfg))

	// ──── Initialize Handlers ────
	source := catalog.NewSource(cfg.CatalogSource)
	catalogHandler := handlers.NewCatalogHandler(source, store)
	selectionHandler := handlers.NewSelectionHandler(source, store)
	chatHandler := handlers.NewChatHandler(controller, store, transcript)

	chatLimiter := middleware.NewRateLimiter(cfg.ChatRequestsPerMin, time.Minute)
	defer chatLimiter.Stop()

	// ──── Step 5: Start HTTP Server ────
	r := router.New(
		catalogHandler,
		selectionHandler,
		chatHandler,
		wsHub,
		chatLimiter,
		cfg.FrontendURL,
		cfg.CompletionTimeout,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: router.RequestTimeout(cfg.CompletionTimeout),
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Beauty Advisor ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
