package main

import (
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"advisor-backend/internal/bootstrap"
	"advisor-backend/internal/catalog"
	"advisor-backend/internal/config"
	"advisor-backend/internal/conversation"
	"advisor-backend/internal/tui"
)

func main() {
	// The terminal is owned by the UI; logs go to a file.
	logFile, err := tea.LogToFile("advisor-tui.log", "advisor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	slot, closeSlot, err := bootstrap.OpenSlot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeSlot()
	log.Printf("✓ Selection slot ready (%s)", cfg.SlotBackend)

	completer, closeCompleter, err := bootstrap.NewCompleter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeCompleter()
	log.Printf("✓ Completion client initialized (%s)", cfg.CompletionProvider)

	renderer := tui.NewProgramRenderer()
	store := conversation.NewStore(slot, renderer)
	controller := conversation.NewController(store, completer, renderer, bootstrap.ControllerOptions(cfg))

	m := tui.NewModel(catalog.NewSource(cfg.CatalogSource), store, controller)
	p := tea.NewProgram(m, tea.WithAltScreen())
	renderer.Attach(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
