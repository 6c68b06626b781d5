// Package conversation owns the prompt context sent to the model, the
// persisted product selection and the turn lifecycle that ties them to the
// visible chat transcript.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"advisor-backend/internal/models"
	"advisor-backend/internal/repository"
)

// SystemPrompt fixes the assistant's persona and topic restriction.
const SystemPrompt = "You are a helpful beauty and skincare advisor for L'Oréal products. You ONLY respond to questions about skincare routines, beauty products, L'Oréal brands, makeup, haircare, and related beauty topics. If someone asks about anything else (politics, sports, general knowledge, etc.), politely decline and redirect the conversation back to beauty and skincare. Keep responses concise and helpful."

// SelectionListener is told about every change to the selection set.
type SelectionListener interface {
	SelectionChanged(products []models.Product)
}

// Store holds the conversation history and the selection set. History lives
// only in memory; the selection is written through to the slot on every
// mutation.
type Store struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex // orders selection signals by commit
	history   []models.Message
	selection []models.Product
	slot      repository.Slot
	listener  SelectionListener
}

func NewStore(slot repository.Slot, listener SelectionListener) *Store {
	return &Store{
		history:  []models.Message{{Role: models.RoleSystem, Content: SystemPrompt}},
		slot:     slot,
		listener: listener,
	}
}

func (s *Store) AppendMessage(role models.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid message role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, models.Message{Role: role, Content: content})
	return nil
}

func (s *Store) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.history...)
}

func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// ResetHistory drops every message after the system message. Callers that
// run turns go through Controller.ResetHistory.
func (s *Store) ResetHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:1:1]
}

// PromptWindow returns the system message followed by the longest run of
// most recent messages whose token count fits budget, starting on a user
// message. A budget <= 0 returns the whole history.
func (s *Store) PromptWindow(counter TokenCounter, budget int) []models.Message {
	history := s.History()
	if budget <= 0 || counter == nil {
		return history
	}

	used := counter.Count(history[0].Content)
	start := len(history)
	for i := len(history) - 1; i >= 1; i-- {
		n := counter.Count(history[i].Content)
		if used+n > budget && start < len(history) {
			break
		}
		used += n
		start = i
	}
	for start < len(history) && history[start].Role != models.RoleUser {
		start++
	}

	window := make([]models.Message, 0, 1+len(history)-start)
	window = append(window, history[0])
	return append(window, history[start:]...)
}

func (s *Store) Selection() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Product(nil), s.selection...)
}

func (s *Store) IsSelected(id models.ProductID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.selection, id) >= 0
}

// SelectProduct adds p unless an entry with an equal id exists.
func (s *Store) SelectProduct(ctx context.Context, p models.Product) (bool, error) {
	s.mu.Lock()
	if indexOf(s.selection, p.ID) >= 0 {
		s.mu.Unlock()
		return false, nil
	}
	next := append(append([]models.Product(nil), s.selection...), p)
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.unlockAndNotify(s.snapshotLocked())
	return true, nil
}

// DeselectProduct removes every entry whose id equals id.
func (s *Store) DeselectProduct(ctx context.Context, id models.ProductID) (bool, error) {
	s.mu.Lock()
	next := make([]models.Product, 0, len(s.selection))
	for _, p := range s.selection {
		if !p.ID.Equal(id) {
			next = append(next, p)
		}
	}
	removed := len(next) != len(s.selection)
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.unlockAndNotify(s.snapshotLocked())
	return removed, nil
}

func (s *Store) ClearSelection(ctx context.Context) error {
	s.mu.Lock()
	if err := s.commitLocked(ctx, []models.Product{}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.unlockAndNotify([]models.Product{})
	return nil
}

// LoadPersisted restores the selection from the slot. A missing or
// unreadable slot leaves an empty selection; errors are logged, not returned.
func (s *Store) LoadPersisted(ctx context.Context) {
	products := []models.Product{}

	data, ok, err := s.slot.Get(ctx)
	switch {
	case err != nil:
		log.Printf("Error loading saved products: %v", err)
	case ok:
		if err := json.Unmarshal(data, &products); err != nil {
			log.Printf("Error loading saved products: %v", err)
			products = []models.Product{}
		}
	}

	s.mu.Lock()
	s.selection = dedupe(products)
	s.unlockAndNotify(s.snapshotLocked())
}

// commitLocked writes next to the slot and only then replaces the in-memory
// set, so a failed write leaves both sides unchanged.
func (s *Store) commitLocked(ctx context.Context, next []models.Product) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := s.slot.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to persist selection: %w", err)
	}
	s.selection = next
	return nil
}

func (s *Store) snapshotLocked() []models.Product {
	return append([]models.Product{}, s.selection...)
}

// unlockAndNotify releases mu and signals the listener. The signal lock is
// taken before mu is released, so the last signal always carries the
// committed set.
func (s *Store) unlockAndNotify(products []models.Product) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if s.listener != nil {
		s.listener.SelectionChanged(products)
	}
}

func indexOf(products []models.Product, id models.ProductID) int {
	for i, p := range products {
		if p.ID.Equal(id) {
			return i
		}
	}
	return -1
}

func dedupe(products []models.Product) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if indexOf(out, p.ID) < 0 {
			out = append(out, p)
		}
	}
	return out
}
