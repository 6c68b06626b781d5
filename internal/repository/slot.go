package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Slot is a single named key in a durable key-value store. The selection
// set is written to it as one text blob on every mutation.
type Slot interface {
	// Get returns the stored value; ok is false when the key was never written.
	Get(ctx context.Context) (value []byte, ok bool, err error)
	Set(ctx context.Context, value []byte) error
}

// MemorySlot keeps the value in process memory.
type MemorySlot struct {
	mu    sync.Mutex
	value []byte
	set   bool
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Get(ctx context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return nil, false, nil
	}
	return append([]byte(nil), s.value...), true, nil
}

func (s *MemorySlot) Set(ctx context.Context, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = append([]byte(nil), value...)
	s.set = true
	return nil
}

// FileSlot stores the value in a file; the key is implied by the path.
type FileSlot struct {
	mu   sync.Mutex
	path string
}

func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (s *FileSlot) Get(ctx context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read slot file: %w", err)
	}
	return data, true, nil
}

func (s *FileSlot) Set(ctx context.Context, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create slot directory: %w", err)
	}

	// Write to a sibling temp file and rename so readers never see a torn value.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write slot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close slot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace slot file: %w", err)
	}
	return nil
}
