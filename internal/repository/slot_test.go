package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"advisor-backend/internal/database"
)

func exerciseSlot(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := slot.Get(ctx); err != nil || ok {
		t.Fatalf("expected empty slot, got ok=%v err=%v", ok, err)
	}

	if err := slot.Set(ctx, []byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := slot.Set(ctx, []byte(`[]`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, ok, err := slot.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("expected stored value, got ok=%v err=%v", ok, err)
	}
	if string(got) != "[]" {
		t.Fatalf("expected last write to win, got %q", got)
	}
}

func TestMemorySlot(t *testing.T) {
	exerciseSlot(t, NewMemorySlot())
}

func TestFileSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "selection.json")
	exerciseSlot(t, NewFileSlot(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the slot file to remain, got %d entries", len(entries))
	}
}

func TestSQLiteSlot(t *testing.T) {
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "advisor.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	if err := database.RunSQLiteMigrations(db, database.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Applying twice is a no-op.
	if err := database.RunSQLiteMigrations(db, database.Migrations()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	exerciseSlot(t, NewSQLiteSlot(db, "lorealSelectedProducts"))
}

func TestMemorySlot_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	value := []byte("abc")
	slot.Set(ctx, value)
	value[0] = 'z'

	got, _, _ := slot.Get(ctx)
	if string(got) != "abc" {
		t.Fatalf("slot must not alias caller memory, got %q", got)
	}
}
