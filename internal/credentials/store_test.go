package credentials

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), "sqlite", filepath.Join(t.TempDir(), "keys.db"))
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Set(ctx, "u1", "OpenAI", "sk-first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "u1", "openai", "sk-second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := s.Set(ctx, "u1", "google", "g-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	key, err := s.EffectiveAPIKey(ctx, "u1", "openai")
	if err != nil || key != "sk-second" {
		t.Errorf("Expected sk-second, got (%q, %v)", key, err)
	}
	key, err = s.EffectiveAPIKey(ctx, "u2", "openai")
	if err != nil || key != "" {
		t.Errorf("Expected no key for another user, got (%q, %v)", key, err)
	}

	list, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Category != "google" || list[1].Category != "openai" {
		t.Errorf("Unexpected list %+v", list)
	}
	if list[1].UpdatedAt.IsZero() {
		t.Error("Expected updated_at to be set")
	}

	if err := s.Delete(ctx, "u1", "openai"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", "openai"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLStore_RejectsEmpty(t *testing.T) {
	s := openTestStore(t)
	if err := s.Set(context.Background(), "u1", "openai", "  "); err == nil {
		t.Error("Expected empty key to be rejected")
	}
}

func TestOpenSQLStore_UnknownDriver(t *testing.T) {
	if _, err := OpenSQLStore(context.Background(), "mysql", "x"); err == nil {
		t.Error("Expected an error for an unsupported driver")
	}
}

func TestBindPostgres(t *testing.T) {
	s := &SQLStore{postgres: true}
	got := s.bind("SELECT a FROM t WHERE x = ? AND y = ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Errorf("Unexpected query %q", got)
	}
}
