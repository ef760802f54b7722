package tokencache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_SqliteBackedGetSetForget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, ok, err := s.Get(ctx, "k1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "k1", "tok-a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	tok, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok || tok != "tok-a" {
		t.Fatalf("got tok=%q ok=%v err=%v", tok, ok, err)
	}

	if err := s.Set(ctx, "k1", "tok-b"); err != nil {
		t.Fatalf("update: %v", err)
	}
	tok, ok, err = s.Get(ctx, "k1")
	if err != nil || !ok || tok != "tok-b" {
		t.Fatalf("expected updated token, got tok=%q ok=%v err=%v", tok, ok, err)
	}

	if err := s.Forget(ctx, "k1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok, err := s.Get(ctx, "k1"); err != nil || ok {
		t.Fatalf("expected miss after forget, got ok=%v err=%v", ok, err)
	}
}

func TestStore_MemoryFallbackWhenPathUnusable(t *testing.T) {
	// A directory that cannot be created (parent is itself a file) forces the
	// memory-only fallback path.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	s, _ := Open(filepath.Join(blocker, "nested", "tokens.db"))

	ctx := context.Background()
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set on fallback store: %v", err)
	}
	tok, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || tok != "v" {
		t.Fatalf("fallback store did not round-trip: tok=%q ok=%v err=%v", tok, ok, err)
	}
}
