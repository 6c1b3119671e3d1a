package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/voxkey-labs/voxkey/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "state.db")}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetAbsentKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to be absent")
	}
}

func TestSetGetRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "transcribedText", "hello world"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := s.Get(ctx, "transcribedText")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "hello world" {
		t.Fatalf("expected stored value, got %q (present=%v)", value, ok)
	}

	if err := s.Remove(ctx, "transcribedText"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, ok, err = s.Get(ctx, "transcribedText")
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if ok {
		t.Fatal("expected key removed")
	}
}

func TestSetOverwritesLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "k", "second"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, _, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "second" {
		t.Fatalf("expected last write to win, got %q", value)
	}
}

func TestBoolHelpers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	running, err := s.GetBool(ctx, "app_running")
	if err != nil {
		t.Fatalf("get bool: %v", err)
	}
	if running {
		t.Fatal("absent bool should read false")
	}

	if err := s.SetBool(ctx, "app_running", true); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	running, err = s.GetBool(ctx, "app_running")
	if err != nil {
		t.Fatalf("get bool: %v", err)
	}
	if !running {
		t.Fatal("expected true after set")
	}

	if err := s.Set(ctx, "app_running", "not-a-bool"); err != nil {
		t.Fatalf("set: %v", err)
	}
	running, err = s.GetBool(ctx, "app_running")
	if err != nil {
		t.Fatalf("get bool: %v", err)
	}
	if running {
		t.Fatal("unparseable bool should read false")
	}
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := s.Remove(context.Background(), "never-set"); err != nil {
		t.Fatalf("remove absent key: %v", err)
	}
}
