package stats

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/voxkey-labs/voxkey/internal/config"
	"github.com/voxkey-labs/voxkey/internal/store"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := store.Open(context.Background(), config.StoreConfig{Path: filepath.Join(t.TempDir(), "state.db")}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewTracker(s)
}

func TestSnapshotStartsAtZero(t *testing.T) {
	tr := newTracker(t)
	c, err := tr.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if c.Recordings != 0 || c.Transcriptions != 0 || c.Characters != 0 {
		t.Fatalf("expected zero counters, got %+v", c)
	}
}

func TestCountersAccumulate(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tr.RecordingStarted(ctx); err != nil {
			t.Fatalf("recording started: %v", err)
		}
	}
	if err := tr.TranscriptionFinished(ctx, 11); err != nil {
		t.Fatalf("transcription finished: %v", err)
	}
	if err := tr.TranscriptionFinished(ctx, 7); err != nil {
		t.Fatalf("transcription finished: %v", err)
	}

	c, err := tr.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if c.Recordings != 3 {
		t.Fatalf("expected 3 recordings, got %d", c.Recordings)
	}
	if c.Transcriptions != 2 {
		t.Fatalf("expected 2 transcriptions, got %d", c.Transcriptions)
	}
	if c.Characters != 18 {
		t.Fatalf("expected 18 characters, got %d", c.Characters)
	}
}
