package stats

import (
	"context"
	"strconv"

	"github.com/voxkey-labs/voxkey/internal/store"
)

// Store keys for usage counters. Written by the daemon, read by the
// keyboard client for its stats display.
const (
	KeyRecordings     = "stats_recordings"
	KeyTranscriptions = "stats_transcriptions"
	KeyCharacters     = "stats_characters"
)

// Counters aggregates usage over the daemon's lifetime.
type Counters struct {
	Recordings     int64 `json:"recordings"`
	Transcriptions int64 `json:"transcriptions"`
	Characters     int64 `json:"characters"`
}

// Tracker persists usage counters in the shared store.
type Tracker struct {
	store *store.Store
}

func NewTracker(s *store.Store) *Tracker {
	return &Tracker{store: s}
}

// RecordingStarted counts one recording session.
func (t *Tracker) RecordingStarted(ctx context.Context) error {
	return t.add(ctx, KeyRecordings, 1)
}

// TranscriptionFinished counts one successful transcription and the number
// of characters it produced.
func (t *Tracker) TranscriptionFinished(ctx context.Context, chars int) error {
	if err := t.add(ctx, KeyTranscriptions, 1); err != nil {
		return err
	}
	return t.add(ctx, KeyCharacters, int64(chars))
}

// Snapshot reads all counters; absent counters read as zero.
func (t *Tracker) Snapshot(ctx context.Context) (Counters, error) {
	var c Counters
	var err error
	if c.Recordings, err = t.read(ctx, KeyRecordings); err != nil {
		return c, err
	}
	if c.Transcriptions, err = t.read(ctx, KeyTranscriptions); err != nil {
		return c, err
	}
	if c.Characters, err = t.read(ctx, KeyCharacters); err != nil {
		return c, err
	}
	return c, nil
}

func (t *Tracker) add(ctx context.Context, key string, delta int64) error {
	current, err := t.read(ctx, key)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, key, strconv.FormatInt(current+delta, 10))
}

func (t *Tracker) read(ctx context.Context, key string) (int64, error) {
	raw, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return value, nil
}
