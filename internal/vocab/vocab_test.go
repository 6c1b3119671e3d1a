package vocab

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/voxkey-labs/voxkey/internal/config"
	"github.com/voxkey-labs/voxkey/internal/protocol"
	"github.com/voxkey-labs/voxkey/internal/store"
)

func newManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "state.db")}
	s, err := store.Open(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewManager(s), s
}

func TestAddTrimsAndPersists(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if err := m.Add(ctx, "  Acme  "); err != nil {
		t.Fatalf("add: %v", err)
	}
	terms, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{"Acme"}) {
		t.Fatalf("expected [Acme], got %v", terms)
	}
}

func TestAddRejectsEmptyAndDuplicate(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if err := m.Add(ctx, "   "); err != nil {
		t.Fatalf("add blank: %v", err)
	}
	if err := m.Add(ctx, "Acme"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(ctx, "Acme"); err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	// Case-sensitive exact match: a different casing is a new term.
	if err := m.Add(ctx, "acme"); err != nil {
		t.Fatalf("add lowercase: %v", err)
	}

	terms, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{"Acme", "acme"}) {
		t.Fatalf("expected [Acme acme], got %v", terms)
	}
}

func TestRemoveByIndex(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	for _, w := range []string{"Acme", "Globex", "Initech"} {
		if err := m.Add(ctx, w); err != nil {
			t.Fatalf("add %s: %v", w, err)
		}
	}
	if err := m.Remove(ctx, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	terms, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{"Acme", "Initech"}) {
		t.Fatalf("expected [Acme Initech], got %v", terms)
	}
}

func TestRemoveOutOfRangeIsNoop(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if err := m.Add(ctx, "Acme"); err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, idx := range []int{-1, 1, 99} {
		if err := m.Remove(ctx, idx); err != nil {
			t.Fatalf("remove %d: %v", idx, err)
		}
	}
	terms, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{"Acme"}) {
		t.Fatalf("expected list unchanged, got %v", terms)
	}
}

func TestListFiltersBlankEntries(t *testing.T) {
	m, s := newManager(t)
	ctx := context.Background()

	// A blank entry written by an older client must be filtered on read.
	if err := s.Set(ctx, protocol.KeyCustomVocabulary, `["Acme","  ","Globex"]`); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	terms, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(terms, []string{"Acme", "Globex"}) {
		t.Fatalf("expected blanks filtered, got %v", terms)
	}
}

func TestPromptSentence(t *testing.T) {
	cases := []struct {
		name  string
		terms []string
		want  string
	}{
		{"empty", nil, ""},
		{"one", []string{"Acme"},
			"The following specialized terms are commonly used in this recording: Acme."},
		{"two", []string{"Acme", "Globex"},
			"The following specialized terms are commonly used in this recording: Acme and Globex."},
		{"three", []string{"Acme", "Globex", "Initech"},
			"The following specialized terms are commonly used in this recording: Acme, Globex, and Initech."},
		{"four", []string{"a", "b", "c", "d"},
			"The following specialized terms are commonly used in this recording: a, b, c, and d."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PromptSentence(tc.terms); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
