package vocab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxkey-labs/voxkey/internal/protocol"
	"github.com/voxkey-labs/voxkey/internal/store"
)

const promptLeadIn = "The following specialized terms are commonly used in this recording: "

// Manager curates the user's hint terms. The list lives in the shared store
// as a JSON array under one key, persisted synchronously on every mutation.
type Manager struct {
	store *store.Store
}

func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Add trims word and appends it to the list. Empty input and exact
// duplicates are no-ops, not errors.
func (m *Manager) Add(ctx context.Context, word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil
	}
	terms, err := m.load(ctx)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if t == word {
			return nil
		}
	}
	return m.save(ctx, append(terms, word))
}

// Remove drops the entry at index. Out-of-range indexes are a no-op.
func (m *Manager) Remove(ctx context.Context, index int) error {
	terms, err := m.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(terms) {
		return nil
	}
	return m.save(ctx, append(terms[:index:index], terms[index+1:]...))
}

// List returns the terms in insertion order, with blank entries filtered.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	terms, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, t := range terms {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Manager) load(ctx context.Context) ([]string, error) {
	raw, ok, err := m.store.Get(ctx, protocol.KeyCustomVocabulary)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var terms []string
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return terms, nil
}

func (m *Manager) save(ctx context.Context, terms []string) error {
	data, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("encode vocabulary: %w", err)
	}
	return m.store.Set(ctx, protocol.KeyCustomVocabulary, string(data))
}

// PromptSentence renders the recognition hint sent to the transcription
// endpoint. One term stands alone, two are joined by " and ", three or more
// use Oxford-comma joining ("a, b, and c"). Empty input yields "".
func PromptSentence(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	var joined string
	switch len(terms) {
	case 1:
		joined = terms[0]
	case 2:
		joined = terms[0] + " and " + terms[1]
	default:
		joined = strings.Join(terms[:len(terms)-1], ", ") + ", and " + terms[len(terms)-1]
	}
	return promptLeadIn + joined + "."
}
