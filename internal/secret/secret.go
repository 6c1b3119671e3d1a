package secret

import (
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
	"github.com/voxkey-labs/voxkey/internal/config"
)

// EnvCredential overrides the keyring lookup when set; useful for headless
// daemons and CI.
const EnvCredential = "VOXKEY_API_KEY"

// Store is the opaque credential boundary consumed by the transcriber. The
// credential itself never enters the shared state store.
type Store interface {
	Credential() (string, error)
	SetCredential(value string) error
}

type keyringStore struct {
	cfg  config.TranscriberConfig
	open func() (keyring.Keyring, error)
}

// NewStore returns a keyring-backed credential store for the configured
// service.
func NewStore(cfg config.TranscriberConfig) Store {
	return &keyringStore{
		cfg: cfg,
		open: func() (keyring.Keyring, error) {
			kc := keyring.Config{
				ServiceName: cfg.KeyringService,
			}
			if cfg.KeyringDir != "" {
				kc.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
				kc.FileDir = cfg.KeyringDir
				kc.FilePasswordFunc = keyring.FixedStringPrompt("")
			}
			return keyring.Open(kc)
		},
	}
}

// Credential returns the API credential, preferring the environment
// override. An empty result is returned without error; the caller decides
// what absence means.
func (s *keyringStore) Credential() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvCredential)); v != "" {
		return v, nil
	}
	ring, err := s.open()
	if err != nil {
		return "", fmt.Errorf("open keyring: %w", err)
	}
	item, err := ring.Get(s.cfg.CredentialKey)
	if err == keyring.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(string(item.Data)), nil
}

// SetCredential stores the API credential under the configured key.
func (s *keyringStore) SetCredential(value string) error {
	ring, err := s.open()
	if err != nil {
		return fmt.Errorf("open keyring: %w", err)
	}
	if err := ring.Set(keyring.Item{
		Key:  s.cfg.CredentialKey,
		Data: []byte(value),
	}); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Static returns a store with a fixed credential; used by tests and by
// callers that already hold the key.
func Static(value string) Store {
	return staticStore(value)
}

type staticStore string

func (s staticStore) Credential() (string, error) { return string(s), nil }

func (s staticStore) SetCredential(string) error {
	return fmt.Errorf("static credential store is read-only")
}
