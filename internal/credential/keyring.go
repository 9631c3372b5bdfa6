// Package credential keeps the CLI session and mail password in the
// operating system keyring.
package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/taskbuddy/internal/model"
)

const serviceName = "taskbuddy"

// Keyring item keys.
const (
	KeySessionToken = "session-token"
	KeySessionUser  = "session-user"
	KeyIMAPPassword = "imap-password"
)

// ErrNotSignedIn is returned by LoadSession when no session is stored.
var ErrNotSignedIn = errors.New("not signed in")

// Vault reads and writes credentials in a keyring.
type Vault struct {
	ring keyring.Keyring
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Open returns a Vault backed by the system keyring. The encrypted file
// backend under configDir is the fallback.
func Open(configDir string) (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("taskbuddy-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewVault(ring), nil
}

// Get retrieves a credential value by key.
func (v *Vault) Get(key string) (string, error) {
	item, err := v.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (v *Vault) Set(key, value string) error {
	err := v.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential. Missing keys are not an error.
func (v *Vault) Delete(key string) error {
	err := v.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// SaveSession stores the bearer token and user id after sign-in.
func (v *Vault) SaveSession(s model.Session) error {
	if err := v.Set(KeySessionToken, s.Token); err != nil {
		return err
	}
	return v.Set(KeySessionUser, s.UserID)
}

// LoadSession returns the stored session or ErrNotSignedIn.
func (v *Vault) LoadSession() (model.Session, error) {
	token, err := v.Get(KeySessionToken)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return model.Session{}, ErrNotSignedIn
	}
	if err != nil {
		return model.Session{}, err
	}
	user, err := v.Get(KeySessionUser)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return model.Session{}, ErrNotSignedIn
	}
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{Token: token, UserID: user}, nil
}

// ClearSession forgets the stored session.
func (v *Vault) ClearSession() error {
	if err := v.Delete(KeySessionToken); err != nil {
		return err
	}
	return v.Delete(KeySessionUser)
}

// IMAPPassword returns the stored mail password, or "" when unset.
func (v *Vault) IMAPPassword() (string, error) {
	pw, err := v.Get(KeyIMAPPassword)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return pw, err
}
