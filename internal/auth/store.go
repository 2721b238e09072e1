package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"docchat/internal/api"
)

// Credentials is the persisted token+identity pair. It is the only state
// shared across client instances; everything else lives in memory.
type Credentials struct {
	Token string   `json:"session_token"`
	User  api.User `json:"user"`
}

// CredentialStore reads and writes the credential file. File mode is 0600;
// the token is a bearer secret.
type CredentialStore struct {
	path string
}

// NewCredentialStore stores credentials at the given path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// DefaultCredentialPath is ~/.docchat/credentials.json.
func DefaultCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".docchat", "credentials.json"), nil
}

// Load returns the stored pair. ok is false when no file exists; a file that
// exists but cannot be parsed is an error so the caller can purge it.
func (s *CredentialStore) Load() (creds Credentials, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("parse credential file: %w", err)
	}
	if creds.Token == "" {
		return Credentials{}, false, fmt.Errorf("credential file has no token")
	}
	return creds, true, nil
}

// Save writes the pair, creating the parent directory if needed.
func (s *CredentialStore) Save(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Delete removes the file. A missing file is not an error.
func (s *CredentialStore) Delete() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
