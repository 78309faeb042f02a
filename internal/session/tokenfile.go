// internal/session/tokenfile.go
//
// Persists the session token so an authenticated session survives process
// restarts, the terminal analogue of the browser's silent session check.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TokenStore persists the held token between runs.
type TokenStore interface {
	Load() (*Token, error)
	Save(token *Token) error
	Clear() error
}

// FileTokenStore keeps the token in a JSON file with owner-only permissions.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore returns a store backed by the given path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the saved token. A missing file means no session.
func (f *FileTokenStore) Load() (*Token, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("session: parse %s: %w", f.path, err)
	}
	if token.AccessToken == "" {
		return nil, nil
	}
	return &token, nil
}

// Save writes the token, replacing any previous one.
func (f *FileTokenStore) Save(token *Token) error {
	if token == nil {
		return f.Clear()
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("session: ensure token dir: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("session: encode token: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	return nil
}

// Clear removes the saved token. A missing file is not an error.
func (f *FileTokenStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}
