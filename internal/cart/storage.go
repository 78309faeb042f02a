// internal/cart/storage.go
//
// File-backed cart mirror. The cart is serialized as a JSON list of
// {product, quantity} pairs under a single well-known path, read at startup
// and rewritten after every mutation.

package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStorage persists cart lines to a JSON file.
type FileStorage struct {
	path string
}

// NewFileStorage returns storage backed by the given path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the file backing this storage.
func (f *FileStorage) Path() string {
	return f.path
}

// Load reads the persisted lines. A missing file is an empty cart.
func (f *FileStorage) Load() ([]Line, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cart: read %s: %w", f.path, err)
	}
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("cart: parse %s: %w", f.path, err)
	}
	return lines, nil
}

// Save writes the lines, replacing any previous mirror.
func (f *FileStorage) Save(lines []Line) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("cart: ensure cart dir: %w", err)
	}
	data, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return fmt.Errorf("cart: encode cart: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("cart: write %s: %w", f.path, err)
	}
	return nil
}

// Clear removes the mirror. A missing file is not an error.
func (f *FileStorage) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cart: remove %s: %w", f.path, err)
	}
	return nil
}
