// Package identity persists the player's device id across restarts.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoIdentity is returned by Get before an id has been stored.
var ErrNoIdentity = errors.New("no device identity stored")

// Store holds a single device id.
type Store interface {
	Get() (string, error)
	Set(id string) error
	Clear() error
}

// File keeps the id in a small text file.
type File struct {
	Path string
}

var _ Store = File{}

func NewFile(path string) File {
	return File{Path: path}
}

func (f File) Get() (string, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoIdentity
	}
	if err != nil {
		return "", fmt.Errorf("read identity: %w", err)
	}
	id := strings.TrimSpace(string(b))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

// Set writes the id through a temp file and rename.
func (f File) Set(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("device id must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	return nil
}

func (f File) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// Ensure returns the stored id. When none is stored it persists requested, or
// a freshly generated one when requested is empty. A non-empty requested id
// that differs from the stored one replaces it.
func Ensure(s Store, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	current, err := s.Get()
	switch {
	case err == nil && (requested == "" || requested == current):
		return current, nil
	case err != nil && !errors.Is(err, ErrNoIdentity):
		return "", err
	}
	if requested == "" {
		requested = "screen-" + uuid.NewString()
	}
	if err := s.Set(requested); err != nil {
		return "", err
	}
	return requested, nil
}
