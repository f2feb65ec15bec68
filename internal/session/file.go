package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type fileState struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// FileBackend persists the session as a single JSON file, replaced
// atomically on every write. Two processes sharing the file are
// last-write-wins.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load() (string, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, nil
		}
		return "", nil, err
	}

	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		return "", nil, fmt.Errorf("state file %s: %w", b.path, err)
	}
	return state.Token, state.User, nil
}

func (b *FileBackend) Save(token string, userRaw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := json.Marshal(fileState{Token: token, User: userRaw})
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".omega-session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, b.path)
}

func (b *FileBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
