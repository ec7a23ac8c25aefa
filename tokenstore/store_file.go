package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var _ Repo = (*FileStore)(nil)

// FileStore persists tokens as a single JSON file. Writes go through a
// temp-file rename so a crash mid-write never leaves a torn session on disk,
// and a mutex serializes Save against Clear.
type FileStore struct {
	path string
	lock sync.Mutex
}

// NewFileStore creates a file-backed token store at the given path. Parent
// directories are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Save(tokens *Tokens) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (fs *FileStore) Get() (*Tokens, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("unmarshal session file: %w", err)
	}
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return nil, nil
	}
	return &tokens, nil
}

func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
