package overlay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Key namespaces the single overlay blob in shared backends.
const Key = "craftbom_user_overlay_v1"

// ErrNotFound is returned by Get when no blob is stored. An empty blob is
// a stored value and is returned as such.
var ErrNotFound = errors.New("overlay not found")

// Store holds one durable blob.
type Store interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, value []byte) error
	Remove(ctx context.Context) error
}

// FileStore keeps the blob in a single file, written through a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (fs *FileStore) Get(ctx context.Context) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Path == "" {
		return nil, errors.New("overlay store path empty")
	}
	b, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read overlay: %w", err)
	}
	return b, nil
}

func (fs *FileStore) Set(ctx context.Context, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Path == "" {
		return errors.New("overlay store path empty")
	}
	if err := os.MkdirAll(filepath.Dir(fs.Path), 0o755); err != nil {
		return err
	}
	tmp := fs.Path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, fs.Path)
}

func (fs *FileStore) Remove(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
