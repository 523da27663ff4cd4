package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the canonical catalog as materials.json and quests.json in Dir.
// Each write replaces the whole collection through a temp file and rename.
type FileStore struct {
	mu  sync.RWMutex
	Dir string
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.Dir, name+".json")
}

func (fs *FileStore) ReadMaterials() ([]Material, error) {
	out := []Material{}
	if err := fs.read("materials", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (fs *FileStore) WriteMaterials(items []Material) error {
	if items == nil {
		items = []Material{}
	}
	return fs.write("materials", items)
}

func (fs *FileStore) ReadQuests() ([]Quest, error) {
	out := []Quest{}
	if err := fs.read("quests", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (fs *FileStore) WriteQuests(items []Quest) error {
	if items == nil {
		items = []Quest{}
	}
	return fs.write("quests", items)
}

// Load reads both collections.
func (fs *FileStore) Load() (Catalog, error) {
	ms, err := fs.ReadMaterials()
	if err != nil {
		return Catalog{}, err
	}
	qs, err := fs.ReadQuests()
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{Materials: ms, Quests: qs}, nil
}

// read leaves v untouched when the file does not exist yet.
func (fs *FileStore) read(name string, v any) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.Dir == "" {
		return errors.New("catalog store dir empty")
	}
	b, err := os.ReadFile(fs.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (fs *FileStore) write(name string, v any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Dir == "" {
		return errors.New("catalog store dir empty")
	}
	if err := os.MkdirAll(fs.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	p := fs.path(name)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
