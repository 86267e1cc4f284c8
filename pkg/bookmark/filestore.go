package bookmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileStoreVersion = "1.0"

// FileStore implements Store using a JSON file. Every Set is written to
// disk through a temp file and a rename.
type FileStore struct {
	path string
	data map[string][]string
	mu   sync.RWMutex
}

type fileStoreDocument struct {
	Version string              `json:"version"`
	Keys    map[string][]string `json:"keys"`
}

// DefaultFilePath returns ~/.gloss/bookmarks.json.
func DefaultFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gloss", "bookmarks.json"), nil
}

// NewFileStore opens the store at path, or at DefaultFilePath when path is
// empty. A missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	store := &FileStore{
		path: path,
		data: make(map[string][]string),
	}
	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load bookmarks from %s: %w", path, err)
	}
	return store, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open bookmark file: %w", err)
	}
	defer file.Close()

	var doc fileStoreDocument
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode bookmark file: %w", err)
	}
	if doc.Keys != nil {
		s.data = doc.Keys
	}
	return nil
}

// save writes the store to disk. Called with s.mu held.
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create bookmark directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp bookmark file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileStoreDocument{Version: fileStoreVersion, Keys: s.data}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode bookmarks: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyList(s.data[key]), nil
}

// Set implements Store.
func (s *FileStore) Set(key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, had := s.data[key]
	s.data[key] = copyList(values)
	if err := s.save(); err != nil {
		if had {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}
