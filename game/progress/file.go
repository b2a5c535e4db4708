package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileBackend stores one JSON document per player in a directory
type FileBackend struct {
	dir string

	mu     sync.Mutex
	stores map[string]*FileStore
}

// NewFileBackend creates dir if needed and returns a backend rooted there
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	return &FileBackend{dir: dir, stores: make(map[string]*FileStore)}, nil
}

// Open loads the player's document, writing an empty one for a new player
func (b *FileBackend) Open(player string) (Store, error) {
	if err := checkPlayerID(player); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.stores[player]; ok {
		return s, nil
	}

	s := &FileStore{path: b.filePath(player), fields: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		if err := s.flush(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	default:
		if err := json.Unmarshal(data, &s.fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress file %s: %w", s.path, err)
		}
	}

	b.stores[player] = s
	return s, nil
}

// List returns the ids of every player with a progress file
func (b *FileBackend) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read progress directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the player's progress file
func (b *FileBackend) Delete(player string) error {
	if !b.Exists(player) {
		return ErrPlayerNotFound
	}
	b.mu.Lock()
	delete(b.stores, player)
	b.mu.Unlock()

	if err := os.Remove(b.filePath(player)); err != nil {
		return fmt.Errorf("failed to remove progress file: %w", err)
	}
	return nil
}

// Exists checks if the player's progress file exists
func (b *FileBackend) Exists(player string) bool {
	if checkPlayerID(player) != nil {
		return false
	}
	_, err := os.Stat(b.filePath(player))
	return err == nil
}

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) filePath(player string) string {
	return filepath.Join(b.dir, fmt.Sprintf("%s.json", player))
}

// FileStore is one player's document. Every Set rewrites the whole file.
type FileStore struct {
	path string

	mu     sync.Mutex
	fields map[string]json.RawMessage
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.fields[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[key] = append(json.RawMessage(nil), value...)
	return s.flush()
}

// flush writes the document to a temp file and renames it over the original
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.fields, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace progress file: %w", err)
	}
	return nil
}
