package progress

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps progress in a map
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// MemoryBackend holds every player's store in process memory
type MemoryBackend struct {
	mu      sync.RWMutex
	players map[string]*MemoryStore
}

// NewMemoryBackend returns an empty backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{players: make(map[string]*MemoryStore)}
}

func (b *MemoryBackend) Open(player string) (Store, error) {
	if err := checkPlayerID(player); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.players[player]
	if !ok {
		s = NewMemoryStore()
		b.players[player] = s
	}
	return s, nil
}

func (b *MemoryBackend) List() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.players))
	for id := range b.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *MemoryBackend) Delete(player string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.players[player]; !ok {
		return ErrPlayerNotFound
	}
	delete(b.players, player)
	return nil
}

func (b *MemoryBackend) Exists(player string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.players[player]
	return ok
}

func (b *MemoryBackend) Close() error { return nil }

// checkPlayerID rejects ids that cannot be used as a file name
func checkPlayerID(player string) error {
	if player == "" || strings.ContainsAny(player, `/\.`) {
		return ErrInvalidPlayer
	}
	return nil
}
