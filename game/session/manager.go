package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/catalog"
	"github.com/wricardo/tango-game/game/progress"
)

var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerAlreadyExists = errors.New("player already exists")
)

// Player is a profile with its controller. Controller calls must go through Do.
type Player struct {
	ID             string
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu         sync.Mutex
	controller *Controller
}

// Do runs fn with exclusive access to the player's controller
func (p *Player) Do(fn func(c *Controller)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastAccessedAt = time.Now()
	fn(p.controller)
}

// Manager keeps one controller per player, backed by a progress backend
type Manager struct {
	catalog *catalog.Catalog
	backend progress.Backend
	log     logrus.FieldLogger
	opts    []Option

	onEvent func(player string, ev Event)

	players map[string]*Player
	mu      sync.RWMutex
}

// SetEventHandler routes every controller event to fn, tagged with the player
// id. It must be called before any player is created or loaded.
func (m *Manager) SetEventHandler(fn func(player string, ev Event)) {
	m.onEvent = fn
}

// NewManager creates a player manager. opts are applied to every controller it builds.
func NewManager(cat *catalog.Catalog, backend progress.Backend, log logrus.FieldLogger, opts ...Option) *Manager {
	if backend == nil {
		backend = progress.NewMemoryBackend()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		catalog: cat,
		backend: backend,
		log:     log,
		opts:    opts,
		players: make(map[string]*Player),
	}
}

// Create registers a new player and enters their frontier level. An empty id
// gets a random 4-character one.
func (m *Manager) Create(id string) (*Player, error) {
	if id == "" {
		id = m.generatePlayerID()
	}
	id = strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[id]; exists || m.backend.Exists(id) {
		return nil, ErrPlayerAlreadyExists
	}

	p, err := m.open(id)
	if err != nil {
		return nil, err
	}
	m.players[id] = p
	m.log.WithField("player", id).Info("player created")
	return p, nil
}

// Get returns a player by id (case-insensitive), loading it from the backend
// when it is not in memory
func (m *Manager) Get(id string) (*Player, error) {
	id = strings.ToLower(id)

	m.mu.RLock()
	p, exists := m.players[id]
	m.mu.RUnlock()
	if exists {
		return p, nil
	}

	if !m.backend.Exists(id) {
		return nil, ErrPlayerNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, exists := m.players[id]; exists {
		return p, nil
	}
	p, err := m.open(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted player: %w", err)
	}
	m.players[id] = p
	return p, nil
}

// GetOrCreate gets an existing player or creates a new one
func (m *Manager) GetOrCreate(id string) (*Player, error) {
	p, err := m.Get(id)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, ErrPlayerNotFound) {
		return m.Create(id)
	}
	return nil, err
}

// List returns the players in memory, ordered by id
func (m *Manager) List() []*Player {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Delete closes the player's session and removes their saved progress
func (m *Manager) Delete(id string) error {
	id = strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	p, inMemory := m.players[id]
	if inMemory {
		p.Do(func(c *Controller) { c.EndSession() })
		delete(m.players, id)
	}

	if m.backend.Exists(id) {
		if err := m.backend.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted player: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrPlayerNotFound
	}
	return nil
}

// Count returns the number of players in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// LoadPersisted loads every player the backend knows about
func (m *Manager) LoadPersisted() error {
	ids, err := m.backend.List()
	if err != nil {
		return fmt.Errorf("failed to list persisted players: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.players[id]; exists {
			continue
		}
		p, err := m.open(id)
		if err != nil {
			m.log.WithError(err).WithField("player", id).Warn("failed to load persisted player")
			continue
		}
		m.players[id] = p
		loaded++
	}
	if loaded > 0 {
		m.log.WithField("players", loaded).Info("loaded persisted players")
	}
	return nil
}

// EndAll closes every open play session, recording its play time
func (m *Manager) EndAll() {
	for _, p := range m.List() {
		p.Do(func(c *Controller) { c.EndSession() })
	}
}

func (m *Manager) open(id string) (*Player, error) {
	store, err := m.backend.Open(id)
	if err != nil {
		return nil, err
	}

	opts := append([]Option{WithLogger(m.log.WithField("player", id))}, m.opts...)
	c := NewController(m.catalog, store, opts...)
	if m.onEvent != nil {
		handler := m.onEvent
		c.SetListener(func(ev Event) { handler(id, ev) })
	}
	c.StartSession()
	if err := c.Resume(); err != nil {
		m.log.WithError(err).WithField("player", id).Warn("no level to resume")
	}

	now := time.Now()
	return &Player{
		ID:             id,
		CreatedAt:      now,
		LastAccessedAt: now,
		controller:     c,
	}, nil
}

// generatePlayerID generates a random 4-character player ID
func (m *Manager) generatePlayerID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
