package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidPlayer  = errors.New("invalid player id")
)

// Store is a key-value view of one player's saved progress.
// Values are JSON documents; use Get and Set for typed access.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key names a progress field and fixes its Go type
type Key[T any] struct {
	Name string
}

// The persisted progress fields
var (
	CurrentLevel      = Key[int]{"currentLevel"}
	RemainingGuesses  = Key[int]{"remainingGuesses"}
	Coins             = Key[int]{"coins"}
	IsPremium         = Key[bool]{"isPremium"}
	SelectedTheme     = Key[Theme]{"selectedTheme"}
	CompletedLevels   = Key[[]int]{"completedLevels"}
	TotalPlayTime     = Key[float64]{"totalPlayTime"}
	CompletionTimes   = Key[map[string]float64]{"completionTimes"}
	LastCoinResetDate = Key[time.Time]{"lastCoinResetDate"}
)

// Get reads and decodes a field. ok is false when the field was never written.
func Get[T any](ctx context.Context, s Store, key Key[T]) (T, bool, error) {
	var v T
	raw, ok, err := s.Get(ctx, key.Name)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("failed to decode %s: %w", key.Name, err)
	}
	return v, true, nil
}

// Set encodes and writes a field
func Set[T any](ctx context.Context, s Store, key Key[T], v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key.Name, err)
	}
	return s.Set(ctx, key.Name, raw)
}

// Backend hands out one Store per player
type Backend interface {
	// Open returns the player's store, creating the player when missing
	Open(player string) (Store, error)
	List() ([]string, error)
	Delete(player string) error
	Exists(player string) bool
	Close() error
}

// Theme is the player's selected color scheme
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark"
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}
