package service

import (
	"context"
	"errors"

	"github.com/wricardo/tango-game/game/catalog"
	"github.com/wricardo/tango-game/game/session"
)

var (
	// ErrInvalidArgument marks a request the service refuses before touching a player
	ErrInvalidArgument = errors.New("invalid argument")
)

// GameService defines all game-related operations.
//
// Errors returned directly are about the request itself: an unknown player or
// level, or a malformed argument. Gameplay failures such as running out of
// coins come back inside the ActionResult, with the player's state.
type GameService interface {
	// Players
	CreatePlayer(ctx context.Context, playerID string) (*PlayerInfo, error)
	GetPlayer(ctx context.Context, playerID string) (*PlayerInfo, error)
	ListPlayers(ctx context.Context) ([]*PlayerInfo, error)
	DeletePlayer(ctx context.Context, playerID string) error

	// Gameplay
	EnterLevel(ctx context.Context, playerID string, level int) (*ActionResult, error)
	ToggleCell(ctx context.Context, playerID string, row, col int) (*ActionResult, error)
	Undo(ctx context.Context, playerID string) (*ActionResult, error)
	Hint(ctx context.Context, playerID string) (*ActionResult, error)
	Submit(ctx context.Context, playerID string, completionSeconds *float64) (*ActionResult, error)
	NextLevel(ctx context.Context, playerID string) (*ActionResult, error)

	// Economy and preferences
	GrantCoin(ctx context.Context, playerID string) (*ActionResult, error)
	PurchasePremium(ctx context.Context, playerID string) (*ActionResult, error)
	SetTheme(ctx context.Context, playerID string, theme string) (*ActionResult, error)
	EndSession(ctx context.Context, playerID string) (*ActionResult, error)
	DismissError(ctx context.Context, playerID string) (*PlayerState, error)

	// Queries
	GetState(ctx context.Context, playerID string) (*PlayerState, error)
	ListLevels(ctx context.Context, playerID string) ([]*LevelInfo, error)
	GetStats(ctx context.Context, playerID string) (*PlayerStats, error)
}

// PlayerManager defines player storage operations
type PlayerManager interface {
	Create(id string) (*session.Player, error)
	Get(id string) (*session.Player, error)
	List() []*session.Player
	Delete(id string) error
	SetEventHandler(fn func(player string, ev session.Event))
}

// LevelCatalog lists the levels a player can choose from
type LevelCatalog interface {
	Summaries() []catalog.Summary
	Count() int
}

// Broadcaster receives the state of a player after every change
type Broadcaster interface {
	BroadcastToPlayer(playerID string, state *PlayerState, events []GameEvent)
}
