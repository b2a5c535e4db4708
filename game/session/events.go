package session

import "github.com/wricardo/tango-game/game/engine"

// EventKind names a controller state change
type EventKind string

const (
	EventLevelEntered     EventKind = "level_entered"
	EventCellToggled      EventKind = "cell_toggled"
	EventUndo             EventKind = "undo"
	EventHint             EventKind = "hint"
	EventSubmitFailed     EventKind = "submit_failed"
	EventLevelCompleted   EventKind = "level_completed"
	EventCoinsChanged     EventKind = "coins_changed"
	EventPremiumPurchased EventKind = "premium_purchased"
	EventThemeChanged     EventKind = "theme_changed"
	EventSessionEnded     EventKind = "session_ended"
	EventError            EventKind = "error"
	EventErrorDismissed   EventKind = "error_dismissed"
)

// Event is emitted after every state change
type Event struct {
	Kind  EventKind     `json:"kind"`
	Level int           `json:"level,omitempty"`
	Coord *engine.Coord `json:"coord,omitempty"`
}

// Listener receives controller events synchronously
type Listener func(Event)
