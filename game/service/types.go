package service

import (
	"time"

	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/progress"
	"github.com/wricardo/tango-game/game/session"
)

// PlayerInfo provides information about a player profile
type PlayerInfo struct {
	ID             string       `json:"id"`
	CreatedAt      time.Time    `json:"created_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
	State          *PlayerState `json:"state"`
}

// PlayerState is the presentation view of a player's controller
type PlayerState struct {
	PlayerID             string               `json:"player_id"`
	State                session.State        `json:"state"`
	LevelID              int                  `json:"level_id"`
	Size                 int                  `json:"size"`
	Grid                 [][]engine.CellState `json:"grid"`
	Relations            []RelationView       `json:"relations"`
	GuessesLeft          int                  `json:"guesses_left"`
	Coins                int                  `json:"coins"`
	IsPremium            bool                 `json:"is_premium"`
	Theme                progress.Theme       `json:"theme"`
	HistoryEmpty         bool                 `json:"history_empty"`
	LevelCompleted       bool                 `json:"level_completed"`
	HighestUnlockedLevel int                  `json:"highest_unlocked_level"`
	CompletedLevels      []int                `json:"completed_levels"`
	LevelCount           int                  `json:"level_count"`
	TotalPlayTime        float64              `json:"total_play_time"`
	// Rules is the first rule the current grid breaks, or nil while no level is entered
	Rules     *engine.Result `json:"rules,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// RelationView is a relation as shown to clients
type RelationView struct {
	From engine.Coord `json:"from"`
	To   engine.Coord `json:"to"`
	Kind string       `json:"kind"`
}

// ActionResult contains the result of a gameplay operation
type ActionResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	State   *PlayerState `json:"state"`
	Events  []GameEvent  `json:"events,omitempty"`

	Hint        *engine.Coord         `json:"hint,omitempty"`
	Submit      *session.SubmitResult `json:"submit,omitempty"`
	PlaySeconds float64               `json:"play_seconds,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Level     int           `json:"level,omitempty"`
	Coord     *engine.Coord `json:"coord,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// LevelInfo describes a level from one player's point of view
type LevelInfo struct {
	ID        int      `json:"id"`
	Size      int      `json:"size"`
	Givens    int      `json:"givens"`
	Relations int      `json:"relations"`
	Locked    bool     `json:"locked"`
	Completed bool     `json:"completed"`
	BestTime  *float64 `json:"best_time,omitempty"`
}

// PlayerStats summarizes a player's progress
type PlayerStats struct {
	PlayerID        string          `json:"player_id"`
	CompletedLevels int             `json:"completed_levels"`
	LevelCount      int             `json:"level_count"`
	TotalPlayTime   float64         `json:"total_play_time"`
	CompletionTimes map[int]float64 `json:"completion_times"`
	FastestLevel    int             `json:"fastest_level,omitempty"`
	FastestTime     float64         `json:"fastest_time,omitempty"`
	AverageTime     float64         `json:"average_time,omitempty"`
	Coins           int             `json:"coins"`
	IsPremium       bool            `json:"is_premium"`
}
