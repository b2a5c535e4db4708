package session

import (
	"time"

	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/progress"
)

// State returns the phase of the current attempt
func (c *Controller) State() State {
	switch {
	case c.level == nil:
		return StateNoLevel
	case c.completed:
		return StateCompleted
	default:
		return StateInProgress
	}
}

// Grid returns a copy of the grid being played, or nil before a level is entered
func (c *Controller) Grid() *engine.Grid {
	if c.grid == nil {
		return nil
	}
	return c.grid.Clone()
}

func (c *Controller) HistoryEmpty() bool { return len(c.history) == 0 }
func (c *Controller) HistoryLen() int    { return len(c.history) }
func (c *Controller) LevelCompleted() bool {
	return c.completed
}
func (c *Controller) GuessesLeft() int { return c.guessesLeft }
func (c *Controller) Coins() int       { return c.progress.Coins }
func (c *Controller) IsPremium() bool  { return c.progress.IsPremium }

// LevelID returns the id of the level being played, or 0
func (c *Controller) LevelID() int {
	if c.level == nil {
		return 0
	}
	return c.level.ID
}

// LevelCount returns the number of levels in the catalog
func (c *Controller) LevelCount() int {
	return c.catalog.Count()
}

func (c *Controller) CompletedLevelCount() int {
	return len(c.progress.CompletedLevels)
}

func (c *Controller) IsLevelCompleted(id int) bool {
	return c.progress.CompletedLevels[id]
}

// CompletionTime returns the recorded completion time for a level, in seconds
func (c *Controller) CompletionTime(id int) (float64, bool) {
	secs, ok := c.progress.CompletionTimes[id]
	return secs, ok
}

// Progress returns a copy of the player's progress
func (c *Controller) Progress() progress.Progress {
	return c.progress.Clone()
}

// LevelStartedAt returns when the current level was entered
func (c *Controller) LevelStartedAt() time.Time {
	return c.levelStart
}

// SessionActive reports whether a play session is open
func (c *Controller) SessionActive() bool {
	return !c.sessionStart.IsZero()
}

// Snapshot is a read-only view of the controller for presentation
type Snapshot struct {
	State                State                `json:"state"`
	LevelID              int                  `json:"level_id"`
	Size                 int                  `json:"size"`
	Cells                [][]engine.CellState `json:"cells"`
	Relations            []engine.Relation    `json:"relations"`
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
	LastError            string               `json:"last_error,omitempty"`
}

// Snapshot captures the current state
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:                c.State(),
		LevelID:              c.LevelID(),
		GuessesLeft:          c.guessesLeft,
		Coins:                c.progress.Coins,
		IsPremium:            c.progress.IsPremium,
		Theme:                c.progress.Theme,
		HistoryEmpty:         c.HistoryEmpty(),
		LevelCompleted:       c.completed,
		HighestUnlockedLevel: c.progress.HighestUnlockedLevel,
		CompletedLevels:      c.progress.CompletedList(),
		LevelCount:           c.LevelCount(),
		TotalPlayTime:        c.progress.TotalPlayTime,
	}
	if c.grid != nil {
		s.Size = c.grid.Size
		s.Cells = engine.CopyCells(c.grid.Cells)
		s.Relations = c.grid.RelationList()
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
