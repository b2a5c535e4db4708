package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/progress"
	"github.com/wricardo/tango-game/game/session"
)

// ErrNoMoreLevels is reported when the player has completed the last level
var ErrNoMoreLevels = errors.New("no more levels")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	players PlayerManager
	levels  LevelCatalog
	hub     Broadcaster
	log     logrus.FieldLogger
	now     func() time.Time

	eventsMu sync.Mutex
	pending  map[string][]session.Event
	entropy  *rand.Rand
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithBroadcaster sends every state change to b
func WithBroadcaster(b Broadcaster) Option {
	return func(s *gameServiceImpl) { s.hub = b }
}

// WithLogger sets the service logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *gameServiceImpl) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *gameServiceImpl) { s.now = now }
}

// NewGameService creates a new game service instance. It registers itself as
// the players' event handler, so it must be built before any player is loaded.
func NewGameService(players PlayerManager, levels LevelCatalog, opts ...Option) GameService {
	s := &gameServiceImpl{
		players: players,
		levels:  levels,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		pending: make(map[string][]session.Event),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	players.SetEventHandler(s.record)
	return s
}

func (s *gameServiceImpl) record(player string, ev session.Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.pending[player] = append(s.pending[player], ev)
}

// drain converts the player's pending controller events into stamped GameEvents
func (s *gameServiceImpl) drain(player string) []GameEvent {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	raw := s.pending[player]
	delete(s.pending, player)
	if len(raw) == 0 {
		return nil
	}

	now := s.now()
	out := make([]GameEvent, len(raw))
	for i, ev := range raw {
		out[i] = GameEvent{
			ID:        ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
			Type:      string(ev.Kind),
			Level:     ev.Level,
			Coord:     ev.Coord,
			Timestamp: now,
		}
	}
	return out
}

func (s *gameServiceImpl) player(playerID string) (*session.Player, error) {
	p, err := s.players.Get(playerID)
	if err != nil {
		return nil, fmt.Errorf("player %s: %w", playerID, err)
	}
	return p, nil
}

// act runs fn against the player's controller and packages the outcome.
// A level-not-found error is returned to the caller; every other error from
// fn is a gameplay failure reported in the result.
func (s *gameServiceImpl) act(ctx context.Context, playerID, op string, fn func(c *session.Controller, res *ActionResult) error) (*ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}

	res := &ActionResult{}
	var reqErr error
	p.Do(func(c *session.Controller) {
		err := fn(c, res)
		res.Events = s.drain(p.ID)
		if errors.Is(err, session.ErrLevelNotFound) {
			reqErr = err
			return
		}
		res.Success = err == nil
		if err != nil {
			res.Message = err.Error()
		}
		res.State = stateOf(p.ID, c)
	})
	if reqErr != nil {
		return nil, reqErr
	}

	s.log.WithFields(logrus.Fields{
		"player":  p.ID,
		"op":      op,
		"success": res.Success,
	}).Debug(res.Message)
	s.broadcast(p.ID, res.State, res.Events)
	return res, nil
}

func (s *gameServiceImpl) broadcast(playerID string, state *PlayerState, events []GameEvent) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToPlayer(playerID, state, events)
	}
}

func stateOf(playerID string, c *session.Controller) *PlayerState {
	snap := c.Snapshot()
	st := &PlayerState{
		PlayerID:             playerID,
		State:                snap.State,
		LevelID:              snap.LevelID,
		Size:                 snap.Size,
		Grid:                 snap.Cells,
		GuessesLeft:          snap.GuessesLeft,
		Coins:                snap.Coins,
		IsPremium:            snap.IsPremium,
		Theme:                snap.Theme,
		HistoryEmpty:         snap.HistoryEmpty,
		LevelCompleted:       snap.LevelCompleted,
		HighestUnlockedLevel: snap.HighestUnlockedLevel,
		CompletedLevels:      snap.CompletedLevels,
		LevelCount:           snap.LevelCount,
		TotalPlayTime:        snap.TotalPlayTime,
		LastError:            snap.LastError,
	}
	for _, rel := range snap.Relations {
		st.Relations = append(st.Relations, RelationView{From: rel.Pair.From, To: rel.Pair.To, Kind: rel.Kind.Tag()})
	}
	if g := c.Grid(); g != nil {
		rules := engine.Check(g)
		st.Rules = &rules
	}
	return st
}

func (s *gameServiceImpl) info(p *session.Player) *PlayerInfo {
	info := &PlayerInfo{ID: p.ID, CreatedAt: p.CreatedAt}
	p.Do(func(c *session.Controller) {
		info.State = stateOf(p.ID, c)
		info.LastAccessedAt = p.LastAccessedAt
		s.drain(p.ID)
	})
	return info
}

// CreatePlayer creates a new player. An empty id gets a generated one.
func (s *gameServiceImpl) CreatePlayer(ctx context.Context, playerID string) (*PlayerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.players.Create(playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	info := s.info(p)
	s.broadcast(p.ID, info.State, nil)
	return info, nil
}

// GetPlayer retrieves player information
func (s *gameServiceImpl) GetPlayer(ctx context.Context, playerID string) (*PlayerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	return s.info(p), nil
}

// ListPlayers returns all loaded players
func (s *gameServiceImpl) ListPlayers(ctx context.Context) ([]*PlayerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	players := s.players.List()
	result := make([]*PlayerInfo, 0, len(players))
	for _, p := range players {
		result = append(result, s.info(p))
	}
	return result, nil
}

// DeletePlayer removes a player and their saved progress
func (s *gameServiceImpl) DeletePlayer(ctx context.Context, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.players.Delete(playerID); err != nil {
		return fmt.Errorf("player %s: %w", playerID, err)
	}
	s.eventsMu.Lock()
	delete(s.pending, playerID)
	s.eventsMu.Unlock()
	return nil
}

// EnterLevel starts a fresh attempt at an unlocked level
func (s *gameServiceImpl) EnterLevel(ctx context.Context, playerID string, level int) (*ActionResult, error) {
	return s.act(ctx, playerID, "enter_level", func(c *session.Controller, res *ActionResult) error {
		if err := c.SelectLevel(level); err != nil {
			return err
		}
		res.Message = fmt.Sprintf("Level %d started", level)
		return nil
	})
}

// ToggleCell cycles one cell
func (s *gameServiceImpl) ToggleCell(ctx context.Context, playerID string, row, col int) (*ActionResult, error) {
	return s.act(ctx, playerID, "toggle_cell", func(c *session.Controller, res *ActionResult) error {
		if err := c.ToggleCell(row, col); err != nil {
			return err
		}
		res.Message = fmt.Sprintf("Cell (%d, %d) is now %s", row, col, c.Grid().At(engine.Coord{Row: row, Col: col}))
		return nil
	})
}

// Undo reverts the last move
func (s *gameServiceImpl) Undo(ctx context.Context, playerID string) (*ActionResult, error) {
	return s.act(ctx, playerID, "undo", func(c *session.Controller, res *ActionResult) error {
		if c.HistoryEmpty() && c.State() == session.StateInProgress {
			res.Message = "Nothing to undo"
			return nil
		}
		if err := c.Undo(); err != nil {
			return err
		}
		res.Message = "Last move undone"
		return nil
	})
}

// Hint reveals one empty cell
func (s *gameServiceImpl) Hint(ctx context.Context, playerID string) (*ActionResult, error) {
	return s.act(ctx, playerID, "hint", func(c *session.Controller, res *ActionResult) error {
		at, err := c.Hint()
		if err != nil {
			return err
		}
		res.Hint = &at
		res.Message = fmt.Sprintf("Cell %s revealed as %s", at, c.Grid().At(at))
		return nil
	})
}

// Submit grades the player's grid. Without a completion time, the time since
// the level was entered is used.
func (s *gameServiceImpl) Submit(ctx context.Context, playerID string, completionSeconds *float64) (*ActionResult, error) {
	return s.act(ctx, playerID, "submit", func(c *session.Controller, res *ActionResult) error {
		secs := completionSeconds
		if secs == nil && !c.LevelStartedAt().IsZero() {
			elapsed := s.now().Sub(c.LevelStartedAt()).Seconds()
			secs = &elapsed
		}

		result, err := c.Submit(secs)
		res.Submit = &result
		if err != nil {
			return err
		}
		res.Message = fmt.Sprintf("Correct! Level %d completed", c.LevelID())
		return nil
	})
}

// NextLevel moves on after a completed level
func (s *gameServiceImpl) NextLevel(ctx context.Context, playerID string) (*ActionResult, error) {
	return s.act(ctx, playerID, "next_level", func(c *session.Controller, res *ActionResult) error {
		if !c.LevelCompleted() {
			res.Message = "Finish the current level first"
			return nil
		}
		if err := c.AdvanceToNextLevel(); err != nil {
			if errors.Is(err, session.ErrLevelNotFound) {
				return ErrNoMoreLevels
			}
			return err
		}
		res.Message = fmt.Sprintf("Level %d started", c.LevelID())
		return nil
	})
}

// GrantCoin credits the coin earned by watching an ad
func (s *gameServiceImpl) GrantCoin(ctx context.Context, playerID string) (*ActionResult, error) {
	return s.act(ctx, playerID, "grant_coin", func(c *session.Controller, res *ActionResult) error {
		c.GrantCoin()
		res.Message = fmt.Sprintf("You now have %d coins", c.Coins())
		return nil
	})
}

// PurchasePremium unlocks free hints and submissions
func (s *gameServiceImpl) PurchasePremium(ctx context.Context, playerID string) (*ActionResult, error) {
	return s.act(ctx, playerID, "purchase_premium", func(c *session.Controller, res *ActionResult) error {
		c.PurchasePremium()
		res.Message = "Premium unlocked"
		return nil
	})
}

// SetTheme changes the player's color scheme
func (s *gameServiceImpl) SetTheme(ctx context.Context, playerID string, theme string) (*ActionResult, error) {
	t, err := progress.ParseTheme(theme)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.act(ctx, playerID, "set_theme", func(c *session.Controller, res *ActionResult) error {
		c.SetTheme(t)
		res.Message = fmt.Sprintf("Theme set to %s", t)
		return nil
	})
}

// EndSession closes the player's play session and starts a new one, so the
// next EndSession measures from now
func (s *gameServiceImpl) EndSession(ctx context.Context, playerID string) (*ActionResult, error) {
	return s.act(ctx, playerID, "end_session", func(c *session.Controller, res *ActionResult) error {
		res.PlaySeconds = c.EndSession()
		c.StartSession()
		res.Message = fmt.Sprintf("Recorded %.0f seconds of play", res.PlaySeconds)
		return nil
	})
}

// DismissError clears the player's last error
func (s *gameServiceImpl) DismissError(ctx context.Context, playerID string) (*PlayerState, error) {
	res, err := s.act(ctx, playerID, "dismiss_error", func(c *session.Controller, res *ActionResult) error {
		c.DismissError()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res.State, nil
}

// GetState returns the player's current state
func (s *gameServiceImpl) GetState(ctx context.Context, playerID string) (*PlayerState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	var st *PlayerState
	p.Do(func(c *session.Controller) {
		st = stateOf(p.ID, c)
		s.drain(p.ID)
	})
	return st, nil
}

// ListLevels lists the catalog. With a player id, each level carries that
// player's lock and completion status.
func (s *gameServiceImpl) ListLevels(ctx context.Context, playerID string) ([]*LevelInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries := s.levels.Summaries()
	out := make([]*LevelInfo, len(summaries))
	for i, sum := range summaries {
		out[i] = &LevelInfo{ID: sum.ID, Size: sum.Size, Givens: sum.Givens, Relations: sum.Relations}
	}
	if playerID == "" {
		return out, nil
	}

	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	var prog progress.Progress
	p.Do(func(c *session.Controller) { prog = c.Progress() })

	for _, level := range out {
		level.Locked = level.ID > prog.HighestUnlockedLevel
		level.Completed = prog.CompletedLevels[level.ID]
		if secs, ok := prog.CompletionTimes[level.ID]; ok {
			best := secs
			level.BestTime = &best
		}
	}
	return out, nil
}

// GetStats summarizes a player's progress
func (s *gameServiceImpl) GetStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return nil, err
	}
	var prog progress.Progress
	p.Do(func(c *session.Controller) { prog = c.Progress() })

	stats := &PlayerStats{
		PlayerID:        p.ID,
		CompletedLevels: len(prog.CompletedLevels),
		LevelCount:      s.levels.Count(),
		TotalPlayTime:   prog.TotalPlayTime,
		CompletionTimes: prog.CompletionTimes,
		Coins:           prog.Coins,
		IsPremium:       prog.IsPremium,
	}
	if len(prog.CompletionTimes) > 0 {
		total := 0.0
		for id, secs := range prog.CompletionTimes {
			total += secs
			if stats.FastestLevel == 0 || secs < stats.FastestTime || (secs == stats.FastestTime && id < stats.FastestLevel) {
				stats.FastestLevel, stats.FastestTime = id, secs
			}
		}
		stats.AverageTime = total / float64(len(prog.CompletionTimes))
	}
	return stats, nil
}
