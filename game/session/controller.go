package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/catalog"
	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/progress"
)

var (
	ErrLevelNotFound     = errors.New("level not found")
	ErrLevelLocked       = errors.New("level is locked")
	ErrInsufficientCoins = errors.New("not enough coins")
	ErrNoEmptyCell       = errors.New("no empty cell left")
	ErrLevelCompleted    = errors.New("level already completed")
	ErrNoActiveLevel     = errors.New("no level in progress")
	ErrOutOfRange        = errors.New("cell out of range")
	ErrIncorrect         = errors.New("solution is not correct")
)

// State is the phase of the current level attempt
type State string

const (
	StateNoLevel    State = "no_level"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Move is one undoable grid change
type Move struct {
	Coord engine.Coord     `json:"coord"`
	Prior engine.CellState `json:"prior"`
}

// SubmitResult reports the outcome of grading an attempt
type SubmitResult struct {
	Correct     bool `json:"correct"`
	GuessesLeft int  `json:"guesses_left"`
	// CoinCharged is set when this failure exhausted the guess budget
	CoinCharged bool `json:"coin_charged"`
	// Mismatch is the first cell, in row-major order, that differs from the solution
	Mismatch *engine.Coord `json:"mismatch,omitempty"`
}

// Controller runs one player's attempts at the catalog's levels.
// It is not safe for concurrent use.
type Controller struct {
	catalog  *catalog.Catalog
	store    progress.Store
	log      logrus.FieldLogger
	now      func() time.Time
	intn     func(n int) int
	loc      *time.Location
	listener Listener

	progress progress.Progress

	level       *catalog.LevelDefinition
	grid        *engine.Grid
	solution    [][]engine.CellState
	history     []Move
	guessesLeft int
	completed   bool
	levelStart  time.Time

	sessionStart time.Time
	lastErr      error
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller's logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRandom replaces the source used to pick hint cells. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(c *Controller) { c.intn = intn }
}

// WithLocation sets the time zone whose calendar days drive the daily coin reset
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithListener registers the state-change listener
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// NewController loads the player's progress from store and runs the daily
// coin reset. No level is entered yet.
func NewController(cat *catalog.Catalog, store progress.Store, opts ...Option) *Controller {
	c := &Controller{
		catalog: cat,
		store:   store,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		intn:    rand.IntN,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalog == nil {
		c.catalog = catalog.Empty()
	}

	p, err := progress.Load(context.Background(), store)
	if err != nil {
		c.log.WithError(err).Warn("failed to read some progress fields, using defaults")
	}
	c.progress = p
	c.guessesLeft = p.RemainingGuesses

	c.ResetCoinsIfNeeded()
	return c
}

// SetListener replaces the state-change listener
func (c *Controller) SetListener(l Listener) {
	c.listener = l
}

// EnterLevel starts a fresh attempt at level id. An unknown id leaves the
// controller untouched and does not set the last error.
func (c *Controller) EnterLevel(id int) error {
	def, ok := c.catalog.Level(id)
	if !ok {
		c.log.WithField("level", id).Warn("no level found for id")
		return fmt.Errorf("%w: %d", ErrLevelNotFound, id)
	}

	c.level = def
	c.grid = def.Grid()
	c.solution = engine.CopyCells(def.Solution)
	c.history = nil
	c.completed = false
	c.lastErr = nil
	c.setGuesses(progress.DefaultGuesses)
	c.levelStart = c.now()

	c.log.WithFields(logrus.Fields{"level": id, "size": def.Size}).Debug("level entered")
	c.emit(EventLevelEntered, nil)
	return nil
}

// SelectLevel enters id if the player has unlocked it
func (c *Controller) SelectLevel(id int) error {
	if id > c.progress.HighestUnlockedLevel {
		return c.fail(fmt.Errorf("%w: %d (highest unlocked is %d)", ErrLevelLocked, id, c.progress.HighestUnlockedLevel))
	}
	return c.EnterLevel(id)
}

// Resume enters the player's frontier level, falling back to the last level
// of the catalog once every level has been unlocked
func (c *Controller) Resume() error {
	err := c.EnterLevel(c.progress.HighestUnlockedLevel)
	if errors.Is(err, ErrLevelNotFound) && c.catalog.Count() > 0 {
		ids := c.catalog.IDs()
		return c.EnterLevel(ids[len(ids)-1])
	}
	return err
}

// ToggleCell cycles the cell at (row, col) through Empty, KindA and KindB
func (c *Controller) ToggleCell(row, col int) error {
	if err := c.mutable(); err != nil {
		return err
	}
	at := engine.Coord{Row: row, Col: col}
	if !c.grid.InBounds(at) {
		return c.fail(fmt.Errorf("%w: %s", ErrOutOfRange, at))
	}

	prior := c.grid.Toggle(at)
	c.history = append(c.history, Move{Coord: at, Prior: prior})
	c.emit(EventCellToggled, &at)
	return nil
}

// Undo reverts the most recent toggle or hint. With no history it does nothing.
func (c *Controller) Undo() error {
	if err := c.mutable(); err != nil {
		return err
	}
	if len(c.history) == 0 {
		return nil
	}

	last := c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]
	c.grid.Set(last.Coord, last.Prior)
	c.emit(EventUndo, &last.Coord)
	return nil
}

// Hint fills one random empty cell with its solution value, charging a coin
// unless the player is premium
func (c *Controller) Hint() (engine.Coord, error) {
	if err := c.mutable(); err != nil {
		return engine.Coord{}, err
	}
	if c.progress.Coins <= 0 && !c.progress.IsPremium {
		return engine.Coord{}, c.fail(ErrInsufficientCoins)
	}
	empty := c.grid.EmptyCells()
	if len(empty) == 0 {
		return engine.Coord{}, c.fail(ErrNoEmptyCell)
	}

	at := empty[c.intn(len(empty))]
	c.grid.Set(at, c.solution[at.Row][at.Col])
	c.history = append(c.history, Move{Coord: at, Prior: engine.Empty})
	if !c.progress.IsPremium {
		c.setCoins(c.progress.Coins - 1)
	}

	c.emit(EventHint, &at)
	return at, nil
}

// Submit grades the grid against the solution. completionSeconds, when
// given, is recorded as the level's completion time on success.
//
// A wrong attempt costs a guess. When the last guess goes, a non-premium
// player is also charged a coin and the guess budget refills. The result is
// populated either way; a wrong attempt also returns ErrIncorrect.
func (c *Controller) Submit(completionSeconds *float64) (SubmitResult, error) {
	if err := c.mutable(); err != nil {
		return SubmitResult{GuessesLeft: c.guessesLeft}, err
	}
	if !c.progress.IsPremium && c.progress.Coins <= 0 {
		return SubmitResult{GuessesLeft: c.guessesLeft}, c.fail(ErrInsufficientCoins)
	}

	id := c.level.ID
	if at, wrong := c.grid.FirstMismatch(c.solution); wrong {
		c.log.WithFields(logrus.Fields{"level": id, "row": at.Row, "col": at.Col}).Debug("submission mismatch")

		res := SubmitResult{Mismatch: &at}
		guesses := c.guessesLeft - 1
		if guesses <= 0 {
			if !c.progress.IsPremium {
				c.setCoins(c.progress.Coins - 1)
				res.CoinCharged = true
			}
			guesses = progress.DefaultGuesses
		}
		c.setGuesses(guesses)
		res.GuessesLeft = guesses

		c.emit(EventSubmitFailed, nil)
		return res, c.fail(fmt.Errorf("%w: %d guesses left", ErrIncorrect, guesses))
	}

	c.completed = true
	c.lastErr = nil

	c.progress.CompletedLevels[id] = true
	persist(c, progress.CompletedLevels, c.progress.CompletedList())
	if completionSeconds != nil {
		c.progress.CompletionTimes[id] = *completionSeconds
		persist(c, progress.CompletionTimes, progress.EncodeCompletionTimes(c.progress.CompletionTimes))
	}
	if id == c.progress.HighestUnlockedLevel {
		c.progress.HighestUnlockedLevel++
		persist(c, progress.CurrentLevel, c.progress.HighestUnlockedLevel)
	}

	c.log.WithFields(logrus.Fields{"level": id, "unlocked": c.progress.HighestUnlockedLevel}).Info("level completed")
	c.emit(EventLevelCompleted, nil)
	return SubmitResult{Correct: true, GuessesLeft: c.guessesLeft}, nil
}

// AdvanceToNextLevel enters the frontier level after a completed attempt.
// It does nothing while the current attempt is still in progress.
func (c *Controller) AdvanceToNextLevel() error {
	if c.level == nil {
		return c.fail(ErrNoActiveLevel)
	}
	if !c.completed {
		return nil
	}
	c.lastErr = nil
	return c.EnterLevel(c.progress.HighestUnlockedLevel)
}

// ResetCoinsIfNeeded restores the daily coin balance when the last reset
// happened on an earlier calendar day. It reports whether a reset happened.
func (c *Controller) ResetCoinsIfNeeded() bool {
	today := c.now().In(c.loc)
	last := c.progress.LastCoinResetDate
	if !last.IsZero() && sameDay(last.In(c.loc), today) {
		return false
	}

	c.progress.LastCoinResetDate = today
	persist(c, progress.LastCoinResetDate, today)
	c.setCoins(progress.DailyCoins)
	c.log.WithField("date", today.Format(time.DateOnly)).Debug("daily coins reset")
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// GrantCoin adds one coin, the reward for watching an ad
func (c *Controller) GrantCoin() {
	c.setCoins(c.progress.Coins + 1)
}

// PurchasePremium makes hints and submissions free
func (c *Controller) PurchasePremium() {
	if c.progress.IsPremium {
		return
	}
	c.progress.IsPremium = true
	persist(c, progress.IsPremium, true)
	c.emit(EventPremiumPurchased, nil)
}

// SetTheme stores the player's color scheme
func (c *Controller) SetTheme(theme progress.Theme) {
	c.progress.Theme = theme
	persist(c, progress.SelectedTheme, theme)
	c.emit(EventThemeChanged, nil)
}

// StartSession stamps the start of a play session and runs the daily coin
// reset. A session already in progress keeps its original stamp.
func (c *Controller) StartSession() {
	if c.sessionStart.IsZero() {
		c.sessionStart = c.now()
	}
	c.ResetCoinsIfNeeded()
}

// EndSession adds the session's elapsed time to the total play time and
// returns the seconds added. Without an active session it does nothing.
func (c *Controller) EndSession() float64 {
	if c.sessionStart.IsZero() {
		return 0
	}
	elapsed := c.now().Sub(c.sessionStart).Seconds()
	c.sessionStart = time.Time{}
	if elapsed < 0 {
		elapsed = 0
	}

	c.progress.TotalPlayTime += elapsed
	persist(c, progress.TotalPlayTime, c.progress.TotalPlayTime)
	c.emit(EventSessionEnded, nil)
	return elapsed
}

// LastError returns the failure of the most recent gameplay operation, if any
func (c *Controller) LastError() error {
	return c.lastErr
}

// DismissError clears the last error
func (c *Controller) DismissError() {
	if c.lastErr == nil {
		return
	}
	c.lastErr = nil
	c.emit(EventErrorDismissed, nil)
}

func (c *Controller) mutable() error {
	if c.level == nil {
		return c.fail(ErrNoActiveLevel)
	}
	if c.completed {
		return c.fail(ErrLevelCompleted)
	}
	return nil
}

func (c *Controller) fail(err error) error {
	c.lastErr = err
	c.emit(EventError, nil)
	return err
}

func (c *Controller) setCoins(n int) {
	if n < 0 {
		n = 0
	}
	c.progress.Coins = n
	persist(c, progress.Coins, n)
	c.emit(EventCoinsChanged, nil)
}

func (c *Controller) setGuesses(n int) {
	c.guessesLeft = n
	c.progress.RemainingGuesses = n
	persist(c, progress.RemainingGuesses, n)
}

// persist writes one field. A failed write is logged and otherwise ignored.
func persist[T any](c *Controller, key progress.Key[T], v T) {
	if c.store == nil {
		return
	}
	if err := progress.Set(context.Background(), c.store, key, v); err != nil {
		c.log.WithError(err).WithField("key", key.Name).Warn("failed to persist progress")
	}
}

func (c *Controller) emit(kind EventKind, at *engine.Coord) {
	if c.listener == nil {
		return
	}
	ev := Event{Kind: kind, Coord: at}
	if c.level != nil {
		ev.Level = c.level.ID
	}
	c.listener(ev)
}
