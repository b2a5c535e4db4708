package progress

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"
)

const (
	// DefaultGuesses is the guess budget of a fresh attempt
	DefaultGuesses = 3
	// DailyCoins is the balance restored by the daily reset
	DailyCoins = 3
	// FirstLevel is unlocked for every new player
	FirstLevel = 1
)

// Progress is everything persisted about a player
type Progress struct {
	// HighestUnlockedLevel is stored under currentLevel
	HighestUnlockedLevel int             `json:"highest_unlocked_level"`
	RemainingGuesses     int             `json:"remaining_guesses"`
	Coins                int             `json:"coins"`
	IsPremium            bool            `json:"is_premium"`
	Theme                Theme           `json:"theme"`
	CompletedLevels      map[int]bool    `json:"completed_levels"`
	CompletionTimes      map[int]float64 `json:"completion_times"`
	TotalPlayTime        float64         `json:"total_play_time"`
	LastCoinResetDate    time.Time       `json:"last_coin_reset_date"`
}

// Default returns the progress of a player who has never played
func Default() Progress {
	return Progress{
		HighestUnlockedLevel: FirstLevel,
		RemainingGuesses:     DefaultGuesses,
		Theme:                ThemeLight,
		CompletedLevels:      make(map[int]bool),
		CompletionTimes:      make(map[int]float64),
	}
}

// Clone returns a deep copy
func (p Progress) Clone() Progress {
	out := p
	out.CompletedLevels = make(map[int]bool, len(p.CompletedLevels))
	for id := range p.CompletedLevels {
		out.CompletedLevels[id] = true
	}
	out.CompletionTimes = make(map[int]float64, len(p.CompletionTimes))
	for id, secs := range p.CompletionTimes {
		out.CompletionTimes[id] = secs
	}
	return out
}

// CompletedList returns the completed level ids in ascending order
func (p Progress) CompletedList() []int {
	ids := make([]int, 0, len(p.CompletedLevels))
	for id := range p.CompletedLevels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Load reads every field from s. Missing fields keep their defaults, and a zero
// currentLevel or remainingGuesses is treated as missing. Unreadable fields also
// keep their defaults; their errors are joined into the returned error.
func Load(ctx context.Context, s Store) (Progress, error) {
	p := Default()
	var errs []error

	if v, ok, err := Get(ctx, s, CurrentLevel); err != nil {
		errs = append(errs, err)
	} else if ok && v > 0 {
		p.HighestUnlockedLevel = v
	}
	if v, ok, err := Get(ctx, s, RemainingGuesses); err != nil {
		errs = append(errs, err)
	} else if ok && v > 0 {
		p.RemainingGuesses = v
	}
	if v, ok, err := Get(ctx, s, Coins); err != nil {
		errs = append(errs, err)
	} else if ok {
		p.Coins = v
	}
	if v, ok, err := Get(ctx, s, IsPremium); err != nil {
		errs = append(errs, err)
	} else if ok {
		p.IsPremium = v
	}
	if v, ok, err := Get(ctx, s, SelectedTheme); err != nil {
		errs = append(errs, err)
	} else if ok {
		if theme, err := ParseTheme(string(v)); err == nil {
			p.Theme = theme
		}
	}
	if v, ok, err := Get(ctx, s, CompletedLevels); err != nil {
		errs = append(errs, err)
	} else if ok {
		for _, id := range v {
			p.CompletedLevels[id] = true
		}
	}
	if v, ok, err := Get(ctx, s, TotalPlayTime); err != nil {
		errs = append(errs, err)
	} else if ok {
		p.TotalPlayTime = v
	}
	if v, ok, err := Get(ctx, s, CompletionTimes); err != nil {
		errs = append(errs, err)
	} else if ok {
		for key, secs := range v {
			id, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			p.CompletionTimes[id] = secs
		}
	}
	if v, ok, err := Get(ctx, s, LastCoinResetDate); err != nil {
		errs = append(errs, err)
	} else if ok {
		p.LastCoinResetDate = v
	}

	return p, errors.Join(errs...)
}

// Save writes every field of p to s
func Save(ctx context.Context, s Store, p Progress) error {
	return errors.Join(
		Set(ctx, s, CurrentLevel, p.HighestUnlockedLevel),
		Set(ctx, s, RemainingGuesses, p.RemainingGuesses),
		Set(ctx, s, Coins, p.Coins),
		Set(ctx, s, IsPremium, p.IsPremium),
		Set(ctx, s, SelectedTheme, p.Theme),
		Set(ctx, s, CompletedLevels, p.CompletedList()),
		Set(ctx, s, TotalPlayTime, p.TotalPlayTime),
		Set(ctx, s, CompletionTimes, EncodeCompletionTimes(p.CompletionTimes)),
		Set(ctx, s, LastCoinResetDate, p.LastCoinResetDate),
	)
}

// EncodeCompletionTimes converts level ids to the string keys used on disk
func EncodeCompletionTimes(times map[int]float64) map[string]float64 {
	out := make(map[string]float64, len(times))
	for id, secs := range times {
		out[strconv.Itoa(id)] = secs
	}
	return out
}
