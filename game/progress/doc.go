// Package progress persists what a player has achieved between runs.
//
// A Store is a flat key-value view of one player's progress. Each field is
// written on its own, right after the change it records, so a Store never
// needs to support transactions:
//
//	currentLevel       int                 highest unlocked level
//	remainingGuesses   int                 guesses left on the current attempt
//	coins              int
//	isPremium          bool
//	selectedTheme      "light" | "dark"
//	completedLevels    []int
//	totalPlayTime      float64 seconds
//	completionTimes    map[level]seconds
//	lastCoinResetDate  time of the last daily coin reset
//
// Typed access goes through Key:
//
//	coins, ok, err := progress.Get(ctx, store, progress.Coins)
//	err = progress.Set(ctx, store, progress.Coins, coins-1)
//
// A Backend hands out one Store per player. Three are provided: MemoryBackend,
// FileBackend (one JSON document per player) and SQLiteBackend (a single
// database whose schema is migrated on open).
package progress
