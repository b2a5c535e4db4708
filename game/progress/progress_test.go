package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestBackends(t *testing.T) map[string]Backend {
	t.Helper()
	file, err := NewFileBackend(filepath.Join(t.TempDir(), "players"))
	if err != nil {
		t.Fatalf("Failed to create file backend: %v", err)
	}
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite backend: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   file,
		"sqlite": db,
	}
}

func TestBackends_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, backend := range createTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			store, err := backend.Open("a1b2")
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !backend.Exists("a1b2") {
				t.Error("Expected the player to exist after Open")
			}

			if _, ok, err := Get(ctx, store, Coins); err != nil || ok {
				t.Errorf("Expected unset coins, got ok=%v err=%v", ok, err)
			}

			reset := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
			if err := Set(ctx, store, Coins, 2); err != nil {
				t.Fatalf("Set coins failed: %v", err)
			}
			if err := Set(ctx, store, CompletionTimes, map[string]float64{"3": 41.5}); err != nil {
				t.Fatalf("Set completion times failed: %v", err)
			}
			if err := Set(ctx, store, LastCoinResetDate, reset); err != nil {
				t.Fatalf("Set reset date failed: %v", err)
			}
			if err := Set(ctx, store, Coins, 1); err != nil {
				t.Fatalf("Overwriting coins failed: %v", err)
			}

			coins, ok, err := Get(ctx, store, Coins)
			if err != nil || !ok || coins != 1 {
				t.Errorf("Expected 1 coin, got %d ok=%v err=%v", coins, ok, err)
			}
			times, _, _ := Get(ctx, store, CompletionTimes)
			if times["3"] != 41.5 {
				t.Errorf("Expected completion time 41.5, got %v", times)
			}
			got, _, _ := Get(ctx, store, LastCoinResetDate)
			if !got.Equal(reset) {
				t.Errorf("Expected reset date %v, got %v", reset, got)
			}
		})
	}
}

func TestBackends_ListAndDelete(t *testing.T) {
	for name, backend := range createTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"bbbb", "aaaa"} {
				if _, err := backend.Open(id); err != nil {
					t.Fatalf("Open %s failed: %v", id, err)
				}
			}

			ids, err := backend.List()
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(ids) != 2 || ids[0] != "aaaa" || ids[1] != "bbbb" {
				t.Errorf("Expected [aaaa bbbb], got %v", ids)
			}

			if err := backend.Delete("aaaa"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if backend.Exists("aaaa") {
				t.Error("Deleted player still exists")
			}
			if err := backend.Delete("aaaa"); !errors.Is(err, ErrPlayerNotFound) {
				t.Errorf("Expected ErrPlayerNotFound, got %v", err)
			}
		})
	}
}

func TestBackends_RejectInvalidPlayer(t *testing.T) {
	for name, backend := range createTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := backend.Open("../etc"); !errors.Is(err, ErrInvalidPlayer) {
				t.Errorf("Expected ErrInvalidPlayer, got %v", err)
			}
		})
	}
}

func TestFileBackend_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	store, _ := first.Open("c0de")
	if err := Set(ctx, store, CompletedLevels, []int{1, 2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second, _ := NewFileBackend(dir)
	reopened, err := second.Open("c0de")
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	levels, ok, err := Get(ctx, reopened, CompletedLevels)
	if err != nil || !ok || len(levels) != 2 {
		t.Errorf("Expected [1 2], got %v ok=%v err=%v", levels, ok, err)
	}

	if _, err := os.Stat(filepath.Join(dir, "c0de.json")); err != nil {
		t.Errorf("Expected c0de.json on disk: %v", err)
	}
}

func TestSQLite_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	if _, err := first.Open("f00d"); err != nil {
		t.Fatalf("Open player failed: %v", err)
	}
	first.Close()

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer second.Close()
	if !second.Exists("f00d") {
		t.Error("Expected the player to survive a reopen")
	}
}

func TestLoad_Defaults(t *testing.T) {
	p, err := Load(context.Background(), NewMemoryStore())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.HighestUnlockedLevel != 1 {
		t.Errorf("Expected level 1 unlocked, got %d", p.HighestUnlockedLevel)
	}
	if p.RemainingGuesses != DefaultGuesses {
		t.Errorf("Expected %d guesses, got %d", DefaultGuesses, p.RemainingGuesses)
	}
	if p.Coins != 0 || p.IsPremium || p.Theme != ThemeLight {
		t.Errorf("Unexpected defaults: %+v", p)
	}
	if !p.LastCoinResetDate.IsZero() {
		t.Error("Expected a zero reset date for a new player")
	}
}

func TestLoad_ZeroCountersUseDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	Set(ctx, s, CurrentLevel, 0)
	Set(ctx, s, RemainingGuesses, 0)

	p, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.HighestUnlockedLevel != 1 || p.RemainingGuesses != 3 {
		t.Errorf("Expected level 1 and 3 guesses, got %d and %d", p.HighestUnlockedLevel, p.RemainingGuesses)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	want := Default()
	want.HighestUnlockedLevel = 4
	want.RemainingGuesses = 2
	want.Coins = 5
	want.IsPremium = true
	want.Theme = ThemeDark
	want.CompletedLevels[1] = true
	want.CompletedLevels[3] = true
	want.CompletionTimes[3] = 12.25
	want.TotalPlayTime = 600
	want.LastCoinResetDate = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore()
	if err := Save(ctx, s, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got.HighestUnlockedLevel != 4 || got.RemainingGuesses != 2 || got.Coins != 5 {
		t.Errorf("Counters mismatch: %+v", got)
	}
	if !got.IsPremium || got.Theme != ThemeDark || got.TotalPlayTime != 600 {
		t.Errorf("Flags mismatch: %+v", got)
	}
	if ids := got.CompletedList(); len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("Expected completed [1 3], got %v", ids)
	}
	if got.CompletionTimes[3] != 12.25 {
		t.Errorf("Expected completion time 12.25, got %v", got.CompletionTimes)
	}
	if !got.LastCoinResetDate.Equal(want.LastCoinResetDate) {
		t.Errorf("Expected reset date %v, got %v", want.LastCoinResetDate, got.LastCoinResetDate)
	}
}

func TestLoad_CorruptFieldKeepsDefault(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Set(ctx, Coins.Name, []byte(`"lots"`))
	Set(ctx, s, IsPremium, true)

	p, err := Load(ctx, s)
	if err == nil {
		t.Fatal("Expected a decode error for coins")
	}
	if p.Coins != 0 {
		t.Errorf("Expected default coins, got %d", p.Coins)
	}
	if !p.IsPremium {
		t.Error("Readable fields must still load")
	}
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{BackendMemory, false},
		{BackendFile, false},
		{BackendSQLite, false},
		{"redis", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := OpenBackend(tt.kind, filepath.Join(dir, tt.kind), "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenBackend(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
			if b != nil {
				b.Close()
			}
		})
	}
}

func TestParseTheme(t *testing.T) {
	if _, err := ParseTheme("dark"); err != nil {
		t.Errorf("dark should parse: %v", err)
	}
	if _, err := ParseTheme("sepia"); err == nil {
		t.Error("Expected an error for an unknown theme")
	}
}
