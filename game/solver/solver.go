// Package solver completes partially filled Tango grids by backtracking.
//
// It is used to check that a level has exactly one solution, which the game
// relies on when it grades an attempt by comparing it with the stored answer.
package solver

import (
	"context"
	"time"

	"github.com/wricardo/tango-game/game/engine"
)

// Stats captures the work done by a search
type Stats struct {
	Nodes    int           `json:"nodes"`
	Duration time.Duration `json:"duration"`
}

// Solve returns the first completion of g found in row-major search order.
// ok is false when the grid cannot be completed.
func Solve(ctx context.Context, g *engine.Grid) (*engine.Grid, bool, Stats, error) {
	var found *engine.Grid
	_, stats, err := search(ctx, g, 1, func(s *engine.Grid) { found = s.Clone() })
	if err != nil {
		return nil, false, stats, err
	}
	return found, found != nil, stats, nil
}

// Count returns the number of completions of g, stopping once limit is reached.
// A limit of 2 is enough to decide uniqueness.
func Count(ctx context.Context, g *engine.Grid, limit int) (int, Stats, error) {
	return search(ctx, g, limit, nil)
}

// Unique reports whether g has exactly one completion
func Unique(ctx context.Context, g *engine.Grid) (bool, Stats, error) {
	n, stats, err := Count(ctx, g, 2)
	return n == 1, stats, err
}

func search(ctx context.Context, g *engine.Grid, limit int, onSolution func(*engine.Grid)) (int, Stats, error) {
	start := time.Now()
	stats := Stats{}
	if res := engine.Check(g); res.Rule == engine.RuleShape {
		return 0, stats, nil
	}

	work := g.Clone()
	related := relationIndex(work)

	for r := 0; r < work.Size; r++ {
		for c := 0; c < work.Size; c++ {
			at := engine.Coord{Row: r, Col: c}
			if work.At(at) != engine.Empty && !consistent(work, at, related) {
				stats.Duration = time.Since(start)
				return 0, stats, nil
			}
		}
	}

	empty := work.EmptyCells()
	count := 0

	var dfs func(i int) bool
	dfs = func(i int) bool {
		if ctx.Err() != nil || count >= limit {
			return true
		}
		if i == len(empty) {
			if engine.Check(work).OK {
				count++
				if onSolution != nil {
					onSolution(work)
				}
			}
			return count >= limit
		}
		at := empty[i]
		for _, kind := range []engine.CellState{engine.KindA, engine.KindB} {
			stats.Nodes++
			work.Set(at, kind)
			if consistent(work, at, related) && dfs(i+1) {
				return true
			}
		}
		work.Set(at, engine.Empty)
		return false
	}
	dfs(0)

	stats.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return count, stats, err
	}
	return count, stats, nil
}

func relationIndex(g *engine.Grid) map[engine.Coord][]engine.CellPair {
	index := make(map[engine.Coord][]engine.CellPair)
	for _, pair := range g.Pairs() {
		index[pair.From] = append(index[pair.From], pair)
		index[pair.To] = append(index[pair.To], pair)
	}
	return index
}

// consistent checks only the constraints touching at, ignoring windows and
// relations that still contain Empty cells
func consistent(g *engine.Grid, at engine.Coord, related map[engine.Coord][]engine.CellPair) bool {
	kind := g.At(at)
	half := g.Size / 2

	if g.CountKind(at.Row, true, kind) > half || g.CountKind(at.Col, false, kind) > half {
		return false
	}

	for offset := -2; offset <= 0; offset++ {
		if runOf(g, at.Row, at.Col+offset, 0, 1, kind) || runOf(g, at.Row+offset, at.Col, 1, 0, kind) {
			return false
		}
	}

	for _, pair := range related[at] {
		a, b := g.At(pair.From), g.At(pair.To)
		if a == engine.Empty || b == engine.Empty {
			continue
		}
		switch g.Relations[pair] {
		case engine.Equal:
			if a != b {
				return false
			}
		case engine.Opposite:
			if a == b {
				return false
			}
		}
	}
	return true
}

// runOf reports whether the three cells starting at (r, c) stepping (dr, dc) all hold kind
func runOf(g *engine.Grid, r, c, dr, dc int, kind engine.CellState) bool {
	for i := 0; i < 3; i++ {
		at := engine.Coord{Row: r + i*dr, Col: c + i*dc}
		if !g.InBounds(at) || g.At(at) != kind {
			return false
		}
	}
	return true
}
