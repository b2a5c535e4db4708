package catalog

import (
	"github.com/wricardo/tango-game/game/engine"
)

// LevelDefinition is one puzzle: its starting cells, relations and the canonical solution
type LevelDefinition struct {
	ID        int                                     `json:"id"`
	Size      int                                     `json:"size"`
	Initial   [][]engine.CellState                    `json:"initial"`
	Relations map[engine.CellPair]engine.RelationKind `json:"-"`
	Solution  [][]engine.CellState                    `json:"-"`
}

// Grid returns a fresh playable grid: the initial cells with the relations attached
func (l *LevelDefinition) Grid() *engine.Grid {
	return l.withCells(l.Initial)
}

// SolutionGrid returns the solution cells with the relations attached
func (l *LevelDefinition) SolutionGrid() *engine.Grid {
	return l.withCells(l.Solution)
}

func (l *LevelDefinition) withCells(cells [][]engine.CellState) *engine.Grid {
	g := &engine.Grid{
		Size:      l.Size,
		Cells:     engine.CopyCells(cells),
		Relations: make(map[engine.CellPair]engine.RelationKind, len(l.Relations)),
	}
	for pair, kind := range l.Relations {
		g.Relations[pair] = kind
	}
	return g
}

// Givens counts the non-Empty initial cells
func (l *LevelDefinition) Givens() int {
	n := 0
	for _, row := range l.Initial {
		for _, cell := range row {
			if cell != engine.Empty {
				n++
			}
		}
	}
	return n
}

// Summary is the listing entry for a level
type Summary struct {
	ID        int `json:"id"`
	Size      int `json:"size"`
	Givens    int `json:"givens"`
	Relations int `json:"relations"`
}

// Summary describes the level without revealing its solution
func (l *LevelDefinition) Summary() Summary {
	return Summary{
		ID:        l.ID,
		Size:      l.Size,
		Givens:    l.Givens(),
		Relations: len(l.Relations),
	}
}
