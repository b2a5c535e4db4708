package engine

import (
	"fmt"
	"sort"
)

// Grid is an N×N board of cells plus the relations declared between cell pairs
type Grid struct {
	Size      int                       `json:"size"`
	Cells     [][]CellState             `json:"cells"`
	Relations map[CellPair]RelationKind `json:"-"`
}

// NewGrid creates an empty size×size grid with no relations
func NewGrid(size int) *Grid {
	return &Grid{
		Size:      size,
		Cells:     NewCells(size),
		Relations: make(map[CellPair]RelationKind),
	}
}

// NewCells allocates a size×size matrix of Empty cells
func NewCells(size int) [][]CellState {
	cells := make([][]CellState, size)
	for i := range cells {
		cells[i] = make([]CellState, size)
	}
	return cells
}

// CopyCells returns a deep copy of a cell matrix
func CopyCells(cells [][]CellState) [][]CellState {
	out := make([][]CellState, len(cells))
	for i, row := range cells {
		out[i] = append([]CellState(nil), row...)
	}
	return out
}

// FromCells builds a grid over a copy of cells. The matrix must be square.
func FromCells(cells [][]CellState) (*Grid, error) {
	size := len(cells)
	for r, row := range cells {
		if len(row) != size {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), size)
		}
	}
	return &Grid{
		Size:      size,
		Cells:     CopyCells(cells),
		Relations: make(map[CellPair]RelationKind),
	}, nil
}

// Clone returns a deep copy of the grid
func (g *Grid) Clone() *Grid {
	relations := make(map[CellPair]RelationKind, len(g.Relations))
	for pair, kind := range g.Relations {
		relations[pair] = kind
	}
	return &Grid{
		Size:      g.Size,
		Cells:     CopyCells(g.Cells),
		Relations: relations,
	}
}

// InBounds reports whether c lies on the grid
func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.Size && c.Col >= 0 && c.Col < g.Size
}

// At returns the state of the cell at c
func (g *Grid) At(c Coord) CellState {
	return g.Cells[c.Row][c.Col]
}

// Set stores state at c
func (g *Grid) Set(c Coord, state CellState) {
	g.Cells[c.Row][c.Col] = state
}

// Toggle advances the cell at c one step through the toggle cycle and returns its previous state
func (g *Grid) Toggle(c Coord) CellState {
	prev := g.Cells[c.Row][c.Col]
	g.Cells[c.Row][c.Col] = prev.Next()
	return prev
}

// SetRelation declares a relation between two cells
func (g *Grid) SetRelation(pair CellPair, kind RelationKind) {
	if g.Relations == nil {
		g.Relations = make(map[CellPair]RelationKind)
	}
	g.Relations[pair] = kind
}

// Pairs returns the relation keys in a stable order
func (g *Grid) Pairs() []CellPair {
	pairs := make([]CellPair, 0, len(g.Relations))
	for pair := range g.Relations {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	return pairs
}

// RelationList returns the relations in the same order as Pairs
func (g *Grid) RelationList() []Relation {
	pairs := g.Pairs()
	out := make([]Relation, len(pairs))
	for i, pair := range pairs {
		out[i] = Relation{Pair: pair, Kind: g.Relations[pair]}
	}
	return out
}

// EmptyCells lists every Empty cell in row-major order
func (g *Grid) EmptyCells() []Coord {
	var empty []Coord
	for r := 0; r < g.Size; r++ {
		for c := 0; c < g.Size; c++ {
			if g.Cells[r][c] == Empty {
				empty = append(empty, Coord{Row: r, Col: c})
			}
		}
	}
	return empty
}

// Filled reports whether no cell is Empty
func (g *Grid) Filled() bool {
	for _, row := range g.Cells {
		for _, cell := range row {
			if cell == Empty {
				return false
			}
		}
	}
	return true
}

// FirstMismatch compares the grid against cells in row-major order and returns the first
// coordinate that differs. ok is false when the two matrices are identical.
func (g *Grid) FirstMismatch(cells [][]CellState) (Coord, bool) {
	for r := 0; r < g.Size; r++ {
		for c := 0; c < g.Size; c++ {
			if r >= len(cells) || c >= len(cells[r]) || g.Cells[r][c] != cells[r][c] {
				return Coord{Row: r, Col: c}, true
			}
		}
	}
	return Coord{}, false
}

// Matches reports whether the grid's cells equal cells exactly
func (g *Grid) Matches(cells [][]CellState) bool {
	_, mismatch := g.FirstMismatch(cells)
	return !mismatch
}

// CountKind counts cells of kind in row r (byRow) or column r
func (g *Grid) CountKind(index int, byRow bool, kind CellState) int {
	count := 0
	for i := 0; i < g.Size; i++ {
		cell := g.Cells[index][i]
		if !byRow {
			cell = g.Cells[i][index]
		}
		if cell == kind {
			count++
		}
	}
	return count
}
