package engine

import (
	"encoding/json"
	"fmt"
)

// CellState is the content of a single grid cell
type CellState int

const (
	Empty CellState = iota
	KindA
	KindB
)

// Resource tags used by level files and the JSON views
const (
	TagEmpty = "empty"
	TagKindA = "black"
	TagKindB = "white"
)

// Next returns the state that follows s in the toggle cycle Empty -> KindA -> KindB -> Empty
func (s CellState) Next() CellState {
	switch s {
	case Empty:
		return KindA
	case KindA:
		return KindB
	default:
		return Empty
	}
}

// Tag returns the resource tag for s
func (s CellState) Tag() string {
	switch s {
	case KindA:
		return TagKindA
	case KindB:
		return TagKindB
	default:
		return TagEmpty
	}
}

func (s CellState) String() string {
	return s.Tag()
}

// ParseCellState converts a resource tag into a CellState.
// Unknown tags are an error; they are never coerced to Empty.
func ParseCellState(tag string) (CellState, error) {
	switch tag {
	case TagEmpty:
		return Empty, nil
	case TagKindA:
		return KindA, nil
	case TagKindB:
		return KindB, nil
	}
	return Empty, fmt.Errorf("unknown cell tag %q", tag)
}

// MarshalJSON encodes the cell as its resource tag
func (s CellState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tag())
}

// UnmarshalJSON decodes a resource tag
func (s *CellState) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	parsed, err := ParseCellState(tag)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RelationKind is a pairwise constraint between two cells
type RelationKind int

const (
	Equal RelationKind = iota
	Opposite
	// ArrowUnused is accepted from level data but never enforced
	ArrowUnused
)

// Relation tags accepted in level data. TagCross and TagNotEquals both mean Opposite.
const (
	TagEquals    = "equals"
	TagCross     = "cross"
	TagNotEquals = "notEquals"
	TagArrow     = "arrow"
)

// RelationTags lists every accepted relation tag
var RelationTags = []string{TagEquals, TagCross, TagNotEquals, TagArrow}

// ParseRelationKind converts a relation tag into a RelationKind
func ParseRelationKind(tag string) (RelationKind, error) {
	switch tag {
	case TagEquals:
		return Equal, nil
	case TagCross, TagNotEquals:
		return Opposite, nil
	case TagArrow:
		return ArrowUnused, nil
	}
	return Equal, fmt.Errorf("unknown relation tag %q", tag)
}

// Tag returns the canonical tag for k
func (k RelationKind) Tag() string {
	switch k {
	case Opposite:
		return TagCross
	case ArrowUnused:
		return TagArrow
	default:
		return TagEquals
	}
}

func (k RelationKind) String() string {
	return k.Tag()
}

// MarshalJSON encodes the relation as its canonical tag
func (k RelationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Tag())
}

// Coord is a row/column position on the grid
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// Less orders coordinates row-major
func (c Coord) Less(o Coord) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// CellPair is the ordered pair of cells a relation applies to.
// It is comparable and used directly as a map key.
type CellPair struct {
	From Coord `json:"from"`
	To   Coord `json:"to"`
}

// NewCellPair builds a pair from raw coordinates
func NewCellPair(r1, c1, r2, c2 int) CellPair {
	return CellPair{From: Coord{Row: r1, Col: c1}, To: Coord{Row: r2, Col: c2}}
}

func (p CellPair) String() string {
	return fmt.Sprintf("%s->%s", p.From, p.To)
}

// Less orders pairs by From, then To
func (p CellPair) Less(o CellPair) bool {
	if p.From != o.From {
		return p.From.Less(o.From)
	}
	return p.To.Less(o.To)
}

// Relation is a CellPair together with its kind
type Relation struct {
	Pair CellPair     `json:"pair"`
	Kind RelationKind `json:"kind"`
}
