package engine

import (
	"encoding/json"
	"testing"
)

func TestCellState_ToggleCycle(t *testing.T) {
	tests := []struct {
		from, to CellState
	}{
		{Empty, KindA},
		{KindA, KindB},
		{KindB, Empty},
	}

	for _, test := range tests {
		if got := test.from.Next(); got != test.to {
			t.Errorf("%s.Next(): expected %s, got %s", test.from, test.to, got)
		}
	}
}

func TestGrid_ToggleThreeTimesRestores(t *testing.T) {
	g := NewGrid(4)
	at := Coord{Row: 1, Col: 2}
	g.Set(at, KindB)

	for i := 0; i < 3; i++ {
		g.Toggle(at)
	}
	if g.At(at) != KindB {
		t.Errorf("Expected %s after three toggles, got %s", KindB, g.At(at))
	}
}

func TestParseCellState(t *testing.T) {
	tests := []struct {
		tag     string
		want    CellState
		wantErr bool
	}{
		{"empty", Empty, false},
		{"black", KindA, false},
		{"white", KindB, false},
		{"grey", Empty, true},
		{"", Empty, true},
	}

	for _, test := range tests {
		got, err := ParseCellState(test.tag)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseCellState(%q): unexpected error state %v", test.tag, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseCellState(%q): expected %s, got %s", test.tag, test.want, got)
		}
	}
}

func TestParseRelationKind_Synonyms(t *testing.T) {
	cross, err := ParseRelationKind("cross")
	if err != nil {
		t.Fatalf("cross: %v", err)
	}
	notEquals, err := ParseRelationKind("notEquals")
	if err != nil {
		t.Fatalf("notEquals: %v", err)
	}
	if cross != Opposite || notEquals != Opposite {
		t.Errorf("Expected both tags to map to Opposite, got %s and %s", cross, notEquals)
	}

	if kind, _ := ParseRelationKind("arrow"); kind != ArrowUnused {
		t.Errorf("Expected arrow to parse as ArrowUnused, got %s", kind)
	}
	if _, err := ParseRelationKind("plus"); err == nil {
		t.Error("Expected unknown relation tag to fail")
	}
}

func TestCellPair_ValueKey(t *testing.T) {
	g := NewGrid(6)
	g.SetRelation(NewCellPair(1, 1, 1, 2), Equal)

	key := CellPair{From: Coord{Row: 1, Col: 1}, To: Coord{Row: 1, Col: 2}}
	if kind, ok := g.Relations[key]; !ok || kind != Equal {
		t.Errorf("Expected lookup by an equal pair to find Equal, got %v %v", kind, ok)
	}

	reversed := NewCellPair(1, 2, 1, 1)
	if _, ok := g.Relations[reversed]; ok {
		t.Error("Pairs are ordered; the reversed pair must be a different key")
	}
}

func TestGrid_CloneIsDeep(t *testing.T) {
	g := NewGrid(4)
	g.SetRelation(NewCellPair(0, 0, 0, 1), Opposite)
	clone := g.Clone()

	clone.Set(Coord{Row: 0, Col: 0}, KindA)
	clone.SetRelation(NewCellPair(1, 0, 1, 1), Equal)

	if g.At(Coord{Row: 0, Col: 0}) != Empty {
		t.Error("Mutating the clone changed the original cells")
	}
	if len(g.Relations) != 1 {
		t.Errorf("Mutating the clone changed the original relations: %d", len(g.Relations))
	}
}

func TestGrid_EmptyCellsAndFilled(t *testing.T) {
	g := NewGrid(2)
	if g.Filled() {
		t.Error("New grid should not be filled")
	}
	if n := len(g.EmptyCells()); n != 4 {
		t.Errorf("Expected 4 empty cells, got %d", n)
	}

	g.Set(Coord{Row: 0, Col: 0}, KindA)
	g.Set(Coord{Row: 0, Col: 1}, KindB)
	g.Set(Coord{Row: 1, Col: 0}, KindB)

	empty := g.EmptyCells()
	if len(empty) != 1 || empty[0] != (Coord{Row: 1, Col: 1}) {
		t.Errorf("Expected only (1, 1) empty, got %v", empty)
	}

	g.Set(Coord{Row: 1, Col: 1}, KindA)
	if !g.Filled() {
		t.Error("Expected grid to be filled")
	}
}

func TestGrid_FirstMismatch(t *testing.T) {
	g := NewGrid(2)
	target := [][]CellState{{KindA, KindB}, {KindB, KindA}}

	at, mismatch := g.FirstMismatch(target)
	if !mismatch || at != (Coord{Row: 0, Col: 0}) {
		t.Errorf("Expected mismatch at (0, 0), got %v %v", at, mismatch)
	}

	g.Cells = CopyCells(target)
	g.Cells[1][1] = Empty
	at, mismatch = g.FirstMismatch(target)
	if !mismatch || at != (Coord{Row: 1, Col: 1}) {
		t.Errorf("Expected mismatch at (1, 1), got %v %v", at, mismatch)
	}

	g.Cells[1][1] = KindA
	if !g.Matches(target) {
		t.Error("Expected grid to match target")
	}
}

func TestGrid_PairsSorted(t *testing.T) {
	g := NewGrid(6)
	g.SetRelation(NewCellPair(3, 0, 3, 1), Equal)
	g.SetRelation(NewCellPair(0, 4, 1, 4), Opposite)
	g.SetRelation(NewCellPair(0, 4, 0, 5), Opposite)

	pairs := g.Pairs()
	want := []CellPair{
		NewCellPair(0, 4, 0, 5),
		NewCellPair(0, 4, 1, 4),
		NewCellPair(3, 0, 3, 1),
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d]: expected %s, got %s", i, want[i], pairs[i])
		}
	}
}

func TestCellState_JSONTags(t *testing.T) {
	data, err := json.Marshal([]CellState{Empty, KindA, KindB})
	if err != nil {
		t.Fatalf("Failed to marshal cells: %v", err)
	}
	if string(data) != `["empty","black","white"]` {
		t.Errorf("Unexpected encoding: %s", data)
	}

	var cells []CellState
	if err := json.Unmarshal([]byte(`["white","mauve"]`), &cells); err == nil {
		t.Error("Expected unknown tag to fail decoding")
	}
}
