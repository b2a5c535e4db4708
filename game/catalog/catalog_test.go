package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/engine"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// solved4 is a valid 4x4 board, A=black B=white
var solved4 = []string{"ABBA", "BAAB", "ABAB", "BABA"}

func tagRows(rows []string, keep func(r, c int) bool) string {
	var out []string
	for r, row := range rows {
		var cells []string
		for c, ch := range row {
			tag := "empty"
			if keep == nil || keep(r, c) {
				switch ch {
				case 'A':
					tag = "black"
				case 'B':
					tag = "white"
				}
			}
			cells = append(cells, fmt.Sprintf("%q", tag))
		}
		out = append(out, "["+strings.Join(cells, ",")+"]")
	}
	return "[" + strings.Join(out, ",") + "]"
}

func levelRecord(id int, initial, solution string, signs string) string {
	return fmt.Sprintf(`{"level":%d,"size":4,"initialGrid":%s,"signs":%s,"solution":%s}`, id, initial, signs, solution)
}

func createTestResource(records ...string) []byte {
	return []byte("[" + strings.Join(records, ",") + "]")
}

func diagonalGivens(r, c int) bool { return r == c }

func TestLoadDefault(t *testing.T) {
	cat, report, err := LoadDefault(WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to load bundled levels: %v", err)
	}
	if cat.Count() != 10 {
		t.Errorf("Expected 10 levels, got %d", cat.Count())
	}
	if !report.Clean() {
		t.Errorf("Expected no load issues, got %+v", report.Issues)
	}
	ids := cat.IDs()
	for i, id := range ids {
		if id != i+1 {
			t.Errorf("Expected level ids in order 1..10, got %v", ids)
			break
		}
	}

	def, ok := cat.Level(9)
	if !ok {
		t.Fatal("Level 9 not found")
	}
	if def.Size != 8 {
		t.Errorf("Expected level 9 to be 8x8, got %d", def.Size)
	}
	if res := engine.Check(def.SolutionGrid()); !res.OK {
		t.Errorf("Level 9 solution should be valid: %s", res.Reason)
	}
}

func TestLoadDefault_SolutionsAreUnique(t *testing.T) {
	cat, report, err := LoadDefault(WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Failed to load bundled levels: %v", err)
	}
	if err := cat.CheckUniqueness(context.Background(), report, WithLogger(quietLogger())); err != nil {
		t.Fatalf("Uniqueness check failed: %v", err)
	}
	if n := report.Count(IssueAmbiguous); n != 0 {
		t.Errorf("Expected every bundled level to be unique, %d are ambiguous", n)
	}
}

func TestParse_ValidRecord(t *testing.T) {
	data := createTestResource(levelRecord(1,
		tagRows(solved4, diagonalGivens),
		tagRows(solved4, nil),
		`[{"from":[0,1],"to":[0,2],"type":"equals"},{"from":[1,0],"to":[1,1],"type":"notEquals"},{"from":[2,2],"to":[2,3],"type":"arrow"}]`,
	))

	cat, report, err := Parse(data, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("Expected a clean report, got %+v", report.Issues)
	}

	def, ok := cat.Level(1)
	if !ok {
		t.Fatal("Level 1 not found")
	}
	if def.Givens() != 4 {
		t.Errorf("Expected 4 givens, got %d", def.Givens())
	}
	if got := def.Relations[engine.NewCellPair(1, 0, 1, 1)]; got != engine.Opposite {
		t.Errorf("Expected notEquals to decode as Opposite, got %v", got)
	}
	if got := def.Relations[engine.NewCellPair(2, 2, 2, 3)]; got != engine.ArrowUnused {
		t.Errorf("Expected arrow to be kept, got %v", got)
	}

	g := def.Grid()
	g.Set(engine.Coord{Row: 0, Col: 1}, engine.KindB)
	if def.Initial[0][1] != engine.Empty {
		t.Error("Grid must return a copy of the initial cells")
	}
}

func TestParse_RejectsMalformedRecords(t *testing.T) {
	good := tagRows(solved4, nil)
	tests := []struct {
		name    string
		record  string
		wantMsg string
	}{
		{
			name:    "unknown cell tag",
			record:  strings.Replace(levelRecord(2, good, good, `[]`), `"white"`, `"whte"`, 1),
			wantMsg: `did you mean "white"`,
		},
		{
			name:    "unknown sign type",
			record:  levelRecord(2, good, good, `[{"from":[0,0],"to":[0,1],"type":"equls"}]`),
			wantMsg: `did you mean "equals"`,
		},
		{
			name:    "sign out of bounds",
			record:  levelRecord(2, good, good, `[{"from":[0,3],"to":[0,4],"type":"cross"}]`),
			wantMsg: "outside",
		},
		{
			name:    "short row",
			record:  levelRecord(2, `[["black"],["white"],["black"],["white"]]`, good, `[]`),
			wantMsg: "row 0 has 1 cells",
		},
		{
			name:    "odd size",
			record:  `{"level":2,"size":3,"initialGrid":[],"signs":[],"solution":[]}`,
			wantMsg: "positive even",
		},
		{
			name:    "duplicate sign",
			record:  levelRecord(2, good, good, `[{"from":[0,0],"to":[0,1],"type":"cross"},{"from":[0,0],"to":[0,1],"type":"equals"}]`),
			wantMsg: "duplicate relation",
		},
		{
			name:    "wrong field type",
			record:  `{"level":"two","size":4}`,
			wantMsg: "malformed record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := createTestResource(levelRecord(1, good, good, `[]`), tt.record)
			cat, report, err := Parse(data, WithLogger(quietLogger()))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if cat.Count() != 1 {
				t.Errorf("Expected only the good level to load, got %v", cat.IDs())
			}
			if !report.HasErrors() {
				t.Fatal("Expected the report to carry an error")
			}
			issue := report.Issues[0]
			if issue.Index != 1 {
				t.Errorf("Expected issue for record 1, got %d", issue.Index)
			}
			if !errors.Is(issue.Err(), ErrInvalidGridShape) {
				t.Errorf("Expected ErrInvalidGridShape, got %v", issue.Err())
			}
			if !strings.Contains(issue.Message, tt.wantMsg) {
				t.Errorf("Expected message to contain %q, got %q", tt.wantMsg, issue.Message)
			}
		})
	}
}

func TestParse_DuplicateLevelID(t *testing.T) {
	good := tagRows(solved4, nil)
	data := createTestResource(levelRecord(1, good, good, `[]`), levelRecord(1, good, good, `[]`))

	cat, report, err := Parse(data, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cat.Count() != 1 {
		t.Errorf("Expected the duplicate to be dropped, got %d levels", cat.Count())
	}
	if report.Count(IssueInvalidShape) != 1 {
		t.Errorf("Expected one shape issue, got %+v", report.Issues)
	}
}

func TestParse_IntegrityMismatchIsKept(t *testing.T) {
	// (0,0) is black in the solution; give it as white
	initial := strings.Replace(tagRows(solved4, diagonalGivens), `"black"`, `"white"`, 1)
	data := createTestResource(levelRecord(5, initial, tagRows(solved4, nil), `[]`))

	cat, report, err := Parse(data, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := cat.Level(5); !ok {
		t.Fatal("A level with a mismatch must still load")
	}
	if report.HasErrors() {
		t.Error("A mismatch must not count as a rejection")
	}

	issues := report.ForLevel(5)
	if len(issues) != 1 || issues[0].Kind != IssueInitialMismatch {
		t.Fatalf("Expected one initial mismatch, got %+v", issues)
	}
	if issues[0].Coord == nil || *issues[0].Coord != (engine.Coord{Row: 0, Col: 0}) {
		t.Errorf("Expected mismatch at (0, 0), got %v", issues[0].Coord)
	}
	if !errors.Is(issues[0].Err(), ErrIntegrityMismatch) {
		t.Errorf("Expected ErrIntegrityMismatch, got %v", issues[0].Err())
	}
}

func TestParse_InvalidSolutionIsKept(t *testing.T) {
	// relation contradicts the solution: (0,0)=black, (0,1)=white
	data := createTestResource(levelRecord(3,
		tagRows(solved4, diagonalGivens),
		tagRows(solved4, nil),
		`[{"from":[0,0],"to":[0,1],"type":"equals"}]`,
	))

	cat, report, err := Parse(data, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cat.Count() != 1 {
		t.Fatal("Expected the level to load despite an invalid solution")
	}
	if report.Count(IssueInvalidSolution) != 1 {
		t.Fatalf("Expected one invalid solution issue, got %+v", report.Issues)
	}
	if got := report.Issues[0].Rule; got != engine.RuleRelation {
		t.Errorf("Expected relation rule, got %q", got)
	}
}

func TestCheckUniqueness_FlagsAmbiguousLevel(t *testing.T) {
	none := func(r, c int) bool { return false }
	data := createTestResource(levelRecord(1, tagRows(solved4, none), tagRows(solved4, nil), `[]`))

	cat, report, err := Parse(data, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := cat.CheckUniqueness(context.Background(), report, WithLogger(quietLogger())); err != nil {
		t.Fatalf("CheckUniqueness failed: %v", err)
	}
	if report.Count(IssueAmbiguous) != 1 {
		t.Errorf("Expected an empty board to be flagged ambiguous, got %+v", report.Issues)
	}
}

func TestParse_NotAnArray(t *testing.T) {
	_, _, err := Parse([]byte(`{"level":1}`), WithLogger(quietLogger()))
	if !errors.Is(err, ErrInvalidGridShape) {
		t.Errorf("Expected ErrInvalidGridShape, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	good := tagRows(solved4, nil)
	path := filepath.Join(t.TempDir(), "levels.json")
	if err := os.WriteFile(path, createTestResource(levelRecord(7, good, good, `[]`)), 0644); err != nil {
		t.Fatalf("Failed to write levels: %v", err)
	}

	cat, _, err := Load(path, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ids := cat.IDs(); len(ids) != 1 || ids[0] != 7 {
		t.Errorf("Expected [7], got %v", ids)
	}
}

func TestLoadOrEmpty_MissingFile(t *testing.T) {
	cat, report := LoadOrEmpty(filepath.Join(t.TempDir(), "missing.json"), WithLogger(quietLogger()))
	if cat == nil || report == nil {
		t.Fatal("Expected an empty catalog and report, got nil")
	}
	if cat.Count() != 0 {
		t.Errorf("Expected no levels, got %d", cat.Count())
	}
}
