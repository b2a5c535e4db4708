package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/tango-game/game/engine"
	"github.com/wricardo/tango-game/game/solver"
	"github.com/wricardo/tango-game/levels"
)

// Catalog is the ordered, read-only set of levels served to players
type Catalog struct {
	levels []*LevelDefinition
	byID   map[int]*LevelDefinition
}

// Option configures a load
type Option func(*loader)

type loader struct {
	log logrus.FieldLogger
}

// WithLogger sets where load diagnostics are written
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *loader) {
		if log != nil {
			l.log = log
		}
	}
}

func newLoader(opts []Option) *loader {
	l := &loader{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Empty returns a catalog with no levels
func Empty() *Catalog {
	return &Catalog{byID: make(map[int]*LevelDefinition)}
}

// New builds a catalog from already validated levels, keeping their order
func New(defs ...*LevelDefinition) *Catalog {
	c := Empty()
	for _, def := range defs {
		if _, dup := c.byID[def.ID]; dup {
			continue
		}
		c.levels = append(c.levels, def)
		c.byID[def.ID] = def
	}
	return c
}

// Level returns the level with the given id
func (c *Catalog) Level(id int) (*LevelDefinition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// Levels returns the levels in resource order
func (c *Catalog) Levels() []*LevelDefinition {
	out := make([]*LevelDefinition, len(c.levels))
	copy(out, c.levels)
	return out
}

// Count returns the number of loaded levels
func (c *Catalog) Count() int {
	return len(c.levels)
}

// IDs returns the level ids in resource order
func (c *Catalog) IDs() []int {
	ids := make([]int, len(c.levels))
	for i, def := range c.levels {
		ids[i] = def.ID
	}
	return ids
}

// Summaries lists every level without solutions
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, len(c.levels))
	for i, def := range c.levels {
		out[i] = def.Summary()
	}
	return out
}

// LoadDefault parses the level resource bundled with the binary
func LoadDefault(opts ...Option) (*Catalog, *Report, error) {
	return Parse(levels.Default, opts...)
}

// Load reads and parses a level file. An empty path loads the bundled resource.
func Load(path string, opts ...Option) (*Catalog, *Report, error) {
	if path == "" {
		return LoadDefault(opts...)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read levels file: %w", err)
	}
	return Parse(data, opts...)
}

// LoadOrEmpty is Load for startup: a missing or unreadable resource is logged
// and yields an empty catalog instead of an error.
func LoadOrEmpty(path string, opts ...Option) (*Catalog, *Report) {
	cat, report, err := Load(path, opts...)
	if err != nil {
		newLoader(opts).log.WithError(err).WithField("path", path).Error("level resource unavailable, serving no levels")
		return Empty(), &Report{}
	}
	return cat, report
}

type rawSign struct {
	From []int  `json:"from"`
	To   []int  `json:"to"`
	Type string `json:"type"`
}

type rawLevel struct {
	Level       int        `json:"level"`
	Size        int        `json:"size"`
	InitialGrid [][]string `json:"initialGrid"`
	Signs       []rawSign  `json:"signs"`
	Solution    [][]string `json:"solution"`
}

// Parse decodes a level resource: a JSON array of level records.
//
// A record that cannot be decoded is dropped with an IssueInvalidShape.
// Records that decode but disagree with themselves (a given cell that differs
// from the solution, a solution that breaks a rule) are kept and reported.
// The returned error is only set when data is not a JSON array at all.
func Parse(data []byte, opts ...Option) (*Catalog, *Report, error) {
	l := newLoader(opts)

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("%w: level resource is not a JSON array: %v", ErrInvalidGridShape, err)
	}

	cat := Empty()
	report := &Report{}

	for i, msg := range records {
		def, issue := decodeLevel(i, msg)
		if issue == nil {
			if _, dup := cat.byID[def.ID]; dup {
				issue = &Issue{Index: i, Level: def.ID, Kind: IssueInvalidShape, Message: fmt.Sprintf("duplicate level id %d", def.ID)}
			}
		}
		if issue != nil {
			report.add(*issue)
			l.log.WithFields(logrus.Fields{
				"index": i,
				"level": issue.Level,
			}).Error(issue.Err())
			continue
		}

		for _, found := range crossCheck(i, def) {
			report.add(found)
			entry := l.log.WithFields(logrus.Fields{"level": def.ID, "kind": found.Kind})
			if found.Coord != nil {
				entry = entry.WithField("cell", found.Coord.String())
			}
			entry.Warn(found.Err())
		}

		cat.levels = append(cat.levels, def)
		cat.byID[def.ID] = def
		l.log.WithFields(logrus.Fields{"level": def.ID, "size": def.Size}).Debug("level loaded")
	}

	report.Loaded = cat.Count()
	l.log.WithFields(logrus.Fields{
		"levels": report.Loaded,
		"issues": len(report.Issues),
	}).Info("level catalog loaded")
	return cat, report, nil
}

func decodeLevel(index int, msg json.RawMessage) (*LevelDefinition, *Issue) {
	var raw rawLevel
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, shapeIssue(index, 0, "malformed record: %v", err)
	}
	id := raw.Level
	if id <= 0 {
		return nil, shapeIssue(index, id, "level id must be positive")
	}
	if raw.Size <= 0 || raw.Size%2 != 0 {
		return nil, shapeIssue(index, id, "size %d must be a positive even number", raw.Size)
	}

	initial, err := decodeCells(raw.InitialGrid, raw.Size)
	if err != nil {
		return nil, shapeIssue(index, id, "initialGrid: %v", err)
	}
	solution, err := decodeCells(raw.Solution, raw.Size)
	if err != nil {
		return nil, shapeIssue(index, id, "solution: %v", err)
	}

	relations := make(map[engine.CellPair]engine.RelationKind, len(raw.Signs))
	for n, sign := range raw.Signs {
		pair, kind, err := decodeSign(sign, raw.Size)
		if err != nil {
			return nil, shapeIssue(index, id, "sign %d: %v", n, err)
		}
		if _, dup := relations[pair]; dup {
			return nil, shapeIssue(index, id, "sign %d: duplicate relation for %s", n, pair)
		}
		relations[pair] = kind
	}

	return &LevelDefinition{
		ID:        id,
		Size:      raw.Size,
		Initial:   initial,
		Relations: relations,
		Solution:  solution,
	}, nil
}

func shapeIssue(index, level int, format string, args ...any) *Issue {
	return &Issue{
		Index:   index,
		Level:   level,
		Kind:    IssueInvalidShape,
		Message: fmt.Sprintf(format, args...),
	}
}

var cellTags = []string{engine.TagEmpty, engine.TagKindA, engine.TagKindB}

func decodeCells(rows [][]string, size int) ([][]engine.CellState, error) {
	if len(rows) != size {
		return nil, fmt.Errorf("expected %d rows, got %d", size, len(rows))
	}
	cells := engine.NewCells(size)
	for r, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), size)
		}
		for c, tag := range row {
			state, err := engine.ParseCellState(tag)
			if err != nil {
				return nil, fmt.Errorf("cell (%d, %d): %v%s", r, c, err, didYouMean(tag, cellTags))
			}
			cells[r][c] = state
		}
	}
	return cells, nil
}

func decodeSign(sign rawSign, size int) (engine.CellPair, engine.RelationKind, error) {
	if len(sign.From) != 2 || len(sign.To) != 2 {
		return engine.CellPair{}, 0, fmt.Errorf("from and to must be [row, col]")
	}
	pair := engine.NewCellPair(sign.From[0], sign.From[1], sign.To[0], sign.To[1])
	for _, at := range []engine.Coord{pair.From, pair.To} {
		if at.Row < 0 || at.Row >= size || at.Col < 0 || at.Col >= size {
			return pair, 0, fmt.Errorf("cell %s is outside the %dx%d grid", at, size, size)
		}
	}
	if pair.From == pair.To {
		return pair, 0, fmt.Errorf("relation links %s to itself", pair.From)
	}
	kind, err := engine.ParseRelationKind(sign.Type)
	if err != nil {
		return pair, 0, fmt.Errorf("%v%s", err, didYouMean(sign.Type, engine.RelationTags))
	}
	return pair, kind, nil
}

// didYouMean suggests the closest known tag for a typo
func didYouMean(tag string, known []string) string {
	best, bestDist := "", -1
	for _, candidate := range known {
		d := levenshtein.ComputeDistance(strings.ToLower(tag), strings.ToLower(candidate))
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if bestDist < 0 || bestDist > 2 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

// crossCheck compares a decoded level with itself: the solution must satisfy
// every rule and each given must agree with it
func crossCheck(index int, def *LevelDefinition) []Issue {
	var issues []Issue

	if res := engine.Check(def.SolutionGrid()); !res.OK {
		issue := Issue{
			Index:   index,
			Level:   def.ID,
			Kind:    IssueInvalidSolution,
			Rule:    res.Rule,
			Message: "solution is invalid: " + res.Reason,
		}
		if len(res.Cells) > 0 {
			at := res.Cells[0]
			issue.Coord = &at
		}
		issues = append(issues, issue)
	}

	for r := 0; r < def.Size; r++ {
		for c := 0; c < def.Size; c++ {
			given := def.Initial[r][c]
			if given == engine.Empty || given == def.Solution[r][c] {
				continue
			}
			at := engine.Coord{Row: r, Col: c}
			issues = append(issues, Issue{
				Index:   index,
				Level:   def.ID,
				Kind:    IssueInitialMismatch,
				Coord:   &at,
				Message: fmt.Sprintf("given %s at %s disagrees with solution %s", given, at, def.Solution[r][c]),
			})
		}
	}
	return issues
}

// CheckUniqueness runs the solver on every level and appends an IssueAmbiguous
// to report for each one whose givens and relations allow more than one
// completion. It returns early with ctx's error when ctx is done.
func (c *Catalog) CheckUniqueness(ctx context.Context, report *Report, opts ...Option) error {
	l := newLoader(opts)
	for i, def := range c.levels {
		n, stats, err := solver.Count(ctx, def.Grid(), 2)
		if err != nil {
			return fmt.Errorf("uniqueness check of level %d: %w", def.ID, err)
		}
		entry := l.log.WithFields(logrus.Fields{
			"level":    def.ID,
			"nodes":    stats.Nodes,
			"duration": stats.Duration,
		})
		switch n {
		case 1:
			entry.Debug("level has a unique solution")
		case 0:
			// already reported by the cross-check when the stored solution breaks a rule
			entry.Warn("level has no completion")
		default:
			issue := Issue{
				Index:   i,
				Level:   def.ID,
				Kind:    IssueAmbiguous,
				Message: "givens and relations allow more than one solution",
			}
			report.add(issue)
			entry.Warn(issue.Err())
		}
	}
	return nil
}
