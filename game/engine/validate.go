package engine

import "fmt"

// Rule identifies which constraint a grid violates
type Rule string

const (
	RuleNone      Rule = ""
	RuleShape     Rule = "shape"
	RuleComplete  Rule = "complete"
	RuleTripleRun Rule = "triple_run"
	RuleBalance   Rule = "balance"
	RuleRelation  Rule = "relation"
)

// ValidMessage is the reason returned for a grid that passes every rule
const ValidMessage = "valid"

// Result is the structured outcome of Check
type Result struct {
	OK     bool    `json:"ok"`
	Rule   Rule    `json:"rule,omitempty"`
	Reason string  `json:"reason"`
	Cells  []Coord `json:"cells,omitempty"`
}

// Validate reports whether g is a complete, legal solution and, if not, why.
// It is the two-value form of Check.
func Validate(g *Grid) (bool, string) {
	res := Check(g)
	return res.OK, res.Reason
}

// Check applies the rules in fixed precedence and returns the first violation:
// shape, completeness, triple runs (rows then columns), balance (rows then columns),
// then relations in Pairs order.
func Check(g *Grid) Result {
	if res, failed := checkShape(g); failed {
		return res
	}
	if res, failed := checkComplete(g); failed {
		return res
	}
	if res, failed := checkTripleRuns(g); failed {
		return res
	}
	if res, failed := checkBalance(g); failed {
		return res
	}
	if res, failed := checkRelations(g); failed {
		return res
	}
	return Result{OK: true, Reason: ValidMessage}
}

func fail(rule Rule, cells []Coord, format string, args ...any) (Result, bool) {
	return Result{Rule: rule, Reason: fmt.Sprintf(format, args...), Cells: cells}, true
}

func checkShape(g *Grid) (Result, bool) {
	if g == nil || g.Size <= 0 {
		return fail(RuleShape, nil, "grid size must be positive")
	}
	if g.Size%2 != 0 {
		return fail(RuleShape, nil, "grid size %d must be even", g.Size)
	}
	if len(g.Cells) != g.Size {
		return fail(RuleShape, nil, "grid has %d rows, expected %d", len(g.Cells), g.Size)
	}
	for r, row := range g.Cells {
		if len(row) != g.Size {
			return fail(RuleShape, nil, "row %d has %d cells, expected %d", r, len(row), g.Size)
		}
	}
	for _, pair := range g.Pairs() {
		if !g.InBounds(pair.From) || !g.InBounds(pair.To) {
			return fail(RuleShape, []Coord{pair.From, pair.To}, "relation %s is out of bounds", pair)
		}
	}
	return Result{}, false
}

func checkComplete(g *Grid) (Result, bool) {
	for r := 0; r < g.Size; r++ {
		for c := 0; c < g.Size; c++ {
			if g.Cells[r][c] == Empty {
				at := Coord{Row: r, Col: c}
				return fail(RuleComplete, []Coord{at}, "cell %s is empty", at)
			}
		}
	}
	return Result{}, false
}

func checkTripleRuns(g *Grid) (Result, bool) {
	for r := 0; r < g.Size; r++ {
		for c := 0; c+2 < g.Size; c++ {
			v := g.Cells[r][c]
			if v != Empty && v == g.Cells[r][c+1] && v == g.Cells[r][c+2] {
				cells := []Coord{{r, c}, {r, c + 1}, {r, c + 2}}
				return fail(RuleTripleRun, cells, "row %d has three %s cells in a row starting at %s", r, v, cells[0])
			}
		}
	}
	for c := 0; c < g.Size; c++ {
		for r := 0; r+2 < g.Size; r++ {
			v := g.Cells[r][c]
			if v != Empty && v == g.Cells[r+1][c] && v == g.Cells[r+2][c] {
				cells := []Coord{{r, c}, {r + 1, c}, {r + 2, c}}
				return fail(RuleTripleRun, cells, "column %d has three %s cells in a row starting at %s", c, v, cells[0])
			}
		}
	}
	return Result{}, false
}

func checkBalance(g *Grid) (Result, bool) {
	half := g.Size / 2
	for r := 0; r < g.Size; r++ {
		a, b := g.CountKind(r, true, KindA), g.CountKind(r, true, KindB)
		if a != half || b != half {
			return fail(RuleBalance, nil, "row %d has %d %s and %d %s, expected %d of each", r, a, KindA, b, KindB, half)
		}
	}
	for c := 0; c < g.Size; c++ {
		a, b := g.CountKind(c, false, KindA), g.CountKind(c, false, KindB)
		if a != half || b != half {
			return fail(RuleBalance, nil, "column %d has %d %s and %d %s, expected %d of each", c, a, KindA, b, KindB, half)
		}
	}
	return Result{}, false
}

func checkRelations(g *Grid) (Result, bool) {
	for _, pair := range g.Pairs() {
		kind := g.Relations[pair]
		first, second := g.At(pair.From), g.At(pair.To)
		cells := []Coord{pair.From, pair.To}

		if first == Empty || second == Empty {
			return fail(RuleRelation, cells, "relation %s between %s and %s has an empty cell", kind, pair.From, pair.To)
		}

		switch kind {
		case Equal:
			if first != second {
				return fail(RuleRelation, cells, "cells %s and %s must be the same kind", pair.From, pair.To)
			}
		case Opposite:
			if first == second {
				return fail(RuleRelation, cells, "cells %s and %s must be opposite kinds", pair.From, pair.To)
			}
		case ArrowUnused:
		}
	}
	return Result{}, false
}
