// Package engine provides the grid model and rule checker for the Tango puzzle.
//
// The engine package implements:
//   - Tri-state cells (Empty, KindA, KindB) and the toggle cycle between them
//   - Pairwise relations (Equal, Opposite, and the unenforced Arrow)
//   - The Grid type shared by the level catalog, the solver and the session controller
//   - Validation of a grid against the puzzle rules
//
// Rules:
//
// A grid is a valid solution when, checked in this order:
//  1. no cell is Empty
//  2. no row or column holds three equal kinds in a row
//  3. every row and every column holds exactly N/2 of each kind
//  4. every Equal relation joins two cells of the same kind and every Opposite
//     relation joins two cells of different kinds
//
// The first failing rule decides the reason reported, so the same invalid grid
// always produces the same message.
//
// Usage:
//
//	g := engine.NewGrid(6)
//	g.Toggle(engine.Coord{Row: 0, Col: 0})
//	g.SetRelation(engine.NewCellPair(0, 0, 0, 1), engine.Opposite)
//
//	if ok, reason := engine.Validate(g); !ok {
//		log.Println(reason)
//	}
//
// Check returns the same decision as Validate together with the violated Rule
// and the offending coordinates.
package engine
