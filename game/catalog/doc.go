// Package catalog loads the puzzle levels served by the game.
//
// A level resource is a JSON array of records:
//
//	{
//	  "level": 1,
//	  "size": 6,
//	  "initialGrid": [["empty", "black", ...], ...],
//	  "signs": [{"from": [4, 2], "to": [5, 2], "type": "cross"}, ...],
//	  "solution": [["white", "black", ...], ...]
//	}
//
// Cell tags are "empty", "black" and "white". Sign types are "equals",
// "cross" or "notEquals" (both opposite), and "arrow", which is accepted but
// never enforced.
//
// Loading is lenient. Records that cannot be decoded are dropped with an
// IssueInvalidShape. Records that decode but contradict themselves are kept:
// the mismatch is logged and recorded in the Report, and the game grades
// attempts against the stored solution anyway.
//
// Usage:
//
//	cat, report := catalog.LoadOrEmpty(path, catalog.WithLogger(log))
//	if report.HasErrors() {
//		log.Warn("some levels were skipped")
//	}
//
//	def, ok := cat.Level(3)
//	grid := def.Grid()
package catalog
