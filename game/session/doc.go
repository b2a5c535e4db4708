// Package session runs Tango level attempts and keeps track of players.
//
// Controller:
//
// A Controller owns one player's progress and at most one level attempt. An
// attempt starts with EnterLevel and is either in progress or completed:
//
//	EnterLevel(id)      fresh grid from the level's initial cells, 3 guesses
//	ToggleCell(r, c)    Empty -> KindA -> KindB -> Empty, recorded for Undo
//	Undo()              reverts the last toggle or hint
//	Hint()              fills a random empty cell from the solution, costs a coin
//	Submit(secs)        grades the grid against the solution
//	AdvanceToNextLevel  enters the frontier level after a completed attempt
//
// Toggles never check the rules; the board may be temporarily invalid. A
// submission is graded only by equality with the stored solution. A wrong
// submission costs a guess. Losing the third guess costs a coin and refills
// the guesses. Premium players never spend coins.
//
// Errors:
//
// Every gameplay failure is returned and also kept as LastError until the
// next successful submit, level entry or DismissError. An unknown level id is
// the exception: it is logged and returned but leaves the controller, and its
// last error, untouched.
//
// Coins and play time:
//
// ResetCoinsIfNeeded restores 3 coins once per calendar day in the
// controller's location. StartSession and EndSession accumulate total play
// time; EndSession is safe to call any number of times.
//
// Progress writes go straight to the progress.Store after each change. A
// failed write is logged and play continues.
//
// Concurrency:
//
// A Controller is single-threaded. The Manager keeps one Player per id and
// Player.Do serializes access to its controller, so different players can be
// driven from different goroutines.
//
// Usage:
//
//	manager := session.NewManager(cat, backend, log)
//	player, err := manager.GetOrCreate("a1b2")
//	player.Do(func(c *session.Controller) {
//		c.ToggleCell(0, 1)
//		res, err := c.Submit(nil)
//	})
package session
