// Package levels ships the default level resource with the binary.
package levels

import _ "embed"

// Default is the bundled levels.json: ten puzzles, eight 6x6 followed by two 8x8,
// each with exactly one solution.
//
//go:embed levels.json
var Default []byte
