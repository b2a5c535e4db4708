package catalog

import (
	"errors"
	"fmt"

	"github.com/wricardo/tango-game/game/engine"
)

var (
	// ErrInvalidGridShape marks a level record that could not be turned into a level
	ErrInvalidGridShape = errors.New("invalid grid shape")
	// ErrIntegrityMismatch marks a loaded level whose data is internally inconsistent
	ErrIntegrityMismatch = errors.New("level integrity mismatch")
)

// IssueKind classifies a load-time diagnostic
type IssueKind string

const (
	// IssueInvalidShape rejects the record; the level is not served
	IssueInvalidShape IssueKind = "invalid_shape"
	// IssueInitialMismatch: a given cell disagrees with the solution
	IssueInitialMismatch IssueKind = "initial_mismatch"
	// IssueInvalidSolution: the solution breaks a rule
	IssueInvalidSolution IssueKind = "invalid_solution"
	// IssueAmbiguous: the givens and relations admit more than one completion
	IssueAmbiguous IssueKind = "ambiguous"
)

// Issue is one diagnostic produced while loading levels
type Issue struct {
	// Index is the record's position in the resource
	Index   int           `json:"index"`
	Level   int           `json:"level"`
	Kind    IssueKind     `json:"kind"`
	Rule    engine.Rule   `json:"rule,omitempty"`
	Coord   *engine.Coord `json:"coord,omitempty"`
	Message string        `json:"message"`
}

// Err returns the sentinel error the issue belongs to, wrapped with its message
func (i Issue) Err() error {
	if i.Kind == IssueInvalidShape {
		return fmt.Errorf("%w: level %d: %s", ErrInvalidGridShape, i.Level, i.Message)
	}
	return fmt.Errorf("%w: level %d: %s", ErrIntegrityMismatch, i.Level, i.Message)
}

// Rejects reports whether the issue kept the level out of the catalog
func (i Issue) Rejects() bool {
	return i.Kind == IssueInvalidShape
}

// Report collects the diagnostics of one load
type Report struct {
	Issues []Issue `json:"issues"`
	// Loaded is the number of levels that made it into the catalog
	Loaded int `json:"loaded"`
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// HasErrors reports whether any record was rejected
func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Rejects() {
			return true
		}
	}
	return false
}

// Clean reports whether the load produced no diagnostics at all
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// ForLevel returns the issues recorded for a level id
func (r *Report) ForLevel(id int) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Level == id {
			out = append(out, issue)
		}
	}
	return out
}

// Count returns how many issues of kind were recorded
func (r *Report) Count(kind IssueKind) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}
