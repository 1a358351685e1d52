package model

import "time"

// Automation event outcomes recorded in the local activity history.
const (
	OutcomeMoved    = "moved"
	OutcomeAlready  = "already"
	OutcomeError    = "error"
	OutcomeOverride = "override"
	OutcomeRestore  = "restore"
)

// AutomationEvent is one entry in the local automation activity
// history: a committed transition, a silent no-op, a failure, or a
// detected manual override.
type AutomationEvent struct {
	ID        string    `db:"id"`
	IssueKey  string    `db:"issue_key"`
	Target    string    `db:"target"`
	Auto      bool      `db:"auto"`
	Outcome   string    `db:"outcome"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}
