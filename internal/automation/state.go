// Package automation implements the status reconciliation between a
// pull request's lifecycle and a Jira issue's workflow: deciding the
// target transition, enforcing the at-most-once auto-move guard, and
// maintaining the per-issue automation state blob persisted as an
// issue property.
package automation

// Issue property keys used by the panel. AutomationPropKey holds the
// AutomationState blob; AutoMovePropKey holds an advisory audit record
// of the last transition executed.
const (
	AutomationPropKey = "overview-app.automationState"
	AutoMovePropKey   = "overview-app.autoMove"
)

// AutomationState is the per-issue persisted blob driving the
// auto-move guards. An absent property reads as the zero value. Flags
// are monotonic until explicitly cleared by the restore action; every
// write is a full-document overwrite, so mutations must follow the
// read-modify-write pattern to avoid clobbering unrelated flags.
type AutomationState struct {
	// AutoMovedToDone is set once an automatic move to Done succeeded.
	AutoMovedToDone bool `json:"autoMovedToDone,omitempty"`

	// AutoMovedToToDo is set once an automatic move back to To Do
	// succeeded after a decline or close.
	AutoMovedToToDo bool `json:"autoMovedToToDo,omitempty"`

	// ManuallyMovedFromDone is set when the issue was observed leaving
	// Done after having been auto-moved there. It suppresses further
	// automatic Done moves until the user restores.
	ManuallyMovedFromDone bool `json:"manuallyMovedFromDone,omitempty"`
}

// AutoMoveRecord is the advisory audit record written after every
// committed transition. Timestamp is unix milliseconds.
type AutoMoveRecord struct {
	Target    string `json:"target"`
	Timestamp int64  `json:"timestamp"`
	IsAuto    bool   `json:"isAuto"`
}
