// Package status holds the pure mapping logic between Bitbucket pull
// request states and Jira workflow status categories. Nothing in this
// package performs I/O; every function is called fresh on each
// evaluation cycle and keeps no memory of prior results.
package status

import "strings"

// CategoryKey is one of Jira's coarse status category keys, independent
// of per-project custom status names.
type CategoryKey string

const (
	CategoryNew           CategoryKey = "new"
	CategoryIndeterminate CategoryKey = "indeterminate"
	CategoryDone          CategoryKey = "done"

	// CategoryUnknown is returned when a name matches no keyword set.
	CategoryUnknown CategoryKey = ""
)

// PRStatus is the normalized lifecycle state of a pull request.
type PRStatus string

const (
	PROpen     PRStatus = "open"
	PRDraft    PRStatus = "draft"
	PRMerged   PRStatus = "merged"
	PRDeclined PRStatus = "declined"
	PRClosed   PRStatus = "closed"
)

// Human-readable transition targets suggested to the user or the
// automation. These are matched fuzzily against workflow transition
// names, so the exact casing only matters for display.
const (
	TargetDone       = "Done"
	TargetToDo       = "To Do"
	TargetInProgress = "In Progress"
)

// Keyword sets checked, in order, by Classify. A name containing "done"
// resolves to done even when another keyword co-occurs.
var (
	doneKeywords          = []string{"done"}
	newKeywords           = []string{"to do", "todo", "new"}
	indeterminateKeywords = []string{"in progress", "inprogress", "indeterminate", "in review"}
)

// Classify maps a free-text transition target name to a canonical
// status category by case-insensitive substring containment. Done wins
// over the other groups when keywords co-occur. Unmatched names return
// CategoryUnknown.
func Classify(targetName string) CategoryKey {
	target := normalize(targetName)

	if containsAny(target, doneKeywords) {
		return CategoryDone
	}
	if containsAny(target, newKeywords) {
		return CategoryNew
	}
	if containsAny(target, indeterminateKeywords) {
		return CategoryIndeterminate
	}

	return CategoryUnknown
}

// NormalizePRState maps a raw Bitbucket pull request state plus the
// draft flag into a PRStatus. Unrecognized states, including the empty
// string, fall through to closed; that is a deliberate closed default
// rather than an error.
func NormalizePRState(rawState string, isDraft bool) PRStatus {
	switch strings.ToUpper(rawState) {
	case "MERGED":
		return PRMerged
	case "OPEN":
		if isDraft {
			return PRDraft
		}
		return PROpen
	case "DECLINED":
		return PRDeclined
	default:
		return PRClosed
	}
}

// SuggestTarget combines a normalized PR status and the issue's current
// status category into a suggested transition target, or "" when no
// move is warranted. Approvals on a draft count as review intent, so an
// approved draft suggests In Progress; a draft with zero approvals is
// not actionable.
func SuggestTarget(prStatus PRStatus, approvals int, currentCategory CategoryKey) string {
	switch prStatus {
	case PRMerged:
		if currentCategory == CategoryDone {
			return ""
		}
		return TargetDone
	case PRDeclined, PRClosed:
		if currentCategory == CategoryNew {
			return ""
		}
		return TargetToDo
	case PROpen:
		if currentCategory == CategoryIndeterminate {
			return ""
		}
		return TargetInProgress
	case PRDraft:
		if approvals > 0 && currentCategory != CategoryIndeterminate {
			return TargetInProgress
		}
		return ""
	default:
		return ""
	}
}

// normalize lowercases and trims a status or target name for matching.
func normalize(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func containsAny(value string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(value, kw) {
			return true
		}
	}
	return false
}
