package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/pr-overview/internal/jira"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/status"
)

// IssueService is the slice of the Jira client the engine depends on.
type IssueService interface {
	GetIssueStatus(ctx context.Context, issueKey string) (model.IssueStatusSnapshot, error)
	GetTransitions(ctx context.Context, issueKey string) ([]jira.Transition, error)
	DoTransition(ctx context.Context, issueKey, transitionID string) error
	GetProperty(ctx context.Context, issueKey, propertyKey string, out interface{}) error
	SetProperty(ctx context.Context, issueKey, propertyKey string, value interface{}) error
}

// Recorder receives automation activity for the local history. A nil
// recorder disables recording; a failing recorder is advisory only.
type Recorder interface {
	RecordEvent(ctx context.Context, event model.AutomationEvent) error
}

// ReasonAutoMoveDisabled is returned when the at-most-once auto-Done
// guard suppresses a repeat automatic move.
const ReasonAutoMoveDisabled = "auto-move disabled after first run or manual change"

// Result is the outcome of a transition operation. Operations on the
// Engine never return a Go error; every failure collapses into
// Success=false with Error set, so the resolver boundary stays total.
type Result struct {
	Success         bool   `json:"success"`
	Moved           bool   `json:"moved,omitempty"`
	Already         bool   `json:"already,omitempty"`
	Reason          string `json:"reason,omitempty"`
	CurrentStatus   string `json:"currentStatus,omitempty"`
	CurrentCategory string `json:"currentCategory,omitempty"`
	Error           string `json:"error,omitempty"`
}

// StateResult is the outcome of reading the automation state blob.
// State is nil when no blob has been written for the issue yet.
type StateResult struct {
	Success bool             `json:"success"`
	State   *AutomationState `json:"state"`
	Error   string           `json:"error,omitempty"`
}

// Engine orchestrates issue transitions: it reads the current status,
// enforces the auto-move guards against the persisted AutomationState,
// locates a matching workflow transition, executes it, and maintains
// the advisory audit records.
type Engine struct {
	issues   IssueService
	recorder Recorder
	now      func() time.Time
	warnf    func(format string, args ...interface{})
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder attaches a local activity recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithWarnLogger routes advisory-failure warnings. The default
// discards them.
func WithWarnLogger(warnf func(format string, args ...interface{})) Option {
	return func(e *Engine) { e.warnf = warnf }
}

// NewEngine creates a reconciliation engine over the given issue
// service.
func NewEngine(issues IssueService, opts ...Option) *Engine {
	e := &Engine{
		issues: issues,
		now:    time.Now,
		warnf:  func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TransitionIssue moves an issue toward targetName. isAuto marks
// system-initiated moves, which are gated by the at-most-once guard
// when the target classifies as Done. The call is idempotent: when the
// issue already sits at the target it reports already=true without
// touching the transitions endpoint.
func (e *Engine) TransitionIssue(
	ctx context.Context,
	issueKey string,
	targetName string,
	isAuto bool,
) Result {
	snap, err := e.issues.GetIssueStatus(ctx, issueKey)
	if err != nil {
		return e.failure(ctx, issueKey, targetName, isAuto,
			fmt.Sprintf("Failed to fetch issue: %v", err))
	}

	desired := status.Classify(targetName)

	if isAuto && desired == status.CategoryDone {
		state, readErr := e.readState(ctx, issueKey)
		if readErr != nil {
			// Treated as "no prior state": the guard degrades to
			// permissive rather than blocking the move.
			e.warnf("reading automation state for %s: %v", issueKey, readErr)
		} else if state.AutoMovedToDone || state.ManuallyMovedFromDone {
			return Result{
				Success: true,
				Already: true,
				Reason:  ReasonAutoMoveDisabled,
			}
		}
	}

	targetLower := strings.TrimSpace(strings.ToLower(targetName))

	// Loose matching on purpose: a substring hit between the current
	// status text and the target text counts as already-there even
	// without a category classification.
	atTarget := (desired != status.CategoryUnknown && snap.Category == desired) ||
		(targetLower != "" && strings.Contains(snap.Name, targetLower))
	if atTarget {
		e.record(ctx, issueKey, targetName, isAuto, model.OutcomeAlready, snap.Name)
		return Result{
			Success:         true,
			Already:         true,
			CurrentStatus:   snap.Name,
			CurrentCategory: string(snap.Category),
		}
	}

	transitions, err := e.issues.GetTransitions(ctx, issueKey)
	if err != nil {
		return e.failure(ctx, issueKey, targetName, isAuto,
			fmt.Sprintf("Failed to fetch transitions: %v", err))
	}

	found := findMatchingTransition(transitions, targetLower, desired)
	if found == nil {
		// A workflow without a matching transition is a configuration
		// problem, not a transient fault.
		return e.failure(ctx, issueKey, targetName, isAuto,
			fmt.Sprintf("No %q transition available for this issue", targetName))
	}

	if err := e.issues.DoTransition(ctx, issueKey, found.ID); err != nil {
		return e.failure(ctx, issueKey, targetName, isAuto,
			fmt.Sprintf("Transition failed: %v", err))
	}

	// The transition has committed; everything below is advisory
	// bookkeeping and must not fail the operation.
	audit := AutoMoveRecord{
		Target:    targetName,
		Timestamp: e.now().UnixMilli(),
		IsAuto:    isAuto,
	}
	if err := e.issues.SetProperty(ctx, issueKey, AutoMovePropKey, audit); err != nil {
		e.warnf("writing autoMove audit for %s: %v", issueKey, err)
	}

	if isAuto && desired == status.CategoryDone {
		state, readErr := e.readState(ctx, issueKey)
		if readErr != nil {
			e.warnf("re-reading automation state for %s: %v", issueKey, readErr)
			state = AutomationState{}
		}
		state.AutoMovedToDone = true
		if err := e.issues.SetProperty(ctx, issueKey, AutomationPropKey, state); err != nil {
			e.warnf("persisting automation state for %s: %v", issueKey, err)
		}
	}

	e.record(ctx, issueKey, targetName, isAuto, model.OutcomeMoved, "")
	return Result{Success: true, Moved: true}
}

// GetIssueStatus reports the issue's current status category key.
func (e *Engine) GetIssueStatus(ctx context.Context, issueKey string) Result {
	snap, err := e.issues.GetIssueStatus(ctx, issueKey)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{
		Success:       true,
		CurrentStatus: string(snap.Category),
	}
}

// GetAutomationState reads the persisted automation state for an
// issue. A blob that was never written yields State=nil, not an error.
func (e *Engine) GetAutomationState(ctx context.Context, issueKey string) StateResult {
	var state AutomationState
	err := e.issues.GetProperty(ctx, issueKey, AutomationPropKey, &state)
	if err != nil {
		if jira.IsNotFound(err) {
			return StateResult{Success: true, State: nil}
		}
		return StateResult{Success: false, Error: err.Error()}
	}
	return StateResult{Success: true, State: &state}
}

// SaveAutomationState overwrites the persisted automation state. Last
// write wins; there is no merge and no concurrency check.
func (e *Engine) SaveAutomationState(
	ctx context.Context,
	issueKey string,
	state AutomationState,
) Result {
	err := e.issues.SetProperty(ctx, issueKey, AutomationPropKey, state)
	if err != nil {
		return Result{
			Success: false,
			Error:   fmt.Sprintf("Failed to save automation state: %v", err),
		}
	}
	return Result{Success: true}
}

// readState fetches the current AutomationState, mapping an absent
// property to the empty state.
func (e *Engine) readState(ctx context.Context, issueKey string) (AutomationState, error) {
	var state AutomationState
	err := e.issues.GetProperty(ctx, issueKey, AutomationPropKey, &state)
	if err != nil {
		if jira.IsNotFound(err) {
			return AutomationState{}, nil
		}
		return AutomationState{}, err
	}
	return state, nil
}

// findMatchingTransition selects the transition to execute. Matching
// tiers, checked in order: destination status category equals the
// desired category; destination name contains the target text; the
// transition's own name contains the target text. Within a tier the
// first transition in Jira's list order wins.
func findMatchingTransition(
	transitions []jira.Transition,
	targetLower string,
	desired status.CategoryKey,
) *jira.Transition {
	if desired != status.CategoryUnknown {
		for i := range transitions {
			key := strings.ToLower(transitions[i].To.StatusCategory.Key)
			if status.CategoryKey(key) == desired {
				return &transitions[i]
			}
		}
	}

	if targetLower == "" {
		return nil
	}

	for i := range transitions {
		if strings.Contains(strings.ToLower(transitions[i].To.Name), targetLower) {
			return &transitions[i]
		}
	}
	for i := range transitions {
		if strings.Contains(strings.ToLower(transitions[i].Name), targetLower) {
			return &transitions[i]
		}
	}

	return nil
}

// failure records and returns an error result.
func (e *Engine) failure(
	ctx context.Context,
	issueKey, targetName string,
	isAuto bool,
	message string,
) Result {
	e.record(ctx, issueKey, targetName, isAuto, model.OutcomeError, message)
	return Result{Success: false, Error: message}
}

// record writes an activity event, best effort.
func (e *Engine) record(
	ctx context.Context,
	issueKey, target string,
	auto bool,
	outcome, detail string,
) {
	if e.recorder == nil {
		return
	}
	event := model.AutomationEvent{
		IssueKey:  issueKey,
		Target:    target,
		Auto:      auto,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: e.now(),
	}
	if err := e.recorder.RecordEvent(ctx, event); err != nil {
		e.warnf("recording automation event for %s: %v", issueKey, err)
	}
}
