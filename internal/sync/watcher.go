// Package sync watches a single issue: it polls the issue status on a
// fixed cadence, detects manual overrides of prior automatic moves,
// and fires automatic transitions when the linked pull request reaches
// a terminal state. All backend access goes through the resolver
// operation contract, mirroring how the panel invokes the backend.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/pr-overview/internal/automation"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/resolver"
	"github.com/nhle/pr-overview/internal/status"
)

// PRLoadedMsg carries the pull request snapshot loaded on start.
type PRLoadedMsg struct {
	PR      *model.PullRequestSnapshot
	Commits []model.Commit
	Err     string
}

// IssueStatusMsg carries the latest polled issue status category.
type IssueStatusMsg struct {
	Category status.CategoryKey
}

// OverrideMsg reports whether the restore affordance should show. It
// is re-derived on every poll where the issue sits outside Done, so
// the UI state stays idempotent.
type OverrideMsg struct {
	Active bool
}

// AutoTransitionMsg reports the outcome of an automatic transition.
type AutoTransitionMsg struct {
	Target string
	Result automation.Result
}

// TransitionDoneMsg reports the outcome of a user-triggered move or
// restore.
type TransitionDoneMsg struct {
	Target  string
	Restore bool
	Result  automation.Result
}

// fetchTimeout bounds every backend invocation from the watcher.
const fetchTimeout = 30 * time.Second

// Watcher runs the reconciliation loop for one issue panel.
type Watcher struct {
	resolver *resolver.Resolver
	recorder automation.Recorder
	issueKey string
	interval time.Duration

	resultCh chan tea.Msg
	stopCh   chan struct{}

	mu           gosync.Mutex
	running      bool
	inFlight     bool
	pr           *model.PullRequestSnapshot
	category     status.CategoryKey
	haveCategory bool
	state        automation.AutomationState
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithRecorder sets the history recorder for detected overrides and
// restores. Recording is advisory; failures are ignored.
func WithRecorder(rec automation.Recorder) Option {
	return func(w *Watcher) {
		w.recorder = rec
	}
}

// New creates a watcher for issueKey polling at the given interval.
// An interval of zero or less falls back to the 5-second default.
func New(
	r *resolver.Resolver,
	issueKey string,
	interval time.Duration,
	opts ...Option,
) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	w := &Watcher{
		resolver: r,
		issueKey: issueKey,
		interval: interval,
		resultCh: make(chan tea.Msg, 16),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the watch loop and returns the subscription command
// that feeds its messages to the Bubble Tea runtime.
func (w *Watcher) Start() tea.Cmd {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return w.waitForResult()
	}
	w.running = true
	w.mu.Unlock()

	go w.run()

	return w.waitForResult()
}

// Stop halts the watch loop. In-flight calls are not aborted; their
// results are dropped because nothing reads the channel afterwards.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
}

// WaitForNextResult returns a command that waits for the next watcher
// message. Call it after processing each message to keep listening.
func (w *Watcher) WaitForNextResult() tea.Cmd {
	return w.waitForResult()
}

// MoveTo returns a command performing a user-triggered transition.
func (w *Watcher) MoveTo(target string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		res := w.transitionIssue(ctx, target, false)
		return TransitionDoneMsg{Target: target, Result: res}
	}
}

// Refresh returns a command reloading the PR snapshot and running an
// immediate status evaluation. Results arrive over the watch channel.
func (w *Watcher) Refresh() tea.Cmd {
	return func() tea.Msg {
		w.loadInitial()
		return nil
	}
}

// Restore returns a command moving the issue back to Done and clearing
// the manual-override flag on success.
func (w *Watcher) Restore() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		res := w.transitionIssue(ctx, status.TargetDone, false)
		if res.Success {
			w.mu.Lock()
			state := w.state
			w.mu.Unlock()

			state.ManuallyMovedFromDone = false
			if w.saveState(ctx, state) {
				w.mu.Lock()
				w.state = state
				w.mu.Unlock()
			}
			w.record(ctx, model.AutomationEvent{
				Target:  status.TargetDone,
				Outcome: model.OutcomeRestore,
			})
		}
		return TransitionDoneMsg{Target: status.TargetDone, Restore: true, Result: res}
	}
}

// run is the watch loop: one initial load, then a fixed-cadence status
// poll until Stop.
func (w *Watcher) run() {
	w.loadInitial()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// loadInitial fetches the PR snapshot and the persisted automation
// state once, then runs the first evaluation.
func (w *Watcher) loadInitial() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	prRes, err := invoke[resolver.PRWithCommitsResult](
		ctx, w.resolver, resolver.OpGetPRWithCommits,
		resolver.Payload{IssueKey: w.issueKey},
	)
	if err != nil {
		w.send(PRLoadedMsg{Err: err.Error()})
	} else if prRes.Error != "" {
		w.send(PRLoadedMsg{Err: prRes.Error})
	} else {
		w.mu.Lock()
		w.pr = prRes.PR
		w.mu.Unlock()
		w.send(PRLoadedMsg{PR: prRes.PR, Commits: prRes.Commits})
	}

	stateRes, err := invoke[automation.StateResult](
		ctx, w.resolver, resolver.OpGetAutomationState,
		resolver.Payload{IssueKey: w.issueKey},
	)
	if err == nil && stateRes.Success && stateRes.State != nil {
		w.mu.Lock()
		w.state = *stateRes.State
		w.mu.Unlock()
	}

	w.tick()
}

// tick fetches a fresh status snapshot and re-evaluates the pure
// rules against it. No derived state is cached across ticks beyond
// the AutomationState flags designed to persist.
func (w *Watcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	statusRes, err := invoke[automation.Result](
		ctx, w.resolver, resolver.OpGetIssueStatus,
		resolver.Payload{IssueKey: w.issueKey},
	)
	if err != nil || !statusRes.Success {
		return
	}

	category := status.CategoryKey(statusRes.CurrentStatus)

	w.mu.Lock()
	changed := !w.haveCategory || w.category != category
	w.category = category
	w.haveCategory = true
	pr := w.pr
	state := w.state
	w.mu.Unlock()

	if changed {
		w.send(IssueStatusMsg{Category: category})
	}

	w.detectOverride(ctx, category, state)

	if pr != nil {
		w.maybeAutoTransition(ctx, pr, category)
	}
}

// detectOverride notices the issue leaving Done after an automatic
// move there. The persistence call happens at most once per override
// round; the UI flag is re-derived on every tick.
func (w *Watcher) detectOverride(
	ctx context.Context,
	category status.CategoryKey,
	state automation.AutomationState,
) {
	if !state.AutoMovedToDone {
		return
	}

	if category == status.CategoryDone {
		return
	}

	if !state.ManuallyMovedFromDone {
		state.ManuallyMovedFromDone = true
		if w.saveState(ctx, state) {
			w.mu.Lock()
			w.state = state
			w.mu.Unlock()
			w.record(ctx, model.AutomationEvent{
				Outcome: model.OutcomeOverride,
				Detail:  "issue moved out of Done after automatic move",
			})
		}
	}

	w.send(OverrideMsg{Active: true})
}

// maybeAutoTransition fires the automatic move when the PR reached a
// terminal state, a suggestion exists, the persisted guards are clear,
// and no other attempt is in flight.
func (w *Watcher) maybeAutoTransition(
	ctx context.Context,
	pr *model.PullRequestSnapshot,
	category status.CategoryKey,
) {
	target := status.SuggestTarget(pr.Status, pr.Approvals, category)
	if target == "" {
		return
	}

	isMerged := pr.Status == status.PRMerged
	isDeclinedOrClosed := pr.Status == status.PRDeclined || pr.Status == status.PRClosed
	if !isMerged && !isDeclinedOrClosed {
		return
	}

	w.mu.Lock()
	state := w.state
	blocked := (isMerged && (state.AutoMovedToDone || state.ManuallyMovedFromDone)) ||
		(isDeclinedOrClosed && state.AutoMovedToToDo)
	if blocked || w.inFlight {
		w.mu.Unlock()
		return
	}
	w.inFlight = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
	}()

	res := w.transitionIssue(ctx, target, true)

	if res.Success && res.Moved {
		// A committed auto move starts a fresh automation round.
		var newState automation.AutomationState
		if isMerged {
			newState.AutoMovedToDone = true
		} else {
			newState.AutoMovedToToDo = true
		}
		if w.saveState(ctx, newState) {
			w.mu.Lock()
			w.state = newState
			w.mu.Unlock()
		}
		w.send(OverrideMsg{Active: false})
	}

	w.send(AutoTransitionMsg{Target: target, Result: res})
}

func (w *Watcher) transitionIssue(
	ctx context.Context,
	target string,
	isAuto bool,
) automation.Result {
	res, err := invoke[automation.Result](
		ctx, w.resolver, resolver.OpTransitionIssue,
		resolver.Payload{IssueKey: w.issueKey, TargetName: target, IsAuto: isAuto},
	)
	if err != nil {
		return automation.Result{Success: false, Error: err.Error()}
	}
	return res
}

// saveState overwrites the persisted automation state, reporting
// whether the write was accepted.
func (w *Watcher) saveState(ctx context.Context, state automation.AutomationState) bool {
	res, err := invoke[automation.Result](
		ctx, w.resolver, resolver.OpSaveAutomationState,
		resolver.Payload{IssueKey: w.issueKey, State: &state},
	)
	return err == nil && res.Success
}

// record writes an event to the history, filling in the issue key.
// Advisory: failures are dropped.
func (w *Watcher) record(ctx context.Context, event model.AutomationEvent) {
	if w.recorder == nil {
		return
	}
	event.IssueKey = w.issueKey
	_ = w.recorder.RecordEvent(ctx, event)
}

// send delivers a message without blocking the watch loop.
func (w *Watcher) send(msg tea.Msg) {
	select {
	case w.resultCh <- msg:
	default:
		// Drop if the channel is full to avoid blocking the watcher.
	}
}

// waitForResult returns a command that waits for the next message.
func (w *Watcher) waitForResult() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-w.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}

// invoke marshals a payload, runs a resolver operation, and decodes
// the result into T.
func invoke[T any](
	ctx context.Context,
	r *resolver.Resolver,
	name string,
	payload resolver.Payload,
) (T, error) {
	var out T

	raw, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("encoding %s payload: %w", name, err)
	}

	if err := json.Unmarshal(r.Invoke(ctx, name, raw), &out); err != nil {
		return out, fmt.Errorf("decoding %s result: %w", name, err)
	}
	return out, nil
}
