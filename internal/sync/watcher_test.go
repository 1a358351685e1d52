package sync

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/pr-overview/internal/automation"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/resolver"
	"github.com/nhle/pr-overview/internal/status"
)

// scriptedBackend registers canned resolver handlers and records the
// calls the watcher makes against them.
type scriptedBackend struct {
	category        status.CategoryKey
	statusFails     bool
	state           *automation.AutomationState
	transitionRes   automation.Result
	transitions     []string
	transitionAutos []bool
	savedStates     []automation.AutomationState
	pr              *model.PullRequestSnapshot
	commits         []model.Commit
}

func (b *scriptedBackend) resolver() *resolver.Resolver {
	r := resolver.New()
	r.Define(resolver.OpGetIssueStatus, func(_ context.Context, _ resolver.Payload) interface{} {
		if b.statusFails {
			return automation.Result{Success: false, Error: "status fetch failed"}
		}
		return automation.Result{
			Success:       true,
			CurrentStatus: string(b.category),
		}
	})
	r.Define(resolver.OpGetAutomationState, func(_ context.Context, _ resolver.Payload) interface{} {
		return automation.StateResult{Success: true, State: b.state}
	})
	r.Define(resolver.OpSaveAutomationState, func(_ context.Context, p resolver.Payload) interface{} {
		b.savedStates = append(b.savedStates, *p.State)
		saved := *p.State
		b.state = &saved
		return automation.Result{Success: true}
	})
	r.Define(resolver.OpTransitionIssue, func(_ context.Context, p resolver.Payload) interface{} {
		b.transitions = append(b.transitions, p.TargetName)
		b.transitionAutos = append(b.transitionAutos, p.IsAuto)
		return b.transitionRes
	})
	r.Define(resolver.OpGetPRWithCommits, func(_ context.Context, _ resolver.Payload) interface{} {
		return resolver.PRWithCommitsResult{
			PR:          b.pr,
			Commits:     b.commits,
			CommitCount: len(b.commits),
		}
	})
	return r
}

type memRecorder struct {
	events []model.AutomationEvent
}

func (r *memRecorder) RecordEvent(_ context.Context, event model.AutomationEvent) error {
	r.events = append(r.events, event)
	return nil
}

func newTestWatcher(b *scriptedBackend) (*Watcher, *memRecorder) {
	rec := &memRecorder{}
	return New(b.resolver(), "PROJ-7", time.Minute, WithRecorder(rec)), rec
}

// drain collects the messages currently buffered on the result
// channel without blocking.
func drain(w *Watcher) []tea.Msg {
	var msgs []tea.Msg
	for {
		select {
		case msg := <-w.resultCh:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func findMsg[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if typed, ok := msg.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func TestTickEmitsStatusOnChangeOnly(t *testing.T) {
	backend := &scriptedBackend{category: status.CategoryIndeterminate}
	w, _ := newTestWatcher(backend)

	w.tick()
	if _, ok := findMsg[IssueStatusMsg](drain(w)); !ok {
		t.Fatal("expected a status message on the first tick")
	}

	w.tick()
	if _, ok := findMsg[IssueStatusMsg](drain(w)); ok {
		t.Fatal("unchanged status should not emit a message")
	}

	backend.category = status.CategoryDone
	w.tick()
	msg, ok := findMsg[IssueStatusMsg](drain(w))
	if !ok {
		t.Fatal("expected a status message after the category changed")
	}
	if msg.Category != status.CategoryDone {
		t.Fatalf("category = %q, want %q", msg.Category, status.CategoryDone)
	}
}

func TestTickIgnoresStatusFetchFailure(t *testing.T) {
	backend := &scriptedBackend{statusFails: true}
	w, _ := newTestWatcher(backend)

	w.tick()
	if msgs := drain(w); len(msgs) != 0 {
		t.Fatalf("expected no messages on fetch failure, got %d", len(msgs))
	}
}

func TestOverridePersistedOnce(t *testing.T) {
	backend := &scriptedBackend{category: status.CategoryIndeterminate}
	w, rec := newTestWatcher(backend)
	w.state = automation.AutomationState{AutoMovedToDone: true}

	w.tick()
	w.tick()
	w.tick()

	if len(backend.savedStates) != 1 {
		t.Fatalf("override persisted %d times, want 1", len(backend.savedStates))
	}
	if !backend.savedStates[0].ManuallyMovedFromDone {
		t.Fatal("persisted state should set manuallyMovedFromDone")
	}
	if !backend.savedStates[0].AutoMovedToDone {
		t.Fatal("persisted state should retain autoMovedToDone")
	}
	if len(rec.events) != 1 || rec.events[0].Outcome != model.OutcomeOverride {
		t.Fatalf("recorded events = %+v, want one override", rec.events)
	}
	if rec.events[0].IssueKey != "PROJ-7" {
		t.Fatalf("event issue key = %q", rec.events[0].IssueKey)
	}

	msgs := drain(w)
	override, ok := findMsg[OverrideMsg](msgs)
	if !ok {
		t.Fatal("expected an override message")
	}
	if !override.Active {
		t.Fatal("override should be active")
	}
}

func TestNoOverrideWhileIssueStaysDone(t *testing.T) {
	backend := &scriptedBackend{category: status.CategoryDone}
	w, _ := newTestWatcher(backend)
	w.state = automation.AutomationState{AutoMovedToDone: true}

	w.tick()

	if len(backend.savedStates) != 0 {
		t.Fatal("no override state should be written while the issue is Done")
	}
	if _, ok := findMsg[OverrideMsg](drain(w)); ok {
		t.Fatal("no override message expected while the issue is Done")
	}
}

func TestAutoTransitionOnMergedPR(t *testing.T) {
	backend := &scriptedBackend{
		category:      status.CategoryIndeterminate,
		transitionRes: automation.Result{Success: true, Moved: true},
		pr:            &model.PullRequestSnapshot{Status: status.PRMerged},
	}
	w, _ := newTestWatcher(backend)
	w.pr = backend.pr

	w.tick()

	if len(backend.transitions) != 1 {
		t.Fatalf("transitions = %d, want 1", len(backend.transitions))
	}
	if backend.transitions[0] != status.TargetDone {
		t.Fatalf("transition target = %q, want %q", backend.transitions[0], status.TargetDone)
	}
	if !backend.transitionAutos[0] {
		t.Fatal("automatic transition should carry isAuto")
	}
	if len(backend.savedStates) != 1 || !backend.savedStates[0].AutoMovedToDone {
		t.Fatalf("expected a fresh state with autoMovedToDone, got %+v", backend.savedStates)
	}

	msgs := drain(w)
	auto, ok := findMsg[AutoTransitionMsg](msgs)
	if !ok {
		t.Fatal("expected an auto transition message")
	}
	if auto.Target != status.TargetDone || !auto.Result.Moved {
		t.Fatalf("auto transition = %+v", auto)
	}
}

func TestAutoTransitionGuardedAfterFirstRun(t *testing.T) {
	backend := &scriptedBackend{
		category:      status.CategoryIndeterminate,
		transitionRes: automation.Result{Success: true, Moved: true},
		pr:            &model.PullRequestSnapshot{Status: status.PRMerged},
	}
	w, _ := newTestWatcher(backend)
	w.pr = backend.pr
	w.state = automation.AutomationState{AutoMovedToDone: true}

	w.tick()

	if len(backend.transitions) != 0 {
		t.Fatalf("guarded merge should not transition, got %v", backend.transitions)
	}
}

func TestAutoTransitionDeclinedUsesToDoGuard(t *testing.T) {
	backend := &scriptedBackend{
		category:      status.CategoryIndeterminate,
		transitionRes: automation.Result{Success: true, Moved: true},
		pr:            &model.PullRequestSnapshot{Status: status.PRDeclined},
	}
	w, _ := newTestWatcher(backend)
	w.pr = backend.pr
	// The done-side guard does not block the declined path.
	w.state = automation.AutomationState{ManuallyMovedFromDone: true}

	w.tick()

	if len(backend.transitions) != 1 {
		t.Fatalf("transitions = %d, want 1", len(backend.transitions))
	}
	if backend.transitions[0] != status.TargetToDo {
		t.Fatalf("transition target = %q, want %q", backend.transitions[0], status.TargetToDo)
	}
	if len(backend.savedStates) != 1 || !backend.savedStates[0].AutoMovedToToDo {
		t.Fatalf("expected a fresh state with autoMovedToToDo, got %+v", backend.savedStates)
	}

	backend.state = &backend.savedStates[0]
	w.tick()
	if len(backend.transitions) != 1 {
		t.Fatal("declined path should fire at most once")
	}
}

func TestOpenPRNeverAutoTransitions(t *testing.T) {
	backend := &scriptedBackend{
		category:      status.CategoryNew,
		transitionRes: automation.Result{Success: true, Moved: true},
		pr:            &model.PullRequestSnapshot{Status: status.PROpen},
	}
	w, _ := newTestWatcher(backend)
	w.pr = backend.pr

	w.tick()

	if len(backend.transitions) != 0 {
		t.Fatalf("open PR should never auto-transition, got %v", backend.transitions)
	}
}

func TestRestoreClearsOverrideFlag(t *testing.T) {
	backend := &scriptedBackend{
		category:      status.CategoryIndeterminate,
		transitionRes: automation.Result{Success: true, Moved: true},
	}
	w, rec := newTestWatcher(backend)
	w.state = automation.AutomationState{
		AutoMovedToDone:       true,
		ManuallyMovedFromDone: true,
	}

	msg := w.Restore()()

	done, ok := msg.(TransitionDoneMsg)
	if !ok {
		t.Fatalf("message type = %T, want TransitionDoneMsg", msg)
	}
	if !done.Restore || done.Target != status.TargetDone {
		t.Fatalf("restore message = %+v", done)
	}
	if len(backend.transitions) != 1 || backend.transitions[0] != status.TargetDone {
		t.Fatalf("restore transitions = %v", backend.transitions)
	}
	if len(backend.savedStates) != 1 {
		t.Fatalf("expected one state write, got %d", len(backend.savedStates))
	}
	saved := backend.savedStates[0]
	if saved.ManuallyMovedFromDone {
		t.Fatal("restore should clear manuallyMovedFromDone")
	}
	if !saved.AutoMovedToDone {
		t.Fatal("restore should keep autoMovedToDone set")
	}
	if len(rec.events) != 1 || rec.events[0].Outcome != model.OutcomeRestore {
		t.Fatalf("recorded events = %+v, want one restore", rec.events)
	}
}

func TestRestoreFailureLeavesStateUntouched(t *testing.T) {
	backend := &scriptedBackend{
		transitionRes: automation.Result{Success: false, Error: "no transition"},
	}
	w, _ := newTestWatcher(backend)
	w.state = automation.AutomationState{
		AutoMovedToDone:       true,
		ManuallyMovedFromDone: true,
	}

	msg := w.Restore()()

	done := msg.(TransitionDoneMsg)
	if done.Result.Success {
		t.Fatal("restore should report the transition failure")
	}
	if len(backend.savedStates) != 0 {
		t.Fatal("failed restore must not rewrite the automation state")
	}
}

func TestMoveToReportsOutcome(t *testing.T) {
	backend := &scriptedBackend{
		transitionRes: automation.Result{Success: true, Moved: true},
	}
	w, _ := newTestWatcher(backend)

	msg := w.MoveTo("In Progress")()

	done, ok := msg.(TransitionDoneMsg)
	if !ok {
		t.Fatalf("message type = %T, want TransitionDoneMsg", msg)
	}
	if done.Restore {
		t.Fatal("plain move must not be flagged as restore")
	}
	if done.Target != "In Progress" || !done.Result.Moved {
		t.Fatalf("move message = %+v", done)
	}
	if backend.transitionAutos[0] {
		t.Fatal("user-triggered move must not carry isAuto")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	backend := &scriptedBackend{category: status.CategoryNew}
	w, _ := newTestWatcher(backend)

	_ = w.Start()
	w.Stop()
	w.Stop()
}
