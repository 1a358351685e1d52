// Package app hosts the root Bubble Tea model: it routes between the
// first-run setup form and the issue panel, owns the backend wiring,
// and bridges the watcher's messages into the panel.
package app

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/pr-overview/internal/automation"
	"github.com/nhle/pr-overview/internal/bitbucket"
	"github.com/nhle/pr-overview/internal/credential"
	"github.com/nhle/pr-overview/internal/jira"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/resolver"
	"github.com/nhle/pr-overview/internal/store"
	appsync "github.com/nhle/pr-overview/internal/sync"
	"github.com/nhle/pr-overview/internal/ui"
	"github.com/nhle/pr-overview/internal/ui/panel"
	"github.com/nhle/pr-overview/internal/ui/setup"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewPanel ViewState = iota
	ViewSetup
)

// eventsLoadedMsg carries the recent automation history for the panel.
type eventsLoadedMsg struct {
	events []model.AutomationEvent
}

// Model is the root Bubble Tea model.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	store       *store.SQLiteStore
	keys        *KeyMap
	issueKey    string
	config      *model.AppConfig
	configPath  string

	panel   panel.Model
	setup   setup.Model
	watcher *appsync.Watcher

	setupOnly bool
	ready     bool
}

// New creates the root application model. When the configuration is
// incomplete the app starts in the setup view and builds the backend
// once the form completes; otherwise it goes straight to the panel.
func New(
	issueKey string,
	cfg *model.AppConfig,
	configPath string,
	s *store.SQLiteStore,
) Model {
	keyMap := DefaultKeyMap()

	m := Model{
		store:      s,
		keys:       keyMap,
		issueKey:   issueKey,
		config:     cfg,
		configPath: configPath,
		panel:      panel.New(issueKey, keyMap, 80, 24),
	}

	if configComplete(cfg) {
		m.currentView = ViewPanel
		m.watcher = buildWatcher(issueKey, cfg, s)
	} else {
		m.currentView = ViewSetup
		m.setup = setup.New(cfg, configPath, 80)
	}
	return m
}

// NewSetup creates a root model that runs only the setup form and
// exits once the configuration is saved.
func NewSetup(cfg *model.AppConfig, configPath string) Model {
	return Model{
		keys:        DefaultKeyMap(),
		config:      cfg,
		configPath:  configPath,
		currentView: ViewSetup,
		setup:       setup.New(cfg, configPath, 80),
		setupOnly:   true,
	}
}

// configComplete reports whether both the config file and the two
// secrets are in place.
func configComplete(cfg *model.AppConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.Jira.BaseURL == "" || credential.JiraToken() == "" {
		return false
	}
	missing := cfg.MissingBitbucketFields(credential.BitbucketAppPassword())
	return len(missing) == 0
}

// buildWatcher wires the full backend for one issue: Jira and
// Bitbucket clients, the transition engine recording into the local
// history, the resolver, and the watch loop on top.
func buildWatcher(
	issueKey string,
	cfg *model.AppConfig,
	s *store.SQLiteStore,
) *appsync.Watcher {
	appPassword := credential.BitbucketAppPassword()

	jiraClient := jira.NewClient(cfg.Jira.BaseURL, credential.JiraToken())
	bbClient := bitbucket.NewClient(
		bitbucket.DefaultBaseURL,
		cfg.Bitbucket.Username,
		appPassword,
	)
	repo := bitbucket.NewRepo(
		bbClient,
		cfg.Bitbucket.Workspace,
		cfg.Bitbucket.RepositorySlug,
	)

	engine := automation.NewEngine(jiraClient, automation.WithRecorder(s))

	r := resolver.NewWithBackend(resolver.Backend{
		Engine:      engine,
		Repo:        repo,
		Config:      cfg,
		AppPassword: appPassword,
	})

	interval := time.Duration(cfg.Display.StatusPollSec) * time.Second
	return appsync.New(r, issueKey, interval, appsync.WithRecorder(s))
}

// Init returns the initial command for the active view.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewSetup {
		return m.setup.Init()
	}
	return tea.Batch(m.watcher.Start(), m.loadEvents())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.panel.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		// Forward to the active view so huh forms can lay out.
		return m.updateActiveView(msg)

	case setup.DoneMsg:
		m.config = msg.Config
		if m.setupOnly {
			return m, tea.Quit
		}
		m.currentView = ViewPanel
		m.watcher = buildWatcher(m.issueKey, m.config, m.store)
		return m, tea.Batch(m.watcher.Start(), m.loadEvents())

	case setup.AbortMsg:
		return m, tea.Quit

	case appsync.PRLoadedMsg:
		if msg.Err != "" {
			m.panel.SetPRError(msg.Err)
		} else {
			m.panel.SetPR(msg.PR, msg.Commits)
		}
		return m, m.watcher.WaitForNextResult()

	case appsync.IssueStatusMsg:
		m.panel.SetCategory(msg.Category)
		return m, m.watcher.WaitForNextResult()

	case appsync.OverrideMsg:
		m.panel.SetOverride(msg.Active)
		return m, m.watcher.WaitForNextResult()

	case appsync.AutoTransitionMsg:
		m.applyTransitionOutcome(msg.Target, msg.Result, true)
		return m, tea.Batch(m.watcher.WaitForNextResult(), m.loadEvents())

	case appsync.TransitionDoneMsg:
		if msg.Restore && msg.Result.Success {
			m.panel.SetOverride(false)
			m.panel.SetNotice("Issue restored to Done")
		} else {
			m.applyTransitionOutcome(msg.Target, msg.Result, false)
		}
		return m, tea.Batch(m.watcher.Refresh(), m.loadEvents())

	case panel.MoveMsg:
		return m, m.watcher.MoveTo(msg.Target)

	case panel.RestoreMsg:
		return m, m.watcher.Restore()

	case panel.RefreshMsg:
		return m, m.watcher.Refresh()

	case panel.OpenLinkMsg:
		return m, openInBrowser(msg.URL)

	case eventsLoadedMsg:
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(panel.EventsMsg{Events: msg.events})
		return m, cmd

	case tea.KeyMsg:
		if m.currentView == ViewPanel {
			switch msg.String() {
			case "q", "ctrl+c":
				if m.watcher != nil {
					m.watcher.Stop()
				}
				return m, tea.Quit
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView forwards a message to the current view's model.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewSetup:
		m.setup, cmd = m.setup.Update(msg)
	case ViewPanel:
		m.panel, cmd = m.panel.Update(msg)
	}
	return m, cmd
}

// applyTransitionOutcome maps a transition result onto the panel's
// transient status line. An "already there" outcome stays silent.
func (m *Model) applyTransitionOutcome(
	target string,
	res automation.Result,
	auto bool,
) {
	switch {
	case res.Success && res.Moved:
		message := fmt.Sprintf("Moved to %s", target)
		if auto {
			message = fmt.Sprintf("Automatically moved to %s", target)
		}
		m.panel.SetStatusMessage(message, false)
	case res.Success && res.Already:
		m.panel.SetStatusMessage("", false)
	default:
		message := res.Error
		if message == "" {
			message = res.Reason
		}
		if message != "" {
			m.panel.SetStatusMessage(message, true)
		}
	}
}

// loadEvents fetches the recent automation history for the panel.
func (m Model) loadEvents() tea.Cmd {
	s := m.store
	issueKey := m.issueKey
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		events, err := s.RecentEvents(ctx, issueKey, 10)
		if err != nil {
			return eventsLoadedMsg{}
		}
		return eventsLoadedMsg{events: events}
	}
}

// View renders the active view inside the standard frame.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("PR Overview", m.issueKey)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	var content string
	switch m.currentView {
	case ViewSetup:
		content = m.setup.View()
	case ViewPanel:
		content = m.panel.View()
	}

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.currentView == ViewSetup {
		return "enter next · esc cancel"
	}
	return "m move · u restore · c commits · r refresh · o open · q quit"
}

// openInBrowser opens url with the platform's default opener.
func openInBrowser(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		_ = cmd.Start()
		return nil
	}
}
