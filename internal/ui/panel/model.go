// Package panel renders the pull request overview for one issue: the
// PR snapshot with its approval roster and commits, the issue status,
// the suggested move, and the outcome of automatic transitions.
package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pr-overview/internal/keys"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/status"
	"github.com/nhle/pr-overview/internal/theme"
)

// MoveMsg asks the parent to transition the issue to Target.
type MoveMsg struct {
	Target string
}

// RestoreMsg asks the parent to move the issue back to Done.
type RestoreMsg struct{}

// RefreshMsg asks the parent to reload the PR and issue status.
type RefreshMsg struct{}

// OpenLinkMsg asks the parent to open the PR link in a browser.
type OpenLinkMsg struct {
	URL string
}

// EventsMsg delivers the recent automation history for display.
type EventsMsg struct {
	Events []model.AutomationEvent
}

// Model is the issue panel component.
type Model struct {
	issueKey string
	keys     *keys.KeyMap

	pr      *model.PullRequestSnapshot
	commits []model.Commit
	prErr   string
	loading bool

	category     status.CategoryKey
	haveCategory bool

	override   bool
	notice     string
	statusMsg  string
	statusErr  bool
	events     []model.AutomationEvent
	showEvents bool

	showCommits bool
	viewport    viewport.Model

	width  int
	height int
}

// New creates the panel for issueKey.
func New(issueKey string, keyMap *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(height-12, 4))

	return Model{
		issueKey: issueKey,
		keys:     keyMap,
		loading:  true,
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the panel.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventsMsg:
		m.events = msg.Events
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			m.statusMsg = ""
			m.loading = true
			return m, func() tea.Msg {
				return RefreshMsg{}
			}

		case key.Matches(msg, m.keys.Move):
			if target := m.suggestedTarget(); target != "" {
				return m, func() tea.Msg {
					return MoveMsg{Target: target}
				}
			}

		case key.Matches(msg, m.keys.Restore):
			if m.override {
				return m, func() tea.Msg {
					return RestoreMsg{}
				}
			}

		case key.Matches(msg, m.keys.Commits):
			m.showCommits = !m.showCommits
			if m.showCommits {
				m.viewport.SetContent(m.renderCommits())
				m.viewport.GotoTop()
			}
			return m, nil

		case key.Matches(msg, m.keys.Help):
			m.showEvents = !m.showEvents
			return m, nil

		case key.Matches(msg, m.keys.OpenPR):
			if m.pr != nil && m.pr.Link != "" {
				link := m.pr.Link
				return m, func() tea.Msg {
					return OpenLinkMsg{URL: link}
				}
			}
		}
	}

	if m.showCommits {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// SetPR installs a freshly loaded PR snapshot.
func (m *Model) SetPR(pr *model.PullRequestSnapshot, commits []model.Commit) {
	m.pr = pr
	m.commits = commits
	m.prErr = ""
	m.loading = false
	if m.showCommits {
		m.viewport.SetContent(m.renderCommits())
	}
}

// SetPRError records a failure loading the PR.
func (m *Model) SetPRError(message string) {
	m.prErr = message
	m.loading = false
}

// SetCategory records the current issue status category.
func (m *Model) SetCategory(category status.CategoryKey) {
	m.category = category
	m.haveCategory = true
}

// SetOverride toggles the restore affordance.
func (m *Model) SetOverride(active bool) {
	m.override = active
	if !active {
		m.notice = ""
	}
}

// SetStatusMessage shows a transient outcome line under the panel.
func (m *Model) SetStatusMessage(message string, isErr bool) {
	m.statusMsg = message
	m.statusErr = isErr
}

// SetNotice shows an advisory banner, such as after a restore.
func (m *Model) SetNotice(message string) {
	m.notice = message
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-12, 4)
}

// View renders the panel.
func (m Model) View() string {
	var sections []string

	header := theme.HeaderStyle.Render(fmt.Sprintf("%s · PR Overview", m.issueKey))
	sections = append(sections, header, "")

	switch {
	case m.loading:
		sections = append(sections, theme.HelpStyle.Render("Loading pull request..."))
	case m.prErr != "":
		sections = append(sections, theme.ErrorStyle.Render(m.prErr))
	case m.pr != nil:
		sections = append(sections, m.renderPR()...)
	}

	if m.haveCategory {
		sections = append(sections, "", m.renderIssueStatus())
	}

	if m.override {
		banner := theme.NoticeStyle.Render(
			"Issue was moved out of Done after automation. Press u to restore.",
		)
		sections = append(sections, "", banner)
	}

	if m.notice != "" {
		sections = append(sections, "", theme.SuccessStyle.Render(m.notice))
	}

	if m.statusMsg != "" {
		style := theme.SuccessStyle
		if m.statusErr {
			style = theme.ErrorStyle
		}
		sections = append(sections, "", style.Render(m.statusMsg))
	}

	if m.showCommits {
		sections = append(sections, "", m.viewport.View())
	}

	if m.showEvents && len(m.events) > 0 {
		sections = append(sections, "", m.renderEvents())
	}

	sections = append(sections, "", m.renderHelp())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return theme.PanelStyle.Width(m.width - 4).Render(content)
}

// renderPR builds the PR summary lines.
func (m Model) renderPR() []string {
	pr := m.pr
	var lines []string

	badge := theme.PRStatusStyle(pr.Status).Render(strings.ToUpper(string(pr.Status)))
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(pr.Title)
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, badge, "  ", title))
	lines = append(lines, "")

	label := theme.LabelStyle
	value := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	lines = append(lines, fmt.Sprintf(
		"%s    %s",
		label.Render("Author:"),
		value.Render(pr.Author),
	))
	lines = append(lines, fmt.Sprintf(
		"%s    %s → %s",
		label.Render("Branch:"),
		value.Render(pr.SourceBranch),
		value.Render(pr.DestBranch),
	))
	lines = append(lines, fmt.Sprintf(
		"%s   %s",
		label.Render("Commits:"),
		value.Render(fmt.Sprintf("%d", len(m.commits))),
	))

	approvals := "none yet"
	if pr.Approvals > 0 {
		names := make([]string, 0, len(pr.Approvers))
		for _, a := range pr.Approvers {
			names = append(names, a.Name)
		}
		approvals = fmt.Sprintf("%d (%s)", pr.Approvals, strings.Join(names, ", "))
	}
	lines = append(lines, fmt.Sprintf(
		"%s %s",
		label.Render("Approvals:"),
		value.Render(approvals),
	))

	if pr.Link != "" {
		lines = append(lines, fmt.Sprintf(
			"%s      %s",
			label.Render("Link:"),
			theme.HelpStyle.Render(pr.Link),
		))
	}

	return lines
}

// renderIssueStatus builds the issue status line with the suggested
// move, when one applies.
func (m Model) renderIssueStatus() string {
	line := fmt.Sprintf(
		"%s    %s",
		theme.LabelStyle.Render("Status:"),
		theme.CategoryStyle(m.category).Render(categoryName(m.category)),
	)

	if target := m.suggestedTarget(); target != "" {
		hint := theme.HelpStyle.Render(fmt.Sprintf("(m: move to %s)", target))
		line = lipgloss.JoinHorizontal(lipgloss.Top, line, "  ", hint)
	}
	return line
}

// renderCommits builds the commit list for the viewport.
func (m Model) renderCommits() string {
	if len(m.commits) == 0 {
		return theme.HelpStyle.Render("No commits on this pull request")
	}

	hashStyle := lipgloss.NewStyle().Foreground(theme.ColorMagenta)
	authorStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue)

	var lines []string
	for _, c := range m.commits {
		summary := c.Message
		if i := strings.IndexByte(summary, '\n'); i >= 0 {
			summary = summary[:i]
		}
		lines = append(lines, fmt.Sprintf(
			"%s %s  %s",
			hashStyle.Render(shortHash(c.Hash)),
			authorStyle.Render(c.Author),
			summary,
		))
	}
	return strings.Join(lines, "\n")
}

// renderEvents builds the recent automation activity section.
func (m Model) renderEvents() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	lines := []string{headerStyle.Render("Recent automation activity")}

	for _, e := range m.events {
		auto := "manual"
		if e.Auto {
			auto = "auto"
		}
		lines = append(lines, fmt.Sprintf(
			"%s  %s → %s (%s, %s)",
			theme.HelpStyle.Render(e.CreatedAt.Format("2006-01-02 15:04")),
			e.IssueKey,
			e.Target,
			e.Outcome,
			auto,
		))
	}
	return strings.Join(lines, "\n")
}

// renderHelp builds the shortcut hint line.
func (m Model) renderHelp() string {
	hints := []string{"r refresh", "c commits", "? history", "o open", "q quit"}
	if m.suggestedTarget() != "" {
		hints = append([]string{"m move"}, hints...)
	}
	if m.override {
		hints = append([]string{"u restore"}, hints...)
	}
	return theme.HelpStyle.Render(strings.Join(hints, " · "))
}

// suggestedTarget computes the move suggestion for the current PR and
// issue status.
func (m Model) suggestedTarget() string {
	if m.pr == nil || !m.haveCategory {
		return ""
	}
	return status.SuggestTarget(m.pr.Status, m.pr.Approvals, m.category)
}

func categoryName(category status.CategoryKey) string {
	switch category {
	case status.CategoryNew:
		return "To Do"
	case status.CategoryIndeterminate:
		return "In Progress"
	case status.CategoryDone:
		return "Done"
	default:
		return "Unknown"
	}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
