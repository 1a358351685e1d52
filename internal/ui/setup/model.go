// Package setup hosts the first-run configuration form: Jira
// connection details, Bitbucket workspace and repository, and the two
// secrets, which go to the system keyring rather than the config file.
package setup

import (
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pr-overview/internal/credential"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/theme"
)

// DoneMsg signals that configuration was saved and the panel can
// start. Config carries the saved values.
type DoneMsg struct {
	Config *model.AppConfig
}

// AbortMsg signals that the user backed out of setup.
type AbortMsg struct{}

// Model is the Bubble Tea model for the setup form.
type Model struct {
	form *huh.Form

	configPath string

	formJiraURL    string
	formJiraUser   string
	formJiraToken  string
	formBBUser     string
	formBBPassword string
	formWorkspace  string
	formRepository string

	saveErr string
	width   int
}

// New creates a setup form prefilled from an existing config, if any.
func New(existing *model.AppConfig, configPath string, width int) Model {
	m := Model{configPath: configPath, width: width}
	if existing != nil {
		m.formJiraURL = existing.Jira.BaseURL
		m.formJiraUser = existing.Jira.Username
		m.formBBUser = existing.Bitbucket.Username
		m.formWorkspace = existing.Bitbucket.Workspace
		m.formRepository = existing.Bitbucket.RepositorySlug
	}
	m.form = m.buildForm()
	return m
}

// Init returns the initial command for the setup form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the setup form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.save()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg {
			return AbortMsg{}
		}
	}

	return m, cmd
}

// View renders the setup form.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("proverview setup")
	body := m.form.View()

	sections := []string{title, "", body}
	if m.saveErr != "" {
		sections = append(sections, "", theme.ErrorStyle.Render(m.saveErr))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Jira Base URL").
				Description("Jira server URL (e.g., https://jira.example.com)").
				Placeholder("https://jira.example.com").
				Value(&m.formJiraURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Jira Username").
				Placeholder("jdoe").
				Value(&m.formJiraUser).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Jira Personal Access Token").
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&m.formJiraToken).
				Validate(validateRequired("Token")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Bitbucket Username").
				Placeholder("jdoe").
				Value(&m.formBBUser).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Bitbucket App Password").
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&m.formBBPassword).
				Validate(validateRequired("App password")),
			huh.NewInput().
				Title("Workspace").
				Placeholder("acme").
				Value(&m.formWorkspace).
				Validate(validateRequired("Workspace")),
			huh.NewInput().
				Title("Repository Slug").
				Placeholder("backend-api").
				Value(&m.formRepository).
				Validate(validateRequired("Repository slug")),
		),
	).WithWidth(m.formWidth())
}

// save persists the config file and both secrets, then signals done.
func (m Model) save() (Model, tea.Cmd) {
	cfg := &model.AppConfig{
		Jira: model.JiraConfig{
			BaseURL:  strings.TrimRight(strings.TrimSpace(m.formJiraURL), "/"),
			Username: strings.TrimSpace(m.formJiraUser),
		},
		Bitbucket: model.BitbucketConfig{
			Username:       strings.TrimSpace(m.formBBUser),
			Workspace:      strings.TrimSpace(m.formWorkspace),
			RepositorySlug: strings.TrimSpace(m.formRepository),
		},
	}

	if err := credential.Set(credential.KeyJiraToken, m.formJiraToken); err != nil {
		m.saveErr = fmt.Sprintf("saving Jira token: %v", err)
		return m, nil
	}
	if err := credential.Set(credential.KeyBitbucketAppPassword, m.formBBPassword); err != nil {
		m.saveErr = fmt.Sprintf("saving app password: %v", err)
		return m, nil
	}

	if err := model.SaveConfig(m.configPath, cfg); err != nil {
		m.saveErr = fmt.Sprintf("saving config: %v", err)
		return m, nil
	}

	return m, func() tea.Msg {
		return DoneMsg{Config: cfg}
	}
}

func (m Model) formWidth() int {
	if m.width > 80 {
		return 80
	}
	if m.width > 0 {
		return m.width
	}
	return 60
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}
