package main

import (
	"fmt"
	"os"
	"regexp"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/pr-overview/internal/app"
	"github.com/nhle/pr-overview/internal/model"
	"github.com/nhle/pr-overview/internal/store"
)

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*-[0-9]+$`)

func usage() {
	fmt.Fprintf(os.Stderr, `proverview — pull request overview panel for a Jira issue

Usage:
  proverview <ISSUE-KEY>    Open the panel for an issue (e.g. proverview PROJ-123)
  proverview setup          Run the configuration form

Environment:
  JIRA_API_TOKEN            Jira personal access token (overrides keyring)
  BITBUCKET_USERNAME        Bitbucket username
  BITBUCKET_APP_PASSWORD    Bitbucket app password (overrides keyring)
  BITBUCKET_WORKSPACE       Bitbucket workspace
  BITBUCKET_REPO_SLUG       Repository slug

Config file: ~/.config/proverview/config.yaml
`)
}

func main() {
	if len(os.Args) != 2 {
		usage()
		os.Exit(1)
	}

	arg := os.Args[1]
	switch arg {
	case "help", "-h", "--help":
		usage()
		return
	}

	configPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		// A missing or unreadable config is not fatal; the setup form
		// handles first runs.
		cfg = nil
	}

	if arg == "setup" {
		runProgram(app.NewSetup(cfg, configPath))
		return
	}

	issueKey := arg
	if !issueKeyPattern.MatchString(issueKey) {
		fmt.Fprintf(os.Stderr, "invalid issue key %q (expected e.g. PROJ-123)\n", issueKey)
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(store.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening history store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	runProgram(app.New(issueKey, cfg, configPath, s))
}

func runProgram(m app.Model) {
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
