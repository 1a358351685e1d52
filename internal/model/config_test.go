package model

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Display.StatusPollSec != 5 {
		t.Fatalf("StatusPollSec = %d, want 5", cfg.Display.StatusPollSec)
	}
	if cfg.Display.Theme != "default" {
		t.Fatalf("Theme = %q, want default", cfg.Display.Theme)
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	in := &AppConfig{
		Jira: JiraConfig{
			BaseURL:  "https://jira.example.com",
			Username: "jdoe",
		},
		Bitbucket: BitbucketConfig{
			Username:       "jdoe",
			Workspace:      "acme",
			RepositorySlug: "backend-api",
		},
		Display: DisplayConfig{Theme: "default", StatusPollSec: 10},
	}
	if err := SaveConfig(path, in); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	out, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if out.Jira.BaseURL != in.Jira.BaseURL {
		t.Errorf("BaseURL = %q, want %q", out.Jira.BaseURL, in.Jira.BaseURL)
	}
	if out.Bitbucket.Workspace != in.Bitbucket.Workspace {
		t.Errorf("Workspace = %q, want %q", out.Bitbucket.Workspace, in.Bitbucket.Workspace)
	}
	if out.Display.StatusPollSec != 10 {
		t.Errorf("StatusPollSec = %d, want 10", out.Display.StatusPollSec)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvBitbucketUsername, "env-user")
	t.Setenv(EnvBitbucketWorkspace, "env-ws")
	t.Setenv(EnvBitbucketRepoSlug, "env-repo")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bitbucket.Username != "env-user" {
		t.Errorf("Username = %q, want env-user", cfg.Bitbucket.Username)
	}
	if cfg.Bitbucket.Workspace != "env-ws" {
		t.Errorf("Workspace = %q, want env-ws", cfg.Bitbucket.Workspace)
	}
	if cfg.Bitbucket.RepositorySlug != "env-repo" {
		t.Errorf("RepositorySlug = %q, want env-repo", cfg.Bitbucket.RepositorySlug)
	}
}

func TestMissingBitbucketFields(t *testing.T) {
	cfg := &AppConfig{
		Bitbucket: BitbucketConfig{Username: "jdoe", Workspace: "acme"},
	}

	missing := cfg.MissingBitbucketFields("")
	want := []string{EnvBitbucketAppPassword, EnvBitbucketRepoSlug}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("missing = %v, want %v", missing, want)
		}
	}

	if err := cfg.ValidateBitbucket(""); err == nil {
		t.Fatal("ValidateBitbucket should fail with missing settings")
	}

	cfg.Bitbucket.RepositorySlug = "repo"
	if err := cfg.ValidateBitbucket("secret"); err != nil {
		t.Fatalf("ValidateBitbucket: %v", err)
	}
}
