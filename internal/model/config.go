package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// JiraConfig holds the connection settings for the Jira instance.
type JiraConfig struct {
	// BaseURL is the root URL of the Jira instance.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Username is the Jira account the panel acts as.
	Username string `mapstructure:"username" yaml:"username"`
}

// BitbucketConfig holds the repository the panel inspects for pull
// requests. Username, workspace and repository slug are required
// together with the app password before any Bitbucket call is made.
type BitbucketConfig struct {
	// Username is the Bitbucket account used for Basic auth.
	Username string `mapstructure:"username" yaml:"username"`

	// Workspace is the Bitbucket Cloud workspace id.
	Workspace string `mapstructure:"workspace" yaml:"workspace"`

	// RepositorySlug is the repository within the workspace.
	RepositorySlug string `mapstructure:"repository_slug" yaml:"repository_slug"`
}

// DisplayConfig holds panel rendering and polling preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// StatusPollSec is the issue status poll cadence in seconds.
	StatusPollSec int `mapstructure:"status_poll_sec" yaml:"status_poll_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Jira      JiraConfig      `mapstructure:"jira" yaml:"jira"`
	Bitbucket BitbucketConfig `mapstructure:"bitbucket" yaml:"bitbucket"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// MissingConfigError reports which required Bitbucket settings are
// absent. It is surfaced verbatim to the caller before any network
// call and never retried.
type MissingConfigError struct {
	Fields []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf(
		"missing configuration: %s", strings.Join(e.Fields, ", "),
	)
}

// Environment variable names reported in MissingConfigError, matching
// how the settings are provided in non-interactive setups.
const (
	EnvBitbucketUsername    = "BITBUCKET_USERNAME"
	EnvBitbucketAppPassword = "BITBUCKET_APP_PASSWORD"
	EnvBitbucketWorkspace   = "BITBUCKET_WORKSPACE"
	EnvBitbucketRepoSlug    = "BITBUCKET_REPO_SLUG"
)

// MissingBitbucketFields returns the names of the required Bitbucket
// settings that are not present, given the resolved app password.
func (c *AppConfig) MissingBitbucketFields(appPassword string) []string {
	var missing []string
	if c.Bitbucket.Username == "" {
		missing = append(missing, EnvBitbucketUsername)
	}
	if appPassword == "" {
		missing = append(missing, EnvBitbucketAppPassword)
	}
	if c.Bitbucket.Workspace == "" {
		missing = append(missing, EnvBitbucketWorkspace)
	}
	if c.Bitbucket.RepositorySlug == "" {
		missing = append(missing, EnvBitbucketRepoSlug)
	}
	return missing
}

// ValidateBitbucket fails fast with a MissingConfigError when any of
// the four required Bitbucket settings is absent.
func (c *AppConfig) ValidateBitbucket(appPassword string) error {
	if missing := c.MissingBitbucketFields(appPassword); len(missing) > 0 {
		return &MissingConfigError{Fields: missing}
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/proverview/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "proverview", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Display: DisplayConfig{
			Theme:         "default",
			StatusPollSec: 5,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.status_poll_sec", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Display.StatusPollSec <= 0 {
		cfg.Display.StatusPollSec = 5
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets the Bitbucket settings come from the
// environment in non-interactive setups.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv(EnvBitbucketUsername); v != "" {
		cfg.Bitbucket.Username = v
	}
	if v := os.Getenv(EnvBitbucketWorkspace); v != "" {
		cfg.Bitbucket.Workspace = v
	}
	if v := os.Getenv(EnvBitbucketRepoSlug); v != "" {
		cfg.Bitbucket.RepositorySlug = v
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("jira", cfg.Jira)
	v.Set("bitbucket", cfg.Bitbucket)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
