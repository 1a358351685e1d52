package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the panel.
type KeyMap struct {
	// Navigation within the commit list
	Down key.Binding
	Up   key.Binding

	// Quit
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Actions
	Move    key.Binding
	Restore key.Binding
	Commits key.Binding
	OpenPR  key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Move: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "move issue"),
		),
		Restore: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "restore to Done"),
		),
		Commits: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "toggle commits"),
		),
		OpenPR: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open PR link"),
		),
	}
}
