package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pr-overview/internal/status"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the panel title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// PanelStyle wraps the main content area.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// LabelStyle renders field labels in the detail rows.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// SuccessStyle renders confirmation messages after a transition.
var SuccessStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// ErrorStyle renders failure messages.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// NoticeStyle renders advisory banners such as the restore prompt.
var NoticeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorYellow)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PRStatusStyle returns the badge style for a normalized PR status.
func PRStatusStyle(prStatus status.PRStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch prStatus {
	case status.PROpen:
		return base.Foreground(ColorGreen)
	case status.PRMerged:
		return base.Foreground(ColorBlue)
	case status.PRDraft:
		return base.Foreground(ColorMagenta)
	case status.PRDeclined, status.PRClosed:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorYellow)
	}
}

// CategoryStyle returns the style for an issue status category.
func CategoryStyle(category status.CategoryKey) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch category {
	case status.CategoryNew:
		return base.Foreground(ColorBlue)
	case status.CategoryIndeterminate:
		return base.Foreground(ColorYellow)
	case status.CategoryDone:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
