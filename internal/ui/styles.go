package ui

import "github.com/charmbracelet/lipgloss"

// Color palette, single teal accent.
const (
	ColorTeal     = "43"  // Primary accent
	ColorTealDim  = "30"  // Dimmed accent for secondary marks
	ColorWhite    = "255" // Headers
	ColorGray     = "245" // Labels, metadata
	ColorDarkGray = "238" // Separators
	ColorYellow   = "220" // Warnings
)

// Styles holds the render styles for query output.
type Styles struct {
	Header  lipgloss.Style
	Rank    lipgloss.Style
	Title   lipgloss.Style
	Meta    lipgloss.Style
	Score   lipgloss.Style
	Warning lipgloss.Style
	Rule    lipgloss.Style
}

// DefaultStyles returns the styled palette for TTY output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Rank:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal)),
		Meta:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTealDim)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Rule:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Rank:    lipgloss.NewStyle(),
		Title:   lipgloss.NewStyle(),
		Meta:    lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Rule:    lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
