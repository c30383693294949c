package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/berth-dev/slipway/internal/execute"
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true)
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	OKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	WarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	sectionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("8")).
			PaddingLeft(1)
)

// StateStyle returns the color used for a build state.
func StateStyle(s execute.State) lipgloss.Style {
	switch s {
	case execute.StateCompleted:
		return OKStyle
	case execute.StateFailed:
		return ErrorStyle
	case execute.StateTimedOut, execute.StateCancelled:
		return WarnStyle
	default:
		return TitleStyle
	}
}
