package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7C3AED")).
		Padding(0, 2)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	progressStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B"))
)
