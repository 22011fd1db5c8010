// Package replay renders recorded assessment runs for forensic review.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color scheme - each phase keeps a distinct, consistent color.
var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	reconStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")) // Blue

	analyzeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")) // Magenta

	attackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	reportStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")) // Cyan

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	reworkStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11")) // Yellow

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)

// phaseStyle picks the color for a phase name.
func phaseStyle(phase string) lipgloss.Style {
	switch phase {
	case "recon":
		return reconStyle
	case "analyze":
		return analyzeStyle
	case "attack":
		return attackStyle
	case "report":
		return reportStyle
	default:
		return valueStyle
	}
}
