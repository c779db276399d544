package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Primary is the relay's cyan accent.
var (
	Primary    = lipgloss.Color("#22d3ee")
	Success    = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#F9FAFB")
	Panel      = lipgloss.Color("#1F2937")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// StatusStyle is the inverted pill used for counters.
	StatusStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Background(Panel).
			Padding(0, 2).
			MarginBottom(1)

	FooterStyle = lipgloss.NewStyle().Foreground(Muted).MarginTop(1)
)

// Summary boxes under the probe table.
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	ErrorBoxStyle = BoxStyle.
			Border(lipgloss.ThickBorder()).
			BorderForeground(Error)
)

// Table cells alternate brightness by row.
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	TableRowStyle    = tableCellStyle.Foreground(lipgloss.Color("255"))
	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconConnect = "🔌"
	IconTime    = "⏱️"
	IconWaiting = "⏳"
)

func PrintError(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarningf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(fmt.Sprintf(format, args...)))
}

func PrintSuccessf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render(IconSuccess), fmt.Sprintf(format, args...))
}
