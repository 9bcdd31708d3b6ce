package cli

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette, Cargo style.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleNote    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleCode    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stylePipe    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleHeader  = lipgloss.NewStyle().Bold(true)

	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBold   = lipgloss.NewStyle().Bold(true)
	styleCyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func render(style lipgloss.Style, s string) string {
	if !EnableColors() {
		return s
	}
	return style.Render(s)
}

// Error styles an error label.
func Error(s string) string { return render(styleError, s) }

// Warning styles a warning label.
func Warning(s string) string { return render(styleWarning, s) }

// Note styles a note label.
func Note(s string) string { return render(styleNote, s) }

// Help styles a help label.
func Help(s string) string { return render(styleHelp, s) }

// Code styles an error code such as E3004.
func Code(s string) string { return render(styleCode, s) }

// Pipe returns the gutter character.
func Pipe() string { return render(stylePipe, "|") }

// Header styles a table header.
func Header(s string) string { return render(styleHeader, s) }

func Muted(s string) string  { return render(styleMuted, s) }
func Bold(s string) string   { return render(styleBold, s) }
func Cyan(s string) string   { return render(styleCyan, s) }
func Green(s string) string  { return render(styleGreen, s) }
func Yellow(s string) string { return render(styleYellow, s) }
func Red(s string) string    { return render(styleRed, s) }
