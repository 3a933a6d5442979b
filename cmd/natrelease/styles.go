// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Color palette shared by all CLI output. Tuned for dark terminals.
const (
	// ColorPrimary is purple, used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray, used for subtitles and secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green, used for released and succeeded states.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red, used for failed and blocked states.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber, used for skipped and incomplete states.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue, used for coordinates and commands.
	ColorHighlight = lipgloss.Color("#3B82F6")

	// ColorVerbose is light gray, used for debug details.
	ColorVerbose = lipgloss.Color("#9CA3AF")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for coordinates, commands and code.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	// VerboseStyle is for debug details.
	VerboseStyle = lipgloss.NewStyle().
			Foreground(ColorVerbose)

	keyStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(12)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Width(16)

	taskStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(24)
)
