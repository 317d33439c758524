package console

import "github.com/charmbracelet/lipgloss"

// Color palette for the interactive console. mempeek has no design system
// of its own to draw on, so this sticks to a small, legible set: a single
// accent color, a dim color for secondary text, and red/amber for
// error/warning severities.
var (
	ColorPrimary = lipgloss.Color("39")  // blue
	ColorDim     = lipgloss.Color("240") // grey
	ColorError   = lipgloss.Color("197") // red
	ColorWarning = lipgloss.Color("214") // amber
)

var (
	StyleDim     = lipgloss.NewStyle().Foreground(ColorDim)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
)
