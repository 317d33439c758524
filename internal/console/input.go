package console

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SubmitMsg is sent when the user presses Enter to submit a statement.
type SubmitMsg struct {
	Code string
}

// InputMode tracks the current input interaction mode.
type InputMode int

const (
	InputNormal InputMode = iota
	InputHistorySearch          // Ctrl+R reverse-i-search
)

// InputModel wraps a textarea with history navigation and search.
type InputModel struct {
	textarea      textarea.Model
	maxHeight     int
	history       *History
	mode          InputMode
	searchQuery   string
	searchMatches []string
	searchIdx     int
}

// NewInput creates a new input component with history support.
func NewInput(history *History) InputModel {
	ta := textarea.New()
	ta.Placeholder = "NAME := expr;"
	ta.Prompt = "> "
	ta.SetHeight(1)
	ta.SetWidth(80)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.CharLimit = 0
	ta.Focus()

	return InputModel{
		textarea:  ta,
		maxHeight: 6,
		history:   history,
		mode:      InputNormal,
	}
}

// SetWidth updates the textarea width, accounting for the box border.
func (m *InputModel) SetWidth(w int) {
	m.textarea.SetWidth(w - 2)
}

// Reset clears the textarea after submission.
func (m *InputModel) Reset() {
	m.textarea.Reset()
	m.textarea.SetHeight(1)
	if m.history != nil {
		m.history.ResetNavigation()
	}
}

// Value returns the current textarea content.
func (m InputModel) Value() string {
	return m.textarea.Value()
}

// Height returns the rendered height including the border.
func (m InputModel) Height() int {
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines > m.maxHeight {
		lines = m.maxHeight
	}
	if lines < 1 {
		lines = 1
	}
	return lines + 2
}

// Update handles key input with history navigation and search modes.
func (m InputModel) Update(msg tea.Msg) (InputModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == InputHistorySearch {
			return m.updateHistorySearch(msg)
		}

		switch msg.String() {
		case "enter":
			code := strings.TrimSpace(m.textarea.Value())
			if code == "" {
				return m, nil
			}
			return m, func() tea.Msg { return SubmitMsg{Code: m.textarea.Value()} }
		case "shift+enter":
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(tea.KeyMsg{Type: tea.KeyEnter})
			m.adjustHeight()
			return m, cmd
		case "up":
			if m.canNavigateHistory() {
				if entry, ok := m.history.Up(m.textarea.Value()); ok {
					m.textarea.SetValue(entry)
					m.textarea.CursorEnd()
					m.adjustHeight()
				}
				return m, nil
			}
		case "down":
			if m.canNavigateHistory() {
				if entry, ok := m.history.Down(m.textarea.Value()); ok {
					m.textarea.SetValue(entry)
					m.textarea.CursorEnd()
					m.adjustHeight()
				}
				return m, nil
			}
		case "ctrl+r":
			m.mode = InputHistorySearch
			m.searchQuery = ""
			m.searchMatches = nil
			m.searchIdx = 0
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.adjustHeight()
	return m, cmd
}

func (m InputModel) canNavigateHistory() bool {
	return m.history != nil && strings.Count(m.textarea.Value(), "\n") == 0
}

func (m InputModel) updateHistorySearch(msg tea.KeyMsg) (InputModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if len(m.searchMatches) > 0 && m.searchIdx < len(m.searchMatches) {
			m.textarea.SetValue(m.searchMatches[m.searchIdx])
			m.textarea.CursorEnd()
			m.adjustHeight()
		}
		m.mode = InputNormal
		m.searchQuery = ""
		m.searchMatches = nil
		return m, nil
	case "escape", "ctrl+c", "ctrl+r":
		m.mode = InputNormal
		m.searchQuery = ""
		m.searchMatches = nil
		return m, nil
	case "up", "ctrl+p":
		if m.searchIdx < len(m.searchMatches)-1 {
			m.searchIdx++
		}
		return m, nil
	case "down", "ctrl+n":
		if m.searchIdx > 0 {
			m.searchIdx--
		}
		return m, nil
	case "backspace":
		if len(m.searchQuery) > 0 {
			m.searchQuery = m.searchQuery[:len(m.searchQuery)-1]
			m.searchMatches = m.history.Search(m.searchQuery)
			m.searchIdx = 0
		}
		return m, nil
	default:
		key := msg.String()
		if len(key) == 1 && key[0] >= 32 && key[0] < 127 {
			m.searchQuery += key
			m.searchMatches = m.history.Search(m.searchQuery)
			m.searchIdx = 0
		}
		return m, nil
	}
}

// completeWith appends suffix to the current value, for Tab-triggered
// autocompletion against env.GetAutocompletion.
func (m *InputModel) completeWith(suffix string) {
	if suffix == "" {
		return
	}
	m.textarea.SetValue(m.textarea.Value() + suffix)
	m.textarea.CursorEnd()
	m.adjustHeight()
}

func (m *InputModel) adjustHeight() {
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines > m.maxHeight {
		lines = m.maxHeight
	}
	m.textarea.SetHeight(lines)
}

// View renders the input box, showing the history-search prompt when active.
func (m InputModel) View() string {
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		Width(m.textarea.Width() + 2)

	if m.mode == InputHistorySearch {
		prompt := StyleDim.Render("(reverse-i-search)`" + m.searchQuery + "': ")
		match := ""
		if len(m.searchMatches) > 0 && m.searchIdx < len(m.searchMatches) {
			match = m.searchMatches[m.searchIdx]
		}
		return box.Render(prompt + match)
	}
	return box.Render(m.textarea.View())
}
