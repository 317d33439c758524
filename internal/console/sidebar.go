package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammelm/mempeek/internal/mapping"
)

// StatusData holds the live interpreter state the sidebar reports:
// current mappings and the active word size/print modifier.
type StatusData struct {
	Mappings      []*mapping.Mapping
	WordSizeBits  int
	PrintModifier string
}

type consoleKeyMap struct {
	Submit     key.Binding
	Newline    key.Binding
	History    key.Binding
	SearchHist key.Binding
	Quit       key.Binding
}

func (k consoleKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Newline, k.History, k.SearchHist, k.Quit}
}

func (k consoleKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultConsoleKeyMap = consoleKeyMap{
	Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Newline:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("shift+ret", "newline")),
	History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
	SearchHist: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "search hist")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

// SidebarModel displays live mapping/word-size status and keybinding help.
type SidebarModel struct {
	status *StatusData
	help   help.Model
	keys   consoleKeyMap
	width  int
	height int
}

// NewSidebar creates a new sidebar with a fixed width.
func NewSidebar() SidebarModel {
	h := help.New()
	h.ShowAll = true
	h.ShortSeparator = ""
	return SidebarModel{
		width: 32,
		help:  h,
		keys:  defaultConsoleKeyMap,
	}
}

// SetStatus updates the status display data.
func (m *SidebarModel) SetStatus(s StatusData) {
	m.status = &s
}

// SetHeight updates the sidebar height.
func (m *SidebarModel) SetHeight(h int) {
	m.height = h
}

// Width returns the fixed sidebar width.
func (m SidebarModel) Width() int {
	return m.width
}

// Update is a no-op; the sidebar doesn't handle messages directly.
func (m SidebarModel) Update(msg tea.Msg) (SidebarModel, tea.Cmd) {
	return m, nil
}

// View renders the sidebar with status info and keybinding help.
func (m SidebarModel) View() string {
	sections := []string{
		m.renderStatus(),
		"",
		m.renderHelp(),
	}
	content := strings.Join(sections, "\n")

	style := lipgloss.NewStyle().
		Width(m.width - 2).
		Height(m.height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ColorDim).
		PaddingLeft(1).
		PaddingRight(1)

	return style.Render(content)
}

func (m SidebarModel) renderStatus() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	labelStyle := lipgloss.NewStyle().Foreground(ColorDim)
	valueStyle := lipgloss.NewStyle()

	lines := []string{titleStyle.Render("Status")}

	if m.status == nil {
		lines = append(lines, labelStyle.Render("not started"))
		return strings.Join(lines, "\n")
	}

	lines = append(lines,
		labelStyle.Render("Word: ")+valueStyle.Render(fmt.Sprintf("%d-bit", m.status.WordSizeBits)),
		labelStyle.Render("Mod:  ")+valueStyle.Render(m.status.PrintModifier),
		labelStyle.Render("Maps: ")+valueStyle.Render(fmt.Sprintf("%d", len(m.status.Mappings))),
	)
	for _, mp := range m.status.Mappings {
		lines = append(lines, valueStyle.Render(fmt.Sprintf("  %#x+%#x", mp.At(), mp.Size())))
	}
	return strings.Join(lines, "\n")
}

func (m SidebarModel) renderHelp() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	m.help.Width = m.width - 4

	lines := []string{
		titleStyle.Render("Keys"),
		"",
		m.help.View(m.keys),
	}
	return strings.Join(lines, "\n")
}
