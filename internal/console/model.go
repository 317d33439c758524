// Package console is the bubbletea-driven interactive REPL: a scrollable
// log of statements and their output, a multi-line statement input with
// history, and a sidebar reporting live mappings and word size. It drives
// an env.Environment and internal/parseapi.Parser directly, the way
// repl/app.go drove a Deephaven session.
package console

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/env"
)

// Config configures a new console session.
type Config struct {
	Env         *env.Environment
	HistoryPath string
	HistorySize int
	LogDir      string // directory for tee session logs; empty disables
}

// Model is the top-level bubbletea model for the interactive console.
type Model struct {
	env     *env.Environment
	history *History
	tee     *TeeWriter

	logview *LogViewModel
	sidebar SidebarModel
	input   InputModel

	width, height int
	ready         bool
}

// New builds a console Model wired against cfg.Env.
func New(cfg Config) Model {
	history := NewHistory(cfg.HistoryPath, cfg.HistorySize)
	logview := NewLogView()
	tee := NewTeeWriter(&logview, cfg.LogDir)
	cfg.Env.SetStdout(tee)

	return Model{
		env:     cfg.Env,
		history: history,
		tee:     tee,
		logview: &logview,
		sidebar: NewSidebar(),
		input:   NewInput(history),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.teardown()
			return m, tea.Quit
		case "tab":
			m.autocomplete()
			return m, nil
		}

	case SubmitMsg:
		quit := m.run(msg.Code)
		m.input.Reset()
		m.layout()
		if quit {
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	updated, lvCmd := m.logview.Update(msg)
	*m.logview = updated
	return m, tea.Batch(cmd, lvCmd)
}

func (m *Model) layout() {
	sidebarWidth := m.sidebar.Width()
	contentWidth := m.width - sidebarWidth
	if contentWidth < 20 {
		contentWidth = m.width
		sidebarWidth = 0
	}
	m.input.SetWidth(contentWidth)
	logHeight := m.height - m.input.Height()
	if logHeight < 1 {
		logHeight = 1
	}
	m.logview.SetSize(contentWidth, logHeight)
	m.sidebar.SetHeight(m.height)
	m.refreshStatus()
}

func (m *Model) refreshStatus() {
	m.sidebar.SetStatus(StatusData{
		Mappings:      m.env.Mappings().List(),
		WordSizeBits:  m.env.DefaultWordSize(),
		PrintModifier: fmt.Sprintf("%#x", m.env.DefaultPrintModifier()),
	})
}

// run parses and executes one statement block, appending the input and its
// output/error to the log. It reports whether the statement raised quit,
// meaning the console session should end.
func (m *Model) run(code string) bool {
	m.history.Add(code)
	m.logview.AppendEntry(LogEntry{Type: LogCommand, Text: code})

	node, err := m.env.Parse(ast.Location{File: "console"}, code, false, false)
	if err != nil {
		m.logview.AppendEntry(LogEntry{Type: LogError, Text: err.Error()})
		return false
	}
	if _, err := node.Execute(m.env); err != nil {
		if ast.AsSignal(err, ast.SigQuit) {
			m.teardown()
			return true
		}
		if !ast.IsAnySignal(err) {
			m.logview.AppendEntry(LogEntry{Type: LogError, Text: err.Error()})
		}
	}
	m.refreshStatus()
	return false
}

// autocomplete extends the current input's trailing identifier with the
// environment's best guess, when exactly one candidate matches.
func (m *Model) autocomplete() {
	word := lastIdentifier(m.input.Value())
	if word == "" {
		return
	}
	matches := m.env.GetAutocompletion(word)
	if len(matches) != 1 {
		return
	}
	m.input.completeWith(matches[0][len(word):])
}

func lastIdentifier(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			break
		}
		i--
	}
	return s[i:]
}

func (m *Model) teardown() {
	if err := m.tee.Close(); err != nil {
		log.WithError(err).Warn("closing session log")
	}
}

func (m Model) View() string {
	if !m.ready {
		return "initializing..."
	}
	body := lipgloss.JoinVertical(lipgloss.Left, m.logview.View(), m.input.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, body, m.sidebar.View())
}
