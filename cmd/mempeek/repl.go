package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hammelm/mempeek/internal/config"
	"github.com/hammelm/mempeek/internal/console"
	"github.com/hammelm/mempeek/internal/signalwatch"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive console",
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	e, err := newEnvironment()
	if err != nil {
		return err
	}
	_, stop := signalwatch.Watch(e)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	model := console.New(console.Config{
		Env:         e,
		HistoryPath: config.HistoryPath(),
		HistorySize: cfg.History.MaxSize,
		LogDir:      config.Home(),
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}
