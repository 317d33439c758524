package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/env"
	"github.com/hammelm/mempeek/internal/output"
	"github.com/hammelm/mempeek/internal/signalwatch"
)

var runStatements []string

var runCmd = &cobra.Command{
	Use:   "run [script...]",
	Short: "Run one or more script files (and -e statements) in order",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runStatements, "execute", "e", nil, "execute a statement before the listed scripts (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	e, err := newEnvironment()
	if err != nil {
		return err
	}
	_, stop := signalwatch.Watch(e)
	defer stop()

	for _, stmt := range runStatements {
		if err := execSource(e, ast.Location{File: "-e"}, stmt, false); err != nil {
			return err
		}
	}
	for _, path := range args {
		if err := execSource(e, ast.Location{File: path}, path, true); err != nil {
			return err
		}
	}
	if len(runStatements) == 0 && len(args) == 0 {
		return fmt.Errorf("run requires at least one script file or -e statement")
	}
	return nil
}

func execSource(e *env.Environment, loc ast.Location, src string, isFile bool) error {
	node, err := e.Parse(loc, src, isFile, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(output.ExitError)
	}
	if _, err := node.Execute(e); err != nil {
		if ast.IsAnySignal(err) {
			return nil
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(output.ExitError)
	}
	return nil
}
