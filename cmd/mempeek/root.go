// Package cmd is the cobra command tree for the mempeek CLI: repl, run,
// and config subcommands rooted at a persistent set of flags, following
// the teacher's root/repl/config command split.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hammelm/mempeek/internal/config"
	"github.com/hammelm/mempeek/internal/output"
)

// ConfigDir is bound to --config-dir; empty means use the default
// resolution (MEMPEEK_HOME env, then ~/.mempeek).
var ConfigDir string

var (
	flagDevice  string
	flagInclude []string
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mempeek",
	Short: "Interactive interpreter for peeking and poking physical memory registers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.SetFlags(flagJSON, flagQuiet, flagVerbose)
		if ConfigDir != "" {
			config.SetConfigDir(ConfigDir)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ConfigDir, "config-dir", "", "configuration directory (default: $MEMPEEK_HOME or ~/.mempeek)")
	rootCmd.PersistentFlags().StringVarP(&flagDevice, "device", "d", "", "default memory device (default: /dev/mem)")
	rootCmd.PersistentFlags().StringArrayVarP(&flagInclude, "include", "I", nil, "additional include search path (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command. On error it prints the error to stderr and
// exits the process with output.ExitError, so it only ever returns nil.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(output.ExitError)
	}
	return nil
}
