package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hammelm/mempeek/internal/config"
	"github.com/hammelm/mempeek/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or change persisted configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a single config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.Get(args[0])
		if err != nil {
			return err
		}
		if output.IsJSON() {
			return output.PrintJSON(os.Stdout, map[string]string{args[0]: val})
		}
		fmt.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a single config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Set(args[0], args[1])
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.ConfigPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)
}
