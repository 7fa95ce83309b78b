package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"procwatch/internal/commands"
)

// VERSION is set during build via ldflags
var VERSION string

func getCurrentVersion() string {
	if VERSION == "" {
		return "dev"
	}
	return VERSION
}

func main() {
	commands.GetCurrentVersion = getCurrentVersion

	rootCmd := &cobra.Command{
		Use:   "procwatch",
		Short: "Process monitoring agent with OTLP export",
		Long: `procwatch monitors trees of OS processes matched by a name pattern,
aggregates their resource usage every collection interval and exports
the result over OTLP. Metric metadata (stable IDs, display names,
formatting rules) is kept in a local SQLite registry.`,
		DisableSuggestions: true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Lookup("version").Changed {
				fmt.Printf("v%s\n", getCurrentVersion())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewStartCmd())
	rootCmd.AddCommand(commands.NewStopCmd())
	rootCmd.AddCommand(commands.NewRestartCmd())
	rootCmd.AddCommand(commands.NewDaemonCmd())
	rootCmd.AddCommand(commands.NewRunOnceCmd())
	rootCmd.AddCommand(commands.NewCatalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
