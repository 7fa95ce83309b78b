package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"procwatch/internal/config"
	"procwatch/internal/process"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the agent is running and its configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				os.Exit(1)
			}

			if GetCurrentVersion != nil {
				fmt.Printf("procwatch v%s\n", GetCurrentVersion())
			}

			if process.IsRunning() {
				pid, _ := process.ReadPID()
				fmt.Printf("procwatch daemon is running (PID %d)\n", pid)
			} else {
				fmt.Println("procwatch daemon is not running")
			}

			fmt.Println()
			fmt.Println("Configuration:")
			fmt.Printf("  Process pattern:  %s\n", cfg.ProcessPattern)
			fmt.Printf("  Service name:     %s\n", cfg.ServiceName)
			fmt.Printf("  Namespace:        %s\n", cfg.Namespace)
			fmt.Printf("  Interval:         %ds\n", cfg.CollectionInterval)
			fmt.Printf("  Per-core CPU:     %v\n", cfg.PerCoreCPU)
			fmt.Printf("  OTLP endpoint:    %s (%s)\n", cfg.OTLPEndpoint, cfg.OTLPProtocol)
			fmt.Printf("  Registry:         %s\n", cfg.DatabasePath)
			fmt.Printf("  Schema version:   %s\n", cfg.SchemaVersion)
			if cfg.CatalogPath != "" {
				fmt.Printf("  Catalog:          %s\n", cfg.CatalogPath)
			} else {
				fmt.Printf("  Catalog:          built-in\n")
			}
		},
	}
}
