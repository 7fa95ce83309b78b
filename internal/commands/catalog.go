package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"procwatch/internal/catalog"
	"procwatch/internal/config"
	"procwatch/internal/procscan"
)

// NewCatalogCmd creates the catalog command: loads the configured (or
// given) catalog, expands its templates against this host and prints
// the concrete metric list. Validates a catalog file without starting
// the daemon.
func NewCatalogCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the expanded metric catalog",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				os.Exit(1)
			}
			if path == "" {
				path = cfg.CatalogPath
			}

			cat := catalog.Default()
			if path != "" {
				cat, err = catalog.Load(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
					os.Exit(1)
				}
			}

			metrics, err := cat.Expand(catalog.Facts{"cpu_count": procscan.CoreCount})
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}

			fmt.Printf("%d metrics (%d static, %d templated):\n", len(metrics), len(cat.Static), len(cat.Templates))
			for _, m := range metrics {
				unit := m.Unit
				if unit == "" {
					unit = "1"
				}
				fmt.Printf("  %-30s %-14s unit=%-4s decimals=%d\n", m.Name, m.Otel, unit, m.Decimals)
			}
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "catalog file to expand (overrides configuration)")
	return cmd
}
