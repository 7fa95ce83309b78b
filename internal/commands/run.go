package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"procwatch/internal/config"
	"procwatch/internal/logger"
	"procwatch/internal/procscan"
	"procwatch/pkg/utils"
)

// NewRunOnceCmd creates the run-once command: a single collection cycle
// printed to stdout, without touching the registry or the exporter.
// Useful for verifying a process pattern before enabling the daemon.
func NewRunOnceCmd() *cobra.Command {
	var pattern string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Collect one snapshot and print it",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				os.Exit(1)
			}
			if pattern != "" {
				cfg.ProcessPattern = pattern
			}
			if cfg.ProcessPattern == "" {
				fmt.Fprintln(os.Stderr, "No process pattern configured; use --pattern")
				os.Exit(1)
			}

			log := logger.New(cfg.LogFile)
			defer log.Close()

			var sampler procscan.CoreSampler
			if cfg.PerCoreCPU {
				sampler = procscan.SystemCoreSampler
			}
			collector, err := procscan.NewCollector(procscan.NewSystemSource(), cfg.ProcessPattern, sampler, log)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}

			snap, err := collector.Collect(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
				os.Exit(1)
			}
			if snap == nil {
				if asJSON {
					fmt.Println("{}")
					return
				}
				fmt.Printf("No processes matching %q\n", cfg.ProcessPattern)
				return
			}

			if asJSON {
				out, err := json.MarshalIndent(struct {
					CollectedAt   time.Time          `json:"collected_at"`
					MonitoredPIDs []int32            `json:"monitored_pids"`
					Values        map[string]float64 `json:"values"`
				}{snap.CollectedAt, snap.MonitoredPIDs, snap.Values}, "", "  ")
				if err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
					os.Exit(1)
				}
				fmt.Println(string(out))
				return
			}

			fmt.Printf("Monitored pids: %s\n", utils.JoinPIDs(snap.MonitoredPIDs))
			keys := make([]string, 0, len(snap.Values))
			for k := range snap.Values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %-28s %s\n", k, formatSnapshotValue(k, snap.Values[k]))
			}
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "process name pattern (overrides configuration)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func formatSnapshotValue(key string, value float64) string {
	switch {
	case strings.HasSuffix(key, "_bytes") || (strings.HasPrefix(key, "memory_") && strings.HasSuffix(key, "_total")):
		return utils.FormatBytes(int64(value))
	case key == "cpu_usage" || key == "memory_usage" || strings.HasPrefix(key, "cpu_core_"):
		return utils.FormatPercentage(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}
