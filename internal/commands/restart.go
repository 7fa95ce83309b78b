package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"procwatch/internal/process"
)

// NewRestartCmd creates the restart command
func NewRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the monitoring daemon",
		Run: func(cmd *cobra.Command, args []string) {
			if err := process.RestartProcess(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to restart daemon: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("procwatch daemon restarted")
		},
	}
}
