package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"procwatch/internal/process"
)

// NewStartCmd creates the start command
func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the monitoring daemon in the background",
		Run: func(cmd *cobra.Command, args []string) {
			if process.IsRunning() {
				pid, _ := process.ReadPID()
				fmt.Printf("procwatch daemon is already running (PID %d)\n", pid)
				return
			}
			if err := process.StartProcess(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("procwatch daemon started")
		},
	}
}

// NewStopCmd creates the stop command
func NewStopCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the monitoring daemon",
		Run: func(cmd *cobra.Command, args []string) {
			if force {
				if err := process.ForceStopProcess(); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to force-stop daemon: %v\n", err)
					os.Exit(1)
				}
				fmt.Println("procwatch daemon killed")
				return
			}
			if err := process.StopProcess(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to stop daemon: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("procwatch daemon stopped")
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "kill the daemon immediately instead of waiting for a graceful shutdown")
	return cmd
}
