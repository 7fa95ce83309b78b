//go:build !windows
// +build !windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// ReadPID reads the PID from the PID file
func ReadPID() (int, error) {
	data, err := os.ReadFile(getPIDFilePath())
	if err != nil {
		return 0, err
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, err
	}

	return pid, nil
}

// IsRunning checks if the monitoring daemon is running
func IsRunning() bool {
	pid, err := ReadPID()
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks for existence without delivering anything
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// StopProcess stops the monitoring daemon
func StopProcess() error {
	if !IsRunning() {
		return fmt.Errorf("procwatch is not running")
	}

	pid, err := ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	// SIGTERM lets the daemon flush metrics and release its lock
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	return nil
}

// ForceStopProcess kills the daemon without waiting for a graceful
// shutdown and removes the PID file. For daemons stuck past SIGTERM.
func ForceStopProcess() error {
	pid, err := ReadPID()
	if err != nil {
		// Nothing recorded; clear any unreadable leftover file.
		os.Remove(getPIDFilePath())
		return nil
	}

	if proc, err := os.FindProcess(pid); err == nil {
		if proc.Signal(syscall.Signal(0)) == nil {
			if err := proc.Signal(syscall.SIGKILL); err != nil {
				return fmt.Errorf("failed to kill process %d: %w", pid, err)
			}
		}
	}

	os.Remove(getPIDFilePath())
	return nil
}

// StartProcess starts the monitoring daemon in the background
func StartProcess() error {
	if IsRunning() {
		return fmt.Errorf("procwatch is already running")
	}

	exePath, err := os.Executable()
	if err != nil {
		exePath = "procwatch"
	}

	cmd := exec.Command("bash", "-c",
		fmt.Sprintf("nohup %s daemon > /dev/null 2>&1 &", exePath))
	return cmd.Start()
}

// RestartProcess stops and starts the monitoring daemon
func RestartProcess() error {
	if IsRunning() {
		if err := StopProcess(); err != nil {
			return err
		}
	}

	return StartProcess()
}
