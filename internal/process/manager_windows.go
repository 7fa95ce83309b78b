//go:build windows
// +build windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
	constants "procwatch/config"
)

// ReadPID reads the daemon pid recorded in the PID file.
func ReadPID() (int, error) {
	data, err := os.ReadFile(constants.PID_FILE)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsRunning reports whether the recorded daemon process is still alive.
func IsRunning() bool {
	pid, err := ReadPID()
	if err != nil {
		return false
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	// STILL_ACTIVE = 259
	return exitCode == 259
}

// StopProcess asks the daemon to exit, escalating to a forced kill when
// it does not respond, then removes the PID file.
func StopProcess() error {
	if !IsRunning() {
		return fmt.Errorf("procwatch is not running")
	}

	pid, err := ReadPID()
	if err != nil {
		return err
	}

	if err := exec.Command("taskkill", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		if err := exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid)).Run(); err != nil {
			return fmt.Errorf("failed to stop process: %w", err)
		}
	}

	// taskkill returns before the process is fully gone.
	time.Sleep(2 * time.Second)
	os.Remove(constants.PID_FILE)
	return nil
}

// ForceStopProcess kills every procwatch process by image name and
// removes the PID file. For daemons stuck past a normal stop, or left
// over after a PID file went missing.
func ForceStopProcess() error {
	exec.Command("taskkill", "/F", "/IM", "procwatch.exe").Run()
	os.Remove(constants.PID_FILE)
	return nil
}

// StartProcess launches the daemon detached, without a console window.
func StartProcess() error {
	if IsRunning() {
		return fmt.Errorf("procwatch is already running")
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(exePath, "daemon")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to detach process: %w", err)
	}
	return nil
}

// RestartProcess stops the daemon when it is running and starts a new
// instance.
func RestartProcess() error {
	if IsRunning() {
		if err := StopProcess(); err != nil {
			return err
		}
	}

	time.Sleep(1 * time.Second)
	return StartProcess()
}
